// Package archive persists sealed transcript entries to PostgreSQL.
// It is optional: sessions run fine without a configured DSN, the
// controller simply skips archiving.
package archive

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"council-game-demo/client/game/session"
	"council-game-demo/client/pkg/logger"
)

// TranscriptEntry is one archived transcript row.
type TranscriptEntry struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ExternalID string    `json:"external_id" gorm:"index"`
	SessionID  string    `json:"session_id" gorm:"index"`
	Role       string    `json:"role"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	Content    string    `json:"content"`
	Emotion    string    `json:"emotion"`
	Phase      string    `json:"phase"`
	Round      int       `json:"round"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository stores and reads transcript entries.
type Repository interface {
	SaveEntry(sessionID string, entry session.ChatEntry) error
	GetBySession(sessionID string) ([]TranscriptEntry, error)
	GetBySessionPaginated(sessionID string, limit, offset int) ([]TranscriptEntry, error)
}

// GormRepository is the PostgreSQL-backed Repository.
type GormRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to the archive database and migrates the transcript
// table. Connection attempts are retried; the engine may come up before
// the database does.
func Open(dsn string, log *logger.Logger) (*GormRepository, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	}

	var db *gorm.DB
	var err error
	retries := 5
	delay := 2 * time.Second
	for i := 0; i < retries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
		if err == nil {
			break
		}
		log.Warn("archive database not reachable, retrying", "delay", delay.String())
		time.Sleep(delay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to archive database after %d retries: %w", retries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&TranscriptEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate transcript table: %w", err)
	}
	return &GormRepository{db: db, log: log}, nil
}

// SaveEntry archives one sealed transcript entry.
func (r *GormRepository) SaveEntry(sessionID string, entry session.ChatEntry) error {
	row := TranscriptEntry{
		ExternalID: entry.ID,
		SessionID:  sessionID,
		Role:       string(entry.Role),
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Content:    entry.Content,
		Emotion:    entry.Emotion,
		Phase:      string(entry.Phase),
		Round:      entry.Round,
	}
	return r.db.Create(&row).Error
}

// GetBySession returns every archived entry of one session in insertion
// order.
func (r *GormRepository) GetBySession(sessionID string) ([]TranscriptEntry, error) {
	var rows []TranscriptEntry
	err := r.db.Where("session_id = ?", sessionID).Order("id ASC").Find(&rows).Error
	return rows, err
}

// GetBySessionPaginated returns one page of a session's archived entries.
func (r *GormRepository) GetBySessionPaginated(sessionID string, limit, offset int) ([]TranscriptEntry, error) {
	var rows []TranscriptEntry
	err := r.db.Where("session_id = ?", sessionID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}
