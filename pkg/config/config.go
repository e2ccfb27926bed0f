package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration
type Config struct {
	// Engine is the remote game engine endpoint
	Engine struct {
		BaseURL string
		Timeout time.Duration
		APIKey  string
	}

	// Stream controls the delta buffer pump
	Stream struct {
		PumpInterval time.Duration
		ChunkSize    int
	}

	// Bridge is the local presentation bridge server
	Bridge struct {
		Enabled        bool
		Port           string
		AllowedOrigins []string
		RateLimit      float64
		RateLimitBurst int
	}

	// Store configures session-id persistence
	Store struct {
		Backend   string // "file" or "redis"
		FilePath  string
		RedisAddr string
		RedisDB   int
	}

	// Archive configures the optional transcript archive
	Archive struct {
		Enabled bool
		DSN     string
	}

	// Voice configures the TTS collaborator
	Voice struct {
		Enabled bool
		Timeout time.Duration
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings for reveal-record lookups
	Cache struct {
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Engine config
		instance.Engine.BaseURL = getEnvString("ENGINE_BASE_URL", "http://localhost:8000")
		instance.Engine.Timeout = getEnvDuration("ENGINE_TIMEOUT", 30*time.Second)
		instance.Engine.APIKey = getEnvString("ENGINE_API_KEY", "")

		// Stream config
		instance.Stream.PumpInterval = getEnvDuration("PUMP_INTERVAL", 26*time.Millisecond)
		instance.Stream.ChunkSize = getEnvInt("PUMP_CHUNK_SIZE", 3)

		// Bridge config
		instance.Bridge.Enabled = getEnvBool("BRIDGE_ENABLED", true)
		instance.Bridge.Port = getEnvString("BRIDGE_PORT", "8090")
		instance.Bridge.AllowedOrigins = getEnvStringSlice("BRIDGE_ALLOWED_ORIGINS", []string{"*"})
		instance.Bridge.RateLimit = float64(getEnvInt("BRIDGE_RATE_LIMIT", 10))
		instance.Bridge.RateLimitBurst = getEnvInt("BRIDGE_RATE_LIMIT_BURST", 20)

		// Store config
		instance.Store.Backend = getEnvString("STORE_BACKEND", "file")
		instance.Store.FilePath = getEnvString("STORE_FILE_PATH", ".council-session")
		instance.Store.RedisAddr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Store.RedisDB = getEnvInt("REDIS_DB", 0)

		// Archive config
		instance.Archive.DSN = getEnvString("ARCHIVE_DSN", "")
		instance.Archive.Enabled = instance.Archive.DSN != ""

		// Voice config
		instance.Voice.Enabled = getEnvBool("VOICE_ENABLED", false)
		instance.Voice.Timeout = getEnvDuration("VOICE_TIMEOUT", 30*time.Second)

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Cache settings
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 30*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 100)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
