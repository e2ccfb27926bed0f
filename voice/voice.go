// Package voice turns finalized utterances into speech audio. It
// subscribes to the controller's notification bus, fetches audio from
// the engine's TTS proxy, and hands the bytes to a Player. Playback
// itself stays outside this process.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"council-game-demo/client/game/session"
	"council-game-demo/client/pkg/config"
	"council-game-demo/client/pkg/logger"
)

// Player receives fetched speech audio. Play blocks until the clip has
// been consumed or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, actorKey string, audio []byte) error
}

// Speaker fetches and plays one utterance at a time. A new utterance
// interrupts the one currently playing; characters never talk over
// each other.
type Speaker struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	player     Player
	log        *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	playing bool
}

// NewSpeaker creates a speaker aimed at the engine's TTS proxy.
func NewSpeaker(cfg *config.Config, player Player, log *logger.Logger) *Speaker {
	return &Speaker{
		baseURL:    cfg.Engine.BaseURL,
		apiKey:     cfg.Engine.APIKey,
		httpClient: &http.Client{Timeout: cfg.Voice.Timeout},
		player:     player,
		log:        log,
	}
}

// Attach subscribes the speaker to the controller's utterance
// notifications.
func (s *Speaker) Attach(c *session.Controller) {
	c.OnNotify(func(n session.Notification) {
		if n.Kind != session.NotifyUtterance || n.SpokenText == "" {
			return
		}
		go s.speak(n)
	})
}

func (s *Speaker) speak(n session.Notification) {
	ctx := s.acquire()

	audio, err := s.fetch(ctx, n.SpokenText, n.VoiceID, n.Emotion)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("tts fetch failed", "actor", n.ActorKey, "error", err.Error())
		}
		s.release()
		return
	}

	if err := s.player.Play(ctx, n.ActorKey, audio); err != nil && ctx.Err() == nil {
		s.log.Warn("playback failed", "actor", n.ActorKey, "error", err.Error())
	}
	s.release()
}

// acquire takes the single playing slot, interrupting the current clip.
func (s *Speaker) acquire() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.playing = true
	return ctx
}

func (s *Speaker) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

// Playing reports whether a clip currently holds the slot.
func (s *Speaker) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Stop interrupts the current clip, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.playing = false
}

func (s *Speaker) fetch(ctx context.Context, text, voiceID, emotion string) ([]byte, error) {
	requestBody := struct {
		Text    string `json:"text"`
		VoiceID string `json:"voice_id,omitempty"`
		Emotion string `json:"emotion,omitempty"`
	}{
		Text:    text,
		VoiceID: voiceID,
		Emotion: emotion,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling TTS request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/api/voice/tts/stream", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating TTS request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making TTS request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TTS request failed with status code %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return io.ReadAll(resp.Body)
}

// NullPlayer discards audio after a short simulated playback delay. It
// keeps the speaker's interrupt semantics observable without an audio
// device.
type NullPlayer struct{}

func (NullPlayer) Play(ctx context.Context, actorKey string, audio []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil
	}
}
