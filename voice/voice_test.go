package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-game-demo/client/game/session"
	"council-game-demo/client/pkg/config"
	"council-game-demo/client/pkg/logger"
)

type capturePlayer struct {
	mu     sync.Mutex
	clips  [][]byte
	actors []string
	played chan struct{}
}

func newCapturePlayer() *capturePlayer {
	return &capturePlayer{played: make(chan struct{}, 8)}
}

func (p *capturePlayer) Play(ctx context.Context, actorKey string, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.clips = append(p.clips, audio)
	p.actors = append(p.actors, actorKey)
	p.mu.Unlock()
	p.played <- struct{}{}
	return nil
}

func testSpeaker(t *testing.T, engineURL string, player Player) *Speaker {
	t.Helper()
	cfg := &config.Config{}
	cfg.Engine.BaseURL = engineURL
	cfg.Voice.Timeout = 2 * time.Second

	logCfg := logger.DefaultConfig()
	logCfg.Level = "error"
	return NewSpeaker(cfg, player, logger.New(logCfg))
}

func TestSpeakerFetchesAndPlays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/voice/tts/stream", r.URL.Path)
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	player := newCapturePlayer()
	s := testSpeaker(t, srv.URL, player)

	audio, err := s.fetch(context.Background(), "Hello there.", "v1", "calm")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}

func TestSpeakerSpeaksUtterance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("clip-bytes"))
	}))
	defer srv.Close()

	player := newCapturePlayer()
	s := testSpeaker(t, srv.URL, player)

	s.speak(session.Notification{
		Kind:       session.NotifyUtterance,
		ActorKey:   "c1",
		SpokenText: "We should talk about last night.",
		VoiceID:    "v1",
		Emotion:    "wary",
	})

	select {
	case <-player.played:
	case <-time.After(time.Second):
		t.Fatal("clip was never played")
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	require.Len(t, player.clips, 1)
	assert.Equal(t, []byte("clip-bytes"), player.clips[0])
	assert.Equal(t, []string{"c1"}, player.actors)
	assert.False(t, s.Playing())
}

func TestSpeakerInterruptsCurrentClip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("clip"))
	}))
	defer srv.Close()

	player := newCapturePlayer()
	s := testSpeaker(t, srv.URL, player)

	first := s.acquire()
	assert.True(t, s.Playing())

	// A second utterance takes the slot and cancels the first.
	s.acquire()
	assert.Error(t, first.Err())

	s.Stop()
	assert.False(t, s.Playing())
}

func TestSpeakerFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := testSpeaker(t, srv.URL, newCapturePlayer())
	_, err := s.fetch(context.Background(), "Hello.", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNullPlayerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NullPlayer{}.Play(ctx, "c1", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
