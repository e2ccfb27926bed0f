package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-game-demo/client/pkg/logger"
)

func testLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	return logger.New(cfg)
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "secret", 2*time.Second, testLogger())
}

func TestCreateFromText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/game/create", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "A doomed space station.", r.PostForm.Get("text"))
		assert.Equal(t, "5", r.PostForm.Get("num_characters"))

		fmt.Fprint(w, `{"session_id":"s1","world_title":"Station Echo","characters":[{"id":"c1","name":"Mira"}],"phase":"lobby"}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv).CreateFromText(context.Background(), "A doomed space station.", 5)
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "Station Echo", resp.WorldTitle)
	require.Len(t, resp.Characters, 1)
	assert.Equal(t, "Mira", resp.Characters[0].Name)
}

func TestCreateFromFileSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "world.txt", header.Filename)
		assert.Equal(t, "3", r.FormValue("num_characters"))

		fmt.Fprint(w, `{"session_id":"s2"}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv).CreateFromFile(context.Background(), "world.txt", []byte("once upon a station"), 3)
	require.NoError(t, err)
	assert.Equal(t, "s2", resp.SessionID)
}

func TestStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/game/s1/start", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"phase":"intro","round":1,"narration":"Welcome.","has_player_role":true}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv).Start(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "intro", resp.Phase)
	assert.True(t, resp.HasPlayerRole)
}

func TestFullStateRequestsCompleteHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/game/s1/state", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("full"))
		fmt.Fprint(w, `{"session_id":"s1","phase":"discussion","round":2,"messages":[{"speaker_id":"player","content":"hello"}]}`)
	}))
	defer srv.Close()

	snap, err := newTestClient(srv).FullState(context.Background(), "s1", true)
	require.NoError(t, err)
	assert.Equal(t, "discussion", snap.Phase)
	assert.Equal(t, 2, snap.Round)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "player", snap.Messages[0].SpeakerID)
}

func TestReveal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/game/s1/reveal/c3", r.URL.Path)
		fmt.Fprint(w, `{"id":"c3","hidden_role":"Saboteur","faction":"shadow","hidden_knowledge":["knows the codes"]}`)
	}))
	defer srv.Close()

	rec, err := newTestClient(srv).Reveal(context.Background(), "s1", "c3")
	require.NoError(t, err)
	assert.Equal(t, "Saboteur", rec.HiddenRole)
	assert.Equal(t, []string{"knows the codes"}, rec.HiddenKnowledge)
}

func TestErrorEnvelopeSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"session not found"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Start(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
	assert.Contains(t, err.Error(), "404")
}
