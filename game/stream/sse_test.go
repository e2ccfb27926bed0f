package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-game-demo/client/game/events"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
}

func TestOpenDecodesEventsInOrder(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"type":"thinking","character_id":"c1"}`,
		`data: {"type":"stream_start","character_id":"c1"}`,
		`data: {"type":"stream_delta","character_id":"c1","delta":"Hi"}`,
		`data: {"type":"done","phase":"discussion","round":1}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, testLogger())

	var got []events.Kind
	err := c.Open(context.Background(), "/stream", nil, func(ev events.Event) {
		got = append(got, ev.EventKind())
	})
	require.NoError(t, err)
	assert.Equal(t, []events.Kind{
		events.KindThinking,
		events.KindStreamStart,
		events.KindStreamDelta,
		events.KindDone,
	}, got)
}

func TestOpenDropsMalformedAndUnknownLines(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"type":"thinking","character_id":"c1"}`,
		`data: {"broken json`,
		`data: {"type":"hologram"}`,
		`: heartbeat comment`,
		`data: {"type":"done"}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, testLogger())

	var got []events.Kind
	err := c.Open(context.Background(), "/stream", nil, func(ev events.Event) {
		got = append(got, ev.EventKind())
	})
	require.NoError(t, err)
	assert.Equal(t, []events.Kind{events.KindThinking, events.KindDone}, got)
}

func TestOpenSendsAuthAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"done\"}\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, testLogger())
	err := c.Open(context.Background(), "/stream", map[string]string{"message": "hi"}, func(events.Event) {})
	require.NoError(t, err)
}

func TestOpenNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, testLogger())
	err := c.Open(context.Background(), "/stream", nil, func(events.Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenCancellationIsNotError(t *testing.T) {
	var wg sync.WaitGroup
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"thinking\",\"character_id\":\"c1\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, "", time.Second, testLogger())

	wg.Add(1)
	var openErr error
	go func() {
		defer wg.Done()
		openErr = c.Open(ctx, "/stream", nil, func(ev events.Event) {
			cancel()
		})
	}()
	wg.Wait()
	assert.NoError(t, openErr)
}
