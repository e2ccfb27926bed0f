package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "council-game-demo/client/pkg/errors"
	"council-game-demo/client/pkg/logger"
)

func testLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	return logger.New(cfg)
}

func TestBeginRejectsSecondStream(t *testing.T) {
	m := NewManager(nil, testLogger())

	release := make(chan struct{})
	err := m.Begin("chat", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	assert.True(t, m.Active())

	err = m.Begin("vote", func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStreamActive))

	close(release)
}

func TestReleaseAllowsNextStream(t *testing.T) {
	m := NewManager(nil, testLogger())

	require.NoError(t, m.Begin("chat", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))
	m.Release()
	assert.False(t, m.Active())

	require.NoError(t, m.Begin("vote", func(ctx context.Context) error { return nil }))
	m.Release()
}

func TestCancelActiveStopsOpener(t *testing.T) {
	m := NewManager(nil, testLogger())

	stopped := make(chan struct{})
	require.NoError(t, m.Begin("chat", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}))

	m.CancelActive()
	assert.False(t, m.Active())

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("opener did not observe cancellation")
	}
}

func TestOpenerFailureReportsOnce(t *testing.T) {
	var mu sync.Mutex
	var failures []string
	m := NewManager(func(action string, err error) {
		mu.Lock()
		failures = append(failures, action+": "+err.Error())
		mu.Unlock()
	}, testLogger())

	done := make(chan struct{})
	require.NoError(t, m.Begin("chat", func(ctx context.Context) error {
		defer close(done)
		return errors.New("connection refused")
	}))

	<-done
	// The callback runs on the opener goroutine right after it returns.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.Equal(t, "chat: connection refused", failures[0])
}

func TestCancellationIsNotFailure(t *testing.T) {
	called := make(chan struct{}, 1)
	m := NewManager(func(action string, err error) {
		called <- struct{}{}
	}, testLogger())

	require.NoError(t, m.Begin("chat", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	m.CancelActive()

	select {
	case <-called:
		t.Fatal("cancellation must not report a failure")
	case <-time.After(50 * time.Millisecond):
	}
}
