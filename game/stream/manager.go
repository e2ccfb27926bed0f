package stream

import (
	"context"
	"errors"
	"sync"

	apperrors "council-game-demo/client/pkg/errors"
	"council-game-demo/client/pkg/logger"
)

// Opener runs one network stream to completion. It must return when ctx
// is cancelled.
type Opener func(ctx context.Context) error

// Manager enforces the at-most-one-active-stream invariant and holds the
// single cancellable handle to the current stream.
//
// The manager does not interpret event contents. Ownership of the active
// flag is released explicitly by the controller (on done or error events)
// or by cancellation; a transport failure before either is reported
// through the onFailure callback so the controller can synthesize a
// uniform error event.
type Manager struct {
	mu        sync.Mutex
	active    bool
	cancel    context.CancelFunc
	onFailure func(action string, err error)
	log       *logger.Logger
}

// NewManager creates a stream manager. onFailure, if non-nil, is invoked
// when an opener fails for a reason other than cancellation.
func NewManager(onFailure func(action string, err error), log *logger.Logger) *Manager {
	return &Manager{onFailure: onFailure, log: log}
}

// Active reports whether a stream currently owns the connection.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Begin opens one stream. It is rejected with a STREAM_ACTIVE error if a
// stream is already active. The opener runs on its own goroutine; every
// decoded event must be fed to the interpreter by the opener's callback.
func (m *Manager) Begin(action string, opener Opener) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		m.log.Debug("stream rejected, another is active", "action", action)
		return apperrors.NewStreamActiveError(action)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.active = true
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		err := opener(ctx)
		cancel()
		if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			m.log.LogError(err, "stream failed", "action", action)
			if m.onFailure != nil {
				m.onFailure(action, err)
			}
		}
	}()
	return nil
}

// CancelActive aborts the underlying transport and releases ownership.
// Cancellation is intentional and never surfaces as an error.
func (m *Manager) CancelActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.active = false
}

// Release clears the active flag without aborting the transport. Called
// by the controller once a stream's terminal event is fully processed.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.active = false
}
