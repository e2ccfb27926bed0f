// Package pump reassembles incrementally-delivered character dialogue.
//
// The engine may deliver one utterance as a burst of stream_start, many
// stream_delta fragments, and a stream_end carrying the authoritative
// final text. Rendering fragments verbatim as they arrive produces
// unreadable bursts, so the pump queues display chunks per actor and
// releases them on a fixed cadence. Per-actor ordering is strict FIFO and
// the seal never happens before the actor's queue drains.
package pump

import (
	"sync"
	"time"

	"council-game-demo/client/game/events"
	"council-game-demo/client/pkg/logger"
)

// Sink receives display mutations. Calls always come from the pump's
// timer goroutines, never from the caller of Start/Push/Finish, so a sink
// may take its own locks freely.
type Sink interface {
	// AppendChunk appends one released chunk to the actor's in-place
	// streaming entry.
	AppendChunk(actorKey, chunk string)
	// Seal finalizes the actor's streaming entry with the end event's
	// authoritative text.
	Seal(actorKey string, end events.StreamEnd)
}

type buffer struct {
	key     string
	queue   []string
	pumping bool
	end     *events.StreamEnd
	timer   *time.Timer
}

// Pump owns one chunk queue per speaking actor.
type Pump struct {
	mu        sync.Mutex
	interval  time.Duration
	chunkSize int
	sink      Sink
	log       *logger.Logger

	buffers map[string]*buffer
	busy    int
	waiters []chan struct{}
}

// New creates a pump releasing chunks every interval, in chunkSize-rune
// chunks for Latin text.
func New(interval time.Duration, chunkSize int, sink Sink, log *logger.Logger) *Pump {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &Pump{
		interval:  interval,
		chunkSize: chunkSize,
		sink:      sink,
		log:       log,
		buffers:   make(map[string]*buffer),
	}
}

// Start opens a fresh buffer for the actor, discarding any prior one.
// The prior buffer's timer is stopped first so it cannot pump twice.
func (p *Pump) Start(actorKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked(actorKey)
	p.buffers[actorKey] = &buffer{key: actorKey}
}

// Push splits delta text into display chunks and queues them, starting
// the actor's timer if it was idle. A delta for an unknown actor opens a
// buffer implicitly.
func (p *Pump) Push(actorKey, delta string) {
	chunks := splitChunks(delta, p.chunkSize)
	if len(chunks) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buffers[actorKey]
	if !ok {
		b = &buffer{key: actorKey}
		p.buffers[actorKey] = b
	}
	b.queue = append(b.queue, chunks...)
	if !b.pumping {
		p.armLocked(b, p.interval)
	}
}

// Finish records the end event for the actor. If the queue has already
// drained the seal fires on the next tick; otherwise it fires from the
// pump step that empties the queue.
func (p *Pump) Finish(actorKey string, end events.StreamEnd) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buffers[actorKey]
	if !ok {
		b = &buffer{key: actorKey}
		p.buffers[actorKey] = b
	}
	b.end = &end
	if !b.pumping {
		// Queue already drained; schedule the seal immediately.
		p.armLocked(b, 0)
	}
}

// Clear tears down every buffer, stopping each timer before discarding
// its queue. No entries are sealed and no sink calls are made.
func (p *Pump) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.buffers {
		p.dropLocked(key)
	}
}

// Idle reports whether no actor has chunks queued or a seal pending.
func (p *Pump) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy == 0
}

// Drained returns a channel closed once every buffer is idle. If the pump
// is already idle the channel is closed on return.
func (p *Pump) Drained() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	if p.busy == 0 {
		close(ch)
		return ch
	}
	p.waiters = append(p.waiters, ch)
	return ch
}

// armLocked starts the buffer's timer. Caller holds p.mu.
func (p *Pump) armLocked(b *buffer, d time.Duration) {
	b.pumping = true
	p.busy++
	b.timer = time.AfterFunc(d, func() { p.step(b) })
}

// dropLocked removes an actor's buffer, stopping its timer. Caller holds
// p.mu.
func (p *Pump) dropLocked(actorKey string) {
	b, ok := p.buffers[actorKey]
	if !ok {
		return
	}
	if b.pumping {
		b.timer.Stop()
		p.settleLocked()
	}
	delete(p.buffers, actorKey)
}

// settleLocked decrements the busy count and wakes drain waiters at zero.
// Caller holds p.mu.
func (p *Pump) settleLocked() {
	p.busy--
	if p.busy == 0 {
		for _, ch := range p.waiters {
			close(ch)
		}
		p.waiters = nil
	}
}

// step is one pump tick for a single actor: release one chunk, then
// either re-arm, go idle, or seal. The chunk is delivered before the
// next tick is armed, so chunks reach the sink in queue order even if
// this goroutine stalls mid-delivery.
func (p *Pump) step(b *buffer) {
	p.mu.Lock()

	// The buffer may have been replaced or cleared after this tick was
	// scheduled; the remover already settled the busy count.
	if p.buffers[b.key] != b {
		p.mu.Unlock()
		return
	}

	var chunk string
	if len(b.queue) > 0 {
		chunk = b.queue[0]
		b.queue = b.queue[1:]
	}
	p.mu.Unlock()

	if chunk != "" {
		p.sink.AppendChunk(b.key, chunk)
	}

	p.mu.Lock()
	if p.buffers[b.key] != b {
		p.mu.Unlock()
		return
	}

	var seal *events.StreamEnd
	switch {
	case len(b.queue) > 0:
		b.timer = time.AfterFunc(p.interval, func() { p.step(b) })
	case b.end != nil:
		seal = b.end
		delete(p.buffers, b.key)
		b.pumping = false
		p.settleLocked()
	default:
		// Drained with no end event yet: go idle without sealing.
		b.pumping = false
		p.settleLocked()
	}
	p.mu.Unlock()

	if seal != nil {
		p.sink.Seal(b.key, *seal)
	}
}
