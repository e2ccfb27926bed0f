// Package session implements the client-side game controller: it owns
// all mutable game state, interprets the engine's event stream, and
// exposes read-only snapshots plus a notification bus to presentation
// collaborators.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"council-game-demo/client/game/api"
	"council-game-demo/client/game/events"
	"council-game-demo/client/game/phase"
	"council-game-demo/client/game/pump"
	"council-game-demo/client/game/store"
	"council-game-demo/client/game/stream"
	"council-game-demo/client/pkg/cache"
	"council-game-demo/client/pkg/config"
	"council-game-demo/client/pkg/logger"
	"council-game-demo/client/shared/observability"
)

// Archiver persists sealed transcript entries. Implementations must be
// safe for concurrent use; a nil Archiver disables archiving.
type Archiver interface {
	SaveEntry(sessionID string, entry ChatEntry) error
}

// Controller is the event-stream state machine for one game session.
// All mutable state is owned exclusively by the controller; presentation
// layers receive snapshots and issue commands, never mutate directly.
type Controller struct {
	mu  sync.Mutex
	log *logger.Logger
	cfg *config.Config

	api     *api.Client
	sse     *stream.Client
	streams *stream.Manager
	pump    *pump.Pump
	store   store.Store
	reveals *cache.Cache
	archive Archiver

	// Session state. Guarded by mu.
	sessionID     string
	worldTitle    string
	worldSetting  string
	characters    []*Character
	charIndex     map[string]*Character
	machine       *phase.Machine
	entries       []*ChatEntry
	streamEntries map[string]*ChatEntry
	thinking      map[string]*ChatEntry
	vote          VoteState
	playerRole    *PlayerRole
	ghostMode     bool
	factionReveal []events.RevealedCharacter
	nightPrompt   *NightPrompt
	nightLog      []NightLogEntry
	reveal        *RevealCard
	investigation string
	responders    []string
	tension       float64
	winner        string
	errMsg        string
	pendingIntent func()
	terminalSeen  bool
	streamGen     uint64

	listenerMu sync.Mutex
	listeners  []func(Notification)

	eventsCounter     metric.Int64Counter
	streamsCounter    metric.Int64Counter
	utterancesCounter metric.Int64Counter
}

// New creates a controller wired to the engine at cfg.Engine.BaseURL.
func New(cfg *config.Config, st store.Store, archive Archiver, log *logger.Logger) *Controller {
	c := &Controller{
		log:     log,
		cfg:     cfg,
		api:     api.NewClient(cfg.Engine.BaseURL, cfg.Engine.APIKey, cfg.Engine.Timeout, log),
		sse:     stream.NewClient(cfg.Engine.BaseURL, cfg.Engine.APIKey, cfg.Engine.Timeout, log),
		store:   st,
		reveals: cache.NewCacheWith(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize),
		archive: archive,
		machine: phase.NewMachine(),
	}
	c.streams = stream.NewManager(c.onStreamFailure, log)
	c.pump = pump.New(cfg.Stream.PumpInterval, cfg.Stream.ChunkSize, pumpSink{c}, log)
	c.resetStateLocked()

	meter := observability.Meter("council.client")
	c.eventsCounter, _ = meter.Int64Counter("council_events_total")
	c.streamsCounter, _ = meter.Int64Counter("council_streams_total")
	c.utterancesCounter, _ = meter.Int64Counter("council_utterances_total")

	return c
}

// OnNotify registers a listener for outbound notifications. Listeners
// are invoked outside the controller lock and may call back into it.
func (c *Controller) OnNotify(fn func(Notification)) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// StreamActive reports whether a network stream currently owns the
// connection.
func (c *Controller) StreamActive() bool {
	return c.streams.Active()
}

func (c *Controller) notify(notes []Notification) {
	if len(notes) == 0 {
		return
	}
	c.listenerMu.Lock()
	listeners := make([]func(Notification), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.Unlock()

	for _, n := range notes {
		for _, fn := range listeners {
			fn(n)
		}
	}
}

// onStreamFailure converts a pre-event transport failure into a
// synthesized error event so callers have one uniform error channel.
func (c *Controller) onStreamFailure(action string, err error) {
	c.Apply(events.ErrorEvent{Message: err.Error()})
}

// beginStream opens one engine stream for a triggering action and feeds
// every decoded event to the interpreter.
func (c *Controller) beginStream(action, path string, body any) error {
	return c.streams.Begin(action, func(ctx context.Context) error {
		c.mu.Lock()
		c.terminalSeen = false
		c.mu.Unlock()

		c.streamsCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("action", action)))

		start := time.Now()
		count := 0
		err := c.sse.Open(ctx, path, body, func(ev events.Event) {
			count++
			c.Apply(ev)
		})
		c.log.LogStream(action, count, time.Since(start))
		if err != nil {
			return err
		}

		// A stream that closed without a terminal event still gives up
		// ownership, otherwise no further action could ever open one.
		c.mu.Lock()
		terminal := c.terminalSeen
		c.mu.Unlock()
		if !terminal {
			c.streams.Release()
		}
		return nil
	})
}

// appendEntryLocked appends a transcript entry and archives it if it is
// already sealed. Caller holds c.mu.
func (c *Controller) appendEntryLocked(entry *ChatEntry) *ChatEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Phase = c.machine.Current()
	entry.Round = c.machine.Round()
	c.entries = append(c.entries, entry)
	if !entry.Streaming && !entry.Pending {
		c.archiveEntry(*entry)
	}
	return entry
}

func (c *Controller) archiveEntry(entry ChatEntry) {
	if c.archive == nil {
		return
	}
	sessionID := c.sessionID
	go func() {
		if err := c.archive.SaveEntry(sessionID, entry); err != nil {
			c.log.Warn("failed to archive entry", "error", err.Error(), "entry_id", entry.ID)
		}
	}()
}

// resetStateLocked returns every state slice to its initial value.
// Caller holds c.mu.
func (c *Controller) resetStateLocked() {
	c.sessionID = ""
	c.worldTitle = ""
	c.worldSetting = ""
	c.characters = nil
	c.charIndex = make(map[string]*Character)
	c.machine.Reset()
	c.entries = nil
	c.streamEntries = make(map[string]*ChatEntry)
	c.thinking = make(map[string]*ChatEntry)
	c.vote = VoteState{Tally: make(map[string]int)}
	c.playerRole = nil
	c.ghostMode = false
	c.factionReveal = nil
	c.nightPrompt = nil
	c.nightLog = nil
	c.reveal = nil
	c.investigation = ""
	c.responders = nil
	c.tension = 0
	c.winner = ""
	c.errMsg = ""
	c.pendingIntent = nil
	c.terminalSeen = false
	// Invalidate any stream finisher still parked on a drain; its
	// terminal event must not touch the fresh state.
	c.streamGen++
}

// resetVoteLocked clears per-round vote state. Caller holds c.mu.
func (c *Controller) resetVoteLocked() {
	c.vote = VoteState{Tally: make(map[string]int)}
}

// applyPhaseLocked runs a transition through the phase machine and
// executes the reset effects it emits. Caller holds c.mu; returned
// notifications must be emitted after unlock.
func (c *Controller) applyPhaseLocked(next phase.Phase, round int) []Notification {
	res := c.machine.Apply(next, round)
	if res.Deferred {
		c.log.Debug("phase transition deferred behind reveal", "next", string(next))
		return nil
	}
	if !res.Applied {
		return nil
	}
	return c.phaseAppliedLocked(res)
}

func (c *Controller) phaseAppliedLocked(res phase.Result) []Notification {
	for _, effect := range res.Effects {
		switch effect {
		case phase.EffectResetVote:
			c.resetVoteLocked()
		case phase.EffectClearNightPrompt:
			c.nightPrompt = nil
		}
	}
	return []Notification{{
		Kind:  NotifyPhase,
		Phase: c.machine.Current(),
		Round: c.machine.Round(),
	}}
}

// setTensionLocked updates the tension slot. Caller holds c.mu.
func (c *Controller) setTensionLocked(tension *float64) []Notification {
	if tension == nil || *tension == c.tension {
		return nil
	}
	c.tension = *tension
	return []Notification{{Kind: NotifyTension, Tension: c.tension}}
}

// pumpSink routes pump output into the controller. Its methods are only
// ever called from the pump's timer goroutines.
type pumpSink struct {
	c *Controller
}

// AppendChunk appends one released chunk to the actor's streaming entry.
func (s pumpSink) AppendChunk(actorKey, chunk string) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.streamEntries[actorKey]; ok {
		entry.Content += chunk
	}
}

// Seal finalizes the actor's streaming entry with the end event's
// authoritative text and fires the utterance notification exactly once.
func (s pumpSink) Seal(actorKey string, end events.StreamEnd) {
	c := s.c
	c.mu.Lock()
	entry, ok := c.streamEntries[actorKey]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.streamEntries, actorKey)

	if end.Content != "" {
		entry.Content = end.Content
	}
	entry.Streaming = false
	if end.CharacterName != "" && entry.ActorName == "" {
		entry.ActorName = end.CharacterName
	}
	if end.Emotion != "" {
		entry.Emotion = end.Emotion
	}
	if ch, found := c.charIndex[entry.ActorID]; found && ch.IsEliminated {
		// A line sealed after its speaker was eliminated is the
		// character's final words.
		entry.LastWords = true
	}

	sealed := *entry
	c.archiveEntry(sealed)
	c.mu.Unlock()

	c.utterancesCounter.Add(context.Background(), 1)

	spoken := end.TTSText
	if spoken == "" {
		spoken = sealed.Content
	}
	c.notify([]Notification{{
		Kind:       NotifyUtterance,
		ActorKey:   actorKey,
		ActorName:  sealed.ActorName,
		Text:       sealed.Content,
		SpokenText: spoken,
		VoiceID:    end.VoiceID,
		Emotion:    sealed.Emotion,
	}})
}
