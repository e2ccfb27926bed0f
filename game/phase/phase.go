// Package phase owns the game phase lifecycle and the single-slot
// deferral used while a reveal card is open.
package phase

// Phase is one stage of the session lifecycle. Upload and Parsing are
// pre-session; Ended is terminal.
type Phase string

const (
	Upload     Phase = "upload"
	Parsing    Phase = "parsing"
	Lobby      Phase = "lobby"
	HowToPlay  Phase = "howtoplay"
	Intro      Phase = "intro"
	Discussion Phase = "discussion"
	Voting     Phase = "voting"
	Reveal     Phase = "reveal"
	Night      Phase = "night"
	Ended      Phase = "ended"
)

// Parse maps a wire phase string to a Phase. Unknown strings are rejected
// so a garbled event cannot wedge the machine in a nameless state.
func Parse(s string) (Phase, bool) {
	switch Phase(s) {
	case Upload, Parsing, Lobby, HowToPlay, Intro, Discussion, Voting, Reveal, Night, Ended:
		return Phase(s), true
	}
	return "", false
}

// Effect is a reset instruction emitted alongside a transition. The
// controller executes effects explicitly instead of inferring them from
// the phase value.
type Effect int

const (
	// EffectResetVote clears per-round vote state: selected target,
	// hasVoted flag, and the running tally.
	EffectResetVote Effect = iota + 1
	// EffectClearNightPrompt drops a night action prompt the round has
	// advanced past.
	EffectClearNightPrompt
)

// Result describes what Apply did with a requested transition.
type Result struct {
	Applied  bool
	Deferred bool
	Effects  []Effect
}

// Transition is a phase change known but withheld while a reveal card
// blocks it.
type Transition struct {
	Next  Phase
	Round int
}

// Machine tracks the current phase and round. It is not self-locking; the
// owning controller serializes access.
type Machine struct {
	phase      Phase
	round      int
	revealOpen bool
	pending    *Transition
}

// NewMachine returns a machine in the pre-session upload phase.
func NewMachine() *Machine {
	return &Machine{phase: Upload, round: 1}
}

// Current returns the current phase.
func (m *Machine) Current() Phase { return m.phase }

// Round returns the current round number.
func (m *Machine) Round() int { return m.round }

// RevealOpen reports whether a reveal card is blocking transitions.
func (m *Machine) RevealOpen() bool { return m.revealOpen }

// Pending returns the withheld transition, if any.
func (m *Machine) Pending() *Transition { return m.pending }

// OpenReveal marks a blocking reveal card as open.
func (m *Machine) OpenReveal() { m.revealOpen = true }

// Restore forces the machine into a recovered phase and round without
// transition checks. Used only by session recovery.
func (m *Machine) Restore(p Phase, round int) {
	m.phase = p
	if round > 0 {
		m.round = round
	}
	m.revealOpen = false
	m.pending = nil
}

// Apply transitions to next, taking round when the event carries one
// (round <= 0 means unchanged). A night transition requested while a
// reveal card is open is captured instead and applied by DismissReveal;
// a second deferral before the first is applied overwrites the slot.
// Ended is terminal: every later request is ignored.
func (m *Machine) Apply(next Phase, round int) Result {
	if m.phase == Ended {
		return Result{}
	}
	if m.revealOpen && next == Night {
		m.pending = &Transition{Next: next, Round: round}
		return Result{Deferred: true}
	}
	return m.apply(next, round)
}

// DismissReveal closes the reveal card and applies the withheld
// transition exactly once, if one exists.
func (m *Machine) DismissReveal() Result {
	m.revealOpen = false
	if m.pending == nil {
		return Result{}
	}
	p := *m.pending
	m.pending = nil
	if m.phase == Ended {
		return Result{}
	}
	return m.apply(p.Next, p.Round)
}

// Reset returns the machine to its initial state, discarding any pending
// transition.
func (m *Machine) Reset() {
	m.phase = Upload
	m.round = 1
	m.revealOpen = false
	m.pending = nil
}

func (m *Machine) apply(next Phase, round int) Result {
	res := Result{Applied: true}
	prev := m.phase

	switch {
	case next == Discussion && (prev == Reveal || prev == Night):
		// New round opens on re-entering discussion.
		if round > 0 {
			m.round = round
		} else {
			m.round++
		}
		res.Effects = append(res.Effects, EffectResetVote, EffectClearNightPrompt)
	case next == Voting && prev == Voting:
		// Tie re-vote: remain in voting, clear vote state.
		res.Effects = append(res.Effects, EffectResetVote)
		if round > 0 {
			m.round = round
		}
	default:
		if round > 0 {
			m.round = round
		}
	}

	m.phase = next
	return res
}

// NormalizeRecovered collapses phases that cannot be re-entered from a
// snapshot. The pre-game cinematic cannot replay, so a recovered intro
// lands directly in discussion.
func NormalizeRecovered(p Phase) Phase {
	if p == Intro {
		return Discussion
	}
	return p
}
