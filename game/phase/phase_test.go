package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, ok := Parse("discussion")
	assert.True(t, ok)
	assert.Equal(t, Discussion, p)

	_, ok = Parse("limbo")
	assert.False(t, ok)
}

func TestNewMachineStartsAtUpload(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, Upload, m.Current())
	assert.Equal(t, 1, m.Round())
}

func TestApplySimpleTransition(t *testing.T) {
	m := NewMachine()
	res := m.Apply(Lobby, 0)
	assert.True(t, res.Applied)
	assert.Equal(t, Lobby, m.Current())
	assert.Equal(t, 1, m.Round())
}

func TestDiscussionReentryOpensNewRound(t *testing.T) {
	m := NewMachine()
	m.Restore(Night, 1)

	res := m.Apply(Discussion, 0)
	require.True(t, res.Applied)
	assert.Equal(t, 2, m.Round())
	assert.Contains(t, res.Effects, EffectResetVote)
	assert.Contains(t, res.Effects, EffectClearNightPrompt)
}

func TestDiscussionReentryTakesEventRound(t *testing.T) {
	m := NewMachine()
	m.Restore(Reveal, 2)

	res := m.Apply(Discussion, 5)
	require.True(t, res.Applied)
	assert.Equal(t, 5, m.Round())
}

func TestTieRevoteClearsVoteState(t *testing.T) {
	m := NewMachine()
	m.Restore(Voting, 2)

	res := m.Apply(Voting, 0)
	require.True(t, res.Applied)
	assert.Equal(t, Voting, m.Current())
	assert.Equal(t, []Effect{EffectResetVote}, res.Effects)
}

func TestNightDeferredBehindReveal(t *testing.T) {
	m := NewMachine()
	m.Restore(Voting, 1)
	m.OpenReveal()
	m.Apply(Reveal, 0)

	res := m.Apply(Night, 0)
	assert.True(t, res.Deferred)
	assert.False(t, res.Applied)
	assert.Equal(t, Reveal, m.Current())
	require.NotNil(t, m.Pending())
	assert.Equal(t, Night, m.Pending().Next)
}

func TestDismissRevealAppliesPendingOnce(t *testing.T) {
	m := NewMachine()
	m.Restore(Voting, 1)
	m.OpenReveal()
	m.Apply(Reveal, 0)
	m.Apply(Night, 0)

	res := m.DismissReveal()
	assert.True(t, res.Applied)
	assert.Equal(t, Night, m.Current())
	assert.Nil(t, m.Pending())
	assert.False(t, m.RevealOpen())

	// A second dismiss finds nothing to apply.
	res = m.DismissReveal()
	assert.False(t, res.Applied)
	assert.Equal(t, Night, m.Current())
}

func TestSecondDeferralOverwritesPending(t *testing.T) {
	m := NewMachine()
	m.Restore(Voting, 1)
	m.OpenReveal()
	m.Apply(Reveal, 0)

	m.Apply(Night, 2)
	m.Apply(Night, 3)
	require.NotNil(t, m.Pending())
	assert.Equal(t, 3, m.Pending().Round)
}

func TestDismissRevealWithoutPending(t *testing.T) {
	m := NewMachine()
	m.Restore(Reveal, 1)
	m.OpenReveal()

	res := m.DismissReveal()
	assert.False(t, res.Applied)
	assert.False(t, m.RevealOpen())
	assert.Equal(t, Reveal, m.Current())
}

func TestEndedIsTerminal(t *testing.T) {
	m := NewMachine()
	m.Restore(Discussion, 3)
	m.Apply(Ended, 0)

	res := m.Apply(Discussion, 0)
	assert.False(t, res.Applied)
	assert.False(t, res.Deferred)
	assert.Equal(t, Ended, m.Current())
}

func TestResetDiscardsPending(t *testing.T) {
	m := NewMachine()
	m.Restore(Reveal, 2)
	m.OpenReveal()
	m.Apply(Night, 0)

	m.Reset()
	assert.Equal(t, Upload, m.Current())
	assert.Equal(t, 1, m.Round())
	assert.Nil(t, m.Pending())
	assert.False(t, m.RevealOpen())
}

func TestNormalizeRecovered(t *testing.T) {
	assert.Equal(t, Discussion, NormalizeRecovered(Intro))
	assert.Equal(t, Night, NormalizeRecovered(Night))
}
