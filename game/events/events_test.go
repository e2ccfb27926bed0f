package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStreamDelta(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"stream_delta","character_id":"c1","delta":"Hel"}`))
	require.NoError(t, err)

	delta, ok := ev.(StreamDelta)
	require.True(t, ok)
	assert.Equal(t, "c1", delta.CharacterID)
	assert.Equal(t, "Hel", delta.Delta)
}

func TestDecodeStreamEnd(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"stream_end","character_id":"c1","character_name":"Mira","content":"Hello.","tts_text":"Hello","voice_id":"v9","emotion":"wry"}`))
	require.NoError(t, err)

	end, ok := ev.(StreamEnd)
	require.True(t, ok)
	assert.Equal(t, "Hello.", end.Content)
	assert.Equal(t, "Hello", end.TTSText)
	assert.Equal(t, "v9", end.VoiceID)
	assert.Equal(t, "wry", end.Emotion)
}

func TestDecodeNarrationWithPhase(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"narration","content":"Night falls.","phase":"night","round":2}`))
	require.NoError(t, err)

	n, ok := ev.(Narration)
	require.True(t, ok)
	assert.Equal(t, "Night falls.", n.Content)
	assert.Equal(t, "night", n.Phase)
	assert.Equal(t, 2, n.Round)
}

func TestDecodeElimination(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"elimination","character_id":"c3","character_name":"Bram","hidden_role":"Saboteur","faction":"shadow","narration":"The council has spoken."}`))
	require.NoError(t, err)

	el, ok := ev.(Elimination)
	require.True(t, ok)
	assert.Equal(t, "c3", el.CharacterID)
	assert.Equal(t, "Saboteur", el.HiddenRole)
	assert.Equal(t, "shadow", el.Faction)
}

func TestDecodeNightActionPrompt(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"night_action_prompt","action_type":"kill","eligible_targets":[{"id":"c1","name":"Mira"}],"allies":[{"id":"c2","name":"Orin"}]}`))
	require.NoError(t, err)

	prompt, ok := ev.(NightActionPrompt)
	require.True(t, ok)
	assert.Equal(t, "kill", prompt.ActionType)
	require.Len(t, prompt.EligibleTargets, 1)
	assert.Equal(t, "Mira", prompt.EligibleTargets[0].Name)
	require.Len(t, prompt.Allies, 1)
}

func TestDecodeDoneCarriesTension(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"done","phase":"discussion","round":3,"tension":0.7}`))
	require.NoError(t, err)

	done, ok := ev.(Done)
	require.True(t, ok)
	assert.Equal(t, "discussion", done.Phase)
	assert.Equal(t, 3, done.Round)
	require.NotNil(t, done.Tension)
	assert.InDelta(t, 0.7, *done.Tension, 1e-9)
}

func TestDecodeDoneWithoutTension(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"done"}`))
	require.NoError(t, err)

	done, ok := ev.(Done)
	require.True(t, ok)
	assert.Nil(t, done.Tension)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"telemetry","payload":42}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":"done"`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownType)
}

func TestDecodeError(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"error","error":"engine overloaded"}`))
	require.NoError(t, err)

	errEv, ok := ev.(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "engine overloaded", errEv.Message)
}

func TestActorKey(t *testing.T) {
	assert.Equal(t, "c1", ActorKey("c1", "Mira"))
	assert.Equal(t, "Mira", ActorKey("", "Mira"))
	assert.Equal(t, NarratorKey, ActorKey("", ""))
}
