package session

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-game-demo/client/game/phase"
	"council-game-demo/client/game/store"
)

const recoverySnapshot = `{
	"session_id": "s1",
	"phase": "intro",
	"round": 2,
	"world_title": "Station Echo",
	"world_setting": "A doomed station.",
	"characters": [
		{"id":"c1","name":"Mira","public_role":"Engineer"},
		{"id":"c2","name":"Orin","public_role":"Medic"},
		{"id":"c3","name":"Bram","public_role":"Captain"}
	],
	"eliminated": ["c3"],
	"messages": [
		{"speaker_id":"narrator","speaker_name":"","content":"The council convenes.","phase":"discussion","round":1},
		{"speaker_id":"player","speaker_name":"You","content":"Who do we trust?","phase":"discussion","round":1},
		{"speaker_id":"c1","speaker_name":"Mira","content":"Not the captain.","phase":"discussion","round":1}
	],
	"vote_results": [
		{"tally":{"Bram":2,"Mira":1},"is_tie":false,"eliminated_id":"c3","eliminated_name":"Bram"}
	],
	"player_role": {"hidden_role":"Investigator","faction":"crew","win_condition":"find the saboteur"},
	"night_action_prompt": {"action_type":"investigate","eligible_targets":[{"id":"c1","name":"Mira"}]}
}`

func newRecoveryController(t *testing.T, e *engineStub) (*Controller, store.Store) {
	t.Helper()
	cfg := testConfig(e.srv.URL)
	st := store.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	return New(cfg, st, nil, testLogger()), st
}

func TestRecoverSessionRebuildsState(t *testing.T) {
	e := newEngineStub(t)
	e.mux.HandleFunc("/api/game/s1/state", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("full"))
		fmt.Fprint(w, recoverySnapshot)
	})
	c, st := newRecoveryController(t, e)
	require.NoError(t, st.Set(store.KeySessionID, "s1"))

	recovered, err := c.RecoverSession(context.Background())
	require.NoError(t, err)
	require.True(t, recovered)

	snap := c.Snapshot()
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, "Station Echo", snap.WorldTitle)
	// A recovered intro cannot replay; it lands in discussion.
	assert.Equal(t, phase.Discussion, snap.Phase)
	assert.Equal(t, 2, snap.Round)

	require.Len(t, snap.Entries, 3)
	assert.Equal(t, RoleNarrator, snap.Entries[0].Role)
	assert.Equal(t, RoleUser, snap.Entries[1].Role)
	assert.Equal(t, RoleCharacter, snap.Entries[2].Role)
	assert.Equal(t, "c1", snap.Entries[2].ActorID)
	assert.Equal(t, phase.Discussion, snap.Entries[1].Phase)

	assert.True(t, snap.Characters[2].IsEliminated)

	require.NotNil(t, snap.PlayerRole)
	assert.Equal(t, "Investigator", snap.PlayerRole.HiddenRole)
	assert.False(t, snap.GhostMode)

	require.NotNil(t, snap.NightPrompt)
	assert.Equal(t, "investigate", snap.NightPrompt.ActionType)

	assert.Equal(t, 2, snap.Vote.Tally["Bram"])
	assert.True(t, snap.Vote.Finalized)
}

func TestRecoverSessionNothingPersisted(t *testing.T) {
	e := newEngineStub(t)
	c, _ := newRecoveryController(t, e)

	recovered, err := c.RecoverSession(context.Background())
	require.NoError(t, err)
	assert.False(t, recovered)
	assert.Equal(t, phase.Upload, c.Snapshot().Phase)
}

func TestRecoverSessionDiscardsStaleID(t *testing.T) {
	e := newEngineStub(t)
	e.mux.HandleFunc("/api/game/gone/state", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
	})
	c, st := newRecoveryController(t, e)
	require.NoError(t, st.Set(store.KeySessionID, "gone"))

	recovered, err := c.RecoverSession(context.Background())
	require.NoError(t, err)
	assert.False(t, recovered)

	id, err := st.Get(store.KeySessionID)
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestRecoverSessionRestoresEndedGame(t *testing.T) {
	e := newEngineStub(t)
	e.mux.HandleFunc("/api/game/s1/state", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"session_id":"s1","phase":"ended","round":4,"winner":"shadow","characters":[],"messages":[]}`)
	})
	c, st := newRecoveryController(t, e)
	require.NoError(t, st.Set(store.KeySessionID, "s1"))

	recovered, err := c.RecoverSession(context.Background())
	require.NoError(t, err)
	require.True(t, recovered)

	snap := c.Snapshot()
	assert.Equal(t, phase.Ended, snap.Phase)
	assert.Equal(t, "shadow", snap.Winner)
}

func TestRecoverIntoVotingClearsFinalizedTally(t *testing.T) {
	e := newEngineStub(t)
	e.mux.HandleFunc("/api/game/s1/state", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"session_id":"s1","phase":"voting","round":2,"characters":[],"messages":[],`+
			`"vote_results":[{"tally":{"Bram":2},"is_tie":false,"eliminated_id":"c3","eliminated_name":"Bram"}]}`)
	})
	c, st := newRecoveryController(t, e)
	require.NoError(t, st.Set(store.KeySessionID, "s1"))

	recovered, err := c.RecoverSession(context.Background())
	require.NoError(t, err)
	require.True(t, recovered)

	snap := c.Snapshot()
	assert.Equal(t, phase.Voting, snap.Phase)
	assert.False(t, snap.Vote.Finalized)
	assert.False(t, snap.Vote.HasVoted)
	assert.Empty(t, snap.Vote.Tally)
}
