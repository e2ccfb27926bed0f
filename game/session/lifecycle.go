package session

import (
	"context"

	"github.com/google/uuid"

	"council-game-demo/client/game/api"
	"council-game-demo/client/game/phase"
	"council-game-demo/client/game/store"
)

// RecoverSession restores a previous session from the persisted session
// id, rebuilding local state from the engine's full state snapshot. It
// returns false when there is nothing to recover; a stale id that the
// engine no longer recognizes is discarded rather than surfaced as an
// error.
func (c *Controller) RecoverSession(ctx context.Context) (bool, error) {
	sessionID, err := c.store.Get(store.KeySessionID)
	if err != nil {
		return false, err
	}
	if sessionID == "" {
		return false, nil
	}

	snap, err := c.api.FullState(ctx, sessionID, true)
	if err != nil {
		c.log.Info("discarding stale session id", "session_id", sessionID, "error", err.Error())
		if rmErr := c.store.Remove(store.KeySessionID); rmErr != nil {
			c.log.Warn("failed to clear persisted session id", "error", rmErr.Error())
		}
		return false, nil
	}

	c.mu.Lock()
	c.resetStateLocked()
	c.rebuildLocked(sessionID, snap)
	current := c.machine.Current()
	round := c.machine.Round()
	c.mu.Unlock()
	c.notify([]Notification{{Kind: NotifyPhase, Phase: current, Round: round}})

	c.log.Info("session recovered",
		"session_id", sessionID,
		"phase", string(current),
		"entries", len(snap.Messages))
	return true, nil
}

// rebuildLocked reconstructs every state slice from a full snapshot.
// Caller holds c.mu.
func (c *Controller) rebuildLocked(sessionID string, snap *api.StateSnapshot) {
	c.sessionID = sessionID
	c.worldTitle = snap.WorldTitle
	c.worldSetting = snap.WorldSetting

	for _, info := range snap.Characters {
		ch := &Character{
			ID:            info.ID,
			Name:          info.Name,
			Persona:       info.Persona,
			SpeakingStyle: info.SpeakingStyle,
			AvatarSeed:    info.AvatarSeed,
			PublicRole:    info.PublicRole,
			VoiceID:       info.VoiceID,
			IsEliminated:  info.IsEliminated,
		}
		c.characters = append(c.characters, ch)
		c.charIndex[ch.ID] = ch
	}
	for _, id := range snap.Eliminated {
		if ch, ok := c.charIndex[id]; ok {
			ch.IsEliminated = true
		}
	}

	recovered := phase.Upload
	if p, ok := phase.Parse(snap.Phase); ok {
		recovered = p
	}
	recovered = phase.NormalizeRecovered(recovered)
	round := snap.Round
	if round < 1 {
		round = 1
	}
	c.machine.Restore(recovered, round)

	for _, msg := range snap.Messages {
		entry := &ChatEntry{
			Role:      recoveredRole(msg.SpeakerID),
			Content:   msg.Content,
			ActorName: msg.SpeakerName,
			Round:     msg.Round,
		}
		if entry.Role == RoleCharacter {
			entry.ActorID = msg.SpeakerID
		}
		if p, ok := phase.Parse(msg.Phase); ok {
			entry.Phase = p
		}
		// Recovered entries bypass appendEntryLocked: they keep their
		// original phase stamps and are already archived.
		entry.ID = uuid.NewString()
		c.entries = append(c.entries, entry)
	}

	if n := len(snap.VoteResults); n > 0 {
		last := snap.VoteResults[n-1]
		c.vote.Tally = last.Tally
		c.vote.IsTie = last.IsTie
		c.vote.Finalized = true
		c.vote.EliminatedID = last.EliminatedID
		c.vote.EliminatedName = last.EliminatedName
	}
	// A finalized tally from a previous round must not block this
	// round's vote.
	if c.machine.Current() == phase.Voting {
		c.resetVoteLocked()
	}

	if snap.PlayerRole != nil {
		c.playerRole = &PlayerRole{
			HiddenRole:   snap.PlayerRole.HiddenRole,
			Faction:      snap.PlayerRole.Faction,
			WinCondition: snap.PlayerRole.WinCondition,
			Allies:       snap.PlayerRole.Allies,
			IsEliminated: snap.PlayerRole.IsEliminated,
			EliminatedBy: snap.PlayerRole.EliminatedBy,
		}
		c.ghostMode = snap.PlayerRole.IsEliminated
	}

	if snap.NightActionPrompt != nil {
		c.nightPrompt = &NightPrompt{
			ActionType:      snap.NightActionPrompt.ActionType,
			EligibleTargets: snap.NightActionPrompt.EligibleTargets,
		}
	}

	c.winner = snap.Winner
	if snap.Winner != "" {
		c.machine.Restore(phase.Ended, c.machine.Round())
	}
}

// recoveredRole infers an entry role from the snapshot's speaker id
// sentinels.
func recoveredRole(speakerID string) EntryRole {
	switch speakerID {
	case "player":
		return RoleUser
	case "narrator", "system", "":
		return RoleNarrator
	default:
		return RoleCharacter
	}
}
