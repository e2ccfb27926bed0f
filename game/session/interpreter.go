package session

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"council-game-demo/client/game/api"
	"council-game-demo/client/game/events"
	"council-game-demo/client/game/phase"
)

// Apply feeds one decoded event through the interpreter. Events from a
// single stream are applied in arrival order; the dispatch maps each
// event kind to the state slice it owns plus any outbound notifications.
func (c *Controller) Apply(ev events.Event) {
	c.eventsCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", string(ev.EventKind()))))

	c.mu.Lock()
	notes := c.applyLocked(ev)
	c.mu.Unlock()
	c.notify(notes)
}

func (c *Controller) applyLocked(ev events.Event) []Notification {
	switch ev := ev.(type) {
	case events.Thinking:
		return c.applyThinking(ev)
	case events.StreamStart:
		return c.applyStreamStart(ev)
	case events.StreamDelta:
		return c.applyStreamDelta(ev)
	case events.StreamEnd:
		return c.applyStreamEnd(ev)
	case events.Response:
		return c.applySealedUtterance(ev.CharacterID, ev.CharacterName, ev.Content, ev.TTSText, ev.VoiceID, ev.Emotion)
	case events.Reaction:
		return c.applySealedUtterance(ev.CharacterID, ev.CharacterName, ev.Content, ev.TTSText, ev.VoiceID, ev.Emotion)
	case events.Responders:
		c.responders = ev.CharacterIDs
		return nil
	case events.Narration:
		return c.applyNarration(ev)
	case events.Complication:
		return c.applyComplication(ev)
	case events.DiscussionWarning:
		c.appendEntryLocked(&ChatEntry{Role: RoleSystem, Content: ev.Content})
		return nil
	case events.DiscussionEnding:
		c.appendEntryLocked(&ChatEntry{Role: RoleSystem, Content: ev.Content})
		return c.applyPhaseLocked(phase.Voting, 0)
	case events.VotingStarted:
		return c.applyVotingStarted()
	case events.Vote:
		return c.applyVote(ev)
	case events.Tally:
		return c.applyTally(ev)
	case events.Elimination:
		return c.applyElimination(ev)
	case events.PlayerEliminated:
		return c.applyPlayerEliminated(ev)
	case events.NightStarted:
		return c.applyPhaseLocked(phase.Night, 0)
	case events.NightAction:
		c.nightLog = append(c.nightLog, NightLogEntry{
			CharacterID:   ev.CharacterID,
			CharacterName: ev.CharacterName,
			ActionType:    ev.ActionType,
			Result:        ev.Result,
		})
		return nil
	case events.NightActionPrompt:
		return c.applyNightActionPrompt(ev)
	case events.NightResults:
		return c.applyNightResults(ev)
	case events.NightKillReveal:
		return c.applyNightKillReveal(ev)
	case events.InvestigationResult:
		c.investigation = ev.Result
		return nil
	case events.GameOver:
		return c.applyGameOver(ev)
	case events.ErrorEvent:
		return c.applyError(ev)
	case events.Done:
		return c.applyDone(ev)
	default:
		c.log.Debug("no interpretation for event", "kind", string(ev.EventKind()))
		return nil
	}
}

func (c *Controller) applyThinking(ev events.Thinking) []Notification {
	key := events.ActorKey(ev.CharacterID, ev.CharacterName)
	entry := c.appendEntryLocked(&ChatEntry{
		Role:      RoleCharacter,
		ActorID:   ev.CharacterID,
		ActorName: ev.CharacterName,
		Pending:   true,
	})
	c.thinking[key] = entry
	return nil
}

func (c *Controller) applyStreamStart(ev events.StreamStart) []Notification {
	key := events.ActorKey(ev.CharacterID, ev.CharacterName)
	c.openStreamEntryLocked(key, ev.CharacterID, ev.CharacterName)
	c.pump.Start(key)
	return nil
}

// openStreamEntryLocked installs the actor's in-place streaming entry,
// reusing a pending thinking placeholder when one exists.
func (c *Controller) openStreamEntryLocked(key, characterID, characterName string) {
	if entry, ok := c.thinking[key]; ok {
		delete(c.thinking, key)
		entry.Pending = false
		entry.Streaming = true
		entry.Content = ""
		c.streamEntries[key] = entry
		return
	}
	entry := c.appendEntryLocked(&ChatEntry{
		Role:      RoleCharacter,
		ActorID:   characterID,
		ActorName: characterName,
		Streaming: true,
	})
	c.streamEntries[key] = entry
}

func (c *Controller) applyStreamDelta(ev events.StreamDelta) []Notification {
	key := events.ActorKey(ev.CharacterID, "")
	if _, ok := c.streamEntries[key]; !ok {
		// Delta without a preceding start: open the utterance implicitly.
		c.openStreamEntryLocked(key, ev.CharacterID, "")
		c.pump.Start(key)
	}
	c.pump.Push(key, ev.Delta)
	return nil
}

func (c *Controller) applyStreamEnd(ev events.StreamEnd) []Notification {
	key := events.ActorKey(ev.CharacterID, ev.CharacterName)
	if _, ok := c.streamEntries[key]; !ok {
		// End without a live entry: treat as a legacy sealed utterance.
		return c.applySealedUtterance(ev.CharacterID, ev.CharacterName, ev.Content, ev.TTSText, ev.VoiceID, ev.Emotion)
	}
	c.pump.Finish(key, ev)
	return nil
}

// applySealedUtterance is the legacy non-streaming path: one complete
// utterance with no deltas, appended already sealed.
func (c *Controller) applySealedUtterance(characterID, characterName, content, ttsText, voiceID, emotion string) []Notification {
	key := events.ActorKey(characterID, characterName)
	lastWords := false
	if ch, found := c.charIndex[characterID]; found && ch.IsEliminated {
		// The eliminated character's farewell line.
		lastWords = true
	}
	if entry, ok := c.thinking[key]; ok {
		delete(c.thinking, key)
		entry.Pending = false
		entry.Content = content
		entry.Emotion = emotion
		entry.LastWords = lastWords
		c.archiveEntry(*entry)
	} else {
		c.appendEntryLocked(&ChatEntry{
			Role:      RoleCharacter,
			ActorID:   characterID,
			ActorName: characterName,
			Content:   content,
			Emotion:   emotion,
			LastWords: lastWords,
		})
	}

	c.utterancesCounter.Add(context.Background(), 1)

	spoken := ttsText
	if spoken == "" {
		spoken = content
	}
	return []Notification{{
		Kind:       NotifyUtterance,
		ActorKey:   key,
		ActorName:  characterName,
		Text:       content,
		SpokenText: spoken,
		VoiceID:    voiceID,
		Emotion:    emotion,
	}}
}

func (c *Controller) applyNarration(ev events.Narration) []Notification {
	if ev.Content != "" {
		c.appendEntryLocked(&ChatEntry{Role: RoleNarrator, Content: ev.Content})
	}
	if ev.Phase == "" {
		return nil
	}
	next, ok := phase.Parse(ev.Phase)
	if !ok {
		c.log.Warn("narration carried unknown phase", "phase", ev.Phase)
		return nil
	}
	return c.applyPhaseLocked(next, ev.Round)
}

func (c *Controller) applyComplication(ev events.Complication) []Notification {
	c.appendEntryLocked(&ChatEntry{
		Role:         RoleNarrator,
		Content:      ev.Content,
		Complication: true,
	})
	return c.setTensionLocked(ev.Tension)
}

func (c *Controller) applyVotingStarted() []Notification {
	// Keep the player's own selection: their vote is what opened this
	// stream. Only the incoming tally restarts.
	c.vote.Votes = nil
	c.vote.Tally = make(map[string]int)
	c.vote.IsTie = false
	c.vote.Finalized = false
	c.vote.EliminatedID = ""
	c.vote.EliminatedName = ""
	if c.machine.Current() != phase.Voting {
		return c.applyPhaseLocked(phase.Voting, 0)
	}
	return nil
}

func (c *Controller) applyVote(ev events.Vote) []Notification {
	c.vote.Votes = append(c.vote.Votes, VoteCast{VoterName: ev.VoterName, TargetName: ev.TargetName})
	if c.vote.Tally == nil {
		c.vote.Tally = make(map[string]int)
	}
	c.vote.Tally[ev.TargetName]++
	return nil
}

func (c *Controller) applyTally(ev events.Tally) []Notification {
	if ev.Tally != nil {
		c.vote.Tally = ev.Tally
	}
	c.vote.IsTie = ev.IsTie
	c.vote.Finalized = true
	if ev.IsTie {
		// Tie re-vote: the round stays in voting and the player chooses
		// again.
		c.vote.HasVoted = false
		c.vote.SelectedTarget = ""
	}
	return nil
}

func (c *Controller) applyElimination(ev events.Elimination) []Notification {
	if ch, ok := c.charIndex[ev.CharacterID]; ok {
		ch.IsEliminated = true
		ch.Hidden = &HiddenRecord{HiddenRole: ev.HiddenRole, Faction: ev.Faction}
	}
	c.vote.EliminatedID = ev.CharacterID
	c.vote.EliminatedName = ev.CharacterName

	if ev.Narration != "" {
		c.appendEntryLocked(&ChatEntry{Role: RoleNarrator, Content: ev.Narration})
	}

	c.reveal = &RevealCard{
		CharacterID:   ev.CharacterID,
		CharacterName: ev.CharacterName,
		Record:        HiddenRecord{HiddenRole: ev.HiddenRole, Faction: ev.Faction},
		Narration:     ev.Narration,
		Source:        "vote",
	}
	c.machine.OpenReveal()
	notes := c.applyPhaseLocked(phase.Reveal, 0)

	// The full hidden record comes from a separate fetch; the event's
	// fields remain as fallback if it fails.
	go c.fetchRevealDetail(c.sessionID, ev.CharacterID)
	return notes
}

func (c *Controller) applyPlayerEliminated(ev events.PlayerEliminated) []Notification {
	if c.playerRole == nil {
		c.playerRole = &PlayerRole{}
	}
	c.playerRole.HiddenRole = ev.HiddenRole
	c.playerRole.Faction = ev.Faction
	c.playerRole.IsEliminated = true
	c.playerRole.EliminatedBy = ev.EliminatedBy
	c.ghostMode = true
	c.factionReveal = ev.AllCharacters

	// Ghost mode grants full hidden-information visibility.
	for _, revealed := range ev.AllCharacters {
		if ch, ok := c.charIndex[revealed.ID]; ok {
			if revealed.IsEliminated {
				ch.IsEliminated = true
			}
			ch.Hidden = &HiddenRecord{HiddenRole: revealed.HiddenRole, Faction: revealed.Faction}
		}
	}

	if ev.Narration != "" {
		c.appendEntryLocked(&ChatEntry{Role: RoleNarrator, Content: ev.Narration})
	}
	return nil
}

func (c *Controller) applyNightActionPrompt(ev events.NightActionPrompt) []Notification {
	if c.nightPrompt != nil {
		// The engine prompts at most once per night; a duplicate
		// overwrites rather than queues.
		c.log.Warn("duplicate night action prompt, overwriting", "action_type", ev.ActionType)
	}
	c.nightPrompt = &NightPrompt{
		ActionType:      ev.ActionType,
		EligibleTargets: ev.EligibleTargets,
		Allies:          ev.Allies,
	}
	return nil
}

func (c *Controller) applyNightResults(ev events.NightResults) []Notification {
	for _, id := range ev.EliminatedIDs {
		if ch, ok := c.charIndex[id]; ok {
			ch.IsEliminated = true
		}
	}
	if ev.Narration != "" {
		c.appendEntryLocked(&ChatEntry{Role: RoleNarrator, Content: ev.Narration})
	}
	c.nightPrompt = nil
	return nil
}

func (c *Controller) applyNightKillReveal(ev events.NightKillReveal) []Notification {
	if ch, ok := c.charIndex[ev.CharacterID]; ok {
		ch.IsEliminated = true
		ch.Hidden = &HiddenRecord{HiddenRole: ev.HiddenRole, Faction: ev.Faction}
	}
	if ev.Narration != "" {
		c.appendEntryLocked(&ChatEntry{Role: RoleNarrator, Content: ev.Narration})
	}
	c.reveal = &RevealCard{
		CharacterID:   ev.CharacterID,
		CharacterName: ev.CharacterName,
		Record:        HiddenRecord{HiddenRole: ev.HiddenRole, Faction: ev.Faction},
		Narration:     ev.Narration,
		Source:        "night",
	}
	c.machine.OpenReveal()

	go c.fetchRevealDetail(c.sessionID, ev.CharacterID)
	return nil
}

func (c *Controller) applyGameOver(ev events.GameOver) []Notification {
	c.winner = ev.Winner
	if ev.Narration != "" {
		c.appendEntryLocked(&ChatEntry{Role: RoleNarrator, Content: ev.Narration})
	}
	notes := c.applyPhaseLocked(phase.Ended, 0)
	notes = append(notes, Notification{Kind: NotifyGameOver, Winner: ev.Winner})
	return notes
}

// applyError handles a mid-stream engine error: clear every delta buffer
// and timer, seal nothing, surface the message, and give up stream
// ownership so a new action can be attempted.
func (c *Controller) applyError(ev events.ErrorEvent) []Notification {
	c.pump.Clear()
	for key, entry := range c.streamEntries {
		entry.Streaming = false
		delete(c.streamEntries, key)
	}
	for key, entry := range c.thinking {
		entry.Pending = false
		delete(c.thinking, key)
	}
	c.errMsg = ev.Message
	c.terminalSeen = true
	c.streams.Release()
	return nil
}

// applyDone marks the stream terminal. Finalization is deferred until
// every delta buffer has drained so the last chunks render before
// ownership is released and any queued intent replays.
func (c *Controller) applyDone(ev events.Done) []Notification {
	c.terminalSeen = true
	notes := c.setTensionLocked(ev.Tension)
	go c.finishStream(ev, c.streamGen)
	return notes
}

func (c *Controller) finishStream(ev events.Done, gen uint64) {
	<-c.pump.Drained()

	c.mu.Lock()
	if c.streamGen != gen {
		// The session was reset while we waited on the drain.
		c.mu.Unlock()
		return
	}
	var notes []Notification
	if ev.Phase != "" {
		if next, ok := phase.Parse(ev.Phase); ok {
			notes = c.applyPhaseLocked(next, ev.Round)
		}
	}
	intent := c.pendingIntent
	c.pendingIntent = nil
	c.mu.Unlock()

	c.streams.Release()
	c.notify(notes)
	if intent != nil {
		intent()
	}
}

// fetchRevealDetail fetches the eliminated character's full hidden record
// to populate the reveal card, falling back to the fields already present
// on the event when the fetch fails.
func (c *Controller) fetchRevealDetail(sessionID, characterID string) {
	if sessionID == "" || characterID == "" {
		return
	}

	var record *api.RevealRecord
	if cached, ok := c.reveals.Get(sessionID + ":" + characterID); ok {
		record = cached.(*api.RevealRecord)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Engine.Timeout)
		defer cancel()
		fetched, err := c.api.Reveal(ctx, sessionID, characterID)
		if err != nil {
			c.log.Warn("reveal fetch failed, keeping event fields", "character_id", characterID, "error", err.Error())
			return
		}
		c.reveals.Set(sessionID+":"+characterID, fetched)
		record = fetched
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reveal == nil || c.reveal.CharacterID != characterID {
		return
	}
	c.reveal.Record = HiddenRecord{
		HiddenRole:      record.HiddenRole,
		Faction:         record.Faction,
		WinCondition:    record.WinCondition,
		HiddenKnowledge: record.HiddenKnowledge,
		BehavioralRules: record.BehavioralRules,
	}
	if ch, ok := c.charIndex[characterID]; ok {
		hidden := c.reveal.Record
		ch.Hidden = &hidden
	}
}
