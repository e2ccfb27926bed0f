package session

import (
	"context"
	"fmt"

	"council-game-demo/client/game/api"
	"council-game-demo/client/game/phase"
	"council-game-demo/client/game/store"
	apperrors "council-game-demo/client/pkg/errors"
)

// UploadText creates a session from pasted world text. The engine parses
// the document synchronously, so the parsing phase spans the call.
func (c *Controller) UploadText(ctx context.Context, text string, numCharacters int) error {
	c.transitionAndNotify(phase.Parsing, 0)

	resp, err := c.api.CreateFromText(ctx, text, numCharacters)
	if err != nil {
		c.failCreate(err)
		return err
	}
	c.installSession(resp)
	return nil
}

// UploadDocument creates a session from an uploaded document file.
func (c *Controller) UploadDocument(ctx context.Context, filename string, file []byte, numCharacters int) error {
	c.transitionAndNotify(phase.Parsing, 0)

	resp, err := c.api.CreateFromFile(ctx, filename, file, numCharacters)
	if err != nil {
		c.failCreate(err)
		return err
	}
	c.installSession(resp)
	return nil
}

// LoadScenario creates a session from a pre-built scenario.
func (c *Controller) LoadScenario(ctx context.Context, scenarioID string, numCharacters int) error {
	c.transitionAndNotify(phase.Parsing, 0)

	resp, err := c.api.CreateFromScenario(ctx, scenarioID, numCharacters)
	if err != nil {
		c.failCreate(err)
		return err
	}
	c.installSession(resp)
	return nil
}

// Scenarios lists the pre-built worlds the engine offers.
func (c *Controller) Scenarios(ctx context.Context) ([]api.Scenario, error) {
	return c.api.ListScenarios(ctx)
}

// Skills lists the optional engine capabilities.
func (c *Controller) Skills(ctx context.Context) ([]api.Skill, error) {
	return c.api.ListSkills(ctx)
}

func (c *Controller) failCreate(err error) {
	c.mu.Lock()
	c.errMsg = err.Error()
	c.machine.Restore(phase.Upload, 1)
	c.mu.Unlock()
}

func (c *Controller) installSession(resp *api.CreateResponse) {
	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.worldTitle = resp.WorldTitle
	c.worldSetting = resp.WorldSetting
	c.characters = nil
	c.charIndex = make(map[string]*Character)
	for _, info := range resp.Characters {
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
	notes := c.applyPhaseLocked(phase.Lobby, 0)
	c.mu.Unlock()

	if err := c.store.Set(store.KeySessionID, resp.SessionID); err != nil {
		c.log.Warn("failed to persist session id", "error", err.Error())
	}
	c.notify(notes)
}

// StartGame opens the lobby into the game. First-time players land on
// the how-to-play screen; returning players skip straight to the intro.
func (c *Controller) StartGame(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	current := c.machine.Current()
	c.mu.Unlock()
	if sessionID == "" {
		return apperrors.NewSessionNotFoundError()
	}
	if current != phase.Lobby {
		return apperrors.NewInvalidPhaseError(string(current), "start")
	}

	resp, err := c.api.Start(ctx, sessionID)
	if err != nil {
		return err
	}

	seen, _ := c.store.Get(store.KeyOnboardingSeen)

	c.mu.Lock()
	if resp.Narration != "" {
		c.appendEntryLocked(&ChatEntry{Role: RoleNarrator, Content: resp.Narration})
	}
	next := phase.Intro
	if seen != "true" {
		next = phase.HowToPlay
	}
	notes := c.applyPhaseLocked(next, resp.Round)
	c.mu.Unlock()
	c.notify(notes)

	if resp.HasPlayerRole {
		go c.fetchPlayerRole(sessionID)
	}
	return nil
}

func (c *Controller) fetchPlayerRole(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Engine.Timeout)
	defer cancel()
	info, err := c.api.PlayerRole(ctx, sessionID)
	if err != nil {
		c.log.Warn("failed to fetch player role", "error", err.Error())
		return
	}
	c.mu.Lock()
	c.playerRole = &PlayerRole{
		HiddenRole:   info.HiddenRole,
		Faction:      info.Faction,
		WinCondition: info.WinCondition,
		Allies:       info.Allies,
		IsEliminated: info.IsEliminated,
		EliminatedBy: info.EliminatedBy,
	}
	c.mu.Unlock()
}

// CompleteIntro advances past the pre-game screens. From how-to-play it
// records the onboarding flag and shows the intro; from the intro it
// opens the first discussion stream.
func (c *Controller) CompleteIntro() error {
	c.mu.Lock()
	current := c.machine.Current()
	sessionID := c.sessionID
	c.mu.Unlock()

	switch current {
	case phase.HowToPlay:
		if err := c.store.Set(store.KeyOnboardingSeen, "true"); err != nil {
			c.log.Warn("failed to persist onboarding flag", "error", err.Error())
		}
		c.transitionAndNotify(phase.Intro, 0)
		return nil
	case phase.Intro:
		c.transitionAndNotify(phase.Discussion, 0)
		return c.beginStream("open_discussion",
			fmt.Sprintf("/api/game/%s/open-discussion", sessionID), nil)
	default:
		return apperrors.NewInvalidPhaseError(string(current), "complete_intro")
	}
}

// SendMessage speaks as the player and streams the council's responses.
// Ghost players cannot speak in discussion.
func (c *Controller) SendMessage(text string) error {
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return apperrors.NewSessionNotFoundError()
	}
	if c.ghostMode {
		c.mu.Unlock()
		return apperrors.NewGhostModeError()
	}
	current := c.machine.Current()
	if current != phase.Discussion {
		c.mu.Unlock()
		return apperrors.NewInvalidPhaseError(string(current), "chat")
	}
	sessionID := c.sessionID
	// The player's entry goes in before the stream opens so responses
	// always render after it.
	entry := c.appendEntryLocked(&ChatEntry{Role: RoleUser, Content: text})
	c.mu.Unlock()

	err := c.beginStream("chat",
		fmt.Sprintf("/api/game/%s/chat", sessionID),
		map[string]string{"message": text})
	if err != nil {
		c.removeEntry(entry.ID)
		return err
	}
	return nil
}

// removeEntry drops a just-appended entry after its triggering command
// was rejected.
func (c *Controller) removeEntry(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range c.entries {
		if entry.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// CastVote locks in the player's vote and streams the vote sequence.
// Once a vote is cast it cannot be changed; repeat calls are no-ops.
func (c *Controller) CastVote(targetID string) error {
	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return apperrors.NewSessionNotFoundError()
	}
	if c.ghostMode {
		c.mu.Unlock()
		return apperrors.NewGhostModeError()
	}
	if c.vote.HasVoted {
		c.mu.Unlock()
		return nil
	}
	current := c.machine.Current()
	if current != phase.Voting {
		c.mu.Unlock()
		return apperrors.NewInvalidPhaseError(string(current), "vote")
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	err := c.beginStream("vote",
		fmt.Sprintf("/api/game/%s/vote", sessionID),
		map[string]string{"target_id": targetID})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.vote.SelectedTarget = targetID
	c.vote.HasVoted = true
	c.mu.Unlock()
	return nil
}

// EndDiscussion moves the round to voting. If a response stream is still
// active the intent is queued and replays once the stream finishes; a
// second call before then replaces the queued intent.
func (c *Controller) EndDiscussion() error {
	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return apperrors.NewSessionNotFoundError()
	}
	current := c.machine.Current()
	if current != phase.Discussion {
		c.mu.Unlock()
		return apperrors.NewInvalidPhaseError(string(current), "end_discussion")
	}
	if c.streams.Active() {
		c.pendingIntent = func() {
			if err := c.EndDiscussion(); err != nil {
				c.log.Warn("queued end-discussion failed", "error", err.Error())
			}
		}
		c.mu.Unlock()
		return nil
	}
	notes := c.applyPhaseLocked(phase.Voting, 0)
	c.mu.Unlock()
	c.notify(notes)
	return nil
}

// TriggerNight streams the night sequence after the reveal is dismissed.
func (c *Controller) TriggerNight() error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID == "" {
		return apperrors.NewSessionNotFoundError()
	}
	return c.beginStream("night",
		fmt.Sprintf("/api/game/%s/night", sessionID), nil)
}

// SubmitNightAction answers the live night action prompt.
func (c *Controller) SubmitNightAction(targetID string) error {
	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return apperrors.NewSessionNotFoundError()
	}
	if c.nightPrompt == nil {
		c.mu.Unlock()
		return apperrors.NewInvalidPhaseError(string(c.machine.Current()), "night_action")
	}
	actionType := c.nightPrompt.ActionType
	sessionID := c.sessionID
	c.mu.Unlock()

	err := c.beginStream("night_action",
		fmt.Sprintf("/api/game/%s/night-action", sessionID),
		map[string]string{"target_id": targetID, "action_type": actionType})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.nightPrompt = nil
	c.mu.Unlock()
	return nil
}

// SendNightChat speaks privately with the player's faction allies during
// the night phase.
func (c *Controller) SendNightChat(text string) error {
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return apperrors.NewSessionNotFoundError()
	}
	current := c.machine.Current()
	if current != phase.Night {
		c.mu.Unlock()
		return apperrors.NewInvalidPhaseError(string(current), "night_chat")
	}
	sessionID := c.sessionID
	entry := c.appendEntryLocked(&ChatEntry{Role: RoleUser, Content: text})
	c.mu.Unlock()

	err := c.beginStream("night_chat",
		fmt.Sprintf("/api/game/%s/night-chat", sessionID),
		map[string]string{"message": text})
	if err != nil {
		c.removeEntry(entry.ID)
		return err
	}
	return nil
}

// DismissReveal closes the reveal modal, applying any night transition
// that was deferred while it was open.
func (c *Controller) DismissReveal() {
	c.mu.Lock()
	c.reveal = nil
	res := c.machine.DismissReveal()
	var notes []Notification
	if res.Applied {
		notes = c.phaseAppliedLocked(res)
	}
	c.mu.Unlock()
	c.notify(notes)
}

// DismissInvestigation clears the private investigation result.
func (c *Controller) DismissInvestigation() {
	c.mu.Lock()
	c.investigation = ""
	c.mu.Unlock()
}

// DismissError clears the surfaced error message.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
}

// ResetGame tears the session down completely: the active stream is
// cancelled, every delta buffer dropped, all state cleared, and the
// persisted session id removed.
func (c *Controller) ResetGame() {
	c.streams.CancelActive()
	c.pump.Clear()

	c.mu.Lock()
	c.resetStateLocked()
	c.mu.Unlock()

	if err := c.store.Remove(store.KeySessionID); err != nil {
		c.log.Warn("failed to clear persisted session id", "error", err.Error())
	}
}

// transitionAndNotify applies one phase transition outside an event
// stream, used by local commands.
func (c *Controller) transitionAndNotify(next phase.Phase, round int) {
	c.mu.Lock()
	notes := c.applyPhaseLocked(next, round)
	c.mu.Unlock()
	c.notify(notes)
}
