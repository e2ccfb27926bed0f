package session

// Snapshot returns a deep copy of the current state. Mutating the result
// never affects the controller; streaming entries appear with whatever
// content the pump has released so far.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID:     c.sessionID,
		WorldTitle:    c.worldTitle,
		WorldSetting:  c.worldSetting,
		Phase:         c.machine.Current(),
		Round:         c.machine.Round(),
		GhostMode:     c.ghostMode,
		Investigation: c.investigation,
		Tension:       c.tension,
		Winner:        c.winner,
		Error:         c.errMsg,
		StreamActive:  c.streams.Active(),
	}

	snap.Characters = make([]Character, 0, len(c.characters))
	for _, ch := range c.characters {
		cp := *ch
		if ch.Hidden != nil {
			hidden := *ch.Hidden
			cp.Hidden = &hidden
		}
		snap.Characters = append(snap.Characters, cp)
	}

	snap.Entries = make([]ChatEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		snap.Entries = append(snap.Entries, *entry)
	}

	snap.Vote = c.vote
	snap.Vote.Votes = append([]VoteCast(nil), c.vote.Votes...)
	snap.Vote.Tally = make(map[string]int, len(c.vote.Tally))
	for name, n := range c.vote.Tally {
		snap.Vote.Tally[name] = n
	}

	if c.playerRole != nil {
		role := *c.playerRole
		snap.PlayerRole = &role
	}
	if c.nightPrompt != nil {
		prompt := *c.nightPrompt
		snap.NightPrompt = &prompt
	}
	if c.reveal != nil {
		card := *c.reveal
		snap.Reveal = &card
	}

	snap.FactionReveal = append(snap.FactionReveal, c.factionReveal...)
	snap.NightLog = append(snap.NightLog, c.nightLog...)
	snap.Responders = append(snap.Responders, c.responders...)

	return snap
}
