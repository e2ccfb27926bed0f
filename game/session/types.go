package session

import (
	"council-game-demo/client/game/api"
	"council-game-demo/client/game/events"
	"council-game-demo/client/game/phase"
)

// EntryRole classifies who authored a chat entry.
type EntryRole string

const (
	RoleUser      EntryRole = "user"
	RoleCharacter EntryRole = "character"
	RoleNarrator  EntryRole = "narrator"
	RoleSystem    EntryRole = "system"
)

// ChatEntry is one line of the transcript. Entries are append-only except
// the single entry currently streaming, which the pump mutates in place
// until it is sealed exactly once.
type ChatEntry struct {
	ID           string      `json:"id"`
	Role         EntryRole   `json:"role"`
	ActorID      string      `json:"actor_id,omitempty"`
	ActorName    string      `json:"actor_name,omitempty"`
	Content      string      `json:"content"`
	Pending      bool        `json:"pending,omitempty"`
	Streaming    bool        `json:"streaming,omitempty"`
	LastWords    bool        `json:"last_words,omitempty"`
	Complication bool        `json:"complication,omitempty"`
	Emotion      string      `json:"emotion,omitempty"`
	Phase        phase.Phase `json:"phase,omitempty"`
	Round        int         `json:"round,omitempty"`
}

// HiddenRecord is a character's secret identity, held only once the
// engine has explicitly disclosed it.
type HiddenRecord struct {
	HiddenRole      string   `json:"hidden_role"`
	Faction         string   `json:"faction"`
	WinCondition    string   `json:"win_condition,omitempty"`
	HiddenKnowledge []string `json:"hidden_knowledge,omitempty"`
	BehavioralRules []string `json:"behavioral_rules,omitempty"`
}

// Character is one AI council member. The elimination flag is monotonic:
// false to true only, never reversed.
type Character struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Persona       string        `json:"persona"`
	SpeakingStyle string        `json:"speaking_style,omitempty"`
	AvatarSeed    string        `json:"avatar_seed"`
	PublicRole    string        `json:"public_role"`
	VoiceID       string        `json:"voice_id,omitempty"`
	IsEliminated  bool          `json:"is_eliminated"`
	Hidden        *HiddenRecord `json:"hidden,omitempty"`
}

// VoteCast is one individual vote as it arrived.
type VoteCast struct {
	VoterName  string `json:"voter_name"`
	TargetName string `json:"target_name"`
}

// VoteState is the per-round voting slice: the player's own choice plus
// the running tally built from vote events and finalized by the tally
// event.
type VoteState struct {
	SelectedTarget string         `json:"selected_target,omitempty"`
	HasVoted       bool           `json:"has_voted"`
	Votes          []VoteCast     `json:"votes,omitempty"`
	Tally          map[string]int `json:"tally"`
	IsTie          bool           `json:"is_tie"`
	Finalized      bool           `json:"finalized"`
	EliminatedID   string         `json:"eliminated_id,omitempty"`
	EliminatedName string         `json:"eliminated_name,omitempty"`
}

// PlayerRole is the human participant's secret identity.
type PlayerRole struct {
	HiddenRole   string     `json:"hidden_role"`
	Faction      string     `json:"faction"`
	WinCondition string     `json:"win_condition"`
	Allies       []api.Ally `json:"allies,omitempty"`
	IsEliminated bool       `json:"is_eliminated"`
	EliminatedBy string     `json:"eliminated_by,omitempty"`
}

// NightPrompt is a live night action request. At most one exists at a
// time; a duplicate prompt from the engine overwrites it.
type NightPrompt struct {
	ActionType      string          `json:"action_type"`
	EligibleTargets []events.Target `json:"eligible_targets"`
	Allies          []events.Target `json:"allies,omitempty"`
}

// RevealCard is the blocking modal shown when a character's hidden record
// is disclosed. While open, night transitions are deferred.
type RevealCard struct {
	CharacterID   string       `json:"character_id"`
	CharacterName string       `json:"character_name"`
	Record        HiddenRecord `json:"record"`
	Narration     string       `json:"narration,omitempty"`
	Source        string       `json:"source"` // "vote" or "night"
}

// NightLogEntry records one AI character's night move.
type NightLogEntry struct {
	CharacterID   string `json:"character_id"`
	CharacterName string `json:"character_name"`
	ActionType    string `json:"action_type"`
	Result        string `json:"result,omitempty"`
}

// NotificationKind discriminates outbound notifications.
type NotificationKind string

const (
	// NotifyUtterance fires when a character's utterance is finalized;
	// the voice collaborator keys TTS off it.
	NotifyUtterance NotificationKind = "utterance"
	// NotifyTension fires when the tension level changes.
	NotifyTension NotificationKind = "tension"
	// NotifyPhase fires on every applied phase transition.
	NotifyPhase NotificationKind = "phase"
	// NotifyGameOver fires once when the session ends.
	NotifyGameOver NotificationKind = "game_over"
)

// Notification is one outbound event for presentation collaborators.
type Notification struct {
	Kind       NotificationKind `json:"kind"`
	ActorKey   string           `json:"actor_key,omitempty"`
	ActorName  string           `json:"actor_name,omitempty"`
	Text       string           `json:"text,omitempty"`
	SpokenText string           `json:"spoken_text,omitempty"`
	VoiceID    string           `json:"voice_id,omitempty"`
	Emotion    string           `json:"emotion,omitempty"`
	Phase      phase.Phase      `json:"phase,omitempty"`
	Round      int              `json:"round,omitempty"`
	Tension    float64          `json:"tension,omitempty"`
	Winner     string           `json:"winner,omitempty"`
}

// Snapshot is the read-only projection handed to presentation layers.
type Snapshot struct {
	SessionID     string                     `json:"session_id"`
	WorldTitle    string                     `json:"world_title"`
	WorldSetting  string                     `json:"world_setting"`
	Phase         phase.Phase                `json:"phase"`
	Round         int                        `json:"round"`
	Characters    []Character                `json:"characters"`
	Entries       []ChatEntry                `json:"entries"`
	Vote          VoteState                  `json:"vote"`
	PlayerRole    *PlayerRole                `json:"player_role,omitempty"`
	GhostMode     bool                       `json:"ghost_mode"`
	FactionReveal []events.RevealedCharacter `json:"faction_reveal,omitempty"`
	NightPrompt   *NightPrompt               `json:"night_prompt,omitempty"`
	NightLog      []NightLogEntry            `json:"night_log,omitempty"`
	Reveal        *RevealCard                `json:"reveal,omitempty"`
	Investigation string                     `json:"investigation,omitempty"`
	Responders    []string                   `json:"responders,omitempty"`
	Tension       float64                    `json:"tension"`
	Winner        string                     `json:"winner,omitempty"`
	Error         string                     `json:"error,omitempty"`
	StreamActive  bool                       `json:"stream_active"`
}
