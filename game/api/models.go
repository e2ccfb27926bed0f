package api

import "council-game-demo/client/game/events"

// CharacterInfo is the public projection of one character.
type CharacterInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Persona       string `json:"persona"`
	SpeakingStyle string `json:"speaking_style"`
	AvatarSeed    string `json:"avatar_seed"`
	PublicRole    string `json:"public_role"`
	VoiceID       string `json:"voice_id"`
	IsEliminated  bool   `json:"is_eliminated"`
}

// CreateResponse is returned by the session creation endpoints.
type CreateResponse struct {
	SessionID    string          `json:"session_id"`
	WorldTitle   string          `json:"world_title"`
	WorldSetting string          `json:"world_setting"`
	Characters   []CharacterInfo `json:"characters"`
	Phase        string          `json:"phase"`
}

// StartResponse is returned when the lobby opens into discussion.
type StartResponse struct {
	Phase         string `json:"phase"`
	Round         int    `json:"round"`
	Narration     string `json:"narration"`
	HasPlayerRole bool   `json:"has_player_role"`
}

// SnapshotMessage is one entry of the flat speaker/content log carried by
// a full state snapshot.
type SnapshotMessage struct {
	SpeakerID   string `json:"speaker_id"`
	SpeakerName string `json:"speaker_name"`
	Content     string `json:"content"`
	Phase       string `json:"phase"`
	Round       int    `json:"round"`
}

// VoteRecord is one historical vote tally.
type VoteRecord struct {
	Tally          map[string]int `json:"tally"`
	IsTie          bool           `json:"is_tie"`
	EliminatedID   string         `json:"eliminated_id"`
	EliminatedName string         `json:"eliminated_name"`
}

// Ally identifies one teammate of the player's faction.
type Ally struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerRoleInfo is the player's own hidden identity.
type PlayerRoleInfo struct {
	HiddenRole   string `json:"hidden_role"`
	Faction      string `json:"faction"`
	WinCondition string `json:"win_condition"`
	Allies       []Ally `json:"allies"`
	IsEliminated bool   `json:"is_eliminated"`
	EliminatedBy string `json:"eliminated_by"`
}

// NightPromptInfo is a still-pending night action request.
type NightPromptInfo struct {
	ActionType      string          `json:"action_type"`
	EligibleTargets []events.Target `json:"eligible_targets"`
}

// StateSnapshot is the full state projection used for session recovery.
type StateSnapshot struct {
	SessionID         string            `json:"session_id"`
	Phase             string            `json:"phase"`
	Round             int               `json:"round"`
	WorldTitle        string            `json:"world_title"`
	WorldSetting      string            `json:"world_setting"`
	FlavorText        string            `json:"flavor_text"`
	Characters        []CharacterInfo   `json:"characters"`
	Eliminated        []string          `json:"eliminated"`
	Messages          []SnapshotMessage `json:"messages"`
	VoteResults       []VoteRecord      `json:"vote_results"`
	Winner            string            `json:"winner"`
	PlayerRole        *PlayerRoleInfo   `json:"player_role"`
	NightActionPrompt *NightPromptInfo  `json:"night_action_prompt"`
}

// RevealRecord is an eliminated character's hidden record.
type RevealRecord struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	HiddenRole      string   `json:"hidden_role"`
	Faction         string   `json:"faction"`
	WinCondition    string   `json:"win_condition"`
	HiddenKnowledge []string `json:"hidden_knowledge"`
	BehavioralRules []string `json:"behavioral_rules"`
}

// Scenario is one pre-built game world.
type Scenario struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Skill is one optional agent capability the engine can enable.
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
