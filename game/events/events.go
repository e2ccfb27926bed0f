// Package events defines the wire taxonomy emitted by the game engine.
//
// The engine delivers one flat JSON object per SSE data line, discriminated
// by a "type" field. Decode turns that flat shape into one typed variant
// per kind so the interpreter never probes optional fields that do not
// belong to the event at hand.
package events

import (
	"encoding/json"
	"errors"
)

// Kind discriminates event variants on the wire.
type Kind string

const (
	KindThinking            Kind = "thinking"
	KindStreamStart         Kind = "stream_start"
	KindStreamDelta         Kind = "stream_delta"
	KindStreamEnd           Kind = "stream_end"
	KindResponse            Kind = "response"
	KindReaction            Kind = "reaction"
	KindResponders          Kind = "responders"
	KindNarration           Kind = "narration"
	KindComplication        Kind = "complication"
	KindDiscussionWarning   Kind = "discussion_warning"
	KindDiscussionEnding    Kind = "discussion_ending"
	KindVotingStarted       Kind = "voting_started"
	KindVote                Kind = "vote"
	KindTally               Kind = "tally"
	KindElimination         Kind = "elimination"
	KindPlayerEliminated    Kind = "player_eliminated"
	KindNightStarted        Kind = "night_started"
	KindNightAction         Kind = "night_action"
	KindNightActionPrompt   Kind = "night_action_prompt"
	KindNightResults        Kind = "night_results"
	KindNightKillReveal     Kind = "night_kill_reveal"
	KindInvestigationResult Kind = "investigation_result"
	KindGameOver            Kind = "game_over"
	KindError               Kind = "error"
	KindDone                Kind = "done"
)

// ErrUnknownType is returned by Decode for event kinds this client does
// not understand. Callers drop such events and keep reading.
var ErrUnknownType = errors.New("unknown event type")

// Event is implemented by every decoded wire variant.
type Event interface {
	EventKind() Kind
}

// NarratorKey is the actor key used when an event names no character.
const NarratorKey = "narrator"

// ActorKey correlates streaming fragments to one in-progress utterance:
// character id if present, else character name, else the narrator sentinel.
func ActorKey(characterID, characterName string) string {
	if characterID != "" {
		return characterID
	}
	if characterName != "" {
		return characterName
	}
	return NarratorKey
}

// Target is a character the player may aim a night action at.
type Target struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Persona    string `json:"persona,omitempty"`
	PublicRole string `json:"public_role,omitempty"`
	AvatarSeed string `json:"avatar_seed,omitempty"`
}

// RevealedCharacter is the full hidden record of one character, sent only
// when the engine explicitly discloses it (ghost mode, reveals, game end).
type RevealedCharacter struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	HiddenRole   string `json:"hidden_role"`
	Faction      string `json:"faction"`
	IsEliminated bool   `json:"is_eliminated"`
	Persona      string `json:"persona,omitempty"`
	PublicRole   string `json:"public_role,omitempty"`
	AvatarSeed   string `json:"avatar_seed,omitempty"`
}

// Thinking announces a character composing a response.
type Thinking struct {
	CharacterID   string
	CharacterName string
}

// StreamStart opens an incremental utterance for one actor.
type StreamStart struct {
	CharacterID   string
	CharacterName string
}

// StreamDelta carries one text fragment of an in-progress utterance.
type StreamDelta struct {
	CharacterID string
	Delta       string
}

// StreamEnd closes an utterance with the authoritative final text and the
// voice metadata the TTS collaborator needs.
type StreamEnd struct {
	CharacterID   string
	CharacterName string
	Content       string
	TTSText       string
	VoiceID       string
	Emotion       string
}

// Response is the legacy non-streaming utterance: one sealed message with
// no preceding deltas.
type Response struct {
	CharacterID   string
	CharacterName string
	Content       string
	TTSText       string
	VoiceID       string
	Emotion       string
}

// Reaction is a spontaneous interjection, delivered like Response.
type Reaction struct {
	CharacterID   string
	CharacterName string
	Content       string
	TTSText       string
	VoiceID       string
	Emotion       string
}

// Responders lists the characters about to speak.
type Responders struct {
	CharacterIDs []string
}

// Narration is game-master prose, optionally carrying a phase change.
type Narration struct {
	Content string
	Phase   string
	Round   int
}

// Complication injects a dramatic mid-discussion twist.
type Complication struct {
	Content string
	Tension *float64
}

// DiscussionWarning signals the discussion limit is near.
type DiscussionWarning struct {
	Content string
}

// DiscussionEnding forces the transition to voting.
type DiscussionEnding struct {
	Content string
}

// VotingStarted marks the beginning of the vote sequence.
type VotingStarted struct{}

// Vote records a single cast vote.
type Vote struct {
	VoterName  string
	TargetName string
}

// Tally finalizes the vote count.
type Tally struct {
	Tally map[string]int
	IsTie bool
}

// Elimination discloses a voted-out character with their hidden record.
type Elimination struct {
	CharacterID   string
	CharacterName string
	HiddenRole    string
	Faction       string
	Narration     string
}

// PlayerEliminated flips the human participant into ghost mode.
type PlayerEliminated struct {
	HiddenRole    string
	Faction       string
	EliminatedBy  string
	AllCharacters []RevealedCharacter
	Narration     string
}

// NightStarted marks the beginning of the night sequence.
type NightStarted struct{}

// NightAction reports one AI character's night move.
type NightAction struct {
	CharacterID   string
	CharacterName string
	ActionType    string
	Result        string
}

// NightActionPrompt asks the player to choose a night action target.
type NightActionPrompt struct {
	ActionType      string
	EligibleTargets []Target
	Allies          []Target
}

// NightResults summarizes the resolved night.
type NightResults struct {
	Narration     string
	EliminatedIDs []string
}

// NightKillReveal discloses a night-killed character's hidden record.
type NightKillReveal struct {
	CharacterID   string
	CharacterName string
	HiddenRole    string
	Faction       string
	Narration     string
}

// InvestigationResult delivers the player's private investigation outcome.
type InvestigationResult struct {
	Result string
}

// GameOver ends the session with a winning faction.
type GameOver struct {
	Winner    string
	Narration string
}

// ErrorEvent surfaces a mid-stream engine failure.
type ErrorEvent struct {
	CharacterID string
	Message     string
}

// Done is the terminal marker of a stream. Phase and round, when present,
// describe where the engine left the session.
type Done struct {
	Phase   string
	Round   int
	Tension *float64
}

func (Thinking) EventKind() Kind            { return KindThinking }
func (StreamStart) EventKind() Kind         { return KindStreamStart }
func (StreamDelta) EventKind() Kind         { return KindStreamDelta }
func (StreamEnd) EventKind() Kind           { return KindStreamEnd }
func (Response) EventKind() Kind            { return KindResponse }
func (Reaction) EventKind() Kind            { return KindReaction }
func (Responders) EventKind() Kind          { return KindResponders }
func (Narration) EventKind() Kind           { return KindNarration }
func (Complication) EventKind() Kind        { return KindComplication }
func (DiscussionWarning) EventKind() Kind   { return KindDiscussionWarning }
func (DiscussionEnding) EventKind() Kind    { return KindDiscussionEnding }
func (VotingStarted) EventKind() Kind       { return KindVotingStarted }
func (Vote) EventKind() Kind                { return KindVote }
func (Tally) EventKind() Kind               { return KindTally }
func (Elimination) EventKind() Kind         { return KindElimination }
func (PlayerEliminated) EventKind() Kind    { return KindPlayerEliminated }
func (NightStarted) EventKind() Kind        { return KindNightStarted }
func (NightAction) EventKind() Kind         { return KindNightAction }
func (NightActionPrompt) EventKind() Kind   { return KindNightActionPrompt }
func (NightResults) EventKind() Kind        { return KindNightResults }
func (NightKillReveal) EventKind() Kind     { return KindNightKillReveal }
func (InvestigationResult) EventKind() Kind { return KindInvestigationResult }
func (GameOver) EventKind() Kind            { return KindGameOver }
func (ErrorEvent) EventKind() Kind          { return KindError }
func (Done) EventKind() Kind                { return KindDone }

// envelope mirrors the flat wire shape: every optional field of every
// kind. Only Decode sees it.
type envelope struct {
	Type                Kind                `json:"type"`
	CharacterID         string              `json:"character_id"`
	CharacterName       string              `json:"character_name"`
	CharacterIDs        []string            `json:"character_ids"`
	Delta               string              `json:"delta"`
	Content             string              `json:"content"`
	TTSText             string              `json:"tts_text"`
	VoiceID             string              `json:"voice_id"`
	Emotion             string              `json:"emotion"`
	Phase               string              `json:"phase"`
	Round               int                 `json:"round"`
	Tension             *float64            `json:"tension"`
	VoterName           string              `json:"voter_name"`
	TargetName          string              `json:"target_name"`
	Tally               map[string]int      `json:"tally"`
	IsTie               bool                `json:"is_tie"`
	HiddenRole          string              `json:"hidden_role"`
	Faction             string              `json:"faction"`
	EliminatedBy        string              `json:"eliminated_by"`
	AllCharacters       []RevealedCharacter `json:"all_characters"`
	ActionType          string              `json:"action_type"`
	Result              string              `json:"result"`
	EligibleTargets     []Target            `json:"eligible_targets"`
	Allies              []Target            `json:"allies"`
	EliminatedIDs       []string            `json:"eliminated_ids"`
	InvestigationResult string              `json:"investigation_result"`
	Winner              string              `json:"winner"`
	Narration           string              `json:"narration"`
	Error               string              `json:"error"`
}

// Decode parses one raw event line into its typed variant. Malformed JSON
// yields a decode error; a recognized shape with an unknown type yields
// ErrUnknownType.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case KindThinking:
		return Thinking{CharacterID: env.CharacterID, CharacterName: env.CharacterName}, nil
	case KindStreamStart:
		return StreamStart{CharacterID: env.CharacterID, CharacterName: env.CharacterName}, nil
	case KindStreamDelta:
		return StreamDelta{CharacterID: env.CharacterID, Delta: env.Delta}, nil
	case KindStreamEnd:
		return StreamEnd{
			CharacterID:   env.CharacterID,
			CharacterName: env.CharacterName,
			Content:       env.Content,
			TTSText:       env.TTSText,
			VoiceID:       env.VoiceID,
			Emotion:       env.Emotion,
		}, nil
	case KindResponse:
		return Response{
			CharacterID:   env.CharacterID,
			CharacterName: env.CharacterName,
			Content:       env.Content,
			TTSText:       env.TTSText,
			VoiceID:       env.VoiceID,
			Emotion:       env.Emotion,
		}, nil
	case KindReaction:
		return Reaction{
			CharacterID:   env.CharacterID,
			CharacterName: env.CharacterName,
			Content:       env.Content,
			TTSText:       env.TTSText,
			VoiceID:       env.VoiceID,
			Emotion:       env.Emotion,
		}, nil
	case KindResponders:
		return Responders{CharacterIDs: env.CharacterIDs}, nil
	case KindNarration:
		return Narration{Content: env.Content, Phase: env.Phase, Round: env.Round}, nil
	case KindComplication:
		return Complication{Content: env.Content, Tension: env.Tension}, nil
	case KindDiscussionWarning:
		return DiscussionWarning{Content: env.Content}, nil
	case KindDiscussionEnding:
		return DiscussionEnding{Content: env.Content}, nil
	case KindVotingStarted:
		return VotingStarted{}, nil
	case KindVote:
		return Vote{VoterName: env.VoterName, TargetName: env.TargetName}, nil
	case KindTally:
		return Tally{Tally: env.Tally, IsTie: env.IsTie}, nil
	case KindElimination:
		return Elimination{
			CharacterID:   env.CharacterID,
			CharacterName: env.CharacterName,
			HiddenRole:    env.HiddenRole,
			Faction:       env.Faction,
			Narration:     env.Narration,
		}, nil
	case KindPlayerEliminated:
		return PlayerEliminated{
			HiddenRole:    env.HiddenRole,
			Faction:       env.Faction,
			EliminatedBy:  env.EliminatedBy,
			AllCharacters: env.AllCharacters,
			Narration:     env.Narration,
		}, nil
	case KindNightStarted:
		return NightStarted{}, nil
	case KindNightAction:
		return NightAction{
			CharacterID:   env.CharacterID,
			CharacterName: env.CharacterName,
			ActionType:    env.ActionType,
			Result:        env.Result,
		}, nil
	case KindNightActionPrompt:
		return NightActionPrompt{
			ActionType:      env.ActionType,
			EligibleTargets: env.EligibleTargets,
			Allies:          env.Allies,
		}, nil
	case KindNightResults:
		return NightResults{Narration: env.Narration, EliminatedIDs: env.EliminatedIDs}, nil
	case KindNightKillReveal:
		return NightKillReveal{
			CharacterID:   env.CharacterID,
			CharacterName: env.CharacterName,
			HiddenRole:    env.HiddenRole,
			Faction:       env.Faction,
			Narration:     env.Narration,
		}, nil
	case KindInvestigationResult:
		return InvestigationResult{Result: env.InvestigationResult}, nil
	case KindGameOver:
		return GameOver{Winner: env.Winner, Narration: env.Narration}, nil
	case KindError:
		return ErrorEvent{CharacterID: env.CharacterID, Message: env.Error}, nil
	case KindDone:
		return Done{Phase: env.Phase, Round: env.Round, Tension: env.Tension}, nil
	default:
		return nil, ErrUnknownType
	}
}
