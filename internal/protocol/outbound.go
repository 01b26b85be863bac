package protocol

import (
	"encoding/json"
	"time"

	"github.com/ndbelyaev/whitecards/internal/game"
)

// OutKind tags an outbound frame.
type OutKind string

const (
	OutCreate              OutKind = "create"
	OutJoin                OutKind = "join"
	OutGameStart           OutKind = "gamestart"
	OutVotingStart         OutKind = "votingstart"
	OutChoosingStart       OutKind = "choosingstart"
	OutChoosingWinnerStart OutKind = "choosingwinnerstart"
	OutWinnerCardView      OutKind = "winnercardview"
	OutGameEnd             OutKind = "gameend"
	OutVote                OutKind = "vote"
	OutChoose              OutKind = "choose"
	OutChooseWinner        OutKind = "choosewinner"
	OutConfigurationChange OutKind = "configurationchange"
	OutPlayerJoin          OutKind = "playerjoin"
	OutPlayerLeave         OutKind = "playerleave"
	OutPing                OutKind = "ping"
	OutError               OutKind = "error"
)

// ChangedState is the diff payload: only fields that changed for a
// transition are set, and receivers merge them into previously held state.
// Hand and Votes are pointers so an explicit empty list (clearing the
// client's copy) survives serialization.
type ChangedState struct {
	ID            string              `json:"id,omitempty"`
	Status        game.Status         `json:"status,omitempty"`
	PlayerID      string              `json:"playerId,omitempty"`
	Players       []game.PlayerView   `json:"players,omitempty"`
	Hand          *[]game.Card        `json:"hand,omitempty"`
	PromptCard    string              `json:"promptCard,omitempty"`
	Votes         *[]game.Vote        `json:"votes,omitempty"`
	VotingEndsAt  *int64              `json:"votingEndsAt,omitempty"`
	Configuration *game.Configuration `json:"configuration,omitempty"`
}

// Details is the body of an outbound frame.
type Details struct {
	ChangedState   *ChangedState `json:"changedState,omitempty"`
	ChosenPlayerID string        `json:"chosenPlayerId,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// Outbound is one server-to-client frame.
type Outbound struct {
	Type    OutKind  `json:"type"`
	Details *Details `json:"details,omitempty"`
}

// Encode serializes the frame. Marshalling these types cannot fail; the
// panic guards against a frame definition regressing to something that can.
func (o Outbound) Encode() []byte {
	data, err := json.Marshal(o)
	if err != nil {
		panic("protocol: unencodable outbound frame: " + err.Error())
	}
	return data
}

// NewStateFrame builds a frame carrying only a state diff.
func NewStateFrame(kind OutKind, state ChangedState) Outbound {
	return Outbound{Type: kind, Details: &Details{ChangedState: &state}}
}

// NewErrorFrame builds an error frame with a user-facing message.
func NewErrorFrame(message string) Outbound {
	return Outbound{Type: OutError, Details: &Details{Message: message}}
}

// NewPingFrame builds the heartbeat frame.
func NewPingFrame() Outbound {
	return Outbound{Type: OutPing}
}

// Hand wraps a hand slice for ChangedState, preserving explicit emptiness.
func Hand(cards []game.Card) *[]game.Card {
	if cards == nil {
		cards = []game.Card{}
	}
	return &cards
}

// Votes wraps a vote list for ChangedState, preserving explicit emptiness.
func Votes(votes []game.Vote) *[]game.Vote {
	if votes == nil {
		votes = []game.Vote{}
	}
	return &votes
}

// DeadlineMillis converts an absolute deadline to the wire representation.
func DeadlineMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
