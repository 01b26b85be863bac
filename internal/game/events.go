package game

import (
	"time"

	"github.com/ndbelyaev/whitecards/internal/events"
)

// Recipient is one present player's delivery target for a broadcast, paired
// with a copy of their own hand. Hands travel per recipient so a player's
// cards are only ever serialized into frames addressed to that player.
type Recipient struct {
	PlayerID string
	Sender   Sender
	Hand     []Card
}

// StatusEvent describes a state-machine transition together with everything
// a broadcaster needs to build the per-status diff frames.
type StatusEvent struct {
	Status       Status
	Players      []PlayerView
	Votes        []Vote
	PromptCard   string
	VotingEndsAt *time.Time
	Recipients   []Recipient
}

// VoteEvent is emitted when a player submits a response card.
type VoteEvent struct {
	Vote       Vote
	Players    []PlayerView
	Votes      []Vote
	Recipients []Recipient
}

// ChooseEvent is emitted when the master reveals one vote.
type ChooseEvent struct {
	ChosenPlayerID string
	Votes          []Vote
	Recipients     []Recipient
}

// ChooseWinnerEvent is emitted when the master picks the round winner.
type ChooseWinnerEvent struct {
	Votes      []Vote
	Players    []PlayerView
	Recipients []Recipient
}

// JoinEvent is emitted for both new players and rejoins.
type JoinEvent struct {
	Player     PlayerView
	Players    []PlayerView
	Recipients []Recipient
}

// LeaveEvent is emitted once a leave-grace timer fires and the player is
// removed or marked disconnected.
type LeaveEvent struct {
	Player     PlayerView
	Players    []PlayerView
	Recipients []Recipient
}

// ConfigurationEvent is emitted when the host replaces the configuration.
type ConfigurationEvent struct {
	Configuration Configuration
	Recipients    []Recipient
}

// Events is the per-session event surface: one typed topic per event kind.
// Topics publish synchronously while the session holds its own lock, so
// subscribers observe events in emission order.
type Events struct {
	StatusChange        events.Topic[StatusEvent]
	Join                events.Topic[JoinEvent]
	Leave               events.Topic[LeaveEvent]
	SessionEnd          events.Topic[struct{}]
	ConfigurationChange events.Topic[ConfigurationEvent]
	Vote                events.Topic[VoteEvent]
	Choose              events.Topic[ChooseEvent]
	ChooseWinner        events.Topic[ChooseWinnerEvent]
}

// Clear drops every subscriber on every topic. Called at session teardown.
func (e *Events) Clear() {
	e.StatusChange.Clear()
	e.Join.Clear()
	e.Leave.Clear()
	e.SessionEnd.Clear()
	e.ConfigurationChange.Clear()
	e.Vote.Clear()
	e.Choose.Clear()
	e.ChooseWinner.Clear()
}
