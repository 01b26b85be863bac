// Package protocol defines the websocket wire format: a closed set of
// tagged inbound commands and a closed set of outbound diff frames.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind tags an inbound frame.
type Kind string

const (
	KindCreateSession       Kind = "createsession"
	KindJoinSession         Kind = "joinsession"
	KindStartGame           Kind = "startgame"
	KindVote                Kind = "vote"
	KindChoose              Kind = "choose"
	KindChooseWinner        Kind = "choosewinner"
	KindUpdateConfiguration Kind = "updateconfiguration"
	KindPong                Kind = "pong"
)

// MalformedError covers frames that fail to parse or validate. Its message
// is safe to echo back to the sender.
type MalformedError struct {
	reason string
}

func (e *MalformedError) Error() string {
	return "malformed message: " + e.reason
}

// IsMalformed reports whether err is a frame parse/validation failure.
func IsMalformed(err error) bool {
	var m *MalformedError
	return errors.As(err, &m)
}

// CreateSession asks for a fresh room with the sender as host.
type CreateSession struct {
	Nickname   string `json:"nickname" validate:"required,max=24"`
	AvatarID   int    `json:"avatarId" validate:"gte=0"`
	AppVersion string `json:"appVersion" validate:"required,semver"`
}

// JoinSession asks to join (or rejoin) an existing room.
type JoinSession struct {
	Nickname   string `json:"nickname" validate:"required,max=24"`
	SessionID  string `json:"sessionId" validate:"required"`
	AvatarID   int    `json:"avatarId" validate:"gte=0"`
	AppVersion string `json:"appVersion" validate:"required,semver"`
}

// VoteDetails submits one card from the sender's hand.
type VoteDetails struct {
	CardID string `json:"cardId" validate:"required"`
}

// ChooseDetails names a player whose vote the master reveals or rewards.
type ChooseDetails struct {
	PlayerID string `json:"playerId" validate:"required"`
}

// ConfigurationDetails replaces the session configuration wholesale.
type ConfigurationDetails struct {
	VotingDurationSeconds int  `json:"votingDurationSeconds" validate:"oneof=30 60 90"`
	Reader                bool `json:"reader"`
	MaxScore              int  `json:"maxScore" validate:"oneof=10 15 20"`
	Version18Plus         bool `json:"version18Plus"`
}

// Message is one decoded inbound frame. Exactly the field matching Kind is
// set; frames without details (startgame, pong) carry only the kind.
type Message struct {
	Kind          Kind
	CreateSession *CreateSession
	JoinSession   *JoinSession
	Vote          *VoteDetails
	Choose        *ChooseDetails
	ChooseWinner  *ChooseDetails
	Configuration *ConfigurationDetails
}

type envelope struct {
	Type    Kind            `json:"type"`
	Details json.RawMessage `json:"details"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses and validates one raw frame. Failures return a
// MalformedError whose message can be surfaced to the sender as-is.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, &MalformedError{reason: "invalid json"}
	}

	msg := Message{Kind: env.Type}

	switch env.Type {
	case KindStartGame, KindPong:
		return msg, nil
	case KindCreateSession:
		msg.CreateSession = &CreateSession{}
		return msg, decodeDetails(env.Details, msg.CreateSession)
	case KindJoinSession:
		msg.JoinSession = &JoinSession{}
		return msg, decodeDetails(env.Details, msg.JoinSession)
	case KindVote:
		msg.Vote = &VoteDetails{}
		return msg, decodeDetails(env.Details, msg.Vote)
	case KindChoose:
		msg.Choose = &ChooseDetails{}
		return msg, decodeDetails(env.Details, msg.Choose)
	case KindChooseWinner:
		msg.ChooseWinner = &ChooseDetails{}
		return msg, decodeDetails(env.Details, msg.ChooseWinner)
	case KindUpdateConfiguration:
		msg.Configuration = &ConfigurationDetails{}
		return msg, decodeDetails(env.Details, msg.Configuration)
	}

	return Message{}, &MalformedError{reason: fmt.Sprintf("unknown message type %q", env.Type)}
}

func decodeDetails(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return &MalformedError{reason: "missing details"}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &MalformedError{reason: "invalid details"}
	}
	if err := validate.Struct(target); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return &MalformedError{reason: "invalid details"}
		}
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]
			return &MalformedError{reason: fmt.Sprintf("invalid field %s", f.Field())}
		}
		return &MalformedError{reason: "invalid details"}
	}
	return nil
}
