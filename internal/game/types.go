package game

// Status is the lifecycle phase of a session. A round is active in every
// status except waiting, starting and end.
type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusStarting       Status = "starting"
	StatusVoting         Status = "voting"
	StatusChoosing       Status = "choosing"
	StatusChoosingWinner Status = "choosingwinner"
	StatusWinnerCardView Status = "winnercardview"
	StatusEnd            Status = "end"
)

// Card is a single playing card. IDs are stable within one deal only; pools
// are rebuilt fresh on every game start.
type Card struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Vote is one submitted response card for the current round. Text is the
// card text at submission time; Visible flips when the master reveals it and
// Winner when the master picks it.
type Vote struct {
	Text     string `json:"text"`
	PlayerID string `json:"playerId"`
	Visible  bool   `json:"visible"`
	Winner   bool   `json:"winner"`
}

// Configuration is the host-controlled session setup. It may change while a
// round is in progress; the new duration only affects rounds started after
// the change.
type Configuration struct {
	VotingDurationSeconds int  `json:"votingDurationSeconds"`
	Reader                bool `json:"reader"`
	MaxScore              int  `json:"maxScore"`
	Version18Plus         bool `json:"version18Plus"`
}

// DefaultConfiguration returns the setup every new session starts with.
func DefaultConfiguration() Configuration {
	return Configuration{
		VotingDurationSeconds: 60,
		Reader:                true,
		MaxScore:              10,
		Version18Plus:         true,
	}
}

// PlayerView is the broadcast-safe projection of a player: no send handle,
// no hand, no pending leave timer.
type PlayerView struct {
	ID           string `json:"id"`
	Nickname     string `json:"nickname"`
	AvatarID     int    `json:"avatarId"`
	Score        int    `json:"score"`
	Host         bool   `json:"host"`
	Master       bool   `json:"master"`
	Voted        bool   `json:"voted"`
	Disconnected bool   `json:"disconnected"`
}

// DeckProvider builds fresh prompt and response pools for one game. When
// mature is false the provider substitutes family-friendly card variants
// where they exist.
type DeckProvider interface {
	Build(mature bool) (prompts, responses []Card)
}
