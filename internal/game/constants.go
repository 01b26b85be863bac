package game

import "time"

const (
	// MinPlayersToStart is the smallest player count a game can start or
	// keep running with.
	MinPlayersToStart = 3

	// MaxPlayersInSession caps room size.
	MaxPlayersInSession = 10

	// HandSize is how many response cards each player holds entering a round.
	HandSize = 10

	// GameStartDelay is the pause between startGame and the first round.
	GameStartDelay = 3 * time.Second

	// WinnerCardViewDuration is how long the winning card stays on screen
	// before the next round or the game end.
	WinnerCardViewDuration = 5 * time.Second

	// LeaveGracePeriod is the window between a disconnect signal and the
	// player actually leaving, allowing quiet reconnects.
	LeaveGracePeriod = 5 * time.Second

	sessionIDLength = 8
)
