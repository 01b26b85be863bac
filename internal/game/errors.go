package game

import "errors"

// Domain errors returned by session operations. A failed precondition leaves
// session state untouched; messages are safe to surface to clients verbatim.
var (
	ErrPlayerNotFound         = errors.New("player not found in session")
	ErrNicknameTaken          = errors.New("nickname is already taken")
	ErrSessionFull            = errors.New("session is full")
	ErrGameInProgress         = errors.New("game is already in progress")
	ErrNotHost                = errors.New("only the host can do that")
	ErrNotEnoughPlayers       = errors.New("not enough players to start the game")
	ErrVoteNotAllowed         = errors.New("voting is not allowed right now")
	ErrCardNotFound           = errors.New("card is not in your hand")
	ErrChooseNotAllowed       = errors.New("only the master can reveal votes right now")
	ErrChooseWinnerNotAllowed = errors.New("only the master can pick a winner right now")
	ErrVoteNotFound           = errors.New("no vote from that player")
	ErrAlreadyDisconnected    = errors.New("player is already disconnected")
	ErrLeaveInProgress        = errors.New("player is already leaving")
)
