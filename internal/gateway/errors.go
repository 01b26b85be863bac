package gateway

import "errors"

// Controller-level errors. Like the game's domain errors their messages are
// sent to the offending connection verbatim; errInternal is the one generic
// message hiding whatever actually went wrong.
var (
	errNoSession        = errors.New("you are not in a session")
	errAlreadyInSession = errors.New("you are already in a session")
	errSessionNotFound  = errors.New("session not found")
	errVersionMismatch  = errors.New("your app version is incompatible with this session")
	errInternal         = errors.New("internal server error")
)
