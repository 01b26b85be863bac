// Package affinity is the session-to-server routing store: a shared
// key/value surface with expiry used to send reconnecting clients to the
// process that owns their session. Game state never lives here.
package affinity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("affinity: key not found")

// Store is the minimal contract the controller needs. Implementations keep
// replication and persistence to themselves.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
