package game

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Registry owns every live session in the process: create, lookup, delete.
// It is an explicit object handed to the controller rather than ambient
// global state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	deck  DeckProvider
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewRegistry creates an empty registry. Sessions it creates share the given
// deck provider and clock.
func NewRegistry(deck DeckProvider, clock clockwork.Clock, log zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		deck:     deck,
		clock:    clock,
		log:      log.With().Str("component", "session registry").Logger(),
	}
}

// Create makes a new waiting session under a fresh short id.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for {
		id = uuid.NewString()[:sessionIDLength]
		if _, taken := r.sessions[id]; !taken {
			break
		}
	}

	rng := rand.New(rand.NewSource(rand.Int63()))
	sess := newSession(id, r.deck, r.clock, rng, r.log)
	r.sessions[id] = sess

	r.log.Info().Str("session_id", id).Int("sessions", len(r.sessions)).Msg("session created")
	return sess
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Delete removes a session from the registry. The session's own timers are
// expected to be cleared by whoever drove it to its end.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	r.log.Info().Str("session_id", id).Int("sessions", len(r.sessions)).Msg("session deleted")
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
