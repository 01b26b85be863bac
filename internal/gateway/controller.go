// Package gateway bridges websocket connections to session operations: it
// validates inbound frames, keeps per-connection heartbeats, routes commands
// to the right session and fans differential state out to every connection
// in a room.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ndbelyaev/whitecards/internal/affinity"
	"github.com/ndbelyaev/whitecards/internal/events"
	"github.com/ndbelyaev/whitecards/internal/game"
	"github.com/ndbelyaev/whitecards/internal/protocol"
)

// Config holds the controller's runtime settings.
type Config struct {
	// ServerID identifies this process in affinity records.
	ServerID string

	// HeartbeatInterval is the ping cadence; a connection that misses one
	// full interval without a pong is force-closed.
	HeartbeatInterval time.Duration

	// AffinityTTL is the fixed expiry on session routing records.
	AffinityTTL time.Duration

	// CheckOrigin guards the websocket upgrade.
	CheckOrigin func(r *http.Request) bool
}

// peer is the send side of one connection as the controller sees it.
type peer interface {
	Send(data []byte)
	Terminate()
}

// client is the controller's per-connection state. It is only touched from
// the connection's own read goroutine.
type client struct {
	peer     peer
	session  *game.Session
	playerID string
}

// Controller owns protocol dispatch and broadcast for every session in the
// registry.
type Controller struct {
	registry *game.Registry
	store    affinity.Store
	clock    clockwork.Clock
	cfg      Config
	log      zerolog.Logger
	upgrader websocket.Upgrader

	// versions maps session id to the creating client's app version. Process
	// local and volatile: lost on restart, which only disables the
	// compatibility check for sessions created before the restart.
	versionsMu sync.Mutex
	versions   map[string]string

	// closed carries connection-close notifications through the routing
	// layer's own event topic.
	closed events.Topic[*client]
}

// NewController wires a controller to its registry and affinity store.
func NewController(registry *game.Registry, store affinity.Store, clock clockwork.Clock, cfg Config, log zerolog.Logger) *Controller {
	c := &Controller{
		registry: registry,
		store:    store,
		clock:    clock,
		cfg:      cfg,
		log:      log.With().Str("component", "game controller").Logger(),
		versions: make(map[string]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
	c.closed.Subscribe(c.handleClose)
	return c
}

// HandleWS upgrades an HTTP request and serves the connection until it
// closes.
func (c *Controller) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	c.serveConn(r.Context(), ws, r.RemoteAddr)
}

// RegisterRoutes registers the controller's endpoints on an HTTP mux.
func (c *Controller) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", c.HandleWS)
}

func (c *Controller) serveConn(ctx context.Context, ws *websocket.Conn, remote string) {
	log := c.log.With().Str("remote", remote).Logger()
	conn := newConn(ws, log)
	cl := &client{peer: conn}

	go conn.writePump()
	go c.heartbeat(conn)

	defer func() {
		conn.Terminate()
		c.closed.Publish(cl)
	}()

	ws.SetReadLimit(maxMessageSize)
	for {
		data, err := conn.readMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("unexpected close")
			}
			return
		}
		c.dispatch(ctx, cl, data)
	}
}

// heartbeat pings the peer every interval. No pong since the previous ping
// force-closes the connection and stops the ticker.
func (c *Controller) heartbeat(conn *Conn) {
	ticker := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	ping := protocol.NewPingFrame().Encode()
	for {
		select {
		case <-conn.done:
			return
		case <-ticker.Chan():
			if !conn.checkAlive() {
				conn.Terminate()
				return
			}
			conn.Send(ping)
		}
	}
}

// dispatch handles one inbound frame. Every failure is answered with an
// error frame to the sender only; nothing here may terminate the connection
// or leak to other sessions.
func (c *Controller) dispatch(ctx context.Context, cl *client, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("rejected inbound frame")
		cl.peer.Send(protocol.NewErrorFrame(err.Error()).Encode())
		return
	}

	switch msg.Kind {
	case protocol.KindPong:
		if conn, ok := cl.peer.(*Conn); ok {
			conn.markAlive()
		}
		return
	case protocol.KindCreateSession:
		err = c.createSession(ctx, cl, msg.CreateSession)
	case protocol.KindJoinSession:
		err = c.joinSession(ctx, cl, msg.JoinSession)
	case protocol.KindStartGame:
		err = c.withSession(cl, func(s *game.Session, playerID string) error {
			return s.StartGame(playerID)
		})
	case protocol.KindVote:
		err = c.withSession(cl, func(s *game.Session, playerID string) error {
			return s.Vote(playerID, msg.Vote.CardID)
		})
	case protocol.KindChoose:
		err = c.withSession(cl, func(s *game.Session, playerID string) error {
			return s.Choose(playerID, msg.Choose.PlayerID)
		})
	case protocol.KindChooseWinner:
		err = c.withSession(cl, func(s *game.Session, playerID string) error {
			return s.ChooseWinner(playerID, msg.ChooseWinner.PlayerID)
		})
	case protocol.KindUpdateConfiguration:
		err = c.withSession(cl, func(s *game.Session, playerID string) error {
			return s.UpdateConfiguration(playerID, game.Configuration{
				VotingDurationSeconds: msg.Configuration.VotingDurationSeconds,
				Reader:                msg.Configuration.Reader,
				MaxScore:              msg.Configuration.MaxScore,
				Version18Plus:         msg.Configuration.Version18Plus,
			})
		})
	}

	if err != nil {
		c.log.Debug().Err(err).Str("kind", string(msg.Kind)).Msg("command rejected")
		cl.peer.Send(protocol.NewErrorFrame(err.Error()).Encode())
	}
}

func (c *Controller) withSession(cl *client, op func(s *game.Session, playerID string) error) error {
	if cl.session == nil {
		return errNoSession
	}
	return op(cl.session, cl.playerID)
}

// createSession makes a room with the caller as host. The affinity record is
// published before the caller joins; if that write fails the registry insert
// is reversed and the caller gets a generic internal error.
func (c *Controller) createSession(ctx context.Context, cl *client, d *protocol.CreateSession) error {
	if cl.session != nil {
		return errAlreadyInSession
	}

	sess := c.registry.Create()

	if err := c.store.Set(ctx, affinityKey(sess.ID()), c.cfg.ServerID, c.cfg.AffinityTTL); err != nil {
		c.registry.Delete(sess.ID())
		c.log.Error().Err(err).Str("session_id", sess.ID()).Msg("publish affinity record")
		return errInternal
	}

	playerID, err := sess.Join(cl.peer, d.Nickname, d.AvatarID, true)
	if err != nil {
		c.teardownSession(sess)
		c.log.Error().Err(err).Str("session_id", sess.ID()).Msg("host join failed")
		return errInternal
	}

	c.versionsMu.Lock()
	c.versions[sess.ID()] = d.AppVersion
	c.versionsMu.Unlock()

	c.bindSession(sess)

	cl.session = sess
	cl.playerID = playerID

	snap, err := sess.Snapshot(playerID)
	if err != nil {
		c.teardownSession(sess)
		c.log.Error().Err(err).Str("session_id", sess.ID()).Msg("snapshot after create")
		return errInternal
	}

	cl.peer.Send(protocol.NewStateFrame(protocol.OutCreate, protocol.ChangedState{
		ID:            snap.ID,
		Status:        snap.Status,
		PlayerID:      snap.PlayerID,
		Players:       snap.Players,
		Configuration: &snap.Configuration,
	}).Encode())

	c.log.Info().Str("session_id", sess.ID()).Str("app_version", d.AppVersion).Msg("session created")
	return nil
}

// joinSession admits the caller into an existing room after the version
// compatibility check. Rejoins of absent players go through the same path.
func (c *Controller) joinSession(_ context.Context, cl *client, d *protocol.JoinSession) error {
	if cl.session != nil {
		return errAlreadyInSession
	}

	sess, ok := c.registry.Get(d.SessionID)
	if !ok {
		return errSessionNotFound
	}

	if recorded := c.recordedVersion(sess.ID()); recorded != "" && !compatibleVersions(d.AppVersion, recorded) {
		return errVersionMismatch
	}

	playerID, err := sess.Join(cl.peer, d.Nickname, d.AvatarID, false)
	if err != nil {
		return err
	}

	cl.session = sess
	cl.playerID = playerID

	snap, err := sess.Snapshot(playerID)
	if err != nil {
		return err
	}

	cl.peer.Send(protocol.NewStateFrame(protocol.OutJoin, protocol.ChangedState{
		ID:            snap.ID,
		Status:        snap.Status,
		PlayerID:      snap.PlayerID,
		Players:       snap.Players,
		Hand:          protocol.Hand(snap.Hand),
		PromptCard:    snap.PromptCard,
		Votes:         protocol.Votes(snap.Votes),
		VotingEndsAt:  protocol.DeadlineMillis(snap.VotingEndsAt),
		Configuration: &snap.Configuration,
	}).Encode())
	return nil
}

// handleClose runs when a connection's read loop ends for any reason. The
// leave may legitimately fail (duplicate close signals for one connection);
// that is logged and swallowed.
func (c *Controller) handleClose(cl *client) {
	if cl.session == nil {
		return
	}
	if err := cl.session.Leave(cl.playerID); err != nil {
		c.log.Debug().Err(err).Str("session_id", cl.session.ID()).Msg("leave on close")
	}
	cl.session = nil
	cl.playerID = ""
}

// teardownSession reverses everything createSession set up. Affinity record
// deletion is best effort: the record expires on its own.
func (c *Controller) teardownSession(sess *game.Session) {
	sess.Events().Clear()

	c.versionsMu.Lock()
	delete(c.versions, sess.ID())
	c.versionsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Delete(ctx, affinityKey(sess.ID())); err != nil {
		c.log.Warn().Err(err).Str("session_id", sess.ID()).Msg("delete affinity record")
	}

	c.registry.Delete(sess.ID())
	c.log.Info().Str("session_id", sess.ID()).Msg("session torn down")
}

func (c *Controller) recordedVersion(sessionID string) string {
	c.versionsMu.Lock()
	defer c.versionsMu.Unlock()
	return c.versions[sessionID]
}

func affinityKey(sessionID string) string {
	return "sessionserver." + sessionID
}
