package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ndbelyaev/whitecards/internal/affinity"
	"github.com/ndbelyaev/whitecards/internal/game"
	"github.com/ndbelyaev/whitecards/internal/protocol"
)

type stubDeck struct{}

func (stubDeck) Build(mature bool) (prompts, responses []game.Card) {
	for i := 0; i < 40; i++ {
		prompts = append(prompts, game.Card{ID: strconv.Itoa(i), Text: fmt.Sprintf("prompt %d", i)})
	}
	for i := 0; i < 120; i++ {
		responses = append(responses, game.Card{ID: strconv.Itoa(i), Text: fmt.Sprintf("response %d", i)})
	}
	return prompts, responses
}

type fakePeer struct {
	mu         sync.Mutex
	frames     []protocol.Outbound
	terminated bool
}

func (p *fakePeer) Send(data []byte) {
	var frame protocol.Outbound
	if err := json.Unmarshal(data, &frame); err != nil {
		panic("unparseable outbound frame: " + err.Error())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame)
}

func (p *fakePeer) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = true
}

func (p *fakePeer) lastFrame(t *testing.T) protocol.Outbound {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		t.Fatalf("peer received no frames")
	}
	return p.frames[len(p.frames)-1]
}

func (p *fakePeer) countKind(kind protocol.OutKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, f := range p.frames {
		if f.Type == kind {
			n++
		}
	}
	return n
}

type failingStore struct{}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("store unavailable")
}
func (failingStore) Get(context.Context, string) (string, error) { return "", affinity.ErrNotFound }
func (failingStore) Delete(context.Context, string) error        { return nil }

func newTestController(store affinity.Store, clock clockwork.Clock) *Controller {
	registry := game.NewRegistry(stubDeck{}, clock, zerolog.Nop())
	cfg := Config{
		ServerID:          "srv1",
		HeartbeatInterval: 10 * time.Second,
		AffinityTTL:       time.Hour,
	}
	return NewController(registry, store, clock, cfg, zerolog.Nop())
}

func send(c *Controller, cl *client, raw string) {
	c.dispatch(context.Background(), cl, []byte(raw))
}

func createSessionFor(t *testing.T, c *Controller, peer *fakePeer, nickname, version string) *client {
	t.Helper()
	cl := &client{peer: peer}
	send(c, cl, `{"type":"createsession","details":{"nickname":"`+nickname+`","avatarId":0,"appVersion":"`+version+`"}}`)
	if cl.session == nil {
		t.Fatalf("create did not bind a session: last frame %+v", peer.lastFrame(t))
	}
	return cl
}

func TestCreateSessionSendsSnapshotAndAffinity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := affinity.NewMemory(clock)
	c := newTestController(store, clock)

	peer := &fakePeer{}
	cl := createSessionFor(t, c, peer, "alice", "1.4.0")

	frame := peer.lastFrame(t)
	if frame.Type != protocol.OutCreate {
		t.Fatalf("frame type: got %s", frame.Type)
	}
	cs := frame.Details.ChangedState
	if cs.ID != cl.session.ID() || cs.PlayerID != cl.playerID {
		t.Fatalf("snapshot frame: %+v", cs)
	}
	if len(cs.Players) != 1 || !cs.Players[0].Host {
		t.Fatalf("players: %+v", cs.Players)
	}
	if cs.Configuration == nil || *cs.Configuration != game.DefaultConfiguration() {
		t.Fatalf("configuration: %+v", cs.Configuration)
	}

	if c.registry.Len() != 1 {
		t.Fatalf("registry: %d sessions", c.registry.Len())
	}
	server, err := store.Get(context.Background(), "sessionserver."+cl.session.ID())
	if err != nil || server != "srv1" {
		t.Fatalf("affinity record: %q, %v", server, err)
	}
}

func TestCreateSessionRollsBackOnStoreFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(failingStore{}, clock)

	peer := &fakePeer{}
	cl := &client{peer: peer}
	send(c, cl, `{"type":"createsession","details":{"nickname":"alice","avatarId":0,"appVersion":"1.0.0"}}`)

	if cl.session != nil {
		t.Fatalf("client bound to a session despite failure")
	}
	frame := peer.lastFrame(t)
	if frame.Type != protocol.OutError || frame.Details.Message != errInternal.Error() {
		t.Fatalf("expected internal error frame, got %+v", frame)
	}
	if c.registry.Len() != 0 {
		t.Fatalf("failed create left %d sessions in the registry", c.registry.Len())
	}
}

func TestCreateSessionWhileAlreadyInOne(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	peer := &fakePeer{}
	cl := createSessionFor(t, c, peer, "alice", "1.0.0")
	first := cl.session

	send(c, cl, `{"type":"createsession","details":{"nickname":"alice","avatarId":0,"appVersion":"1.0.0"}}`)

	frame := peer.lastFrame(t)
	if frame.Type != protocol.OutError || frame.Details.Message != errAlreadyInSession.Error() {
		t.Fatalf("expected already-in-session error, got %+v", frame)
	}
	if cl.session != first || c.registry.Len() != 1 {
		t.Fatalf("duplicate create changed state")
	}
}

func TestJoinSessionUnknownID(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	peer := &fakePeer{}
	cl := &client{peer: peer}
	send(c, cl, `{"type":"joinsession","details":{"nickname":"bob","sessionId":"missing1","avatarId":0,"appVersion":"1.0.0"}}`)

	frame := peer.lastFrame(t)
	if frame.Type != protocol.OutError || frame.Details.Message != errSessionNotFound.Error() {
		t.Fatalf("expected session-not-found error, got %+v", frame)
	}
}

func TestJoinSessionVersionGate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	host := createSessionFor(t, c, &fakePeer{}, "alice", "1.4.0")
	sessionID := host.session.ID()

	// A major version ahead is rejected.
	rejected := &fakePeer{}
	badCl := &client{peer: rejected}
	send(c, badCl, `{"type":"joinsession","details":{"nickname":"bob","sessionId":"`+sessionID+`","avatarId":1,"appVersion":"2.0.0"}}`)
	frame := rejected.lastFrame(t)
	if frame.Type != protocol.OutError || frame.Details.Message != errVersionMismatch.Error() {
		t.Fatalf("expected version mismatch, got %+v", frame)
	}
	if badCl.session != nil {
		t.Fatalf("rejected client bound to the session")
	}

	// Same major, newer minor is admitted.
	admitted := &fakePeer{}
	goodCl := &client{peer: admitted}
	send(c, goodCl, `{"type":"joinsession","details":{"nickname":"bob","sessionId":"`+sessionID+`","avatarId":1,"appVersion":"1.9.2"}}`)
	frame = admitted.lastFrame(t)
	if frame.Type != protocol.OutJoin {
		t.Fatalf("expected join frame, got %+v", frame)
	}
	cs := frame.Details.ChangedState
	if cs.ID != sessionID || len(cs.Players) != 2 {
		t.Fatalf("join snapshot: %+v", cs)
	}
	if cs.Hand == nil || cs.Votes == nil {
		t.Fatalf("join snapshot must carry explicit hand and vote lists")
	}
	if goodCl.session == nil || goodCl.playerID == "" {
		t.Fatalf("join did not bind the client")
	}
}

func TestJoinBroadcastSkipsTheJoiner(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	hostPeer := &fakePeer{}
	host := createSessionFor(t, c, hostPeer, "alice", "1.0.0")

	joinerPeer := &fakePeer{}
	cl := &client{peer: joinerPeer}
	send(c, cl, `{"type":"joinsession","details":{"nickname":"bob","sessionId":"`+host.session.ID()+`","avatarId":0,"appVersion":"1.0.0"}}`)

	if got := hostPeer.countKind(protocol.OutPlayerJoin); got != 1 {
		t.Fatalf("host saw %d playerjoin frames, want 1", got)
	}
	if got := joinerPeer.countKind(protocol.OutPlayerJoin); got != 0 {
		t.Fatalf("joiner saw their own playerjoin broadcast")
	}
}

func TestCommandWithoutSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	peer := &fakePeer{}
	cl := &client{peer: peer}
	send(c, cl, `{"type":"startgame"}`)

	frame := peer.lastFrame(t)
	if frame.Type != protocol.OutError || frame.Details.Message != errNoSession.Error() {
		t.Fatalf("expected no-session error, got %+v", frame)
	}
}

func TestMalformedFrameAnswersErrorOnly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	peer := &fakePeer{}
	cl := &client{peer: peer}
	send(c, cl, `{"type":"vote","details":{"cardId":""}}`)

	frame := peer.lastFrame(t)
	if frame.Type != protocol.OutError {
		t.Fatalf("expected error frame, got %+v", frame)
	}
	if peer.terminated {
		t.Fatalf("malformed frame must not terminate the connection")
	}
}

func TestCommandErrorsOnlyReachTheSender(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	hostPeer := &fakePeer{}
	host := createSessionFor(t, c, hostPeer, "alice", "1.0.0")

	bobPeer := &fakePeer{}
	bob := &client{peer: bobPeer}
	send(c, bob, `{"type":"joinsession","details":{"nickname":"bob","sessionId":"`+host.session.ID()+`","avatarId":0,"appVersion":"1.0.0"}}`)

	// Not the host: the rejection goes to bob alone.
	send(c, bob, `{"type":"startgame"}`)

	if got := bobPeer.countKind(protocol.OutError); got != 1 {
		t.Fatalf("bob saw %d error frames, want 1", got)
	}
	if got := hostPeer.countKind(protocol.OutError); got != 0 {
		t.Fatalf("host saw a stranger's error frame")
	}
}

func TestConfigurationChangeIsBroadcast(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	hostPeer := &fakePeer{}
	host := createSessionFor(t, c, hostPeer, "alice", "1.0.0")

	bobPeer := &fakePeer{}
	bob := &client{peer: bobPeer}
	send(c, bob, `{"type":"joinsession","details":{"nickname":"bob","sessionId":"`+host.session.ID()+`","avatarId":0,"appVersion":"1.0.0"}}`)

	send(c, host, `{"type":"updateconfiguration","details":{"votingDurationSeconds":30,"reader":true,"maxScore":15,"version18Plus":false}}`)

	for name, peer := range map[string]*fakePeer{"host": hostPeer, "bob": bobPeer} {
		if got := peer.countKind(protocol.OutConfigurationChange); got != 1 {
			t.Fatalf("%s saw %d configurationchange frames, want 1", name, got)
		}
	}
	frame := hostPeer.lastFrame(t)
	cfg := frame.Details.ChangedState.Configuration
	if cfg == nil || cfg.VotingDurationSeconds != 30 || cfg.MaxScore != 15 || cfg.Version18Plus {
		t.Fatalf("broadcast configuration: %+v", cfg)
	}
}

func TestCloseTearsDownEmptiedSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := affinity.NewMemory(clock)
	c := newTestController(store, clock)

	peer := &fakePeer{}
	cl := createSessionFor(t, c, peer, "alice", "1.0.0")
	key := "sessionserver." + cl.session.ID()

	c.closed.Publish(cl)
	if cl.session != nil {
		t.Fatalf("close did not unbind the client")
	}

	clock.Advance(game.LeaveGracePeriod)
	waitFor(t, "session teardown", func() bool { return c.registry.Len() == 0 })

	if _, err := store.Get(context.Background(), key); !errors.Is(err, affinity.ErrNotFound) {
		t.Fatalf("affinity record survived teardown: %v", err)
	}
}

func TestDuplicateCloseIsHarmless(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)

	hostPeer := &fakePeer{}
	host := createSessionFor(t, c, hostPeer, "alice", "1.0.0")

	bobPeer := &fakePeer{}
	bob := &client{peer: bobPeer}
	send(c, bob, `{"type":"joinsession","details":{"nickname":"bob","sessionId":"`+host.session.ID()+`","avatarId":0,"appVersion":"1.0.0"}}`)

	c.closed.Publish(bob)
	c.closed.Publish(bob) // second close signal must be swallowed

	clock.Advance(game.LeaveGracePeriod)
	waitFor(t, "bob removed", func() bool {
		snap, err := host.session.Snapshot(host.playerID)
		return err == nil && len(snap.Players) == 1
	})
	if c.registry.Len() != 1 {
		t.Fatalf("session with a remaining player was torn down")
	}
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}
