package game

import (
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Session is one game room: its players, round state, card pools and pending
// timers. All mutation happens under a single mutex, held across the
// mutation and the resulting event publishes, so operations and timer
// callbacks never interleave mid-way and subscribers see events in emission
// order.
type Session struct {
	mu sync.Mutex

	id           string
	status       Status
	config       Configuration
	players      []*Player
	votes        []*Vote
	promptCard   string
	promptPool   []Card
	responsePool []Card
	timers       roundTimers
	events       Events

	deck  DeckProvider
	clock clockwork.Clock
	rng   *rand.Rand
	log   zerolog.Logger
}

func newSession(id string, deck DeckProvider, clock clockwork.Clock, rng *rand.Rand, log zerolog.Logger) *Session {
	return &Session{
		id:     id,
		status: StatusWaiting,
		config: DefaultConfiguration(),
		deck:   deck,
		clock:  clock,
		rng:    rng,
		log:    log.With().Str("session_id", id).Logger(),
	}
}

// ID returns the session's short identifier.
func (s *Session) ID() string {
	return s.id
}

// Status returns the current state-machine phase.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Configuration returns the current host-controlled setup.
func (s *Session) Configuration() Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Events exposes the session's typed event topics.
func (s *Session) Events() *Events {
	return &s.events
}

// Snapshot is the full per-player state used for join confirmations. Unlike
// broadcast diffs it carries everything the client needs to render from
// scratch.
type Snapshot struct {
	ID            string
	Status        Status
	PlayerID      string
	Players       []PlayerView
	Hand          []Card
	PromptCard    string
	Votes         []Vote
	VotingEndsAt  *time.Time
	Configuration Configuration
}

// Snapshot builds the full state view addressed to one player.
func (s *Session) Snapshot(playerID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findPlayerLocked(playerID)
	if p == nil {
		return Snapshot{}, ErrPlayerNotFound
	}

	snap := Snapshot{
		ID:            s.id,
		Status:        s.status,
		PlayerID:      p.ID,
		Players:       s.viewsLocked(),
		Hand:          p.handCopy(),
		PromptCard:    s.promptCard,
		Votes:         s.votesCopyLocked(),
		Configuration: s.config,
	}
	if t := s.timers.get(slotVoting); t != nil {
		at := t.FireAt()
		snap.VotingEndsAt = &at
	}
	return snap, nil
}

// Join adds a player or rebinds an absent one. If a currently-absent player
// (disconnected or mid-leave-grace) holds the nickname this is a rejoin:
// their grace timer is cancelled and their send capability replaced. A
// present player holding the nickname is a collision. New players are only
// admitted while no round is active and the room has space.
func (s *Session) Join(sender Sender, nickname string, avatarID int, host bool) (playerID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *Player
	for _, p := range s.players {
		if p.Nickname == nickname {
			existing = p
			break
		}
	}

	if existing != nil {
		if existing.present() {
			return "", ErrNicknameTaken
		}

		existing.Disconnected = false
		if existing.leaveTimeout != nil {
			existing.leaveTimeout.Stop()
			existing.leaveTimeout = nil
		}
		existing.AvatarID = avatarID
		existing.sender = sender

		s.emitJoinLocked(existing)
		return existing.ID, nil
	}

	if len(s.players) >= MaxPlayersInSession {
		return "", ErrSessionFull
	}
	if s.playingLocked() {
		return "", ErrGameInProgress
	}

	player := &Player{
		ID:       uuid.NewString(),
		Nickname: nickname,
		AvatarID: avatarID,
		Host:     host,
		sender:   sender,
	}
	s.players = append(s.players, player)

	s.emitJoinLocked(player)
	return player.ID, nil
}

// Leave starts the player's grace period. The player only actually leaves
// when the grace timer fires; a rejoin before that cancels it. Duplicate
// leave signals for one connection are rejected.
func (s *Session) Leave(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findPlayerLocked(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if p.Disconnected {
		return ErrAlreadyDisconnected
	}
	if p.leaveTimeout != nil {
		return ErrLeaveInProgress
	}

	var t *Timeout
	t = newTimeout(s.clock, LeaveGracePeriod, func() {
		s.finishLeave(playerID, t)
	})
	p.leaveTimeout = t
	return nil
}

// finishLeave runs when a grace timer fires. The timer identity check makes
// a timer superseded by a rejoin a no-op even if its callback already
// started racing for the lock.
func (s *Session) finishLeave(playerID string, t *Timeout) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findPlayerLocked(playerID)
	if p == nil || p.leaveTimeout != t {
		return
	}
	p.leaveTimeout = nil

	playing := s.playingLocked()
	if playing {
		p.Disconnected = true
	} else {
		s.players = slices.DeleteFunc(s.players, func(other *Player) bool {
			return other.ID == playerID
		})
	}

	var remaining []*Player
	for _, other := range s.players {
		if !other.Disconnected {
			remaining = append(remaining, other)
		}
	}

	if len(remaining) == 0 {
		s.timers.clear()
		s.emitLeaveLocked(p)
		s.events.SessionEnd.Publish(struct{}{})
		return
	}

	if p.Host {
		if playing {
			p.Host = false
		}
		remaining[0].Host = true
	}
	if playing && p.Master {
		s.passMasterLocked()
	}

	s.emitLeaveLocked(p)

	if playing && len(remaining) < MinPlayersToStart {
		s.endGameLocked()
	}
}

// UpdateConfiguration replaces the configuration wholesale. Host only. There
// is deliberately no state guard: a change mid-round is allowed and only
// affects rounds started afterwards.
func (s *Session) UpdateConfiguration(playerID string, config Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findPlayerLocked(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if !p.Host {
		return ErrNotHost
	}

	s.config = config
	s.events.ConfigurationChange.Publish(ConfigurationEvent{
		Configuration: config,
		Recipients:    s.recipientsLocked(),
	})
	return nil
}

// StartGame resets scores, builds fresh card pools and schedules the start
// delay. Host only; rejected while a round is active or with too few
// players.
func (s *Session) StartGame(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findPlayerLocked(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if !p.Host {
		return ErrNotHost
	}
	if s.playingLocked() {
		return ErrGameInProgress
	}
	if len(s.players) < MinPlayersToStart {
		return ErrNotEnoughPlayers
	}

	s.status = StatusStarting
	s.promptPool, s.responsePool = s.deck.Build(s.config.Version18Plus)
	for _, player := range s.players {
		player.Score = 0
	}

	var t *Timeout
	t = newTimeout(s.clock, GameStartDelay, func() {
		s.onStartingTimer(t)
	})
	s.timers.arm(slotStarting, t)

	s.emitStatusLocked()
	return nil
}

// Vote submits one card from the player's hand as a hidden vote. When every
// eligible voter has voted the session advances to choosing without waiting
// for the round timer.
func (s *Session) Vote(playerID, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findPlayerLocked(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	idx := slices.IndexFunc(p.Hand, func(c Card) bool { return c.ID == cardID })
	if idx < 0 {
		return ErrCardNotFound
	}
	if s.status != StatusVoting || p.Master || p.Voted {
		return ErrVoteNotAllowed
	}

	card := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	p.Voted = true

	v := &Vote{Text: card.Text, PlayerID: p.ID}
	s.votes = append(s.votes, v)

	s.emitVoteLocked(v)

	eligible := 0
	for _, other := range s.players {
		if !other.Master && !other.Disconnected {
			eligible++
		}
	}
	if eligible == len(s.votes) {
		s.startChoosingLocked()
	}
	return nil
}

// Choose reveals the named player's vote. Master only, during choosing.
// Revealing the last hidden vote advances to choosingwinner.
func (s *Session) Choose(playerID, votedPlayerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findPlayerLocked(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	v := s.findVoteLocked(votedPlayerID)
	if v == nil {
		return ErrVoteNotFound
	}
	if s.status != StatusChoosing || !p.Master {
		return ErrChooseNotAllowed
	}

	v.Visible = true
	s.events.Choose.Publish(ChooseEvent{
		ChosenPlayerID: v.PlayerID,
		Votes:          s.votesCopyLocked(),
		Recipients:     s.recipientsLocked(),
	})

	for _, vote := range s.votes {
		if !vote.Visible {
			return nil
		}
	}
	s.status = StatusChoosingWinner
	s.emitStatusLocked()
	return nil
}

// ChooseWinner awards the round to the named player. Master only, during
// choosingwinner. Enters winnercardview and schedules the reveal timer; when
// it fires the game either ends (threshold reached) or the next round
// starts.
func (s *Session) ChooseWinner(playerID, votedPlayerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findPlayerLocked(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	winner := s.findPlayerLocked(votedPlayerID)
	v := s.findVoteLocked(votedPlayerID)
	if winner == nil || v == nil {
		return ErrVoteNotFound
	}
	if !p.Master || s.status != StatusChoosingWinner {
		return ErrChooseWinnerNotAllowed
	}

	winner.Score++
	v.Winner = true

	s.events.ChooseWinner.Publish(ChooseWinnerEvent{
		Votes:      s.votesCopyLocked(),
		Players:    s.viewsLocked(),
		Recipients: s.recipientsLocked(),
	})

	won := winner.Score >= s.config.MaxScore

	s.status = StatusWinnerCardView
	s.emitStatusLocked()

	var t *Timeout
	t = newTimeout(s.clock, WinnerCardViewDuration, func() {
		s.onWinnerViewTimer(t, won)
	})
	s.timers.arm(slotChooseBest, t)
	return nil
}

func (s *Session) onStartingTimer(t *Timeout) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.timers.owns(slotStarting, t) {
		return
	}
	s.timers.release(slotStarting)
	s.startVotingLocked()
}

func (s *Session) onVotingTimer(t *Timeout) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.timers.owns(slotVoting, t) {
		return
	}
	s.timers.release(slotVoting)
	s.startChoosingLocked()
}

func (s *Session) onWinnerViewTimer(t *Timeout, won bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.timers.owns(slotChooseBest, t) {
		return
	}
	s.timers.release(slotChooseBest)

	if won {
		s.endGameLocked()
		return
	}
	s.startVotingLocked()
}

// startVotingLocked begins the next round: rotate master, draw a prompt, top
// up hands, arm the round timer. An empty prompt pool ends the game instead.
func (s *Session) startVotingLocked() {
	if s.promptPool == nil || s.responsePool == nil {
		// Timer transitions only run while a game is active; pools are nil
		// outside of one. Reaching this is a state-machine bug, not a
		// recoverable condition.
		panic("whitecards: round started without card pools")
	}
	if len(s.promptPool) == 0 {
		s.endGameLocked()
		return
	}

	s.votes = nil
	for _, p := range s.players {
		p.Voted = false
	}
	s.status = StatusVoting

	s.passMasterLocked()

	i := s.rng.Intn(len(s.promptPool))
	s.promptCard = s.promptPool[i].Text
	s.promptPool = append(s.promptPool[:i], s.promptPool[i+1:]...)

	for _, p := range s.players {
		for len(p.Hand) < HandSize && len(s.responsePool) > 0 {
			j := s.rng.Intn(len(s.responsePool))
			p.Hand = append(p.Hand, s.responsePool[j])
			s.responsePool = append(s.responsePool[:j], s.responsePool[j+1:]...)
		}
	}

	var t *Timeout
	t = newTimeout(s.clock, time.Duration(s.config.VotingDurationSeconds)*time.Second, func() {
		s.onVotingTimer(t)
	})
	s.timers.arm(slotVoting, t)

	s.emitStatusLocked()
}

// startChoosingLocked closes the voting window. Every eligible voter who has
// not voted and still holds cards gets one auto-submitted at random, so each
// reachable player has a vote before the reveal. The vote list is shuffled
// to break the link between submission order and identity.
func (s *Session) startChoosingLocked() {
	s.timers.disarm(slotVoting)

	s.status = StatusChoosing

	for _, p := range s.players {
		if p.Voted || p.Master || p.Disconnected || len(p.Hand) == 0 {
			continue
		}
		j := s.rng.Intn(len(p.Hand))
		card := p.Hand[j]
		p.Hand = append(p.Hand[:j], p.Hand[j+1:]...)
		p.Voted = true
		s.votes = append(s.votes, &Vote{Text: card.Text, PlayerID: p.ID})
	}

	s.rng.Shuffle(len(s.votes), func(i, j int) {
		s.votes[i], s.votes[j] = s.votes[j], s.votes[i]
	})

	s.emitStatusLocked()
}

// endGameLocked tears the round down: cancel all timers, drop pools and
// votes, remove still-disconnected players and reset per-round player state.
func (s *Session) endGameLocked() {
	s.status = StatusEnd
	s.promptCard = ""
	s.votes = nil
	s.promptPool = nil
	s.responsePool = nil

	s.timers.clear()

	s.players = slices.DeleteFunc(s.players, func(p *Player) bool {
		return p.Disconnected
	})
	for _, p := range s.players {
		p.Hand = nil
		p.Master = false
		p.Voted = false
	}

	s.emitStatusLocked()
}

// passMasterLocked rotates the master round-robin over player order,
// skipping disconnected players. The first-ever master is player index 0.
func (s *Session) passMasterLocked() {
	cur := -1
	for i, p := range s.players {
		if p.Master {
			cur = i
			break
		}
	}
	if cur == -1 {
		s.players[0].Master = true
		return
	}

	s.players[cur].Master = false

	next := cur
	for {
		next++
		if next >= len(s.players) {
			next = 0
		}
		if !s.players[next].Disconnected {
			break
		}
	}
	s.players[next].Master = true
}

func (s *Session) playingLocked() bool {
	switch s.status {
	case StatusWaiting, StatusStarting, StatusEnd:
		return false
	}
	return true
}

func (s *Session) findPlayerLocked(playerID string) *Player {
	for _, p := range s.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (s *Session) findVoteLocked(playerID string) *Vote {
	for _, v := range s.votes {
		if v.PlayerID == playerID {
			return v
		}
	}
	return nil
}

func (s *Session) viewsLocked() []PlayerView {
	views := make([]PlayerView, len(s.players))
	for i, p := range s.players {
		views[i] = p.view()
	}
	return views
}

func (s *Session) votesCopyLocked() []Vote {
	votes := make([]Vote, len(s.votes))
	for i, v := range s.votes {
		votes[i] = *v
	}
	return votes
}

// recipientsLocked lists delivery targets for a broadcast: every
// non-disconnected player, each paired with a copy of their own hand.
func (s *Session) recipientsLocked() []Recipient {
	var rs []Recipient
	for _, p := range s.players {
		if p.Disconnected || p.sender == nil {
			continue
		}
		rs = append(rs, Recipient{PlayerID: p.ID, Sender: p.sender, Hand: p.handCopy()})
	}
	return rs
}

func (s *Session) emitStatusLocked() {
	ev := StatusEvent{
		Status:     s.status,
		Players:    s.viewsLocked(),
		Votes:      s.votesCopyLocked(),
		PromptCard: s.promptCard,
		Recipients: s.recipientsLocked(),
	}
	if t := s.timers.get(slotVoting); t != nil {
		at := t.FireAt()
		ev.VotingEndsAt = &at
	}
	s.events.StatusChange.Publish(ev)
}

func (s *Session) emitJoinLocked(p *Player) {
	s.events.Join.Publish(JoinEvent{
		Player:     p.view(),
		Players:    s.viewsLocked(),
		Recipients: s.recipientsLocked(),
	})
}

func (s *Session) emitLeaveLocked(p *Player) {
	s.events.Leave.Publish(LeaveEvent{
		Player:     p.view(),
		Players:    s.viewsLocked(),
		Recipients: s.recipientsLocked(),
	})
}

func (s *Session) emitVoteLocked(v *Vote) {
	s.events.Vote.Publish(VoteEvent{
		Vote:       *v,
		Players:    s.viewsLocked(),
		Votes:      s.votesCopyLocked(),
		Recipients: s.recipientsLocked(),
	})
}
