package game

import "slices"

// Sender is the opaque send capability bound to a player's connection. Sends
// are fire-and-forget: the transport owns delivery and failures never block
// other recipients.
type Sender interface {
	Send(data []byte)
}

// Player is one seat in a session. The slice position inside the session
// drives host and master rotation, so players are never reordered.
type Player struct {
	ID           string
	Nickname     string
	AvatarID     int
	Score        int
	Host         bool
	Master       bool
	Voted        bool
	Disconnected bool
	Hand         []Card

	sender       Sender
	leaveTimeout *Timeout
}

// present reports whether the player counts toward nickname uniqueness and
// broadcast fan-out: connected and not mid-leave-grace.
func (p *Player) present() bool {
	return !p.Disconnected && p.leaveTimeout == nil
}

func (p *Player) view() PlayerView {
	return PlayerView{
		ID:           p.ID,
		Nickname:     p.Nickname,
		AvatarID:     p.AvatarID,
		Score:        p.Score,
		Host:         p.Host,
		Master:       p.Master,
		Voted:        p.Voted,
		Disconnected: p.Disconnected,
	}
}

func (p *Player) handCopy() []Card {
	return slices.Clone(p.Hand)
}
