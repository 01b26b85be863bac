package gateway

import (
	"github.com/ndbelyaev/whitecards/internal/game"
	"github.com/ndbelyaev/whitecards/internal/protocol"
)

// bindSession subscribes the broadcaster to every topic the session emits.
// Publishes are synchronous under the session's lock, so frames reach each
// connection's send queue in emission order.
func (c *Controller) bindSession(sess *game.Session) {
	ev := sess.Events()
	ev.StatusChange.Subscribe(c.onStatusChange)
	ev.Vote.Subscribe(c.onVote)
	ev.Choose.Subscribe(c.onChoose)
	ev.ChooseWinner.Subscribe(c.onChooseWinner)
	ev.ConfigurationChange.Subscribe(c.onConfigurationChange)
	ev.Join.Subscribe(c.onJoin)
	ev.Leave.Subscribe(c.onLeave)
	ev.SessionEnd.Subscribe(func(struct{}) {
		c.teardownSession(sess)
	})
}

// onStatusChange fans out the per-status diff. Only voting and choosing
// frames differ per recipient, because only they carry the player's own
// hand.
func (c *Controller) onStatusChange(ev game.StatusEvent) {
	switch ev.Status {
	case game.StatusStarting:
		broadcast(ev.Recipients, protocol.NewStateFrame(protocol.OutGameStart, protocol.ChangedState{
			Status: ev.Status,
		}))
	case game.StatusVoting:
		for _, r := range ev.Recipients {
			r.Sender.Send(protocol.NewStateFrame(protocol.OutVotingStart, protocol.ChangedState{
				Status:       ev.Status,
				Players:      ev.Players,
				PromptCard:   ev.PromptCard,
				Votes:        protocol.Votes(ev.Votes),
				VotingEndsAt: protocol.DeadlineMillis(ev.VotingEndsAt),
				Hand:         protocol.Hand(r.Hand),
			}).Encode())
		}
	case game.StatusChoosing:
		for _, r := range ev.Recipients {
			r.Sender.Send(protocol.NewStateFrame(protocol.OutChoosingStart, protocol.ChangedState{
				Status: ev.Status,
				Votes:  protocol.Votes(ev.Votes),
				Hand:   protocol.Hand(r.Hand),
			}).Encode())
		}
	case game.StatusChoosingWinner:
		broadcast(ev.Recipients, protocol.NewStateFrame(protocol.OutChoosingWinnerStart, protocol.ChangedState{
			Status: ev.Status,
		}))
	case game.StatusWinnerCardView:
		broadcast(ev.Recipients, protocol.NewStateFrame(protocol.OutWinnerCardView, protocol.ChangedState{
			Status: ev.Status,
		}))
	case game.StatusEnd:
		broadcast(ev.Recipients, protocol.NewStateFrame(protocol.OutGameEnd, protocol.ChangedState{
			Status:  ev.Status,
			Players: ev.Players,
		}))
	}
}

func (c *Controller) onVote(ev game.VoteEvent) {
	for _, r := range ev.Recipients {
		r.Sender.Send(protocol.NewStateFrame(protocol.OutVote, protocol.ChangedState{
			Votes:   protocol.Votes(ev.Votes),
			Players: ev.Players,
			Hand:    protocol.Hand(r.Hand),
		}).Encode())
	}
}

func (c *Controller) onChoose(ev game.ChooseEvent) {
	frame := protocol.Outbound{
		Type: protocol.OutChoose,
		Details: &protocol.Details{
			ChangedState:   &protocol.ChangedState{Votes: protocol.Votes(ev.Votes)},
			ChosenPlayerID: ev.ChosenPlayerID,
		},
	}
	broadcast(ev.Recipients, frame)
}

func (c *Controller) onChooseWinner(ev game.ChooseWinnerEvent) {
	broadcast(ev.Recipients, protocol.NewStateFrame(protocol.OutChooseWinner, protocol.ChangedState{
		Votes:   protocol.Votes(ev.Votes),
		Players: ev.Players,
	}))
}

func (c *Controller) onConfigurationChange(ev game.ConfigurationEvent) {
	cfg := ev.Configuration
	broadcast(ev.Recipients, protocol.NewStateFrame(protocol.OutConfigurationChange, protocol.ChangedState{
		Configuration: &cfg,
	}))
}

// onJoin notifies everyone except the joiner, who gets their own create/join
// snapshot instead.
func (c *Controller) onJoin(ev game.JoinEvent) {
	frame := protocol.NewStateFrame(protocol.OutPlayerJoin, protocol.ChangedState{
		Players: ev.Players,
	}).Encode()
	for _, r := range ev.Recipients {
		if r.PlayerID == ev.Player.ID {
			continue
		}
		r.Sender.Send(frame)
	}
}

func (c *Controller) onLeave(ev game.LeaveEvent) {
	broadcast(ev.Recipients, protocol.NewStateFrame(protocol.OutPlayerLeave, protocol.ChangedState{
		Players: ev.Players,
	}))
}

func broadcast(recipients []game.Recipient, frame protocol.Outbound) {
	data := frame.Encode()
	for _, r := range recipients {
		r.Sender.Send(data)
	}
}
