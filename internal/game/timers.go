package game

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timeout is a cancellable callback bound to an absolute point in time.
type Timeout struct {
	timer  clockwork.Timer
	fireAt time.Time
}

func newTimeout(clock clockwork.Clock, d time.Duration, fn func()) *Timeout {
	return &Timeout{
		fireAt: clock.Now().Add(d),
		timer:  clock.AfterFunc(d, fn),
	}
}

// FireAt reports the absolute time the callback is scheduled for.
func (t *Timeout) FireAt() time.Time {
	return t.fireAt
}

// Stop cancels the callback. Stopping after the callback started running has
// no effect; callbacks guard against that with an identity check on the slot
// that armed them.
func (t *Timeout) Stop() {
	t.timer.Stop()
}

type timerSlot int

const (
	slotStarting timerSlot = iota
	slotVoting
	slotChooseBest

	timerSlots
)

// roundTimers is the session's fixed table of pending round timers. At most
// one slot is armed at a time by construction of the state machine.
type roundTimers struct {
	slots [timerSlots]*Timeout
}

// arm stores t in the named slot, cancelling whatever was armed there before
// so a superseded callback can never fire against later state.
func (rt *roundTimers) arm(slot timerSlot, t *Timeout) {
	if cur := rt.slots[slot]; cur != nil {
		cur.Stop()
	}
	rt.slots[slot] = t
}

// disarm cancels and clears the named slot.
func (rt *roundTimers) disarm(slot timerSlot) {
	if cur := rt.slots[slot]; cur != nil {
		cur.Stop()
		rt.slots[slot] = nil
	}
}

// owns reports whether t is still the armed timer for the slot. A fired
// callback that no longer owns its slot was superseded and must not act.
func (rt *roundTimers) owns(slot timerSlot, t *Timeout) bool {
	return rt.slots[slot] == t
}

// release clears the slot without cancelling: used by a callback that just
// fired and verified ownership.
func (rt *roundTimers) release(slot timerSlot) {
	rt.slots[slot] = nil
}

func (rt *roundTimers) get(slot timerSlot) *Timeout {
	return rt.slots[slot]
}

func (rt *roundTimers) clear() {
	for i := range rt.slots {
		rt.disarm(timerSlot(i))
	}
}
