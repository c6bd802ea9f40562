package room

import (
	"time"

	"github.com/park285/chess-room/internal/rules"
	"github.com/park285/chess-room/internal/store"
)

const DefaultInitialSeconds = 600

type Phase string

const (
	PhaseNotStarted Phase = "notStarted"
	PhaseRunning    Phase = "running"
	PhaseStopped    Phase = "stopped"
	PhaseExpired    Phase = "expired"
)

// Clock is the cooperative two-sided clock. Only Active is debited, and only
// while Running. Callers hold the room lock.
type Clock struct {
	White    float64
	Black    float64
	Active   rules.Color
	Running  bool
	Started  bool
	LastTick time.Time

	expired bool
}

// ClockView is a read-only copy of the clock for broadcasting. Seq orders
// views taken from the same room; zero means unsequenced.
type ClockView struct {
	White   float64
	Black   float64
	Active  rules.Color
	Running bool
	Started bool
	Seq     uint64
}

func NewClock(initialSeconds float64, active rules.Color) Clock {
	if initialSeconds <= 0 {
		initialSeconds = DefaultInitialSeconds
	}
	if !active.Valid() {
		active = rules.White
	}
	return Clock{White: initialSeconds, Black: initialSeconds, Active: active}
}

// RestoreClock rebuilds a clock from a persisted snapshot. A started clock
// resumes from now when resumable, so downtime is not charged. A zero timer
// comes back expired and does not signal again.
func RestoreClock(snap store.Snapshot, resumable bool, now time.Time) Clock {
	active, ok := rules.ParseColor(snap.Active)
	if !ok {
		active = rules.White
	}
	c := Clock{
		White:   nonNegative(snap.WhiteSeconds),
		Black:   nonNegative(snap.BlackSeconds),
		Active:  active,
		Started: snap.Started,
	}
	if c.White == 0 || c.Black == 0 {
		c.Started = true
		c.expired = true
		return c
	}
	if c.Started && resumable {
		c.Running = true
		c.LastTick = now
	}
	return c
}

func (c *Clock) Remaining(color rules.Color) float64 {
	if color == rules.Black {
		return c.Black
	}
	return c.White
}

func (c *Clock) set(color rules.Color, v float64) {
	if color == rules.Black {
		c.Black = v
	} else {
		c.White = v
	}
}

// Start is valid only from NotStarted.
func (c *Clock) Start(now time.Time) bool {
	if c.Started || c.expired {
		return false
	}
	c.Started = true
	c.Running = true
	c.LastTick = now
	return true
}

// Settle debits the active side for the time since the last tick. It returns
// true exactly once, on the call that takes the active timer to zero.
func (c *Clock) Settle(now time.Time) bool {
	if !c.Running || c.LastTick.IsZero() {
		return false
	}
	elapsed := now.Sub(c.LastTick).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	left := nonNegative(c.Remaining(c.Active) - elapsed)
	c.set(c.Active, left)
	c.LastTick = now
	if left > 0 {
		return false
	}
	c.Running = false
	c.LastTick = time.Time{}
	if c.expired {
		return false
	}
	c.expired = true
	return true
}

// EndTurn hands the running clock to the other side. Only the active side may
// do so. expired reports that settling ran the mover's timer out, in which
// case the clock is not handed off.
func (c *Clock) EndTurn(color rules.Color, now time.Time) (switched, expired bool) {
	if !c.Running || color != c.Active {
		return false, false
	}
	if c.Settle(now) {
		return false, true
	}
	c.Active = c.Active.Other()
	c.LastTick = now
	return true, false
}

// Halt settles and stops the clock for good. Used when the rules engine ends the game.
func (c *Clock) Halt(now time.Time) {
	_ = c.Settle(now)
	c.Running = false
	c.LastTick = time.Time{}
}

func (c *Clock) Expired() bool { return c.expired }

// Flagged is the side whose timer ran out.
func (c *Clock) Flagged() rules.Color {
	if c.Remaining(c.Active) <= 0 {
		return c.Active
	}
	return c.Active.Other()
}

func (c *Clock) Phase() Phase {
	switch {
	case c.expired:
		return PhaseExpired
	case c.Running:
		return PhaseRunning
	case c.Started:
		return PhaseStopped
	default:
		return PhaseNotStarted
	}
}

// View projects the timers to now without mutating the clock.
func (c *Clock) View(now time.Time) ClockView {
	v := ClockView{White: c.White, Black: c.Black, Active: c.Active, Running: c.Running, Started: c.Started}
	if c.Running && !c.LastTick.IsZero() {
		elapsed := now.Sub(c.LastTick).Seconds()
		if elapsed > 0 {
			left := nonNegative(c.Remaining(c.Active) - elapsed)
			if c.Active == rules.Black {
				v.Black = left
			} else {
				v.White = left
			}
		}
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
