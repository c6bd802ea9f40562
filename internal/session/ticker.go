package session

import (
	"context"
	"time"

	"github.com/park285/chess-room/internal/room"
)

// RunTicker settles every running clock each interval until ctx ends.
// Rooms tick whether or not anyone is connected.
func (h *Hub) RunTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.TickOnce()
		}
	}
}

func (h *Hub) TickOnce() {
	h.registry.Each(func(r *room.Room) {
		ev, ok := r.Tick()
		if !ok {
			return
		}
		h.broadcastClock(r.ID(), ev.Clock)
		if ev.Ended != nil {
			h.broadcastEnded(r.ID(), ev.Ended)
		}
	})
}
