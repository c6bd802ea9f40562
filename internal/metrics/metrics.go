package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoomsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chessroom_rooms_loaded",
			Help: "Rooms currently held in the registry",
		},
	)
	Hydrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chessroom_hydrations_total",
			Help: "Room hydrations from the store by result",
		},
		[]string{"result"},
	)
	ReplaySkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chessroom_replay_skipped_total",
			Help: "Persisted moves the rules engine refused during hydration",
		},
	)
	Moves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chessroom_moves_total",
			Help: "Submitted moves by result",
		},
		[]string{"result"},
	)
	GamesEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chessroom_games_ended_total",
			Help: "Finished games by reason",
		},
		[]string{"reason"},
	)
	ClockTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chessroom_clock_timeouts_total",
			Help: "Clocks that ran out",
		},
	)
	PersistErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chessroom_persist_errors_total",
			Help: "Failed store writes by operation",
		},
		[]string{"op"},
	)
	PersistDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chessroom_persist_dropped_total",
			Help: "Store writes dropped because the queue was full",
		},
		[]string{"op"},
	)
	Connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chessroom_connections",
			Help: "Open websocket connections",
		},
	)
	EventsIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chessroom_events_in_total",
			Help: "Inbound websocket events by name",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(RoomsLoaded)
	prometheus.MustRegister(Hydrations)
	prometheus.MustRegister(ReplaySkipped)
	prometheus.MustRegister(Moves)
	prometheus.MustRegister(GamesEnded)
	prometheus.MustRegister(ClockTimeouts)
	prometheus.MustRegister(PersistErrors)
	prometheus.MustRegister(PersistDropped)
	prometheus.MustRegister(Connections)
	prometheus.MustRegister(EventsIn)
}
