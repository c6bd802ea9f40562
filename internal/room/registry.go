package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-room/internal/metrics"
	"github.com/park285/chess-room/internal/rules"
	"github.com/park285/chess-room/internal/store"
)

// entry is claimed in the map before hydration starts; ready closes once
// room or err is set.
type entry struct {
	ready chan struct{}
	room  *Room
	err   error
}

func (e *entry) loaded() bool {
	select {
	case <-e.ready:
		return e.err == nil
	default:
		return false
	}
}

// Registry owns every room of the process. Rooms are never evicted.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*entry

	store          store.Store
	sink           Sink
	newEngine      rules.Factory
	initialSeconds float64
	now            func() time.Time
	logger         *zap.Logger
}

type Option func(*Registry)

func WithSink(s Sink) Option { return func(r *Registry) { r.sink = s } }

func WithEngineFactory(f rules.Factory) Option { return func(r *Registry) { r.newEngine = f } }

func WithInitialSeconds(sec float64) Option {
	return func(r *Registry) {
		if sec > 0 {
			r.initialSeconds = sec
		}
	}
}

func WithNow(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.logger = l } }

func NewRegistry(st store.Store, opts ...Option) *Registry {
	r := &Registry{
		rooms:          make(map[string]*entry),
		store:          st,
		sink:           nopSink{},
		newEngine:      rules.StandardFactory,
		initialSeconds: DefaultInitialSeconds,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// GetOrCreate returns the room for id, hydrating it from the store on first
// use. Concurrent callers for the same id share one hydration. A failed
// hydration is not cached.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*Room, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyRoomID
	}
	r.mu.Lock()
	if e, ok := r.rooms[id]; ok {
		r.mu.Unlock()
		return wait(ctx, e)
	}
	e := &entry{ready: make(chan struct{})}
	r.rooms[id] = e
	r.mu.Unlock()

	room, err := r.hydrate(ctx, id)
	if err != nil {
		r.mu.Lock()
		delete(r.rooms, id)
		r.mu.Unlock()
		metrics.Hydrations.WithLabelValues("error").Inc()
		r.logger.Error("room_hydrate_failed", zap.String("room", id), zap.Error(err))
	} else {
		metrics.Hydrations.WithLabelValues("ok").Inc()
		metrics.RoomsLoaded.Inc()
	}
	e.room, e.err = room, err
	close(e.ready)
	return room, err
}

// Get returns a loaded room without hydrating. It waits for a hydration
// already in flight.
func (r *Registry) Get(ctx context.Context, id string) (*Room, bool) {
	r.mu.Lock()
	e, ok := r.rooms[strings.TrimSpace(id)]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	room, err := wait(ctx, e)
	if err != nil {
		return nil, false
	}
	return room, true
}

// Each calls fn for every loaded room, outside the registry lock.
func (r *Registry) Each(fn func(*Room)) {
	r.mu.Lock()
	list := make([]*Room, 0, len(r.rooms))
	for _, e := range r.rooms {
		if e.loaded() {
			list = append(list, e.room)
		}
	}
	r.mu.Unlock()
	for _, room := range list {
		fn(room)
	}
}

func (r *Registry) Len() int {
	n := 0
	r.Each(func(*Room) { n++ })
	return n
}

func wait(ctx context.Context, e *entry) (*Room, error) {
	select {
	case <-e.ready:
		return e.room, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) hydrate(ctx context.Context, id string) (*Room, error) {
	moves, err := r.store.LoadMoves(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load moves for %s: %w", id, err)
	}
	engine := r.newEngine()
	skipped := 0
	lastPly := 0
	for _, mv := range moves {
		if mv.Ply > lastPly {
			lastPly = mv.Ply
		}
		if _, err := engine.ApplySAN(mv.SAN); err != nil {
			skipped++
			metrics.ReplaySkipped.Inc()
			r.logger.Warn("room_replay_skip",
				zap.String("room", id),
				zap.Int("ply", mv.Ply),
				zap.String("san", mv.SAN),
				zap.Error(err),
			)
		}
	}
	snap, err := r.store.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load snapshot for %s: %w", id, err)
	}

	now := r.now()
	var ended *rules.Result
	if res, over := engine.Status(); over {
		ended = &res
	}
	clock := NewClock(r.initialSeconds, engine.Turn())
	if snap != nil {
		clock = RestoreClock(*snap, ended == nil, now)
	}
	if ended == nil && clock.Expired() {
		ended = &rules.Result{Reason: rules.ReasonTimeout, Winner: clock.Flagged().Other()}
	}

	r.logger.Info("room_hydrate",
		zap.String("room", id),
		zap.Int("moves", len(moves)),
		zap.Int("skipped", skipped),
		zap.Int("last_ply", lastPly),
		zap.Bool("snapshot", snap != nil),
		zap.String("phase", string(clock.Phase())),
	)
	room := newRoom(id, engine, clock, ended, r.sink, r.now, r.logger)
	room.nextPly = max(lastPly, len(moves)) + 1
	return room, nil
}
