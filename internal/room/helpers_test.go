package room

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/chess-room/internal/rules"
	"github.com/park285/chess-room/internal/store"
)

type fakeTime struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeTime() *fakeTime { return &fakeTime{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)} }

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// stubEngine accepts any move except those listed in illegal and flips the
// side to move. finishOn ends the game with finishWith.
type stubEngine struct {
	turn       rules.Color
	history    []string
	illegal    map[string]bool
	finishOn   string
	finishWith rules.Result
	status     *rules.Result
}

func newStub() *stubEngine { return &stubEngine{turn: rules.White, illegal: map[string]bool{}} }

func (s *stubEngine) Apply(mv rules.Move) (rules.Applied, error) {
	if s.status != nil {
		return rules.Applied{}, rules.ErrGameFinished
	}
	key := mv.From + mv.To
	if s.illegal[key] {
		return rules.Applied{}, rules.ErrIllegalMove
	}
	mover := s.turn
	s.history = append(s.history, key)
	s.turn = s.turn.Other()
	if key == s.finishOn {
		res := s.finishWith
		s.status = &res
	}
	return rules.Applied{SAN: key, From: mv.From, To: mv.To, Color: mover, Ply: len(s.history), FEN: s.FEN()}, nil
}

func (s *stubEngine) ApplySAN(san string) (rules.Applied, error) {
	if s.illegal[san] {
		return rules.Applied{}, rules.ErrIllegalMove
	}
	s.history = append(s.history, san)
	s.turn = s.turn.Other()
	return rules.Applied{SAN: san, Ply: len(s.history)}, nil
}

func (s *stubEngine) Turn() rules.Color { return s.turn }

func (s *stubEngine) Status() (rules.Result, bool) {
	if s.status == nil {
		return rules.Result{}, false
	}
	return *s.status, true
}

func (s *stubEngine) History() []string { return append([]string(nil), s.history...) }

func (s *stubEngine) FEN() string { return "stub/" + string(s.turn) }

// countingStore slows LoadMoves down so concurrent hydrations overlap.
type countingStore struct {
	*store.Memory
	loads atomic.Int32
	delay time.Duration
	fail  atomic.Bool
}

var errStoreDown = errors.New("store down")

func (c *countingStore) LoadMoves(ctx context.Context, roomID string) ([]store.MoveRecord, error) {
	c.loads.Add(1)
	time.Sleep(c.delay)
	if c.fail.Load() {
		return nil, errStoreDown
	}
	return c.Memory.LoadMoves(ctx, roomID)
}

// recordingSink captures persistence calls in order.
type recordingSink struct {
	mu        sync.Mutex
	moves     []store.MoveRecord
	snapshots []store.Snapshot
	results   []store.Result
}

func (r *recordingSink) AppendMove(rec store.MoveRecord) {
	r.mu.Lock()
	r.moves = append(r.moves, rec)
	r.mu.Unlock()
}

func (r *recordingSink) SaveSnapshot(snap store.Snapshot) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, snap)
	r.mu.Unlock()
}

func (r *recordingSink) ArchiveResult(res store.Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *recordingSink) lastSnapshot() store.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}
