package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-room/internal/metrics"
	"github.com/park285/chess-room/internal/store"
)

var ErrPersisterClosed = errors.New("persister closed")

const (
	DefaultQueueSize = 1024
	writeTimeout     = 5 * time.Second
)

type jobKind int

const (
	jobMove jobKind = iota
	jobSnapshot
	jobResult
	jobBarrier
)

func (k jobKind) String() string {
	switch k {
	case jobMove:
		return "move"
	case jobSnapshot:
		return "snapshot"
	case jobResult:
		return "result"
	default:
		return "barrier"
	}
}

type job struct {
	kind   jobKind
	move   store.MoveRecord
	snap   store.Snapshot
	result store.Result
	done   chan struct{}
}

// Persister is the single ordered writer in front of the store. Enqueueing
// never blocks; a full queue drops the write.
type Persister struct {
	store  store.Store
	logger *zap.Logger

	mu      sync.RWMutex
	closing bool
	jobs    chan job
	drained chan struct{}
}

var _ Sink = (*Persister)(nil)

func NewPersister(st store.Store, size int, logger *zap.Logger) *Persister {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Persister{
		store:   st,
		logger:  logger,
		jobs:    make(chan job, size),
		drained: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Persister) AppendMove(rec store.MoveRecord) { p.enqueue(job{kind: jobMove, move: rec}) }

func (p *Persister) SaveSnapshot(snap store.Snapshot) { p.enqueue(job{kind: jobSnapshot, snap: snap}) }

func (p *Persister) ArchiveResult(res store.Result) { p.enqueue(job{kind: jobResult, result: res}) }

func (p *Persister) enqueue(j job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closing {
		p.drop(j, "closed")
		return false
	}
	select {
	case p.jobs <- j:
		return true
	default:
		p.drop(j, "queue_full")
		return false
	}
}

func (p *Persister) drop(j job, why string) {
	metrics.PersistDropped.WithLabelValues(j.kind.String()).Inc()
	p.logger.Error("persist_drop",
		zap.String("op", j.kind.String()),
		zap.String("room", j.roomID()),
		zap.String("why", why),
	)
}

// Flush waits until every write enqueued before the call has been attempted.
func (p *Persister) Flush(ctx context.Context) error {
	done := make(chan struct{})
	p.mu.RLock()
	if p.closing {
		p.mu.RUnlock()
		return ErrPersisterClosed
	}
	select {
	case p.jobs <- job{kind: jobBarrier, done: done}:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes and drains the queue.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closing {
		p.closing = true
		close(p.jobs)
	}
	p.mu.Unlock()
	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persister) run() {
	defer close(p.drained)
	for j := range p.jobs {
		p.handle(j)
	}
}

func (p *Persister) handle(j job) {
	if j.kind == jobBarrier {
		close(j.done)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch j.kind {
	case jobMove:
		err = p.store.AppendMove(ctx, j.move)
	case jobSnapshot:
		err = p.store.SaveSnapshot(ctx, j.snap)
	case jobResult:
		arch, ok := p.store.(store.Archiver)
		if !ok {
			p.logger.Debug("persist_result_skip", zap.String("room", j.result.RoomID))
			return
		}
		err = arch.ArchiveResult(ctx, j.result)
	}
	if err != nil {
		metrics.PersistErrors.WithLabelValues(j.kind.String()).Inc()
		p.logger.Error("persist_error",
			zap.String("op", j.kind.String()),
			zap.String("room", j.roomID()),
			zap.Error(err),
		)
	}
}

func (j job) roomID() string {
	switch j.kind {
	case jobMove:
		return j.move.RoomID
	case jobSnapshot:
		return j.snap.RoomID
	case jobResult:
		return j.result.RoomID
	default:
		return ""
	}
}
