package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/chess-room/internal/store"
)

type blockingStore struct {
	*store.Memory
	started chan struct{}
	release chan struct{}
}

func (b *blockingStore) AppendMove(ctx context.Context, rec store.MoveRecord) error {
	b.started <- struct{}{}
	<-b.release
	return b.Memory.AppendMove(ctx, rec)
}

type failingStore struct {
	*store.Memory
}

func (failingStore) SaveSnapshot(context.Context, store.Snapshot) error {
	return errors.New("disk full")
}

func TestPersister_WritesInOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory()
	p := NewPersister(mem, 8, nil)
	defer p.Close(ctx)

	for i, san := range []string{"d4", "d5", "c4"} {
		p.AppendMove(store.MoveRecord{RoomID: "r", Ply: i + 1, SAN: san})
		p.SaveSnapshot(store.Snapshot{RoomID: "r", WhiteSeconds: float64(600 - i), Active: "white"})
	}
	p.ArchiveResult(store.Result{RoomID: "r", Reason: "draw"})
	req.NoError(p.Flush(ctx))

	moves, err := mem.LoadMoves(ctx, "r")
	req.NoError(err)
	req.Len(moves, 3)
	snap, err := mem.LoadSnapshot(ctx, "r")
	req.NoError(err)
	req.Equal(598.0, snap.WhiteSeconds)
	res, err := mem.LoadResult(ctx, "r")
	req.NoError(err)
	req.Equal("draw", res.Reason)
}

func TestPersister_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	bs := &blockingStore{Memory: store.NewMemory(), started: make(chan struct{}), release: make(chan struct{})}
	p := NewPersister(bs, 1, nil)

	req.True(p.enqueue(job{kind: jobMove, move: store.MoveRecord{RoomID: "r", Ply: 1}}))
	<-bs.started
	req.True(p.enqueue(job{kind: jobMove, move: store.MoveRecord{RoomID: "r", Ply: 2}}))
	req.False(p.enqueue(job{kind: jobMove, move: store.MoveRecord{RoomID: "r", Ply: 3}}))

	go func() {
		for range bs.started {
		}
	}()
	close(bs.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req.NoError(p.Close(ctx))

	moves, _ := bs.Memory.LoadMoves(context.Background(), "r")
	req.Len(moves, 2)
}

func TestPersister_ErrorsAreNotFatal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	fs := failingStore{Memory: store.NewMemory()}
	p := NewPersister(fs, 4, nil)

	p.SaveSnapshot(store.Snapshot{RoomID: "r"})
	p.AppendMove(store.MoveRecord{RoomID: "r", Ply: 1, SAN: "e4"})
	req.NoError(p.Flush(ctx))
	moves, _ := fs.LoadMoves(ctx, "r")
	req.Len(moves, 1)

	req.NoError(p.Close(ctx))
	req.ErrorIs(p.Flush(ctx), ErrPersisterClosed)
	req.False(p.enqueue(job{kind: jobSnapshot}))
}
