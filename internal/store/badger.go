package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Badger is the embedded default backend.
//
// Keys:
//
//	moves/<room>/<ply, zero padded>  -> MoveRecord JSON
//	state/<room>                     -> Snapshot JSON
//	result/<room>                    -> Result JSON
type Badger struct {
	db *badger.DB
}

var (
	_ Store    = (*Badger)(nil)
	_ Archiver = (*Badger)(nil)
)

// OpenBadger opens a database at path, or an in-memory one when path is empty.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if strings.TrimSpace(path) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func escapeRoom(room string) string { return url.PathEscape(roomKey(room)) }

func movesPrefix(room string) []byte { return []byte("moves/" + escapeRoom(room) + "/") }

func moveKey(room string, ply int) []byte {
	return append(movesPrefix(room), []byte(fmt.Sprintf("%08d", ply))...)
}

func stateKey(room string) []byte  { return []byte("state/" + escapeRoom(room)) }
func resultKey(room string) []byte { return []byte("result/" + escapeRoom(room)) }

func (b *Badger) AppendMove(ctx context.Context, rec MoveRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal move: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		key := moveKey(rec.RoomID, rec.Ply)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s ply %d", ErrDuplicatePly, rec.RoomID, rec.Ply)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, raw)
	})
}

func (b *Badger) LoadMoves(ctx context.Context, roomID string) ([]MoveRecord, error) {
	out := make([]MoveRecord, 0, 64)
	prefix := movesPrefix(roomID)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec MoveRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("unmarshal move: %w", err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Badger) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	return b.put(stateKey(snap.RoomID), snap)
}

func (b *Badger) LoadSnapshot(ctx context.Context, roomID string) (*Snapshot, error) {
	var snap Snapshot
	found, err := b.get(stateKey(roomID), &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

func (b *Badger) ArchiveResult(ctx context.Context, res Result) error {
	if res.PGN == "" {
		res.PGN = BuildPGN(res)
	}
	return b.put(resultKey(res.RoomID), res)
}

// LoadResult returns the archived result for roomID, nil when none.
func (b *Badger) LoadResult(ctx context.Context, roomID string) (*Result, error) {
	var res Result
	found, err := b.get(resultKey(roomID), &res)
	if err != nil || !found {
		return nil, err
	}
	return &res, nil
}

func (b *Badger) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Badger) put(key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

func (b *Badger) get(key []byte, v any) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
