package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory keeps everything in process. Development and tests only.
type Memory struct {
	mu sync.RWMutex

	moves     map[string][]MoveRecord
	snapshots map[string]Snapshot
	results   map[string]Result
}

var (
	_ Store    = (*Memory)(nil)
	_ Archiver = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		moves:     make(map[string][]MoveRecord),
		snapshots: make(map[string]Snapshot),
		results:   make(map[string]Result),
	}
}

func (m *Memory) AppendMove(ctx context.Context, rec MoveRecord) error {
	key := roomKey(rec.RoomID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.moves[key] {
		if existing.Ply == rec.Ply {
			return fmt.Errorf("%w: %s ply %d", ErrDuplicatePly, key, rec.Ply)
		}
	}
	m.moves[key] = append(m.moves[key], rec)
	return nil
}

func (m *Memory) LoadMoves(ctx context.Context, roomID string) ([]MoveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.moves[roomKey(roomID)]
	if len(list) == 0 {
		return []MoveRecord{}, nil
	}
	items := append([]MoveRecord(nil), list...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Ply < items[j].Ply })
	return items, nil
}

func (m *Memory) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	m.snapshots[roomKey(snap.RoomID)] = snap
	m.mu.Unlock()
	return nil
}

func (m *Memory) LoadSnapshot(ctx context.Context, roomID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.snapshots[roomKey(roomID)]; ok {
		copy := s
		return &copy, nil
	}
	return nil, nil
}

func (m *Memory) ArchiveResult(ctx context.Context, res Result) error {
	res.MovesSAN = append([]string(nil), res.MovesSAN...)
	m.mu.Lock()
	m.results[roomKey(res.RoomID)] = res
	m.mu.Unlock()
	return nil
}

// LoadResult returns the archived result for roomID, nil when none.
func (m *Memory) LoadResult(ctx context.Context, roomID string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.results[roomKey(roomID)]; ok {
		copy := r
		return &copy, nil
	}
	return nil, nil
}

func (m *Memory) Close() error { return nil }

func roomKey(roomID string) string { return strings.TrimSpace(roomID) }
