package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores a room as a JSON move list plus a JSON state value.
// A positive ttl is refreshed on every write; zero keeps keys forever.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis { return &Redis{rdb: rdb, ttl: ttl} }

func (s *Redis) keyMoves(room string) string { return "room:" + roomKey(room) + ":moves" }
func (s *Redis) keyState(room string) string { return "room:" + roomKey(room) + ":state" }

func (s *Redis) AppendMove(ctx context.Context, rec MoveRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal move: %w", err)
	}
	key := s.keyMoves(rec.RoomID)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, raw)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *Redis) LoadMoves(ctx context.Context, roomID string) ([]MoveRecord, error) {
	raws, err := s.rdb.LRange(ctx, s.keyMoves(roomID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]MoveRecord, 0, len(raws))
	for _, raw := range raws {
		var rec MoveRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal move: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Redis) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.keyState(snap.RoomID), raw, s.ttl).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		// moves list shares the state's lifetime
		_ = s.rdb.Expire(ctx, s.keyMoves(snap.RoomID), s.ttl).Err()
	}
	return nil
}

func (s *Redis) LoadSnapshot(ctx context.Context, roomID string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.keyState(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
