package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrMissingURL     = errors.New("store connection url is required")
	// ErrDuplicatePly means a move row with the same room and ply already
	// exists. The existing row is kept.
	ErrDuplicatePly   = errors.New("move ply already stored")
)

// MoveRecord is one accepted move. Ply is 1-based and strictly increasing per
// room; rows skipped on replay or lost to failed writes leave gaps.
type MoveRecord struct {
	RoomID    string    `json:"roomId"`
	Ply       int       `json:"ply"`
	SAN       string    `json:"san"`
	FEN       string    `json:"fen"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is the latest clock state of a room.
type Snapshot struct {
	RoomID       string    `json:"roomId"`
	WhiteSeconds float64   `json:"whiteSeconds"`
	BlackSeconds float64   `json:"blackSeconds"`
	Active       string    `json:"active"`
	Started      bool      `json:"started"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Result is the archived outcome of a finished game.
type Result struct {
	RoomID    string    `json:"roomId"`
	Reason    string    `json:"reason"`
	Winner    string    `json:"winner"`
	WhiteName string    `json:"whiteName"`
	BlackName string    `json:"blackName"`
	MovesSAN  []string  `json:"movesSan"`
	PGN       string    `json:"pgn"`
	EndedAt   time.Time `json:"endedAt"`
}

type Store interface {
	AppendMove(ctx context.Context, rec MoveRecord) error
	// LoadMoves returns the room's moves in ply order; empty for unknown rooms.
	LoadMoves(ctx context.Context, roomID string) ([]MoveRecord, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	// LoadSnapshot returns nil, nil when the room has no snapshot.
	LoadSnapshot(ctx context.Context, roomID string) (*Snapshot, error)
	Close() error
}

// Archiver is implemented by backends that keep finished game results.
type Archiver interface {
	ArchiveResult(ctx context.Context, res Result) error
}
