package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type Postgres struct {
	db *sql.DB
}

var (
	_ Store    = (*Postgres)(nil)
	_ Archiver = (*Postgres)(nil)
)

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL: %w", ErrMissingURL)
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// NewPostgresDB wraps an already opened handle.
func NewPostgresDB(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schemaSQL)
	return err
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) AppendMove(ctx context.Context, rec MoveRecord) error {
	const q = `
		INSERT INTO room_moves (room_id, ply, san, fen, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, ply) DO NOTHING`
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := p.db.ExecContext(ctx, q, roomKey(rec.RoomID), rec.Ply, rec.SAN, rec.FEN, createdAt)
	if err != nil {
		return fmt.Errorf("insert room move: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s ply %d", ErrDuplicatePly, rec.RoomID, rec.Ply)
	}
	return nil
}

func (p *Postgres) LoadMoves(ctx context.Context, roomID string) ([]MoveRecord, error) {
	const q = `
		SELECT room_id, ply, san, fen, created_at
		FROM room_moves
		WHERE room_id = $1
		ORDER BY ply ASC, id ASC`
	rows, err := p.db.QueryContext(ctx, q, roomKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("select room moves: %w", err)
	}
	defer rows.Close()

	out := make([]MoveRecord, 0, 64)
	for rows.Next() {
		var rec MoveRecord
		if err := rows.Scan(&rec.RoomID, &rec.Ply, &rec.SAN, &rec.FEN, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room move: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate room moves: %w", err)
	}
	return out, nil
}

func (p *Postgres) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	const q = `
		INSERT INTO room_state (room_id, white_seconds, black_seconds, active, started, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id) DO UPDATE SET
			white_seconds=EXCLUDED.white_seconds,
			black_seconds=EXCLUDED.black_seconds,
			active=EXCLUDED.active,
			started=EXCLUDED.started,
			updated_at=EXCLUDED.updated_at`
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	if _, err := p.db.ExecContext(ctx, q, roomKey(snap.RoomID), snap.WhiteSeconds, snap.BlackSeconds, snap.Active, snap.Started, updatedAt); err != nil {
		return fmt.Errorf("upsert room state: %w", err)
	}
	return nil
}

func (p *Postgres) LoadSnapshot(ctx context.Context, roomID string) (*Snapshot, error) {
	const q = `
		SELECT room_id, white_seconds, black_seconds, active, started, updated_at
		FROM room_state
		WHERE room_id = $1`
	var snap Snapshot
	err := p.db.QueryRowContext(ctx, q, roomKey(roomID)).Scan(
		&snap.RoomID,
		&snap.WhiteSeconds,
		&snap.BlackSeconds,
		&snap.Active,
		&snap.Started,
		&snap.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select room state: %w", err)
	}
	return &snap, nil
}

func (p *Postgres) ArchiveResult(ctx context.Context, res Result) error {
	movesSAN, err := json.Marshal(res.MovesSAN)
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	if res.PGN == "" {
		res.PGN = BuildPGN(res)
	}
	const q = `
		INSERT INTO room_results (room_id, reason, winner, white_name, black_name, moves_san, pgn, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
		ON CONFLICT (room_id) DO UPDATE SET
			reason=EXCLUDED.reason,
			winner=EXCLUDED.winner,
			white_name=EXCLUDED.white_name,
			black_name=EXCLUDED.black_name,
			moves_san=EXCLUDED.moves_san,
			pgn=EXCLUDED.pgn,
			ended_at=EXCLUDED.ended_at`
	if _, err := p.db.ExecContext(ctx, q,
		roomKey(res.RoomID), res.Reason, res.Winner,
		res.WhiteName, res.BlackName,
		string(movesSAN), res.PGN, res.EndedAt,
	); err != nil {
		return fmt.Errorf("upsert room result: %w", err)
	}
	return nil
}
