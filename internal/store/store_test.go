package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	moves, err := s.LoadMoves(ctx, "lobby")
	if err != nil {
		t.Fatalf("LoadMoves empty: %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("expected no moves, got %d", len(moves))
	}
	snap, err := s.LoadSnapshot(ctx, "lobby")
	if err != nil || snap != nil {
		t.Fatalf("expected nil snapshot, got %+v err=%v", snap, err)
	}

	for i, san := range []string{"e4", "e5", "Nf3"} {
		rec := MoveRecord{RoomID: "lobby", Ply: i + 1, SAN: san, FEN: "fen-" + san, CreatedAt: time.Unix(int64(i), 0).UTC()}
		if err := s.AppendMove(ctx, rec); err != nil {
			t.Fatalf("AppendMove %s: %v", san, err)
		}
	}
	if err := s.AppendMove(ctx, MoveRecord{RoomID: "other", Ply: 1, SAN: "d4", FEN: "x"}); err != nil {
		t.Fatalf("AppendMove other: %v", err)
	}

	moves, err = s.LoadMoves(ctx, "lobby")
	if err != nil {
		t.Fatalf("LoadMoves: %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("expected 3 moves, got %d", len(moves))
	}
	for i, want := range []string{"e4", "e5", "Nf3"} {
		if moves[i].SAN != want || moves[i].Ply != i+1 {
			t.Fatalf("move %d: got %+v want %s", i, moves[i], want)
		}
	}

	first := Snapshot{RoomID: "lobby", WhiteSeconds: 600, BlackSeconds: 600, Active: "white"}
	if err := s.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	second := Snapshot{RoomID: "lobby", WhiteSeconds: 512.5, BlackSeconds: 600, Active: "black", Started: true, UpdatedAt: time.Unix(100, 0).UTC()}
	if err := s.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("SaveSnapshot overwrite: %v", err)
	}
	got, err := s.LoadSnapshot(ctx, "lobby")
	if err != nil || got == nil {
		t.Fatalf("LoadSnapshot: %+v err=%v", got, err)
	}
	if got.WhiteSeconds != 512.5 || got.Active != "black" || !got.Started {
		t.Fatalf("latest snapshot not returned: %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(rdb, time.Hour)
	defer s.Close()
	exerciseStore(t, s)

	if ttl := mr.TTL("room:lobby:moves"); ttl <= 0 {
		t.Fatalf("expected ttl on moves key, got %v", ttl)
	}
	if ttl := mr.TTL("room:lobby:state"); ttl <= 0 {
		t.Fatalf("expected ttl on state key, got %v", ttl)
	}
}

func TestRedisStore_NoTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	s := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
	defer s.Close()
	if err := s.SaveSnapshot(context.Background(), Snapshot{RoomID: "r1", Active: "white"}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if ttl := mr.TTL("room:r1:state"); ttl != 0 {
		t.Fatalf("expected no ttl, got %v", ttl)
	}
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	if err := s.AppendMove(ctx, MoveRecord{RoomID: "room/with slash", Ply: 1, SAN: "e4"}); err != nil {
		t.Fatalf("AppendMove: %v", err)
	}
	if err := s.SaveSnapshot(ctx, Snapshot{RoomID: "room/with slash", WhiteSeconds: 10, BlackSeconds: 20, Active: "black", Started: true}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	moves, err := s.LoadMoves(ctx, "room/with slash")
	if err != nil || len(moves) != 1 || moves[0].SAN != "e4" {
		t.Fatalf("moves after reopen: %+v err=%v", moves, err)
	}
	snap, err := s.LoadSnapshot(ctx, "room/with slash")
	if err != nil || snap == nil || snap.BlackSeconds != 20 {
		t.Fatalf("snapshot after reopen: %+v err=%v", snap, err)
	}
}

func TestBadgerStore_PlyOrderBeyondNine(t *testing.T) {
	s, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	for ply := 12; ply >= 1; ply-- {
		if err := s.AppendMove(ctx, MoveRecord{RoomID: "r", Ply: ply, SAN: "m"}); err != nil {
			t.Fatalf("AppendMove %d: %v", ply, err)
		}
	}
	moves, err := s.LoadMoves(ctx, "r")
	if err != nil {
		t.Fatalf("LoadMoves: %v", err)
	}
	for i, m := range moves {
		if m.Ply != i+1 {
			t.Fatalf("out of order at %d: ply %d", i, m.Ply)
		}
	}
}

func TestAppendMove_DuplicatePlyReported(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer b.Close()
	for _, s := range []Store{NewMemory(), b} {
		if err := s.AppendMove(ctx, MoveRecord{RoomID: "r", Ply: 1, SAN: "e4"}); err != nil {
			t.Fatalf("%T first write: %v", s, err)
		}
		if err := s.AppendMove(ctx, MoveRecord{RoomID: "r", Ply: 1, SAN: "d4"}); !errors.Is(err, ErrDuplicatePly) {
			t.Fatalf("%T: expected ErrDuplicatePly, got %v", s, err)
		}
		moves, _ := s.LoadMoves(ctx, "r")
		if len(moves) != 1 || moves[0].SAN != "e4" {
			t.Fatalf("%T: existing row must be kept, got %+v", s, moves)
		}
	}
}

func TestArchiveResult(t *testing.T) {
	ctx := context.Background()
	res := Result{
		RoomID:    "r1",
		Reason:    "checkmate",
		Winner:    "black",
		WhiteName: "Alice",
		BlackName: "Bob",
		MovesSAN:  []string{"f3", "e5", "g4", "Qh4#"},
		EndedAt:   time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	}

	mem := NewMemory()
	if err := mem.ArchiveResult(ctx, res); err != nil {
		t.Fatalf("memory ArchiveResult: %v", err)
	}
	got, _ := mem.LoadResult(ctx, "r1")
	if got == nil || got.Winner != "black" || len(got.MovesSAN) != 4 {
		t.Fatalf("memory result: %+v", got)
	}

	b, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer b.Close()
	if err := b.ArchiveResult(ctx, res); err != nil {
		t.Fatalf("badger ArchiveResult: %v", err)
	}
	got, err = b.LoadResult(ctx, "r1")
	if err != nil || got == nil {
		t.Fatalf("badger LoadResult: %+v err=%v", got, err)
	}
	if !strings.Contains(got.PGN, "2. g4 Qh4# 0-1") {
		t.Fatalf("expected PGN to be filled, got %q", got.PGN)
	}
	if none, err := b.LoadResult(ctx, "missing"); err != nil || none != nil {
		t.Fatalf("expected nil result for missing room, got %+v err=%v", none, err)
	}
}

func TestBuildPGN(t *testing.T) {
	pgn := BuildPGN(Result{
		RoomID:    "r1",
		Reason:    "Checkmate",
		Winner:    "white",
		WhiteName: `Al"ice`,
		MovesSAN:  []string{"e4", "e5", "Qh5"},
		EndedAt:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	for _, want := range []string{
		`[Date "2026.01.02"]`,
		`[White "Al'ice"]`,
		`[Black "?"]`,
		`[Termination "checkmate"]`,
		`[Result "1-0"]`,
		"1. e4 e5 2. Qh5 1-0",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("missing %q in:\n%s", want, pgn)
		}
	}
	if ResultToken("") != "1/2-1/2" || ResultToken("black") != "0-1" {
		t.Fatalf("unexpected result tokens")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Options{Backend: "cassandra"}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	if _, err := Open(ctx, Options{Backend: BackendRedis}); !errors.Is(err, ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL for redis, got %v", err)
	}
	if _, err := Open(ctx, Options{Backend: BackendPostgres}); !errors.Is(err, ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL for postgres, got %v", err)
	}

	s, err := Open(ctx, Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(Archiver); !ok {
		t.Fatalf("memory store should archive results")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rs, err := Open(ctx, Options{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr() + "/0"})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer rs.Close()
	if _, ok := rs.(*Redis); !ok {
		t.Fatalf("expected *Redis, got %T", rs)
	}
}
