package rules

import (
	"errors"
	"testing"
)

func play(t *testing.T, e Engine, moves ...string) []Applied {
	t.Helper()
	var out []Applied
	for _, mv := range moves {
		a, err := e.Apply(Move{From: mv[:2], To: mv[2:4]})
		if err != nil {
			t.Fatalf("apply %s: %v", mv, err)
		}
		out = append(out, a)
	}
	return out
}

func TestApply_OpeningPawnMove(t *testing.T) {
	e := NewStandard()
	a := play(t, e, "e2e4")[0]
	if a.SAN != "e4" {
		t.Fatalf("expected SAN e4, got %q", a.SAN)
	}
	if a.Capture || a.Castle || a.Check || a.Checkmate {
		t.Fatalf("unexpected flags: %+v", a)
	}
	if a.Color != White || a.Ply != 1 {
		t.Fatalf("unexpected mover/ply: %s %d", a.Color, a.Ply)
	}
	if e.Turn() != Black {
		t.Fatalf("expected black to move")
	}
	if h := e.History(); len(h) != 1 || h[0] != "e4" {
		t.Fatalf("unexpected history %v", h)
	}
}

func TestApply_IllegalLeavesPositionUntouched(t *testing.T) {
	e := NewStandard()
	before := e.FEN()
	if _, err := e.Apply(Move{From: "e2", To: "e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := e.Apply(Move{From: "zz", To: "e4"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for bad square, got %v", err)
	}
	if e.FEN() != before || len(e.History()) != 0 {
		t.Fatalf("position changed after illegal move")
	}
}

func TestApply_FoolsMate(t *testing.T) {
	e := NewStandard()
	applied := play(t, e, "f2f3", "e7e5", "g2g4", "d8h4")
	last := applied[len(applied)-1]
	if last.SAN != "Qh4#" {
		t.Fatalf("expected Qh4#, got %q", last.SAN)
	}
	if !last.Checkmate || !last.Check {
		t.Fatalf("expected checkmate flags, got %+v", last)
	}
	res, over := e.Status()
	if !over || res.Reason != ReasonCheckmate || res.Winner != Black {
		t.Fatalf("unexpected status %+v over=%v", res, over)
	}
	if _, err := e.Apply(Move{From: "a2", To: "a3"}); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("expected ErrGameFinished, got %v", err)
	}
}

func TestApply_PromotionDefaultsToQueen(t *testing.T) {
	e := NewStandard()
	play(t, e, "a2a4", "b7b5", "a4b5", "a7a6", "b5a6", "c8b7", "a6b7", "b8c6")
	a, err := e.Apply(Move{From: "b7", To: "a8"})
	if err != nil {
		t.Fatalf("promotion: %v", err)
	}
	if a.SAN != "bxa8=Q" || a.Promotion != "q" || !a.Capture {
		t.Fatalf("unexpected promotion result %+v", a)
	}
}

func TestApply_UnderPromotion(t *testing.T) {
	e := NewStandard()
	play(t, e, "a2a4", "b7b5", "a4b5", "a7a6", "b5a6", "c8b7", "a6b7", "b8c6")
	a, err := e.Apply(Move{From: "b7", To: "a8", Promotion: "n"})
	if err != nil {
		t.Fatalf("promotion: %v", err)
	}
	if a.SAN != "bxa8=N" {
		t.Fatalf("expected bxa8=N, got %q", a.SAN)
	}
}

func TestApply_PromotionIgnoredForNonPawn(t *testing.T) {
	e := NewStandard()
	a, err := e.Apply(Move{From: "g1", To: "f3", Promotion: "q"})
	if err != nil {
		t.Fatalf("knight move with promotion hint: %v", err)
	}
	if a.SAN != "Nf3" || a.Promotion != "" {
		t.Fatalf("unexpected %+v", a)
	}
}

func TestApply_CastleFlag(t *testing.T) {
	e := NewStandard()
	applied := play(t, e, "e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "f8c5", "e1g1")
	if last := applied[len(applied)-1]; !last.Castle {
		t.Fatalf("expected castle flag, got %+v", last)
	}
}

func TestApplySAN_ReplayReproducesPosition(t *testing.T) {
	e := NewStandard()
	play(t, e, "e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6")
	replay := NewStandard()
	for _, san := range e.History() {
		if _, err := replay.ApplySAN(san); err != nil {
			t.Fatalf("replay %s: %v", san, err)
		}
	}
	if replay.FEN() != e.FEN() {
		t.Fatalf("replay FEN mismatch:\n%s\n%s", replay.FEN(), e.FEN())
	}
	if got := replay.History(); len(got) != 6 {
		t.Fatalf("expected 6 SAN entries, got %v", got)
	}
}

func TestApplySAN_RejectsGarbage(t *testing.T) {
	e := NewStandard()
	if _, err := e.ApplySAN("Qxz9"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestColorOther(t *testing.T) {
	if White.Other() != Black || Black.Other() != White {
		t.Fatalf("Other mismatch")
	}
	if c, ok := ParseColor(" B "); !ok || c != Black {
		t.Fatalf("ParseColor: %v %v", c, ok)
	}
}
