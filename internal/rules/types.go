package rules

import (
	"errors"
	"strings"
)

// Color identifies chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposite side. Unknown values map to White.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Valid reports whether c is one of the two seat colors.
func (c Color) Valid() bool { return c == White || c == Black }

func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return "", false
	}
}

// Reason is the terminal cause of a game.
type Reason string

const (
	ReasonCheckmate    Reason = "checkmate"
	ReasonDraw         Reason = "draw"
	ReasonStalemate    Reason = "stalemate"
	ReasonThreefold    Reason = "threefold"
	ReasonInsufficient Reason = "insufficient"
	ReasonTimeout      Reason = "timeout"
)

// Result describes a finished game. An empty Winner means draw.
type Result struct {
	Reason Reason
	Winner Color
}

func (r Result) Draw() bool { return r.Winner == "" }

// WinnerLabel is the winning color, or "draw".
func (r Result) WinnerLabel() string {
	if r.Draw() {
		return "draw"
	}
	return string(r.Winner)
}

// Move is a candidate move in coordinate form.
type Move struct {
	From      string
	To        string
	Promotion string
}

// Applied carries what the engine learned while applying a legal move.
type Applied struct {
	SAN       string
	From      string
	To        string
	Promotion string
	Color     Color
	Ply       int
	Capture   bool
	Castle    bool
	Check     bool
	Checkmate bool
	FEN       string
	Opening   string
}

var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrGameFinished = errors.New("game already finished")
)

// Engine is the narrow capability the room needs from a rules implementation.
type Engine interface {
	Apply(mv Move) (Applied, error)
	ApplySAN(san string) (Applied, error)
	Turn() Color
	// Status returns the terminal result, ok=false while the game is in progress.
	Status() (Result, bool)
	History() []string
	FEN() string
}

// Factory builds a fresh engine at the initial position.
type Factory func() Engine
