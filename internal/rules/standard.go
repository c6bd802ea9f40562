package rules

import (
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func bookECO() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

// Standard adapts corentings/chess to Engine. It is not safe for concurrent use;
// the owning room serializes access.
type Standard struct {
	game    *nchess.Game
	history []string
	opening string
}

var _ Engine = (*Standard)(nil)

func NewStandard() Engine {
	return &Standard{game: nchess.NewGame()}
}

// StandardFactory is the production Factory.
func StandardFactory() Engine { return NewStandard() }

func (s *Standard) Apply(mv Move) (Applied, error) {
	if _, over := s.Status(); over {
		return Applied{}, ErrGameFinished
	}
	from := strings.ToLower(strings.TrimSpace(mv.From))
	to := strings.ToLower(strings.TrimSpace(mv.To))
	if len(from) != 2 || len(to) != 2 {
		return Applied{}, fmt.Errorf("%w: %s-%s", ErrIllegalMove, mv.From, mv.To)
	}
	pos := s.game.Position()
	decoded, err := nchess.UCINotation{}.Decode(pos, from+to)
	if err != nil {
		return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	promo := ""
	if isPromotion(pos, decoded) {
		promo = promotionPiece(mv.Promotion)
		decoded, err = nchess.UCINotation{}.Decode(pos, from+to+promo)
		if err != nil {
			return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
		}
	}
	return s.push(pos, decoded, promo)
}

func (s *Standard) ApplySAN(san string) (Applied, error) {
	if _, over := s.Status(); over {
		return Applied{}, ErrGameFinished
	}
	pos := s.game.Position()
	decoded, err := nchess.AlgebraicNotation{}.Decode(pos, strings.TrimSpace(san))
	if err != nil {
		return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	promo := ""
	if isPromotion(pos, decoded) {
		promo = strings.ToLower(decoded.Promo().String())
	}
	return s.push(pos, decoded, promo)
}

func (s *Standard) push(pos *nchess.Position, mv *nchess.Move, promo string) (Applied, error) {
	mover := colorFrom(pos.Turn())
	moving := pos.Board().Piece(mv.S1())
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := s.game.Move(mv, nil); err != nil {
		return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	s.claimDraws()
	s.history = append(s.history, san)

	out := Applied{
		SAN:       san,
		From:      mv.S1().String(),
		To:        mv.S2().String(),
		Promotion: promo,
		Color:     mover,
		Ply:       len(s.history),
		Capture:   mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
		Castle:    mv.HasTag(nchess.KingSideCastle) || mv.HasTag(nchess.QueenSideCastle),
		Check:     mv.HasTag(nchess.Check) || strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#"),
		Checkmate: s.game.Method() == nchess.Checkmate,
		FEN:       s.game.FEN(),
	}
	if !out.Castle && moving.Type() == nchess.King && fileDistance(mv.S1(), mv.S2()) == 2 {
		out.Castle = true
	}
	if out.Checkmate {
		out.Check = true
	}
	if book := bookECO(); book != nil {
		if eco := book.Find(s.game.Moves()); eco != nil {
			s.opening = eco.Title()
		}
	}
	out.Opening = s.opening
	return out, nil
}

// claimDraws converts claimable draws into a finished game, the way a
// server-side rules check reports threefold repetition and the fifty-move rule.
func (s *Standard) claimDraws() {
	if s.game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, method := range s.game.EligibleDraws() {
		if method == nchess.ThreefoldRepetition || method == nchess.FiftyMoveRule {
			_ = s.game.Draw(method)
			return
		}
	}
}

func (s *Standard) Turn() Color { return colorFrom(s.game.Position().Turn()) }

func (s *Standard) Status() (Result, bool) {
	var res Result
	switch s.game.Outcome() {
	case nchess.NoOutcome:
		return Result{}, false
	case nchess.WhiteWon:
		res.Winner = White
	case nchess.BlackWon:
		res.Winner = Black
	}
	switch s.game.Method() {
	case nchess.Checkmate:
		res.Reason = ReasonCheckmate
	case nchess.Stalemate:
		res.Reason = ReasonStalemate
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		res.Reason = ReasonThreefold
	case nchess.InsufficientMaterial:
		res.Reason = ReasonInsufficient
	default:
		res.Reason = ReasonDraw
	}
	return res, true
}

func (s *Standard) History() []string { return append([]string(nil), s.history...) }

func (s *Standard) FEN() string { return s.game.FEN() }

func isPromotion(pos *nchess.Position, mv *nchess.Move) bool {
	if pos.Board().Piece(mv.S1()).Type() != nchess.Pawn {
		return false
	}
	r := mv.S2().Rank()
	return r == nchess.Rank1 || r == nchess.Rank8
}

func promotionPiece(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "r", "rook":
		return "r"
	case "b", "bishop":
		return "b"
	case "n", "knight":
		return "n"
	default:
		return "q"
	}
}

func fileDistance(a, b nchess.Square) int {
	d := int(a.File()) - int(b.File())
	if d < 0 {
		return -d
	}
	return d
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}
