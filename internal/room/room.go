package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-room/internal/metrics"
	"github.com/park285/chess-room/internal/rules"
	"github.com/park285/chess-room/internal/store"
)

var (
	ErrNotSeated   = errors.New("spectators cannot move")
	ErrNotYourTurn = errors.New("not your turn")
	ErrGameOver    = errors.New("game is over")
	ErrEmptyRoomID = errors.New("room id is required")
)

// Sound is the client-side cue for an accepted move.
type Sound string

const (
	SoundWin     Sound = "win"
	SoundCheck   Sound = "check"
	SoundCapture Sound = "capture"
	SoundCastle  Sound = "castle"
	SoundMove    Sound = "move"
)

// ClassifySound picks the cue by priority: mate, check, capture, castle, move.
func ClassifySound(a rules.Applied) Sound {
	switch {
	case a.Checkmate:
		return SoundWin
	case a.Check:
		return SoundCheck
	case a.Capture:
		return SoundCapture
	case a.Castle:
		return SoundCastle
	default:
		return SoundMove
	}
}

type Participant struct {
	DisplayName  string
	AvatarGlyph  string
	ConnectionID string
}

type Players struct {
	White *Participant
	Black *Participant
}

func (p Players) clone() Players {
	out := Players{}
	if p.White != nil {
		w := *p.White
		out.White = &w
	}
	if p.Black != nil {
		b := *p.Black
		out.Black = &b
	}
	return out
}

func (p Players) name(c rules.Color) string {
	seat := p.White
	if c == rules.Black {
		seat = p.Black
	}
	if seat == nil {
		return ""
	}
	return seat.DisplayName
}

// Sink receives persistence work. Implementations must not block.
type Sink interface {
	AppendMove(rec store.MoveRecord)
	SaveSnapshot(snap store.Snapshot)
	ArchiveResult(res store.Result)
}

type nopSink struct{}

func (nopSink) AppendMove(store.MoveRecord) {}
func (nopSink) SaveSnapshot(store.Snapshot) {}
func (nopSink) ArchiveResult(store.Result) {}

// Accepted is the outcome of a legal move.
type Accepted struct {
	Move    rules.Applied
	Sound   Sound
	FEN     string
	History []string
	Clock   ClockView
	// Ended is set when this move finished the game.
	Ended *rules.Result
}

// ClockEvent is the outcome of a clock-affecting call.
type ClockEvent struct {
	Clock ClockView
	// Ended is set when this call ran a timer out.
	Ended *rules.Result
}

// View is a consistent copy of the room state.
type View struct {
	ID         string
	FEN        string
	History    []string
	Players    Players
	Clock      ClockView
	Phase      Phase
	SideToMove rules.Color
	Opening    string
	Ended      *rules.Result
}

// Room is one game. Every exported method runs to completion under mu.
type Room struct {
	mu sync.Mutex

	id      string
	engine  rules.Engine
	players Players
	clock   Clock
	ended   *rules.Result
	opening string
	// nextPly numbers the next move log row. It continues from the highest
	// stored ply, not from the replayed position.
	nextPly int
	seq     uint64

	now    func() time.Time
	sink   Sink
	logger *zap.Logger
}

func newRoom(id string, engine rules.Engine, clock Clock, ended *rules.Result, sink Sink, now func() time.Time, logger *zap.Logger) *Room {
	if sink == nil {
		sink = nopSink{}
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Room{
		id:      id,
		engine:  engine,
		clock:   clock,
		ended:   ended,
		nextPly: 1,
		now:     now,
		sink:    sink,
		logger:  logger,
	}
}

func (r *Room) ID() string { return r.id }

// Join seats p as white, then black, then as a spectator (empty color).
// Returning players are not recognised; a rejoin after a disconnect is a new
// occupant candidate.
func (r *Room) Join(p Participant) (rules.Color, Players) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seat := p
	var color rules.Color
	switch {
	case r.players.White == nil:
		r.players.White = &seat
		color = rules.White
	case r.players.Black == nil:
		r.players.Black = &seat
		color = rules.Black
	}
	r.logger.Info("room_join",
		zap.String("room", r.id),
		zap.String("conn", p.ConnectionID),
		zap.String("name", p.DisplayName),
		zap.String("color", colorLabel(color)),
	)
	return color, r.players.clone()
}

// SeatOf returns the color held by connID, empty for spectators.
func (r *Room) SeatOf(connID string) rules.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.players.White != nil && r.players.White.ConnectionID == connID:
		return rules.White
	case r.players.Black != nil && r.players.Black.ConnectionID == connID:
		return rules.Black
	default:
		return ""
	}
}

func (r *Room) Players() Players {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players.clone()
}

// Start runs the clock from NotStarted. Any room member may start it.
func (r *Room) Start() (ClockView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if r.ended != nil || !r.clock.Start(now) {
		return r.clock.View(now), false
	}
	view := r.clockViewLocked(now)
	r.sink.SaveSnapshot(r.snapshotLocked(now))
	r.logger.Info("clock_start", zap.String("room", r.id), zap.String("active", string(r.clock.Active)))
	return view, true
}

// ApplyMove validates the mover and submits mv to the rules engine. The clock
// keeps running for the mover until EndTurn.
func (r *Room) ApplyMove(color rules.Color, mv rules.Move) (Accepted, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !color.Valid() {
		metrics.Moves.WithLabelValues("not_seated").Inc()
		return Accepted{}, ErrNotSeated
	}
	if r.ended != nil {
		metrics.Moves.WithLabelValues("game_over").Inc()
		return Accepted{}, ErrGameOver
	}
	if color != r.engine.Turn() {
		metrics.Moves.WithLabelValues("not_your_turn").Inc()
		return Accepted{}, ErrNotYourTurn
	}
	applied, err := r.engine.Apply(mv)
	if err != nil {
		if errors.Is(err, rules.ErrGameFinished) {
			metrics.Moves.WithLabelValues("game_over").Inc()
			return Accepted{}, fmt.Errorf("%w: %v", ErrGameOver, err)
		}
		metrics.Moves.WithLabelValues("illegal").Inc()
		return Accepted{}, err
	}
	metrics.Moves.WithLabelValues("accepted").Inc()

	now := r.now()
	if applied.Opening != "" {
		r.opening = applied.Opening
	}
	acc := Accepted{
		Move:    applied,
		Sound:   ClassifySound(applied),
		FEN:     r.engine.FEN(),
		History: r.engine.History(),
	}
	ply := r.nextPly
	r.nextPly++
	r.sink.AppendMove(store.MoveRecord{
		RoomID:    r.id,
		Ply:       ply,
		SAN:       applied.SAN,
		FEN:       acc.FEN,
		CreatedAt: now,
	})
	if res, over := r.engine.Status(); over {
		r.clock.Halt(now)
		r.finishLocked(res, now)
		acc.Ended = r.ended
	}
	acc.Clock = r.clockViewLocked(now)
	r.sink.SaveSnapshot(r.snapshotLocked(now))
	return acc, nil
}

// EndTurn hands the running clock to the other side. ok is false when the
// request was ignored.
func (r *Room) EndTurn(color rules.Color) (ClockEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended != nil {
		return ClockEvent{}, false
	}
	now := r.now()
	switched, expired := r.clock.EndTurn(color, now)
	if !switched && !expired {
		return ClockEvent{}, false
	}
	ev := ClockEvent{}
	if expired {
		ev.Ended = r.timeoutLocked(now)
	}
	ev.Clock = r.clockViewLocked(now)
	r.sink.SaveSnapshot(r.snapshotLocked(now))
	return ev, true
}

// Tick settles a running clock. ok is false when the clock is not running.
func (r *Room) Tick() (ClockEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.clock.Running || r.ended != nil {
		return ClockEvent{}, false
	}
	now := r.now()
	ev := ClockEvent{}
	if r.clock.Settle(now) {
		ev.Ended = r.timeoutLocked(now)
	}
	ev.Clock = r.clockViewLocked(now)
	r.sink.SaveSnapshot(r.snapshotLocked(now))
	return ev, true
}

func (r *Room) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	v := View{
		ID:         r.id,
		FEN:        r.engine.FEN(),
		History:    r.engine.History(),
		Players:    r.players.clone(),
		Clock:      r.clock.View(now),
		Phase:      r.clock.Phase(),
		SideToMove: r.engine.Turn(),
		Opening:    r.opening,
	}
	if r.ended != nil {
		res := *r.ended
		v.Ended = &res
	}
	return v
}

func (r *Room) timeoutLocked(now time.Time) *rules.Result {
	metrics.ClockTimeouts.Inc()
	res := rules.Result{Reason: rules.ReasonTimeout, Winner: r.clock.Flagged().Other()}
	r.finishLocked(res, now)
	return r.ended
}

func (r *Room) finishLocked(res rules.Result, now time.Time) {
	r.ended = &res
	metrics.GamesEnded.WithLabelValues(string(res.Reason)).Inc()
	r.logger.Info("game_end",
		zap.String("room", r.id),
		zap.String("reason", string(res.Reason)),
		zap.String("winner", res.WinnerLabel()),
		zap.Int("plies", len(r.engine.History())),
	)
	archived := store.Result{
		RoomID:    r.id,
		Reason:    string(res.Reason),
		Winner:    string(res.Winner),
		WhiteName: r.players.name(rules.White),
		BlackName: r.players.name(rules.Black),
		MovesSAN:  r.engine.History(),
		EndedAt:   now,
	}
	archived.PGN = store.BuildPGN(archived)
	r.sink.ArchiveResult(archived)
}

// clockViewLocked stamps the view with the next room sequence number so
// receivers can discard views that arrive out of order.
func (r *Room) clockViewLocked(now time.Time) ClockView {
	r.seq++
	v := r.clock.View(now)
	v.Seq = r.seq
	return v
}

func (r *Room) snapshotLocked(now time.Time) store.Snapshot {
	return store.Snapshot{
		RoomID:       r.id,
		WhiteSeconds: r.clock.White,
		BlackSeconds: r.clock.Black,
		Active:       string(r.clock.Active),
		Started:      r.clock.Started,
		UpdatedAt:    now,
	}
}

func colorLabel(c rules.Color) string {
	if c == "" {
		return "spectator"
	}
	return string(c)
}
