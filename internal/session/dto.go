package session

import (
	"strings"

	"github.com/samber/lo"

	"github.com/park285/chess-room/internal/room"
	"github.com/park285/chess-room/internal/rules"
	"github.com/park285/chess-room/pkg/roomdto"
)

func toParticipant(p *room.Participant) *roomdto.Participant {
	if p == nil {
		return nil
	}
	return &roomdto.Participant{
		DisplayName:  p.DisplayName,
		AvatarGlyph:  p.AvatarGlyph,
		ConnectionID: p.ConnectionID,
	}
}

func toPlayers(p room.Players) roomdto.Players {
	return roomdto.Players{White: toParticipant(p.White), Black: toParticipant(p.Black)}
}

func toClock(c room.ClockView) roomdto.ClockState {
	return roomdto.ClockState{
		Timers:       roomdto.Timers{White: c.White, Black: c.Black},
		TurnActive:   string(c.Active),
		ClockRunning: c.Running,
		Seq:          c.Seq,
	}
}

func toGameEnded(res *rules.Result) *roomdto.GameEnded {
	if res == nil {
		return nil
	}
	return &roomdto.GameEnded{Reason: string(res.Reason), Winner: res.WinnerLabel()}
}

// ToRoomState converts a room view to its wire form.
func ToRoomState(v room.View) roomdto.RoomState {
	history := v.History
	if history == nil {
		history = []string{}
	}
	return roomdto.RoomState{
		RoomID:       v.ID,
		PositionFEN:  v.FEN,
		HistorySAN:   history,
		Players:      toPlayers(v.Players),
		Timers:       roomdto.Timers{White: v.Clock.White, Black: v.Clock.Black},
		TurnActive:   string(v.Clock.Active),
		SideToMove:   string(v.SideToMove),
		Started:      v.Clock.Started,
		ClockRunning: v.Clock.Running,
		Phase:        string(v.Phase),
		Opening:      v.Opening,
		Ended:        toGameEnded(v.Ended),
	}
}

func toRoomInitialized(v room.View, assigned rules.Color) roomdto.RoomInitialized {
	out := roomdto.RoomInitialized{RoomState: ToRoomState(v)}
	if assigned.Valid() {
		out.AssignedColor = lo.ToPtr(string(assigned))
	}
	return out
}

func toPositionUpdated(acc room.Accepted) roomdto.PositionUpdated {
	m := acc.Move
	return roomdto.PositionUpdated{
		PositionFEN:   acc.FEN,
		HistorySAN:    acc.History,
		SoundCategory: string(acc.Sound),
		LastMoveDetail: roomdto.MoveDetail{
			SAN:       m.SAN,
			From:      m.From,
			To:        m.To,
			Promotion: m.Promotion,
			Color:     string(m.Color),
			Ply:       m.Ply,
			Capture:   m.Capture,
			Castle:    m.Castle,
			Check:     m.Check,
			Checkmate: m.Checkmate,
			Opening:   m.Opening,
		},
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
