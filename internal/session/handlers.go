package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/chess-room/internal/metrics"
	"github.com/park285/chess-room/internal/room"
	"github.com/park285/chess-room/internal/rules"
	"github.com/park285/chess-room/pkg/roomdto"
)

const anonymousName = "Anonymous"

// Dispatch handles one inbound frame from p. It never returns an error;
// failures are answered to p alone or logged.
func (h *Hub) Dispatch(ctx context.Context, p Peer, in roomdto.Inbound) {
	switch in.Event {
	case roomdto.EventJoinRoom:
		metrics.EventsIn.WithLabelValues(in.Event).Inc()
		h.handleJoin(ctx, p, in)
	case roomdto.EventStartClock:
		metrics.EventsIn.WithLabelValues(in.Event).Inc()
		h.handleStart(ctx, p, in)
	case roomdto.EventSubmitMove:
		metrics.EventsIn.WithLabelValues(in.Event).Inc()
		h.handleMove(ctx, p, in)
	case roomdto.EventEndTurn:
		metrics.EventsIn.WithLabelValues(in.Event).Inc()
		h.handleEndTurn(ctx, p, in)
	default:
		metrics.EventsIn.WithLabelValues("unknown").Inc()
		h.logger.Debug("event_unknown", zap.String("conn", p.ID()), zap.String("event", in.Event))
	}
}

// decode unmarshals and validates a payload. ok is false when the frame was
// dropped.
func (h *Hub) decode(p Peer, in roomdto.Inbound, v any) bool {
	if len(in.Data) == 0 {
		h.logger.Debug("event_empty", zap.String("conn", p.ID()), zap.String("event", in.Event))
		return false
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		h.logger.Debug("event_malformed", zap.String("conn", p.ID()), zap.String("event", in.Event), zap.Error(err))
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.logger.Debug("event_invalid", zap.String("conn", p.ID()), zap.String("event", in.Event), zap.Error(err))
		return false
	}
	return true
}

func (h *Hub) handleJoin(ctx context.Context, p Peer, in roomdto.Inbound) {
	var req roomdto.JoinRoom
	if !h.decode(p, in, &req) {
		h.reply(p, roomdto.Envelope{
			Event:   roomdto.EventJoinRejected,
			Data:    map[string]string{"roomId": req.RoomID},
			Message: h.catalog.Text("request.invalid", map[string]string{"Event": in.Event}),
			Code:    roomdto.CodeBadRequest,
		})
		return
	}
	roomID := strings.TrimSpace(req.RoomID)
	if !h.roomAllowed(roomID) {
		h.logger.Info("room_denied", zap.String("conn", p.ID()), zap.String("room", roomID))
		h.reply(p, roomdto.Envelope{
			Event:   roomdto.EventJoinRejected,
			Data:    map[string]string{"roomId": roomID},
			Message: h.catalog.Text("join.denied", map[string]string{"RoomID": roomID}),
			Code:    roomdto.CodeRoomDenied,
		})
		return
	}
	r, err := h.registry.GetOrCreate(ctx, roomID)
	if err != nil {
		h.logger.Error("room_join_failed", zap.String("conn", p.ID()), zap.String("room", roomID), zap.Error(err))
		h.reply(p, roomdto.Envelope{
			Event:   roomdto.EventJoinRejected,
			Data:    map[string]string{"roomId": roomID},
			Message: h.catalog.Text("join.failed", map[string]string{"RoomID": roomID}),
			Code:    roomdto.CodeJoinFailed,
		})
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = anonymousName
	}
	color, players := r.Join(room.Participant{
		DisplayName:  name,
		AvatarGlyph:  strings.TrimSpace(req.AvatarGlyph),
		ConnectionID: p.ID(),
	})
	h.addMember(roomID, p)

	h.reply(p, roomdto.Envelope{Event: roomdto.EventRoomInitialized, Data: toRoomInitialized(r.View(), color)})
	h.broadcast(roomID, roomdto.Envelope{Event: roomdto.EventPlayersChanged, Data: toPlayers(players)})
}

// member resolves a room the peer has joined. Unknown rooms and non-members
// are stale or foreign events and are ignored.
func (h *Hub) member(ctx context.Context, p Peer, roomID, event string) (*room.Room, bool) {
	roomID = strings.TrimSpace(roomID)
	r, ok := h.registry.Get(ctx, roomID)
	if !ok {
		h.logger.Debug("room_unknown", zap.String("conn", p.ID()), zap.String("room", roomID), zap.String("event", event))
		return nil, false
	}
	if !h.isMember(roomID, p) {
		h.logger.Debug("room_not_member", zap.String("conn", p.ID()), zap.String("room", roomID), zap.String("event", event))
		return nil, false
	}
	return r, true
}

func (h *Hub) handleStart(ctx context.Context, p Peer, in roomdto.Inbound) {
	var req roomdto.RoomRef
	if !h.decode(p, in, &req) {
		return
	}
	r, ok := h.member(ctx, p, req.RoomID, in.Event)
	if !ok {
		return
	}
	clock, started := r.Start()
	if !started {
		return
	}
	h.broadcast(r.ID(), roomdto.Envelope{Event: roomdto.EventClockStarted, Data: true})
	h.broadcastClock(r.ID(), clock)
}

func (h *Hub) handleMove(ctx context.Context, p Peer, in roomdto.Inbound) {
	var req roomdto.SubmitMove
	if !h.decode(p, in, &req) {
		h.reply(p, roomdto.Envelope{
			Event:   roomdto.EventMoveRejected,
			Data:    in.Data,
			Message: h.catalog.Text("request.invalid", map[string]string{"Event": in.Event}),
			Code:    roomdto.CodeBadRequest,
		})
		return
	}
	r, ok := h.member(ctx, p, req.RoomID, in.Event)
	if !ok {
		return
	}
	color := r.SeatOf(p.ID())
	acc, err := r.ApplyMove(color, rules.Move{From: req.From, To: req.To, Promotion: req.Promotion})
	if err != nil {
		code, msg := h.rejection(err, req, r)
		h.logger.Debug("move_rejected",
			zap.String("room", r.ID()),
			zap.String("conn", p.ID()),
			zap.String("move", req.From+req.To),
			zap.String("code", code),
		)
		h.reply(p, roomdto.Envelope{Event: roomdto.EventMoveRejected, Data: req, Message: msg, Code: code})
		return
	}

	h.broadcast(r.ID(), roomdto.Envelope{Event: roomdto.EventPositionUpdated, Data: toPositionUpdated(acc)})
	if acc.Ended != nil {
		h.broadcastClock(r.ID(), acc.Clock)
		h.broadcastEnded(r.ID(), acc.Ended)
	}
}

func (h *Hub) handleEndTurn(ctx context.Context, p Peer, in roomdto.Inbound) {
	var req roomdto.RoomRef
	if !h.decode(p, in, &req) {
		return
	}
	r, ok := h.member(ctx, p, req.RoomID, in.Event)
	if !ok {
		return
	}
	ev, ok := r.EndTurn(r.SeatOf(p.ID()))
	if !ok {
		return
	}
	h.broadcastClock(r.ID(), ev.Clock)
	if ev.Ended != nil {
		h.broadcastEnded(r.ID(), ev.Ended)
	}
}

func (h *Hub) broadcastEnded(roomID string, res *rules.Result) {
	h.broadcast(roomID, roomdto.Envelope{
		Event:   roomdto.EventGameEnded,
		Data:    toGameEnded(res),
		Message: h.endedMessage(res),
	})
}

func (h *Hub) endedMessage(res *rules.Result) string {
	data := map[string]string{"Winner": "", "Loser": ""}
	if !res.Draw() {
		data["Winner"] = title(string(res.Winner))
		data["Loser"] = title(string(res.Winner.Other()))
	}
	return h.catalog.Text("ended."+string(res.Reason), data)
}

func (h *Hub) rejection(err error, req roomdto.SubmitMove, r *room.Room) (code, msg string) {
	switch {
	case errors.Is(err, room.ErrNotSeated):
		return roomdto.CodeNotSeated, h.catalog.Text("move.not_seated", nil)
	case errors.Is(err, room.ErrNotYourTurn):
		side := title(string(r.View().SideToMove))
		return roomdto.CodeNotYourTurn, h.catalog.Text("move.not_your_turn", map[string]string{"SideToMove": side})
	case errors.Is(err, room.ErrGameOver):
		return roomdto.CodeGameOver, h.catalog.Text("move.game_over", nil)
	default:
		return roomdto.CodeIllegalMove, h.catalog.Text("move.illegal", map[string]string{"From": req.From, "To": req.To})
	}
}
