package session

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/park285/chess-room/internal/metrics"
	"github.com/park285/chess-room/internal/msgcat"
	"github.com/park285/chess-room/internal/room"
	"github.com/park285/chess-room/pkg/roomdto"
)

// Peer is one connected client as seen by the hub.
type Peer interface {
	ID() string
	// Send queues env for delivery and must not block.
	Send(env roomdto.Envelope) bool
}

// Hub routes inbound events to rooms and fans outbound events to room members.
// Every connection that joined a room receives its broadcasts, seated or not.
type Hub struct {
	registry *room.Registry
	catalog  *msgcat.Catalog
	validate *validator.Validate
	logger   *zap.Logger
	allowed  []string

	mu      sync.RWMutex
	peers   map[string]Peer
	members map[string]map[string]Peer
	joined  map[string]map[string]struct{}

	// clockMu serialises clockUpdated fan-out per hub; clockSeq holds the
	// newest view sent for each room.
	clockMu  sync.Mutex
	clockSeq map[string]uint64
}

type HubOption func(*Hub)

// WithAllowedRooms restricts joinable room ids. Empty means any id.
func WithAllowedRooms(ids []string) HubOption { return func(h *Hub) { h.allowed = ids } }

func WithHubLogger(l *zap.Logger) HubOption { return func(h *Hub) { h.logger = l } }

func NewHub(reg *room.Registry, catalog *msgcat.Catalog, opts ...HubOption) *Hub {
	h := &Hub{
		registry: reg,
		catalog:  catalog,
		validate: validator.New(),
		logger:   zap.NewNop(),
		peers:    make(map[string]Peer),
		members:  make(map[string]map[string]Peer),
		joined:   make(map[string]map[string]struct{}),
		clockSeq: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

func (h *Hub) Registry() *room.Registry { return h.registry }

func (h *Hub) roomAllowed(id string) bool {
	return len(h.allowed) == 0 || lo.Contains(h.allowed, id)
}

func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	h.mu.Unlock()
	metrics.Connections.Inc()
	h.logger.Debug("conn_open", zap.String("conn", p.ID()))
}

// Unregister drops p from every room it joined. Seats it held stay taken.
func (h *Hub) Unregister(p Peer) {
	id := p.ID()
	h.mu.Lock()
	if _, ok := h.peers[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.peers, id)
	for roomID := range h.joined[id] {
		delete(h.members[roomID], id)
		if len(h.members[roomID]) == 0 {
			delete(h.members, roomID)
		}
	}
	delete(h.joined, id)
	h.mu.Unlock()
	metrics.Connections.Dec()
	h.logger.Debug("conn_close", zap.String("conn", id))
}

func (h *Hub) addMember(roomID string, p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.members[roomID] == nil {
		h.members[roomID] = make(map[string]Peer)
	}
	h.members[roomID][p.ID()] = p
	if h.joined[p.ID()] == nil {
		h.joined[p.ID()] = make(map[string]struct{})
	}
	h.joined[p.ID()][roomID] = struct{}{}
}

func (h *Hub) isMember(roomID string, p Peer) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.members[roomID][p.ID()]
	return ok
}

// Members returns the number of connections subscribed to roomID.
func (h *Hub) Members(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[roomID])
}

func (h *Hub) broadcast(roomID string, env roomdto.Envelope) {
	h.mu.RLock()
	targets := lo.Values(h.members[roomID])
	h.mu.RUnlock()
	for _, p := range targets {
		if !p.Send(env) {
			h.logger.Warn("broadcast_drop",
				zap.String("room", roomID),
				zap.String("conn", p.ID()),
				zap.String("event", env.Event),
			)
		}
	}
}

// broadcastClock sends clockUpdated unless a newer view of the same room has
// already gone out. Views taken under the room lock can reach here out of
// order once that lock is released.
func (h *Hub) broadcastClock(roomID string, v room.ClockView) bool {
	h.clockMu.Lock()
	defer h.clockMu.Unlock()
	if v.Seq != 0 {
		if v.Seq <= h.clockSeq[roomID] {
			h.logger.Debug("clock_stale_drop",
				zap.String("room", roomID),
				zap.Uint64("seq", v.Seq),
				zap.Uint64("sent", h.clockSeq[roomID]),
			)
			return false
		}
		h.clockSeq[roomID] = v.Seq
	}
	h.broadcast(roomID, roomdto.Envelope{Event: roomdto.EventClockUpdated, Data: toClock(v)})
	return true
}

func (h *Hub) reply(p Peer, env roomdto.Envelope) {
	if !p.Send(env) {
		h.logger.Warn("reply_drop", zap.String("conn", p.ID()), zap.String("event", env.Event))
	}
}
