package roomclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-room/pkg/roomdto"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

var ErrNotConnected = errors.New("websocket not connected")

// Frame is one server event as received, with Data left undecoded.
type Frame struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// Decode unmarshals Data into v.
func (f Frame) Decode(v any) error { return json.Unmarshal(f.Data, v) }

type EventCallback func(f Frame)

type StateCallback func(s State)

// WebSocket is a player or spectator connection to /ws. It does not
// reconnect; a dropped socket moves to StateDisconnected and the caller
// decides whether to dial again and rejoin.
type WebSocket struct {
	wsURL string

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	cbM      sync.RWMutex
	eventCbs []EventCallback
	stateCbs []StateCallback

	pingInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	connCancel context.CancelFunc
}

func NewWebSocket(wsURL string) *WebSocket {
	return &WebSocket{
		wsURL:        wsURL,
		state:        StateDisconnected,
		pingInterval: 30 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

func (ws *WebSocket) Connect(ctx context.Context) error {
	ws.mu.Lock()
	if ws.state == StateConnected || ws.state == StateConnecting {
		ws.mu.Unlock()
		return nil
	}
	ws.mu.Unlock()

	ws.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		ws.setState(StateDisconnected)
		return err
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	ws.mu.Lock()
	ws.conn = conn
	ws.connCancel = connCancel
	ws.mu.Unlock()
	ws.setState(StateConnected)

	ws.wg.Add(2)
	go ws.listen(connCtx, conn)
	go ws.pingLoop(connCtx, conn)
	return nil
}

// Send writes one client event.
func (ws *WebSocket) Send(ctx context.Context, event string, data any) error {
	ws.mu.RLock()
	conn := ws.conn
	ws.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return wsjson.Write(ctx, conn, map[string]any{"event": event, "data": data})
}

func (ws *WebSocket) JoinRoom(ctx context.Context, roomID, displayName, avatar string) error {
	return ws.Send(ctx, roomdto.EventJoinRoom, roomdto.JoinRoom{RoomID: roomID, DisplayName: displayName, AvatarGlyph: avatar})
}

func (ws *WebSocket) StartClock(ctx context.Context, roomID string) error {
	return ws.Send(ctx, roomdto.EventStartClock, roomID)
}

func (ws *WebSocket) SubmitMove(ctx context.Context, roomID, from, to, promotion string) error {
	return ws.Send(ctx, roomdto.EventSubmitMove, roomdto.SubmitMove{RoomID: roomID, From: from, To: to, Promotion: promotion})
}

func (ws *WebSocket) EndTurn(ctx context.Context, roomID string) error {
	return ws.Send(ctx, roomdto.EventEndTurn, roomID)
}

func (ws *WebSocket) listen(ctx context.Context, conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ws.isStopping() {
				return
			}
			ws.dropConn(conn, "read failure")
			return
		}
		ws.cbM.RLock()
		callbacks := append([]EventCallback(nil), ws.eventCbs...)
		ws.cbM.RUnlock()
		for _, cb := range callbacks {
			cb(f)
		}
	}
}

func (ws *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ws.stopCh:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				ws.dropConn(conn, "ping failure")
				return
			}
		}
	}
}

// dropConn closes conn if it is still the current one.
func (ws *WebSocket) dropConn(conn *websocket.Conn, reason string) {
	ws.mu.Lock()
	current := ws.conn == conn
	cancel := ws.connCancel
	if current {
		ws.conn = nil
		ws.connCancel = nil
	}
	ws.mu.Unlock()
	if !current {
		return
	}
	cancel()
	_ = conn.Close(websocket.StatusGoingAway, reason)
	ws.setState(StateDisconnected)
}

func (ws *WebSocket) OnEvent(cb EventCallback) {
	if cb == nil {
		return
	}
	ws.cbM.Lock()
	ws.eventCbs = append(ws.eventCbs, cb)
	ws.cbM.Unlock()
}

func (ws *WebSocket) OnStateChange(cb StateCallback) {
	if cb == nil {
		return
	}
	ws.cbM.Lock()
	ws.stateCbs = append(ws.stateCbs, cb)
	ws.cbM.Unlock()
}

func (ws *WebSocket) State() State {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.state
}

func (ws *WebSocket) setState(s State) {
	ws.mu.Lock()
	ws.state = s
	ws.mu.Unlock()

	ws.cbM.RLock()
	callbacks := append([]StateCallback(nil), ws.stateCbs...)
	ws.cbM.RUnlock()
	for _, cb := range callbacks {
		cb(s)
	}
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })
	ws.mu.Lock()
	conn, cancel := ws.conn, ws.connCancel
	ws.conn, ws.connCancel = nil, nil
	ws.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		ws.setState(StateClosed)
		return nil
	}
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}
