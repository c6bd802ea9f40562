package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-room/pkg/roomdto"
)

const (
	sendBuffer    = 64
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
	pingTimeout   = 3 * time.Second
	maxFrameBytes = 64 << 10
)

// Conn is one websocket client. Reads and writes run on separate goroutines;
// outbound frames go through a bounded queue.
type Conn struct {
	id     string
	ws     *websocket.Conn
	hub    *Hub
	logger *zap.Logger

	send     chan roomdto.Envelope
	done     chan struct{}
	doneOnce sync.Once
}

var _ Peer = (*Conn)(nil)

func newConn(id string, ws *websocket.Conn, hub *Hub, logger *zap.Logger) *Conn {
	ws.SetReadLimit(maxFrameBytes)
	return &Conn{
		id:     id,
		ws:     ws,
		hub:    hub,
		logger: logger.With(zap.String("conn", id)),
		send:   make(chan roomdto.Envelope, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(env roomdto.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// serve blocks until the client goes away or ctx ends.
func (c *Conn) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx, cancel)
	}()

	c.readLoop(ctx)
	c.doneOnce.Do(func() { close(c.done) })
	cancel()
	wg.Wait()
	_ = c.ws.Close(websocket.StatusNormalClosure, "")
}

// readLoop decodes frames itself so a malformed frame is dropped without
// closing the socket.
func (c *Conn) readLoop(ctx context.Context) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.logger.Debug("conn_read_error", zap.Error(err))
			}
			return
		}
		var in roomdto.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.logger.Debug("frame_malformed", zap.Error(err))
			continue
		}
		c.hub.Dispatch(ctx, c, in)
	}
}

func (c *Conn) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, env)
			wcancel()
			if err != nil {
				c.logger.Debug("conn_write_error", zap.String("event", env.Event), zap.Error(err))
				cancel()
				return
			}
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, pingTimeout)
			err := c.ws.Ping(pctx)
			pcancel()
			if err != nil {
				c.logger.Debug("conn_ping_failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}
