package roomclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/chess-room/internal/msgcat"
	"github.com/park285/chess-room/internal/room"
	"github.com/park285/chess-room/internal/session"
	"github.com/park285/chess-room/internal/store"
	"github.com/park285/chess-room/pkg/roomdto"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat, err := msgcat.New("")
	require.NoError(t, err)
	hub := session.NewHub(room.NewRegistry(store.NewMemory()), cat)
	ts := httptest.NewServer(session.NewServer("", hub, nil, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func waitFor(t *testing.T, ch <-chan Frame, event string) Frame {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f := <-ch:
			if f.Event == event {
				return f
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func TestClient_HealthAndMissingRoom(t *testing.T) {
	ts := startServer(t)
	c := NewClient(ts.URL+"/", WithTimeout(2*time.Second))
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", h.Status)

	_, err = c.GetRoom(ctx, "missing")
	require.ErrorIs(t, err, ErrRoomNotLoaded)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","rooms":2}`))
	}))
	defer ts.Close()

	h, err := NewClient(ts.URL, WithRetry(3)).Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, h.Rooms)
	require.EqualValues(t, 3, calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, WithRetry(3)).Health(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrRoomNotLoaded))
	require.EqualValues(t, 1, calls.Load())
}

func TestWebSocket_PlayAgainstServer(t *testing.T) {
	req := require.New(t)
	ts := startServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	white := NewWebSocket(wsURL)
	frames := make(chan Frame, 32)
	white.OnEvent(func(f Frame) { frames <- f })
	var states []State
	white.OnStateChange(func(s State) { states = append(states, s) })

	req.ErrorIs(white.Send(ctx, roomdto.EventEndTurn, "x"), ErrNotConnected)
	req.NoError(white.Connect(ctx))
	req.Equal(StateConnected, white.State())

	req.NoError(white.JoinRoom(ctx, "client-room", "alice", "♔"))
	var ri roomdto.RoomInitialized
	req.NoError(waitFor(t, frames, roomdto.EventRoomInitialized).Decode(&ri))
	req.Equal("white", *ri.AssignedColor)

	req.NoError(white.StartClock(ctx, "client-room"))
	waitFor(t, frames, roomdto.EventClockStarted)

	req.NoError(white.SubmitMove(ctx, "client-room", "e2", "e4", ""))
	var pu roomdto.PositionUpdated
	req.NoError(waitFor(t, frames, roomdto.EventPositionUpdated).Decode(&pu))
	req.Equal([]string{"e4"}, pu.HistorySAN)

	req.NoError(white.SubmitMove(ctx, "client-room", "d2", "d4", ""))
	rej := waitFor(t, frames, roomdto.EventMoveRejected)
	req.Equal(roomdto.CodeNotYourTurn, rej.Code)

	req.NoError(white.EndTurn(ctx, "client-room"))
	var cs roomdto.ClockState
	req.NoError(waitFor(t, frames, roomdto.EventClockUpdated).Decode(&cs))
	req.Equal("black", cs.TurnActive)

	st, err := NewClient(ts.URL).GetRoom(ctx, "client-room")
	req.NoError(err)
	req.Equal([]string{"e4"}, st.HistorySAN)
	req.Equal("black", st.TurnActive)

	req.NoError(white.Close(ctx))
	req.Equal(StateClosed, white.State())
	req.Equal([]State{StateConnecting, StateConnected, StateClosed}, states)
}
