package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/chess-room/internal/roomclient"
)

func main() {
	base := flag.String("base", envOr("ROOM_BASE_URL", "http://127.0.0.1:3000"), "server base URL")
	roomID := flag.String("room", "roomcheck", "room to join")
	name := flag.String("name", "roomcheck", "display name")
	watch := flag.Duration("watch", 5*time.Second, "how long to print events")
	flag.Parse()

	client := roomclient.NewClient(*base, roomclient.WithTimeout(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := client.Health(ctx)
	if err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	log.Printf("/healthz ok: status=%s rooms=%d", h.Status, h.Rooms)

	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(*base, "/"), "http") + "/ws"
	ws := roomclient.NewWebSocket(wsURL)
	ws.OnStateChange(func(s roomclient.State) { log.Printf("WS state: %s", s) })
	ws.OnEvent(func(f roomclient.Frame) {
		fmt.Printf("event=%s code=%s message=%q data=%s\n", f.Event, f.Code, f.Message, compact(f.Data))
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Fatalf("WS connect error: %v", err)
	}
	if err := ws.JoinRoom(cctx, *roomID, *name, "♟"); err != nil {
		log.Printf("join error: %v", err)
	}

	t := time.NewTimer(*watch)
	<-t.C

	if st, err := client.GetRoom(context.Background(), *roomID); err == nil {
		log.Printf("room %s: phase=%s turn=%s white=%.1f black=%.1f moves=%d",
			st.RoomID, st.Phase, st.TurnActive, st.Timers.White, st.Timers.Black, len(st.HistorySAN))
	} else {
		log.Printf("GET /rooms/%s: %v", *roomID, err)
	}

	_ = ws.Close(context.Background())
}

func compact(raw json.RawMessage) string {
	if len(raw) > 200 {
		return string(raw[:200]) + "..."
	}
	return string(raw)
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
