package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestCountdownWebSocket(t *testing.T) {
	env := newTestEnv(t, "")
	env.api.tick = time.Hour

	env.do(t, http.MethodPut, "/api/v1/channels/chan-1/schedule", map[string]any{"days": []string{"", "21:00", "", "", "", "", ""}})

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/channels/chan-1/schedule/countdown?token=" + env.token
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	var frame countdownFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if frame.Type != "countdown" || !frame.Scheduled || frame.Occurrence.Time != "21:00" || frame.Occurrence.SecondsUntil != 11*3600 {
		t.Fatalf("first frame = %+v occ=%+v", frame, frame.Occurrence)
	}

	// Saving the schedule pushes a fresh frame without waiting for the tick.
	env.do(t, http.MethodPut, "/api/v1/channels/chan-1/schedule", map[string]any{"days": []string{"", "11:00", "", "", "", "", ""}})

	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read update frame: %v", err)
	}
	if frame.Occurrence == nil || frame.Occurrence.Time != "11:00" || frame.Occurrence.SecondsUntil != 3600 {
		t.Fatalf("update frame occ=%+v", frame.Occurrence)
	}
}

func TestCountdownQueryTokenOnlyForUpgrade(t *testing.T) {
	env := newTestEnv(t, "")
	rr := env.doWithToken(t, http.MethodGet, "/api/v1/channels/chan-1/schedule/next?token="+env.token, nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("query token on plain request: status=%d", rr.Code)
	}
}
