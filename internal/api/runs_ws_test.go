package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vrpcore/internal/store"
)

func dialRunsWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	s.Routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/runs/ws"
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_test")
	c, _, err := websocket.DefaultDialer.Dial(u, hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	var ack wsMessage
	if err := c.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" {
		t.Fatalf("ack: %+v %v", ack, err)
	}
	return c
}

func subscribeRun(t *testing.T, c *websocket.Conn, id, runID string) {
	t.Helper()
	payload, _ := json.Marshal(subscribePayload{RunID: runID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: id, Payload: payload}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
}

func TestRunsWSStreamsProgress(t *testing.T) {
	s := newTestServer(t)
	run, err := s.Store.CreateRun(context.Background(), store.Run{ID: "run-ws", TenantID: "t_test", Status: store.RunRunning})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	c := dialRunsWS(t, s)
	subscribeRun(t, c, "1", run.ID)

	// the subscription is registered asynchronously from the client's point of view
	time.Sleep(100 * time.Millisecond)
	s.Broker.Publish(run.ID, SSEEvent{Type: EventRunProgress, Data: map[string]any{"generation": 7}})
	s.Broker.Publish(run.ID, SSEEvent{Type: EventRunFinished, Data: map[string]any{"status": "succeeded"}})

	var types []string
	for len(types) < 3 {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (got %v)", err, types)
		}
		if msg.Type == "ping" {
			continue
		}
		if msg.ID != "1" {
			t.Fatalf("unexpected id: %+v", msg)
		}
		if msg.Type == "next" {
			var evt SSEEvent
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				t.Fatalf("payload: %v", err)
			}
			types = append(types, evt.Type)
			continue
		}
		types = append(types, msg.Type)
	}
	want := []string{EventRunProgress, EventRunFinished, "complete"}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("got %v, want %v", types, want)
		}
	}
}

func TestRunsWSFinishedAndUnknownRuns(t *testing.T) {
	s := newTestServer(t)
	run := solveAndWait(t, s, "t_test")
	c := dialRunsWS(t, s)

	subscribeRun(t, c, "done", run.ID)
	var msg wsMessage
	if err := c.ReadJSON(&msg); err != nil || msg.Type != "next" || !strings.Contains(string(msg.Payload), EventRunFinished) {
		t.Fatalf("next: %+v %v", msg, err)
	}
	if err := c.ReadJSON(&msg); err != nil || msg.Type != "complete" {
		t.Fatalf("complete: %+v %v", msg, err)
	}

	subscribeRun(t, c, "missing", "no-such-run")
	if err := c.ReadJSON(&msg); err != nil || msg.Type != "error" || !strings.Contains(string(msg.Payload), "run not found") {
		t.Fatalf("error: %+v %v", msg, err)
	}
	if err := c.ReadJSON(&msg); err != nil || msg.Type != "complete" || msg.ID != "missing" {
		t.Fatalf("complete: %+v %v", msg, err)
	}
}
