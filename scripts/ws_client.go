// Package main runs a demo WebSocket client which streams the progress of a solve run.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// a depot and three customers around Berlin
const demoRequest = `{
  "problem": {
    "jobs": [
      {"id": "j1", "location": {"lat": 52.530, "lng": 13.390}, "delivery": [1], "duration": 300},
      {"id": "j2", "location": {"lat": 52.510, "lng": 13.420}, "delivery": [1], "duration": 300},
      {"id": "j3", "location": {"lat": 52.495, "lng": 13.370}, "delivery": [1], "duration": 300}
    ],
    "vehicles": [
      {"id": "van", "count": 2, "capacity": [2], "costs": {"fixed": 10, "distance": 0.001, "time": 0.005},
       "shift": {"start": {"location": {"lat": 52.520, "lng": 13.405}}, "end": {"location": {"lat": 52.520, "lng": 13.405}}}}
    ]
  },
  "config": {"population": "rosomaxa", "maxGenerations": 500}
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS first so no progress is missed
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/v1/solve", bytes.NewReader([]byte(demoRequest)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var run struct {
		ID     string `json:"id"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	if run.ID == "" {
		log.Fatalf("solve rejected: %s", run.Detail)
	}
	log.Printf("Run ID: %s", run.ID)

	pl, _ := json.Marshal(map[string]any{"runId": run.ID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			if m.Type == "ping" {
				_ = c.WriteJSON(wsMessage{Type: "pong"})
				continue
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			if m.Type == "complete" {
				return
			}
		}
	}()

	select {
	case <-time.After(2 * time.Minute):
	case <-done:
	}
	log.Printf("Solution: %s/v1/runs/%s, chart: %s/v1/runs/%s/chart", base, run.ID, base, run.ID)
}
