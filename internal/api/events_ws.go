package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	PlanID string          `json:"planId,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// EventsWSHandler handles /v1/events/ws. The client subscribes to one or
// more plans and receives the same events the SSE stream carries.
//
// Protocol: {"type":"subscribe","id":"1","planId":"..."} starts a stream,
// {"type":"unsubscribe","id":"1"} stops it, events arrive as
// {"type":"event","id":"1","event":"plan.saved","data":{...}}.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	pr := s.getPrincipal(r)

	type sub struct {
		planID string
		ch     chan SSEEvent
	}
	subs := map[string]sub{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// The read loop, the keepalive ticker and the per-subscription fan-out
	// goroutines all write to the same connection; gorilla allows only one
	// writer at a time.
	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	// keepalive
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := write(wsMessage{Type: "ping"}); err != nil {
				return
			}
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			if msg.PlanID == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Data: []byte(`{"message":"planId required"}`)})
				continue
			}
			// ownership check; foreign plans look missing
			if _, err := s.Store.GetPlan(r.Context(), pr.UserID, msg.PlanID); err != nil {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Data: []byte(`{"message":"plan not found"}`)})
				continue
			}
			ch := s.Broker.Subscribe(msg.PlanID)
			subs[msg.ID] = sub{planID: msg.PlanID, ch: ch}
			go func(id string, c chan SSEEvent) {
				for evt := range c {
					data, _ := json.Marshal(evt.Data)
					_ = write(wsMessage{Type: "event", ID: id, Event: evt.Type, Data: data})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "unsubscribe":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.planID, s0.ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.planID, s0.ch)
		delete(subs, id)
	}
}
