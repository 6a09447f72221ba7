// Package realtime fans JSON events out to websocket subscribers by topic.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type logger interface {
	Debugf(format string, v ...any)
	Warnf(format string, v ...any)
}

// Event is the frame written to subscribers.
type Event struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

type subscriber struct {
	send chan []byte
}

type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	logger   logger
}

func NewHub(l logger) *Hub {
	return &Hub{
		topics: map[string]map[*subscriber]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: l,
	}
}

// Subscribe registers a buffered receiver on topic. The returned func
// unsubscribes and closes the channel; calling it twice is safe.
func (h *Hub) Subscribe(topic string) (<-chan []byte, func()) {
	s := &subscriber{send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = map[*subscriber]struct{}{}
		h.topics[topic] = subs
	}
	subs[s] = struct{}{}
	h.mu.Unlock()

	return s.send, func() {
		h.mu.Lock()
		h.remove(topic, s)
		h.mu.Unlock()
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(topic string, s *subscriber) {
	subs := h.topics[topic]
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	close(s.send)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Publish delivers an event to every subscriber of topic and returns how many
// received it. Subscribers whose buffer is full are dropped.
func (h *Hub) Publish(topic string, eventType string, data any) int {
	b, err := json.Marshal(Event{Topic: topic, Type: eventType, Data: data})
	if err != nil {
		h.logger.Warnf("Publish: Error marshalling event, topic: %s, err: %v", topic, err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for s := range h.topics[topic] {
		select {
		case s.send <- b:
			delivered++
		default:
			h.logger.Warnf("Publish: Dropping slow subscriber, topic: %s", topic)
			h.remove(topic, s)
		}
	}
	return delivered
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Serve upgrades the request and streams topic events to the connection
// until either side closes it.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrapf(err, "error upgrading connection for topic: %s", topic)
	}
	events, unsubscribe := h.Subscribe(topic)
	h.logger.Debugf("Serve: Subscriber connected, topic: %s", topic)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readPump(conn)
	}()

	writePump(conn, events, done)
	unsubscribe()
	_ = conn.Close()
	<-done
	h.logger.Debugf("Serve: Subscriber disconnected, topic: %s", topic)
	return nil
}

// readPump discards client frames and keeps the pong deadline fresh.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, events <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case b, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
