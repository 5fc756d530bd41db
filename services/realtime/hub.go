// Package realtime maintains the set of live websocket subscribers and fans
// broadcast payloads out to them.
package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Constants for websocket configuration
const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 256
	maxMessageSize = 512
)

// ErrHubFull is returned by Register when the client limit is reached.
var ErrHubFull = errors.New("maximum websocket clients reached")

// Subscriber is a delivery target for broadcast payloads. Send must not
// block; a returned error marks the subscriber dead and removes it.
type Subscriber interface {
	ID() string
	Send(payload []byte) error
	Close()
}

// Envelope is the message format sent to subscribers.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// Hub is the concurrency-safe registry of connected subscribers. The mutex
// covers only set mutation and snapshots; delivery happens outside it.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]Subscriber
	maxClients int
	upgrader   websocket.Upgrader
}

// NewHub creates an empty hub. maxClients <= 0 means unlimited.
func NewHub(maxClients int) *Hub {
	return &Hub{
		subs:       make(map[string]Subscriber),
		maxClients: maxClients,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Register adds a subscriber. Registering an already known ID is a no-op.
func (h *Hub) Register(sub Subscriber) error {
	h.mu.Lock()
	if _, ok := h.subs[sub.ID()]; ok {
		h.mu.Unlock()
		return nil
	}
	if h.maxClients > 0 && len(h.subs) >= h.maxClients {
		h.mu.Unlock()
		log.Warn().Int("max_clients", h.maxClients).Msg("WebSocket client rejected: max clients reached")
		return ErrHubFull
	}
	h.subs[sub.ID()] = sub
	count := len(h.subs)
	h.mu.Unlock()

	log.Info().Int("clients", count).Msg("WebSocket client connected")
	return nil
}

// Unregister removes a subscriber and closes it. Safe to call more than once.
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub.ID()]
	if ok {
		delete(h.subs, sub.ID())
	}
	count := len(h.subs)
	h.mu.Unlock()

	if ok {
		sub.Close()
		log.Info().Int("clients", count).Msg("WebSocket client disconnected")
	}
}

// Broadcast marshals the envelope once and delivers it to every subscriber.
// A subscriber whose Send fails is dropped; delivery continues for the rest.
func (h *Hub) Broadcast(msgType string, data interface{}) (delivered, pruned int) {
	payload, err := json.Marshal(Envelope{
		Type: msgType,
		Data: data,
		Time: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling broadcast message")
		return 0, 0
	}

	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var dead []Subscriber
	for _, sub := range targets {
		if err := sub.Send(payload); err != nil {
			log.Warn().Str("client", sub.ID()).Err(err).Msg("Dropping unresponsive websocket client")
			dead = append(dead, sub)
			continue
		}
		delivered++
	}

	for _, sub := range dead {
		h.Unregister(sub)
	}
	return delivered, len(dead)
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Shutdown closes every subscriber and empties the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	log.Info().Msg("Realtime hub shutdown complete")
}

// Status returns hub status info
func (h *Hub) Status() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"client_count": len(h.subs),
		"max_clients":  h.maxClients,
	}
}

// HandleWebSocket upgrades the request and attaches the connection to the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Check if at capacity before upgrading
	h.mu.RLock()
	atCapacity := h.maxClients > 0 && len(h.subs) >= h.maxClients
	h.mu.RUnlock()

	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := newWSClient(conn)
	if err := h.Register(client); err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}
