// Package realtime pushes scored transactions to WebSocket subscribers.
//
// Fraud analysts subscribe to the live feed instead of polling the list
// endpoint: every transaction goes out the moment the rule chain has scored
// it, and a client can narrow its view down to flagged activity only.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reward360/pointsguard/internal/metrics"
	"github.com/reward360/pointsguard/internal/transactions"
)

// MaxClients bounds concurrent feed connections.
const MaxClients = 10000

const (
	sendBuffer    = 256
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	maxInbound    = 512 * 1024
)

// EventType distinguishes routine scores from flagged ones on the wire.
type EventType string

const (
	EventScored  EventType = "transaction_scored"
	EventFlagged EventType = "transaction_flagged"
)

// Event is one feed message.
type Event struct {
	Type      EventType                 `json:"type"`
	Timestamp time.Time                 `json:"timestamp"`
	Data      *transactions.Transaction `json:"data"`
}

// Subscription is a client's filter set, replaceable mid-connection by
// sending a new one as a JSON text frame. The zero value receives
// everything.
type Subscription struct {
	AllEvents   bool        `json:"allEvents"`
	EventTypes  []EventType `json:"eventTypes"`
	AccountIDs  []string    `json:"accountIds"`
	RiskLevels  []string    `json:"riskLevels"`
	FlaggedOnly bool        `json:"flaggedOnly"`
}

// matches reports whether the subscription wants e. FlaggedOnly is a hard
// gate; the remaining filters are conjunctive, and an empty filter admits
// everything.
func (s Subscription) matches(e *Event) bool {
	if s.FlaggedOnly && e.Type != EventFlagged {
		return false
	}
	if s.AllEvents {
		return true
	}
	if len(s.EventTypes) > 0 && !slices.Contains(s.EventTypes, e.Type) {
		return false
	}
	if e.Data != nil {
		if len(s.AccountIDs) > 0 && !slices.Contains(s.AccountIDs, e.Data.AccountID) {
			return false
		}
		if len(s.RiskLevels) > 0 && !slices.Contains(s.RiskLevels, string(e.Data.RiskLevel)) {
			return false
		}
	}
	return true
}

// Client is one feed connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	sub  Subscription
}

func (c *Client) subscription() Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub
}

// Stats is the /ws/stats payload.
type Stats struct {
	ConnectedClients int   `json:"connectedClients"`
	TotalEvents      int64 `json:"totalEvents"`
	TotalClients     int64 `json:"totalClients"`
	PeakClients      int64 `json:"peakClients"`
}

// Hub fans scored-transaction events out to every matching client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	events chan *Event
	joins  chan *Client
	leaves chan *Client

	logger *slog.Logger
	done   chan struct{} // closed when Run returns; gates late upgrades

	totalEvents  atomic.Int64
	totalClients atomic.Int64
	peakClients  atomic.Int64
}

// NewHub creates an idle hub; Run must be started for it to deliver.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		events:  make(chan *Event, sendBuffer),
		joins:   make(chan *Client),
		leaves:  make(chan *Client),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled, at which point every
// connection is drained and closed.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send) // writePump turns this into a close frame
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.ActiveFeedClients.Set(0)
			h.logger.Info("realtime hub stopped")
			return

		case client := <-h.joins:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := int64(len(h.clients))
			h.mu.Unlock()

			h.totalClients.Add(1)
			if n > h.peakClients.Load() {
				h.peakClients.Store(n)
			}
			metrics.ActiveFeedClients.Set(float64(n))
			h.logger.Info("feed client connected", "connected", n)

		case client := <-h.leaves:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()

			metrics.ActiveFeedClients.Set(float64(n))
			h.logger.Info("feed client disconnected", "connected", n)

		case event := <-h.events:
			h.deliver(event)
		}
	}
}

// deliver pushes event to every matching client, evicting any whose send
// buffer is full. One stalled analyst console must not block the feed.
func (h *Hub) deliver(event *Event) {
	h.totalEvents.Add(1)
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("feed event marshal failed", "error", err)
		return
	}

	var stalled []*Client
	h.mu.RLock()
	for client := range h.clients {
		if !client.subscription().matches(event) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	if len(stalled) == 0 {
		return
	}
	h.mu.Lock()
	for _, client := range stalled {
		if _, ok := h.clients[client]; ok {
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.mu.Unlock()
	h.logger.Warn("evicted stalled feed clients", "count", len(stalled))
}

// Broadcast queues an event, dropping it when the hub itself is backed up.
func (h *Hub) Broadcast(event *Event) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("feed event queue full, dropping event")
	}
}

// TransactionScored implements transactions.EventEmitter. Anything above
// LOW goes out as a flagged event so FlaggedOnly subscribers see it.
func (h *Hub) TransactionScored(tx *transactions.Transaction) {
	eventType := EventScored
	if tx.RiskLevel != transactions.RiskLow {
		eventType = EventFlagged
	}
	h.Broadcast(&Event{Type: eventType, Timestamp: time.Now(), Data: tx})
}

// Stats snapshots the hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	connected := len(h.clients)
	h.mu.RUnlock()

	return Stats{
		ConnectedClients: connected,
		TotalEvents:      h.totalEvents.Load(),
		TotalClients:     h.totalClients.Load(),
		PeakClients:      h.peakClients.Load(),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// HandleWebSocket upgrades the request and attaches the client to the hub
// with the receive-everything default subscription.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		// Run already returned; a client registered now would never be
		// drained on shutdown.
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= MaxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		sub:  Subscription{AllEvents: true},
	}
	h.joins <- client

	go client.writePump()
	go client.readPump()
}

var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

// readPump consumes inbound frames. The only meaningful payload is a
// replacement Subscription; everything else keeps the read deadline fresh.
func (c *Client) readPump() {
	defer func() {
		c.hub.leaves <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var sub Subscription
		if err := json.Unmarshal(message, &sub); err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
		}
	}
}

// writePump flushes the send channel and keeps the connection alive with
// pings. A closed send channel means the hub dropped this client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.logger.Warn("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
