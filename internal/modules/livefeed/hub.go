package livefeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tablebooking/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
	sendBuffer = 64
)

const EventSlotChanged = "slot_changed"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SlotChange describes a booking that started or stopped holding a slot.
type SlotChange struct {
	BookingID      int64                `json:"booking_id"`
	TableID        int64                `json:"table_id"`
	PartnerTableID *int64               `json:"partner_table_id,omitempty"`
	Date           domain.Date          `json:"date"`
	Time           string               `json:"time"`
	Status         domain.BookingStatus `json:"status"`
}

// Event is pushed to every client subscribed to the event's date.
type Event struct {
	Type    string      `json:"type"`
	Date    string      `json:"date"`
	Payload interface{} `json:"payload,omitempty"`
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	dates map[string]bool
}

// Hub fans booking slot changes out to websocket subscribers by date.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zerolog.Logger
}

func NewHub(log *zerolog.Logger) *Hub {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SlotChanged implements the booking notifier.
func (h *Hub) SlotChanged(change SlotChange) {
	h.Broadcast(&Event{Type: EventSlotChanged, Date: change.Date.String(), Payload: change})
}

// Broadcast sends event to clients subscribed to its date. Slow clients are skipped.
func (h *Hub) Broadcast(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("type", event.Type).Msg("marshal live event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.dates[event.Date] {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Debug().Str("date", event.Date).Msg("live client too slow, event dropped")
		}
	}
}

// Serve runs the read and write loops for conn until it disconnects.
func (h *Hub) Serve(conn *websocket.Conn, initialDates []string) {
	c := &client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		dates: make(map[string]bool),
	}
	for _, d := range initialDates {
		c.dates[d] = true
	}

	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("live client disconnected")
			}
			return
		}

		var req struct {
			Type string `json:"type"`
			Date string `json:"date"`
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		date, err := domain.ParseDate(req.Date)
		if err != nil {
			continue
		}
		key := date.String()

		switch req.Type {
		case "subscribe":
			h.mu.Lock()
			c.dates[key] = true
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			delete(c.dates, key)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
