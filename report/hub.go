package report

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/journal"
	"github.com/airchains-network/dualledger-harness/waiter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Event is a message pushed to websocket clients.
type Event struct {
	Type      string                   `json:"type"`
	Operation *waiter.PendingOperation `json:"operation,omitempty"`
	Result    *journal.Result          `json:"result,omitempty"`
}

// wsClient represents a connected WebSocket client
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	log  *logrus.Logger
}

// Hub fans out operation transitions and scenario results to WebSocket clients. It implements
// waiter.Recorder.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	count      atomic.Int64
	log        *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.count.Store(0)
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.log.Infof("New WebSocket client connected. Total clients: %d", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.count.Store(int64(len(h.clients)))
				h.log.Infof("WebSocket client disconnected. Total clients: %d", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					h.count.Store(int64(len(h.clients)))
				}
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

func (h *Hub) publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warnf("Dropping %s event, broadcast queue full", ev.Type)
	}
	return nil
}

func (h *Hub) RecordOperation(op waiter.PendingOperation) error {
	return h.publish(Event{Type: "operation", Operation: &op})
}

// PublishResult pushes a finished scenario result.
func (h *Hub) PublishResult(r journal.Result) error {
	return h.publish(Event{Type: "result", Result: &r})
}

// readPump drains the connection so control frames are processed
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
