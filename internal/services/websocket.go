package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	clientSendBuffer = 256
	writeWait        = 10 * time.Second
)

var errHubStopped = errors.New("event hub stopped")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the router
	},
}

// hubClient is one websocket subscriber.
type hubClient struct {
	userID uint
	conn   *websocket.Conn
	send   chan []byte
}

// Hub streams dispatch events to connected websocket clients. It is an
// EventPublisher, so it can sit next to the broker publisher.
type Hub struct {
	clients    map[*hubClient]bool
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan []byte
	done       chan struct{}
	connected  atomic.Int64
	log        *slog.Logger
}

// NewHub creates a hub. Call Run before serving clients.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:    make(map[*hubClient]bool),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.connected.Add(1)
			h.log.Info("event stream connected", "action", "ws_connect", "user_id", client.userID)

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.log.Info("event stream disconnected", "action", "ws_disconnect", "user_id", client.userID)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.log.Warn("event stream client too slow, dropping", "action", "ws_broadcast", "user_id", client.userID)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *hubClient) {
	delete(h.clients, client)
	close(client.send)
	h.connected.Add(-1)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// Publish sends the event to every connected client.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return errHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve upgrades the request and streams events to it until either side closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "action", "ws_connect", "error", err)
		return
	}

	client := &hubClient{userID: userID, conn: conn, send: make(chan []byte, clientSendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

// readPump discards inbound frames; it exists to notice the peer going away.
func (h *Hub) readPump(c *hubClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "action", "ws_read", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.Warn("websocket write error", "action", "ws_write", "user_id", c.userID, "error", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
