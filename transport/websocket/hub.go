package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Snapshotter hands out a world's snapshot while holding back mutations.
type Snapshotter interface {
	WithSnapshot(ctx context.Context, worldID string, fn func(*protocol.Snapshot) error) error
}

// Client represents a WebSocket client watching one world
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	worldID string
}

type outbound struct {
	worldID string
	data    []byte
}

// Hub maintains the set of active clients and broadcasts world events
type Hub struct {
	// Registered clients by world ID. Written only by Run; mu guards reads
	// from other goroutines.
	worlds map[string]map[*Client]bool
	mu     sync.RWMutex

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	log logrus.FieldLogger
}

// NewHub creates a new WebSocket hub
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logging.Discard()
	}
	return &Hub{
		worlds:     make(map[string]map[*Client]bool),
		broadcast:  make(chan outbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's event loop and blocks until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)

		case <-ctx.Done():
			h.mu.RLock()
			var all []*Client
			for _, clients := range h.worlds {
				for c := range clients {
					all = append(all, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range all {
				h.unregisterClient(c)
			}
			return
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to worldID.
// The first frame the client receives is the world's snapshot.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, worldID string, snapshots Snapshotter) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		worldID: worldID,
	}

	err = snapshots.WithSnapshot(r.Context(), worldID, func(snap *protocol.Snapshot) error {
		data, err := protocol.Encode(*snap)
		if err != nil {
			return err
		}
		client.send <- data
		select {
		case h.register <- client:
			return nil
		case <-h.done:
			return context.Canceled
		}
	})
	if err != nil {
		h.log.WithField("world_id", worldID).WithError(err).Error("failed to subscribe client")
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Broadcast sends msg to every client watching worldID
func (h *Hub) Broadcast(worldID string, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.WithError(err).Error("failed to encode broadcast message")
		return
	}
	select {
	case h.broadcast <- outbound{worldID: worldID, data: data}:
	case <-h.done:
	}
}

// ClientCount returns how many clients watch worldID
func (h *Hub) ClientCount(worldID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.worlds[worldID])
}

// registerClient adds a client to a world
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.worlds[client.worldID] == nil {
		h.worlds[client.worldID] = make(map[*Client]bool)
	}
	h.worlds[client.worldID][client] = true
	n := len(h.worlds[client.worldID])
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"world_id": client.worldID, "clients": n}).Info("client registered")
}

// unregisterClient removes a client from a world
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.worlds[client.worldID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)

	// Clean up empty worlds
	if len(clients) == 0 {
		delete(h.worlds, client.worldID)
	}

	h.log.WithFields(logrus.Fields{"world_id": client.worldID, "clients": len(clients)}).Info("client unregistered")
}

// broadcastMessage sends a message to all clients of a world
func (h *Hub) broadcastMessage(msg outbound) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.worlds[msg.worldID] {
		select {
		case client.send <- msg.data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.log.WithField("world_id", msg.worldID).Warn("dropping slow client")
		h.unregisterClient(client)
	}
}

// readPump discards client input and watches for disconnects
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.WithField("world_id", c.worldID).WithError(err).Warn("websocket error")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection, one
// envelope per frame.
func (c *Client) writePump() {
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
				// The hub closed the channel
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
