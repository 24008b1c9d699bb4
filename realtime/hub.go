// Package realtime pushes order changes to the owner's open websocket
// connections, so order screens refresh without polling.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is the message written to subscribers.
type Event struct {
	Type    string      `json:"type"`
	OrderID string      `json:"order_id"`
	Payload interface{} `json:"payload"`
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks websocket connections per user.
type Hub struct {
	mu      sync.Mutex
	clients map[primitive.ObjectID]map[*conn]struct{}
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[primitive.ObjectID]map[*conn]struct{}),
		log:     log,
	}
}

func (h *Hub) add(userID primitive.ObjectID, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*conn]struct{})
	}
	h.clients[userID][c] = struct{}{}
}

func (h *Hub) remove(userID primitive.ObjectID, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[userID], c)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID primitive.ObjectID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// ServeWS upgrades the request and blocks until the client goes away.
// Incoming messages are read and discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &conn{ws: ws}
	h.add(userID, c)
	defer func() {
		h.remove(userID, c)
		ws.Close()
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends ev to every connection of userID. Failed writes are logged
// and the connection is dropped.
func (h *Hub) Publish(userID primitive.ObjectID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode websocket event", zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make([]*conn, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket write failed", zap.String("user_id", userID.Hex()), zap.Error(err))
			h.remove(userID, c)
			c.ws.Close()
		}
	}
}
