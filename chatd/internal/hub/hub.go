// Package hub provides connection management for WebSocket clients, grouped into conversation rooms.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anshu-sharma0/chatmessage/chatd/internal/metrics"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// ErrClosed is returned when sending to an unregistered connection.
var ErrClosed = errors.New("connection closed")

const sendBufferSize = 256

// Connection represents a single WebSocket connection of an authenticated user.
type Connection struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	closed bool
	rooms  map[string]bool
}

func (c *Connection) trySend(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// InRoom reports whether the connection joined the conversation.
func (c *Connection) InRoom(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[conversationID]
}

// Relay forwards room broadcasts to other service instances.
type Relay interface {
	Publish(ctx context.Context, conversationID string, data []byte) error
}

const relayTimeout = 2 * time.Second

// roomMessage is fanned out to every connection of a room except the origin.
type roomMessage struct {
	ConversationID string
	Data           []byte
	ExceptID       string
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Rooms maps conversation_id to the set of joined connection IDs
	rooms map[string]map[string]bool

	unregister chan *Connection
	broadcast  chan *roomMessage
	done       chan struct{}

	relay   Relay
	metrics *metrics.Metrics
	mu      sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]bool),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *roomMessage, 256),
		done:        make(chan struct{}),
		metrics:     m,
	}
}

// Run starts the hub's main loop. It returns when ctx is done, closing every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, conn := range h.connections {
				conn.close()
				delete(h.connections, id)
			}
			h.rooms = make(map[string]map[string]bool)
			h.mu.Unlock()
			h.metrics.Connections.Set(0)
			h.metrics.Rooms.Set(0)
			return

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	if _, ok := h.connections[conn.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.connections, conn.ID)
	conn.mu.Lock()
	for conversationID := range conn.rooms {
		if members := h.rooms[conversationID]; members != nil {
			delete(members, conn.ID)
			if len(members) == 0 {
				delete(h.rooms, conversationID)
			}
		}
	}
	conn.mu.Unlock()
	rooms := len(h.rooms)
	h.mu.Unlock()

	conn.close()
	h.metrics.Connections.Dec()
	h.metrics.Rooms.Set(float64(rooms))
	glog.V(1).Infof("connection unregistered: %s", conn.ID)
}

func (h *Hub) fanOut(msg *roomMessage) {
	h.mu.RLock()
	var full []*Connection
	for connID := range h.rooms[msg.ConversationID] {
		if connID == msg.ExceptID {
			continue
		}
		conn, ok := h.connections[connID]
		if !ok {
			continue
		}
		if err := conn.trySend(msg.Data); errors.Is(err, ErrBufferFull) {
			full = append(full, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range full {
		glog.Warningf("connection %s buffer full, closing", conn.ID)
		h.metrics.DroppedFrames.Inc()
		h.remove(conn)
	}
}

// NewConnection creates a new connection for userID. It is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn, userID string) *Connection {
	return &Connection{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   ws,
		Send:   make(chan []byte, sendBufferSize),
		rooms:  make(map[string]bool),
	}
}

// Register registers a connection with the hub. The connection can join rooms once it returns.
func (h *Hub) Register(conn *Connection) {
	select {
	case <-h.done:
		conn.close()
		return
	default:
	}
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
	h.metrics.Connections.Inc()
	glog.V(1).Infof("connection registered: %s (user: %s)", conn.ID, conn.UserID)
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Join adds the connection to a conversation room. Joining twice is a no-op.
func (h *Hub) Join(conn *Connection, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}

	conn.mu.Lock()
	conn.rooms[conversationID] = true
	conn.mu.Unlock()

	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[string]bool)
	}
	h.rooms[conversationID][conn.ID] = true
	h.metrics.Rooms.Set(float64(len(h.rooms)))
}

// SetRelay makes Broadcast also publish to other instances. Call it before serving.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Broadcast sends data to every connection in the room except the one with exceptID.
func (h *Hub) Broadcast(conversationID string, data []byte, exceptID string) {
	h.enqueue(&roomMessage{ConversationID: conversationID, Data: data, ExceptID: exceptID})
	if h.relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	if err := h.relay.Publish(ctx, conversationID, data); err != nil {
		glog.Warningf("relay publish to %s failed: %v", conversationID, err)
	}
}

// Deliver fans a frame received from another instance out to the local room.
func (h *Hub) Deliver(conversationID string, data []byte) {
	h.enqueue(&roomMessage{ConversationID: conversationID, Data: data})
}

func (h *Hub) enqueue(msg *roomMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// BroadcastJSON sends a JSON message to the room except the connection with exceptID.
func (h *Hub) BroadcastJSON(conversationID string, v any, exceptID string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(conversationID, data, exceptID)
	return nil
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	return conn.trySend(data)
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// GetRoomCount returns the number of conversations with joined connections.
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// GetRoomSize returns the number of connections joined to a conversation.
func (h *Hub) GetRoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}
