package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64

	// One room per duration partition is all a watcher needs.
	maxRoomsPerClient = 8
)

// Client is one websocket connection. Leaderboard watchers only send small
// control messages, so reads are capped tightly.
type Client struct {
	ID     string
	UserID string
	Hub    *Hub

	Conn *websocket.Conn
	Send chan []byte

	rooms       map[string]bool
	closed      bool
	mu          sync.RWMutex
	connectedAt time.Time

	logger zerolog.Logger
}

func NewClient(id, userID string, conn *websocket.Conn, hub *Hub, logger zerolog.Logger) *Client {
	return &Client{
		ID:          id,
		UserID:      userID,
		Hub:         hub,
		Conn:        conn,
		Send:        make(chan []byte, sendBuffer),
		rooms:       make(map[string]bool),
		connectedAt: time.Now(),
		logger:      logger.With().Str("clientId", id).Str("userId", userID).Logger(),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		c.Hub.ProcessMessage(c, message)
	}
}

// WritePump sends one JSON message per frame and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data without blocking. open is false once the client has
// been unregistered.
func (c *Client) trySend(data []byte) (sent, open bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false, false
	}
	select {
	case c.Send <- data:
		return true, true
	default:
		return false, true
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// JoinRoom reports false when the client already watches the maximum
// number of rooms. Rejoining a room is always allowed.
func (c *Client) JoinRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.rooms[roomID] && len(c.rooms) >= maxRoomsPerClient {
		return false
	}
	c.rooms[roomID] = true
	return true
}

func (c *Client) LeaveRoom(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
