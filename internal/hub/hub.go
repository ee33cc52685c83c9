// Package hub keeps live websocket clients and the leaderboard rooms they
// watch.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/leaderboard"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	redisclient "github.com/CDeX-Labs/CDeX-Typing-Service/internal/redis"
	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/events"
	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/protocol"
)

// RoomPublisher forwards room messages to other instances.
type RoomPublisher interface {
	PublishToRoom(ctx context.Context, roomID string, msg *protocol.Message) error
}

type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool
	Register    chan *Client
	Unregister  chan *Client
	done        chan struct{}
	mu          sync.RWMutex
	rooms       *RoomManager
	allowRoom   func(roomID string) bool
	publisher   RoomPublisher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewHub creates a hub. allowRoom decides which rooms clients may join; nil
// allows any leaderboard room.
func NewHub(allowRoom func(string) bool, m *metrics.Metrics, logger zerolog.Logger) *Hub {
	if allowRoom == nil {
		allowRoom = func(id string) bool {
			_, ok := ParseLeaderboardRoom(id)
			return ok
		}
	}
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		done:        make(chan struct{}),
		rooms:       NewRoomManager(),
		allowRoom:   allowRoom,
		metrics:     m,
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) SetPublisher(p RoomPublisher) { h.publisher = p }

// Run serves registrations until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

// Add hands client to Run. It reports false once the hub has stopped.
func (h *Hub) Add(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Remove hands client to Run, or drops it directly once Run has returned.
func (h *Hub) Remove(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
		h.unregisterClient(client)
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregisterClient(c)
	}
	h.logger.Info().Int("clients", len(clients)).Msg("Hub stopped")
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true
	h.metrics.IncConnections()

	h.logger.Info().
		Str("clientId", client.ID).
		Str("userId", client.UserID).
		Int("totalClients", len(h.clients)).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	h.rooms.LeaveAllRooms(client)

	delete(h.clients, client)
	client.close()
	h.metrics.DecConnections()

	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	h.logger.Info().
		Str("clientId", client.ID).
		Str("userId", client.UserID).
		Dur("connectedFor", time.Since(client.connectedAt)).
		Int("totalClients", len(h.clients)).
		Msg("Client unregistered")
}

func (h *Hub) ProcessMessage(client *Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Debug().Err(err).Str("clientId", client.ID).Msg("Failed to parse message")
		h.sendError(client, "PARSE_ERROR", "Invalid message format", "")
		return
	}

	switch msg.Type {
	case protocol.MsgJoinRoom:
		h.handleJoinRoom(client, msg)
	case protocol.MsgLeaveRoom:
		h.handleLeaveRoom(client, msg)
	case protocol.MsgPing:
		h.handlePing(client, msg)
	default:
		h.sendError(client, "UNKNOWN_TYPE", "Unknown message type", msg.RequestID)
	}
}

func (h *Hub) handleJoinRoom(client *Client, msg *protocol.Message) {
	var payload protocol.JoinRoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid join room payload", msg.RequestID)
		return
	}

	if !h.allowRoom(payload.RoomID) {
		h.sendError(client, "INVALID_ROOM", "Unknown room", msg.RequestID)
		return
	}

	room, ok := h.rooms.JoinRoom(payload.RoomID, client)
	if !ok {
		h.sendError(client, "TOO_MANY_ROOMS", "Room limit reached", msg.RequestID)
		return
	}

	h.logger.Debug().
		Str("clientId", client.ID).
		Str("roomId", payload.RoomID).
		Int("memberCount", room.ClientCount()).
		Msg("Client joined room")

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{
		RoomID:      payload.RoomID,
		MemberCount: room.ClientCount(),
	}, msg.RequestID)

	h.SendToClient(client, response)
}

func (h *Hub) handleLeaveRoom(client *Client, msg *protocol.Message) {
	var payload protocol.LeaveRoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid leave room payload", msg.RequestID)
		return
	}

	h.rooms.LeaveRoom(payload.RoomID, client)

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgRoomLeft, protocol.RoomLeftPayload{
		RoomID: payload.RoomID,
	}, msg.RequestID)

	h.SendToClient(client, response)
}

func (h *Hub) handlePing(client *Client, msg *protocol.Message) {
	response, _ := protocol.NewMessageWithRequestID(protocol.MsgPong, nil, msg.RequestID)
	h.SendToClient(client, response)
}

// SendToClient drops the client when its buffer is full.
func (h *Hub) SendToClient(client *Client, msg *protocol.Message) {
	data, err := msg.ToBytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize message")
		return
	}

	if sent, open := client.trySend(data); open && !sent {
		h.logger.Warn().Str("clientId", client.ID).Msg("Client send buffer full, disconnecting")
		go h.Remove(client)
	}
}

// SendToRoom delivers to this instance's members of roomID. Slow clients
// miss the message.
func (h *Hub) SendToRoom(roomID string, msg *protocol.Message) {
	room := h.rooms.GetRoom(roomID)
	if room == nil {
		return
	}

	data, err := msg.ToBytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize message")
		return
	}

	for _, client := range room.GetClients() {
		client.trySend(data)
	}
}

// LeaderboardUpdated pushes a new entry to the duration's room here and on
// every other instance.
func (h *Hub) LeaderboardUpdated(ctx context.Context, duration int, e leaderboard.Entry) {
	msg, err := protocol.NewMessage(protocol.MsgLeaderboardUpdated, events.LeaderboardUpdatedEvent{
		Duration:    duration,
		ResultID:    e.ID,
		PlayerID:    e.PlayerID,
		DisplayName: e.DisplayName,
		WPM:         e.WPM,
		Accuracy:    e.Accuracy,
		Timestamp:   e.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build leaderboard update")
		return
	}

	roomID := LeaderboardRoom(duration)
	h.SendToRoom(roomID, msg)

	if h.publisher != nil {
		if err := h.publisher.PublishToRoom(ctx, roomID, msg); err != nil {
			h.logger.Warn().Err(err).Str("roomId", roomID).Msg("Failed to fan out leaderboard update")
		}
	}
}

// HandleRemote delivers a message published by another instance.
func (h *Hub) HandleRemote(envelope *redisclient.PubSubEnvelope) {
	if envelope.TargetRoom == "" || envelope.Message == nil {
		return
	}
	h.SendToRoom(envelope.TargetRoom, envelope.Message)
}

func (h *Hub) sendError(client *Client, code, message, requestID string) {
	errMsg, _ := protocol.NewErrorMessage(code, message, requestID)
	h.SendToClient(client, errMsg)
}

func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"totalClients": len(h.clients),
		"totalUsers":   len(h.userClients),
		"rooms":        h.rooms.GetStats(),
	}
}
