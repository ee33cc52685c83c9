package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

func NewWebSocketHandler(h *hub.Hub, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    h,
		logger: logger.With().Str("component", "ws-handler").Logger(),
	}
}

// ServeHTTP upgrades GET /v1/ws. Clients then join leaderboard:{duration}
// rooms to receive live updates.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID := uuid.New().String()
	userID := claims.GetPlayerID()

	client := hub.NewClient(clientID, userID, conn, h.hub, h.logger)

	// Queued before registering so it is always the first frame.
	connectedMsg, _ := protocol.NewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		UserID:       userID,
		ConnectionID: clientID,
	})
	if data, err := connectedMsg.ToBytes(); err == nil {
		client.Send <- data
	}
	if !h.hub.Add(client) {
		conn.Close()
		return
	}

	h.logger.Info().
		Str("clientId", clientID).
		Str("userId", userID).
		Str("remoteAddr", r.RemoteAddr).
		Msg("WebSocket connection established")

	go client.WritePump()
	go client.ReadPump()
}
