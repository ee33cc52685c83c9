// Package protocol defines the websocket message envelope.
package protocol

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	MsgConnected MessageType = "connected"
	MsgError     MessageType = "error"
	MsgPing      MessageType = "ping"
	MsgPong      MessageType = "pong"

	MsgJoinRoom   MessageType = "join_room"
	MsgLeaveRoom  MessageType = "leave_room"
	MsgRoomJoined MessageType = "room_joined"
	MsgRoomLeft   MessageType = "room_left"

	MsgLeaderboardUpdated MessageType = "leaderboard.updated"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type ConnectedPayload struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type RoomJoinedPayload struct {
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
}

type RoomLeftPayload struct {
	RoomID string `json:"roomId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewMessage(t MessageType, payload interface{}) (*Message, error) {
	return NewMessageWithRequestID(t, payload, "")
}

func NewMessageWithRequestID(t MessageType, payload interface{}, requestID string) (*Message, error) {
	msg := &Message{Type: t, RequestID: requestID, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}
	return msg, nil
}

func NewErrorMessage(code, message, requestID string) (*Message, error) {
	return NewMessageWithRequestID(MsgError, ErrorPayload{Code: code, Message: message}, requestID)
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *Message) ToBytes() ([]byte, error) {
	return json.Marshal(m)
}
