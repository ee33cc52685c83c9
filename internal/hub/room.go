package hub

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

type RoomType string

const (
	RoomTypeLeaderboard RoomType = "leaderboard"
	RoomTypeUnknown     RoomType = "unknown"
)

type Room struct {
	ID        string
	Type      RoomType
	CreatedAt time.Time

	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		Type:      ParseRoomType(id),
		CreatedAt: time.Now(),
		clients:   make(map[*Client]bool),
	}
}

func ParseRoomType(roomID string) RoomType {
	prefix, _, ok := strings.Cut(roomID, ":")
	if ok && prefix == string(RoomTypeLeaderboard) {
		return RoomTypeLeaderboard
	}
	return RoomTypeUnknown
}

// LeaderboardRoom is the room receiving updates for one duration partition.
func LeaderboardRoom(duration int) string {
	return fmt.Sprintf("%s:%d", RoomTypeLeaderboard, duration)
}

// ParseLeaderboardRoom extracts the duration from a leaderboard room id.
func ParseLeaderboardRoom(roomID string) (int, bool) {
	prefix, rest, ok := strings.Cut(roomID, ":")
	if !ok || prefix != string(RoomTypeLeaderboard) {
		return 0, false
	}
	d, err := strconv.Atoi(rest)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func (r *Room) AddClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client] = true
}

func (r *Room) RemoveClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, client)
}

func (r *Room) GetClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Room) IsEmpty() bool {
	return r.ClientCount() == 0
}

type RoomManager struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
	}
}

func (rm *RoomManager) GetOrCreateRoom(roomID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, exists := rm.rooms[roomID]; exists {
		return room
	}

	room := NewRoom(roomID)
	rm.rooms[roomID] = room
	return room
}

func (rm *RoomManager) GetRoom(roomID string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[roomID]
}

func (rm *RoomManager) removeIfEmpty(roomID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[roomID]; ok && room.IsEmpty() {
		delete(rm.rooms, roomID)
	}
}

// JoinRoom returns false when the client is at its room limit.
func (rm *RoomManager) JoinRoom(roomID string, client *Client) (*Room, bool) {
	if !client.JoinRoom(roomID) {
		return nil, false
	}
	room := rm.GetOrCreateRoom(roomID)
	room.AddClient(client)
	return room, true
}

func (rm *RoomManager) LeaveRoom(roomID string, client *Client) {
	room := rm.GetRoom(roomID)
	if room == nil {
		return
	}
	room.RemoveClient(client)
	client.LeaveRoom(roomID)
	rm.removeIfEmpty(roomID)
}

func (rm *RoomManager) LeaveAllRooms(client *Client) {
	for _, roomID := range client.Rooms() {
		rm.LeaveRoom(roomID, client)
	}
}

func (rm *RoomManager) GetStats() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	members := make(map[string]int, len(rm.rooms))
	for id, room := range rm.rooms {
		members[id] = room.ClientCount()
	}

	return map[string]interface{}{
		"totalRooms": len(rm.rooms),
		"members":    members,
	}
}
