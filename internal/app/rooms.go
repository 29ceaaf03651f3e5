package app

import (
	"sync"

	"github.com/ovrk/babel/internal/domain"
)

type RoomInfo struct {
	Name      domain.RoomName `json:"name"`
	Listeners int             `json:"listener_count"`
	Live      bool            `json:"live"`
}

// RoomManager is the in-memory room set. Rooms appear on first join and are
// evicted once empty.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomName]*Room)}
}

func (m *RoomManager) GetOrCreate(name domain.RoomName) *Room {
	m.mu.RLock()
	room, ok := m.rooms[name]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[name]; ok {
		return room
	}
	room = NewRoom(name)
	m.rooms[name] = room
	return room
}

// Peek returns the room without creating it.
func (m *RoomManager) Peek(name domain.RoomName) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	return room, ok
}

func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for name, r := range m.rooms {
		out = append(out, RoomInfo{
			Name:      name,
			Listeners: r.ListenerCount(),
			Live:      r.Speaker() != "",
		})
	}
	return out
}

// Evict drops the room if it is still empty. A concurrent join wins.
func (m *RoomManager) Evict(name domain.RoomName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[name]; ok && room.Empty() {
		delete(m.rooms, name)
	}
}
