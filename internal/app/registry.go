package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

type connEntry struct {
	Conn   core.SignalConnection
	Room   domain.RoomName
	Cancel context.CancelFunc
}

// Registry maps connection ids to their transport endpoint and room.
// It holds non-owning references only; the adapter closes the socket.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnectionID]*connEntry)}
}

func (r *Registry) Bind(id domain.ConnectionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("cid", string(id)).Msg("bound connection")
}

func (r *Registry) Conn(id domain.ConnectionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (r *Registry) SetRoom(id domain.ConnectionID, room domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.Room = room
	return true
}

func (r *Registry) RoomOf(id domain.ConnectionID) (domain.RoomName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// Unbind removes the connection, cancels its context and reports whether it
// was still bound. The bool lets disconnect handling run exactly once under
// races.
func (r *Registry) Unbind(id domain.ConnectionID) bool {
	r.mu.Lock()
	e, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	r.mu.Unlock()
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("cid", string(id)).Msg("unbound connection")
	return true
}
