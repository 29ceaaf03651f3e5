package app

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/domain"
	"github.com/ovrk/babel/internal/metrics"
)

// Relay routes WebRTC signaling between one broadcaster and its watchers.
// It is process-scoped and fully decoupled from the transcription rooms: the
// two never share locks. Messages to peers that are gone are dropped
// silently; the peer already tore down.
type Relay struct {
	Registry *Registry
	Metrics  *metrics.Metrics

	mu          sync.Mutex
	broadcaster domain.ConnectionID
	watchers    map[domain.ConnectionID]struct{}
}

func NewRelay(reg *Registry, m *metrics.Metrics) *Relay {
	return &Relay{
		Registry: reg,
		Metrics:  m,
		watchers: make(map[domain.ConnectionID]struct{}),
	}
}

// RegisterBroadcaster takes the broadcaster slot, last writer wins. Unlike
// the speaker slot there is no conflict check: the topology assumes a single
// trusted broadcaster. Watchers are told so they can (re)request streams.
func (r *Relay) RegisterBroadcaster(id domain.ConnectionID) {
	r.mu.Lock()
	r.broadcaster = id
	watchers := r.watcherSnapshot()
	r.mu.Unlock()

	log.Info().Str("module", "app.relay").Str("cid", string(id)).Str("role", domain.RoleBroadcaster.String()).Msg("broadcaster registered")
	for _, w := range watchers {
		if conn, ok := r.Registry.Conn(w); ok {
			send(conn, peerMsg{Type: "broadcaster", ID: id})
		}
	}
}

// RegisterWatcher adds a watcher and notifies the broadcaster, which answers
// with an offer addressed to the watcher's id.
func (r *Relay) RegisterWatcher(id domain.ConnectionID) {
	r.mu.Lock()
	r.watchers[id] = struct{}{}
	b := r.broadcaster
	r.mu.Unlock()

	log.Info().Str("module", "app.relay").Str("cid", string(id)).Str("role", domain.RoleWatcher.String()).Msg("watcher registered")
	if b == "" {
		return
	}
	if conn, ok := r.Registry.Conn(b); ok {
		send(conn, peerMsg{Type: "watcher", ID: id})
	}
}

func (r *Relay) ForwardOffer(from, to domain.ConnectionID, sd webrtc.SessionDescription) {
	r.forwardSDP("offer", from, to, sd)
}

func (r *Relay) ForwardAnswer(from, to domain.ConnectionID, sd webrtc.SessionDescription) {
	r.forwardSDP("answer", from, to, sd)
}

func (r *Relay) forwardSDP(kind string, from, to domain.ConnectionID, sd webrtc.SessionDescription) {
	conn, ok := r.Registry.Conn(to)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("kind", kind).Str("to", string(to)).Msg("target gone, dropped")
		return
	}
	r.Metrics.SignalsRelayed.WithLabelValues(kind).Inc()
	send(conn, sdpMsg{Type: kind, From: from, SDP: sd.SDP})
}

func (r *Relay) ForwardCandidate(from, to domain.ConnectionID, ci webrtc.ICECandidateInit) {
	conn, ok := r.Registry.Conn(to)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("to", string(to)).Msg("candidate target gone, dropped")
		return
	}
	r.Metrics.SignalsRelayed.WithLabelValues("candidate").Inc()
	send(conn, candidateMsg{Type: "candidate", From: from, Candidate: ci})
}

// OnDisconnect drops the peer. A leaving broadcaster is announced to every
// watcher so they can tear down their peer connections; watchers leave
// without any broadcast, they are independent of each other.
func (r *Relay) OnDisconnect(id domain.ConnectionID) {
	r.mu.Lock()
	wasBroadcaster := r.broadcaster == id
	if wasBroadcaster {
		r.broadcaster = ""
	}
	delete(r.watchers, id)
	watchers := r.watcherSnapshot()
	r.mu.Unlock()

	if !wasBroadcaster {
		return
	}
	log.Info().Str("module", "app.relay").Str("cid", string(id)).Msg("broadcaster disconnected")
	for _, w := range watchers {
		if conn, ok := r.Registry.Conn(w); ok {
			send(conn, peerMsg{Type: "disconnectPeer", ID: id})
		}
	}
}

func (r *Relay) Broadcaster() domain.ConnectionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcaster
}

// caller holds r.mu
func (r *Relay) watcherSnapshot() []domain.ConnectionID {
	out := make([]domain.ConnectionID, 0, len(r.watchers))
	for w := range r.watchers {
		out = append(out, w)
	}
	return out
}
