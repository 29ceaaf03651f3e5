package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

// turn holds the resources of one active speaker turn. stop is the single
// cleanup routine shared by explicit stop, disconnect and backend
// termination; the Once makes all paths converge without double-stopping.
type turn struct {
	speaker     domain.ConnectionID
	sourceLang  domain.Lang
	transcriber core.Transcriber
	// capture is set only after the turn's own process started; stopping it
	// can never reach a process belonging to another turn.
	capture core.CaptureStream
	cancel  context.CancelFunc
	once    sync.Once
}

func (t *turn) stop() {
	t.once.Do(func() {
		if t.capture != nil {
			t.capture.Stop()
		}
		if t.transcriber != nil {
			t.transcriber.Close()
		}
		if t.cancel != nil {
			t.cancel()
		}
		log.Info().Str("module", "app.room").Str("cid", string(t.speaker)).Msg("speaker turn stopped")
	})
}

// Room owns the per-room state: the single speaker slot, the listener set
// with target languages, and the in-memory transcript of the current turn.
// All slot transitions are serialized on mu.
type Room struct {
	name domain.RoomName

	mu         sync.Mutex
	speaker    domain.ConnectionID
	turn       *turn
	listeners  map[domain.ConnectionID]domain.Lang
	transcript []domain.TranscriptSegment
}

func NewRoom(name domain.RoomName) *Room {
	return &Room{
		name:      name,
		listeners: make(map[domain.ConnectionID]domain.Lang),
	}
}

func (r *Room) Name() domain.RoomName { return r.name }

// ReserveSpeaker claims the slot without starting anything. The caller opens
// the backend outside the lock and then calls AttachTurn; a failed open rolls
// back with ReleaseSpeaker.
func (r *Room) ReserveSpeaker(id domain.ConnectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.speaker != "" {
		return core.ErrRoleConflict
	}
	r.speaker = id
	return nil
}

// AttachTurn binds the opened pipeline to the slot. Returns false when id
// lost the slot while the backend was connecting (e.g. it disconnected);
// the caller must stop the turn itself in that case.
func (r *Room) AttachTurn(id domain.ConnectionID, t *turn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.speaker != id {
		return false
	}
	r.turn = t
	return true
}

// ReleaseSpeaker clears the slot and the turn transcript if id holds it, and
// returns the turn for the caller to stop outside the lock. Idempotent: a
// second call, or a call by a non-speaker, returns nil.
func (r *Room) ReleaseSpeaker(id domain.ConnectionID) *turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.speaker != id {
		return nil
	}
	t := r.turn
	r.speaker = ""
	r.turn = nil
	r.transcript = nil
	return t
}

func (r *Room) Speaker() domain.ConnectionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaker
}

// CurrentTurn returns the live turn only if id is the recognized speaker.
func (r *Room) CurrentTurn(id domain.ConnectionID) *turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.speaker != id {
		return nil
	}
	return r.turn
}

func (r *Room) AddListener(id domain.ConnectionID, lang domain.Lang) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[id] = lang
	log.Info().Str("module", "app.room").Str("room", string(r.name)).Str("cid", string(id)).Msg("listener added")
}

func (r *Room) RemoveListener(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, id)
}

func (r *Room) SetListenerLang(id domain.ConnectionID, lang domain.Lang) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[id]; !ok {
		return false
	}
	r.listeners[id] = lang
	return true
}

// Listeners returns a snapshot; fanout iterates it without holding the lock.
func (r *Room) Listeners() map[domain.ConnectionID]domain.Lang {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.ConnectionID]domain.Lang, len(r.listeners))
	for id, lang := range r.listeners {
		out[id] = lang
	}
	return out
}

// AppendFinal records a final segment in the turn log. Returns false when id
// is no longer the speaker (turn already released); late finals are then
// flushed to the speaker only, never fanned out.
func (r *Room) AppendFinal(id domain.ConnectionID, seg domain.TranscriptSegment) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.speaker != id {
		return false
	}
	r.transcript = append(r.transcript, seg)
	return true
}

func (r *Room) Transcript() []domain.TranscriptSegment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TranscriptSegment, len(r.transcript))
	copy(out, r.transcript)
	return out
}

func (r *Room) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaker == "" && len(r.listeners) == 0
}
