package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
	"github.com/ovrk/babel/internal/metrics"
	"github.com/ovrk/babel/internal/pipeline"
)

var ErrNotInRoom = errors.New("connection not in a room")

// Coordinator arbitrates the per-room speaker slot, owns the transcription
// pipeline of the active turn and fans transcript output out to listeners.
// Slot transitions are serialized by the Room; backend calls never run under
// a room lock.
type Coordinator struct {
	Registry *Registry
	Rooms    *RoomManager
	STT      core.TranscriberFactory
	Pipe     *pipeline.Pipeline
	Metrics  *metrics.Metrics

	// Recorder is the optional local capture source. Nil when audio comes
	// exclusively from client audio-data frames.
	Recorder core.Recorder

	DefaultSourceLang domain.Lang
}

// Join adds the connection to a room as a (language-less) listener.
// Joining again moves the connection and releases any role held previously.
func (c *Coordinator) Join(id domain.ConnectionID, name domain.RoomName) {
	if prev, ok := c.Registry.RoomOf(id); ok && prev != name {
		c.leaveRoom(id, prev)
	}
	room := c.Rooms.GetOrCreate(name)
	room.AddListener(id, "")
	c.Registry.SetRoom(id, name)
	log.Info().Str("module", "app.coordinator").Str("cid", string(id)).Str("room", string(name)).Msg("joined room")
}

// RequestSpeaker claims the room's speaker slot and starts the transcription
// pipeline. The slot is reserved first and the backend dialed outside the
// room lock; failure rolls the reservation back with no side effects.
func (c *Coordinator) RequestSpeaker(ctx context.Context, id domain.ConnectionID, sourceLang domain.Lang) error {
	name, ok := c.Registry.RoomOf(id)
	if !ok {
		return ErrNotInRoom
	}
	if sourceLang == "" {
		sourceLang = c.DefaultSourceLang
	}
	room := c.Rooms.GetOrCreate(name)

	if err := room.ReserveSpeaker(id); err != nil {
		c.Metrics.RoleConflicts.Inc()
		log.Info().Str("module", "app.coordinator").Str("cid", string(id)).Str("room", string(name)).Msg("speaker request rejected")
		return err
	}

	tr, err := c.STT.Open(ctx, sourceLang)
	if err != nil {
		room.ReleaseSpeaker(id)
		return fmt.Errorf("open transcription: %w", err)
	}

	turnCtx, cancel := context.WithCancel(context.Background())
	t := &turn{
		speaker:     id,
		sourceLang:  sourceLang,
		transcriber: tr,
		cancel:      cancel,
	}

	if c.Recorder != nil {
		stream, err := c.Recorder.Start(turnCtx)
		if err != nil {
			// Capture is a convenience source; the client can still push
			// audio-data frames, so the turn survives with no capture handle.
			log.Warn().Err(err).Str("module", "app.coordinator").Msg("local capture failed to start")
		} else {
			t.capture = stream
		}
	}

	if !room.AttachTurn(id, t) {
		// Lost the slot while dialing (disconnect race). Tear down quietly.
		t.stop()
		return fmt.Errorf("speaker released during setup")
	}

	c.Metrics.SpeakerGrants.Inc()
	c.Metrics.ActiveSpeakers.Inc()
	log.Info().Str("module", "app.coordinator").Str("cid", string(id)).Str("room", string(name)).Str("role", domain.RoleSpeaker.String()).Str("lang", string(sourceLang)).Msg("speaker granted")

	go c.pumpSegments(room, t)
	if t.capture != nil {
		go c.pumpCapture(room, t, t.capture)
	}

	if conn, ok := c.Registry.Conn(id); ok {
		send(conn, streamStartedMsg{Type: "stream-started"})
	}
	return nil
}

// ReleaseSpeaker is the explicit stop path. Idempotent; a non-speaker caller
// is a no-op.
func (c *Coordinator) ReleaseSpeaker(id domain.ConnectionID) {
	name, ok := c.Registry.RoomOf(id)
	if !ok {
		return
	}
	if room, ok := c.Rooms.Peek(name); ok {
		c.releaseSpeaker(room, id)
	}
}

// releaseSpeaker is the one cleanup routine shared by stop-stream, disconnect,
// backend termination and capture exit.
func (c *Coordinator) releaseSpeaker(room *Room, id domain.ConnectionID) {
	t := room.ReleaseSpeaker(id)
	if t == nil {
		return
	}
	t.stop()
	c.Metrics.ActiveSpeakers.Dec()
	if conn, ok := c.Registry.Conn(id); ok {
		send(conn, streamStoppedMsg{Type: "stream-stopped"})
	}
	log.Info().Str("module", "app.coordinator").Str("cid", string(id)).Str("room", string(room.Name())).Msg("speaker released")
}

// OnAudioChunk feeds one chunk into the live transcription. Chunks from
// anyone but the recognized speaker are dropped silently; stale senders are
// an expected race, not an error.
func (c *Coordinator) OnAudioChunk(id domain.ConnectionID, data []byte) {
	name, ok := c.Registry.RoomOf(id)
	if !ok {
		c.Metrics.DroppedAudio.Inc()
		return
	}
	room, ok := c.Rooms.Peek(name)
	if !ok {
		c.Metrics.DroppedAudio.Inc()
		return
	}
	t := room.CurrentTurn(id)
	if t == nil {
		c.Metrics.DroppedAudio.Inc()
		log.Debug().Str("module", "app.coordinator").Str("cid", string(id)).Msg("audio from non-speaker dropped")
		return
	}
	if err := t.transcriber.Write(data); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Msg("transcriber write failed")
	}
}

// SetListenerLang updates the listener's target language. Past segments are
// not re-translated.
func (c *Coordinator) SetListenerLang(id domain.ConnectionID, lang domain.Lang) bool {
	name, ok := c.Registry.RoomOf(id)
	if !ok {
		return false
	}
	room, ok := c.Rooms.Peek(name)
	if !ok {
		return false
	}
	if !room.SetListenerLang(id, lang) {
		return false
	}
	log.Info().Str("module", "app.coordinator").Str("cid", string(id)).Str("lang", string(lang)).Msg("listener language set")
	return true
}

// OnDisconnect releases whatever the connection held. Runs its effects
// exactly once even when racing stop-stream or a duplicate disconnect; the
// Unbind result is the gate.
func (c *Coordinator) OnDisconnect(id domain.ConnectionID) {
	name, inRoom := c.Registry.RoomOf(id)
	if !c.Registry.Unbind(id) {
		return
	}
	if !inRoom {
		return
	}
	if room, ok := c.Rooms.Peek(name); ok {
		c.releaseSpeaker(room, id)
		room.RemoveListener(id)
		if room.Empty() {
			c.Rooms.Evict(name)
		}
	}
}

func (c *Coordinator) leaveRoom(id domain.ConnectionID, name domain.RoomName) {
	if room, ok := c.Rooms.Peek(name); ok {
		c.releaseSpeaker(room, id)
		room.RemoveListener(id)
		if room.Empty() {
			c.Rooms.Evict(name)
		}
	}
}

// pumpSegments drains the transcript stream for the turn's lifetime. When the
// backend ends the sequence on its own, that is an implicit stop.
func (c *Coordinator) pumpSegments(room *Room, t *turn) {
	for seg := range t.transcriber.Segments() {
		c.onSegment(room, t, seg)
	}
	c.releaseSpeaker(room, t.speaker)
}

func (c *Coordinator) onSegment(room *Room, t *turn, seg domain.TranscriptSegment) {
	speakerConn, speakerOnline := c.Registry.Conn(t.speaker)

	if !seg.IsFinal {
		c.Metrics.SegmentsTotal.WithLabelValues("partial").Inc()
		// Live preview for the speaker only; partials are never translated.
		if speakerOnline {
			send(speakerConn, speakerTranscriptionMsg{
				Type:       "speaker-transcription",
				Transcript: seg.Text,
				Speaker:    seg.Speaker,
			})
		}
		return
	}

	c.Metrics.SegmentsTotal.WithLabelValues("final").Inc()
	appended := room.AppendFinal(t.speaker, seg)

	if speakerOnline {
		send(speakerConn, speakerTranscriptionMsg{
			Type:       "speaker-transcription",
			Transcript: seg.Text,
			Speaker:    seg.Speaker,
			IsFinal:    true,
		})
	}

	// Turn already released: the final was flushed to the speaker above but
	// is not fanned out anymore.
	if !appended {
		return
	}

	for lid, lang := range room.Listeners() {
		if lid == t.speaker || lang == "" {
			continue
		}
		go c.runJob(seg, t.sourceLang, lid, lang)
	}
}

// runJob is one (segment, listener) translation. Failures stay isolated here.
func (c *Coordinator) runJob(seg domain.TranscriptSegment, source domain.Lang, lid domain.ConnectionID, target domain.Lang) {
	utt, err := c.Pipe.Run(context.Background(), seg, source, target)
	if err != nil {
		if errors.Is(err, core.ErrSynthesisUnavailable) {
			c.Metrics.SynthesisErrs.Inc()
		} else {
			c.Metrics.TranslationErrs.Inc()
		}
		log.Warn().Err(err).Str("module", "app.coordinator").Str("cid", string(lid)).Msg("translation job failed")
		return
	}
	c.Metrics.Translations.Inc()

	conn, ok := c.Registry.Conn(lid)
	if !ok {
		return // listener left mid-flight
	}
	send(conn, listenerTranscriptionMsg{
		Type:           "listener-transcription",
		TranslatedText: utt.Text,
		Lang:           utt.TargetLang,
		Speech:         utt.Audio,
	})
}

// pumpCapture feeds the local recording subprocess into the transcriber.
// The stream ending (process exit, non-zero or not) acts as an implicit stop.
func (c *Coordinator) pumpCapture(room *Room, t *turn, stream io.ReadCloser) {
	defer stream.Close()
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if werr := t.transcriber.Write(chunk); werr != nil {
				log.Warn().Err(werr).Str("module", "app.coordinator").Msg("capture write failed")
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Str("module", "app.coordinator").Msg("capture stream error")
			}
			break
		}
	}
	c.releaseSpeaker(room, t.speaker)
}

// TranscriptOf exposes the live turn log for the REST API. Empty once the
// turn ends; the log is deliberately not retained.
func (c *Coordinator) TranscriptOf(name domain.RoomName) []domain.TranscriptSegment {
	room, ok := c.Rooms.Peek(name)
	if !ok {
		return nil
	}
	return room.Transcript()
}
