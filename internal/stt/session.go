// Package stt implements the streaming transcription client.
// One Session wraps one websocket connection to the backend and lives for a
// single speaker turn.
package stt

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

// terminate is the text sentinel asking the backend to flush and close.
const terminate = "EOS"

type Config struct {
	Endpoint    string
	APIKey      string
	SampleRate  int
	Diarization bool
	DialTimeout time.Duration
}

// Factory dials the backend and hands out live sessions.
type Factory struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewFactory(cfg Config) *Factory {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Factory{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
	}
}

func (f *Factory) Open(ctx context.Context, sourceLang domain.Lang) (core.Transcriber, error) {
	u, err := url.Parse(f.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("stt endpoint: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(f.cfg.SampleRate))
	q.Set("lang", string(sourceLang))
	q.Set("diarization", strconv.FormatBool(f.cfg.Diarization))
	u.RawQuery = q.Encode()

	hdr := http.Header{}
	if f.cfg.APIKey != "" {
		hdr.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}

	conn, _, err := f.dialer.DialContext(ctx, u.String(), hdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}

	s := &Session{
		conn:     conn,
		segments: make(chan domain.TranscriptSegment, 32),
	}
	go s.readLoop()
	log.Info().Str("module", "stt").Str("lang", string(sourceLang)).Msg("transcription session opened")
	return s, nil
}

// Session implements core.Transcriber over one websocket connection.
type Session struct {
	conn     *websocket.Conn
	segments chan domain.TranscriptSegment

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *Session) Segments() <-chan domain.TranscriptSegment { return s.segments }

// Write forwards one audio chunk to the backend. Chunks arriving after Close
// are dropped: a stop racing trailing audio is expected, not an error.
func (s *Session) Write(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		log.Debug().Str("module", "stt").Int("bytes", len(chunk)).Msg("dropped chunk after close")
		return nil
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("stt write: %w", err)
	}
	return nil
}

// Close asks the backend to flush pending results and terminate. The segment
// channel stays open until the backend confirms or the read deadline fires,
// so finals in flight are still delivered.
func (s *Session) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		_ = s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(terminate))
		s.mu.Unlock()
		// Bound the flush; readLoop exits on the "closed" event or this deadline.
		_ = s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	})
}

// backend event shape: {"type":"partial"|"final"|"closed","speaker":...,"text":...}
type sttEvent struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`
}

func (s *Session) readLoop() {
	defer func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		_ = s.conn.Close()
		close(s.segments)
	}()

	for {
		var ev sttEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			log.Debug().Err(err).Str("module", "stt").Msg("read loop ended")
			return
		}
		switch ev.Type {
		case "partial", "final":
			speaker := ev.Speaker
			if speaker == "" {
				speaker = domain.SpeakerUnknown
			}
			s.segments <- domain.TranscriptSegment{
				Speaker: speaker,
				Text:    ev.Text,
				IsFinal: ev.Type == "final",
			}
		case "closed":
			return
		default:
			log.Warn().Str("module", "stt").Str("type", ev.Type).Msg("unknown backend event")
		}
	}
}
