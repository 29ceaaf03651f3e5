package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

// fakeConn captures outbound frames for inspection.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

// messages decodes every captured frame. Safe to call from assert.Eventually
// conditions, so it swallows rather than fails on malformed frames.
func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) countType(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, m := range c.messages(t) {
		if m["type"] == typ {
			n++
		}
	}
	return n
}

func (c *fakeConn) lastOfType(t *testing.T, typ string) (map[string]any, bool) {
	t.Helper()
	var found map[string]any
	ok := false
	for _, m := range c.messages(t) {
		if m["type"] == typ {
			found, ok = m, true
		}
	}
	return found, ok
}

// fakeTranscriber is a scriptable core.Transcriber. Tests push segments via
// emit and count Close calls to verify the pipeline stops exactly once.
type fakeTranscriber struct {
	segs chan domain.TranscriptSegment

	mu         sync.Mutex
	writes     [][]byte
	closed     bool
	closeCalls int
	closeOnce  sync.Once
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{segs: make(chan domain.TranscriptSegment, 16)}
}

func (f *fakeTranscriber) Segments() <-chan domain.TranscriptSegment { return f.segs }

func (f *fakeTranscriber) Write(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.writes = append(f.writes, chunk)
	return nil
}

func (f *fakeTranscriber) Close() {
	f.mu.Lock()
	f.closed = true
	f.closeCalls++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.segs) })
}

func (f *fakeTranscriber) emit(seg domain.TranscriptSegment) { f.segs <- seg }

func (f *fakeTranscriber) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeTranscriber) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// fakeSTTFactory hands out fakeTranscribers, or fails when err is set.
type fakeSTTFactory struct {
	mu      sync.Mutex
	err     error
	opened  []*fakeTranscriber
	pending *fakeTranscriber
}

func (f *fakeSTTFactory) Open(ctx context.Context, lang domain.Lang) (core.Transcriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	tr := f.pending
	if tr == nil {
		tr = newFakeTranscriber()
	}
	f.pending = nil
	f.opened = append(f.opened, tr)
	return tr, nil
}

func (f *fakeSTTFactory) last() *fakeTranscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil
	}
	return f.opened[len(f.opened)-1]
}

// fakeCaptureStream stands in for one capture process: feed pushes bytes,
// end simulates the process exiting, Stop records the interrupt.
type fakeCaptureStream struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu    sync.Mutex
	stops int
	once  sync.Once
}

func newFakeCaptureStream() *fakeCaptureStream {
	pr, pw := io.Pipe()
	return &fakeCaptureStream{pr: pr, pw: pw}
}

func (s *fakeCaptureStream) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *fakeCaptureStream) Close() error { return s.pr.Close() }

func (s *fakeCaptureStream) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	s.once.Do(func() { s.pw.Close() })
}

func (s *fakeCaptureStream) feed(b []byte) { _, _ = s.pw.Write(b) }

func (s *fakeCaptureStream) end() { s.once.Do(func() { s.pw.Close() }) }

func (s *fakeCaptureStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// fakeRecorder hands out fakeCaptureStreams, or fails when err is set.
type fakeRecorder struct {
	mu      sync.Mutex
	err     error
	streams []*fakeCaptureStream
}

func (r *fakeRecorder) Start(ctx context.Context) (core.CaptureStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := newFakeCaptureStream()
	r.streams = append(r.streams, s)
	return s, nil
}

func (r *fakeRecorder) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeRecorder) stream(i int) *fakeCaptureStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[i]
}

// fakeTranslator translates by prefixing the target language, and can fail
// for a specific target to exercise failure isolation.
type fakeTranslator struct {
	mu       sync.Mutex
	failFor  domain.Lang
	requests int
}

func (f *fakeTranslator) Translate(ctx context.Context, text string, source, target domain.Lang) (string, error) {
	f.mu.Lock()
	f.requests++
	failFor := f.failFor
	f.mu.Unlock()
	if failFor != "" && failFor == target {
		return "", fmt.Errorf("%w: scripted failure", core.ErrTranslationUnavailable)
	}
	return fmt.Sprintf("[%s] %s", target, text), nil
}

func (f *fakeTranslator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

type fakeSynthesizer struct {
	mu       sync.Mutex
	failFor  domain.Lang
	requests int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string, lang domain.Lang) ([]byte, error) {
	f.mu.Lock()
	f.requests++
	failFor := f.failFor
	f.mu.Unlock()
	if failFor != "" && failFor == lang {
		return nil, fmt.Errorf("%w: scripted failure", core.ErrSynthesisUnavailable)
	}
	return []byte("audio:" + text), nil
}

func (f *fakeSynthesizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}
