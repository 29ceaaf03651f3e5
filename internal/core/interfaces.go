package core

import (
	"context"
	"io"

	"github.com/ovrk/babel/internal/domain"
)

// Frame is a raw outbound payload (JSON envelope or audio bytes).
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Transcriber is one live connection to the streaming transcription backend,
// scoped to a single speaker turn.
//
// Segments yields normalized results until Close or backend termination, then
// the channel is closed. The sequence is not restartable.
// Write drops chunks silently once the session is closed; audio arriving
// slightly after a stop is an expected race, not an error.
// Close is graceful and idempotent.
type Transcriber interface {
	Segments() <-chan domain.TranscriptSegment
	Write(chunk []byte) error
	Close()
}

// TranscriberFactory opens a Transcriber for a speaker turn.
// Open returns an error wrapping ErrBackendUnavailable when the backend
// cannot be reached; the caller must not start any pipeline in that case.
type TranscriberFactory interface {
	Open(ctx context.Context, sourceLang domain.Lang) (Transcriber, error)
}

// Translator converts final transcript text into a target language.
type Translator interface {
	Translate(ctx context.Context, text string, source, target domain.Lang) (string, error)
}

// Synthesizer renders translated text as audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang domain.Lang) ([]byte, error)
}

// Recorder spawns local audio capture subprocesses, at most one at a time.
type Recorder interface {
	Start(ctx context.Context) (CaptureStream, error)
}

// CaptureStream is one running capture process. Stop interrupts exactly the
// process behind this stream and nothing else; a handle held past the
// process's exit must not touch whatever runs next. Stop is idempotent and
// safe to call concurrently with a reader.
type CaptureStream interface {
	io.ReadCloser
	Stop()
}
