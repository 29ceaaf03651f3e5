package core

import "errors"

var (
	// ErrRoleConflict is returned when the room's speaker slot is taken.
	ErrRoleConflict = errors.New("speaker slot occupied")
	// ErrBackendUnavailable means the transcription backend could not be reached.
	ErrBackendUnavailable = errors.New("transcription backend unavailable")
	// ErrTranslationUnavailable means the translation backend rejected or failed a request.
	ErrTranslationUnavailable = errors.New("translation unavailable")
	// ErrSynthesisUnavailable means the speech synthesis backend rejected or failed a request.
	ErrSynthesisUnavailable = errors.New("synthesis unavailable")
	// ErrBackpressure is returned by TrySend when the outbound buffer is full.
	ErrBackpressure = errors.New("backpressure")
	// ErrConnClosed is returned by TrySend on a closed connection.
	ErrConnClosed = errors.New("connection closed")
)
