package capture

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovrk/babel/internal/core"
)

func TestStartStreamsProcessOutput(t *testing.T) {
	r := New(Config{
		Command:   "sh",
		ExtraArgs: []string{"-c", "printf 'raw-audio-bytes'"},
	})

	stream, err := r.Start(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	out, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "raw-audio-bytes", string(out))
}

func TestStartWhileRunningFails(t *testing.T) {
	r := New(Config{
		Command:   "sh",
		ExtraArgs: []string{"-c", "sleep 10"},
	})

	stream, err := r.Start(context.Background())
	require.NoError(t, err)
	defer stream.Close()
	defer stream.Stop()

	_, err = r.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStopEndsStreamAndIsIdempotent(t *testing.T) {
	r := New(Config{
		Command:   "sh",
		ExtraArgs: []string{"-c", "sleep 10"},
	})

	stream, err := r.Start(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = io.ReadAll(stream)
		close(done)
	}()

	stream.Stop()
	stream.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after Stop")
	}
}

func TestStaleStreamStopLeavesNextProcessAlone(t *testing.T) {
	// First run exits immediately; once the marker file exists the command
	// sleeps instead, standing in for a long-lived capture.
	marker := filepath.Join(t.TempDir(), "live")
	r := New(Config{
		Command:   "sh",
		ExtraArgs: []string{"-c", "if [ -e " + marker + " ]; then sleep 10; else printf x; fi"},
	})

	first, err := r.Start(context.Background())
	require.NoError(t, err)
	_, _ = io.ReadAll(first)
	first.Close()

	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	var second core.CaptureStream
	require.Eventually(t, func() bool {
		s, err := r.Start(context.Background())
		if err != nil {
			return false
		}
		second = s
		return true
	}, 2*time.Second, 50*time.Millisecond)
	defer second.Close()
	defer second.Stop()

	// The first handle is long dead; stopping it must not end the second
	// process's stream.
	first.Stop()

	ended := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		_, _ = second.Read(buf)
		close(ended)
	}()
	select {
	case <-ended:
		t.Fatal("stale Stop ended the newer capture stream")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRecorderReusableAcrossTurns(t *testing.T) {
	r := New(Config{
		Command:   "sh",
		ExtraArgs: []string{"-c", "printf x"},
	})

	stream, err := r.Start(context.Background())
	require.NoError(t, err)
	_, _ = io.ReadAll(stream)
	stream.Close()

	// The process has exited; a new turn may start capture again.
	require.Eventually(t, func() bool {
		s, err := r.Start(context.Background())
		if err != nil {
			return false
		}
		_, _ = io.ReadAll(s)
		s.Close()
		return true
	}, 2*time.Second, 50*time.Millisecond)
}
