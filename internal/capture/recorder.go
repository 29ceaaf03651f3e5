// Package capture wraps a system audio recording subprocess (sox by default)
// and exposes its stdout as a byte stream.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/core"
)

type Config struct {
	Command    string
	Channels   int
	SampleRate int
	AudioType  string
	// ExtraArgs replaces the default sox argument list when set; tests use it
	// to run a harmless command instead of sox.
	ExtraArgs []string
}

// Recorder runs at most one capture process at a time and can be reused
// across speaker turns. Each Start hands out a Stream bound to that one
// process; stopping a stale stream cannot touch a later process.
type Recorder struct {
	cfg Config

	mu  sync.Mutex
	cmd *exec.Cmd
}

func New(cfg Config) *Recorder {
	if cfg.Command == "" {
		cfg.Command = "sox"
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.AudioType == "" {
		cfg.AudioType = "wav"
	}
	return &Recorder{cfg: cfg}
}

var ErrAlreadyRunning = errors.New("capture already running")

// Start spawns the recording process. The returned stream ends when the
// process exits or its Stop is called; a non-zero exit is logged, the caller
// sees it as plain EOF.
func (r *Recorder) Start(ctx context.Context) (core.CaptureStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return nil, ErrAlreadyRunning
	}

	args := r.cfg.ExtraArgs
	if len(args) == 0 {
		// Record from the default device, raw output to stdout.
		args = []string{
			"-d",
			"-c", strconv.Itoa(r.cfg.Channels),
			"-r", strconv.Itoa(r.cfg.SampleRate),
			"-t", r.cfg.AudioType,
			"-",
		}
	}

	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("capture start: %w", err)
	}
	r.cmd = cmd

	go drainStderr(stderr)

	// Wait must not run until stdout is drained, so the byte stream goes
	// through a pipe and Wait follows the copy.
	pr, pw := io.Pipe()
	go func() {
		_, _ = io.Copy(pw, stdout)
		err := cmd.Wait()
		if err != nil {
			log.Warn().Err(err).Str("module", "capture").Msg("capture process exited")
		} else {
			log.Info().Str("module", "capture").Msg("capture process exited")
		}
		pw.Close()
		r.mu.Lock()
		if r.cmd == cmd {
			r.cmd = nil
		}
		r.mu.Unlock()
	}()

	log.Info().Str("module", "capture").Str("command", r.cfg.Command).Msg("capture started")
	return &Stream{cmd: cmd, pr: pr}, nil
}

// Stream is the live output of one capture process.
type Stream struct {
	cmd  *exec.Cmd
	pr   *io.PipeReader
	once sync.Once
}

func (s *Stream) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *Stream) Close() error { return s.pr.Close() }

// Stop interrupts this stream's process. Idempotent; a handle whose process
// already exited is a no-op even if the recorder started a new one since.
func (s *Stream) Stop() {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(os.Interrupt)
		}
	})
}

func drainStderr(rc io.Reader) {
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		log.Debug().Str("module", "capture").Str("stderr", sc.Text()).Msg("capture output")
	}
}
