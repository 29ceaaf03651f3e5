package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeBackend echoes one partial and one final per binary chunk and honors
// the EOS sentinel.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "16000", r.URL.Query().Get("sample_rate"))
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && string(data) == "EOS" {
				_ = conn.WriteJSON(map[string]any{"type": "final", "speaker": "1", "text": "flushed"})
				_ = conn.WriteJSON(map[string]any{"type": "closed"})
				return
			}
			text := string(data)
			_ = conn.WriteJSON(map[string]any{"type": "partial", "text": text[:len(text)/2]})
			_ = conn.WriteJSON(map[string]any{"type": "final", "speaker": "0", "text": text})
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionStreamsSegments(t *testing.T) {
	srv := fakeBackend(t)
	defer srv.Close()

	f := NewFactory(Config{Endpoint: wsURL(srv), SampleRate: 16000})
	tr, err := f.Open(context.Background(), "en")
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Write([]byte("hello world")))

	var got []domain.TranscriptSegment
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case seg := <-tr.Segments():
			got = append(got, seg)
		case <-timeout:
			t.Fatal("timed out waiting for segments")
		}
	}

	assert.False(t, got[0].IsFinal)
	// Backend sent no speaker tag on the partial; it must normalize.
	assert.Equal(t, domain.SpeakerUnknown, got[0].Speaker)
	assert.True(t, got[1].IsFinal)
	assert.Equal(t, "hello world", got[1].Text)
	assert.Equal(t, "0", got[1].Speaker)
}

func TestSessionCloseFlushesPendingFinals(t *testing.T) {
	srv := fakeBackend(t)
	defer srv.Close()

	f := NewFactory(Config{Endpoint: wsURL(srv), SampleRate: 16000})
	tr, err := f.Open(context.Background(), "en")
	require.NoError(t, err)

	tr.Close()

	var texts []string
	for seg := range tr.Segments() {
		texts = append(texts, seg.Text)
	}
	// Channel closes after the backend confirms; the flushed final arrives.
	assert.Equal(t, []string{"flushed"}, texts)
}

func TestSessionCloseIdempotent(t *testing.T) {
	srv := fakeBackend(t)
	defer srv.Close()

	f := NewFactory(Config{Endpoint: wsURL(srv), SampleRate: 16000})
	tr, err := f.Open(context.Background(), "en")
	require.NoError(t, err)

	tr.Close()
	tr.Close()
	for range tr.Segments() {
	}
}

func TestWriteAfterCloseDroppedSilently(t *testing.T) {
	srv := fakeBackend(t)
	defer srv.Close()

	f := NewFactory(Config{Endpoint: wsURL(srv), SampleRate: 16000})
	tr, err := f.Open(context.Background(), "en")
	require.NoError(t, err)

	tr.Close()
	for range tr.Segments() {
	}
	// Trailing audio after stop is an expected race; no error surfaces.
	assert.NoError(t, tr.Write([]byte("late chunk")))
}

func TestOpenFailsWithBackendUnavailable(t *testing.T) {
	f := NewFactory(Config{
		Endpoint:    "ws://127.0.0.1:1/v1/stream",
		SampleRate:  16000,
		DialTimeout: 200 * time.Millisecond,
	})
	_, err := f.Open(context.Background(), "en")
	require.ErrorIs(t, err, core.ErrBackendUnavailable)
}
