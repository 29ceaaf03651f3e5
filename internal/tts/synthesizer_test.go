package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovrk/babel/internal/core"
)

func TestSynthesizeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hola", req.Input)
		assert.Equal(t, "es", req.Language)
		assert.Equal(t, "mp3", req.ResponseFormat)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3-bytes"))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Model: "tts-1", Voice: "alloy"})
	audio, err := c.Synthesize(context.Background(), "hola", "es")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3fake-mp3-bytes"), audio)
}

func TestSynthesizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	_, err := c.Synthesize(context.Background(), "hola", "es")
	require.ErrorIs(t, err, core.ErrSynthesisUnavailable)
}

func TestSynthesizeEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	_, err := c.Synthesize(context.Background(), "hola", "es")
	require.ErrorIs(t, err, core.ErrSynthesisUnavailable)
}
