package app

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

// Outbound envelopes. Everything the server pushes is a JSON object with a
// "type" discriminator, mirroring what clients send.

type streamStartedMsg struct {
	Type string `json:"type"`
}

type streamStoppedMsg struct {
	Type string `json:"type"`
}

type speakerTranscriptionMsg struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Speaker    string `json:"speaker"`
	IsFinal    bool   `json:"isFinal"`
}

type listenerTranscriptionMsg struct {
	Type           string      `json:"type"`
	TranslatedText string      `json:"translatedText"`
	Lang           domain.Lang `json:"lang"`
	Speech         []byte      `json:"speech"` // base64 on the wire
}

type peerMsg struct {
	Type string              `json:"type"`
	ID   domain.ConnectionID `json:"id"`
}

type sdpMsg struct {
	Type string              `json:"type"`
	From domain.ConnectionID `json:"from"`
	SDP  string              `json:"sdp"`
}

type candidateMsg struct {
	Type      string                  `json:"type"`
	From      domain.ConnectionID     `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// send marshals v and pushes it without blocking. Backpressure and closed
// connections are logged and otherwise ignored; the slow peer loses the
// frame, nobody else waits.
func send(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Msg("marshal outbound message")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "app").Msg("dropped outbound message")
	}
}
