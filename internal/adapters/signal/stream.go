package signal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/app"
	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

// handleStartStream arbitrates the speaker role. The backend dial runs off
// the read loop; the client learns the outcome via stream-started or error.
func (ctl *Controller) handleStartStream(
	ctx context.Context,
	cid domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type startPayload struct {
		Type       string `json:"type"`
		SourceLang string `json:"sourceLang"`
	}
	var p startPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad start-stream payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if !ctl.starts.Allow(cid) {
		log.Warn().Str("module", "signal").Str("cid", string(cid)).Msg("start-stream rate limited")
		ctl.sendError(conn, "rate_limited")
		return
	}

	go func() {
		err := ctl.Coord.RequestSpeaker(ctx, cid, domain.Lang(p.SourceLang))
		switch {
		case err == nil:
		case errors.Is(err, core.ErrRoleConflict):
			ctl.sendError(conn, "role_conflict")
		case errors.Is(err, core.ErrBackendUnavailable):
			ctl.sendError(conn, "backend_unavailable")
		case errors.Is(err, app.ErrNotInRoom):
			ctl.sendError(conn, "not_in_room")
		default:
			log.Error().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("start-stream failed")
			ctl.sendError(conn, "stream_failed")
		}
	}()
}

func (ctl *Controller) handleStopStream(cid domain.ConnectionID) {
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("stop-stream")
	ctl.Coord.ReleaseSpeaker(cid)
}

// handleAudioData accepts base64 audio inside a JSON envelope, for clients
// that cannot send binary frames. Binary websocket frames skip this path.
func (ctl *Controller) handleAudioData(cid domain.ConnectionID, data []byte) {
	type audioPayload struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}
	var p audioPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad audio-data payload")
		return
	}
	chunk, err := base64.StdEncoding.DecodeString(p.Audio)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad audio-data encoding")
		return
	}
	ctl.Coord.OnAudioChunk(cid, chunk)
}

func (ctl *Controller) handleSetListenerLang(
	cid domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type langPayload struct {
		Type string `json:"type"`
		Lang string `json:"lang"`
	}
	var p langPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad set-listener-lang payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.Lang == "" {
		ctl.sendError(conn, "empty_lang")
		return
	}
	if !ctl.Coord.SetListenerLang(cid, domain.Lang(p.Lang)) {
		ctl.sendError(conn, "not_in_room")
		return
	}
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
		Lang string `json:"lang"`
	}{
		Type: "listener-lang-set",
		Lang: p.Lang,
	})
}
