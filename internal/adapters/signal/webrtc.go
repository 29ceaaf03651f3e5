package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ovrk/babel/internal/domain"
)

// Offer/answer/candidate are relayed verbatim between the addressed pair of
// peers. The server never terminates media itself.

func (ctl *Controller) handleOffer(
	cid domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type offerPayload struct {
		Type string `json:"type"`
		To   string `json:"to"`
		SDP  string `json:"sdp"`
	}
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.To == "" {
		ctl.sendError(conn, "missing_target")
		return
	}
	ctl.Relay.ForwardOffer(cid, domain.ConnectionID(p.To), webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  p.SDP,
	})
}

func (ctl *Controller) handleAnswer(
	cid domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type answerPayload struct {
		Type string `json:"type"`
		To   string `json:"to"`
		SDP  string `json:"sdp"`
	}
	var p answerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.To == "" {
		ctl.sendError(conn, "missing_target")
		return
	}
	ctl.Relay.ForwardAnswer(cid, domain.ConnectionID(p.To), webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  p.SDP,
	})
}

func (ctl *Controller) handleCandidate(
	cid domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type candidatePayload struct {
		Type          string `json:"type"`
		To            string `json:"to"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.To == "" {
		ctl.sendError(conn, "missing_target")
		return
	}

	ci := webrtc.ICECandidateInit{Candidate: p.Candidate}
	if p.SDPMid != "" {
		ci.SDPMid = &p.SDPMid
	}
	ci.SDPMLineIndex = &p.SDPMLineIndex

	ctl.Relay.ForwardCandidate(cid, domain.ConnectionID(p.To), ci)
}
