package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

// Server side never inspects SDP content. Offer, answer and candidates
// are forwarded to the other room members with the sender id attached,
// never echoed back to the sender.

func (ctl *Controller) handleOffer(cid domain.ConnID, env protocol.Envelope) {
	var p protocol.OfferSignal
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad offer payload")
		return
	}
	if p.Offer.SDP == "" {
		log.Warn().Str("module", "signal").Str("conn", string(cid)).Msg("offer without sdp")
		return
	}
	ctl.Coord.Relay.Forward(p.RoomID, cid, protocol.EventOffer, protocol.OfferRelay{Offer: p.Offer, From: cid})
}

func (ctl *Controller) handleAnswer(cid domain.ConnID, env protocol.Envelope) {
	var p protocol.AnswerSignal
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad answer payload")
		return
	}
	if p.Answer.SDP == "" {
		log.Warn().Str("module", "signal").Str("conn", string(cid)).Msg("answer without sdp")
		return
	}
	ctl.Coord.Relay.Forward(p.RoomID, cid, protocol.EventAnswer, protocol.AnswerRelay{Answer: p.Answer, From: cid})
}

func (ctl *Controller) handleCandidate(cid domain.ConnID, env protocol.Envelope) {
	var p protocol.CandidateSignal
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	if p.Candidate.Candidate == "" {
		log.Debug().Str("module", "signal").Str("conn", string(cid)).Msg("empty candidate dropped")
		return
	}
	ctl.Coord.Relay.Forward(p.RoomID, cid, protocol.EventICECandidate, protocol.CandidateRelay{Candidate: p.Candidate, From: cid})
}
