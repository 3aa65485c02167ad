package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

func (ctl *Controller) handleCallUser(cid domain.ConnID, env protocol.Envelope) {
	var p protocol.CallUser
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad call-user payload")
		return
	}
	if !ctl.limiter.Allow(p.From) {
		log.Warn().Str("module", "signal").Str("user", string(p.From)).Msg("call rate limit hit")
		ctl.sendTo(cid, protocol.EventCallError, protocol.CallError{Message: "too many call attempts, slow down"})
		return
	}
	ctl.Coord.CallUser(cid, p)
}

func (ctl *Controller) handleAccept(ctx context.Context, cid domain.ConnID, env protocol.Envelope) {
	var p protocol.RoomRef
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad accept payload")
		return
	}
	ctl.Coord.AcceptCall(ctx, cid, p.RoomID)
}

func (ctl *Controller) handleReject(ctx context.Context, cid domain.ConnID, env protocol.Envelope) {
	var p protocol.RoomRef
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad reject payload")
		return
	}
	ctl.Coord.RejectCall(ctx, cid, p.RoomID)
}

func (ctl *Controller) handleEnd(ctx context.Context, cid domain.ConnID, env protocol.Envelope) {
	var p protocol.EndCall
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad end payload")
		return
	}
	ctl.Coord.EndCall(ctx, cid, p.RoomID, p.EndedBy)
}
