package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

func (ctl *Controller) handleJoin(cid domain.ConnID, env protocol.Envelope) {
	var p protocol.JoinRoom
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(cid)).Str("room", string(p.RoomID)).Msg("join")
	ctl.Coord.JoinRoom(cid, p.RoomID, p.UserID)
}

func (ctl *Controller) handleLeave(cid domain.ConnID, env protocol.Envelope) {
	var p protocol.RoomRef
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad leave payload")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(cid)).Str("room", string(p.RoomID)).Msg("leave")
	ctl.Coord.LeaveRoom(cid, p.RoomID)
}
