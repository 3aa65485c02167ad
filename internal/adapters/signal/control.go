package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

// handleNotice covers the room-scoped events the server relays without
// business logic: screen share start/stop, recording markers, audio and
// video toggles, latency ping/pong.
func (ctl *Controller) handleNotice(cid domain.ConnID, env protocol.Envelope) {
	var p protocol.RoomNotice
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("event", string(env.Event)).Msg("bad notice payload")
		return
	}
	ctl.Coord.ForwardNotice(cid, env.Event, p)
}
