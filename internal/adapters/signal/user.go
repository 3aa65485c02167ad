package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

func (ctl *Controller) handleRegister(cid domain.ConnID, env protocol.Envelope) {
	var p protocol.RegisterUser
	if err := env.Unmarshal(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad register payload")
		ctl.sendTo(cid, protocol.EventRegistrationError, protocol.RegistrationError{Message: "bad payload"})
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(cid)).Str("user", string(p.UserID)).Msg("register")
	ctl.Coord.RegisterUser(cid, p.UserID)
}

func (ctl *Controller) sendTo(cid domain.ConnID, ev protocol.Event, payload any) {
	ctl.Coord.Relay.Send(cid, ev, payload)
}
