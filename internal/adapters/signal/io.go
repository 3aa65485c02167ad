package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cid domain.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump closing")
		cancel()
		if uid, ok := ctl.Coord.Registry.UserOf(cid); ok {
			ctl.limiter.Forget(uid)
		}
		// ctx is cancelled by now; cleanup still has to reach the store.
		ctl.Coord.HandleDisconnect(context.Background(), cid)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, cid, data)
		}
	}
}

// dispatch decodes the envelope and routes by event name. A frame that
// fails to decode is dropped with a log line, it must not touch the
// connection or any other call in flight.
func (ctl *Controller) dispatch(ctx context.Context, cid domain.ConnID, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("bad frame")
		return
	}

	switch env.Event {
	case protocol.EventRegisterUser:
		ctl.handleRegister(cid, env)
	case protocol.EventJoinRoom:
		ctl.handleJoin(cid, env)
	case protocol.EventLeaveRoom:
		ctl.handleLeave(cid, env)
	case protocol.EventOffer:
		ctl.handleOffer(cid, env)
	case protocol.EventAnswer:
		ctl.handleAnswer(cid, env)
	case protocol.EventICECandidate:
		ctl.handleCandidate(cid, env)
	case protocol.EventCallUser:
		ctl.handleCallUser(cid, env)
	case protocol.EventAcceptCall:
		ctl.handleAccept(ctx, cid, env)
	case protocol.EventRejectCall:
		ctl.handleReject(ctx, cid, env)
	case protocol.EventEndCall:
		ctl.handleEnd(ctx, cid, env)
	case protocol.EventStartScreenShare, protocol.EventStopScreenShare,
		protocol.EventRecordingStarted, protocol.EventRecordingStopped,
		protocol.EventAudioToggled, protocol.EventVideoToggled,
		protocol.EventPing, protocol.EventPong:
		ctl.handleNotice(cid, env)
	default:
		log.Warn().Str("module", "signal").Str("event", string(env.Event)).Msg("unknown signal")
	}
}
