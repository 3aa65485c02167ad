// Package signal is the websocket transport adapter: it owns connection
// upgrade, the read/write pumps and the decode of wire frames into
// coordinator calls.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/app"
	"github.com/mzholl/callwire/internal/config"
	"github.com/mzholl/callwire/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const callsPerMinute = 10

type Controller struct {
	Coord   *app.Coordinator
	cfg     *config.Config
	limiter *CallRateLimiter
}

func NewController(cfg *config.Config, coord *app.Coordinator) *Controller {
	return &Controller{
		Coord:   coord,
		cfg:     cfg,
		limiter: NewCallRateLimiter(callsPerMinute, time.Minute),
	}
}

// wsConn wraps one websocket with a buffered outbound queue. TrySend
// never blocks: a full queue is the peer's problem, not the relay's.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until either
// side goes away. Each upgrade gets a fresh connection id; user identity
// arrives later via register-user.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	cid := domain.NewConnID()
	log.Info().Str("module", "signal").Str("conn", string(cid)).Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan []byte, 32),
	}
	ctl.Coord.Registry.Bind(cid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, cid, conn)
}
