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

	"github.com/ovrk/babel/internal/app"
	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

type Controller struct {
	Coord  *app.Coordinator
	Relay  *app.Relay
	starts *StartRateLimiter

	readLimit  int64
	pingPeriod time.Duration
}

func NewController(coord *app.Coordinator, relay *app.Relay, readLimit int64, pingPeriod time.Duration) *Controller {
	if pingPeriod == 0 {
		pingPeriod = 54 * time.Second
	}
	return &Controller{
		Coord:      coord,
		Relay:      relay,
		starts:     NewStartRateLimiter(5, 10*time.Second),
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

// WsSignalConn implements core.SignalConnection over one websocket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request, binds the connection and joins the
// requested room (query param "room", default "main").
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	cid := domain.ConnectionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Coord.Registry.Bind(cid, conn, cancel)
	ctl.Coord.Join(cid, domain.RoomName(c.DefaultQuery("room", "main")))

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cid, conn)
}

var errUnknownSignal = errors.New("unknown signal")
