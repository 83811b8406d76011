// Package ws serves the room store over a websocket and provides the
// matching client.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/hub"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
	"github.com/DoyleJ11/flashcountry-pvp/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 15 * time.Second
	pingTimeout  = 10 * time.Second
	outboxSize   = 32
)

type Options struct {
	// OriginPatterns are passed to websocket.Accept; empty means same origin only.
	OriginPatterns []string
	// Rate and Burst bound the requests of one connection.
	Rate   rate.Limit
	Burst  int
	Logger *zap.Logger
}

// Handler upgrades the request and serves one session until the socket
// drops. The session's on-disconnect patches run when it does.
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rate <= 0 {
		opts.Rate = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 40
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			opts.Logger.Debug("websocket accept", zap.Error(err))
			return
		}
		defer ws.Close(websocket.StatusNormalClosure, "bye")

		sess := h.NewSession()
		c := &conn{
			ws:      ws,
			sess:    sess,
			limiter: rate.NewLimiter(opts.Rate, opts.Burst),
			out:     make(chan types.ServerMessage, outboxSize),
			subs:    make(map[uint64]context.CancelFunc),
			log:     opts.Logger.With(zap.String("session", sess.ID())),
		}
		c.log.Debug("client connected", zap.String("remote", r.RemoteAddr))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go c.writer(ctx, cancel)
		go c.keepalive(ctx, cancel)

		c.readLoop(ctx)

		cancel()
		for _, stop := range c.subs {
			stop()
		}
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := sess.Close(closeCtx); err != nil {
			c.log.Warn("on-disconnect hooks", zap.Error(err))
		}
		c.log.Debug("client disconnected")
	}
}

type conn struct {
	ws      *websocket.Conn
	sess    *hub.Session
	limiter *rate.Limiter
	out     chan types.ServerMessage
	// subs is only touched by the read loop
	subs map[uint64]context.CancelFunc
	log  *zap.Logger
}

func (c *conn) writer(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.out:
			wctx, done := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, msg)
			done()
			if err != nil {
				c.log.Debug("websocket write", zap.Error(err))
				return
			}
		}
	}
}

func (c *conn) keepalive(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, done := context.WithTimeout(ctx, pingTimeout)
			err := c.ws.Ping(pctx)
			done()
			if err != nil {
				c.log.Debug("websocket ping", zap.Error(err))
				cancel()
				return
			}
		}
	}
}

func (c *conn) send(ctx context.Context, msg types.ServerMessage) {
	select {
	case c.out <- msg:
	case <-ctx.Done():
	}
}

func (c *conn) readLoop(ctx context.Context) {
	for {
		var msg types.ClientMessage
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					c.log.Debug("websocket read", zap.Error(err))
				}
			}
			return
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		c.send(ctx, c.handle(ctx, msg))
	}
}

func (c *conn) handle(ctx context.Context, m types.ClientMessage) types.ServerMessage {
	res := types.Result(m.ID)
	var err error

	switch m.Op {
	case types.OpGet:
		var r room.Room
		r, err = c.sess.Get(ctx, m.Code)
		res.Room = &r

	case types.OpCreate:
		if m.Room == nil {
			return types.Failure(m.ID, fmt.Errorf("%w: create without room", docstore.ErrBadRequest))
		}
		var r room.Room
		r, err = c.sess.Create(ctx, *m.Room)
		res.Room = &r

	case types.OpUpdate:
		if m.Patch == nil {
			return types.Failure(m.ID, fmt.Errorf("%w: update without patch", docstore.ErrInvalidPatch))
		}
		var r room.Room
		r, err = c.sess.Update(ctx, m.Code, *m.Patch)
		res.Room = &r

	case types.OpRemove:
		err = c.sess.Remove(ctx, m.Code)

	case types.OpQuery:
		var q docstore.Query
		if m.Query != nil {
			q = *m.Query
		}
		res.Rooms, err = c.sess.Query(ctx, q)

	case types.OpSubscribe:
		err = c.subscribe(ctx, m.ID, m.Code)

	case types.OpUnsubscribe:
		if stop, ok := c.subs[m.Sub]; ok {
			stop()
			delete(c.subs, m.Sub)
		}

	case types.OpOnDisconnect:
		var p room.Patch
		if m.Patch != nil {
			p = *m.Patch
		}
		err = c.sess.OnDisconnect(ctx, m.Code, p)

	case types.OpTime:
		var now time.Time
		now, err = c.sess.Now(ctx)
		res.Time = &now

	default:
		err = fmt.Errorf("%w: unknown op %q", docstore.ErrBadRequest, m.Op)
	}

	if err != nil {
		return types.Failure(m.ID, err)
	}
	return res
}

// subscribe forwards snapshots of code tagged with id until the client
// unsubscribes, the room goes away or the socket drops.
func (c *conn) subscribe(ctx context.Context, id uint64, code string) error {
	if _, dup := c.subs[id]; dup {
		return fmt.Errorf("%w: subscription %d exists", docstore.ErrBadRequest, id)
	}
	subCtx, stop := context.WithCancel(ctx)
	snaps, err := c.sess.Subscribe(subCtx, code)
	if err != nil {
		stop()
		return err
	}
	c.subs[id] = stop

	go func() {
		for snap := range snaps {
			c.send(ctx, types.ServerMessage{Type: types.MsgSnapshot, ID: id, Room: &snap})
		}
		if subCtx.Err() == nil {
			c.send(ctx, types.ServerMessage{Type: types.MsgClosed, ID: id})
		}
	}()
	return nil
}
