package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
	"github.com/DoyleJ11/flashcountry-pvp/internal/types"
)

const clientSubBuffer = 16

// Client is a docstore.Store backed by a server's /ws endpoint. Closing
// the client drops the socket, which runs its on-disconnect patches on
// the server.
type Client struct {
	ws     *websocket.Conn
	log    *zap.Logger
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan types.ServerMessage
	subs    map[uint64]chan room.Room
	err     error // set once the read loop ends

	done chan struct{}
}

var _ docstore.Store = (*Client)(nil)

// Dial connects to url, e.g. ws://localhost:8080/ws.
func Dial(ctx context.Context, url string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", docstore.ErrUnavailable, url, err)
	}
	// snapshots can carry full documents
	ws.SetReadLimit(1 << 20)

	c := &Client{
		ws:      ws,
		log:     log,
		pending: make(map[uint64]chan types.ServerMessage),
		subs:    make(map[uint64]chan room.Room),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	err := c.ws.Close(websocket.StatusNormalClosure, "bye")
	<-c.done
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readLoop() {
	defer close(c.done)
	var err error
	for {
		var msg types.ServerMessage
		if err = wsjson.Read(context.Background(), c.ws, &msg); err != nil {
			break
		}
		c.route(msg)
	}

	c.mu.Lock()
	c.err = fmt.Errorf("%w: %v", docstore.ErrClosed, err)
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	pending := c.pending
	c.pending = make(map[uint64]chan types.ServerMessage)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	c.log.Debug("connection closed", zap.Error(err))
}

func (c *Client) route(msg types.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case types.MsgSnapshot:
		if ch, ok := c.subs[msg.ID]; ok && msg.Room != nil {
			offer(ch, *msg.Room)
		}
	case types.MsgClosed:
		if ch, ok := c.subs[msg.ID]; ok {
			close(ch)
			delete(c.subs, msg.ID)
		}
	default:
		if ch, ok := c.pending[msg.ID]; ok {
			delete(c.pending, msg.ID)
			ch <- msg
		}
	}
}

// offer never blocks the read loop; a lagging reader loses the oldest snapshot.
func offer(ch chan room.Room, r room.Room) {
	select {
	case ch <- r:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- r:
	default:
	}
}

func (c *Client) call(ctx context.Context, m types.ClientMessage) (types.ServerMessage, error) {
	if m.ID == 0 {
		m.ID = c.nextID.Add(1)
	}
	reply := make(chan types.ServerMessage, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return types.ServerMessage{}, err
	}
	c.pending[m.ID] = reply
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, m.ID)
		c.mu.Unlock()
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	err := wsjson.Write(wctx, c.ws, m)
	cancel()
	if err != nil {
		forget()
		return types.ServerMessage{}, fmt.Errorf("%w: send %s: %v", docstore.ErrUnavailable, m.Op, err)
	}

	select {
	case msg, ok := <-reply:
		if !ok {
			return types.ServerMessage{}, docstore.ErrClosed
		}
		if msg.Type == types.MsgError {
			return msg, docstore.FromCode(msg.Code, msg.Error)
		}
		return msg, nil
	case <-ctx.Done():
		forget()
		return types.ServerMessage{}, ctx.Err()
	}
}

func roomOf(msg types.ServerMessage) (room.Room, error) {
	if msg.Room == nil {
		return room.Room{}, errors.New("reply without room")
	}
	return *msg.Room, nil
}

func (c *Client) Get(ctx context.Context, code string) (room.Room, error) {
	msg, err := c.call(ctx, types.ClientMessage{Op: types.OpGet, Code: code})
	if err != nil {
		return room.Room{}, err
	}
	return roomOf(msg)
}

func (c *Client) Create(ctx context.Context, r room.Room) (room.Room, error) {
	msg, err := c.call(ctx, types.ClientMessage{Op: types.OpCreate, Room: &r})
	if err != nil {
		return room.Room{}, err
	}
	return roomOf(msg)
}

func (c *Client) Update(ctx context.Context, code string, p room.Patch) (room.Room, error) {
	msg, err := c.call(ctx, types.ClientMessage{Op: types.OpUpdate, Code: code, Patch: &p})
	if err != nil {
		return room.Room{}, err
	}
	return roomOf(msg)
}

func (c *Client) Remove(ctx context.Context, code string) error {
	_, err := c.call(ctx, types.ClientMessage{Op: types.OpRemove, Code: code})
	return err
}

func (c *Client) Query(ctx context.Context, q docstore.Query) ([]room.Room, error) {
	msg, err := c.call(ctx, types.ClientMessage{Op: types.OpQuery, Query: &q})
	if err != nil {
		return nil, err
	}
	return msg.Rooms, nil
}

func (c *Client) OnDisconnect(ctx context.Context, code string, p room.Patch) error {
	_, err := c.call(ctx, types.ClientMessage{Op: types.OpOnDisconnect, Code: code, Patch: &p})
	return err
}

func (c *Client) Now(ctx context.Context) (time.Time, error) {
	msg, err := c.call(ctx, types.ClientMessage{Op: types.OpTime})
	if err != nil {
		return time.Time{}, err
	}
	if msg.Time == nil {
		return time.Time{}, errors.New("reply without time")
	}
	return *msg.Time, nil
}

// Subscribe streams snapshots of code until ctx ends or the room is removed.
func (c *Client) Subscribe(ctx context.Context, code string) (<-chan room.Room, error) {
	id := c.nextID.Add(1)
	ch := make(chan room.Room, clientSubBuffer)

	// registered first: the first snapshot can overtake the reply
	c.mu.Lock()
	c.subs[id] = ch
	c.mu.Unlock()

	if _, err := c.call(ctx, types.ClientMessage{ID: id, Op: types.OpSubscribe, Code: code}); err != nil {
		c.dropSub(id)
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
			return
		}
		if c.dropSub(id) {
			uctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			defer cancel()
			if _, err := c.call(uctx, types.ClientMessage{Op: types.OpUnsubscribe, Sub: id}); err != nil {
				c.log.Debug("unsubscribe", zap.Uint64("sub", id), zap.Error(err))
			}
		}
	}()
	return ch, nil
}

// dropSub closes and forgets a subscription; false when it was already gone.
func (c *Client) dropSub(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[id]
	if !ok {
		return false
	}
	close(ch)
	delete(c.subs, id)
	return true
}
