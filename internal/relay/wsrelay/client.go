// Package wsrelay implements relay.Store over a websocket connection to the
// relay daemon. This is the store the peers use in normal operation.
package wsrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
)

// Client is a websocket-backed relay.Store. One Client owns one connection;
// all reads happen on its read pump and all writes on its write pump.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	outgoing  chan *wire.Frame
	done      chan struct{}

	mu      sync.Mutex
	pending map[string]chan *wire.Frame
	watches map[string]func(*wire.Frame)
	closed  bool
}

// Dial connects to the relay daemon at serverURL (ws:// or wss://).
func Dial(serverURL string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}

	c := &Client{
		serverURL: serverURL,
		conn:      conn,
		outgoing:  make(chan *wire.Frame, 32),
		done:      make(chan struct{}),
		pending:   make(map[string]chan *wire.Frame),
		watches:   make(map[string]func(*wire.Frame)),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.failAll()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var frame wire.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case wire.TypeAck:
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if ok {
				ch <- &frame
			}

		case wire.TypeValue, wire.TypeChild:
			c.mu.Lock()
			fn := c.watches[frame.ID]
			c.mu.Unlock()
			if fn != nil {
				fn(&frame)
			}

		default:
			slog.Debug("relay client: unknown frame type", "type", frame.Type)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// request sends a frame and waits for its ack.
func (c *Client) request(ctx context.Context, frame *wire.Frame) (*wire.Frame, error) {
	frame.ID = uuid.NewString()
	ack := make(chan *wire.Frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("relay client closed")
	}
	c.pending[frame.ID] = ack
	c.mu.Unlock()

	select {
	case c.outgoing <- frame:
	case <-c.done:
		return nil, fmt.Errorf("relay client closed")
	case <-ctx.Done():
		c.dropPending(frame.ID)
		return nil, ctx.Err()
	}

	select {
	case resp := <-ack:
		if resp == nil {
			return nil, fmt.Errorf("relay connection lost")
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("relay: %s", resp.Error)
		}
		return resp, nil
	case <-c.done:
		return nil, fmt.Errorf("relay client closed")
	case <-ctx.Done():
		c.dropPending(frame.ID)
		return nil, ctx.Err()
	}
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// failAll unblocks every waiter after the connection drops.
func (c *Client) failAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan *wire.Frame)
	c.watches = make(map[string]func(*wire.Frame))
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- nil
	}
}

func (c *Client) SetField(ctx context.Context, room, field string, value json.RawMessage) error {
	_, err := c.request(ctx, &wire.Frame{Type: wire.OpSet, Room: room, Path: field, Value: value})
	return err
}

func (c *Client) WatchField(ctx context.Context, room, field string, fn relay.ValueFunc) (relay.Subscription, error) {
	return c.watch(ctx, &wire.Frame{Type: wire.OpWatch, Room: room, Path: field}, func(frame *wire.Frame) {
		fn(frame.Value)
	})
}

func (c *Client) AppendChild(ctx context.Context, room, log string, value json.RawMessage) (string, error) {
	resp, err := c.request(ctx, &wire.Frame{Type: wire.OpPush, Room: room, Path: log, Value: value})
	if err != nil {
		return "", err
	}
	return resp.Key, nil
}

func (c *Client) WatchChildren(ctx context.Context, room, log string, fn relay.ChildFunc) (relay.Subscription, error) {
	return c.watch(ctx, &wire.Frame{Type: wire.OpWatchChildren, Room: room, Path: log}, func(frame *wire.Frame) {
		fn(frame.Key, frame.Value)
	})
}

// watch registers the event callback before the request goes out, so events
// the daemon emits immediately after the ack (replays in particular) are
// never dropped.
func (c *Client) watch(ctx context.Context, frame *wire.Frame, fn func(*wire.Frame)) (relay.Subscription, error) {
	id := uuid.NewString()
	ack := make(chan *wire.Frame, 1)
	frame.ID = id

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("relay client closed")
	}
	c.watches[id] = fn
	c.pending[id] = ack
	c.mu.Unlock()

	fail := func() {
		c.mu.Lock()
		delete(c.watches, id)
		delete(c.pending, id)
		c.mu.Unlock()
	}

	select {
	case c.outgoing <- frame:
	case <-c.done:
		fail()
		return nil, fmt.Errorf("relay client closed")
	case <-ctx.Done():
		fail()
		return nil, ctx.Err()
	}

	select {
	case resp := <-ack:
		if resp == nil {
			fail()
			return nil, fmt.Errorf("relay connection lost")
		}
		if resp.Error != "" {
			fail()
			return nil, fmt.Errorf("relay: %s", resp.Error)
		}
	case <-c.done:
		fail()
		return nil, fmt.Errorf("relay client closed")
	case <-ctx.Done():
		fail()
		return nil, ctx.Err()
	}

	return &watchSubscription{client: c, id: id}, nil
}

func (c *Client) Read(ctx context.Context, room string) (*relay.Record, error) {
	resp, err := c.request(ctx, &wire.Frame{Type: wire.OpGet, Room: room})
	if err != nil {
		return nil, err
	}
	return resp.Record, nil
}

func (c *Client) Delete(ctx context.Context, room string) error {
	_, err := c.request(ctx, &wire.Frame{Type: wire.OpDelete, Room: room})
	return err
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	return nil
}

type watchSubscription struct {
	client *Client
	id     string
	once   sync.Once
}

func (w *watchSubscription) Cancel() {
	w.once.Do(func() {
		c := w.client
		c.mu.Lock()
		delete(c.watches, w.id)
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		// Fire-and-forget; the daemon drops the watch with the ack.
		select {
		case c.outgoing <- &wire.Frame{Type: wire.OpUnwatch, ID: uuid.NewString(), Watch: w.id}:
		case <-c.done:
		}
	})
}
