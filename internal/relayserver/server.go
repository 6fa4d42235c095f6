// Package relayserver is the bundled relay daemon. It exposes the
// relay.Store operations over the wire.Frame websocket protocol, backed by
// either the in-memory store or Redis.
package relayserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
	opTimeout      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	// Peers connect from CLI processes and browsers on arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the relay protocol over websockets.
type Server struct {
	store relay.Store
	log   zerolog.Logger
}

// New creates a server on top of any relay.Store.
func New(store relay.Store, log zerolog.Logger) *Server {
	return &Server{store: store, log: log}
}

// Handler returns the HTTP routes: GET /healthz and GET /ws.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.serveWs)
	return r
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	p := &peerConn{
		server:  s,
		conn:    conn,
		send:    make(chan *wire.Frame, 256),
		watches: make(map[string]relay.Subscription),
		log:     s.log.With().Str("remote", conn.RemoteAddr().String()).Logger(),
	}
	p.log.Info().Msg("peer connected")

	go p.writePump()
	go p.readPump()
}

// peerConn wraps one websocket connection. All reads happen on readPump and
// all writes on writePump; watch callbacks only enqueue.
type peerConn struct {
	server *Server
	conn   *websocket.Conn
	send   chan *wire.Frame
	log    zerolog.Logger

	mu      sync.Mutex
	watches map[string]relay.Subscription
	closed  bool
}

func (p *peerConn) readPump() {
	defer p.teardown()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame wire.Frame
		if err := p.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.log.Warn().Err(err).Msg("read error")
			}
			return
		}
		p.handle(&frame)
	}
}

func (p *peerConn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(frame); err != nil {
				p.log.Warn().Err(err).Msg("write error")
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *peerConn) handle(frame *wire.Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch frame.Type {
	case wire.OpSet:
		p.ack(frame.ID, p.server.store.SetField(ctx, frame.Room, frame.Path, frame.Value), nil)

	case wire.OpPush:
		key, err := p.server.store.AppendChild(ctx, frame.Room, frame.Path, frame.Value)
		p.ack(frame.ID, err, func(ack *wire.Frame) { ack.Key = key })

	case wire.OpGet:
		rec, err := p.server.store.Read(ctx, frame.Room)
		p.ack(frame.ID, err, func(ack *wire.Frame) { ack.Record = rec })

	case wire.OpDelete:
		p.ack(frame.ID, p.server.store.Delete(ctx, frame.Room), nil)

	case wire.OpWatch:
		id := frame.ID
		sub, err := p.server.store.WatchField(context.Background(), frame.Room, frame.Path, func(value json.RawMessage) {
			p.enqueue(&wire.Frame{Type: wire.TypeValue, ID: id, Value: value})
		})
		p.registerWatch(id, sub, err)

	case wire.OpWatchChildren:
		id := frame.ID
		sub, err := p.server.store.WatchChildren(context.Background(), frame.Room, frame.Path, func(key string, value json.RawMessage) {
			p.enqueue(&wire.Frame{Type: wire.TypeChild, ID: id, Key: key, Value: value})
		})
		p.registerWatch(id, sub, err)

	case wire.OpUnwatch:
		p.mu.Lock()
		sub := p.watches[frame.Watch]
		delete(p.watches, frame.Watch)
		p.mu.Unlock()
		if sub != nil {
			sub.Cancel()
		}
		p.ack(frame.ID, nil, nil)

	default:
		p.log.Warn().Str("type", frame.Type).Msg("unknown operation")
		p.enqueue(&wire.Frame{Type: wire.TypeAck, ID: frame.ID, Error: "unknown operation"})
	}
}

func (p *peerConn) registerWatch(id string, sub relay.Subscription, err error) {
	if err != nil {
		p.ack(id, err, nil)
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		sub.Cancel()
		return
	}
	p.watches[id] = sub
	p.mu.Unlock()
	p.ack(id, nil, nil)
}

func (p *peerConn) ack(id string, err error, fill func(*wire.Frame)) {
	frame := &wire.Frame{Type: wire.TypeAck, ID: id, OK: err == nil}
	if err != nil {
		frame.Error = err.Error()
	} else if fill != nil {
		fill(frame)
	}
	p.enqueue(frame)
}

// enqueue hands a frame to the write pump. Frames are dropped rather than
// blocking a watch callback when the peer cannot keep up.
func (p *peerConn) enqueue(frame *wire.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.send <- frame:
	default:
		p.log.Warn().Str("type", frame.Type).Msg("send buffer full, dropping frame")
	}
}

func (p *peerConn) teardown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	watches := p.watches
	p.watches = nil
	p.mu.Unlock()

	for _, sub := range watches {
		sub.Cancel()
	}
	close(p.send)
	p.conn.Close()
	p.log.Info().Msg("peer disconnected")
}
