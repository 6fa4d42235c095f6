// Package control implements the in-band control channel riding a data
// channel next to the audio stream. It carries mute state, the audio
// quality preset, and latency pings. Loss of the control channel never
// affects the media session.
package control

import (
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ChannelLabel is the data channel label both sides expect.
const ChannelLabel = "control"

// Message type constants.
const (
	TypeMute    = "mute"
	TypeQuality = "quality"
	TypePing    = "ping"
	TypePong    = "pong"
)

// Message is the single frame type on the control channel, msgpack-encoded.
type Message struct {
	Type          string `msgpack:"type"`
	Muted         bool   `msgpack:"muted,omitempty"`
	Preset        string `msgpack:"preset,omitempty"`
	SentUnixMilli int64  `msgpack:"sent_unix_milli,omitempty"`
}

// Encode serializes a message.
func Encode(msg Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

// Decode parses a message.
func Decode(data []byte) (Message, error) {
	var msg Message
	err := msgpack.Unmarshal(data, &msg)
	return msg, err
}

// Conn is the minimal data-channel surface the link needs. The transport
// layer provides it.
type Conn interface {
	Send(data []byte) error
	OnMessage(fn func(data []byte))
	OnOpen(fn func())
	Close() error
}

// Link speaks the control protocol over a Conn. It answers pings
// automatically and tracks the last measured round-trip time.
type Link struct {
	conn Conn

	mu        sync.Mutex
	onMute    func(bool)
	onQuality func(string)
	latency   time.Duration
	open      bool
}

// NewLink wraps a Conn. Callers register handlers, then the link routes
// inbound frames.
func NewLink(conn Conn) *Link {
	l := &Link{conn: conn}
	conn.OnOpen(func() {
		l.mu.Lock()
		l.open = true
		l.mu.Unlock()
	})
	conn.OnMessage(l.route)
	return l
}

// OnMute registers the handler for remote mute changes.
func (l *Link) OnMute(fn func(muted bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onMute = fn
}

// OnQuality registers the handler for remote quality-preset changes.
func (l *Link) OnQuality(fn func(preset string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onQuality = fn
}

// Open reports whether the underlying channel has opened.
func (l *Link) Open() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// SendMute announces the local mute state.
func (l *Link) SendMute(muted bool) error {
	return l.send(Message{Type: TypeMute, Muted: muted})
}

// SendQuality announces the active quality preset.
func (l *Link) SendQuality(preset string) error {
	return l.send(Message{Type: TypeQuality, Preset: preset})
}

// Ping sends a latency probe; the answer updates Latency.
func (l *Link) Ping() error {
	return l.send(Message{Type: TypePing, SentUnixMilli: time.Now().UnixMilli()})
}

// Latency returns the last measured round-trip time, zero before the first
// pong.
func (l *Link) Latency() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latency
}

func (l *Link) Close() error {
	return l.conn.Close()
}

func (l *Link) send(msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	return l.conn.Send(data)
}

func (l *Link) route(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		return // malformed control frames are dropped, never fatal
	}

	switch msg.Type {
	case TypeMute:
		l.mu.Lock()
		fn := l.onMute
		l.mu.Unlock()
		if fn != nil {
			fn(msg.Muted)
		}

	case TypeQuality:
		l.mu.Lock()
		fn := l.onQuality
		l.mu.Unlock()
		if fn != nil {
			fn(msg.Preset)
		}

	case TypePing:
		_ = l.send(Message{Type: TypePong, SentUnixMilli: msg.SentUnixMilli})

	case TypePong:
		rtt := time.Duration(time.Now().UnixMilli()-msg.SentUnixMilli) * time.Millisecond
		if rtt < 0 {
			return
		}
		l.mu.Lock()
		l.latency = rtt
		l.mu.Unlock()
	}
}
