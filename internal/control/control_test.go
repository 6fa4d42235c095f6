package control

import (
	"sync"
	"testing"
	"time"
)

// pipeConn is an in-process Conn; Send delivers to the peer's OnMessage.
type pipeConn struct {
	mu     sync.Mutex
	peer   *pipeConn
	onMsg  func([]byte)
	onOpen func()
}

func newPipePair() (*pipeConn, *pipeConn) {
	a := &pipeConn{}
	b := &pipeConn{}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *pipeConn) Send(data []byte) error {
	p.peer.mu.Lock()
	fn := p.peer.onMsg
	p.peer.mu.Unlock()
	if fn != nil {
		fn(data)
	}
	return nil
}

func (p *pipeConn) OnMessage(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMsg = fn
}

func (p *pipeConn) OnOpen(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOpen = fn
}

func (p *pipeConn) Close() error { return nil }

func TestCodecRoundTrip(t *testing.T) {
	in := Message{Type: TypeQuality, Preset: "high"}
	data, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte{0xc1, 0xff, 0x00}); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}

func TestMuteAndQualityRouting(t *testing.T) {
	a, b := newPipePair()
	sender := NewLink(a)
	receiver := NewLink(b)

	mutes := make(chan bool, 1)
	presets := make(chan string, 1)
	receiver.OnMute(func(m bool) { mutes <- m })
	receiver.OnQuality(func(p string) { presets <- p })

	if err := sender.SendMute(true); err != nil {
		t.Fatal(err)
	}
	if err := sender.SendQuality("medium"); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-mutes:
		if !m {
			t.Fatal("mute = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("mute not delivered")
	}
	select {
	case p := <-presets:
		if p != "medium" {
			t.Fatalf("preset = %q, want %q", p, "medium")
		}
	case <-time.After(time.Second):
		t.Fatal("preset not delivered")
	}
}

func TestPingIsAnswered(t *testing.T) {
	a, b := newPipePair()
	pinger := NewLink(a)
	NewLink(b) // answers pings automatically

	pongs := make(chan Message, 1)
	// Tap the raw frames flowing back to the pinger.
	prev := a.onMsg
	a.OnMessage(func(data []byte) {
		if msg, err := Decode(data); err == nil && msg.Type == TypePong {
			pongs <- msg
		}
		prev(data)
	})

	if err := pinger.Ping(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-pongs:
	case <-time.After(time.Second):
		t.Fatal("ping was not answered")
	}
}

func TestPongUpdatesLatency(t *testing.T) {
	a, b := newPipePair()
	link := NewLink(a)

	// A pong stamped 40ms in the past yields a ~40ms round trip.
	data, err := Encode(Message{Type: TypePong, SentUnixMilli: time.Now().UnixMilli() - 40})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Send(data); err != nil {
		t.Fatal(err)
	}

	got := link.Latency()
	if got < 40*time.Millisecond || got > 2*time.Second {
		t.Fatalf("latency = %v, want around 40ms", got)
	}
}
