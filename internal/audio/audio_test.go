package audio

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/pion/rtp"
)

func TestMulawRoundTrip(t *testing.T) {
	// µ-law is lossy; round-tripped samples must stay within the step
	// size of their magnitude segment.
	for _, sample := range []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, 20000, math.MaxInt16, math.MinInt16 + 1} {
		decoded := mulawToLinear(linearToMulaw(sample))
		diff := math.Abs(float64(decoded) - float64(sample))
		tolerance := math.Max(64, math.Abs(float64(sample))/16)
		if diff > tolerance {
			t.Errorf("sample %d round-tripped to %d (diff %.0f > %.0f)", sample, decoded, diff, tolerance)
		}
	}
}

func TestToneSourceProducesFrames(t *testing.T) {
	src := NewToneSource(440)
	defer src.Close()

	if src.MimeType() != "audio/PCMU" {
		t.Fatalf("mime type = %q", src.MimeType())
	}

	select {
	case frame := <-src.Frames():
		if len(frame.Data) != toneSamples {
			t.Fatalf("frame size = %d, want %d", len(frame.Data), toneSamples)
		}
		if frame.Duration != toneFrame {
			t.Fatalf("frame duration = %v, want %v", frame.Duration, toneFrame)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame produced")
	}
}

func TestToneSourceCloseEndsStream(t *testing.T) {
	src := NewToneSource(440)
	src.Close()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-src.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frame channel not closed after Close")
		}
	}
}

// fakeRemote serves a fixed set of RTP packets then blocks until closed.
type fakeRemote struct {
	packets chan *rtp.Packet
}

func newFakeRemote(payloads ...[]byte) *fakeRemote {
	f := &fakeRemote{packets: make(chan *rtp.Packet, len(payloads))}
	for _, p := range payloads {
		f.packets <- &rtp.Packet{Payload: p}
	}
	return f
}

func (f *fakeRemote) ID() string { return "fake" }

func (f *fakeRemote) ReadRTP() (*rtp.Packet, error) {
	pkt, ok := <-f.packets
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

func TestMeterSinkStartBeforeBindIsBlocked(t *testing.T) {
	sink := NewMeterSink()
	if err := sink.Start(); !errors.Is(err, ErrPlaybackBlocked) {
		t.Fatalf("Start before Bind = %v, want ErrPlaybackBlocked", err)
	}

	// Binding makes the same action succeed on retry.
	sink.Bind(newFakeRemote())
	if err := sink.Start(); err != nil {
		t.Fatalf("Start after Bind failed: %v", err)
	}
	sink.Stop()
}

func TestMeterSinkCountsPackets(t *testing.T) {
	loud := make([]byte, 160)
	for i := range loud {
		loud[i] = linearToMulaw(20000)
	}
	remote := newFakeRemote(loud, loud)
	close(remote.packets)

	sink := NewMeterSink()
	sink.Bind(remote)
	if err := sink.Start(); err != nil {
		t.Fatal(err)
	}
	defer sink.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		packets, bytes := sink.Stats()
		if packets == 2 && bytes == 320 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats = %d packets / %d bytes, want 2 / 320", packets, bytes)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if level := sink.Level(); level <= 0 {
		t.Fatalf("level = %v, want > 0 for a loud signal", level)
	}
}
