package audio

import (
	"context"
	"math"
	"sync"

	"github.com/pion/rtp"
)

// RemoteAudio is the incoming media stream handed over by the transport
// layer once the remote track arrives.
type RemoteAudio interface {
	// ID identifies the remote track.
	ID() string

	// ReadRTP blocks for the next media packet.
	ReadRTP() (*rtp.Packet, error)
}

// Sink renders a remote audio stream. Binding the stream and starting
// playback are separate steps: playback may be refused (ErrPlaybackBlocked)
// and retried by explicit user action while the stream stays bound.
type Sink interface {
	Bind(stream RemoteAudio)

	// Start begins playback. Returns ErrPlaybackBlocked when no stream is
	// bound yet or the output device refuses; both are retryable.
	Start() error

	Stop()
}

// MeterSink consumes the remote stream and exposes a smoothed signal level
// for the live view. It stands in for a speaker device in loopback sessions.
type MeterSink struct {
	mu      sync.Mutex
	stream  RemoteAudio
	cancel  context.CancelFunc
	level   float64
	packets uint64
	bytes   uint64
}

// NewMeterSink creates an idle sink.
func NewMeterSink() *MeterSink {
	return &MeterSink{}
}

// Bind attaches the remote stream. Playback does not start until Start.
func (m *MeterSink) Bind(stream RemoteAudio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stream = stream
}

// Start begins draining the stream and updating the meter.
func (m *MeterSink) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return ErrPlaybackBlocked
	}
	if m.cancel != nil {
		return nil // already playing
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.drain(ctx, m.stream)
	return nil
}

// Stop halts playback. The stream stays bound; Start resumes it.
func (m *MeterSink) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Level returns the current signal level in [0, 1].
func (m *MeterSink) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Stats returns packets and bytes received so far.
func (m *MeterSink) Stats() (packets, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packets, m.bytes
}

func (m *MeterSink) drain(ctx context.Context, stream RemoteAudio) {
	for {
		if ctx.Err() != nil {
			return
		}
		pkt, err := stream.ReadRTP()
		if err != nil {
			return
		}

		level := rmsLevel(pkt.Payload)

		m.mu.Lock()
		m.packets++
		m.bytes += uint64(len(pkt.Payload))
		// Exponential smoothing keeps the meter readable.
		m.level = 0.7*m.level + 0.3*level
		m.mu.Unlock()
	}
}

// rmsLevel treats the payload as µ-law samples and computes a normalized
// RMS. For other codecs the result is only an activity indicator, which is
// all the meter needs.
func rmsLevel(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}
	var sum float64
	for _, b := range payload {
		s := float64(mulawToLinear(b)) / math.MaxInt16
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(payload)))
}
