// Package audio holds the media collaborators around the connection core:
// a Source of encoded audio frames on the creator side and a Sink rendering
// the remote stream on the joiner side. Real capture and playback devices
// live behind these interfaces; the shipped implementations are a synthetic
// tone source and a level-metering sink, enough for loopback sessions and
// diagnostics.
package audio

import (
	"context"
	"errors"
	"math"
	"time"
)

// Media errors surfaced by sources and sinks.
var (
	// ErrMediaAccessDenied: the capture collaborator refused access
	// (user canceled the system prompt).
	ErrMediaAccessDenied = errors.New("media access denied")

	// ErrNoAudioTrack: capture succeeded but produced no usable audio
	// track (system audio not shared).
	ErrNoAudioTrack = errors.New("no audio track in captured media")

	// ErrPlaybackBlocked: the sink refused to start playing. Non-fatal to
	// the connection; retried by an explicit user action.
	ErrPlaybackBlocked = errors.New("playback blocked, retry required")
)

// Frame is one encoded audio frame.
type Frame struct {
	Data     []byte
	Duration time.Duration
}

// Source produces encoded audio frames for the outgoing track.
type Source interface {
	// MimeType identifies the frame encoding (a WebRTC mime type).
	MimeType() string

	// Frames returns the frame stream. The channel closes when the
	// source stops.
	Frames() <-chan Frame

	Close() error
}

const (
	toneSampleRate = 8000
	toneFrame      = 20 * time.Millisecond
	toneSamples    = int(toneSampleRate * toneFrame / time.Second) // 160
)

// ToneSource is a diagnostic Source generating a G.711 µ-law sine tone at
// 8kHz mono, 20ms frames. It stands in for system-audio capture during
// loopback testing.
type ToneSource struct {
	frames chan Frame
	cancel context.CancelFunc
}

// NewToneSource starts generating a tone at the given frequency.
func NewToneSource(freqHz float64) *ToneSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ToneSource{
		frames: make(chan Frame, 8),
		cancel: cancel,
	}
	go s.run(ctx, freqHz)
	return s
}

func (s *ToneSource) MimeType() string     { return "audio/PCMU" }
func (s *ToneSource) Frames() <-chan Frame { return s.frames }

func (s *ToneSource) Close() error {
	s.cancel()
	return nil
}

func (s *ToneSource) run(ctx context.Context, freqHz float64) {
	defer close(s.frames)

	ticker := time.NewTicker(toneFrame)
	defer ticker.Stop()

	var phase float64
	step := 2 * math.Pi * freqHz / toneSampleRate

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		data := make([]byte, toneSamples)
		for i := range data {
			sample := int16(0.5 * math.MaxInt16 * math.Sin(phase))
			data[i] = linearToMulaw(sample)
			phase += step
		}

		select {
		case s.frames <- Frame{Data: data, Duration: toneFrame}:
		case <-ctx.Done():
			return
		}
	}
}

const mulawBias = 0x84

// linearToMulaw encodes one 16-bit PCM sample as G.711 µ-law.
func linearToMulaw(sample int16) byte {
	sign := byte(0)
	v := int32(sample)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	v += mulawBias
	if v > 0x7FFF {
		v = 0x7FFF
	}

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

// mulawToLinear decodes one µ-law byte back to 16-bit PCM.
func mulawToLinear(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	v := (int32(mantissa)<<3 + mulawBias) << exponent
	v -= mulawBias
	if sign != 0 {
		v = -v
	}
	return int16(v)
}
