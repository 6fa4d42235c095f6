// Package transport abstracts the real-time transport engine. The
// connection controllers only see the Session interface; the pion-backed
// implementation lives in pion.go.
package transport

import (
	"github.com/MSayban1/Audio-Streamer-22222/internal/audio"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
)

// State is the transport-level connection state, reported through
// OnConnectionStateChange.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one side of a peer transport connection. Descriptions and
// candidates pass through it verbatim; the session handles media transport,
// NAT traversal and encryption internally.
//
// Event callbacks must be registered before the operation that can trigger
// them; in particular OnLocalCandidate before a local description is set,
// since candidate discovery starts immediately afterwards.
type Session interface {
	CreateOffer() (relay.Description, error)
	CreateAnswer() (relay.Description, error)
	SetLocalDescription(relay.Description) error
	SetRemoteDescription(relay.Description) error

	// AddRemoteCandidate applies a remote candidate. Candidates arriving
	// before the remote description are queued internally and applied
	// once it lands.
	AddRemoteCandidate(relay.Candidate) error

	// SignalingStable reports whether the offer/answer exchange has
	// settled. Used to guard against applying a duplicate remote answer.
	SignalingStable() bool

	OnLocalCandidate(func(relay.Candidate))
	OnRemoteTrack(func(audio.RemoteAudio))
	OnConnectionStateChange(func(State))

	Close() error
}
