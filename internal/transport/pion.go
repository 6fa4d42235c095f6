package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/MSayban1/Audio-Streamer-22222/internal/audio"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
)

// Config selects the ICE servers for a session.
type Config struct {
	STUNServers []string
}

// PionSession implements Session on a pion/webrtc PeerConnection.
type PionSession struct {
	pc   *pion.PeerConnection
	done chan struct{}

	mu      sync.Mutex
	pending []relay.Candidate
	closed  bool
}

// NewPionSession creates a session. A non-nil source is attached as the
// outgoing audio track (creator side); the joiner passes nil and receives
// the remote track through OnRemoteTrack.
func NewPionSession(cfg Config, source audio.Source) (*PionSession, error) {
	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers: []pion.ICEServer{{URLs: cfg.STUNServers}},
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	s := &PionSession{pc: pc, done: make(chan struct{})}

	if source != nil {
		track, err := pion.NewTrackLocalStaticSample(
			pion.RTPCodecCapability{MimeType: source.MimeType()},
			"audio", "aircast",
		)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add audio track: %w", err)
		}
		go s.pumpSamples(track, source)
	}

	return s, nil
}

// pumpSamples feeds source frames into the outgoing track until the source
// or the session stops.
func (s *PionSession) pumpSamples(track *pion.TrackLocalStaticSample, source audio.Source) {
	for {
		select {
		case <-s.done:
			return
		case frame, ok := <-source.Frames():
			if !ok {
				return
			}
			if err := track.WriteSample(media.Sample{Data: frame.Data, Duration: frame.Duration}); err != nil {
				slog.Debug("write sample failed", "error", err)
				return
			}
		}
	}
}

func (s *PionSession) CreateOffer() (relay.Description, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return relay.Description{}, err
	}
	return relay.Description{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (s *PionSession) CreateAnswer() (relay.Description, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return relay.Description{}, err
	}
	return relay.Description{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (s *PionSession) SetLocalDescription(d relay.Description) error {
	desc, err := toPionDescription(d)
	if err != nil {
		return err
	}
	// Candidate gathering starts here; callers registered OnLocalCandidate
	// beforehand and candidates trickle out as they are found.
	return s.pc.SetLocalDescription(desc)
}

func (s *PionSession) SetRemoteDescription(d relay.Description) error {
	desc, err := toPionDescription(d)
	if err != nil {
		return err
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	s.flushPending()
	return nil
}

// AddRemoteCandidate applies a candidate, queueing it when the remote
// description has not arrived yet.
func (s *PionSession) AddRemoteCandidate(c relay.Candidate) error {
	var init pion.ICECandidateInit
	if err := json.Unmarshal(c, &init); err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}

	s.mu.Lock()
	if s.pc.RemoteDescription() == nil {
		s.pending = append(s.pending, c)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.pc.AddICECandidate(init)
}

func (s *PionSession) flushPending() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		var init pion.ICECandidateInit
		if err := json.Unmarshal(c, &init); err != nil {
			continue
		}
		if err := s.pc.AddICECandidate(init); err != nil {
			slog.Debug("apply queued candidate failed", "error", err)
		}
	}
}

func (s *PionSession) SignalingStable() bool {
	return s.pc.SignalingState() == pion.SignalingStateStable
}

func (s *PionSession) OnLocalCandidate(fn func(relay.Candidate)) {
	s.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return // end of gathering
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(raw)
	})
}

func (s *PionSession) OnRemoteTrack(fn func(audio.RemoteAudio)) {
	s.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		fn(&remoteTrack{track: track})
	})
}

func (s *PionSession) OnConnectionStateChange(fn func(State)) {
	s.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		fn(mapState(state))
	})
}

func (s *PionSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	return s.pc.Close()
}

type remoteTrack struct {
	track *pion.TrackRemote
}

func (r *remoteTrack) ID() string { return r.track.ID() }

func (r *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.track.ReadRTP()
	return pkt, err
}

func toPionDescription(d relay.Description) (pion.SessionDescription, error) {
	var sdpType pion.SDPType
	switch d.Type {
	case "offer":
		sdpType = pion.SDPTypeOffer
	case "answer":
		sdpType = pion.SDPTypeAnswer
	default:
		return pion.SessionDescription{}, fmt.Errorf("unexpected description type: %s", d.Type)
	}
	return pion.SessionDescription{Type: sdpType, SDP: d.SDP}, nil
}

func mapState(state pion.PeerConnectionState) State {
	switch state {
	case pion.PeerConnectionStateNew:
		return StateNew
	case pion.PeerConnectionStateConnecting:
		return StateConnecting
	case pion.PeerConnectionStateConnected:
		return StateConnected
	case pion.PeerConnectionStateDisconnected:
		return StateDisconnected
	case pion.PeerConnectionStateFailed:
		return StateFailed
	case pion.PeerConnectionStateClosed:
		return StateClosed
	default:
		return StateNew
	}
}
