package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/rtp"

	"github.com/MSayban1/Audio-Streamer-22222/internal/audio"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/transport"
)

// fakeSession is a deterministic transport.Session. Local candidates are
// emitted synchronously when the local description is set, and remote
// candidates arriving before the remote description are queued, matching
// the contract the controllers rely on.
type fakeSession struct {
	name            string
	localCandidates []string

	failOffer bool

	mu            sync.Mutex
	localDesc     *relay.Description
	remoteDesc    *relay.Description
	applied       []string
	pending       []string
	remoteApplies int
	closed        bool

	onCandidate func(relay.Candidate)
	onTrack     func(audio.RemoteAudio)
	onState     func(transport.State)
}

func newFakeSession(name string, candidates ...string) *fakeSession {
	return &fakeSession{name: name, localCandidates: candidates}
}

type candidatePayload struct {
	Candidate string `json:"candidate"`
}

func candidateJSON(s string) relay.Candidate {
	raw, _ := json.Marshal(candidatePayload{Candidate: s})
	return relay.Candidate(raw)
}

func (f *fakeSession) CreateOffer() (relay.Description, error) {
	if f.failOffer {
		return relay.Description{}, errors.New("offer refused")
	}
	return relay.Description{Type: "offer", SDP: "v=0 offer " + f.name}, nil
}

func (f *fakeSession) CreateAnswer() (relay.Description, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remoteDesc == nil {
		return relay.Description{}, errors.New("no remote offer")
	}
	return relay.Description{Type: "answer", SDP: "v=0 answer " + f.name}, nil
}

func (f *fakeSession) SetLocalDescription(d relay.Description) error {
	f.mu.Lock()
	f.localDesc = &d
	fn := f.onCandidate
	f.mu.Unlock()

	if fn != nil {
		for _, c := range f.localCandidates {
			fn(candidateJSON(c))
		}
	}
	return nil
}

func (f *fakeSession) SetRemoteDescription(d relay.Description) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteDesc = &d
	f.remoteApplies++
	f.applied = append(f.applied, f.pending...)
	f.pending = nil
	return nil
}

func (f *fakeSession) AddRemoteCandidate(cand relay.Candidate) error {
	var p candidatePayload
	if err := json.Unmarshal(cand, &p); err != nil || p.Candidate == "" {
		return fmt.Errorf("unusable candidate %q", string(cand))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remoteDesc == nil {
		f.pending = append(f.pending, p.Candidate)
		return nil
	}
	f.applied = append(f.applied, p.Candidate)
	return nil
}

func (f *fakeSession) SignalingStable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.localDesc != nil && f.remoteDesc != nil
}

func (f *fakeSession) OnLocalCandidate(fn func(relay.Candidate)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCandidate = fn
}

func (f *fakeSession) OnRemoteTrack(fn func(audio.RemoteAudio)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrack = fn
}

func (f *fakeSession) OnConnectionStateChange(fn func(transport.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = fn
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) fireState(st transport.State) {
	f.mu.Lock()
	fn := f.onState
	f.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (f *fakeSession) fireTrack(track audio.RemoteAudio) {
	f.mu.Lock()
	fn := f.onTrack
	f.mu.Unlock()
	if fn != nil {
		fn(track)
	}
}

func (f *fakeSession) appliedCandidates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func (f *fakeSession) remoteApplyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remoteApplies
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeSink records sink calls; Start can be made to fail once so the
// playback retry path is observable.
type fakeSink struct {
	mu       sync.Mutex
	bound    audio.RemoteAudio
	starts   int
	stops    int
	startErr error
}

func (s *fakeSink) Bind(track audio.RemoteAudio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = track
}

func (s *fakeSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	err := s.startErr
	s.startErr = nil
	return err
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

type fakeTrack struct{ id string }

func (t *fakeTrack) ID() string                    { return t.id }
func (t *fakeTrack) ReadRTP() (*rtp.Packet, error) { return nil, io.EOF }
