package cmd

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MSayban1/Audio-Streamer-22222/internal/audio"
	"github.com/MSayban1/Audio-Streamer-22222/internal/config"
	"github.com/MSayban1/Audio-Streamer-22222/internal/control"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay/wsrelay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/roomid"
	"github.com/MSayban1/Audio-Streamer-22222/internal/session"
	"github.com/MSayban1/Audio-Streamer-22222/internal/transport"
	"github.com/MSayban1/Audio-Streamer-22222/internal/ui"
)

// SessionContext bundles the relay connection and configuration shared by
// the share and listen flows.
type SessionContext struct {
	Store  *wsrelay.Client
	Config *config.Config
}

func NewSessionContext(cfg *config.Config) (*SessionContext, error) {
	store, err := wsrelay.Dial(cfg.RelayURL)
	if err != nil {
		return nil, session.NewError("connect to relay", err)
	}
	return &SessionContext{Store: store, Config: cfg}, nil
}

func (c *SessionContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, session.NewError("load config", err)
	}
	return cfg, nil
}

func newTransport(cfg *config.Config, source audio.Source) (*transport.PionSession, error) {
	sess, err := transport.NewPionSession(transport.Config{
		STUNServers: cfg.GetSTUNServers(),
	}, source)
	if err != nil {
		return nil, session.NewError("create transport", err)
	}
	return sess, nil
}

// liveState is the mutable session state the live view polls and the
// control link mutates.
type liveState struct {
	mu      sync.Mutex
	muted   bool
	quality string
	link    *control.Link
}

func newLiveState(quality string) *liveState {
	return &liveState{quality: quality}
}

func (s *liveState) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *liveState) Quality() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}

func (s *liveState) Latency() time.Duration {
	s.mu.Lock()
	link := s.link
	s.mu.Unlock()
	if link == nil {
		return 0
	}
	return link.Latency()
}

func (s *liveState) setLink(link *control.Link) {
	s.mu.Lock()
	s.link = link
	s.mu.Unlock()

	link.OnMute(func(muted bool) {
		s.mu.Lock()
		s.muted = muted
		s.mu.Unlock()
	})
	link.OnQuality(func(preset string) {
		s.mu.Lock()
		s.quality = preset
		s.mu.Unlock()
	})
}

// ToggleMute flips the local mute flag and tells the peer.
func (s *liveState) ToggleMute() {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	link := s.link
	s.mu.Unlock()
	if link != nil {
		link.SendMute(muted)
	}
}

// SetQuality applies a preset locally and tells the peer.
func (s *liveState) SetQuality(preset string) {
	s.mu.Lock()
	s.quality = preset
	link := s.link
	s.mu.Unlock()
	if link != nil {
		link.SendQuality(preset)
	}
}

// pingLoop measures round trips until stop is closed.
func (s *liveState) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			link := s.link
			s.mu.Unlock()
			if link != nil && link.Open() {
				link.Ping()
			}
		case <-stop:
			return
		}
	}
}

func parseRoomInput(input string) (string, error) {
	if strings.Contains(input, "://") {
		extracted, err := extractRoomIDFromURL(input)
		if err != nil {
			return "", err
		}
		ui.PrintSuccessf("Extracted room ID: %s", extracted)
		input = extracted
	}
	id, err := roomid.Validate(input)
	if err != nil {
		return "", err
	}
	return id, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", session.NewError("parse URL", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

// outcomeText names the way a session ended.
func outcomeText(st session.State) string {
	switch st {
	case session.StateDisconnected:
		return "Disconnected"
	case session.StateFailed:
		return "Failed"
	default:
		return st.String()
	}
}
