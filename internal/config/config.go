package config

import (
	"fmt"
	"os"
)

// Default configuration values (production)
const (
	DefaultDomain  = "aircast.qzz.io"
	DefaultSTUN    = "stun:stun.l.google.com:19302"
	DefaultQuality = "medium"
)

// QualityPresets are the stream quality levels the peers negotiate over the
// control channel.
var QualityPresets = []string{"low", "medium", "high"}

// Config holds application configuration
type Config struct {
	// Domain is the relay server domain
	Domain string

	// RelayURL is the websocket endpoint of the relay, constructed from
	// the domain unless overridden
	RelayURL string

	// STUN server for WebRTC
	STUNServer string

	// Quality is the initial stream quality preset
	Quality string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	RelayURL   string
	STUNServer string
	Quality    string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	relayURL := opts.RelayURL
	if relayURL == "" {
		relayURL = os.Getenv("RELAY_URL")
	}
	if relayURL == "" {
		relayURL = fmt.Sprintf("wss://%s/ws", domain)
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	quality := opts.Quality
	if quality == "" {
		quality = os.Getenv("AUDIO_QUALITY")
	}
	if quality == "" {
		quality = DefaultQuality
	}
	if !validQuality(quality) {
		return nil, fmt.Errorf("unknown quality preset %q (valid: low, medium, high)", quality)
	}

	return &Config{
		Domain:     domain,
		RelayURL:   relayURL,
		STUNServer: stunServer,
		Quality:    quality,
	}, nil
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/r/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

func validQuality(q string) bool {
	for _, p := range QualityPresets {
		if q == p {
			return true
		}
	}
	return false
}
