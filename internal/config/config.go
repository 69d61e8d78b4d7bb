package config

import (
	"fmt"
	"os"
)

// Default configuration values (production)
const (
	DefaultDomain   = "meet.parley.sh"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:meet.parley.sh"
	DefaultTURNUser = "parley"
	DefaultTURNPass = "parley-secret"
)

// Config holds application configuration
type Config struct {
	// Domain is the backend server domain
	Domain string

	// APIBaseURL is the REST API root, constructed from domain
	APIBaseURL string

	// WebSocketBaseURL is the signaling endpoint root, constructed from domain.
	// The final signaling URL comes from the REST join response; this is the
	// fallback when the server does not advertise one.
	WebSocketBaseURL string

	// Display is the default participant name
	Display string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Display    string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("PARLEY_DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	display := opts.Display
	if display == "" {
		display = os.Getenv("PARLEY_DISPLAY")
	}
	if display == "" {
		if host, err := os.Hostname(); err == nil {
			display = host
		} else {
			display = "guest"
		}
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}
	if turnServer == "" {
		turnServer = DefaultTURN
	}

	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}
	if turnUser == "" {
		turnUser = DefaultTURNUser
	}

	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}
	if turnPass == "" {
		turnPass = DefaultTURNPass
	}

	return &Config{
		Domain:           domain,
		APIBaseURL:       fmt.Sprintf("https://%s/api/v1", domain),
		WebSocketBaseURL: fmt.Sprintf("wss://%s/ws", domain),
		Display:          display,
		STUNServer:       stunServer,
		TURNServer:       turnServer,
		TURNUser:         turnUser,
		TURNPass:         turnPass,
		ForceRelay:       opts.ForceRelay,
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

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
