package server

import (
	"net/http"
	"time"

	"github.com/cascadegame/cascade/pkg/admission"
)

// SessionConfig holds configuration for individual client sessions.
type SessionConfig struct {
	// NameMaxLength is the maximum length of a player name or typed
	// lobby ID. Long enough for names, short enough that a hostile
	// client cannot grow the prompt buffer without bound.
	// Default: 15.
	NameMaxLength int

	// LobbyJoinInterval is the minimum time between join attempts on
	// the lobby ID prompt, slowing down brute-force ID guessing.
	// Default: 1 second.
	LobbyJoinInterval time.Duration

	// WriteTimeout is the maximum time to wait when sending an update.
	// Default: 10 seconds.
	WriteTimeout time.Duration
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		NameMaxLength:     15,
		LobbyJoinInterval: time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ServerConfig holds configuration for the cascade server.
type ServerConfig struct {
	// TCPAddress is the address for raw TCP connections.
	// Default: ":12345".
	TCPAddress string

	// HTTPAddress is the address for the HTTP surface: the websocket
	// endpoint, health check and metrics.
	// Default: ":54321".
	HTTPAddress string

	// HighScorePath is the path of the high score file.
	// Default: "cascade_high_scores.txt".
	HighScorePath string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the websocket request origin.
	// Default: allows all origins; the game is also reachable over
	// plain TCP, so the websocket endpoint guards nothing extra.
	CheckOrigin func(r *http.Request) bool

	// TrustedProxies lists trusted reverse proxy IPs or CIDRs for the
	// websocket endpoint. When the peer address is trusted, the client
	// address is taken from X-Real-IP / X-Forwarded-For instead; a
	// trusted peer that sends neither header is rejected.
	// Default: nil (don't trust proxy headers).
	TrustedProxies []string

	// Admission configures the per-address connection ceiling.
	Admission admission.Config

	// Session configuration

	// SessionConfig is the configuration for individual sessions.
	// Default: DefaultSessionConfig().
	SessionConfig *SessionConfig

	// Server lifecycle

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		TCPAddress:      ":12345",
		HTTPAddress:     ":54321",
		HighScorePath:   "cascade_high_scores.txt",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
		Admission:       admission.DefaultConfig(),
		SessionConfig:   DefaultSessionConfig(),
		ShutdownTimeout: 30 * time.Second,
	}
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.SessionConfig = c.SessionConfig.Clone()
	if c.TrustedProxies != nil {
		clone.TrustedProxies = append([]string(nil), c.TrustedProxies...)
	}
	return &clone
}

// WithTCPAddress sets the TCP address and returns the config for chaining.
func (c *ServerConfig) WithTCPAddress(addr string) *ServerConfig {
	c.TCPAddress = addr
	return c
}

// WithHTTPAddress sets the HTTP address and returns the config for chaining.
func (c *ServerConfig) WithHTTPAddress(addr string) *ServerConfig {
	c.HTTPAddress = addr
	return c
}

// WithHighScorePath sets the high score file path and returns the config
// for chaining.
func (c *ServerConfig) WithHighScorePath(path string) *ServerConfig {
	c.HighScorePath = path
	return c
}

// WithTrustedProxies sets the trusted proxies and returns the config for
// chaining.
func (c *ServerConfig) WithTrustedProxies(proxies []string) *ServerConfig {
	c.TrustedProxies = proxies
	return c
}

func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		return defaults
	}
	if c.TCPAddress == "" {
		c.TCPAddress = defaults.TCPAddress
	}
	if c.HTTPAddress == "" {
		c.HTTPAddress = defaults.HTTPAddress
	}
	if c.HighScorePath == "" {
		c.HighScorePath = defaults.HighScorePath
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = defaults.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = defaults.WriteBufferSize
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = defaults.CheckOrigin
	}
	if c.SessionConfig == nil {
		c.SessionConfig = defaults.SessionConfig
	} else {
		if c.SessionConfig.NameMaxLength == 0 {
			c.SessionConfig.NameMaxLength = defaults.SessionConfig.NameMaxLength
		}
		if c.SessionConfig.LobbyJoinInterval == 0 {
			c.SessionConfig.LobbyJoinInterval = defaults.SessionConfig.LobbyJoinInterval
		}
		if c.SessionConfig.WriteTimeout == 0 {
			c.SessionConfig.WriteTimeout = defaults.SessionConfig.WriteTimeout
		}
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	return c
}
