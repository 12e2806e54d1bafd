package types

import "time"

// TierFailurePolicy decides what happens when every source in a latency
// tier errors out.
type TierFailurePolicy string

const (
	// TierFailureProceed continues the search with zero papers from the tier.
	TierFailureProceed TierFailurePolicy = "proceed"

	// TierFailureFail synthesizes a recoverable session error.
	TierFailureFail TierFailurePolicy = "fail"
)

// StreamConfig holds settings for the WebSocket stream transport.
type StreamConfig struct {
	// ServerURL is the WebSocket endpoint (e.g. "wss://host/api/search/ws").
	ServerURL string `json:"server_url" yaml:"server_url"`

	// Token is an optional bearer token sent on dial.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// DialTimeout bounds a single connection attempt (default 10s).
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`

	// MaxReconnectAttempts bounds automatic reconnection after an
	// unexpected close (default 5).
	MaxReconnectAttempts int `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`

	// ReconnectBaseDelay is the first reconnect backoff delay; it doubles
	// each attempt (default 500ms).
	ReconnectBaseDelay time.Duration `json:"reconnect_base_delay" yaml:"reconnect_base_delay"`

	// CommandRate limits outbound commands per second (default 10).
	CommandRate float64 `json:"command_rate" yaml:"command_rate"`
}

// SearchRuntimeConfig holds client-side reconciliation policy settings.
type SearchRuntimeConfig struct {
	// SlowSourceGrace is how long after the fast-sources stage completes
	// before a still-pending slow source is marked skipped for display
	// (default 8s). The server's own status always overrides the guess.
	SlowSourceGrace time.Duration `json:"slow_source_grace" yaml:"slow_source_grace"`

	// TierFailure selects the all-sources-in-tier-failed policy
	// (default proceed).
	TierFailure TierFailurePolicy `json:"tier_failure" yaml:"tier_failure"`
}

// StoreConfig holds settings for the local session store.
type StoreConfig struct {
	// Path is the SQLite database path (default "~/.config/litstream/sessions.db").
	Path string `json:"path" yaml:"path"`
}

// ClientConfig groups all litstream client configuration.
type ClientConfig struct {
	Stream StreamConfig        `json:"stream" yaml:"stream"`
	Search SearchRuntimeConfig `json:"search" yaml:"search"`
	Store  StoreConfig         `json:"store" yaml:"store"`
}

// WithDefaults returns a copy of the config with zero values replaced by
// their documented defaults.
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.Stream.DialTimeout <= 0 {
		c.Stream.DialTimeout = 10 * time.Second
	}
	if c.Stream.MaxReconnectAttempts <= 0 {
		c.Stream.MaxReconnectAttempts = 5
	}
	if c.Stream.ReconnectBaseDelay <= 0 {
		c.Stream.ReconnectBaseDelay = 500 * time.Millisecond
	}
	if c.Stream.CommandRate <= 0 {
		c.Stream.CommandRate = 10
	}
	if c.Search.SlowSourceGrace <= 0 {
		c.Search.SlowSourceGrace = 8 * time.Second
	}
	if c.Search.TierFailure == "" {
		c.Search.TierFailure = TierFailureProceed
	}
	return c
}
