// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every component that makes
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with outbound requests
	// (e.g. "olivia/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxConcurrent caps the total number of simultaneous outbound
	// requests across all upstreams (default 10).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// PerHostLimit caps simultaneous requests to a single host (default 5).
	PerHostLimit int `json:"per_host_limit" yaml:"per_host_limit" mapstructure:"per_host_limit"`
}

// RetryConfig is the single retry policy shared by the token exchange and
// every service adapter. Transient failures (network errors, timeouts, and
// the retryable status set) are retried with exponential backoff and jitter.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt
	// (default 3 for idempotent requests).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// BaseDelay is the first backoff delay (default 500ms).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`

	// MaxDelay caps the exponential growth (default 30s).
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`

	// BackoffFactor multiplies the delay after each attempt (default 2.0).
	BackoffFactor float64 `json:"backoff_factor" yaml:"backoff_factor" mapstructure:"backoff_factor"`

	// JitterFactor randomizes each delay by up to this fraction (default 0.1).
	JitterFactor float64 `json:"jitter_factor" yaml:"jitter_factor" mapstructure:"jitter_factor"`
}

// AuthStyle selects where OAuth2 client credentials are placed in the token
// exchange request. Upstreams on the PISTE platform accept HTTP Basic; a few
// sandboxes only accept credentials in the form body.
type AuthStyle string

const (
	AuthStyleBasic AuthStyle = "basic"
	AuthStyleBody  AuthStyle = "body"
)

// ServiceConfig holds the per-upstream configuration: endpoints, OAuth2
// client credentials, and the feature flag that enables the service.
type ServiceConfig struct {
	// BaseURL is the root of the service's search API.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// TokenURL is the OAuth2 client-credentials token endpoint.
	TokenURL string `json:"token_url" yaml:"token_url" mapstructure:"token_url"`

	// ClientID and ClientSecret authenticate this application (not an
	// end user) to the token endpoint.
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty" mapstructure:"client_secret"`

	// Scope is an optional space-separated OAuth2 scope string.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty" mapstructure:"scope"`

	// AuthStyle selects Basic-Auth or in-body credentials (default basic).
	AuthStyle AuthStyle `json:"auth_style,omitempty" yaml:"auth_style,omitempty" mapstructure:"auth_style"`

	// Enabled turns the service on. A disabled or unconfigured service is
	// reported as skipped, never as an error.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// CacheConfig holds settings for the persistent search cache.
type CacheConfig struct {
	// Path is the SQLite database file (default "olivia.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// TTL is the maximum age of a cached search before it is treated as a
	// miss (default 30 minutes).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// EngineConfig holds settings for the search orchestrator.
type EngineConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Retry is the shared retry policy for all outbound requests.
	Retry RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`

	// ExecuteTimeout bounds one whole orchestrated search, fan-out
	// included (default 30s). Adapters still running at the deadline are
	// recorded as timed out, not dropped.
	ExecuteTimeout time.Duration `json:"execute_timeout" yaml:"execute_timeout" mapstructure:"execute_timeout"`

	// TokenSafetyMargin is subtracted from a token's advertised lifetime
	// so a token is never handed out with less validity than in-flight
	// requests need (default 60s).
	TokenSafetyMargin time.Duration `json:"token_safety_margin" yaml:"token_safety_margin" mapstructure:"token_safety_margin"`

	// PageSize is the default number of results requested per service
	// (default 10).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`
}

// Config is the full application configuration loaded from olivia.yaml,
// environment variables, and the secrets directory.
type Config struct {
	Engine EngineConfig `json:"engine" yaml:"engine" mapstructure:"engine"`
	Cache  CacheConfig  `json:"cache" yaml:"cache" mapstructure:"cache"`

	// Services maps service id (legifrance, judilibre, justice) to its
	// configuration.
	Services map[string]ServiceConfig `json:"services" yaml:"services" mapstructure:"services"`
}

// Defaults returns the built-in configuration used when no config file is
// present. Credentials are expected from the environment or .secrets/.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			HTTPConfig: HTTPConfig{
				Timeout:       15 * time.Second,
				UserAgent:     "olivia/0.1",
				MaxConcurrent: 10,
				PerHostLimit:  5,
			},
			Retry: RetryConfig{
				MaxRetries:    3,
				BaseDelay:     500 * time.Millisecond,
				MaxDelay:      30 * time.Second,
				BackoffFactor: 2.0,
				JitterFactor:  0.1,
			},
			ExecuteTimeout:    30 * time.Second,
			TokenSafetyMargin: 60 * time.Second,
			PageSize:          10,
		},
		Cache: CacheConfig{
			Path: "olivia.db",
			TTL:  30 * time.Minute,
		},
		Services: map[string]ServiceConfig{},
	}
}
