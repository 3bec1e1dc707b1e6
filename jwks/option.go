package jwks

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

// Option configures a Provider or CachingProvider.
// Options return errors to enable validation during construction.
type Option func(*config) error

type config struct {
	issuerURL          *url.URL
	jwksURL            *url.URL
	client             *http.Client
	cacheTTL           time.Duration
	minRefreshInterval time.Duration
	logger             Logger
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		client:             &http.Client{Timeout: DefaultFetchTimeout},
		cacheTTL:           DefaultCacheTTL,
		minRefreshInterval: DefaultMinRefreshInterval,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.issuerURL == nil && cfg.jwksURL == nil {
		return nil, errors.New("either an issuer URL or a JWKS URL is required (use WithIssuerURL or WithJWKSURL)")
	}

	return cfg, nil
}

// WithIssuerURL sets the issuer whose well-known configuration document is
// used to discover the JWKS URI.
func WithIssuerURL(issuerURL *url.URL) Option {
	return func(cfg *config) error {
		if issuerURL == nil {
			return errors.New("issuer URL cannot be nil")
		}
		cfg.issuerURL = issuerURL
		return nil
	}
}

// WithJWKSURL sets the JWKS endpoint directly, skipping OIDC discovery.
func WithJWKSURL(jwksURL *url.URL) Option {
	return func(cfg *config) error {
		if jwksURL == nil {
			return errors.New("JWKS URL cannot be nil")
		}
		cfg.jwksURL = jwksURL
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client for discovery and JWKS fetches.
// The default client carries a DefaultFetchTimeout timeout; a custom client
// should set its own.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) error {
		if client == nil {
			return errors.New("HTTP client cannot be nil")
		}
		cfg.client = client
		return nil
	}
}

// WithCacheTTL sets how long a fetched key set is served before a lookup
// triggers a refresh.
//
// Default: DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl <= 0 {
			return errors.New("cache TTL must be positive")
		}
		cfg.cacheTTL = ttl
		return nil
	}
}

// WithMinRefreshInterval sets the minimum time between refreshes triggered
// by lookups for unknown key IDs.
//
// Default: DefaultMinRefreshInterval.
func WithMinRefreshInterval(interval time.Duration) Option {
	return func(cfg *config) error {
		if interval < 0 {
			return errors.New("minimum refresh interval cannot be negative")
		}
		cfg.minRefreshInterval = interval
		return nil
	}
}

// WithLogger sets an optional logger for refresh diagnostics.
func WithLogger(logger Logger) Option {
	return func(cfg *config) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
