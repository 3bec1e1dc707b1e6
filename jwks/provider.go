// Package jwks supplies the public signing keys used to verify bearer
// tokens. Keys are fetched from the identity provider's JWKS endpoint,
// either configured directly or discovered from the issuer's well-known
// configuration document, and cached as a single atomically replaced set.
package jwks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/nsslabs/entra-auth-backend/internal/oidc"
)

const (
	// DefaultCacheTTL is how long a fetched key set is considered fresh.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultMinRefreshInterval bounds how often an unknown key ID may
	// trigger an early refresh. Without it a flood of tokens carrying
	// bogus key IDs would turn into a flood of outbound fetches.
	DefaultMinRefreshInterval = 30 * time.Second

	// DefaultFetchTimeout bounds a single outbound JWKS or discovery
	// request so a provider outage fails fast instead of hanging every
	// in-flight validation.
	DefaultFetchTimeout = 10 * time.Second

	// maxJWKSBodySize limits the response body we are willing to parse.
	// JWKS documents are typically under 10KB.
	maxJWKSBodySize = 1 << 20
)

// ErrKeyNotFound is returned by GetKey when the requested key ID is not
// present in the current key set, after any refresh the lookup was allowed
// to trigger.
var ErrKeyNotFound = errors.New("no signing key found for the requested key ID")

// Logger is the subset of a leveled logger the provider uses for
// operator-facing diagnostics, such as refreshes degrading to a stale set.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Provider fetches a JWKS document on every call. Most callers want
// CachingProvider instead; Provider exists for one-shot fetches and as the
// fetch layer underneath the cache.
type Provider struct {
	issuerURL *url.URL
	jwksURL   *url.URL
	client    *http.Client

	// Discovered JWKS URI, cached after the first successful discovery.
	discoveryMu sync.Mutex
	discovered  *url.URL
}

// NewProvider builds a Provider. Either WithIssuerURL (JWKS URI discovered
// via OIDC) or WithJWKSURL (direct) is required.
func NewProvider(opts ...Option) (*Provider, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return newProvider(cfg), nil
}

func newProvider(cfg *config) *Provider {
	return &Provider{
		issuerURL: cfg.issuerURL,
		jwksURL:   cfg.jwksURL,
		client:    cfg.client,
	}
}

// Fetch performs a single HTTP GET against the JWKS endpoint and parses the
// returned key set.
func (p *Provider) Fetch(ctx context.Context) (jwk.Set, error) {
	jwksURL, err := p.resolveJWKSURL(ctx)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request to get JWKS: %w", err)
	}

	response, err := p.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("could not fetch JWKS from %s: %w", jwksURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint %s returned status %d, expected 200", jwksURL, response.StatusCode)
	}

	set, err := jwk.ParseReader(io.LimitReader(response.Body, maxJWKSBodySize))
	if err != nil {
		return nil, fmt.Errorf("could not parse JWKS document: %w", err)
	}

	return set, nil
}

// resolveJWKSURL returns the configured JWKS URL, discovering it from the
// issuer's well-known configuration on first use when only an issuer URL
// was provided. A failed discovery is retried on the next call.
func (p *Provider) resolveJWKSURL(ctx context.Context) (*url.URL, error) {
	if p.jwksURL != nil {
		return p.jwksURL, nil
	}

	p.discoveryMu.Lock()
	defer p.discoveryMu.Unlock()

	if p.discovered != nil {
		return p.discovered, nil
	}

	wkEndpoints, err := oidc.GetWellKnownEndpointsFromIssuerURL(ctx, p.client, *p.issuerURL)
	if err != nil {
		return nil, err
	}

	discovered, err := url.Parse(wkEndpoints.JWKSURI)
	if err != nil {
		return nil, fmt.Errorf("could not parse JWKS URI from well known endpoints: %w", err)
	}

	p.discovered = discovered
	return discovered, nil
}

// CachingProvider caches the key set fetched by Provider. It holds exactly
// one current set at a time: a refresh replaces the whole set atomically or,
// on failure, leaves the previous set in place. Concurrent refreshes collapse
// into a single outbound fetch.
type CachingProvider struct {
	*Provider

	cacheTTL           time.Duration
	minRefreshInterval time.Duration
	logger             Logger

	mu          sync.RWMutex
	set         jwk.Set
	fetchedAt   time.Time
	lastAttempt time.Time

	group singleflight.Group
}

// NewCachingProvider builds a CachingProvider. Either WithIssuerURL or
// WithJWKSURL is required. The cache starts empty and is populated on the
// first lookup, or eagerly by calling Refresh at startup.
func NewCachingProvider(opts ...Option) (*CachingProvider, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	return &CachingProvider{
		Provider:           newProvider(cfg),
		cacheTTL:           cfg.cacheTTL,
		minRefreshInterval: cfg.minRefreshInterval,
		logger:             cfg.logger,
	}, nil
}

// GetKey returns the signing key for the given key ID.
//
// A lookup against a fresh set that misses will refresh at most once per
// minRefreshInterval and retry before returning ErrKeyNotFound. A lookup
// against an expired or empty cache refreshes first. When a refresh fails
// and a previous set exists, the stale set keeps serving the key IDs it
// knows about; only when no usable set exists at all does the fetch error
// surface to the caller.
func (c *CachingProvider) GetKey(ctx context.Context, kid string) (jwk.Key, error) {
	c.mu.RLock()
	set := c.set
	fetchedAt := c.fetchedAt
	lastAttempt := c.lastAttempt
	c.mu.RUnlock()

	if set != nil && time.Since(fetchedAt) < c.cacheTTL {
		if key, ok := set.LookupKeyID(kid); ok {
			return key, nil
		}
		if time.Since(lastAttempt) < c.minRefreshInterval {
			return nil, ErrKeyNotFound
		}
	}

	if err := c.Refresh(ctx); err != nil {
		c.mu.RLock()
		stale := c.set
		c.mu.RUnlock()

		if stale == nil {
			return nil, fmt.Errorf("could not fetch JWKS and no cached key set exists: %w", err)
		}

		if c.logger != nil {
			c.logger.Warnf("JWKS refresh failed, serving stale key set: %v", err)
		}
		if key, ok := stale.LookupKeyID(kid); ok {
			return key, nil
		}
		return nil, ErrKeyNotFound
	}

	c.mu.RLock()
	set = c.set
	c.mu.RUnlock()

	if key, ok := set.LookupKeyID(kid); ok {
		return key, nil
	}
	return nil, ErrKeyNotFound
}

// Refresh fetches the JWKS document and atomically replaces the cached key
// set. On failure the previous set, if any, is retained untouched.
// Concurrent callers share a single outbound fetch.
func (c *CachingProvider) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		c.mu.Lock()
		c.lastAttempt = time.Now()
		c.mu.Unlock()

		set, err := c.Fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.set = set
		c.fetchedAt = time.Now()
		c.mu.Unlock()

		if c.logger != nil {
			c.logger.Debugf("JWKS refreshed, %d key(s) cached", set.Len())
		}
		return nil, nil
	})
	return err
}
