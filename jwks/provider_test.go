package jwks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeySet(t *testing.T, kids ...string) jwk.Set {
	t.Helper()

	set := jwk.NewSet()
	for _, kid := range kids {
		raw, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		private, err := jwk.FromRaw(raw)
		require.NoError(t, err)
		require.NoError(t, private.Set(jwk.KeyIDKey, kid))
		require.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256))

		public, err := jwk.PublicKeyOf(private)
		require.NoError(t, err)
		require.NoError(t, set.AddKey(public))
	}
	return set
}

// jwksServer serves a swappable key set and counts fetches.
type jwksServer struct {
	server *httptest.Server

	mu      sync.Mutex
	set     jwk.Set
	failing bool
	delay   time.Duration

	fetches atomic.Int64
}

func newJWKSServer(t *testing.T, set jwk.Set) *jwksServer {
	t.Helper()

	s := &jwksServer{set: set}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)

		s.mu.Lock()
		failing := s.failing
		current := s.set
		delay := s.delay
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if failing {
			http.Error(w, "upstream down", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(current))
	}))
	t.Cleanup(s.server.Close)

	return s
}

func (s *jwksServer) url(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(s.server.URL)
	require.NoError(t, err)
	return u
}

func (s *jwksServer) setKeys(set jwk.Set) {
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}

func (s *jwksServer) setFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

func TestCachingProviderGetKey(t *testing.T) {
	t.Run("fetches once and serves subsequent lookups from cache", func(t *testing.T) {
		server := newJWKSServer(t, newTestKeySet(t, "kid-1", "kid-2"))
		provider, err := NewCachingProvider(WithJWKSURL(server.url(t)))
		require.NoError(t, err)

		key, err := provider.GetKey(context.Background(), "kid-1")
		require.NoError(t, err)
		assert.Equal(t, "kid-1", key.KeyID())

		key, err = provider.GetKey(context.Background(), "kid-2")
		require.NoError(t, err)
		assert.Equal(t, "kid-2", key.KeyID())

		assert.EqualValues(t, 1, server.fetches.Load())
	})

	t.Run("unknown key ID refreshes once then reports not found", func(t *testing.T) {
		server := newJWKSServer(t, newTestKeySet(t, "kid-1"))
		provider, err := NewCachingProvider(
			WithJWKSURL(server.url(t)),
			WithMinRefreshInterval(0),
		)
		require.NoError(t, err)

		_, err = provider.GetKey(context.Background(), "kid-1")
		require.NoError(t, err)

		_, err = provider.GetKey(context.Background(), "bogus")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.EqualValues(t, 2, server.fetches.Load())
	})

	t.Run("unknown key ID misses are rate limited by the refresh interval", func(t *testing.T) {
		server := newJWKSServer(t, newTestKeySet(t, "kid-1"))
		provider, err := NewCachingProvider(WithJWKSURL(server.url(t)))
		require.NoError(t, err)

		_, err = provider.GetKey(context.Background(), "kid-1")
		require.NoError(t, err)

		// A burst of bogus key IDs right after a fetch does not turn into
		// a burst of outbound requests.
		for i := 0; i < 5; i++ {
			_, err = provider.GetKey(context.Background(), "bogus")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		}
		assert.EqualValues(t, 1, server.fetches.Load())
	})

	t.Run("picks up rotated keys on refresh", func(t *testing.T) {
		server := newJWKSServer(t, newTestKeySet(t, "old-kid"))
		provider, err := NewCachingProvider(
			WithJWKSURL(server.url(t)),
			WithMinRefreshInterval(0),
		)
		require.NoError(t, err)

		_, err = provider.GetKey(context.Background(), "old-kid")
		require.NoError(t, err)

		server.setKeys(newTestKeySet(t, "new-kid"))

		key, err := provider.GetKey(context.Background(), "new-kid")
		require.NoError(t, err)
		assert.Equal(t, "new-kid", key.KeyID())

		// The rotated-away key is gone after the swap.
		_, err = provider.GetKey(context.Background(), "old-kid")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("expired cache triggers a refresh", func(t *testing.T) {
		server := newJWKSServer(t, newTestKeySet(t, "kid-1"))
		provider, err := NewCachingProvider(
			WithJWKSURL(server.url(t)),
			WithCacheTTL(time.Millisecond),
			WithMinRefreshInterval(0),
		)
		require.NoError(t, err)

		_, err = provider.GetKey(context.Background(), "kid-1")
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		_, err = provider.GetKey(context.Background(), "kid-1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, server.fetches.Load())
	})

	t.Run("serves the stale set when a refresh fails", func(t *testing.T) {
		server := newJWKSServer(t, newTestKeySet(t, "kid-1"))
		provider, err := NewCachingProvider(
			WithJWKSURL(server.url(t)),
			WithCacheTTL(time.Millisecond),
			WithMinRefreshInterval(0),
		)
		require.NoError(t, err)

		_, err = provider.GetKey(context.Background(), "kid-1")
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		server.setFailing(true)

		key, err := provider.GetKey(context.Background(), "kid-1")
		require.NoError(t, err)
		assert.Equal(t, "kid-1", key.KeyID())

		_, err = provider.GetKey(context.Background(), "unknown")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("surfaces the fetch error when no cached set exists", func(t *testing.T) {
		server := newJWKSServer(t, newTestKeySet(t, "kid-1"))
		server.setFailing(true)

		provider, err := NewCachingProvider(WithJWKSURL(server.url(t)))
		require.NoError(t, err)

		_, err = provider.GetKey(context.Background(), "kid-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrKeyNotFound)
		assert.Contains(t, err.Error(), "no cached key set")
	})

	t.Run("concurrent lookups share a single fetch", func(t *testing.T) {
		server := newJWKSServer(t, newTestKeySet(t, "kid-1"))
		server.mu.Lock()
		server.delay = 50 * time.Millisecond
		server.mu.Unlock()

		provider, err := NewCachingProvider(WithJWKSURL(server.url(t)))
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = provider.GetKey(context.Background(), "kid-1")
			}(i)
		}
		close(start)
		wg.Wait()

		for i, err := range errs {
			assert.NoError(t, err, "worker %d", i)
		}
		assert.EqualValues(t, 1, server.fetches.Load())
	})
}

func TestCachingProviderDiscoversJWKSURL(t *testing.T) {
	keys := newTestKeySet(t, "kid-1")

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"issuer":%q,"jwks_uri":%q}`, server.URL, server.URL+"/keys")
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(keys))
	})

	issuerURL, err := url.Parse(server.URL)
	require.NoError(t, err)

	provider, err := NewCachingProvider(WithIssuerURL(issuerURL))
	require.NoError(t, err)

	key, err := provider.GetKey(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, "kid-1", key.KeyID())
}

func TestNewCachingProviderRequiresURL(t *testing.T) {
	_, err := NewCachingProvider()
	assert.Error(t, err)

	_, err = NewCachingProvider(WithCacheTTL(0))
	assert.Error(t, err)
}
