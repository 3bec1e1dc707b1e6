// Package config reads the service configuration from the environment.
// No secret credential is required: the service only performs public-key
// verification, never an OAuth flow.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	// DefaultPort matches the port the service has always run on.
	DefaultPort = "5000"

	// DefaultScope is the scope reported by the auth info endpoint.
	DefaultScope = "openid email profile"

	defaultLogLevel = "info"
	defaultCacheTTL = 15 * time.Minute
)

// Config is the full environment-derived configuration, read once at
// startup.
type Config struct {
	// TenantID is the Entra ID (Azure AD) tenant whose tokens are
	// accepted. Required (AZURE_TENANT_ID).
	TenantID string

	// ClientID is the application (client) ID expected in the token's
	// audience claim. Required (AZURE_CLIENT_ID).
	ClientID string

	// JWKSURL is where the tenant's public signing keys are fetched from.
	// Optional (AZURE_JWKS_URL); defaults to the tenant's discovery keys
	// endpoint.
	JWKSURL string

	// Port the HTTP server listens on (PORT).
	Port string

	// LogLevel is a logrus level name (LOG_LEVEL).
	LogLevel string

	// JWKSCacheTTL is how long fetched signing keys are served before a
	// refresh (JWKS_CACHE_TTL, a Go duration string).
	JWKSCacheTTL time.Duration
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	tenantID := os.Getenv("AZURE_TENANT_ID")
	if tenantID == "" {
		return nil, errors.New("AZURE_TENANT_ID is required")
	}

	clientID := os.Getenv("AZURE_CLIENT_ID")
	if clientID == "" {
		return nil, errors.New("AZURE_CLIENT_ID is required")
	}

	cfg := &Config{
		TenantID:     tenantID,
		ClientID:     clientID,
		JWKSURL:      getenv("AZURE_JWKS_URL", fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", tenantID)),
		Port:         getenv("PORT", DefaultPort),
		LogLevel:     getenv("LOG_LEVEL", defaultLogLevel),
		JWKSCacheTTL: defaultCacheTTL,
	}

	if raw := os.Getenv("JWKS_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid JWKS_CACHE_TTL %q: %w", raw, err)
		}
		cfg.JWKSCacheTTL = ttl
	}

	return cfg, nil
}

// Issuers returns the accepted issuer claim values. Entra ID tenants issue
// tokens under both the v1.0 and the v2.0 issuer form depending on which
// endpoint the client acquired the token from; both are accepted.
func (c *Config) Issuers() []string {
	return []string{
		fmt.Sprintf("https://sts.windows.net/%s/", c.TenantID),
		fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", c.TenantID),
	}
}

// AuthorizeURL is the tenant's OAuth 2.0 authorization endpoint, reported
// by the auth info endpoint for client configuration.
func (c *Config) AuthorizeURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", c.TenantID)
}

// TokenURL is the tenant's OAuth 2.0 token endpoint, reported by the auth
// info endpoint for client configuration.
func (c *Config) TokenURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.TenantID)
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
