package validator

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
)

// Option is how options for the Validator are set up.
// Options return errors to enable validation during construction.
type Option func(*Validator) error

// WithKeyProvider sets the provider that resolves signing keys by key ID.
// This is a required option. For JWKS-backed validation use
// jwks.NewCachingProvider.
func WithKeyProvider(provider KeyProvider) Option {
	return func(v *Validator) error {
		if provider == nil {
			return errors.New("key provider cannot be nil")
		}
		v.keys = provider
		return nil
	}
}

// WithIssuer sets the single accepted issuer claim (iss) value.
// Use either WithIssuer or WithIssuers, not both.
func WithIssuer(issuer string) Option {
	return func(v *Validator) error {
		if issuer == "" {
			return errors.New("issuer cannot be empty")
		}
		v.issuers = []string{issuer}
		return nil
	}
}

// WithIssuers sets multiple accepted issuer claim (iss) values. A token is
// accepted when its issuer matches any of them. Microsoft Entra ID tenants
// issue tokens under both a v1.0 and a v2.0 issuer form, so services that
// accept both pass both here.
func WithIssuers(issuers []string) Option {
	return func(v *Validator) error {
		if len(issuers) == 0 {
			return errors.New("issuers cannot be empty")
		}
		for i, issuer := range issuers {
			if issuer == "" {
				return fmt.Errorf("issuer at index %d cannot be empty", i)
			}
		}
		v.issuers = issuers
		return nil
	}
}

// WithAudience sets the single expected audience claim (aud) value.
// Use either WithAudience or WithAudiences, not both.
func WithAudience(audience string) Option {
	return func(v *Validator) error {
		if audience == "" {
			return errors.New("audience cannot be empty")
		}
		v.audiences = []string{audience}
		return nil
	}
}

// WithAudiences sets multiple expected audience claim (aud) values. The
// token must contain at least one of them.
func WithAudiences(audiences []string) Option {
	return func(v *Validator) error {
		if len(audiences) == 0 {
			return errors.New("audiences cannot be empty")
		}
		for i, audience := range audiences {
			if audience == "" {
				return fmt.Errorf("audience at index %d cannot be empty", i)
			}
		}
		v.audiences = audiences
		return nil
	}
}

// WithAllowedAlgorithms restricts the accepted signing algorithms to a
// subset of the asymmetric allow-list. Symmetric algorithms can never be
// enabled.
func WithAllowedAlgorithms(algorithms ...jwa.SignatureAlgorithm) Option {
	return func(v *Validator) error {
		if len(algorithms) == 0 {
			return errors.New("allowed algorithms cannot be empty")
		}
		allowed := make(map[jwa.SignatureAlgorithm]bool, len(algorithms))
		for _, algorithm := range algorithms {
			if !asymmetricAlgorithms[algorithm] {
				return fmt.Errorf("algorithm %q is not an acceptable asymmetric algorithm", algorithm)
			}
			allowed[algorithm] = true
		}
		v.algorithms = allowed
		return nil
	}
}

// WithAllowedClockSkew sets the tolerance applied to the expiry and
// not-before checks.
//
// Default: DefaultClockSkew.
func WithAllowedClockSkew(skew time.Duration) Option {
	return func(v *Validator) error {
		if skew < 0 {
			return errors.New("clock skew cannot be negative")
		}
		v.clockSkew = skew
		return nil
	}
}

// WithPassthroughClaims restricts which private claims are copied into
// ValidatedClaims.PrivateClaims. Without this option all private claims
// pass through.
func WithPassthroughClaims(names ...string) Option {
	return func(v *Validator) error {
		if len(names) == 0 {
			return errors.New("passthrough claim names cannot be empty")
		}
		v.passthrough = names
		return nil
	}
}

// WithClock sets the time source used for the expiry and not-before
// checks. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		v.now = now
		return nil
	}
}
