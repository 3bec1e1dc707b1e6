package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"

	"github.com/nsslabs/entra-auth-backend/jwks"
)

// DefaultClockSkew is the tolerance applied symmetrically to the expiry and
// not-before checks to compensate for clock drift between the issuer and
// this verifier.
const DefaultClockSkew = 60 * time.Second

// KeyProvider resolves the public signing key matching a token's key ID.
// It is implemented by jwks.CachingProvider; tests inject fakes.
type KeyProvider interface {
	GetKey(ctx context.Context, kid string) (jwk.Key, error)
}

// asymmetricAlgorithms is the full allow-list of acceptable signing
// algorithms. Symmetric (HMAC) algorithms are deliberately absent: the
// signing keys come from a public, unauthenticated endpoint, so accepting
// a shared-secret scheme would let an attacker self-sign with key material
// they also control.
var asymmetricAlgorithms = map[jwa.SignatureAlgorithm]bool{
	jwa.RS256: true,
	jwa.RS384: true,
	jwa.RS512: true,
	jwa.PS256: true,
	jwa.PS384: true,
	jwa.PS512: true,
	jwa.ES256: true,
	jwa.ES384: true,
	jwa.ES512: true,
	jwa.EdDSA: true,
}

// Validator is the single decision point for whether a bearer token is
// acceptable. It is stateless apart from the key provider's cache and safe
// for concurrent use; validating the same token twice at the same instant
// yields the same outcome.
type Validator struct {
	keys        KeyProvider
	issuers     []string
	audiences   []string
	algorithms  map[jwa.SignatureAlgorithm]bool
	clockSkew   time.Duration
	passthrough []string
	now         func() time.Time
}

// New builds a Validator. WithKeyProvider, an issuer option and an audience
// option are required.
func New(opts ...Option) (*Validator, error) {
	v := &Validator{
		algorithms: asymmetricAlgorithms,
		clockSkew:  DefaultClockSkew,
		now:        time.Now,
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if v.keys == nil {
		return nil, errors.New("a key provider is required (use WithKeyProvider)")
	}
	if len(v.issuers) == 0 {
		return nil, errors.New("at least one expected issuer is required (use WithIssuer or WithIssuers)")
	}
	if len(v.audiences) == 0 {
		return nil, errors.New("at least one expected audience is required (use WithAudience or WithAudiences)")
	}

	return v, nil
}

// ValidateToken verifies the raw bearer token and returns the validated
// identity, or a *ValidationError carrying the precise rejection reason.
//
// The checks run in a fixed order: structural format, algorithm allow-list,
// key resolution, signature, claim decoding, expiry, not-before, issuer,
// audience. The first failure wins.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*ValidatedClaims, error) {
	if err := checkTokenShape(tokenString); err != nil {
		return nil, newError(ReasonInvalidFormat, "token is not a compact JWS", err)
	}

	message, err := jws.Parse([]byte(tokenString))
	if err != nil {
		return nil, newError(ReasonInvalidFormat, "could not parse the token", err)
	}

	signatures := message.Signatures()
	if len(signatures) != 1 {
		return nil, newError(ReasonInvalidFormat, "token must carry exactly one signature", nil)
	}
	headers := signatures[0].ProtectedHeaders()

	kid := headers.KeyID()
	if kid == "" {
		return nil, newError(ReasonInvalidFormat, "token header is missing a key ID", nil)
	}

	algorithm := headers.Algorithm()
	if algorithm == "" {
		return nil, newError(ReasonInvalidFormat, "token header is missing an algorithm", nil)
	}
	if !v.algorithms[algorithm] {
		return nil, newError(ReasonUnsupportedAlgorithm, fmt.Sprintf("signing algorithm %q is not allowed", algorithm), nil)
	}

	key, err := v.keys.GetKey(ctx, kid)
	if err != nil {
		if errors.Is(err, jwks.ErrKeyNotFound) {
			return nil, newError(ReasonUnknownKey, fmt.Sprintf("no signing key found for key ID %q", kid), err)
		}
		return nil, newError(ReasonServiceUnavailable, "could not obtain signing keys", err)
	}

	payload, err := jws.Verify([]byte(tokenString), jws.WithKey(algorithm, key))
	if err != nil {
		return nil, newError(ReasonBadSignature, "token signature verification failed", err)
	}

	claims, private, err := decodeClaims(payload, v.passthrough)
	if err != nil {
		return nil, newError(ReasonMalformedClaims, "token claims are malformed", err)
	}

	now := v.now()

	if now.After(claims.Expiry.Add(v.clockSkew)) {
		return nil, newError(ReasonExpired, "token has expired", nil)
	}

	if claims.NotBefore != nil && now.Add(v.clockSkew).Before(claims.NotBefore.Time) {
		return nil, newError(ReasonNotYetValid, "token is not valid yet", nil)
	}

	if !contains(v.issuers, claims.Issuer) {
		return nil, newError(ReasonIssuerMismatch, fmt.Sprintf("token issuer %q is not accepted", claims.Issuer), nil)
	}

	if !v.audienceMatches(claims.Audience) {
		return nil, newError(ReasonAudienceMismatch, "token audience does not match", nil)
	}

	return &ValidatedClaims{
		RegisteredClaims: RegisteredClaims{
			Issuer:    claims.Issuer,
			Subject:   claims.Subject,
			Audience:  []string(claims.Audience),
			Expiry:    unixOrZero(claims.Expiry),
			NotBefore: unixOrZero(claims.NotBefore),
			IssuedAt:  unixOrZero(claims.IssuedAt),
			ID:        claims.ID,
		},
		PrivateClaims: private,
	}, nil
}

func (v *Validator) audienceMatches(audience Audience) bool {
	for _, expected := range v.audiences {
		if audience.Contains(expected) {
			return true
		}
	}
	return false
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
