package validator

import (
	"errors"
	"fmt"
)

// Reason identifies why a token was rejected. Reasons are stable,
// machine-readable codes suitable for response bodies and metrics labels.
type Reason string

const (
	// ReasonInvalidFormat: the token is not a three-segment compact JWS,
	// or its header lacks an algorithm or key ID.
	ReasonInvalidFormat Reason = "invalid_format"

	// ReasonUnsupportedAlgorithm: the declared signing algorithm is not in
	// the asymmetric allow-list.
	ReasonUnsupportedAlgorithm Reason = "unsupported_algorithm"

	// ReasonUnknownKey: no published signing key matches the token's key ID.
	ReasonUnknownKey Reason = "unknown_key"

	// ReasonBadSignature: the signature does not verify against the
	// resolved key.
	ReasonBadSignature Reason = "bad_signature"

	// ReasonMalformedClaims: required claims are missing or of the wrong
	// type.
	ReasonMalformedClaims Reason = "malformed_claims"

	// ReasonExpired: the token's expiry has passed, beyond the clock skew
	// tolerance.
	ReasonExpired Reason = "expired"

	// ReasonNotYetValid: the token's not-before time has not been reached,
	// beyond the clock skew tolerance.
	ReasonNotYetValid Reason = "not_yet_valid"

	// ReasonIssuerMismatch: the issuer claim is not an accepted issuer.
	ReasonIssuerMismatch Reason = "issuer_mismatch"

	// ReasonAudienceMismatch: none of the expected audiences appear in the
	// audience claim.
	ReasonAudienceMismatch Reason = "audience_mismatch"

	// ReasonServiceUnavailable: the signing keys could not be obtained and
	// no usable cached set exists. The token itself may be perfectly fine.
	ReasonServiceUnavailable Reason = "service_unavailable"
)

// ValidationError is the typed failure returned by ValidateToken. Every
// rejection carries exactly one Reason; the gate in front of protected
// routes translates it into an HTTP status and response body.
type ValidationError struct {
	Reason  Reason
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newError(reason Reason, message string, err error) *ValidationError {
	return &ValidationError{
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// ReasonOf extracts the rejection reason from an error returned by
// ValidateToken, unwrapping as needed. The second return value reports
// whether a reason was found.
func ReasonOf(err error) (Reason, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Reason, true
	}
	return "", false
}
