package validator

import (
	"errors"
	"strings"
)

const (
	// compactSegmentDots is the number of dots in a compact JWS
	// (header.payload.signature).
	compactSegmentDots = 2

	// maxTokenSize rejects suspiciously large tokens before any base64 or
	// JSON work happens. Valid bearer tokens rarely exceed a few KB.
	maxTokenSize = 1 << 20
)

// checkTokenShape performs cheap pre-validation on the raw token string so
// obviously malformed or hostile inputs never reach the parser.
func checkTokenShape(tokenString string) error {
	if tokenString == "" {
		return errors.New("token is empty")
	}

	if len(tokenString) > maxTokenSize {
		return errors.New("token exceeds maximum size (1MB)")
	}

	if strings.Count(tokenString, ".") != compactSegmentDots {
		return errors.New("token is not three base64url segments")
	}

	return nil
}
