package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ValidatedClaims is the identity attached to a request after successful
// validation. It lives for the duration of that request only.
type ValidatedClaims struct {
	RegisteredClaims RegisteredClaims

	// PrivateClaims carries the non-registered claims the caller may need
	// (name, email, roles, ...). Which claims are copied here is controlled
	// by WithPassthroughClaims; by default all private claims pass through.
	PrivateClaims map[string]interface{}
}

// RegisteredClaims represents public claim values
// (as specified in RFC 7519).
type RegisteredClaims struct {
	Issuer    string
	Subject   string
	Audience  []string
	Expiry    int64
	NotBefore int64
	IssuedAt  int64
	ID        string
}

// Audience is the normalized form of the "aud" claim. The claim may be a
// single string or an array of strings on the wire; both decode into one
// canonical set of values so comparison never branches on shape.
type Audience []string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Audience) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = Audience{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*a = Audience(many)
		return nil
	}

	return errors.New("audience claim must be a string or an array of strings")
}

// Contains reports whether the audience includes the given value.
func (a Audience) Contains(value string) bool {
	for _, aud := range a {
		if aud == value {
			return true
		}
	}
	return false
}

// numericDate decodes a JSON numeric date (seconds since the epoch,
// possibly fractional) into a time.Time.
type numericDate struct {
	time.Time
}

func (d *numericDate) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("numeric date must be a JSON number: %w", err)
	}

	seconds, err := n.Float64()
	if err != nil {
		return fmt.Errorf("could not parse numeric date: %w", err)
	}

	d.Time = time.Unix(int64(seconds), 0).UTC()
	return nil
}

// rawClaims is the decode target for a verified token payload.
type rawClaims struct {
	Issuer    string       `json:"iss"`
	Subject   string       `json:"sub"`
	Audience  Audience     `json:"aud"`
	Expiry    *numericDate `json:"exp"`
	NotBefore *numericDate `json:"nbf"`
	IssuedAt  *numericDate `json:"iat"`
	ID        string       `json:"jti"`
}

// registeredClaimNames are excluded from the pass-through private claims.
var registeredClaimNames = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
}

// decodeClaims unmarshals a verified payload and enforces the structural
// requirements on it: issuer, subject, audience and expiry must be present
// and well typed. It returns the registered claims plus the private claims
// selected by passthrough (nil passthrough means all).
func decodeClaims(payload []byte, passthrough []string) (*rawClaims, map[string]interface{}, error) {
	var claims rawClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, nil, fmt.Errorf("could not decode claims: %w", err)
	}

	switch {
	case claims.Issuer == "":
		return nil, nil, errors.New("issuer (iss) claim is missing or empty")
	case claims.Subject == "":
		return nil, nil, errors.New("subject (sub) claim is missing or empty")
	case len(claims.Audience) == 0:
		return nil, nil, errors.New("audience (aud) claim is missing or empty")
	case claims.Expiry == nil:
		return nil, nil, errors.New("expiry (exp) claim is missing")
	}

	var all map[string]interface{}
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, nil, fmt.Errorf("could not decode claims: %w", err)
	}

	private := make(map[string]interface{})
	if passthrough == nil {
		for name, value := range all {
			if _, registered := registeredClaimNames[name]; !registered {
				private[name] = value
			}
		}
	} else {
		for _, name := range passthrough {
			if value, ok := all[name]; ok {
				private[name] = value
			}
		}
	}

	return &claims, private, nil
}

func unixOrZero(d *numericDate) int64 {
	if d == nil {
		return 0
	}
	return d.Unix()
}
