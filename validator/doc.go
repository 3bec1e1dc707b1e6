// Package validator decides whether a presented bearer token is acceptable.
//
// A Validator checks a token's structure, signing algorithm, signature
// (against keys resolved through a KeyProvider), and claims (expiry,
// not-before, issuer, audience), returning either the validated identity or
// a *ValidationError carrying one of a fixed set of rejection reasons.
package validator
