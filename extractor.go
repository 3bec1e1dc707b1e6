package entraauth

import (
	"net/http"
	"strings"
)

// bearerPrefix is the literal scheme prefix required by the HTTP bearer
// scheme: case-sensitive, followed by exactly one space.
const bearerPrefix = "Bearer "

// TokenExtractor is a function that takes a request as input and returns
// either a token or an error. An error should only be returned if an
// attempt to specify a token was found, but the information was somehow
// incorrectly formed. In the case where a token is simply not present, this
// should not be treated as an error. An empty string should be returned in
// that case.
type TokenExtractor func(r *http.Request) (string, error)

// AuthHeaderTokenExtractor is a TokenExtractor that takes a request and
// extracts the token from the Authorization header. The header must match
// the bearer scheme exactly: the literal "Bearer " prefix followed by a
// single non-empty token.
func AuthHeaderTokenExtractor(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil // No error, just no token.
	}

	token, ok := strings.CutPrefix(authHeader, bearerPrefix)
	if !ok || token == "" || strings.ContainsRune(token, ' ') {
		return "", ErrMalformedAuthHeader
	}

	return token, nil
}

// ParameterTokenExtractor returns a TokenExtractor that extracts
// the token from the specified query string parameter.
func ParameterTokenExtractor(param string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		return r.URL.Query().Get(param), nil
	}
}

// MultiTokenExtractor returns a TokenExtractor that runs multiple
// TokenExtractors and takes the first one that does not return an empty
// token. If an extractor returns an error that error is immediately
// returned.
func MultiTokenExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(r *http.Request) (string, error) {
		for _, ex := range extractors {
			token, err := ex(r)
			if err != nil {
				return "", err
			}

			if token != "" {
				return token, nil
			}
		}
		return "", nil
	}
}
