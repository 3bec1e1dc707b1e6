// Package oidc implements the small slice of OpenID Connect discovery the
// key provider needs: resolving the jwks_uri from an issuer's well-known
// configuration document.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
)

// maxMetadataBodySize bounds the discovery document we are willing to read.
const maxMetadataBodySize = 1 << 20

// WellKnownEndpoints holds the well known OIDC endpoints used by this service.
type WellKnownEndpoints struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// GetWellKnownEndpointsFromIssuerURL fetches the OIDC configuration document
// published under the issuer's /.well-known/openid-configuration path and
// returns the endpoints it advertises.
func GetWellKnownEndpointsFromIssuerURL(ctx context.Context, client *http.Client, issuerURL url.URL) (*WellKnownEndpoints, error) {
	issuerURL.Path = path.Join(issuerURL.Path, ".well-known/openid-configuration")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request to get well known endpoints: %w", err)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("could not get well known endpoints from url %s: %w", issuerURL.String(), err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("well known endpoint %s returned status %d, expected 200", issuerURL.String(), response.StatusCode)
	}

	var wkEndpoints WellKnownEndpoints
	if err := json.NewDecoder(io.LimitReader(response.Body, maxMetadataBodySize)).Decode(&wkEndpoints); err != nil {
		return nil, fmt.Errorf("could not decode json body when getting well known endpoints: %w", err)
	}

	if wkEndpoints.JWKSURI == "" {
		return nil, errors.New("well known configuration did not advertise a jwks_uri")
	}

	return &wkEndpoints, nil
}
