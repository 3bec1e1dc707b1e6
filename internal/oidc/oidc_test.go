package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWellKnownEndpointsFromIssuerURL(t *testing.T) {
	t.Run("returns the advertised endpoints", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/.well-known/openid-configuration", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"issuer":"https://issuer.example.com/","jwks_uri":"https://issuer.example.com/keys"}`)
		}))
		t.Cleanup(server.Close)

		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		endpoints, err := GetWellKnownEndpointsFromIssuerURL(context.Background(), server.Client(), *issuerURL)
		require.NoError(t, err)
		assert.Equal(t, "https://issuer.example.com/", endpoints.Issuer)
		assert.Equal(t, "https://issuer.example.com/keys", endpoints.JWKSURI)
	})

	t.Run("appends the well known path to an issuer with a path", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			fmt.Fprintf(w, `{"jwks_uri":"https://issuer.example.com/keys"}`)
		}))
		t.Cleanup(server.Close)

		issuerURL, err := url.Parse(server.URL + "/tenant-id/v2.0")
		require.NoError(t, err)

		_, err = GetWellKnownEndpointsFromIssuerURL(context.Background(), server.Client(), *issuerURL)
		require.NoError(t, err)
		assert.Equal(t, "/tenant-id/v2.0/.well-known/openid-configuration", gotPath)
	})

	t.Run("rejects a non-200 response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not here", http.StatusNotFound)
		}))
		t.Cleanup(server.Close)

		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		_, err = GetWellKnownEndpointsFromIssuerURL(context.Background(), server.Client(), *issuerURL)
		assert.ErrorContains(t, err, "returned status 404")
	})

	t.Run("rejects a document without a jwks_uri", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"issuer":"https://issuer.example.com/"}`)
		}))
		t.Cleanup(server.Close)

		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		_, err = GetWellKnownEndpointsFromIssuerURL(context.Background(), server.Client(), *issuerURL)
		assert.ErrorContains(t, err, "jwks_uri")
	})

	t.Run("rejects a malformed document", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{{`)
		}))
		t.Cleanup(server.Close)

		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		_, err = GetWellKnownEndpointsFromIssuerURL(context.Background(), server.Client(), *issuerURL)
		assert.Error(t, err)
	})
}
