// Package entraauth gates HTTP routes behind Microsoft Entra ID (Azure AD)
// bearer-token validation.
//
// The package splits the work into three pieces, composed in request order:
//
//   - jwks.CachingProvider fetches the tenant's public signing keys from
//     its JWKS endpoint and caches them as a single atomically replaced
//     set.
//   - validator.Validator verifies a presented token's signature and
//     claims against those keys and the configured issuer and audience,
//     returning either a validated identity or a typed rejection reason.
//   - Middleware (this package) extracts the token from the Authorization
//     header, invokes the validator, and either attaches the identity to
//     the request context or responds 401 with the reason.
//
// Basic usage:
//
//	jwksURL, _ := url.Parse("https://login.microsoftonline.com/<tenant>/discovery/v2.0/keys")
//	provider, err := jwks.NewCachingProvider(jwks.WithJWKSURL(jwksURL))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	v, err := validator.New(
//	    validator.WithKeyProvider(provider),
//	    validator.WithIssuer("https://login.microsoftonline.com/<tenant>/v2.0"),
//	    validator.WithAudience("<client-id>"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m, err := entraauth.New(entraauth.WithValidator(v))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	http.Handle("/api/helloworld", m.CheckJWT(helloWorldHandler))
//
// Inside a protected handler the identity is available from the request
// context:
//
//	claims, ok := entraauth.ClaimsFromContext(r.Context())
//
// Adapters for gin (NewGin) and gRPC (framework/grpc) reuse the same
// validator. The service itself never performs an OAuth flow, issues or
// refreshes tokens, or keeps session state; it is a stateless per-request
// verifier.
package entraauth
