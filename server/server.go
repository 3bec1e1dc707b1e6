// Package server holds the HTTP route handlers: an unauthenticated health
// check, an unauthenticated report of the active auth configuration, and a
// protected hello-world endpoint demonstrating the bearer-token gate.
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	entraauth "github.com/nsslabs/entra-auth-backend"
	"github.com/nsslabs/entra-auth-backend/config"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "entra-auth-backend"

// Server carries the handlers' dependencies.
type Server struct {
	cfg *config.Config
	log logrus.FieldLogger
}

// New builds a Server.
func New(cfg *config.Config, log logrus.FieldLogger) *Server {
	return &Server{cfg: cfg, log: log}
}

// RegisterRoutes attaches all routes to the echo instance. requireAuth is
// applied to protected routes only; health and auth info stay public.
func (s *Server) RegisterRoutes(e *echo.Echo, requireAuth echo.MiddlewareFunc) {
	api := e.Group("/api")
	api.GET("/health", s.Health)
	api.GET("/auth/info", s.AuthInfo)
	api.GET("/helloworld", s.HelloWorld, requireAuth)
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Health reports liveness. No authentication required.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: ServiceName,
	})
}

// User is the caller identity echoed by the hello-world endpoint.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HelloWorldResponse is the body of the protected hello-world endpoint.
type HelloWorldResponse struct {
	Message       string `json:"message"`
	User          User   `json:"user"`
	Authenticated bool   `json:"authenticated"`
}

// HelloWorld requires a valid bearer token; the gate in front of it has
// already attached the validated identity to the request context.
func (s *Server) HelloWorld(c echo.Context) error {
	claims, ok := entraauth.ClaimsFromContext(c.Request().Context())
	if !ok {
		s.log.Error("protected route reached without validated claims in context")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"message": "Failed to get validated claims.",
		})
	}

	return c.JSON(http.StatusOK, HelloWorldResponse{
		Message: "Hello, World!",
		User: User{
			Name:  stringClaim(claims.PrivateClaims, "name", "Unknown User"),
			Email: stringClaim(claims.PrivateClaims, "email", "No email"),
		},
		Authenticated: true,
	})
}

// AuthInfoResponse is the body of the auth info endpoint.
type AuthInfoResponse struct {
	TenantID string `json:"tenant_id"`
	ClientID string `json:"client_id"`
	AuthURL  string `json:"auth_url"`
	TokenURL string `json:"token_url"`
	Scope    string `json:"scope"`
}

// AuthInfo reports the active issuer/audience configuration so clients can
// configure themselves. No authentication required; nothing here is
// secret.
func (s *Server) AuthInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, AuthInfoResponse{
		TenantID: s.cfg.TenantID,
		ClientID: s.cfg.ClientID,
		AuthURL:  s.cfg.AuthorizeURL(),
		TokenURL: s.cfg.TokenURL(),
		Scope:    config.DefaultScope,
	})
}

func stringClaim(claims map[string]interface{}, name, fallback string) string {
	if value, ok := claims[name].(string); ok && value != "" {
		return value
	}
	return fallback
}
