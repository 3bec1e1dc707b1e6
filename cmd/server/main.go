// Command server runs the Entra ID bearer-token validation backend: an
// HTTP API whose protected routes require a valid Azure AD access token.
package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	entraauth "github.com/nsslabs/entra-auth-backend"
	"github.com/nsslabs/entra-auth-backend/config"
	"github.com/nsslabs/entra-auth-backend/jwks"
	"github.com/nsslabs/entra-auth-backend/server"
	"github.com/nsslabs/entra-auth-backend/validator"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	} else {
		log.SetLevel(level)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	jwksURL, err := url.Parse(cfg.JWKSURL)
	if err != nil {
		return err
	}

	provider, err := jwks.NewCachingProvider(
		jwks.WithJWKSURL(jwksURL),
		jwks.WithCacheTTL(cfg.JWKSCacheTTL),
		jwks.WithLogger(entraauth.NewLogrusLogger(log)),
	)
	if err != nil {
		return err
	}

	// Warm the key cache so the first authenticated request does not pay
	// the fetch latency. Failure is not fatal; keys are fetched lazily.
	warmCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := provider.Refresh(warmCtx); err != nil {
		log.WithError(err).Warn("initial signing key fetch failed, will retry on demand")
	}
	cancel()

	v, err := validator.New(
		validator.WithKeyProvider(provider),
		validator.WithIssuers(cfg.Issuers()),
		validator.WithAudience(cfg.ClientID),
	)
	if err != nil {
		return err
	}

	m, err := entraauth.New(
		entraauth.WithValidator(v),
		entraauth.WithLogger(entraauth.NewLogrusLogger(log)),
		entraauth.WithMetrics(entraauth.NewPrometheusMetrics()),
	)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	srv := server.New(cfg, log)
	srv.RegisterRoutes(e, echo.WrapMiddleware(m.CheckJWT))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}
