package entraauth

import (
	"context"
	"net/http"
	"time"

	"github.com/nsslabs/entra-auth-backend/validator"
)

// TokenValidator is the single "validate token" contract the gate depends
// on. It is satisfied by *validator.Validator.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*validator.ValidatedClaims, error)
}

// Middleware is the gate placed in front of protected routes. It extracts
// the bearer token from the request, delegates to the TokenValidator, and
// either attaches the validated identity to the request context or
// short-circuits with an error response.
type Middleware struct {
	validator           TokenValidator
	errorHandler        ErrorHandler
	tokenExtractor      TokenExtractor
	credentialsOptional bool
	validateOnOptions   bool
	logger              Logger
	metrics             Metrics
	tracer              Tracer
}

// New constructs a new Middleware with the supplied options.
// WithValidator is required.
//
// Example:
//
//	m, err := entraauth.New(
//	    entraauth.WithValidator(v),
//	    entraauth.WithLogger(entraauth.NewLogrusLogger(log)),
//	)
func New(opts ...Option) (*Middleware, error) {
	m := &Middleware{
		validateOnOptions: true,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.validator == nil {
		return nil, ErrValidatorNil
	}

	if m.errorHandler == nil {
		m.errorHandler = DefaultErrorHandler
	}
	if m.tokenExtractor == nil {
		m.tokenExtractor = AuthHeaderTokenExtractor
	}
	if m.metrics == nil {
		m.metrics = &NoopMetrics{}
	}
	if m.tracer == nil {
		m.tracer = &NoopTracer{}
	}

	return m, nil
}

// CheckJWT wraps a handler so it only runs for requests carrying a valid
// bearer token. The validated identity is available to the handler through
// ClaimsFromContext for the lifetime of the request.
func (m *Middleware) CheckJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If we don't validate on OPTIONS and this is OPTIONS
		// then continue onto next without validating.
		if !m.validateOnOptions && r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		span := m.tracer.StartSpan("check_bearer_token")
		defer span.Finish()

		token, err := m.tokenExtractor(r)
		if err != nil {
			m.observe("malformed_header", span)
			if m.logger != nil {
				m.logger.Warnf("rejected request with malformed Authorization header: %v", err)
			}
			m.errorHandler(w, r, err)
			return
		}

		if token == "" {
			if m.credentialsOptional {
				next.ServeHTTP(w, r)
				return
			}
			m.observe("missing_token", span)
			m.errorHandler(w, r, ErrJWTMissing)
			return
		}

		start := time.Now()
		claims, err := m.validator.ValidateToken(r.Context(), token)
		m.metrics.ObserveHistogram("auth_token_validation_seconds", time.Since(start).Seconds(), nil)

		if err != nil {
			outcome := "invalid_token"
			if reason, ok := validator.ReasonOf(err); ok {
				outcome = string(reason)
			}
			m.observe(outcome, span)
			if m.logger != nil {
				m.logger.Warnf("token validation failed: %v", err)
			}
			m.errorHandler(w, r, &invalidError{details: err})
			return
		}

		m.observe("ok", span)
		if m.logger != nil {
			m.logger.Debugf("token validated for subject %s", claims.RegisteredClaims.Subject)
		}

		r = r.Clone(NewContextWithClaims(r.Context(), claims))
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) observe(outcome string, span Span) {
	m.metrics.IncCounter("auth_token_checks_total", map[string]string{"outcome": outcome})
	span.SetTag("auth.outcome", outcome)
}
