package entraauth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nsslabs/entra-auth-backend/validator"
)

// GinErrorHandler is called when token validation fails inside the gin
// middleware. It must abort the request.
type GinErrorHandler func(c *gin.Context, err error)

// GinMiddleware adapts the bearer-token gate to gin.
type GinMiddleware struct {
	validator           TokenValidator
	errorHandler        GinErrorHandler
	tokenExtractor      TokenExtractor
	credentialsOptional bool
	validateOnOptions   bool
}

// GinOption configures a GinMiddleware.
type GinOption func(*GinMiddleware)

// WithGinErrorHandler overrides DefaultGinErrorHandler.
func WithGinErrorHandler(h GinErrorHandler) GinOption {
	return func(m *GinMiddleware) {
		m.errorHandler = h
	}
}

// WithGinTokenExtractor overrides AuthHeaderTokenExtractor.
func WithGinTokenExtractor(e TokenExtractor) GinOption {
	return func(m *GinMiddleware) {
		m.tokenExtractor = e
	}
}

// WithGinCredentialsOptional lets requests without any token through.
func WithGinCredentialsOptional(value bool) GinOption {
	return func(m *GinMiddleware) {
		m.credentialsOptional = value
	}
}

// NewGin constructs a gin variant of the middleware around the same
// TokenValidator the plain HTTP gate uses.
func NewGin(v TokenValidator, opts ...GinOption) *GinMiddleware {
	m := &GinMiddleware{
		validator:         v,
		errorHandler:      DefaultGinErrorHandler,
		tokenExtractor:    AuthHeaderTokenExtractor,
		validateOnOptions: true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// CheckJWT returns the gin handler performing the token check. On success
// the validated identity is attached to the request context and is
// retrievable via ClaimsFromContext.
func (m *GinMiddleware) CheckJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.validateOnOptions && c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, err := m.tokenExtractor(c.Request)
		if err != nil {
			m.errorHandler(c, err)
			return
		}

		if token == "" {
			if m.credentialsOptional {
				c.Next()
				return
			}
			m.errorHandler(c, ErrJWTMissing)
			return
		}

		claims, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			m.errorHandler(c, &invalidError{details: err})
			return
		}

		c.Request = c.Request.Clone(NewContextWithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// DefaultGinErrorHandler mirrors DefaultErrorHandler: every authentication
// failure is a 401 with a machine-readable code.
func DefaultGinErrorHandler(c *gin.Context, err error) {
	code := codeMissingOrMalformedHeader
	message := "Authorization header is missing or malformed."

	if reason, ok := validator.ReasonOf(err); ok {
		code = string(reason)
		message = "Bearer token is invalid."
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"message": message,
		"code":    code,
	})
}
