// Package grpcauth gates gRPC methods behind the same bearer-token
// validation the HTTP middleware uses. Tokens arrive in the standard
// "authorization" metadata key.
package grpcauth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	entraauth "github.com/nsslabs/entra-auth-backend"
	"github.com/nsslabs/entra-auth-backend/validator"
)

// TokenExtractor pulls a bearer token out of an incoming gRPC context.
// A missing token is ("", nil); only a malformed attempt is an error.
type TokenExtractor func(ctx context.Context) (string, error)

// MetadataTokenExtractor reads the token from the "authorization" metadata
// value, which must match the bearer scheme exactly.
func MetadataTokenExtractor(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return "", nil
	}

	token, ok := strings.CutPrefix(values[0], "Bearer ")
	if !ok || token == "" || strings.ContainsRune(token, ' ') {
		return "", entraauth.ErrMalformedAuthHeader
	}

	return token, nil
}

// Interceptor provides JWT authentication for gRPC servers.
type Interceptor struct {
	validator           entraauth.TokenValidator
	tokenExtractor      TokenExtractor
	credentialsOptional bool
	logger              entraauth.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithTokenExtractor overrides MetadataTokenExtractor.
func WithTokenExtractor(e TokenExtractor) Option {
	return func(i *Interceptor) {
		i.tokenExtractor = e
	}
}

// WithCredentialsOptional lets calls without any token through.
func WithCredentialsOptional(value bool) Option {
	return func(i *Interceptor) {
		i.credentialsOptional = value
	}
}

// WithLogger sets an optional logger.
func WithLogger(logger entraauth.Logger) Option {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// New creates an Interceptor delegating to the given validator.
func New(v entraauth.TokenValidator, opts ...Option) *Interceptor {
	i := &Interceptor{
		validator:      v,
		tokenExtractor: MetadataTokenExtractor,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// authenticate extracts and validates the token, returning a context with
// the validated identity attached.
func (i *Interceptor) authenticate(ctx context.Context, method string) (context.Context, error) {
	token, err := i.tokenExtractor(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "authorization metadata is malformed")
	}

	if token == "" {
		if i.credentialsOptional {
			return ctx, nil
		}
		return nil, status.Error(codes.Unauthenticated, "bearer token is missing")
	}

	claims, err := i.validator.ValidateToken(ctx, token)
	if err != nil {
		if i.logger != nil {
			i.logger.Warnf("token validation failed for %s: %v", method, err)
		}
		if reason, ok := validator.ReasonOf(err); ok && reason == validator.ReasonServiceUnavailable {
			return nil, status.Error(codes.Unavailable, "could not verify bearer token")
		}
		return nil, status.Error(codes.Unauthenticated, "bearer token is invalid")
	}

	return entraauth.NewContextWithClaims(ctx, claims), nil
}

// UnaryServerInterceptor returns a gRPC unary server interceptor enforcing
// bearer-token authentication.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		authCtx, err := i.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(authCtx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor
// enforcing bearer-token authentication.
func (i *Interceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		authCtx, err := i.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: authCtx})
	}
}

// authenticatedStream overrides the stream context with the authenticated
// one.
type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}
