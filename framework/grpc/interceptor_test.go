package grpcauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	entraauth "github.com/nsslabs/entra-auth-backend"
	"github.com/nsslabs/entra-auth-backend/validator"
)

type stubValidator struct {
	claims *validator.ValidatedClaims
	err    error
}

func (s *stubValidator) ValidateToken(context.Context, string) (*validator.ValidatedClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func contextWithAuthorization(value string) context.Context {
	md := metadata.Pairs("authorization", value)
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestMetadataTokenExtractor(t *testing.T) {
	t.Run("no metadata means no token", func(t *testing.T) {
		token, err := MetadataTokenExtractor(context.Background())
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("well formed bearer value", func(t *testing.T) {
		token, err := MetadataTokenExtractor(contextWithAuthorization("Bearer abc.def.ghi"))
		require.NoError(t, err)
		assert.Equal(t, "abc.def.ghi", token)
	})

	t.Run("malformed value is an error", func(t *testing.T) {
		for _, value := range []string{"bearer abc", "Bearer", "Bearer two parts", "Basic creds"} {
			_, err := MetadataTokenExtractor(contextWithAuthorization(value))
			assert.ErrorIs(t, err, entraauth.ErrMalformedAuthHeader, "value %q", value)
		}
	})
}

func TestUnaryServerInterceptor(t *testing.T) {
	claims := &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: "user-123"},
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}

	t.Run("valid token invokes the handler with the identity", func(t *testing.T) {
		interceptor := New(&stubValidator{claims: claims})

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			got, ok := entraauth.ClaimsFromContext(ctx)
			require.True(t, ok)
			return got.RegisteredClaims.Subject, nil
		}

		resp, err := interceptor.UnaryServerInterceptor()(contextWithAuthorization("Bearer some.jwt.token"), nil, info, handler)
		require.NoError(t, err)
		assert.Equal(t, "user-123", resp)
	})

	t.Run("missing token is Unauthenticated", func(t *testing.T) {
		interceptor := New(&stubValidator{claims: claims})

		_, err := interceptor.UnaryServerInterceptor()(context.Background(), nil, info, nil)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("invalid token is Unauthenticated", func(t *testing.T) {
		interceptor := New(&stubValidator{err: &validator.ValidationError{Reason: validator.ReasonExpired}})

		_, err := interceptor.UnaryServerInterceptor()(contextWithAuthorization("Bearer some.jwt.token"), nil, info, nil)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("key source outage is Unavailable", func(t *testing.T) {
		interceptor := New(&stubValidator{err: &validator.ValidationError{Reason: validator.ReasonServiceUnavailable}})

		_, err := interceptor.UnaryServerInterceptor()(contextWithAuthorization("Bearer some.jwt.token"), nil, info, nil)
		assert.Equal(t, codes.Unavailable, status.Code(err))
	})

	t.Run("optional credentials let tokenless calls through", func(t *testing.T) {
		interceptor := New(&stubValidator{claims: claims}, WithCredentialsOptional(true))

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			_, ok := entraauth.ClaimsFromContext(ctx)
			assert.False(t, ok)
			return "anonymous", nil
		}

		resp, err := interceptor.UnaryServerInterceptor()(context.Background(), nil, info, handler)
		require.NoError(t, err)
		assert.Equal(t, "anonymous", resp)
	})
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeServerStream) Context() context.Context {
	return s.ctx
}

func TestStreamServerInterceptor(t *testing.T) {
	claims := &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: "user-123"},
	}
	info := &grpc.StreamServerInfo{FullMethod: "/svc/Stream"}

	t.Run("valid token invokes the handler with the identity", func(t *testing.T) {
		interceptor := New(&stubValidator{claims: claims})
		stream := &fakeServerStream{ctx: contextWithAuthorization("Bearer some.jwt.token")}

		handler := func(srv interface{}, ss grpc.ServerStream) error {
			got, ok := entraauth.ClaimsFromContext(ss.Context())
			require.True(t, ok)
			assert.Equal(t, "user-123", got.RegisteredClaims.Subject)
			return nil
		}

		assert.NoError(t, interceptor.StreamServerInterceptor()(nil, stream, info, handler))
	})

	t.Run("missing token is Unauthenticated", func(t *testing.T) {
		interceptor := New(&stubValidator{claims: claims})
		stream := &fakeServerStream{ctx: context.Background()}

		err := interceptor.StreamServerInterceptor()(nil, stream, info, nil)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}
