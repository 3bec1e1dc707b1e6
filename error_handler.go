package entraauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nsslabs/entra-auth-backend/validator"
)

var (
	// ErrJWTMissing is returned when no bearer token is present on the
	// request.
	ErrJWTMissing = errors.New("bearer token is missing")

	// ErrMalformedAuthHeader is returned when an Authorization header is
	// present but does not match the bearer scheme.
	ErrMalformedAuthHeader = errors.New(`authorization header format must be "Bearer <token>"`)

	// ErrJWTInvalid is returned when the bearer token fails validation.
	// Use validator.ReasonOf to recover the precise rejection reason.
	ErrJWTInvalid = errors.New("bearer token is invalid")
)

// codeMissingOrMalformedHeader is emitted for failures that happen before
// the validator runs: no Authorization header, or one that does not match
// the bearer scheme.
const codeMissingOrMalformedHeader = "missing_or_malformed_header"

// ErrorHandler is a handler which is called when an error occurs in the
// Middleware. It determines the response sent when a token is missing or
// invalid. The err can be checked against ErrJWTMissing,
// ErrMalformedAuthHeader and ErrJWTInvalid. If you implement your own
// ErrorHandler you MUST take these error types into consideration.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// errorResponse is the JSON body written for rejected requests. Code is a
// stable machine-readable reason so clients can distinguish "your token is
// bad" from "we could not check your token" (unknown_key and
// service_unavailable).
type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// DefaultErrorHandler is the error handler used when WithErrorHandler is
// not supplied. Every authentication failure maps to 401 Unauthorized with
// a WWW-Authenticate challenge; 403 is reserved for authorization failures,
// which do not arise here. Unexpected errors map to 500.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrJWTMissing), errors.Is(err, ErrMalformedAuthHeader):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_request"`)
		writeError(w, http.StatusUnauthorized, errorResponse{
			Message: "Authorization header is missing or malformed.",
			Code:    codeMissingOrMalformedHeader,
		})
	case errors.Is(err, ErrJWTInvalid):
		code := "invalid_token"
		if reason, ok := validator.ReasonOf(err); ok {
			code = string(reason)
		}
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeError(w, http.StatusUnauthorized, errorResponse{
			Message: "Bearer token is invalid.",
			Code:    code,
		})
	default:
		writeError(w, http.StatusInternalServerError, errorResponse{
			Message: "Something went wrong while checking the bearer token.",
			Code:    "internal_error",
		})
	}
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// invalidError handles wrapping a token validation error with
// the concrete error ErrJWTInvalid. We do not expose this
// publicly because the interface methods of Is and Unwrap
// should give the user all they need.
type invalidError struct {
	details error
}

// Is allows the error to support equality to ErrJWTInvalid.
func (e *invalidError) Is(target error) bool {
	return target == ErrJWTInvalid
}

// Error returns a string representation of the error.
func (e *invalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrJWTInvalid, e.details)
}

// Unwrap allows the error to support equality to the
// underlying error and not just ErrJWTInvalid.
func (e *invalidError) Unwrap() error {
	return e.details
}
