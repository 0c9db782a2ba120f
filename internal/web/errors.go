package web

// errors.go provides unified error response handling for the web layer.
//
// Handlers return coded errors from the jobs and notebook packages. The
// error code picks the HTTP status and the body is errors.ToJSON of the
// error. Errors without a code become an opaque 500 so driver or file
// system details never reach the client; the original is still logged
// with the request id for correlation.

import (
	"net/http"

	"github.com/jmgilman/go/errors"

	"github.com/JonMunkholm/taska/internal/logging"
	"github.com/JonMunkholm/taska/internal/web/middleware"
)

// statusFor maps an error code to an HTTP status.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodeForbidden:
		return http.StatusForbidden
	case errors.CodeAlreadyExists, errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeRateLimit:
		return http.StatusTooManyRequests
	case errors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it as a JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", string(code),
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if code == errors.CodeUnknown {
		err = errors.New(errors.CodeInternal, "internal server error")
	}
	middleware.WriteError(w, status, err)
}

// invalidInput builds a 400-class error for malformed request parameters.
func invalidInput(format string, args ...any) error {
	return errors.Newf(errors.CodeInvalidInput, format, args...)
}
