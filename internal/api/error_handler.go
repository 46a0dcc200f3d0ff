package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error kinds to their HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "kind": "<kind>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Kind: httpKind(he.Code)}
	}

	if code, ok := statusOf(err); ok {
		return code, errorResponse{Error: err.Error(), Kind: domain.KindOf(err)}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("kind", domain.KindOf(err)).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Kind: "internal"}
}

// statusOf maps a known domain kind to its HTTP status.
func statusOf(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrRoleAssignmentForbidden):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, true
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, true
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrBorrowingNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidDateRange):
		return http.StatusUnprocessableEntity, true
	}
	return 0, false
}

func httpKind(code int) string {
	switch code {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnauthorized:
		return "token_invalid"
	case http.StatusForbidden:
		return "unauthorized"
	}
	if code >= http.StatusInternalServerError {
		return "internal"
	}
	return "invalid_argument"
}
