package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/reuf/lending-system/internal/core/domain"
)

// UserKey is the echo context key holding the authenticated *domain.User.
const UserKey = "user"

// Authenticator resolves a bearer token to its identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Auth validates the bearer token against the store and injects the caller
// into context. Revoked or expired tokens are refused on the next request.
func Auth(authn Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c, "missing or malformed bearer token")
			}

			user, err := authn.Authenticate(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrTokenInvalid) {
					return unauthorized(c, "invalid token")
				}
				return err
			}

			c.Set(UserKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the identity injected by Auth, or nil.
func CurrentUser(c echo.Context) *domain.User {
	user, _ := c.Get(UserKey).(*domain.User)
	return user
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="api"`)
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": msg,
		"kind":  domain.KindOf(domain.ErrTokenInvalid),
	})
}
