package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reuf/lending-system/internal/core/domain"
)

// RoleChecker answers whether a user holds any of the candidate roles.
type RoleChecker interface {
	HasAnyRole(user *domain.User, candidates domain.Roles) (bool, error)
}

// RBAC lets the request through when the authenticated caller holds at least
// one of allowedRoles. Must run after Auth.
func RBAC(checker RoleChecker, allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := domain.Roles(allowedRoles)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, err := checker.HasAnyRole(CurrentUser(c), allowed)
			if err != nil {
				return err
			}
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "forbidden",
					"kind":  domain.KindOf(domain.ErrUnauthorized),
				})
			}
			return next(c)
		}
	}
}
