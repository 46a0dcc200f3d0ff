package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

type TokenHandler struct {
	authService ports.AuthService
}

func NewTokenHandler(authService ports.AuthService) *TokenHandler {
	return &TokenHandler{authService: authService}
}

// Create exchanges HTTP Basic credentials for a bearer token. A token that
// is still valid beyond the reuse window is returned instead of a new one.
//
// @Summary      Get a bearer token
// @Tags         tokens
// @Produce      json
// @Security     BasicAuth
// @Success      200  {object}  tokenResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /api/tokens [post]
func (h *TokenHandler) Create(c echo.Context) error {
	username, password, ok := c.Request().BasicAuth()
	if !ok {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="api"`)
		return domain.Errorf(domain.ErrInvalidCredentials, "basic credentials required")
	}

	token, user, err := h.authService.Login(c.Request().Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="api"`)
		}
		return err
	}

	resp := tokenResponse{Token: token}
	if user != nil {
		resp.ExpiresAt = user.TokenExpiration
	}
	return c.JSON(http.StatusOK, resp)
}

// Revoke expires the bearer token of a user. Users may revoke their own
// token; admins may revoke anyone's.
//
// @Summary      Revoke a user's token
// @Tags         tokens
// @Security     BearerAuth
// @Param        id   path      int  true  "User id"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/tokens/{id} [delete]
func (h *TokenHandler) Revoke(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), user, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeAll expires every stored token.
//
// @Summary      Revoke all tokens
// @Tags         tokens
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/tokens [delete]
func (h *TokenHandler) RevokeAll(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}

	if _, err := h.authService.LogoutAll(c.Request().Context(), user); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
