package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Create registers a new identity with an empty role set. Requests carrying
// a role or roles field are refused.
//
// @Summary      Register a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "User details"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /api/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "invalid payload")
	}

	in := ports.CreateUserInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		Sciper:        req.Sciper,
		Unit:          req.Unit,
		RolesProvided: len(req.Role) > 0 || len(req.Roles) > 0,
	}
	if !in.RolesProvided {
		if err := c.Validate(&req); err != nil {
			return domain.Errorf(domain.ErrInvalidArgument, "%s", err.Error())
		}
	}

	user, err := h.service.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("%s/users/%d", apiPrefix, user.ID))
	return c.JSON(http.StatusCreated, toUserResponse(user, user))
}

// Get returns a user. The private view is shown to the user itself and to
// staff.
//
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	user, err := h.service.Get(c.Request().Context(), viewer, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(viewer, user))
}

// List returns a page of users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page      query     int  false  "Page number (default 1)"
// @Param        per_page  query     int  false  "Page size (default 20, max 100)"
// @Success      200       {object}  listResponse[userResponse]
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	page, perPage := pagination(c)

	result, err := h.service.List(c.Request().Context(), viewer, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(result, func(u *domain.User) userResponse {
		return toUserResponse(viewer, u)
	}))
}

// Update applies a partial update. Only admins may change roles; every role
// change notifies the administrators.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "User id"
// @Param        body  body      updateUserRequest  true  "Fields to change"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.service.Update(c.Request().Context(), viewer, id, toUpdateUserInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(viewer, user))
}

// Delete removes a user. Their borrowings are kept with no borrower.
//
// @Summary      Delete a user
// @Tags         users
// @Security     BearerAuth
// @Param        id   path      int  true  "User id"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), viewer, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
