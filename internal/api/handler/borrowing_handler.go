package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

type BorrowingHandler struct {
	service ports.BorrowingService
}

func NewBorrowingHandler(service ports.BorrowingService) *BorrowingHandler {
	return &BorrowingHandler{service: service}
}

// Borrow records that a user takes a quantity of an item for a date range.
// Users borrow for themselves; admins may borrow on behalf of anyone.
//
// @Summary      Borrow an item
// @Tags         borrowings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        item_id  path      int            true  "Item id"
// @Param        user_id  path      int            true  "Borrower id"
// @Param        body     body      borrowRequest  true  "Borrowing terms"
// @Success      201      {object}  borrowingResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      403      {object}  errorResponse
// @Failure      404      {object}  errorResponse
// @Failure      422      {object}  errorResponse
// @Router       /api/borrowings/borrow/{item_id}/{user_id} [post]
func (h *BorrowingHandler) Borrow(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	itemID, err := pathID(c, "item_id")
	if err != nil {
		return err
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	var req borrowRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in, err := toBorrowInput(req)
	if err != nil {
		return err
	}

	b, err := h.service.Borrow(c.Request().Context(), viewer, itemID, userID, in)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("%s/borrowings/%d", apiPrefix, b.ID))
	return c.JSON(http.StatusCreated, toBorrowingResponse(b))
}

// Get returns a borrowing visible to its owner and to staff.
//
// @Summary      Get a borrowing
// @Tags         borrowings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Borrowing id"
// @Success      200  {object}  borrowingResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/borrowings/{id} [get]
func (h *BorrowingHandler) Get(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	b, err := h.service.Get(c.Request().Context(), viewer, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBorrowingResponse(b))
}

// ListForUser returns the borrowings of a user, newest first.
//
// @Summary      List a user's borrowings
// @Tags         borrowings
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      int  true   "User id"
// @Param        page      query     int  false  "Page number (default 1)"
// @Param        per_page  query     int  false  "Page size (default 20, max 100)"
// @Success      200       {object}  listResponse[borrowingResponse]
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /api/borrowings/for_user/{id} [get]
func (h *BorrowingHandler) ListForUser(c echo.Context) error {
	return h.listByID(c, h.service.ListForUser)
}

// ListWithItem returns the borrowings of an item, newest first.
//
// @Summary      List an item's borrowings
// @Tags         borrowings
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      int  true   "Item id"
// @Param        page      query     int  false  "Page number (default 1)"
// @Param        per_page  query     int  false  "Page size (default 20, max 100)"
// @Success      200       {object}  listResponse[borrowingResponse]
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /api/borrowings/with_item/{id} [get]
func (h *BorrowingHandler) ListWithItem(c echo.Context) error {
	return h.listByID(c, h.service.ListWithItem)
}

// List returns every borrowing, newest first.
//
// @Summary      List borrowings
// @Tags         borrowings
// @Produce      json
// @Security     BearerAuth
// @Param        page      query     int  false  "Page number (default 1)"
// @Param        per_page  query     int  false  "Page size (default 20, max 100)"
// @Success      200       {object}  listResponse[borrowingResponse]
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /api/borrowings [get]
func (h *BorrowingHandler) List(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	page, perPage := pagination(c)

	result, err := h.service.List(c.Request().Context(), viewer, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(result, toBorrowingResponse))
}

// Cancel deletes a borrowing.
//
// @Summary      Cancel a borrowing
// @Tags         borrowings
// @Security     BearerAuth
// @Param        id   path      int  true  "Borrowing id"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/borrowings/{id} [delete]
func (h *BorrowingHandler) Cancel(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Cancel(c.Request().Context(), viewer, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type listFunc func(ctx context.Context, viewer *domain.User, id int64, page, limit int) (*ports.Page[*domain.Borrowing], error)

func (h *BorrowingHandler) listByID(c echo.Context, list listFunc) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	page, perPage := pagination(c)

	result, err := list(c.Request().Context(), viewer, id, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(result, toBorrowingResponse))
}
