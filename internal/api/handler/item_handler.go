package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

type ItemHandler struct {
	service ports.ItemService
}

func NewItemHandler(service ports.ItemService) *ItemHandler {
	return &ItemHandler{service: service}
}

// Get returns an item the caller is allowed to see.
//
// @Summary      Get an item
// @Tags         items
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Item id"
// @Success      200  {object}  itemResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/items/{id} [get]
func (h *ItemHandler) Get(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	item, err := h.service.Get(c.Request().Context(), viewer, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toItemResponse(viewer, item))
}

// List returns a page of the items the caller is allowed to see.
//
// @Summary      List items
// @Tags         items
// @Produce      json
// @Security     BearerAuth
// @Param        page      query     int  false  "Page number (default 1)"
// @Param        per_page  query     int  false  "Page size (default 20, max 100)"
// @Success      200       {object}  listResponse[itemResponse]
// @Failure      401       {object}  errorResponse
// @Router       /api/items [get]
func (h *ItemHandler) List(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	page, perPage := pagination(c)

	result, err := h.service.List(c.Request().Context(), viewer, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(result, func(it *domain.Item) itemResponse {
		return toItemResponse(viewer, it)
	}))
}

// Create adds an item to the inventory.
//
// @Summary      Create an item
// @Tags         items
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      itemRequest  true  "Item details"
// @Success      201   {object}  itemResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/items [post]
func (h *ItemHandler) Create(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	in, err := h.bindInput(c)
	if err != nil {
		return err
	}

	item, err := h.service.Create(c.Request().Context(), viewer, in)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("%s/items/%d", apiPrefix, item.ID))
	return c.JSON(http.StatusCreated, toItemResponse(viewer, item))
}

// Update changes the given item fields.
//
// @Summary      Update an item
// @Tags         items
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int          true  "Item id"
// @Param        body  body      itemRequest  true  "Fields to change"
// @Success      200   {object}  itemResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/items/{id} [put]
func (h *ItemHandler) Update(c echo.Context) error {
	viewer, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	in, err := h.bindInput(c)
	if err != nil {
		return err
	}

	item, err := h.service.Update(c.Request().Context(), viewer, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toItemResponse(viewer, item))
}

// Delete removes an item. Borrowings of it are kept with no item reference.
//
// @Summary      Delete an item
// @Tags         items
// @Security     BearerAuth
// @Param        id   path      int  true  "Item id"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/items/{id} [delete]
func (h *ItemHandler) Delete(c echo.Context) error {
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

func (h *ItemHandler) bindInput(c echo.Context) (ports.ItemInput, error) {
	var req itemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return ports.ItemInput{}, err
	}
	return toItemInput(req)
}
