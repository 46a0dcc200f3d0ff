package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/reuf/lending-system/internal/api/middleware"
	"github.com/reuf/lending-system/internal/core/domain"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100

	// maxPage keeps the skip offset (page-1)*per_page inside an int.
	maxPage = math.MaxInt / maxPerPage
)

// caller returns the identity injected by the Auth middleware. A missing
// identity means the route was registered without Auth, so fail closed.
func caller(c echo.Context) (*domain.User, error) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return user, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Errorf(domain.ErrInvalidArgument, "%s must be a positive integer", name)
	}
	return id, nil
}

// pagination reads page and per_page from the query string. Out-of-range
// values fall back to the defaults; page and per_page are capped.
func pagination(c echo.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	perPage, _ = strconv.Atoi(c.QueryParam("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// bindAndValidate decodes the body into req and runs struct validation.
// Both failures are reported as invalid arguments.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "%s", err.Error())
	}
	return nil
}
