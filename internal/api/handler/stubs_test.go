package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/reuf/lending-system/internal/api/middleware"
	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

var (
	admin = &domain.User{ID: 1, Username: "root", Email: "root@example.org", Sciper: 100001, Roles: domain.Roles{domain.RoleAdmin}}
	staff = &domain.User{ID: 2, Username: "keeper", Email: "keeper@example.org", Sciper: 100002, Roles: domain.Roles{domain.RoleStaff}}
	alice = &domain.User{ID: 3, Username: "alice", Email: "alice@example.org", Sciper: 100003, Unit: "student"}
	bob   = &domain.User{ID: 4, Username: "bob", Email: "bob@example.org", Sciper: 100004}
)

// newContext builds an echo context with the validator installed. A non-nil
// user is injected the way the Auth middleware does.
func newContext(method, target, body string, user *domain.User) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != nil {
		c.Set(middleware.UserKey, user)
	}
	return c, rec
}

func withParams(c echo.Context, kv ...string) echo.Context {
	names := make([]string, 0, len(kv)/2)
	values := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}

func date(s string) time.Time {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

type stubAuthService struct {
	loginFn     func(ctx context.Context, username, password string) (string, *domain.User, error)
	logoutFn    func(ctx context.Context, caller *domain.User, targetID int64) error
	logoutAllFn func(ctx context.Context, caller *domain.User) (int64, error)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthService) Authenticate(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrTokenInvalid
}

func (s *stubAuthService) Logout(ctx context.Context, caller *domain.User, targetID int64) error {
	return s.logoutFn(ctx, caller, targetID)
}

func (s *stubAuthService) LogoutAll(ctx context.Context, caller *domain.User) (int64, error) {
	return s.logoutAllFn(ctx, caller)
}

type stubUserService struct {
	createFn func(ctx context.Context, in ports.CreateUserInput) (*domain.User, error)
	getFn    func(ctx context.Context, caller *domain.User, id int64) (*domain.User, error)
	listFn   func(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.User], error)
	updateFn func(ctx context.Context, caller *domain.User, id int64, in ports.UpdateUserInput) (*domain.User, error)
	deleteFn func(ctx context.Context, caller *domain.User, id int64) error
}

func (s *stubUserService) Create(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, in)
}

func (s *stubUserService) Get(ctx context.Context, caller *domain.User, id int64) (*domain.User, error) {
	return s.getFn(ctx, caller, id)
}

func (s *stubUserService) List(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.User], error) {
	return s.listFn(ctx, caller, page, limit)
}

func (s *stubUserService) Update(ctx context.Context, caller *domain.User, id int64, in ports.UpdateUserInput) (*domain.User, error) {
	return s.updateFn(ctx, caller, id, in)
}

func (s *stubUserService) Delete(ctx context.Context, caller *domain.User, id int64) error {
	return s.deleteFn(ctx, caller, id)
}

type stubItemService struct {
	getFn    func(ctx context.Context, caller *domain.User, id int64) (*domain.Item, error)
	listFn   func(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.Item], error)
	createFn func(ctx context.Context, caller *domain.User, in ports.ItemInput) (*domain.Item, error)
	updateFn func(ctx context.Context, caller *domain.User, id int64, in ports.ItemInput) (*domain.Item, error)
	deleteFn func(ctx context.Context, caller *domain.User, id int64) error
}

func (s *stubItemService) Get(ctx context.Context, caller *domain.User, id int64) (*domain.Item, error) {
	return s.getFn(ctx, caller, id)
}

func (s *stubItemService) List(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.Item], error) {
	return s.listFn(ctx, caller, page, limit)
}

func (s *stubItemService) Create(ctx context.Context, caller *domain.User, in ports.ItemInput) (*domain.Item, error) {
	return s.createFn(ctx, caller, in)
}

func (s *stubItemService) Update(ctx context.Context, caller *domain.User, id int64, in ports.ItemInput) (*domain.Item, error) {
	return s.updateFn(ctx, caller, id, in)
}

func (s *stubItemService) Delete(ctx context.Context, caller *domain.User, id int64) error {
	return s.deleteFn(ctx, caller, id)
}

type stubBorrowingService struct {
	borrowFn       func(ctx context.Context, caller *domain.User, itemID, userID int64, in ports.BorrowInput) (*domain.Borrowing, error)
	getFn          func(ctx context.Context, caller *domain.User, id int64) (*domain.Borrowing, error)
	listForUserFn  func(ctx context.Context, caller *domain.User, userID int64, page, limit int) (*ports.Page[*domain.Borrowing], error)
	listWithItemFn func(ctx context.Context, caller *domain.User, itemID int64, page, limit int) (*ports.Page[*domain.Borrowing], error)
	listFn         func(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.Borrowing], error)
	cancelFn       func(ctx context.Context, caller *domain.User, id int64) error
}

func (s *stubBorrowingService) Borrow(ctx context.Context, caller *domain.User, itemID, userID int64, in ports.BorrowInput) (*domain.Borrowing, error) {
	return s.borrowFn(ctx, caller, itemID, userID, in)
}

func (s *stubBorrowingService) Get(ctx context.Context, caller *domain.User, id int64) (*domain.Borrowing, error) {
	return s.getFn(ctx, caller, id)
}

func (s *stubBorrowingService) ListForUser(ctx context.Context, caller *domain.User, userID int64, page, limit int) (*ports.Page[*domain.Borrowing], error) {
	return s.listForUserFn(ctx, caller, userID, page, limit)
}

func (s *stubBorrowingService) ListWithItem(ctx context.Context, caller *domain.User, itemID int64, page, limit int) (*ports.Page[*domain.Borrowing], error) {
	return s.listWithItemFn(ctx, caller, itemID, page, limit)
}

func (s *stubBorrowingService) List(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.Borrowing], error) {
	return s.listFn(ctx, caller, page, limit)
}

func (s *stubBorrowingService) Cancel(ctx context.Context, caller *domain.User, id int64) error {
	return s.cancelFn(ctx, caller, id)
}
