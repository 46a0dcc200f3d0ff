package ports

import (
	"context"

	"github.com/reuf/lending-system/internal/core/domain"
)

// CreateUserInput carries a signup request. RolesProvided is set when the
// request contained any role field, which is always refused.
type CreateUserInput struct {
	Username      string
	Email         string
	Password      string
	Sciper        int64
	Unit          string
	RolesProvided bool
}

// UpdateUserInput carries a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Sciper   *int64
	Unit     *string
	Roles    *[]string
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// UserService manages identities on behalf of an authenticated caller.
type UserService interface {
	Create(ctx context.Context, input CreateUserInput) (*domain.User, error)
	Get(ctx context.Context, caller *domain.User, id int64) (*domain.User, error)
	List(ctx context.Context, caller *domain.User, page, limit int) (*Page[*domain.User], error)
	Update(ctx context.Context, caller *domain.User, id int64, input UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, caller *domain.User, id int64) error
}
