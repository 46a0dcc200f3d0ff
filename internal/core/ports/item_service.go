package ports

import (
	"context"
	"time"

	"github.com/reuf/lending-system/internal/core/domain"
)

// ItemInput carries item fields for create and update; nil fields are left
// unchanged on update.
type ItemInput struct {
	Name              *string
	Description       *string
	BoxName           *string
	Location          *string
	Unit              *string
	Quantity          *int
	ExpiryDate        *time.Time
	Power             *int
	Value             *int
	NeedsCleaning     *bool
	Condition         *string
	Remarks           *string
	AccessControlList *[]string
}

// ItemService manages the inventory. Items the caller may not see behave as
// if they did not exist.
type ItemService interface {
	Get(ctx context.Context, caller *domain.User, id int64) (*domain.Item, error)
	List(ctx context.Context, caller *domain.User, page, limit int) (*Page[*domain.Item], error)
	Create(ctx context.Context, caller *domain.User, input ItemInput) (*domain.Item, error)
	Update(ctx context.Context, caller *domain.User, id int64, input ItemInput) (*domain.Item, error)
	Delete(ctx context.Context, caller *domain.User, id int64) error
}
