package ports

import (
	"context"

	"github.com/reuf/lending-system/internal/core/domain"
)

// ListItemsFilter selects a page of items whose access-control list is
// satisfied by VisibleTo.
type ListItemsFilter struct {
	VisibleTo domain.Roles
	Page      int // 1-based
	Limit     int
}

// ItemRepository persists inventory items. Missing items yield
// domain.ErrItemNotFound; duplicate names yield domain.ErrConflict.
type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) (*domain.Item, error)
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Item, error)
	List(ctx context.Context, filter ListItemsFilter) ([]*domain.Item, int64, error)
}
