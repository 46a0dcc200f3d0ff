package ports

import (
	"context"

	"github.com/reuf/lending-system/internal/core/domain"
)

// ListBorrowingsFilter narrows a borrowing listing. Nil ids mean no filter.
// Results are ordered newest first.
type ListBorrowingsFilter struct {
	UserID *int64
	ItemID *int64
	Page   int
	Limit  int
}

// BorrowingRepository persists borrowings. References to users and items are
// plain foreign keys; the Detach methods null them when the target is deleted.
type BorrowingRepository interface {
	Create(ctx context.Context, b *domain.Borrowing) (*domain.Borrowing, error)
	FindByID(ctx context.Context, id int64) (*domain.Borrowing, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListBorrowingsFilter) ([]*domain.Borrowing, int64, error)

	DetachUser(ctx context.Context, userID int64) error
	DetachItem(ctx context.Context, itemID int64) error
}
