package ports

import (
	"context"
	"time"

	"github.com/reuf/lending-system/internal/core/domain"
)

// BorrowInput holds the proposed terms of a borrowing.
type BorrowInput struct {
	BorrowingDate time.Time
	ReturnDate    time.Time
	Quantity      int
	Description   string
	Remarks       string
}

// BorrowingService runs and queries borrowing transactions.
type BorrowingService interface {
	Borrow(ctx context.Context, caller *domain.User, itemID, userID int64, input BorrowInput) (*domain.Borrowing, error)
	Get(ctx context.Context, caller *domain.User, id int64) (*domain.Borrowing, error)
	ListForUser(ctx context.Context, caller *domain.User, userID int64, page, limit int) (*Page[*domain.Borrowing], error)
	ListWithItem(ctx context.Context, caller *domain.User, itemID int64, page, limit int) (*Page[*domain.Borrowing], error)
	List(ctx context.Context, caller *domain.User, page, limit int) (*Page[*domain.Borrowing], error)
	Cancel(ctx context.Context, caller *domain.User, id int64) error
}
