package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/pkg/metrics"
	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

// BorrowingService runs borrow transactions and queries their history.
type BorrowingService struct {
	borrowings ports.BorrowingRepository
	users      ports.UserRepository
	validator  *BorrowValidator
	policy     *AccessPolicy
	logger     zerolog.Logger
}

func NewBorrowingService(
	borrowings ports.BorrowingRepository,
	users ports.UserRepository,
	validator *BorrowValidator,
	policy *AccessPolicy,
	logger zerolog.Logger,
) *BorrowingService {
	return &BorrowingService{
		borrowings: borrowings,
		users:      users,
		validator:  validator,
		policy:     policy,
		logger:     logger,
	}
}

// Borrow lends itemID to userID. Users borrow for themselves; administrators
// may borrow on anyone's behalf.
func (s *BorrowingService) Borrow(ctx context.Context, caller *domain.User, itemID, userID int64, in ports.BorrowInput) (*domain.Borrowing, error) {
	if !s.policy.AuthorizeSelfOrAdmin(caller, userID) {
		return nil, s.reject(domain.Errorf(domain.ErrUnauthorized, "cannot borrow on behalf of another user"))
	}

	borrower := caller
	if caller.ID != userID {
		var err error
		if borrower, err = s.users.FindByID(ctx, userID); err != nil {
			return nil, s.reject(err)
		}
	}

	b, err := s.validator.Borrow(ctx, borrower, &domain.Item{ID: itemID}, in)
	if err != nil {
		return nil, s.reject(err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	created, err := s.borrowings.Create(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("borrow: %w", err)
	}

	metrics.BorrowingsCreatedTotal.Inc()
	s.logger.Info().
		Int64("borrowing_id", created.ID).
		Int64("user_id", userID).
		Int64("item_id", itemID).
		Int("quantity", created.Quantity).
		Msg("borrowing created")
	return created, nil
}

// Get returns a borrowing to its owner or to staff.
func (s *BorrowingService) Get(ctx context.Context, caller *domain.User, id int64) (*domain.Borrowing, error) {
	b, err := s.borrowings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsStaff() && (caller == nil || !b.BelongsTo(caller.ID)) {
		return nil, domain.Errorf(domain.ErrUnauthorized, "cannot view another user's borrowing")
	}
	return b, nil
}

// ListForUser lists a user's borrowings, newest first. Self or staff.
func (s *BorrowingService) ListForUser(ctx context.Context, caller *domain.User, userID int64, page, limit int) (*ports.Page[*domain.Borrowing], error) {
	if caller == nil || (caller.ID != userID && !caller.IsStaff()) {
		return nil, domain.Errorf(domain.ErrUnauthorized, "cannot list another user's borrowings")
	}
	return s.list(ctx, ports.ListBorrowingsFilter{UserID: &userID}, page, limit)
}

// ListWithItem lists the borrowings of an item, newest first. Staff only.
func (s *BorrowingService) ListWithItem(ctx context.Context, caller *domain.User, itemID int64, page, limit int) (*ports.Page[*domain.Borrowing], error) {
	if !caller.IsStaff() {
		return nil, domain.Errorf(domain.ErrUnauthorized, "listing item borrowings requires a staff role")
	}
	return s.list(ctx, ports.ListBorrowingsFilter{ItemID: &itemID}, page, limit)
}

// List lists every borrowing, newest first. Staff only.
func (s *BorrowingService) List(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.Borrowing], error) {
	if !caller.IsStaff() {
		return nil, domain.Errorf(domain.ErrUnauthorized, "listing borrowings requires a staff role")
	}
	return s.list(ctx, ports.ListBorrowingsFilter{}, page, limit)
}

// Cancel deletes a borrowing. Owner or staff.
func (s *BorrowingService) Cancel(ctx context.Context, caller *domain.User, id int64) error {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	if err := s.borrowings.Delete(ctx, id); err != nil {
		return fmt.Errorf("cancel borrowing: %w", err)
	}
	s.logger.Info().Int64("borrowing_id", id).Int64("by", caller.ID).Msg("borrowing cancelled")
	return nil
}

func (s *BorrowingService) list(ctx context.Context, f ports.ListBorrowingsFilter, page, limit int) (*ports.Page[*domain.Borrowing], error) {
	f.Page, f.Limit = normalizePage(page, limit)
	items, total, err := s.borrowings.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list borrowings: %w", err)
	}
	return newPage(items, total, f.Page, f.Limit), nil
}

func (s *BorrowingService) reject(err error) error {
	metrics.BorrowRejectionsTotal.WithLabelValues(domain.KindOf(err)).Inc()
	return err
}
