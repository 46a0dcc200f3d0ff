package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

const (
	maxBorrowDescription = 64
	maxBorrowRemarks     = 128
)

// AvailabilityPolicy decides whether quantity units of item can be lent out.
// It runs last, after every other check passed.
type AvailabilityPolicy interface {
	Check(ctx context.Context, item *domain.Item, quantity int) error
}

// UnlimitedStock accepts any quantity. Stock is not tracked.
type UnlimitedStock struct{}

func (UnlimitedStock) Check(context.Context, *domain.Item, int) error { return nil }

type itemFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.Item, error)
}

// BorrowValidator checks proposed borrowings and builds the record. It reads
// the item store but never writes; persisting the result is up to the caller.
type BorrowValidator struct {
	items        itemFinder
	policy       *AccessPolicy
	availability AvailabilityPolicy
	clock        ports.Clock
}

// NewBorrowValidator returns a validator. A nil availability policy means
// UnlimitedStock and a nil clock the system clock.
func NewBorrowValidator(items itemFinder, policy *AccessPolicy, availability AvailabilityPolicy, clock ports.Clock) *BorrowValidator {
	if availability == nil {
		availability = UnlimitedStock{}
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &BorrowValidator{items: items, policy: policy, availability: availability, clock: clock}
}

// Borrow validates the terms and returns an unsaved Borrowing. Checks run in
// order: the item still exists and is visible to the borrower, the quantity
// is at least one, the period is not inverted and does not start before
// today. Dates are compared as calendar days in UTC.
func (v *BorrowValidator) Borrow(ctx context.Context, borrower *domain.User, item *domain.Item, terms ports.BorrowInput) (*domain.Borrowing, error) {
	if borrower == nil {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "borrower is required")
	}
	if item == nil {
		return nil, domain.Errorf(domain.ErrItemNotFound, "item not found")
	}

	current, err := v.items.FindByID(ctx, item.ID)
	if errors.Is(err, domain.ErrItemNotFound) {
		return nil, domain.Errorf(domain.ErrItemNotFound, "item %d not found", item.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("borrow: %w", err)
	}
	if !v.policy.CanAccessResource(borrower.Roles, current.AccessControlList) {
		return nil, domain.Errorf(domain.ErrItemNotFound, "item %d not found", item.ID)
	}

	if terms.Quantity < 1 {
		return nil, domain.Errorf(domain.ErrInvalidQuantity, "quantity must be at least 1, got %d", terms.Quantity)
	}

	now := v.clock.Now()
	today := domain.DateOf(now)
	from, to := domain.DateOf(terms.BorrowingDate), domain.DateOf(terms.ReturnDate)
	if from.After(to) {
		return nil, domain.Errorf(domain.ErrInvalidDateRange, "borrowing date %s is after return date %s",
			from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	}
	if from.Before(today) {
		return nil, domain.Errorf(domain.ErrInvalidDateRange, "borrowing date %s is in the past",
			from.Format(domain.DateLayout))
	}

	if utf8.RuneCountInString(terms.Description) > maxBorrowDescription {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "description exceeds %d characters", maxBorrowDescription)
	}
	if utf8.RuneCountInString(terms.Remarks) > maxBorrowRemarks {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "remarks exceed %d characters", maxBorrowRemarks)
	}

	if err := v.availability.Check(ctx, current, terms.Quantity); err != nil {
		return nil, err
	}

	userID, itemID := borrower.ID, current.ID
	return &domain.Borrowing{
		UserID:        &userID,
		ItemID:        &itemID,
		CreatedAt:     now,
		BorrowingDate: from,
		ReturnDate:    to,
		Quantity:      terms.Quantity,
		Description:   terms.Description,
		Remarks:       terms.Remarks,
	}, nil
}
