package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

// ItemService manages the inventory. Reads are filtered through the item
// access-control lists; writes require a staff role.
type ItemService struct {
	items      ports.ItemRepository
	borrowings ports.BorrowingRepository
	policy     *AccessPolicy
	logger     zerolog.Logger
}

func NewItemService(
	items ports.ItemRepository,
	borrowings ports.BorrowingRepository,
	policy *AccessPolicy,
	logger zerolog.Logger,
) *ItemService {
	return &ItemService{items: items, borrowings: borrowings, policy: policy, logger: logger}
}

// Get returns an item the caller may see. Hidden items are reported missing.
func (s *ItemService) Get(ctx context.Context, caller *domain.User, id int64) (*domain.Item, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanAccessResource(rolesOf(caller), item.AccessControlList) {
		return nil, domain.Errorf(domain.ErrItemNotFound, "item %d not found", id)
	}
	return item, nil
}

// List pages through the items the caller may see.
func (s *ItemService) List(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.Item], error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.items.List(ctx, ports.ListItemsFilter{
		VisibleTo: rolesOf(caller),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return newPage(items, total, page, limit), nil
}

func (s *ItemService) Create(ctx context.Context, caller *domain.User, in ports.ItemInput) (*domain.Item, error) {
	if !caller.IsStaff() {
		return nil, domain.Errorf(domain.ErrUnauthorized, "managing items requires a staff role")
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "name is required")
	}

	item := &domain.Item{AccessControlList: domain.Roles{}}
	if err := applyItemInput(item, in); err != nil {
		return nil, err
	}

	created, err := s.items.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.logger.Info().Int64("item_id", created.ID).Int64("by", caller.ID).Str("name", created.Name).Msg("item created")
	return created, nil
}

func (s *ItemService) Update(ctx context.Context, caller *domain.User, id int64, in ports.ItemInput) (*domain.Item, error) {
	if !caller.IsStaff() {
		return nil, domain.Errorf(domain.ErrUnauthorized, "managing items requires a staff role")
	}
	item, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := applyItemInput(item, in); err != nil {
		return nil, err
	}
	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	s.logger.Info().Int64("item_id", item.ID).Int64("by", caller.ID).Msg("item updated")
	return item, nil
}

// Delete removes an item. Borrowings of it are kept with a null item reference.
func (s *ItemService) Delete(ctx context.Context, caller *domain.User, id int64) error {
	if !caller.IsStaff() {
		return domain.Errorf(domain.ErrUnauthorized, "managing items requires a staff role")
	}
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	if err := s.borrowings.DetachItem(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	s.logger.Info().Int64("item_id", id).Int64("by", caller.ID).Msg("item deleted")
	return nil
}

func applyItemInput(item *domain.Item, in ports.ItemInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.Errorf(domain.ErrInvalidArgument, "name must not be empty")
		}
		item.Name = name
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return domain.Errorf(domain.ErrInvalidArgument, "quantity must not be negative")
		}
		item.Quantity = *in.Quantity
	}
	if in.Power != nil {
		item.Power = *in.Power
	}
	if in.Value != nil {
		item.Value = *in.Value
	}
	if in.NeedsCleaning != nil {
		item.NeedsCleaning = *in.NeedsCleaning
	}
	if in.ExpiryDate != nil {
		d := domain.DateOf(*in.ExpiryDate)
		item.ExpiryDate = &d
	}
	setString(&item.Description, in.Description)
	setString(&item.BoxName, in.BoxName)
	setString(&item.Location, in.Location)
	setString(&item.Unit, in.Unit)
	setString(&item.Condition, in.Condition)
	setString(&item.Remarks, in.Remarks)

	if in.AccessControlList != nil {
		acl, err := domain.ParseRoles(*in.AccessControlList)
		if err != nil {
			return err
		}
		item.AccessControlList = acl
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func rolesOf(u *domain.User) domain.Roles {
	if u == nil {
		return nil
	}
	return u.Roles
}
