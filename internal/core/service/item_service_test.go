package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

func TestItemService_Create(t *testing.T) {
	env := newTestEnv()
	staff := env.addUser("staff", domain.RoleStaff)
	user := env.addUser("alice")
	ctx := context.Background()

	in := ports.ItemInput{
		Name:              ptr("  oscilloscope "),
		Quantity:          ptr(2),
		ExpiryDate:        ptr(time.Date(2025, 1, 22, 15, 0, 0, 0, time.UTC)),
		AccessControlList: &[]string{"reuf"},
	}

	if _, err := env.itemSvc.Create(ctx, user, in); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	item, err := env.itemSvc.Create(ctx, staff, in)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if item.Name != "oscilloscope" || item.Quantity != 2 {
		t.Fatalf("unexpected item %+v", item)
	}
	if !item.ExpiryDate.Equal(time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expiry date should be truncated to a day, got %v", item.ExpiryDate)
	}
	if !item.AccessControlList.Equal(domain.Roles{domain.RoleStaff}) {
		t.Fatalf("unexpected acl %v", item.AccessControlList)
	}

	if _, err := env.itemSvc.Create(ctx, staff, ports.ItemInput{Name: ptr("x"), AccessControlList: &[]string{"nobody"}}); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := env.itemSvc.Create(ctx, staff, ports.ItemInput{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := env.itemSvc.Create(ctx, staff, ports.ItemInput{Name: ptr("y"), Quantity: ptr(-1)}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestItemService_Visibility(t *testing.T) {
	env := newTestEnv()
	user := env.addUser("alice")
	staff := env.addUser("staff", domain.RoleStaff)
	admin := env.addUser("root", domain.RoleAdmin)
	both := env.addUser("both", domain.RoleAdmin, domain.RoleStaff)
	ctx := context.Background()

	public := env.addItem("public")
	staffOnly := env.addItem("staff-only", domain.RoleStaff)
	restricted := env.addItem("restricted", domain.RoleAdmin, domain.RoleStaff)

	if _, err := env.itemSvc.Get(ctx, user, public.ID); err != nil {
		t.Fatalf("public item should be visible: %v", err)
	}
	if _, err := env.itemSvc.Get(ctx, user, staffOnly.ID); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected hidden item to be reported missing, got %v", err)
	}
	if _, err := env.itemSvc.Get(ctx, admin, restricted.ID); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("partial role holders must not see the item, got %v", err)
	}
	if _, err := env.itemSvc.Get(ctx, both, restricted.ID); err != nil {
		t.Fatalf("holder of every role should see the item: %v", err)
	}

	counts := map[*domain.User]int64{user: 1, staff: 2, admin: 1, both: 3}
	for caller, want := range counts {
		page, err := env.itemSvc.List(ctx, caller, 1, 0)
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != want {
			t.Errorf("%s: expected %d visible items, got %d", caller.Username, want, page.Total)
		}
		if page.Limit != defaultPageLimit {
			t.Errorf("expected default limit, got %d", page.Limit)
		}
	}
}

func TestItemService_UpdateAndDelete(t *testing.T) {
	env := newTestEnv()
	staff := env.addUser("staff", domain.RoleStaff)
	alice := env.addUser("alice")
	ctx := context.Background()
	item := env.addItem("drill")

	updated, err := env.itemSvc.Update(ctx, staff, item.ID, ports.ItemInput{
		Remarks:       ptr("battery weak"),
		NeedsCleaning: ptr(true),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Name != "drill" || updated.Remarks != "battery weak" || !updated.NeedsCleaning {
		t.Fatalf("unexpected item %+v", updated)
	}

	b, err := env.borrowSvc.Borrow(ctx, alice, item.ID, alice.ID, ports.BorrowInput{
		BorrowingDate: testNow, ReturnDate: testNow.AddDate(0, 0, 1), Quantity: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := env.itemSvc.Delete(ctx, alice, item.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := env.itemSvc.Delete(ctx, staff, item.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := env.itemSvc.Delete(ctx, staff, item.ID); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound on second delete, got %v", err)
	}
	kept, err := env.borrowings.FindByID(ctx, b.ID)
	if err != nil || kept.ItemID != nil {
		t.Fatalf("borrowing must be kept without item reference, got %+v err=%v", kept, err)
	}
}
