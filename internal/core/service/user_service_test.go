package service

import (
	"context"
	"errors"
	"testing"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

func ptr[T any](v T) *T { return &v }

func TestUserService_Create(t *testing.T) {
	env := newTestEnv()

	user, err := env.userSvc.Create(context.Background(), ports.CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2",
		Sciper:   123456,
		Unit:     "student",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if user.ID == 0 || len(user.Roles) != 0 {
		t.Fatalf("unexpected user %+v", user)
	}
	if !env.creds.VerifyPassword(env.users.get(user.ID), "hunter2") {
		t.Fatal("stored password hash does not verify")
	}
	if !user.CreatedAt.Equal(testNow) {
		t.Fatalf("expected CreatedAt from clock, got %v", user.CreatedAt)
	}
}

func TestUserService_Create_RejectsRoles(t *testing.T) {
	env := newTestEnv()

	_, err := env.userSvc.Create(context.Background(), ports.CreateUserInput{
		Username:      "mallory",
		Email:         "mallory@example.com",
		Password:      "pw",
		Sciper:        666,
		RolesProvided: true,
	})
	if !errors.Is(err, domain.ErrRoleAssignmentForbidden) {
		t.Fatalf("expected ErrRoleAssignmentForbidden, got %v", err)
	}
	if _, err := env.users.FindByUsername(context.Background(), "mallory"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatal("no user may be stored when roles were supplied")
	}
}

func TestUserService_Create_Validation(t *testing.T) {
	env := newTestEnv()
	valid := ports.CreateUserInput{Username: "a", Email: "a@example.com", Password: "pw", Sciper: 1}

	cases := map[string]func(*ports.CreateUserInput){
		"missing username": func(in *ports.CreateUserInput) { in.Username = " " },
		"bad email":        func(in *ports.CreateUserInput) { in.Email = "not-an-email" },
		"missing password": func(in *ports.CreateUserInput) { in.Password = "" },
		"missing sciper":   func(in *ports.CreateUserInput) { in.Sciper = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			if _, err := env.userSvc.Create(context.Background(), in); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestUserService_Create_Conflict(t *testing.T) {
	env := newTestEnv()
	env.addUser("alice")

	_, err := env.userSvc.Create(context.Background(), ports.CreateUserInput{
		Username: "alice", Email: "other@example.com", Password: "pw", Sciper: 9,
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict to propagate, got %v", err)
	}
}

func TestUserService_GetAndList_Authorization(t *testing.T) {
	env := newTestEnv()
	alice := env.addUser("alice")
	bob := env.addUser("bob")
	staff := env.addUser("staff", domain.RoleStaff)
	ctx := context.Background()

	if _, err := env.userSvc.Get(ctx, alice, alice.ID); err != nil {
		t.Fatalf("self Get returned error: %v", err)
	}
	if _, err := env.userSvc.Get(ctx, alice, bob.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := env.userSvc.Get(ctx, staff, bob.ID); err != nil {
		t.Fatalf("staff Get returned error: %v", err)
	}

	if _, err := env.userSvc.List(ctx, alice, 1, 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	page, err := env.userSvc.List(ctx, staff, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestUserService_Update_Profile(t *testing.T) {
	env := newTestEnv()
	alice := env.addUser("alice")
	ctx := context.Background()

	updated, err := env.userSvc.Update(ctx, alice, alice.ID, ports.UpdateUserInput{
		Email: ptr("alice@epfl.ch"),
		Unit:  ptr("lab"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Email != "alice@epfl.ch" || updated.Unit != "lab" || updated.Username != "alice" {
		t.Fatalf("unexpected user %+v", updated)
	}
	if env.queue.count() != 0 {
		t.Fatal("profile updates must not notify")
	}
}

func TestUserService_Update_RoleChange(t *testing.T) {
	env := newTestEnv()
	alice := env.addUser("alice")
	bob := env.addUser("bob")
	admin := env.addUser("root", domain.RoleAdmin)
	ctx := context.Background()

	_, err := env.userSvc.Update(ctx, alice, bob.ID, ports.UpdateUserInput{Roles: &[]string{"reuf"}})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for another user, got %v", err)
	}
	_, err = env.userSvc.Update(ctx, alice, alice.ID, ports.UpdateUserInput{Roles: &[]string{"reuf_admin"}})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for self-escalation, got %v", err)
	}
	_, err = env.userSvc.Update(ctx, admin, bob.ID, ports.UpdateUserInput{Roles: &[]string{"wizard"}})
	if !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if env.queue.count() != 0 {
		t.Fatal("refused changes must not notify")
	}

	updated, err := env.userSvc.Update(ctx, admin, bob.ID, ports.UpdateUserInput{Roles: &[]string{"reuf"}})
	if err != nil {
		t.Fatalf("admin role change returned error: %v", err)
	}
	if !updated.Roles.Equal(domain.Roles{domain.RoleStaff}) {
		t.Fatalf("unexpected roles %v", updated.Roles)
	}
	if !env.users.get(bob.ID).Roles.Equal(domain.Roles{domain.RoleStaff}) {
		t.Fatal("role change not persisted")
	}
	if env.queue.count() != 1 {
		t.Fatalf("expected exactly one notification, got %d", env.queue.count())
	}
	n := env.queue.sent[0]
	if n.Subject != "A reuf role is being set" || n.Recipients[0] != "admins@example.com" {
		t.Fatalf("unexpected notification %+v", n)
	}

	// same set again: no change, no notification
	if _, err := env.userSvc.Update(ctx, admin, bob.ID, ports.UpdateUserInput{Roles: &[]string{"reuf"}}); err != nil {
		t.Fatal(err)
	}
	if env.queue.count() != 1 {
		t.Fatal("unchanged role set must not notify")
	}
}

func TestUserService_Update_DroppedNotificationDoesNotFail(t *testing.T) {
	env := newTestEnv()
	bob := env.addUser("bob")
	admin := env.addUser("root", domain.RoleAdmin)
	env.queue.full = true

	if _, err := env.userSvc.Update(context.Background(), admin, bob.ID, ports.UpdateUserInput{Roles: &[]string{"reuf"}}); err != nil {
		t.Fatalf("a full notification queue must not fail the change: %v", err)
	}
	if !env.users.get(bob.ID).Roles.Contains(domain.RoleStaff) {
		t.Fatal("role change not persisted")
	}
}

func TestUserService_Update_ProfileKeepsConcurrentRoleChange(t *testing.T) {
	env := newTestEnv()
	bob := env.addUser("bob")
	env.users.beforeUpdate = func(users map[int64]*domain.User) {
		users[bob.ID].Roles = domain.Roles{domain.RoleStaff}
		users[bob.ID].PasswordHash = "rotated-hash"
	}

	updated, err := env.userSvc.Update(context.Background(), bob, bob.ID, ports.UpdateUserInput{Unit: ptr("student")})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	stored := env.users.get(bob.ID)
	if !stored.Roles.Equal(domain.Roles{domain.RoleStaff}) {
		t.Fatalf("profile update reverted a concurrently granted role: %v", stored.Roles)
	}
	if stored.PasswordHash != "rotated-hash" {
		t.Fatal("profile update must not write the password hash")
	}
	if stored.Unit != "student" || updated.Unit != "student" {
		t.Fatalf("unit not applied: stored %q, returned %q", stored.Unit, updated.Unit)
	}
	if !updated.Roles.Equal(stored.Roles) {
		t.Fatalf("expected the stored roles back, got %v", updated.Roles)
	}
}

func TestUserService_Update_RoleChangeOverStaleSetConflicts(t *testing.T) {
	env := newTestEnv()
	bob := env.addUser("bob")
	admin := env.addUser("root", domain.RoleAdmin)
	env.users.beforeUpdate = func(users map[int64]*domain.User) {
		users[bob.ID].Roles = domain.Roles{domain.RoleStaff}
	}

	_, err := env.userSvc.Update(context.Background(), admin, bob.ID, ports.UpdateUserInput{Roles: &[]string{"reuf_admin"}})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if !env.users.get(bob.ID).Roles.Equal(domain.Roles{domain.RoleStaff}) {
		t.Fatal("a role write over a stale set must not land")
	}
	if env.queue.count() != 0 {
		t.Fatal("a refused role write must not notify")
	}
}

func TestUserService_Delete_KeepsBorrowings(t *testing.T) {
	env := newTestEnv()
	alice := env.addUser("alice")
	admin := env.addUser("root", domain.RoleAdmin)
	item := env.addItem("drill")
	ctx := context.Background()

	b, err := env.borrowSvc.Borrow(ctx, alice, item.ID, alice.ID, ports.BorrowInput{
		BorrowingDate: testNow, ReturnDate: testNow, Quantity: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := env.userSvc.Delete(ctx, alice, alice.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := env.userSvc.Delete(ctx, admin, alice.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := env.users.FindByID(ctx, alice.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatal("user still present")
	}
	kept, err := env.borrowings.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("borrowing must be kept: %v", err)
	}
	if kept.UserID != nil {
		t.Fatal("borrowing must lose its borrower reference")
	}
}
