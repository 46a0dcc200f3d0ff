package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/reuf/lending-system/internal/core/domain"
)

func TestAccessPolicy_HasAnyRole(t *testing.T) {
	p := NewAccessPolicy(AccessConfig{}, newFixedClock())
	staff := &domain.User{ID: 1, Roles: domain.Roles{domain.RoleStaff}}

	ok, err := p.HasAnyRole(staff, domain.Roles{domain.RoleAdmin, domain.RoleStaff})
	if err != nil || !ok {
		t.Fatalf("expected staff to match, got ok=%v err=%v", ok, err)
	}
	ok, err = p.HasAnyRole(staff, domain.Roles{domain.RoleAdmin})
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}
	ok, err = p.HasAnyRole(&domain.User{}, domain.Roles{domain.RoleStaff})
	if err != nil || ok {
		t.Fatalf("expected roleless user not to match, got ok=%v err=%v", ok, err)
	}
}

func TestAccessPolicy_HasAnyRole_InvalidCandidates(t *testing.T) {
	p := NewAccessPolicy(AccessConfig{}, nil)
	user := &domain.User{Roles: domain.Roles{domain.RoleAdmin}}

	_, err := p.HasAnyRole(user, domain.Roles{domain.RoleAdmin, domain.RoleAdmin, domain.RoleStaff})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for oversized candidates, got %v", err)
	}
	_, err = p.HasAnyRole(user, domain.Roles{"superuser"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown role, got %v", err)
	}
}

func TestAccessPolicy_CanAccessResource(t *testing.T) {
	p := NewAccessPolicy(AccessConfig{}, nil)
	admin, staff := domain.RoleAdmin, domain.RoleStaff

	cases := []struct {
		name   string
		caller domain.Roles
		acl    domain.Roles
		want   bool
	}{
		{"empty acl, no roles", nil, nil, true},
		{"empty acl, admin", domain.Roles{admin}, domain.Roles{}, true},
		{"single role held", domain.Roles{staff}, domain.Roles{staff}, true},
		{"single role missing", domain.Roles{admin}, domain.Roles{staff}, false},
		{"conjunction partially held", domain.Roles{admin}, domain.Roles{admin, staff}, false},
		{"conjunction fully held", domain.Roles{staff, admin}, domain.Roles{admin, staff}, true},
		{"no roles, restricted", nil, domain.Roles{staff}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.CanAccessResource(tc.caller, tc.acl); got != tc.want {
				t.Fatalf("CanAccessResource(%v, %v) = %v, want %v", tc.caller, tc.acl, got, tc.want)
			}
		})
	}
}

func TestAccessPolicy_AuthorizeSelfOrAdmin(t *testing.T) {
	p := NewAccessPolicy(AccessConfig{}, nil)
	user := &domain.User{ID: 7}
	admin := &domain.User{ID: 1, Roles: domain.Roles{domain.RoleAdmin}}
	staff := &domain.User{ID: 2, Roles: domain.Roles{domain.RoleStaff}}

	if !p.AuthorizeSelfOrAdmin(user, 7) {
		t.Error("expected self access")
	}
	if p.AuthorizeSelfOrAdmin(user, 8) {
		t.Error("expected access to another user to be denied")
	}
	if !p.AuthorizeSelfOrAdmin(admin, 8) {
		t.Error("expected admin access")
	}
	if p.AuthorizeSelfOrAdmin(staff, 8) {
		t.Error("expected staff access to another user to be denied")
	}
	if p.AuthorizeSelfOrAdmin(nil, 8) {
		t.Error("expected nil caller to be denied")
	}
}

func TestAccessPolicy_AuthorizeRoleChange(t *testing.T) {
	p := NewAccessPolicy(AccessConfig{}, nil)
	admin := &domain.User{ID: 1, Roles: domain.Roles{domain.RoleAdmin}}
	user := &domain.User{ID: 2, Roles: domain.Roles{domain.RoleStaff}}

	t.Run("admin grants", func(t *testing.T) {
		roles, changed, err := p.AuthorizeRoleChange(admin, user, []string{"reuf", "reuf_admin"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !changed || !roles.Equal(domain.Roles{domain.RoleAdmin, domain.RoleStaff}) {
			t.Fatalf("unexpected result roles=%v changed=%v", roles, changed)
		}
	})

	t.Run("non-admin escalation refused", func(t *testing.T) {
		_, _, err := p.AuthorizeRoleChange(user, user, []string{"reuf_admin"})
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("identical set is not a change", func(t *testing.T) {
		_, changed, err := p.AuthorizeRoleChange(user, user, []string{"reuf", "reuf"})
		if err != nil || changed {
			t.Fatalf("expected unchanged, got changed=%v err=%v", changed, err)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		_, _, err := p.AuthorizeRoleChange(admin, user, []string{"root"})
		if !errors.Is(err, domain.ErrInvalidRole) {
			t.Fatalf("expected ErrInvalidRole, got %v", err)
		}
	})
}

func TestAccessPolicy_RejectRoleAssignment(t *testing.T) {
	p := NewAccessPolicy(AccessConfig{}, nil)
	if err := p.RejectRoleAssignment(true); !errors.Is(err, domain.ErrRoleAssignmentForbidden) {
		t.Fatalf("expected ErrRoleAssignmentForbidden, got %v", err)
	}
	if err := p.RejectRoleAssignment(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccessPolicy_RoleChangeNotification(t *testing.T) {
	recipients := []string{"admin@example.com"}
	p := NewAccessPolicy(AccessConfig{AdminRecipients: recipients}, newFixedClock())
	user := &domain.User{ID: 42, Username: "bob"}

	n := p.RoleChangeNotification(user, domain.Roles{domain.RoleStaff})
	if n.Subject != "A reuf role is being set" {
		t.Errorf("unexpected subject %q", n.Subject)
	}
	if n.Key != "42" {
		t.Errorf("expected key 42, got %q", n.Key)
	}
	if len(n.Recipients) != 1 || n.Recipients[0] != "admin@example.com" {
		t.Errorf("unexpected recipients %v", n.Recipients)
	}
	if !strings.Contains(n.Body, "bob") || !strings.Contains(n.Body, "reuf") {
		t.Errorf("body should name the user and roles: %q", n.Body)
	}
	if !n.CreatedAt.Equal(testNow) {
		t.Errorf("expected CreatedAt %v, got %v", testNow, n.CreatedAt)
	}

	recipients[0] = "changed"
	if n.Recipients[0] != "admin@example.com" {
		t.Error("notification must not alias the configured recipients")
	}
}
