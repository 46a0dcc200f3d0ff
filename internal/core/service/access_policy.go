package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

// AccessConfig configures the access policy.
type AccessConfig struct {
	// AdminRecipients receive a notification whenever a role set changes.
	AdminRecipients []string
}

// AccessPolicy answers role and resource authorization questions. It never
// mutates role sets itself; role changes go through AuthorizeRoleChange and
// are persisted by the caller.
type AccessPolicy struct {
	cfg   AccessConfig
	clock ports.Clock
}

// NewAccessPolicy returns a policy using cfg. A nil clock uses the system clock.
func NewAccessPolicy(cfg AccessConfig, clock ports.Clock) *AccessPolicy {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &AccessPolicy{cfg: cfg, clock: clock}
}

// HasAnyRole reports whether user holds at least one of candidates.
func (p *AccessPolicy) HasAnyRole(user *domain.User, candidates domain.Roles) (bool, error) {
	if len(candidates) > len(domain.AllRoles) {
		return false, domain.Errorf(domain.ErrInvalidArgument, "too many candidate roles: %d", len(candidates))
	}
	for _, r := range candidates {
		if !r.Valid() {
			return false, domain.Errorf(domain.ErrInvalidArgument, "unknown role %q", string(r))
		}
	}
	if user == nil {
		return false, nil
	}
	for _, r := range candidates {
		if user.Roles.Contains(r) {
			return true, nil
		}
	}
	return false, nil
}

// CanAccessResource reports whether a caller holding callerRoles may see a
// resource guarded by acl. An empty acl is public; otherwise the caller must
// hold every role it lists.
func (p *AccessPolicy) CanAccessResource(callerRoles, acl domain.Roles) bool {
	if len(acl) == 0 {
		return true
	}
	return callerRoles.ContainsAll(acl)
}

// AuthorizeSelfOrAdmin reports whether caller may act on the identity targetID.
func (p *AccessPolicy) AuthorizeSelfOrAdmin(caller *domain.User, targetID int64) bool {
	if caller == nil {
		return false
	}
	return caller.ID == targetID || caller.IsAdmin()
}

// RejectRoleAssignment refuses role fields on identity creation. Roles are
// only granted through AuthorizeRoleChange.
func (p *AccessPolicy) RejectRoleAssignment(rolesProvided bool) error {
	if rolesProvided {
		return domain.Errorf(domain.ErrRoleAssignmentForbidden, "roles cannot be set at creation; ask an administrator")
	}
	return nil
}

// AuthorizeRoleChange parses requested against the role enumeration and
// checks that caller may apply it to target. It returns the parsed set and
// whether it differs from target's current roles.
func (p *AccessPolicy) AuthorizeRoleChange(caller, target *domain.User, requested []string) (domain.Roles, bool, error) {
	if caller == nil || target == nil {
		return nil, false, domain.Errorf(domain.ErrInvalidArgument, "caller and target are required")
	}
	roles, err := domain.ParseRoles(requested)
	if err != nil {
		return nil, false, err
	}
	changed := !roles.Equal(target.Roles)
	if changed && len(roles) > 0 && !caller.IsAdmin() {
		return nil, false, domain.Errorf(domain.ErrUnauthorized, "only an administrator can change roles")
	}
	return roles, changed, nil
}

// RoleChangeNotification builds the audit message sent to administrators
// after user's role set became roles.
func (p *AccessPolicy) RoleChangeNotification(user *domain.User, roles domain.Roles) ports.Notification {
	list := strings.Join(roles.Strings(), ", ")
	if list == "" {
		list = "(none)"
	}
	return ports.Notification{
		ID:         uuid.NewString(),
		Key:        strconv.FormatInt(user.ID, 10),
		Subject:    "A reuf role is being set",
		Recipients: append([]string(nil), p.cfg.AdminRecipients...),
		Body: fmt.Sprintf(
			"Hello my reufs\nThe roles of user %s (id %d) are being changed to [%s]. Make sure it's desired.",
			user.Username, user.ID, list,
		),
		CreatedAt: p.clock.Now().UTC().Truncate(time.Second),
	}
}
