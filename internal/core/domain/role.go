package domain

import "strings"

// Role is a closed enumeration of privileges an identity may hold.
type Role string

const (
	// RoleAdmin manages identities, roles and inventory.
	RoleAdmin Role = "reuf_admin"
	// RoleStaff manages inventory.
	RoleStaff Role = "reuf"
)

// AllRoles lists every defined role.
var AllRoles = Roles{RoleAdmin, RoleStaff}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// ParseRole converts a raw value into a Role, failing with ErrInvalidRole for
// anything outside the enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", Errorf(ErrInvalidRole, "unknown role %q", s)
	}
	return r, nil
}

// ParseRoles parses every value and collapses duplicates.
func ParseRoles(values []string) (Roles, error) {
	out := make(Roles, 0, len(values))
	for _, v := range values {
		r, err := ParseRole(v)
		if err != nil {
			return nil, err
		}
		if !out.Contains(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Roles is an unordered set of roles.
type Roles []Role

// Contains reports whether role is in the set.
func (rs Roles) Contains(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// ContainsAll reports whether every role of required is in the set.
func (rs Roles) ContainsAll(required Roles) bool {
	for _, r := range required {
		if !rs.Contains(r) {
			return false
		}
	}
	return true
}

// Equal compares two role sets ignoring order and duplicates.
func (rs Roles) Equal(other Roles) bool {
	return rs.ContainsAll(other) && other.ContainsAll(rs)
}

// Strings returns the raw role values.
func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
