package domain

import "time"

// User is an authenticated identity that can borrow items.
//
// The password hash is owned by the credential store and the token fields by
// the token service; nothing else writes them.
type User struct {
	ID              int64      `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Sciper          int64      `json:"sciper"`
	Unit            string     `json:"unit,omitempty"`
	PasswordHash    string     `json:"-"`
	Roles           Roles      `json:"roles"`
	Token           string     `json:"-"`
	TokenExpiration *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsAdmin reports whether the user holds the administrative role.
func (u *User) IsAdmin() bool { return u != nil && u.Roles.Contains(RoleAdmin) }

// IsStaff reports whether the user holds the staff or the administrative role.
func (u *User) IsStaff() bool {
	return u != nil && (u.Roles.Contains(RoleStaff) || u.Roles.Contains(RoleAdmin))
}

// TokenValidAt reports whether the stored token is usable at now.
func (u *User) TokenValidAt(now time.Time) bool {
	return u.Token != "" && u.TokenExpiration != nil && now.Before(*u.TokenExpiration)
}
