package ports

import (
	"context"
	"time"

	"github.com/reuf/lending-system/internal/core/domain"
)

// UserRepository persists identities. Every method is atomic for a single
// user document. Lookups that find nothing return domain.ErrUserNotFound and
// uniqueness violations return domain.ErrConflict.
type UserRepository interface {
	// Create assigns the next numeric id and inserts the user.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// Update applies changes and returns the stored user. Only the non-nil
	// fields are written. A role write whose ExpectedRoles no longer match
	// the stored set fails with domain.ErrConflict.
	Update(ctx context.Context, id int64, changes UserChanges) (*domain.User, error)
	Delete(ctx context.Context, id int64) error

	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByToken(ctx context.Context, token string) (*domain.User, error)
	List(ctx context.Context, page, limit int) ([]*domain.User, int64, error)

	// CountTokenCollisions returns how many users currently store token.
	CountTokenCollisions(ctx context.Context, token string) (int64, error)
	// SetToken replaces the token previous with token and sets expiration.
	// It fails with domain.ErrConflict when the stored token is no longer
	// previous or when token is already held by another user.
	SetToken(ctx context.Context, id int64, previous, token string, expiration time.Time) error
	// SetTokenExpiration changes only the expiration, keeping the token string.
	SetTokenExpiration(ctx context.Context, id int64, expiration time.Time) error
	// ExpireAllTokens sets expiration on every token still valid at now and
	// returns how many users were affected.
	ExpireAllTokens(ctx context.Context, now, expiration time.Time) (int64, error)
}

// UserChanges is a partial write to a user document. Nil fields are left
// unchanged; the password hash and token fields are never written here.
type UserChanges struct {
	Username *string
	Email    *string
	Sciper   *int64
	Unit     *string
	Roles    *domain.Roles
	// ExpectedRoles is the role set Roles was decided against.
	ExpectedRoles domain.Roles
}
