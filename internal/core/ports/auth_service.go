package ports

import (
	"context"

	"github.com/reuf/lending-system/internal/core/domain"
)

// AuthService covers login, bearer-token authentication and logout.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	Logout(ctx context.Context, caller *domain.User, targetID int64) error
	LogoutAll(ctx context.Context, caller *domain.User) (int64, error)
}
