package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/core/domain"
)

// AuthService implements login, bearer-token authentication and logout on top
// of the credential store, the token service and the access policy.
type AuthService struct {
	users  userFinder
	creds  *CredentialStore
	tokens *TokenService
	policy *AccessPolicy
	log    zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

type userFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}

func NewAuthService(
	users userFinder,
	creds *CredentialStore,
	tokens *TokenService,
	policy *AccessPolicy,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{users: users, creds: creds, tokens: tokens, policy: policy, log: log}
}

// Login verifies username and password and returns a bearer token. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.creds.Verify(s.dummy(), password)
		s.log.Info().Str("username", username).Msg("login failed: unknown user")
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	if !s.creds.VerifyPassword(user, password) {
		s.log.Info().Int64("user_id", user.ID).Msg("login failed: wrong password")
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, user, 0)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	user, ok, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return user, nil
}

// Logout revokes the token of targetID. Callers may revoke their own token;
// administrators may revoke anyone's.
func (s *AuthService) Logout(ctx context.Context, caller *domain.User, targetID int64) error {
	if !s.policy.AuthorizeSelfOrAdmin(caller, targetID) {
		return domain.Errorf(domain.ErrUnauthorized, "cannot revoke another user's token")
	}

	target := caller
	if caller.ID != targetID {
		var err error
		if target, err = s.users.FindByID(ctx, targetID); err != nil {
			return err
		}
	}
	return s.tokens.Revoke(ctx, target)
}

// LogoutAll revokes every valid token. Administrators only.
func (s *AuthService) LogoutAll(ctx context.Context, caller *domain.User) (int64, error) {
	if !caller.IsAdmin() {
		return 0, domain.Errorf(domain.ErrUnauthorized, "only an administrator can revoke all tokens")
	}
	return s.tokens.RevokeAll(ctx)
}

// dummy returns a valid hash of a throwaway password, used to spend the same
// time on unknown usernames as on wrong passwords.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.creds.Hash("not-a-real-password")
	})
	return s.dummyHash
}
