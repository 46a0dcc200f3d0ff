package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

// UserService manages identities. Passwords go through the credential store
// and role changes through the access policy.
type UserService struct {
	users      ports.UserRepository
	borrowings ports.BorrowingRepository
	creds      *CredentialStore
	policy     *AccessPolicy
	notify     ports.NotificationQueue
	clock      ports.Clock
	logger     zerolog.Logger
}

func NewUserService(
	users ports.UserRepository,
	borrowings ports.BorrowingRepository,
	creds *CredentialStore,
	policy *AccessPolicy,
	notify ports.NotificationQueue,
	clock ports.Clock,
	logger zerolog.Logger,
) *UserService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &UserService{
		users:      users,
		borrowings: borrowings,
		creds:      creds,
		policy:     policy,
		notify:     notify,
		clock:      clock,
		logger:     logger,
	}
}

// Create registers a new identity without any role.
func (s *UserService) Create(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	if err := s.policy.RejectRoleAssignment(in.RolesProvided); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "username is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if in.Sciper <= 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "sciper must be a positive number")
	}

	user := &domain.User{
		Username:  username,
		Email:     email,
		Sciper:    in.Sciper,
		Unit:      strings.TrimSpace(in.Unit),
		Roles:     domain.Roles{},
		CreatedAt: s.clock.Now(),
	}
	if err := s.creds.SetPassword(user, in.Password); err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Int64("user_id", created.ID).Str("username", created.Username).Msg("user created")
	return created, nil
}

// Get returns a user. Callers see themselves; staff see everyone.
func (s *UserService) Get(ctx context.Context, caller *domain.User, id int64) (*domain.User, error) {
	if caller == nil || (caller.ID != id && !caller.IsStaff()) {
		return nil, domain.Errorf(domain.ErrUnauthorized, "cannot view another user")
	}
	return s.users.FindByID(ctx, id)
}

// List pages through all users. Staff only.
func (s *UserService) List(ctx context.Context, caller *domain.User, page, limit int) (*ports.Page[*domain.User], error) {
	if !caller.IsStaff() {
		return nil, domain.Errorf(domain.ErrUnauthorized, "listing users requires a staff role")
	}
	page, limit = normalizePage(page, limit)

	users, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return newPage(users, total, page, limit), nil
}

// Update applies a partial update. Callers may edit themselves and
// administrators anyone. Any role change notifies the administrators.
func (s *UserService) Update(ctx context.Context, caller *domain.User, id int64, in ports.UpdateUserInput) (*domain.User, error) {
	if !s.policy.AuthorizeSelfOrAdmin(caller, id) {
		return nil, domain.Errorf(domain.ErrUnauthorized, "cannot modify another user")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changes ports.UserChanges
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "username must not be empty")
		}
		changes.Username = &username
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		changes.Email = &email
	}
	if in.Sciper != nil {
		if *in.Sciper <= 0 {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "sciper must be a positive number")
		}
		changes.Sciper = in.Sciper
	}
	if in.Unit != nil {
		unit := strings.TrimSpace(*in.Unit)
		changes.Unit = &unit
	}

	// Roles are only written when they change, and only over the set they
	// were decided against.
	if in.Roles != nil {
		roles, changed, err := s.policy.AuthorizeRoleChange(caller, user, *in.Roles)
		if err != nil {
			return nil, err
		}
		if changed {
			changes.Roles, changes.ExpectedRoles = &roles, user.Roles
		}
	}

	updated, err := s.users.Update(ctx, id, changes)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if changes.Roles != nil {
		s.logger.Warn().
			Int64("user_id", updated.ID).
			Int64("by", caller.ID).
			Strs("roles", updated.Roles.Strings()).
			Msg("role set changed")
		if !s.notify.Enqueue(s.policy.RoleChangeNotification(updated, updated.Roles)) {
			s.logger.Warn().Int64("user_id", updated.ID).Msg("role change notification dropped")
		}
	}
	return updated, nil
}

// Delete removes a user and keeps their borrowings as history. Administrators only.
func (s *UserService) Delete(ctx context.Context, caller *domain.User, id int64) error {
	if !caller.IsAdmin() {
		return domain.Errorf(domain.ErrUnauthorized, "only an administrator can delete users")
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.borrowings.DetachUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info().Int64("user_id", id).Int64("by", caller.ID).Msg("user deleted")
	return nil
}

var fieldValidator = validator.New()

func validateEmail(email string) error {
	if email == "" {
		return domain.Errorf(domain.ErrInvalidArgument, "email is required")
	}
	if err := fieldValidator.Var(email, "email,max=120"); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "invalid email %q", email)
	}
	return nil
}
