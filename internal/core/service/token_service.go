package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/pkg/metrics"
	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

const (
	// DefaultTokenTTL is the unscaled lifetime of a bearer token.
	DefaultTokenTTL = 3600 * time.Second
	// DefaultReuseWindow is how long an existing token must still be valid
	// to be handed out again instead of minting a new one.
	DefaultReuseWindow = 60 * time.Second

	defaultMaxAttempts = 5
	tokenBytes         = 24
)

// TokenConfig configures bearer-token issuance.
type TokenConfig struct {
	// LifetimeScale multiplies every requested TTL. Zero means 1.
	LifetimeScale float64
	ReuseWindow   time.Duration
	// MaxAttempts bounds regeneration after collisions.
	MaxAttempts int
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.LifetimeScale <= 0 {
		c.LifetimeScale = 1
	}
	if c.ReuseWindow <= 0 {
		c.ReuseWindow = DefaultReuseWindow
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

// TokenService issues, validates and revokes opaque bearer tokens. It is the
// only writer of the token fields of a user.
type TokenService struct {
	users  ports.UserRepository
	locker ports.IdentityLocker
	clock  ports.Clock
	random io.Reader
	cfg    TokenConfig
	log    zerolog.Logger
}

// NewTokenService wires a TokenService. A nil clock uses the system clock and
// a nil random source uses crypto/rand.
func NewTokenService(
	users ports.UserRepository,
	locker ports.IdentityLocker,
	clock ports.Clock,
	random io.Reader,
	cfg TokenConfig,
	log zerolog.Logger,
) *TokenService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if random == nil {
		random = rand.Reader
	}
	return &TokenService{
		users:  users,
		locker: locker,
		clock:  clock,
		random: random,
		cfg:    cfg.withDefaults(),
		log:    log,
	}
}

// Lifetime returns the effective lifetime for a requested ttl. A
// non-positive ttl selects DefaultTokenTTL.
func (s *TokenService) Lifetime(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return time.Duration(float64(ttl) * s.cfg.LifetimeScale)
}

// Issue returns a bearer token for user. A token still valid beyond the reuse
// window is returned unchanged; otherwise a new one is generated, checked
// against stored tokens and persisted with expiration now+Lifetime(ttl).
//
// Issuance is serialized per identity, and the identity is reloaded under the
// lock so concurrent callers converge on a single token. The store write is a
// compare-and-set on the token read, so a holder whose lock expired cannot
// overwrite a token issued after it.
func (s *TokenService) Issue(ctx context.Context, user *domain.User, ttl time.Duration) (string, error) {
	if user == nil {
		return "", domain.Errorf(domain.ErrInvalidArgument, "user is required")
	}

	unlock, err := s.locker.Lock(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: lock user %d: %w", user.ID, err)
	}
	defer unlock()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		current, err := s.users.FindByID(ctx, user.ID)
		if err != nil {
			return "", fmt.Errorf("issue token: %w", err)
		}

		now := s.clock.Now()
		if current.Token != "" && current.TokenExpiration != nil &&
			current.TokenExpiration.After(now.Add(s.cfg.ReuseWindow)) {
			user.Token, user.TokenExpiration = current.Token, current.TokenExpiration
			metrics.TokensIssuedTotal.WithLabelValues("reused").Inc()
			return current.Token, nil
		}

		token, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("issue token: %w", err)
		}

		n, err := s.users.CountTokenCollisions(ctx, token)
		if err != nil {
			return "", fmt.Errorf("issue token: count collisions: %w", err)
		}
		if n > 0 {
			metrics.TokenCollisionsTotal.Inc()
			s.log.Warn().Int64("user_id", user.ID).Int("attempt", attempt).Msg("generated token collided, regenerating")
			continue
		}

		// The write only lands over the token read above. If the lock expired
		// and another instance issued meanwhile, the next round reloads and
		// reuses that token.
		expiration := now.Add(s.Lifetime(ttl))
		if err := s.users.SetToken(ctx, user.ID, current.Token, token, expiration); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				metrics.TokenCollisionsTotal.Inc()
				s.log.Warn().Err(err).Int64("user_id", user.ID).Int("attempt", attempt).Msg("token write lost, retrying")
				continue
			}
			return "", fmt.Errorf("issue token: %w", err)
		}

		user.Token, user.TokenExpiration = token, &expiration
		metrics.TokensIssuedTotal.WithLabelValues("new").Inc()
		s.log.Info().
			Int64("user_id", user.ID).
			Str("token", Fingerprint(token)).
			Time("expires_at", expiration).
			Msg("token issued")
		return token, nil
	}

	s.log.Error().
		Int64("user_id", user.ID).
		Int("attempts", s.cfg.MaxAttempts).
		Msg("token issuance kept colliding; random source or store is broken")
	return "", domain.Errorf(domain.ErrTokenSourceExhausted,
		"no unique token after %d attempts", s.cfg.MaxAttempts)
}

// Validate resolves token to its user. It reports false, without error, when
// the token is unknown or expired. Validation never extends a token.
func (s *TokenService) Validate(ctx context.Context, token string) (*domain.User, bool, error) {
	if token == "" {
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, false, nil
	}

	user, err := s.users.FindByToken(ctx, token)
	if errors.Is(err, domain.ErrUserNotFound) {
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("validate token: %w", err)
	}

	if !user.TokenValidAt(s.clock.Now()) {
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, false, nil
	}

	metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()
	return user, true, nil
}

// Revoke expires user's token one second in the past, keeping the token
// string. Revoking an absent or already expired token changes nothing.
func (s *TokenService) Revoke(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.Errorf(domain.ErrInvalidArgument, "user is required")
	}

	unlock, err := s.locker.Lock(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("revoke token: lock user %d: %w", user.ID, err)
	}
	defer unlock()

	current, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	now := s.clock.Now()
	if !current.TokenValidAt(now) {
		return nil
	}

	expiration := now.Add(-time.Second)
	if err := s.users.SetTokenExpiration(ctx, user.ID, expiration); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	user.Token, user.TokenExpiration = current.Token, &expiration

	metrics.TokensRevokedTotal.WithLabelValues("single").Inc()
	s.log.Info().Int64("user_id", user.ID).Msg("token revoked")
	return nil
}

// RevokeAll expires every currently valid token in a single store update and
// returns how many identities were affected.
func (s *TokenService) RevokeAll(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	n, err := s.users.ExpireAllTokens(ctx, now, now.Add(-time.Second))
	if err != nil {
		return 0, fmt.Errorf("revoke all tokens: %w", err)
	}

	metrics.TokensRevokedTotal.WithLabelValues("all").Add(float64(n))
	s.log.Warn().Int64("revoked", n).Msg("all tokens revoked")
	return n, nil
}

// generate returns 24 random bytes, base64 encoded: 32 characters.
func (s *TokenService) generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Fingerprint shortens a token for logs.
func Fingerprint(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "…"
}
