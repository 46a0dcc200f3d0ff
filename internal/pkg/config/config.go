// Package config loads service configuration from the environment. A .env
// file in the working directory is read first when present; real environment
// variables take precedence over it.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT, default=8080"`
	Env      string `env:"ENV, default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// StoreTimeout bounds every persistence call.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT, default=5s"`

	Mongo  MongoConfig
	Redis  RedisConfig
	AMQP   AMQPConfig
	Token  TokenConfig
	Notify NotifyConfig

	PasswordIterations int `env:"PASSWORD_ITERATIONS, default=260000"`
	// AdminEmails receive role change notifications. Comma separated.
	AdminEmails []string `env:"ADMIN_EMAILS"`
}

type MongoConfig struct {
	URI      string        `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string        `env:"MONGO_DB, default=lending"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=10s"`
}

// RedisConfig is optional: an empty Addr selects the in-process identity lock.
type RedisConfig struct {
	Addr    string        `env:"REDIS_ADDR"`
	DB      int           `env:"REDIS_DB, default=0"`
	LockTTL time.Duration `env:"REDIS_LOCK_TTL, default=10s"`
}

// AMQPConfig is optional: an empty URL logs notifications instead of publishing them.
type AMQPConfig struct {
	URL        string `env:"AMQP_URL"`
	Exchange   string `env:"AMQP_EXCHANGE, default=lending"`
	RoutingKey string `env:"AMQP_ROUTING_KEY, default=notifications.email"`
}

type TokenConfig struct {
	LifetimeScale float64       `env:"TOKEN_LIFETIME_SCALE, default=1"`
	ReuseWindow   time.Duration `env:"TOKEN_REUSE_WINDOW, default=60s"`
	MaxAttempts   int           `env:"TOKEN_MAX_ATTEMPTS, default=5"`
}

type NotifyConfig struct {
	Workers     int           `env:"NOTIFY_WORKERS, default=2"`
	QueueSize   int           `env:"NOTIFY_QUEUE_SIZE, default=64"`
	Timeout     time.Duration `env:"NOTIFY_TIMEOUT, default=10s"`
	MaxAttempts int           `env:"NOTIFY_MAX_ATTEMPTS, default=3"`
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Token.LifetimeScale <= 0 {
		return fmt.Errorf("TOKEN_LIFETIME_SCALE must be positive, got %v", c.Token.LifetimeScale)
	}
	if c.Token.MaxAttempts < 1 {
		return fmt.Errorf("TOKEN_MAX_ATTEMPTS must be at least 1, got %d", c.Token.MaxAttempts)
	}
	if c.PasswordIterations < 1000 {
		return fmt.Errorf("PASSWORD_ITERATIONS must be at least 1000, got %d", c.PasswordIterations)
	}
	return nil
}
