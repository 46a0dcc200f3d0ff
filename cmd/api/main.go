// @title                       Lending API
// @version                     1.0
// @description                 Inventory lending: identities, bearer tokens, role-gated items and borrowings.
// @BasePath                    /
// @securityDefinitions.basic   BasicAuth
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/reuf/lending-system/docs"
	"github.com/reuf/lending-system/internal/api"
	"github.com/reuf/lending-system/internal/core/ports"
	"github.com/reuf/lending-system/internal/core/service"
	"github.com/reuf/lending-system/internal/infrastructure/db/mongo"
	"github.com/reuf/lending-system/internal/infrastructure/db/redis"
	"github.com/reuf/lending-system/internal/infrastructure/http/handlers"
	"github.com/reuf/lending-system/internal/infrastructure/notify"
	"github.com/reuf/lending-system/internal/infrastructure/queue"
	"github.com/reuf/lending-system/internal/pkg/config"
	"github.com/reuf/lending-system/internal/pkg/keylock"
	"github.com/reuf/lending-system/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lending-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "lending-api",
	})

	// --- Storage ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	users := mongo.NewUserRepository(db, cfg.StoreTimeout)
	items := mongo.NewItemRepository(db, cfg.StoreTimeout)
	borrowings := mongo.NewBorrowingRepository(db, cfg.StoreTimeout)

	// --- Per-identity lock ---
	var (
		rdb    *goredis.Client
		locker ports.IdentityLocker
	)
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = redis.NewIdentityLock(rdb, cfg.Redis.LockTTL, logger.Component("identity_lock"))
	} else {
		log.Warn().Msg("REDIS_ADDR not set, identity lock is process-local")
		locker = keylock.New()
	}

	// --- Notifications ---
	var notifier ports.Notifier
	if cfg.AMQP.URL != "" {
		amqpNotifier, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		if err != nil {
			return err
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	} else {
		log.Warn().Msg("AMQP_URL not set, notifications are only logged")
		notifier = notify.NewLogNotifier(logger.Component("notify"))
	}

	dispatcher := queue.NewDispatcher(queue.Config{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		Timeout:     cfg.Notify.Timeout,
		MaxAttempts: cfg.Notify.MaxAttempts,
	}, notifier, logger.Component("dispatcher"))
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)

	// --- Services ---
	clock := ports.SystemClock{}
	policy := service.NewAccessPolicy(service.AccessConfig{AdminRecipients: cfg.AdminEmails}, clock)
	creds := service.NewCredentialStore(cfg.PasswordIterations)
	tokens := service.NewTokenService(users, locker, clock, nil, service.TokenConfig{
		LifetimeScale: cfg.Token.LifetimeScale,
		ReuseWindow:   cfg.Token.ReuseWindow,
		MaxAttempts:   cfg.Token.MaxAttempts,
	}, logger.Component("tokens"))
	validator := service.NewBorrowValidator(items, policy, service.UnlimitedStock{}, clock)

	router := api.NewRouter(api.RouterConfig{
		Services: api.Services{
			Auth:       service.NewAuthService(users, creds, tokens, policy, logger.Component("auth")),
			Users:      service.NewUserService(users, borrowings, creds, policy, dispatcher, clock, logger.Component("users")),
			Items:      service.NewItemService(items, borrowings, policy, logger.Component("items")),
			Borrowings: service.NewBorrowingService(borrowings, users, validator, policy, logger.Component("borrowings")),
			Policy:     policy,
		},
		Probes: api.Probes{
			Liveness:  handlers.NewHealthHandler().Liveness,
			Readiness: handlers.NewHealthDependenciesHandler(db, rdb).Readiness,
		},
		Logger: logger.Component("http"),
	})

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Requests are drained, so nothing enqueues anymore.
	stopWorkers()
	dispatcher.Wait()

	log.Info().Msg("goodbye")
	return nil
}
