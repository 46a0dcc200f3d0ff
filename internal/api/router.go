package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/reuf/lending-system/docs"
	"github.com/reuf/lending-system/internal/api/handler"
	"github.com/reuf/lending-system/internal/api/middleware"
	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

// Services bundles the application services exposed over HTTP.
type Services struct {
	Auth       ports.AuthService
	Users      ports.UserService
	Items      ports.ItemService
	Borrowings ports.BorrowingService
	Policy     middleware.RoleChecker
}

// Probes are the health handlers, mounted without authentication.
type Probes struct {
	Liveness  echo.HandlerFunc
	Readiness echo.HandlerFunc
}

// RouterConfig holds everything NewRouter wires together. Nil Registerer and
// Gatherer fall back to the default prometheus registry.
type RouterConfig struct {
	Services   Services
	Probes     Probes
	Logger     zerolog.Logger
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Logger)

	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(cfg.Logger))
	e.Use(echomiddleware.BodyLimit("1M"))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "lending",
		Registerer: cfg.Registerer,
	}))

	// --- Operational routes (no auth required) ---
	if cfg.Probes.Liveness != nil {
		e.GET("/health", cfg.Probes.Liveness) // liveness  – is the process alive?
	}
	if cfg.Probes.Readiness != nil {
		e.GET("/health/ready", cfg.Probes.Readiness) // readiness – are dependencies up?
	}
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: cfg.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	svc := cfg.Services
	tokens := handler.NewTokenHandler(svc.Auth)
	users := handler.NewUserHandler(svc.Users)
	items := handler.NewItemHandler(svc.Items)
	borrowings := handler.NewBorrowingHandler(svc.Borrowings)

	auth := middleware.Auth(svc.Auth)
	staffOnly := middleware.RBAC(svc.Policy, domain.RoleStaff, domain.RoleAdmin)
	adminOnly := middleware.RBAC(svc.Policy, domain.RoleAdmin)

	api := e.Group("/api")

	// --- Public routes ---
	api.POST("/tokens", tokens.Create)
	api.POST("/users", users.Create)

	// --- Authenticated routes ---
	protected := api.Group("", auth)

	protected.DELETE("/tokens", tokens.RevokeAll, adminOnly)
	protected.DELETE("/tokens/:id", tokens.Revoke)

	protected.GET("/users", users.List, staffOnly)
	protected.GET("/users/:id", users.Get)
	protected.PUT("/users/:id", users.Update)
	protected.DELETE("/users/:id", users.Delete, adminOnly)

	protected.GET("/items", items.List)
	protected.GET("/items/:id", items.Get)
	protected.POST("/items", items.Create, staffOnly)
	protected.PUT("/items/:id", items.Update, staffOnly)
	protected.DELETE("/items/:id", items.Delete, staffOnly)

	protected.POST("/borrowings/borrow/:item_id/:user_id", borrowings.Borrow)
	protected.GET("/borrowings", borrowings.List, staffOnly)
	protected.GET("/borrowings/:id", borrowings.Get)
	protected.GET("/borrowings/for_user/:id", borrowings.ListForUser)
	protected.GET("/borrowings/with_item/:id", borrowings.ListWithItem, staffOnly)
	protected.DELETE("/borrowings/:id", borrowings.Cancel)

	return e
}

// requestLogger logs one line per request through zerolog. Headers are not
// logged so credentials never reach the log.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
