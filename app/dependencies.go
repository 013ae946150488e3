package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/emergency-console/auth"
	"github.com/upb/emergency-console/config"
	"github.com/upb/emergency-console/handlers"
	"github.com/upb/emergency-console/middleware"
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/repositories"
	"github.com/upb/emergency-console/repositories/memory"
	"github.com/upb/emergency-console/repositories/postgres"
	"github.com/upb/emergency-console/services"
	"github.com/upb/emergency-console/services/audit"
	"github.com/upb/emergency-console/services/ratelimit"
	"github.com/upb/emergency-console/session"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// PostgreSQL, nil with the memory store
	DB          *postgres.DB
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	AuditLogs repositories.AuditRepository

	// Auth primitives
	Sessions *session.Manager
	Hasher   *auth.PasswordHasher
	Cookies  *auth.SessionCookies

	// Services
	Throttle    *ratelimit.LoginLimiter
	Audit       *audit.AuditService
	AuthService *services.AuthService

	// HTTP
	AuthMiddleware   *middleware.AuthMiddleware
	RouteGuard       *middleware.RouteGuard
	AuthHandler      *handlers.AuthHandler
	UserHandler      *handlers.UserHandler
	DashboardHandler *handlers.DashboardHandler
	HealthHandler    *handlers.HealthHandler

	stopCleanup context.CancelFunc
	cleanupDone chan struct{}
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Hasher: auth.NewPasswordHasher(0),
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		deps.closeStore()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := deps.initHTTP(cfg); err != nil {
		deps.closeStore()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("store", cfg.Store.Backend),
		zap.String("signing_method", deps.Sessions.Algorithm()))
	return deps, nil
}

// initStore opens the configured user and audit backend
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		return d.initDatabase(ctx, cfg)
	case config.StoreMemory, "":
		return d.initMemory(cfg)
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func (d *Dependencies) initMemory(cfg *config.Config) error {
	var seed []*models.User
	if cfg.Store.SeedDemo {
		hash, err := d.Hasher.Hash(cfg.Store.DemoPassword)
		if err != nil {
			return fmt.Errorf("failed to hash demo password: %w", err)
		}
		seed = memory.DemoUsers(hash)
	}

	users, err := memory.NewUserStore(seed...)
	if err != nil {
		return err
	}
	d.Users = users
	d.AuditLogs = memory.NewAuditStore(0)

	d.Logger.Info("in-memory store initialized", zap.Int("seeded_users", len(seed)))
	return nil
}

// initDatabase initializes the PostgreSQL connection and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.HealthCheck(ctx); err != nil {
		d.closeStore()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := factory.Migrate(ctx); err != nil {
			d.closeStore()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	repos := factory.NewRepositories()
	d.Users = repos.Users
	d.AuditLogs = repos.AuditLogs

	if cfg.Store.SeedDemo {
		if err := d.seedDatabase(ctx, cfg.Store.DemoPassword); err != nil {
			d.closeStore()
			return err
		}
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// seedDatabase inserts the demo accounts, skipping ones that already exist
func (d *Dependencies) seedDatabase(ctx context.Context, password string) error {
	hash, err := d.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash demo password: %w", err)
	}

	created := 0
	for _, user := range memory.DemoUsers(hash) {
		if err := d.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				continue
			}
			return fmt.Errorf("failed to seed %s: %w", user.Email, err)
		}
		created++
	}

	d.Logger.Info("demo users seeded", zap.Int("created", created))
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	sessions, err := session.NewFromConfig(cfg.Session)
	if err != nil {
		return err
	}
	d.Sessions = sessions
	d.Cookies = auth.NewSessionCookies(cfg.Session.CookieName, cfg.Session.SecureCookie)

	d.Throttle = ratelimit.NewLoginLimiter(cfg.Throttle.MaxFailures, cfg.Throttle.Window, d.Logger)
	d.Audit = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	})

	d.AuthService = services.NewAuthService(d.Users, d.Sessions, d.Hasher, d.Throttle, d.Audit, d.Logger)
	return nil
}

func (d *Dependencies) initHTTP(cfg *config.Config) error {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.AuthService, d.Cookies, d.AuthService, d.Logger)
	d.RouteGuard = middleware.NewRouteGuard(d.AuthService, d.AuthService, cfg.Routes, cfg.Session.CookieName, d.Logger)

	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, d.Cookies, cfg.Routes.DefaultPath, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.AuthService, d.Logger)

	dashboard, err := handlers.NewDashboardHandler(cfg.Routes, d.Logger)
	if err != nil {
		return err
	}
	d.DashboardHandler = dashboard

	if d.DB != nil {
		d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Audit, cfg.Store.Backend, d.Logger)
	} else {
		d.HealthHandler = handlers.NewHealthHandler(nil, d.Audit, cfg.Store.Backend, d.Logger)
	}
	return nil
}

// Start launches the background workers: the audit writer and the throttle
// cleanup loop. Both stop in Close.
func (d *Dependencies) Start(ctx context.Context) error {
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	d.stopCleanup = cancel
	d.cleanupDone = make(chan struct{})
	go func() {
		defer close(d.cleanupDone)
		d.Throttle.StartCleanupWorker(cleanupCtx, d.Config.Throttle.CleanupInterval)
	}()

	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopCleanup != nil {
		d.stopCleanup()
		<-d.cleanupDone
		d.stopCleanup = nil
	}

	if d.Audit != nil && d.Audit.GetStats().Started {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if err := d.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}

func (d *Dependencies) closeStore() error {
	if d.RepoFactory == nil {
		return nil
	}
	err := d.RepoFactory.Close()
	d.RepoFactory = nil
	if err == nil {
		d.Logger.Info("database connection closed")
	}
	return err
}
