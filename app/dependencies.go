package app

import (
	"context"
	"fmt"

	"github.com/upb/worldedit-policy/auth"
	"github.com/upb/worldedit-policy/config"
	"github.com/upb/worldedit-policy/handlers"
	"github.com/upb/worldedit-policy/middleware"
	"github.com/upb/worldedit-policy/models"
	"github.com/upb/worldedit-policy/repositories"
	"github.com/upb/worldedit-policy/repositories/postgres"
	"github.com/upb/worldedit-policy/services/limits"
	"github.com/upb/worldedit-policy/services/policy"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Permissions
	Permissions     repositories.PermissionRepository
	PermissionCache *policy.PermissionCache

	// Policy
	SnapshotRepo models.SnapshotRepository
	Store        *policy.Store
	Evaluator    *limits.Evaluator

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	// Handlers
	Health            *handlers.HealthHandler
	LimitsHandler     *handlers.LimitsHandler
	PermissionHandler *handlers.PermissionHandler
}

// NewDependencies creates and wires up all application dependencies and
// publishes the first policy snapshot.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initPermissions(cfg)
	deps.initPolicy(cfg)
	deps.initAuth(cfg)

	if _, err := deps.Store.Reload(ctx); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to load initial policy: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		zap.Uint64("policy_version", deps.Store.Version()),
		zap.Bool("database", deps.DB != nil))
	return deps, nil
}

// initDatabase opens the permission database when one is configured
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Warn("no permission database configured, using in-memory grants")
		return nil
	}

	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return err
	}

	d.DB = db
	return nil
}

func (d *Dependencies) initPermissions(cfg *config.Config) {
	if d.DB != nil {
		d.Permissions = postgres.NewPermissionRepository(d.DB, d.Logger)
	} else {
		d.Permissions = repositories.NewStaticPermissions()
	}

	d.PermissionCache = policy.NewPermissionCache(
		d.Permissions,
		cfg.Permissions.CacheSize,
		cfg.Permissions.CacheTTL,
		d.Logger,
	)
	d.Logger.Info("permission cache initialized",
		zap.Int("max_size", cfg.Permissions.CacheSize),
		zap.Duration("ttl", cfg.Permissions.CacheTTL))
}

func (d *Dependencies) initPolicy(cfg *config.Config) {
	if cfg.Policy.SnapshotDir != "" {
		d.SnapshotRepo = models.SnapshotDirectory(cfg.Policy.SnapshotDir)
	}
	loader := config.NewEnvPolicyLoader(cfg.Policy, d.SnapshotRepo)

	d.Store = policy.NewStore(loader, d.Logger)
	d.Store.Subscribe(d.PermissionCache.OnConfigurationLoaded)
	d.Evaluator = limits.NewEvaluator(d.Store, d.PermissionCache, d.Logger)

	d.Logger.Info("policy store initialized",
		zap.String("env_prefix", loader.Prefix),
		zap.String("working_dir", cfg.Policy.WorkingDir),
		zap.String("snapshot_dir", cfg.Policy.SnapshotDir))
}

// initAuth builds the bearer-token check for admin routes. Without a secret
// every token is rejected, so admin routes answer 401.
func (d *Dependencies) initAuth(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(auth.NewValidator(cfg.Auth), d.Logger)

	if !cfg.Auth.Enabled() {
		d.Logger.Warn("no jwt secret configured, admin routes are disabled")
		return
	}
	d.Logger.Info("admin authentication initialized",
		zap.String("issuer", cfg.Auth.Issuer),
		zap.String("audience", cfg.Auth.Audience),
		zap.String("admin_role", cfg.Auth.AdminRole))
}

func (d *Dependencies) initHandlers() {
	var dbCheck handlers.DatabaseChecker
	if d.DB != nil {
		dbCheck = d.DB
	}

	d.Health = handlers.NewHealthHandler(dbCheck, d.Store, d.Logger)
	d.LimitsHandler = handlers.NewLimitsHandler(d.Store, d.Evaluator, d.Logger)
	d.PermissionHandler = handlers.NewPermissionHandler(d.Permissions, d.PermissionCache, d.Logger)
}

// Close releases the database pool if one was opened
func (d *Dependencies) Close() {
	if d.DB == nil {
		return
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("failed to close database", zap.Error(err))
	}
}
