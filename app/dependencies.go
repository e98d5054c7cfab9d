package app

import (
	"context"
	"fmt"
	"time"

	"github.com/learn2pay/backend/config"
	"github.com/learn2pay/backend/middleware"
	"github.com/learn2pay/backend/repositories"
	"github.com/learn2pay/backend/repositories/postgres"
	"github.com/learn2pay/backend/services/audit"
	"github.com/learn2pay/backend/services/auth"
	"github.com/learn2pay/backend/services/institute"
	"github.com/learn2pay/backend/services/kyc"
	"github.com/learn2pay/backend/services/ratelimit"
	"github.com/learn2pay/backend/services/student"
	"github.com/learn2pay/backend/services/token"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Institutes      repositories.InstituteRepository
	Students        repositories.StudentRepository
	Staff           repositories.StaffRepository
	KYCRequests     repositories.KYCRepository
	RefreshSessions repositories.RefreshSessionRepository
	AuditLogs       repositories.AuditRepository
	TxManager       repositories.TransactionManager

	// Services
	TokenService     *token.Service
	AuthService      *auth.Service
	InstituteService *institute.Service
	StudentService   *student.Service
	KYCService       *kyc.Service
	LoginLimiter     *ratelimit.Limiter
	AuditRecorder    *audit.Recorder

	// Middleware
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initServices(cfg)

	deps.AuthMiddleware = middleware.NewAuthMiddleware(
		deps.TokenService,
		deps.AuthService,
		logger,
	)
	deps.RateLimitMiddleware = middleware.NewRateLimitMiddleware(deps.LoginLimiter, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, factory, and schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Institutes = repos.Institutes
	d.Students = repos.Students
	d.Staff = repos.Staff
	d.KYCRequests = repos.KYCRequests
	d.RefreshSessions = repos.RefreshSessions
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices wires the domain services on top of the repositories
func (d *Dependencies) initServices(cfg *config.Config) {
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)

	d.TokenService = token.NewService(cfg.Auth, d.Logger)
	d.AuthService = auth.NewService(
		d.Institutes,
		d.Students,
		d.Staff,
		d.RefreshSessions,
		d.TokenService,
		hasher,
		d.Logger,
	)
	d.InstituteService = institute.NewService(d.Institutes, d.KYCRequests, hasher, d.Logger)
	d.StudentService = student.NewService(d.Students, d.TxManager, hasher, d.Logger)
	d.AuditRecorder = audit.NewRecorder(d.AuditLogs, d.Logger, audit.DefaultConfig())
	d.KYCService = kyc.NewService(d.KYCRequests, d.Institutes, d.AuditRecorder, cfg.KYC, d.Logger)
	d.LoginLimiter = ratelimit.NewLimiter(d.DB.DB, cfg.RateLimit, d.Logger)

	d.Logger.Info("services initialized")
}

// StartWorkers launches background workers. The KYC verifier and the login
// attempt cleanup run until ctx is canceled.
func (d *Dependencies) StartWorkers(ctx context.Context) {
	if err := d.AuditRecorder.Start(); err != nil {
		d.Logger.Error("failed to start audit recorder", zap.Error(err))
	}
	d.KYCService.Start(ctx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := d.LoginLimiter.Cleanup(ctx); err != nil {
					d.Logger.Warn("login attempt cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}

// Close shuts down all resources held by the dependencies
func (d *Dependencies) Close() error {
	d.KYCService.Stop()

	if err := d.AuditRecorder.Stop(5 * time.Second); err != nil {
		d.Logger.Warn("audit recorder did not stop cleanly", zap.Error(err))
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			return fmt.Errorf("failed to close repository factory: %w", err)
		}
	}

	d.Logger.Info("dependencies closed")
	return nil
}
