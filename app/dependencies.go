package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/config"
	"github.com/pandoralabs/pandora-api/firebase"
	"github.com/pandoralabs/pandora-api/handlers"
	"github.com/pandoralabs/pandora-api/middleware"
	"github.com/pandoralabs/pandora-api/policy"
	"github.com/pandoralabs/pandora-api/repositories"
	"github.com/pandoralabs/pandora-api/repositories/postgres"
	"github.com/pandoralabs/pandora-api/services"
	"github.com/pandoralabs/pandora-api/session"
	"github.com/pandoralabs/pandora-api/token"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB  // nil without DATABASE_URL
	Redis  *redis.Client // nil without REDIS_ADDR

	// Domain
	Users    repositories.UserRepository
	Products repositories.ProductRepository
	Sessions session.Store
	Codec    *token.Codec
	Firebase *firebase.Client // nil in local mode
	Policy   *policy.Engine

	// Services
	AuthService *services.AuthService

	// Middleware
	AuthMiddleware   *middleware.AuthMiddleware
	PolicyMiddleware *middleware.PolicyMiddleware

	// Handlers
	AuthHandler     *handlers.AuthHandler
	ProductsHandler *handlers.ProductsHandler
	UsersHandler    *handlers.UsersHandler
	HealthHandler   *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
// Configuration problems surface here at startup, never per request.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStores(ctx, cfg); err != nil {
		return nil, err
	}

	if err := deps.initAuth(cfg); err != nil {
		return nil, err
	}

	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized",
		zap.String("auth_mode", cfg.Auth.Mode),
		zap.Bool("postgres", deps.DB != nil),
		zap.Bool("redis", deps.Redis != nil))
	return deps, nil
}

// initStores initializes the user, product and session stores
func (d *Dependencies) initStores(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.ConnectionString != "" {
		db, err := postgres.NewDB(cfg.Database.ConnectionString, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		d.DB = db
		d.Users = postgres.NewUserRepository(db, d.Logger)
	} else {
		users, err := repositories.NewMemoryUserRepository(repositories.DefaultSeedUsers())
		if err != nil {
			return fmt.Errorf("failed to seed users: %w", err)
		}
		d.Users = users
		d.Logger.Info("using in-memory user store with seed accounts")
	}

	d.Products = repositories.NewMemoryProductRepository()

	if cfg.Session.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		d.Redis = client
		d.Sessions = session.NewRedisStore(client, cfg.Session.MaxPerUser, cfg.Auth.RefreshTTL)
		d.Logger.Info("using redis session store", zap.String("addr", cfg.Session.RedisAddr))
	} else {
		d.Sessions = session.NewMemoryStore(cfg.Session.MaxPerUser)
	}

	return nil
}

// initAuth initializes the token codec, verifiers and policy engine
func (d *Dependencies) initAuth(cfg *config.Config) error {
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}
	d.Codec = codec

	if cfg.Auth.UsesFirebase() {
		client, err := d.newFirebaseClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize firebase client: %w", err)
		}
		d.Firebase = client
	}

	var verifiers []middleware.Verifier
	if cfg.Auth.UsesLocal() {
		verifiers = append(verifiers, middleware.NewLocalVerifier(codec))
	}
	if d.Firebase != nil {
		verifiers = append(verifiers, middleware.NewFirebaseVerifier(d.Firebase, cfg.Firebase.CheckRevoked))
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Logger, verifiers...)

	d.Policy = policy.NewEngine(nil)
	d.PolicyMiddleware = middleware.NewPolicyMiddleware(d.Policy, cfg.Auth.Debug, d.Logger)

	var revoker services.FirebaseRevoker
	if d.Firebase != nil {
		revoker = d.Firebase
	}
	d.AuthService = services.NewAuthService(d.Users, d.Sessions, codec, revoker, d.Logger)

	return nil
}

// newFirebaseClient builds the provider client, with admin credentials when
// a service account is configured
func (d *Dependencies) newFirebaseClient(cfg *config.Config) (*firebase.Client, error) {
	fbCfg := firebase.Config{ProjectID: cfg.Firebase.ProjectID}

	if cfg.Firebase.CredentialsFile != "" || cfg.Firebase.CredentialsJSON != "" {
		sa, err := firebase.LoadServiceAccount(cfg.Firebase.CredentialsFile, cfg.Firebase.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		source, err := firebase.NewServiceAccountTokenSource(sa, 10*time.Second)
		if err != nil {
			return nil, err
		}
		fbCfg.TokenSource = source
	} else {
		d.Logger.Warn("firebase configured without service account credentials, directory operations disabled")
	}

	return firebase.NewClient(fbCfg)
}

// initHandlers initializes the HTTP handlers
func (d *Dependencies) initHandlers(cfg *config.Config) {
	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, d.Logger)
	d.ProductsHandler = handlers.NewProductsHandler(d.Products, d.Logger)

	if d.Firebase != nil {
		d.UsersHandler = handlers.NewUsersHandler(d.Firebase, d.Logger)
	}

	checks := make(map[string]handlers.HealthChecker)
	if d.DB != nil {
		checks["database"] = d.DB
	}
	if d.Redis != nil {
		checks["redis"] = redisChecker{client: d.Redis}
	}
	d.HealthHandler = handlers.NewHealthHandler(checks, d.Logger)
}

// redisChecker adapts the redis client to the health check interface
type redisChecker struct {
	client *redis.Client
}

func (c redisChecker) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
