package app

import (
	"context"
	"fmt"

	"github.com/upb/realtime-jwtauth/config"
	"github.com/upb/realtime-jwtauth/credential"
	"github.com/upb/realtime-jwtauth/internal/hub"
	"github.com/upb/realtime-jwtauth/jwtauth"
	"github.com/upb/realtime-jwtauth/repositories/postgres"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Session store, nil when no database is configured
	Sessions *postgres.SessionRepository

	// Authorization
	Verifier   *credential.Verifier
	Controller *jwtauth.Controller
	Hub        *hub.Hub
}

// Option customizes NewDependencies
type Option func(*Dependencies)

// WithDB uses an already open database instead of dialing cfg.Database
func WithDB(db *postgres.DB) Option {
	return func(d *Dependencies) { d.DB = db }
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(deps)
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAuth(ctx, cfg); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("controller", cfg.Auth.ControllerName),
		zap.Strings("algorithms", cfg.Auth.Algorithms),
		zap.Bool("session_store", deps.Sessions != nil))
	return deps, nil
}

// initDatabase opens the session store when one is configured
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if d.DB == nil {
		if !cfg.Database.Enabled() {
			d.Logger.Info("session store disabled")
			return nil
		}
		db, err := postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		d.DB = db
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		d.Close()
		return err
	}

	d.Sessions = postgres.NewSessionRepository(d.DB, d.Logger)
	return nil
}

// initAuth builds the verifier and controller and registers them with the hub
func (d *Dependencies) initAuth(ctx context.Context, cfg *config.Config) error {
	verifier, err := credential.NewVerifier(cfg.Auth.VerifierConfig())
	if err != nil {
		return err
	}
	d.Verifier = verifier
	d.Controller = jwtauth.NewController(verifier, jwtauth.WithName(cfg.Auth.ControllerName))

	var hubOpts []hub.Option
	if d.Sessions != nil {
		hubOpts = append(hubOpts, hub.WithSessionRecorder(d.Sessions))
	}
	d.Hub = hub.New(d.Logger, hubOpts...)

	if err := jwtauth.Register(d.Hub, d.Controller); err != nil {
		return err
	}
	return d.Hub.Init(ctx)
}

// Close releases resources held by the dependencies
func (d *Dependencies) Close() {
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("failed to close database", zap.Error(err))
		}
	}
}
