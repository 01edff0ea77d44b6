package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/gate-checkin/internal/app"
	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/config"
	"github.com/spec-kit/gate-checkin/internal/observability"
	"github.com/spec-kit/gate-checkin/internal/persistence"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gate-checkin",
		Short:         "Event ticketing and entry gate check-in",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newGateCmd(), newExportCmd(), newImportCmd(), newReconcileCmd())
	return root
}

// stack is everything a command needs, opened from the environment.
type stack struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *persistence.Database
	redis     *persistence.Redis
	container *app.Container
}

func bootstrap(ctx context.Context, opts app.Options) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := persistence.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	if err := persistence.RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	rt := &stack{cfg: cfg, logger: logger, db: db}
	if cfg.Scanner.DebounceBackend == "redis" {
		rt.redis, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	opts.Logger = logger
	opts.Redis = rt.redis
	rt.container = app.New(cfg, db, opts)
	if err := rt.container.Seed(ctx); err != nil {
		rt.close()
		return nil, fmt.Errorf("seed store: %w", err)
	}
	return rt, nil
}

func (rt *stack) close() {
	rt.container.Close()
	rt.redis.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close database", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

// operator signs in with the given credentials, falling back to the
// configured default organizer.
func (rt *stack) operator(ctx context.Context, email, password string) (*auth.Principal, error) {
	if email == "" {
		email = rt.cfg.Auth.DefaultOrganizerEmail
		if password == "" {
			password = rt.cfg.Auth.DefaultOrganizerPass
		}
	}
	return rt.container.AuthService.PrincipalFor(ctx, email, password)
}

func addCredentialFlags(cmd *cobra.Command, email, password *string) {
	cmd.Flags().StringVar(email, "email", "", "organizer email (default: configured organizer)")
	cmd.Flags().StringVar(password, "password", "", "organizer password")
}
