package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/gate-checkin/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for kiosks and organizers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer rt.close()

			server := rt.container.HTTPApp()
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Listen(rt.cfg.App.Addr())
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				rt.logger.Info("shutting down")
			}
			if err := server.Shutdown(); err != nil {
				rt.logger.Warn("fiber shutdown", zap.Error(err))
			}
			return nil
		},
	}
}
