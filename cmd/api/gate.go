package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spec-kit/gate-checkin/internal/app"
	"github.com/spec-kit/gate-checkin/internal/scanner"
)

func newGateCmd() *cobra.Command {
	var email, password, camera string
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Scan tickets from a camera snapshot file until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			opts := app.Options{OnScan: func(r scanner.Result) {
				if r.Outcome == scanner.OutcomeNone || r.Outcome == scanner.OutcomeSuppressed {
					return
				}
				line := fmt.Sprintf("%s  %-9s %s", r.At.Format("15:04:05"), r.Outcome, r.Code)
				if r.Redemption != nil && r.Redemption.Registration != nil {
					line += "  " + r.Redemption.Registration.Name
				}
				fmt.Fprintln(out, line)
			}}
			opts.CameraPath = camera

			rt, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := rt.operator(ctx, email, password)
			if err != nil {
				return err
			}
			if camera == "" && rt.cfg.Scanner.CameraPath == "" {
				return fmt.Errorf("%w: pass --camera or set SCANNER_CAMERA_PATH", scanner.ErrCameraUnavailable)
			}
			if _, err := rt.container.Scanner.Start(ctx, p); err != nil {
				return err
			}
			fmt.Fprintf(out, "scanning as %s, Ctrl-C to stop\n", p.Email)

			<-ctx.Done()
			return rt.container.Scanner.Stop(p)
		},
	}
	addCredentialFlags(cmd, &email, &password)
	cmd.Flags().StringVar(&camera, "camera", "", "image file refreshed by a webcam snapshot tool")
	return cmd
}
