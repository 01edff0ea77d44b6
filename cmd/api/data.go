package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spec-kit/gate-checkin/internal/app"
	"github.com/spec-kit/gate-checkin/internal/service"
)

func newExportCmd() *cobra.Command {
	var email, password, out string
	var csvOut bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot (or registrations CSV) of the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer rt.close()

			p, err := rt.operator(ctx, email, password)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if csvOut {
				return rt.container.SnapshotService.WriteRegistrationsCSV(ctx, p, w)
			}
			snap, err := rt.container.SnapshotService.Export(ctx, p)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	addCredentialFlags(cmd, &email, &password)
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file")
	cmd.Flags().BoolVar(&csvOut, "csv", false, "export registrations as CSV")
	return cmd
}

func newImportCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace store collections from a JSON snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			snap, err := service.DecodeSnapshot(r)
			if err != nil {
				return err
			}

			rt, err := bootstrap(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer rt.close()

			p, err := rt.operator(ctx, email, password)
			if err != nil {
				return err
			}
			if err := rt.container.SnapshotService.Import(ctx, p, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d events, %d registrations, %d checkins, %d announcements\n",
				len(snap.Events), len(snap.Registrations), len(snap.Checkins), len(snap.Announcements))
			return nil
		},
	}
	addCredentialFlags(cmd, &email, &password)
	return cmd
}

func newReconcileCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Set checked-in flags for tickets present in the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer rt.close()

			p, err := rt.operator(ctx, email, password)
			if err != nil {
				return err
			}
			n, err := rt.container.RegistrationService.Reconcile(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repaired %d tickets\n", n)
			return nil
		},
	}
	addCredentialFlags(cmd, &email, &password)
	return cmd
}
