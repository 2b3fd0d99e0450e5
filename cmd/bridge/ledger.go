package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"brainbridge/internal/ledger"
)

func newLedgerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and reconcile recorded booking attempts",
	}
	cmd.AddCommand(newLedgerListCmd(opts))
	cmd.AddCommand(newLedgerExportCmd(opts))
	cmd.AddCommand(newLedgerResolveCmd(opts))
	cmd.AddCommand(newLedgerPruneCmd(opts))
	return cmd
}

func withLedger(opts *rootOptions, cmd *cobra.Command, fn func(*app, *ledger.Ledger) error) error {
	a, err := loadApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	l, err := a.openLedger()
	if err != nil {
		return err
	}
	return fn(a, l)
}

func newLedgerListCmd(opts *rootOptions) *cobra.Command {
	var (
		unreconciled bool
		limit        int
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List booking attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(_ *app, l *ledger.Ledger) error {
				var (
					entries []ledger.Entry
					err     error
				)
				if unreconciled {
					entries, err = l.ListUnreconciled(cmd.Context())
				} else {
					entries, err = l.List(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ATTEMPT\tRESOURCE\tDATE\tPAYMENT\tSTATE\tKIND\tRECONCILED\tSTARTED")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s #%d\t%s\t%s\t%s\t%s\t%t\t%s\n",
						e.AttemptID, e.Resource, e.ResourceID, e.ScheduledDate, e.PaymentIntentID,
						e.State, e.ErrorKind, e.Reconciled, e.StartedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}

	c.Flags().BoolVar(&unreconciled, "unreconciled", false, "only captured payments without a confirmed booking")
	c.Flags().IntVar(&limit, "limit", 50, "maximum number of attempts")
	return c
}

func newLedgerExportCmd(opts *rootOptions) *cobra.Command {
	var path string

	c := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(_ *app, l *ledger.Ledger) error {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := l.Export(cmd.Context(), f); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported ledger to %s\n", path)
				return nil
			})
		},
	}

	c.Flags().StringVar(&path, "out", "ledger.xlsx", "output file")
	return c
}

func newLedgerResolveCmd(opts *rootOptions) *cobra.Command {
	var note string

	c := &cobra.Command{
		Use:   "resolve <attempt-id>",
		Short: "Mark a captured payment as reconciled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(_ *app, l *ledger.Ledger) error {
				if err := l.MarkReconciled(cmd.Context(), args[0], note); err != nil {
					return fmt.Errorf("resolve %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attempt %s reconciled\n", args[0])
				return nil
			})
		},
	}

	c.Flags().StringVar(&note, "note", "", "how the payment was resolved")
	return c
}

func newLedgerPruneCmd(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	c := &cobra.Command{
		Use:   "prune",
		Short: "Delete old resolved attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(a *app, l *ledger.Ledger) error {
				age := olderThan
				if age <= 0 {
					age = a.cfg.LedgerRetention()
				}
				n, err := l.DeleteOlderThan(cmd.Context(), age)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d attempts\n", n)
				return nil
			})
		},
	}

	c.Flags().DurationVar(&olderThan, "older-than", 0, "minimum age (defaults to ledger.retention_days)")
	return c
}
