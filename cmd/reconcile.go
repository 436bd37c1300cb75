package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"adspace-cli/revenue"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var from string
	var to string
	var month string
	var pdfPath string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Break down completed-booking revenue per listing and check it against the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			var period revenue.Period
			if month != "" {
				first, err := parseDateInput(month+"-01", a.location)
				if err != nil {
					return fmt.Errorf("invalid --month %q (expected YYYY-MM)", month)
				}
				period = revenue.Month(first)
			} else {
				start, end, err := parseDateRange(from, to, a.location)
				if err != nil {
					return err
				}
				if period, err = revenue.NewPeriod(start, end); err != nil {
					return err
				}
			}

			reconciler := revenue.NewReconciler(a.store, revenue.WithSink(a.store), revenue.WithLogger(logger))
			result, err := reconciler.Reconcile(context.Background(), period)
			if err != nil {
				var mismatch *revenue.MismatchError
				if errors.As(err, &mismatch) {
					fmt.Fprintln(os.Stderr, "Revenue does not reconcile; nothing was saved. Audit the ledger before rerunning.")
				}
				return err
			}

			if pdfPath != "" {
				file, err := os.Create(pdfPath)
				if err != nil {
					return err
				}
				if err := revenue.WritePDF(file, result, cfg.Currency); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
			}

			if outputJSON {
				return writeJSON(result)
			}
			if len(result.Records) == 0 {
				fmt.Printf("No completed bookings in %s.\n", period)
				return nil
			}
			return revenue.WriteTable(os.Stdout, result, outputCompact)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Period end, exclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&month, "month", "", "Calendar month (YYYY-MM) instead of --from/--to")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Also write a PDF statement to this file")
	return cmd
}
