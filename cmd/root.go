package cmd

import (
	"fmt"
	"io"
	"os"

	"adspace-cli/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	outputJSON    bool
	outputCompact bool
	dbPath        string
	cfg           = config.Default()
	logger        = logrus.New()
	logCloser     io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "adspace",
	Short: "Pricing, bookings and revenue reconciliation for advertising spaces",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputJSON && outputCompact {
			return fmt.Errorf("choose either --json or --compact")
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if dbPath != "" {
			cfg.DatabasePath = dbPath
		}
		logger, logCloser = cfg.Logger()
		if !outputJSON && !term.IsTerminal(int(os.Stdout.Fd())) {
			outputCompact = true
		}
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	rootCmd.AddCommand(listingsCmd())
	rootCmd.AddCommand(rateCardCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(bookingsCmd())
	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(reconcileCmd())

	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output JSON")
	rootCmd.PersistentFlags().BoolVar(&outputCompact, "compact", false, "Output compact text")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file (default ~/.config/adspace/adspace.db)")
}
