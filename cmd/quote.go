package cmd

import (
	"context"
	"fmt"
	"strings"

	"adspace-cli/pricing"

	"github.com/spf13/cobra"
)

func quoteCmd() *cobra.Command {
	var listingID string
	var from string
	var to string

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a date range without booking it",
		RunE: func(cmd *cobra.Command, args []string) error {
			listingID = strings.TrimSpace(listingID)
			if listingID == "" {
				return fmt.Errorf("--listing is required")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			start, end, err := parseDateRange(from, to, a.location)
			if err != nil {
				return err
			}
			price, err := a.service.Quote(context.Background(), listingID, start, end)
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(price)
			}
			printPrice(price)
			return nil
		},
	}

	cmd.Flags().StringVar(&listingID, "listing", "", "Listing ID")
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Day after the last day (YYYY-MM-DD)")
	return cmd
}

func printPrice(price pricing.Price) {
	b := price.Breakdown
	s := price.Split
	if outputCompact {
		fmt.Printf("%d days %s\n", b.TotalDays, formatMoney(s.Final))
		return
	}
	fmt.Printf("Days: %d\n", b.TotalDays)
	fmt.Printf("Base: %s\n", formatMoney(b.BaseAmount))
	fmt.Printf("Discount: %s (%s%%)\n", formatMoney(b.DiscountAmount), b.DiscountPercent)
	fmt.Printf("Start day: %s (x%s)\n", b.DayType, b.Multiplier)
	fmt.Printf("Subtotal: %s\n", formatMoney(s.Subtotal))
	fmt.Printf("Commission: %s\n", formatMoney(s.Commission))
	fmt.Printf("Net: %s\n", formatMoney(s.Net))
	fmt.Printf("Tax: %s\n", formatMoney(s.Tax))
	fmt.Printf("Final: %s\n", formatMoney(s.Final))
}
