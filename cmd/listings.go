package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"adspace-cli/booking"
	"adspace-cli/pricing"

	"github.com/spf13/cobra"
)

func listingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Manage advertising space listings",
	}

	cmd.AddCommand(listingsListCmd())
	cmd.AddCommand(listingsAddCmd())
	cmd.AddCommand(listingsRemoveCmd())
	return cmd
}

func listingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			listings, err := a.service.Listings(context.Background())
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(listings)
			}
			if len(listings) == 0 {
				fmt.Println("No listings saved.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			if !outputCompact {
				fmt.Fprintln(writer, "ID\tOWNER\tTITLE\tCREATED")
			}
			for _, listing := range listings {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", listing.ID, listing.OwnerID, listing.Title, listing.CreatedAt.Format("2006-01-02"))
			}
			return writer.Flush()
		},
	}

	return cmd
}

func listingsAddCmd() *cobra.Command {
	var id string
	var owner string
	var title string
	var card rateCardFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a listing with its rate card",
		RunE: func(cmd *cobra.Command, args []string) error {
			id = strings.TrimSpace(id)
			if id == "" || owner == "" {
				return fmt.Errorf("--id and --owner are required")
			}
			rateCard, err := card.build(id)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			listing, err := a.service.AddListing(context.Background(), booking.NewListing{
				ID:      id,
				OwnerID: owner,
				Title:   title,
				Card:    rateCard,
			})
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(listing)
			}
			fmt.Printf("Saved listing %s (%s).\n", listing.ID, listing.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Listing ID")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID")
	cmd.Flags().StringVar(&title, "title", "", "Listing title")
	card.register(cmd)
	return cmd
}

func listingsRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a listing with no unarchived bookings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.service.RemoveListing(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Removed listing %s.\n", id)
			return nil
		},
	}

	return cmd
}

type rateCardFlags struct {
	basePrice   string
	weekend     string
	holiday     string
	minimumDays int
	tiers       []string
}

func (f *rateCardFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.basePrice, "price", "", "Base daily price")
	cmd.Flags().StringVar(&f.weekend, "weekend", "1", "Weekend start multiplier")
	cmd.Flags().StringVar(&f.holiday, "holiday", "1", "Holiday start multiplier")
	cmd.Flags().IntVar(&f.minimumDays, "min-days", 1, "Minimum bookable days")
	cmd.Flags().StringSliceVar(&f.tiers, "tier", nil, "Long-term discount days:percent (repeatable)")
}

func (f *rateCardFlags) build(listingID string) (pricing.RateCard, error) {
	if f.basePrice == "" {
		return pricing.RateCard{}, fmt.Errorf("--price is required")
	}
	base, err := pricing.ParseAmount(f.basePrice)
	if err != nil {
		return pricing.RateCard{}, err
	}
	card := pricing.NewRateCard(listingID, base)
	if card.WeekendMultiplier, err = pricing.ParseAmount(f.weekend); err != nil {
		return pricing.RateCard{}, fmt.Errorf("--weekend: %w", err)
	}
	if card.HolidayMultiplier, err = pricing.ParseAmount(f.holiday); err != nil {
		return pricing.RateCard{}, fmt.Errorf("--holiday: %w", err)
	}
	card.MinimumDays = f.minimumDays
	if card.Tiers, err = parseTiers(f.tiers); err != nil {
		return pricing.RateCard{}, err
	}
	return card, card.Validate()
}

func rateCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratecard",
		Short: "Show or replace a listing's rate card",
	}

	cmd.AddCommand(rateCardShowCmd())
	cmd.AddCommand(rateCardSetCmd())
	return cmd
}

func rateCardShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <listing>",
		Short: "Show a rate card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			card, err := a.service.RateCard(context.Background(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(card)
			}

			fmt.Printf("Listing: %s\n", card.ListingID)
			fmt.Printf("Base price: %s/day\n", formatMoney(card.BasePrice))
			fmt.Printf("Weekend multiplier: %s\n", card.WeekendMultiplier)
			fmt.Printf("Holiday multiplier: %s\n", card.HolidayMultiplier)
			fmt.Printf("Minimum days: %d\n", card.MinimumDays)
			for _, tier := range card.SortedTiers() {
				fmt.Printf("Discount: %s%% from %d days\n", tier.DiscountPercent, tier.MinimumDays)
			}
			return nil
		},
	}

	return cmd
}

func rateCardSetCmd() *cobra.Command {
	var card rateCardFlags

	cmd := &cobra.Command{
		Use:   "set <listing>",
		Short: "Replace a rate card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listingID := strings.TrimSpace(args[0])
			rateCard, err := card.build(listingID)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.service.SetRateCard(context.Background(), rateCard); err != nil {
				return err
			}
			fmt.Printf("Updated rate card of %s.\n", listingID)
			return nil
		},
	}

	card.register(cmd)
	return cmd
}
