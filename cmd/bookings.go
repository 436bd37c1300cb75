package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"adspace-cli/booking"
	"adspace-cli/payment"
	"adspace-cli/pricing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type BookingStats struct {
	TotalBookings  int             `json:"total_bookings"`
	ByStatus       map[string]int  `json:"by_status"`
	Collected      decimal.Decimal `json:"collected"`
	Refunded       decimal.Decimal `json:"refunded"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	BusiestListing string          `json:"busiest_listing"`
}

func bookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Create bookings and drive their lifecycle",
	}

	cmd.AddCommand(bookingsCreateCmd())
	cmd.AddCommand(bookingsListCmd())
	cmd.AddCommand(bookingsShowCmd())
	cmd.AddCommand(bookingsApproveCmd())
	cmd.AddCommand(bookingsRejectCmd())
	cmd.AddCommand(bookingsCancelCmd())
	cmd.AddCommand(bookingsActivateCmd())
	cmd.AddCommand(bookingsCompleteCmd())
	cmd.AddCommand(bookingsArchiveCmd())
	cmd.AddCommand(bookingsChargeCmd())
	cmd.AddCommand(bookingsStatsCmd())
	return cmd
}

func bookingsCreateCmd() *cobra.Command {
	var listingID string
	var requester string
	var from string
	var to string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Request a booking",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listingID == "" || requester == "" {
				return fmt.Errorf("--listing and --requester are required")
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
			created, err := a.service.CreateBooking(context.Background(), booking.CreateRequest{
				ListingID:   strings.TrimSpace(listingID),
				RequesterID: strings.TrimSpace(requester),
				StartDate:   start,
				EndDate:     end,
			})
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(created)
			}
			fmt.Printf("Created booking %s for %s from %s to %s: %s.\n",
				created.ID, created.ListingID, pricing.FormatDate(created.StartDate), pricing.FormatDate(created.EndDate),
				formatMoney(created.FinalAmount))
			return nil
		},
	}

	cmd.Flags().StringVar(&listingID, "listing", "", "Listing ID")
	cmd.Flags().StringVar(&requester, "requester", "", "Requesting advertiser ID")
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Day after the last day (YYYY-MM-DD)")
	return cmd
}

func bookingsListCmd() *cobra.Command {
	var listingID string
	var requester string
	var statuses []string
	var from string
	var to string
	var archived bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			filter := booking.Filter{ListingID: listingID, RequesterID: requester, IncludeArchived: archived}
			for _, value := range statuses {
				status, err := booking.ParseStatus(value)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			if from != "" {
				if filter.From, err = parseDateInput(from, a.location); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.To, err = parseDateInput(to, a.location); err != nil {
					return err
				}
			}
			if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
				return fmt.Errorf("--to must be after --from")
			}

			bookings, err := a.service.List(context.Background(), filter)
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(bookings)
			}
			if len(bookings) == 0 {
				fmt.Println("No bookings found.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			if !outputCompact {
				fmt.Fprintln(writer, "ID\tLISTING\tFROM\tTO\tDAYS\tSTATUS\tFINAL")
			}
			for _, b := range bookings {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					b.ID, b.ListingID, pricing.FormatDate(b.StartDate), pricing.FormatDate(b.EndDate),
					b.TotalDays, b.Status, formatMoney(b.FinalAmount))
			}
			return writer.Flush()
		},
	}

	cmd.Flags().StringVar(&listingID, "listing", "", "Only this listing")
	cmd.Flags().StringVar(&requester, "requester", "", "Only this requester")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only these statuses")
	cmd.Flags().StringVar(&from, "from", "", "Bookings ending after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Bookings starting before this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&archived, "archived", false, "Include archived bookings")
	return cmd
}

func bookingsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			b, err := a.service.Get(context.Background(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return printBooking(b)
		},
	}

	return cmd
}

func bookingsApproveCmd() *cobra.Command {
	var approver string

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approver == "" {
				return fmt.Errorf("--by is required")
			}
			return runTransition(args[0], func(ctx context.Context, svc *booking.Service, id string) (booking.Booking, error) {
				return svc.Approve(ctx, id, approver)
			})
		},
	}

	cmd.Flags().StringVar(&approver, "by", "", "Approving owner or admin ID")
	return cmd
}

func bookingsRejectCmd() *cobra.Command {
	var approver string
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approver == "" {
				return fmt.Errorf("--by is required")
			}
			return runTransition(args[0], func(ctx context.Context, svc *booking.Service, id string) (booking.Booking, error) {
				return svc.Reject(ctx, id, approver, reason)
			})
		},
	}

	cmd.Flags().StringVar(&approver, "by", "", "Rejecting owner or admin ID")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to the requester")
	return cmd
}

func bookingsCancelCmd() *cobra.Command {
	var actor string
	var on string
	var yes bool

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a booking and record its refund",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				return fmt.Errorf("--by is required")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			cancelDate := localNow(a.location)
			if on != "" {
				if cancelDate, err = parseDateInput(on, a.location); err != nil {
					return err
				}
			}

			ctx := context.Background()
			id := strings.TrimSpace(args[0])
			current, err := a.service.Get(ctx, id)
			if err != nil {
				return err
			}
			if !yes {
				refund := booking.CalculateRefund(a.service.RefundPolicy(), current, cancelDate)
				ok, err := confirm(fmt.Sprintf("Cancel booking %s? Refund %s (%s%%)", id, formatMoney(refund.Amount), refund.Percent))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("cancelled by user")
				}
			}

			cancelled, err := a.service.Cancel(ctx, id, actor, cancelDate)
			if err != nil {
				return err
			}
			return printBooking(cancelled)
		},
	}

	cmd.Flags().StringVar(&actor, "by", "", "Cancelling party ID")
	cmd.Flags().StringVar(&on, "on", "", "Cancellation date (default today)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func bookingsActivateCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "activate <id>",
		Short: "Mark an approved booking as running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(args[0], func(ctx context.Context, svc *booking.Service, id string) (booking.Booking, error) {
				now, err := nowOrDate(at)
				if err != nil {
					return booking.Booking{}, err
				}
				return svc.Activate(ctx, id, now)
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Evaluate as of this date (default now)")
	return cmd
}

func bookingsCompleteCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark an active booking as completed and post it to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(args[0], func(ctx context.Context, svc *booking.Service, id string) (booking.Booking, error) {
				now, err := nowOrDate(at)
				if err != nil {
					return booking.Booking{}, err
				}
				return svc.Complete(ctx, id, now)
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Evaluate as of this date (default now)")
	return cmd
}

func bookingsArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a finished booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(args[0], func(ctx context.Context, svc *booking.Service, id string) (booking.Booking, error) {
				return svc.Archive(ctx, id)
			})
		},
	}

	return cmd
}

func bookingsChargeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "charge <id>",
		Short: "Charge a pending booking; a failed charge rejects it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			client := payment.NewClient(cfg.PaymentURL, cfg.PaymentRPS, logger)
			settler := payment.NewSettler(client, a.service, cfg.Currency, logger)
			outcome, err := settler.Settle(context.Background(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(outcome)
			}
			if outcome.Paid {
				fmt.Printf("Charged %s for booking %s (charge %s).\n", formatMoney(outcome.Booking.FinalAmount), outcome.Booking.ID, outcome.Charge.ChargeID)
				return nil
			}
			fmt.Printf("Charge failed; booking %s rejected: %s\n", outcome.Booking.ID, outcome.Booking.RejectReason)
			return nil
		},
	}

	return cmd
}

func bookingsStatsCmd() *cobra.Command {
	var listingID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show booking stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			bookings, err := a.service.List(context.Background(), booking.Filter{ListingID: listingID, IncludeArchived: true})
			if err != nil {
				return err
			}
			if len(bookings) == 0 {
				fmt.Println("No bookings found.")
				return nil
			}

			stats := computeBookingStats(bookings)
			if outputJSON {
				return writeJSON(stats)
			}

			fmt.Printf("Total bookings: %d\n", stats.TotalBookings)
			for _, status := range []booking.Status{booking.Pending, booking.Approved, booking.Active, booking.Completed, booking.Rejected, booking.Cancelled} {
				fmt.Printf("  %s: %d\n", status, stats.ByStatus[status.String()])
			}
			fmt.Printf("Collected: %s\n", formatMoney(stats.Collected))
			fmt.Printf("Refunded: %s\n", formatMoney(stats.Refunded))
			fmt.Printf("Outstanding: %s\n", formatMoney(stats.Outstanding))
			fmt.Printf("Busiest listing: %s\n", stats.BusiestListing)
			return nil
		},
	}

	cmd.Flags().StringVar(&listingID, "listing", "", "Only this listing")
	return cmd
}

func computeBookingStats(bookings []booking.Booking) BookingStats {
	stats := BookingStats{TotalBookings: len(bookings), ByStatus: map[string]int{}}
	days := map[string]int{}
	for _, b := range bookings {
		stats.ByStatus[b.Status.String()]++
		switch b.Status {
		case booking.Completed:
			stats.Collected = stats.Collected.Add(b.FinalAmount)
			days[b.ListingID] += b.TotalDays
		case booking.Cancelled:
			stats.Refunded = stats.Refunded.Add(b.RefundAmount)
		case booking.Pending, booking.Approved, booking.Active:
			stats.Outstanding = stats.Outstanding.Add(b.FinalAmount)
			days[b.ListingID] += b.TotalDays
		}
	}

	best := 0
	for listing, count := range days {
		if count > best || (count == best && listing < stats.BusiestListing) {
			best = count
			stats.BusiestListing = listing
		}
	}
	if stats.BusiestListing == "" {
		stats.BusiestListing = "N/A"
	}
	return stats
}

func runTransition(rawID string, apply func(ctx context.Context, svc *booking.Service, id string) (booking.Booking, error)) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	b, err := apply(context.Background(), a.service, strings.TrimSpace(rawID))
	if err != nil {
		return err
	}
	return printBooking(b)
}

// nowOrDate returns the current time in the configured zone, or the given
// date when one is passed.
func nowOrDate(input string) (time.Time, error) {
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	if input == "" {
		return localNow(loc), nil
	}
	return parseDateInput(input, loc)
}

func printBooking(b booking.Booking) error {
	if outputJSON {
		return writeJSON(b)
	}
	if outputCompact {
		fmt.Printf("%s %s %s\n", b.ID, b.Status, formatMoney(b.FinalAmount))
		return nil
	}

	fmt.Printf("Booking: %s\n", b.ID)
	fmt.Printf("Listing: %s\n", b.ListingID)
	fmt.Printf("Requester: %s\n", b.RequesterID)
	fmt.Printf("Dates: %s to %s (%d days)\n", pricing.FormatDate(b.StartDate), pricing.FormatDate(b.EndDate), b.TotalDays)
	fmt.Printf("Status: %s\n", b.Status)
	fmt.Printf("Base: %s, discount %s\n", formatMoney(b.BaseAmount), formatMoney(b.DiscountAmount))
	fmt.Printf("Gross: %s, commission %s, net %s, tax %s\n",
		formatMoney(b.GrossAmount), formatMoney(b.CommissionAmount), formatMoney(b.NetAmount), formatMoney(b.TaxAmount))
	fmt.Printf("Final: %s\n", formatMoney(b.FinalAmount))
	if b.Paid() {
		fmt.Printf("Paid: %s (charge %s)\n", b.PaidAt.Format(time.RFC3339), b.ChargeID)
	}
	if b.DecidedBy != "" {
		fmt.Printf("Decided by: %s\n", b.DecidedBy)
	}
	if b.RejectReason != "" {
		fmt.Printf("Reason: %s\n", b.RejectReason)
	}
	if b.Status == booking.Cancelled {
		fmt.Printf("Refund: %s (%s%%) to %s\n", formatMoney(b.RefundAmount), b.RefundPercent, b.CancelledBy)
	}
	if b.Archived() {
		fmt.Printf("Archived: %s\n", b.ArchivedAt.Format(time.RFC3339))
	}
	return nil
}
