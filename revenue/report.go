package revenue

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

func money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// WriteTable renders a reconciled result as an aligned text table. compact
// drops the header and footer lines.
func WriteTable(w io.Writer, result Result, compact bool) error {
	writer := tabwriter.NewWriter(w, 2, 2, 2, ' ', 0)
	if !compact {
		fmt.Fprintf(writer, "Period %s\n", result.Period)
		fmt.Fprintln(writer, "LISTING\tBOOKINGS\tDAYS\tGROSS\tCOMMISSION\tNET\tTAX\tFINAL\tSHARE")
	}
	for _, rec := range result.Records {
		fmt.Fprintf(writer, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s%%\n",
			rec.ListingID,
			rec.BookingCount,
			rec.ActiveDays,
			money(rec.GrossRevenue),
			money(rec.Commission),
			money(rec.NetRevenue),
			money(rec.Tax),
			money(rec.FinalRevenue),
			rec.PercentOfTotal.StringFixed(2),
		)
	}
	if !compact {
		fmt.Fprintf(writer, "TOTAL\t\t\t\t\t\t\t%s\t\n", money(result.Total))
		fmt.Fprintf(writer, "LEDGER\t\t\t\t\t\t\t%s\t\n", money(result.LedgerTotal))
	}
	return writer.Flush()
}

// WritePDF renders a one page revenue statement.
func WritePDF(w io.Writer, result Result, currency string) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Revenue statement "+result.Period.String(), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Revenue statement", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Period: "+result.Period.String(), "", 1, "L", false, 0, "")
	if currency != "" {
		pdf.CellFormat(0, 6, "Currency: "+currency, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Computed: "+result.ComputedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	headers := []string{"Listing", "Bookings", "Days", "Gross", "Commission", "Net", "Tax", "Final", "Share %"}
	widths := []float64{55, 22, 18, 30, 30, 30, 28, 32, 22}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, rec := range result.Records {
		cells := []string{
			rec.ListingID,
			fmt.Sprintf("%d", rec.BookingCount),
			fmt.Sprintf("%d", rec.ActiveDays),
			money(rec.GrossRevenue),
			money(rec.Commission),
			money(rec.NetRevenue),
			money(rec.Tax),
			money(rec.FinalRevenue),
			rec.PercentOfTotal.StringFixed(2),
		}
		for i, c := range cells {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Total final revenue: "+money(result.Total), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Ledger total: "+money(result.LedgerTotal), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Difference: %s (tolerance %s)", money(result.Difference), money(result.Tolerance)), "", 1, "L", false, 0, "")

	return pdf.Output(w)
}
