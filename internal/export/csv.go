// Package export serializes a filtered receipt list into the CSV interchange
// format consumed by spreadsheet tools.
package export

import (
	"strconv"
	"strings"
	"time"

	"snapreceipt/internal/core"
)

// Header is the fixed CSV header row.
const Header = "Date,Vendor,Amount,Type,Category,Client,Trip,Payment Method,Notes"

// CSV renders one row per receipt in the given order, preceded by Header.
// Rows are joined with \n and the output carries no trailing newline. A
// zero amount serializes as an empty field, matching "no amount recorded".
func CSV(records []core.Receipt) string {
	var b strings.Builder
	b.WriteString(Header)
	for _, r := range records {
		b.WriteByte('\n')
		fields := []string{
			r.Date,
			escape(r.Vendor),
			formatAmount(r.Amount),
			string(r.Type),
			escape(r.Category),
			escape(r.ClientName()),
			escape(r.TripName()),
			escape(r.PaymentMethod),
			escape(r.Notes),
		}
		b.WriteString(strings.Join(fields, ","))
	}
	return b.String()
}

// Filename returns the export file name for the given day, e.g.
// "snapreceipt-export-2024-07-15.csv".
func Filename(now time.Time) string {
	return "snapreceipt-export-" + now.Format("2006-01-02") + ".csv"
}

func formatAmount(a core.Amount) string {
	if a == 0 {
		return ""
	}
	return strconv.FormatFloat(a.Float64(), 'f', -1, 64)
}

// escape wraps a field in double quotes when it contains a comma, a double
// quote, or a newline, doubling any inner quotes. Clean fields pass through
// unquoted.
func escape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
