package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"snapreceipt/internal/core"
)

func TestCSV_Layout(t *testing.T) {
	records := []core.Receipt{
		{Date: "2024-07-01", Vendor: "Blue Bottle", Amount: 6.5, Type: core.Personal,
			Category: "Coffee", PaymentMethod: "Cash", Notes: "espresso"},
		{Date: "2024-07-02", Vendor: "Office Depot", Amount: 89.99, Type: core.Business,
			Category: "Supplies", Client: &core.NamedRef{Name: "Globex"}},
	}

	got := CSV(records)
	want := "Date,Vendor,Amount,Type,Category,Client,Trip,Payment Method,Notes\n" +
		"2024-07-01,Blue Bottle,6.5,personal,Coffee,,,Cash,espresso\n" +
		"2024-07-02,Office Depot,89.99,business,Supplies,Globex,,,"

	if got != want {
		t.Errorf("CSV() =\n%q\nwant\n%q", got, want)
	}
}

func TestCSV_Empty(t *testing.T) {
	if got := CSV(nil); got != Header {
		t.Errorf("CSV(nil) = %q, want just the header", got)
	}
}

func TestCSV_ZeroAmountSerializesEmpty(t *testing.T) {
	got := CSV([]core.Receipt{{Date: "2024-01-05", Vendor: "Kiosk", Type: core.Personal}})
	if !strings.Contains(got, "2024-01-05,Kiosk,,personal") {
		t.Errorf("zero amount not serialized as empty field: %q", got)
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Starbucks", "Starbucks"},
		{"comma", "Acme, Inc.", `"Acme, Inc."`},
		{"quote", `The "Best" Cafe`, `"The ""Best"" Cafe"`},
		{"newline", "line one\nline two", "\"line one\nline two\""},
		{"quote and comma", `Tom's "Diner", Inc.`, `"Tom's ""Diner"", Inc."`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escape(tt.in); got != tt.want {
				t.Errorf("escape(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// Escaped output must survive a round trip through a standard CSV reader.
func TestCSV_RoundTrip(t *testing.T) {
	vendor := `Tom's "Diner", Inc.`
	records := []core.Receipt{
		{Date: "2024-07-01", Vendor: vendor, Amount: 12, Type: core.Business,
			Notes: "meeting, with\nnewline"},
	}

	out := CSV(records)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("csv.ReadAll error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (header + record)", len(rows))
	}
	if rows[1][1] != vendor {
		t.Errorf("vendor round trip = %q, want %q", rows[1][1], vendor)
	}
	if rows[1][8] != "meeting, with\nnewline" {
		t.Errorf("notes round trip = %q", rows[1][8])
	}
}

func TestFilename(t *testing.T) {
	now, _ := time.Parse("2006-01-02", "2024-07-15")
	if got := Filename(now); got != "snapreceipt-export-2024-07-15.csv" {
		t.Errorf("Filename() = %q", got)
	}
}
