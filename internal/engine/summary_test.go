package engine

import (
	"encoding/json"
	"testing"
	"time"

	"snapreceipt/internal/core"
)

func TestPeriodStart(t *testing.T) {
	tests := []struct {
		name   string
		now    string
		period Period
		want   string
	}{
		{"month mid-july", "2024-07-15", Month, "2024-07-01"},
		{"quarter Q3 starts july", "2024-07-15", Quarter, "2024-07-01"},
		{"quarter Q1", "2024-02-10", Quarter, "2024-01-01"},
		{"quarter Q2", "2024-06-30", Quarter, "2024-04-01"},
		{"quarter Q4", "2024-12-01", Quarter, "2024-10-01"},
		{"year", "2024-07-15", Year, "2024-01-01"},
		{"month january", "2025-01-31", Month, "2025-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, err := time.Parse("2006-01-02", tt.now)
			if err != nil {
				t.Fatal(err)
			}
			if got := PeriodStart(now, tt.period); got != tt.want {
				t.Errorf("PeriodStart(%s, %s) = %q, want %q", tt.now, tt.period, got, tt.want)
			}
		})
	}
}

func TestInPeriod_QuarterBoundary(t *testing.T) {
	now, _ := time.Parse("2006-01-02", "2024-07-15")
	records := []core.Receipt{
		{ID: "before", Date: "2024-06-30", Amount: 10},
		{ID: "boundary", Date: "2024-07-01", Amount: 20},
		{ID: "after", Date: "2024-07-14", Amount: 30},
		{ID: "undated", Date: "", Amount: 40},
	}

	got := ids(InPeriod(records, now, Quarter))
	want := []string{"boundary", "after"}
	if len(got) != len(want) {
		t.Fatalf("InPeriod() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("InPeriod()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	records := []core.Receipt{
		{Amount: 100, Type: core.Business},
		{Amount: 25.5, Type: core.Personal},
		{Amount: 4.5, Type: core.Personal},
	}

	s := Summarize(records)
	if s.Total != 130 {
		t.Errorf("Total = %v, want 130", s.Total)
	}
	if s.BusinessTotal != 100 {
		t.Errorf("BusinessTotal = %v, want 100", s.BusinessTotal)
	}
	if s.PersonalTotal != 30 {
		t.Errorf("PersonalTotal = %v, want 30", s.PersonalTotal)
	}
	if s.Count != 3 {
		t.Errorf("Count = %v, want 3", s.Count)
	}
}

// Aggregation must be total: null, missing, and garbage amounts all count
// as zero and never abort the computation.
func TestSummarize_MalformedAmounts(t *testing.T) {
	payload := `[
		{"id":"a","type":"business","amount":50},
		{"id":"b","type":"personal","amount":null},
		{"id":"c","type":"personal","amount":"abc"},
		{"id":"d","type":"business"}
	]`
	var records []core.Receipt
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	s := Summarize(records)
	if s.Total != 50 {
		t.Errorf("Total = %v, want 50", s.Total)
	}
	if s.Count != 4 {
		t.Errorf("Count = %v, want 4", s.Count)
	}
}

func TestBreakdownByCategory_SortAndTies(t *testing.T) {
	// Encounter order [C, A, B] with A and B tied at 50: descending by
	// total, ties keep original relative order, so A before B.
	records := []core.Receipt{
		{Category: "C", Amount: 30},
		{Category: "A", Amount: 50},
		{Category: "B", Amount: 50},
	}

	got := BreakdownByCategory(records)
	want := []struct {
		label string
		total float64
	}{{"A", 50}, {"B", 50}, {"C", 30}}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Label != w.label || got[i].Total != w.total {
			t.Errorf("entry[%d] = {%s %v}, want {%s %v}", i, got[i].Label, got[i].Total, w.label, w.total)
		}
	}
}

func TestBreakdownByCategory_UncategorizedBucket(t *testing.T) {
	records := []core.Receipt{
		{Category: "", Amount: 5},
		{Category: "Food", Amount: 10},
		{Category: "", Amount: 7},
	}

	got := BreakdownByCategory(records)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Label != Uncategorized || got[0].Total != 12 {
		t.Errorf("entry[0] = {%s %v}, want {%s 12}", got[0].Label, got[0].Total, Uncategorized)
	}
}

func TestBreakdownByClient_OmitsUnassociated(t *testing.T) {
	records := []core.Receipt{
		{Amount: 10, Client: named("Acme")},
		{Amount: 99}, // no client: excluded, not bucketed
		{Amount: 20, Client: named("Acme")},
	}

	got := BreakdownByClient(records)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Label != "Acme" || got[0].Total != 30 {
		t.Errorf("entry[0] = {%s %v}, want {Acme 30}", got[0].Label, got[0].Total)
	}
}

func TestBreakdown_Shares(t *testing.T) {
	records := []core.Receipt{
		{Category: "Big", Amount: 100},
		{Category: "Half", Amount: 50},
	}

	got := BreakdownByCategory(records)
	if got[0].Share != 1 {
		t.Errorf("max share = %v, want 1", got[0].Share)
	}
	if got[1].Share != 0.5 {
		t.Errorf("share = %v, want 0.5", got[1].Share)
	}
}

func TestBreakdown_Empty(t *testing.T) {
	if got := BreakdownByTrip(nil); len(got) != 0 {
		t.Errorf("BreakdownByTrip(nil) = %v, want empty", got)
	}
}
