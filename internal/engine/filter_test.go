package engine

import (
	"reflect"
	"testing"

	"snapreceipt/internal/core"
)

func named(name string) *core.NamedRef {
	return &core.NamedRef{Name: name}
}

func sampleReceipts() []core.Receipt {
	return []core.Receipt{
		{ID: "r1", Vendor: "Delta Airlines", Amount: 420, Date: "2024-06-01", Type: core.Business,
			Category: "Travel", PaymentMethod: "Credit Card", ClientID: "c1", TripID: "t1",
			Client: named("Acme Corp"), Trip: named("Berlin Expo")},
		{ID: "r2", Vendor: "Blue Bottle", Amount: 6.5, Date: "2024-06-03", Type: core.Personal,
			Category: "Coffee", PaymentMethod: "Cash"},
		{ID: "r3", Vendor: "Office Depot", Amount: 89.99, Date: "2024-07-10", Type: core.Business,
			Category: "Supplies", PaymentMethod: "Credit Card", ClientID: "c2",
			Client: named("Globex"), Notes: "printer paper"},
		{ID: "r4", Vendor: "Whole Foods", Amount: 54.2, Date: "2024-07-12", Type: core.Personal,
			Category: "Groceries", PaymentMethod: "Debit Card"},
		{ID: "r5", Vendor: "Hilton", Amount: 310, Date: "", Type: core.Business,
			Category: "Travel", ClientID: "c1", TripID: "t1",
			Client: named("Acme Corp"), Trip: named("Berlin Expo")},
	}
}

func ids(records []core.Receipt) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestApply(t *testing.T) {
	records := sampleReceipts()

	tests := []struct {
		name     string
		typ      string
		search   string
		criteria Criteria
		want     []string
	}{
		{"no predicates", TypeAll, "", Criteria{}, []string{"r1", "r2", "r3", "r4", "r5"}},
		{"empty type means all", "", "", Criteria{}, []string{"r1", "r2", "r3", "r4", "r5"}},
		{"type business", "business", "", Criteria{}, []string{"r1", "r3", "r5"}},
		{"type personal", "personal", "", Criteria{}, []string{"r2", "r4"}},
		{"search vendor case-insensitive", TypeAll, "delta", Criteria{}, []string{"r1"}},
		{"search notes", TypeAll, "PAPER", Criteria{}, []string{"r3"}},
		{"search client name", TypeAll, "acme", Criteria{}, []string{"r1", "r5"}},
		{"search trip name", TypeAll, "berlin", Criteria{}, []string{"r1", "r5"}},
		{"date from inclusive", TypeAll, "", Criteria{DateFrom: "2024-07-10"}, []string{"r3", "r4"}},
		{"date to inclusive", TypeAll, "", Criteria{DateTo: "2024-06-03"}, []string{"r1", "r2"}},
		{"date range excludes undated", TypeAll, "", Criteria{DateFrom: "2024-01-01", DateTo: "2024-12-31"}, []string{"r1", "r2", "r3", "r4"}},
		{"category", TypeAll, "", Criteria{Category: "Travel"}, []string{"r1", "r5"}},
		{"client id", TypeAll, "", Criteria{ClientID: "c2"}, []string{"r3"}},
		{"trip id", TypeAll, "", Criteria{TripID: "t1"}, []string{"r1", "r5"}},
		{"payment method", TypeAll, "", Criteria{PaymentMethod: "Credit Card"}, []string{"r1", "r3"}},
		{"intersection of all", "business", "acme", Criteria{Category: "Travel", DateFrom: "2024-06-01"}, []string{"r1"}},
		{"empty intersection", "personal", "", Criteria{ClientID: "c1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(records, tt.typ, tt.search, tt.criteria))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

// The filtered result must equal the intersection of each predicate applied
// independently, regardless of the combination of active criteria.
func TestApply_IntersectionProperty(t *testing.T) {
	records := sampleReceipts()
	typ := "business"
	search := "acme"
	criteria := Criteria{Category: "Travel", TripID: "t1"}

	combined := Apply(records, typ, search, criteria)

	inAll := func(r core.Receipt) bool {
		for _, partial := range [][]core.Receipt{
			Apply(records, typ, "", Criteria{}),
			Apply(records, TypeAll, search, Criteria{}),
			Apply(records, TypeAll, "", Criteria{Category: criteria.Category}),
			Apply(records, TypeAll, "", Criteria{TripID: criteria.TripID}),
		} {
			found := false
			for _, p := range partial {
				if p.ID == r.ID {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	var intersection []string
	for _, r := range records {
		if inAll(r) {
			intersection = append(intersection, r.ID)
		}
	}

	if !reflect.DeepEqual(ids(combined), intersection) {
		t.Errorf("combined = %v, intersection of parts = %v", ids(combined), intersection)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	records := sampleReceipts()
	snapshot := make([]core.Receipt, len(records))
	copy(snapshot, records)

	out := Apply(records, "business", "", Criteria{Category: "Travel"})
	if len(out) > 0 {
		out[0].Vendor = "mutated"
	}

	if !reflect.DeepEqual(records, snapshot) {
		t.Error("Apply mutated its input slice")
	}
}
