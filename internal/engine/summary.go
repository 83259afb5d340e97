package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"snapreceipt/internal/core"
)

const (
	Month   Period = "month"
	Quarter Period = "quarter"
	Year    Period = "year"
)

type (
	Period string

	// Stats holds the headline numbers for the currently selected window.
	Stats struct {
		Total         float64 `json:"total"`
		BusinessTotal float64 `json:"business_total"`
		PersonalTotal float64 `json:"personal_total"`
		Count         int     `json:"count"`
	}

	// BreakdownEntry is one (label, summed amount) pair of a grouping
	// dimension. Share is the entry's amount divided by the group maximum,
	// used directly as a bar width.
	BreakdownEntry struct {
		Label string  `json:"label"`
		Total float64 `json:"total"`
		Share float64 `json:"share"`
	}
)

// Uncategorized is the bucket label for receipts without a category.
const Uncategorized = "Uncategorized"

var ErrInvalidPeriod = errors.New("invalid period")

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case Month, Quarter, Year:
		return Period(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// PeriodStart computes the inclusive lower bound of the reporting window:
// first of the current month, first month of the current quarter, or
// January 1 of the current year. There is no upper bound.
func PeriodStart(now time.Time, p Period) string {
	switch p {
	case Quarter:
		qMonth := (int(now.Month())-1)/3*3 + 1
		return time.Date(now.Year(), time.Month(qMonth), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	case Year:
		return fmt.Sprintf("%04d-01-01", now.Year())
	default: // Month
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	}
}

// InPeriod narrows records to those dated on or after the period's lower
// bound. Receipts without a date never fall inside a reporting window.
func InPeriod(records []core.Receipt, now time.Time, p Period) []core.Receipt {
	start := PeriodStart(now, p)
	return filter(records, func(r core.Receipt) bool {
		// An empty date compares below every bound.
		return r.Date >= start
	})
}

// Summarize computes the total spend and the business/personal split.
// Malformed amounts already decode to zero, so this never fails.
func Summarize(records []core.Receipt) Stats {
	var s Stats
	s.Count = len(records)
	for _, r := range records {
		amt := r.Amount.Float64()
		s.Total += amt
		switch r.Type {
		case core.Business:
			s.BusinessTotal += amt
		case core.Personal:
			s.PersonalTotal += amt
		}
	}
	return s
}

// BreakdownByCategory groups spend by category; receipts without a category
// are bucketed under the Uncategorized label.
func BreakdownByCategory(records []core.Receipt) []BreakdownEntry {
	return breakdown(records, func(r core.Receipt) string {
		if r.Category == "" {
			return Uncategorized
		}
		return r.Category
	})
}

// BreakdownByClient groups spend by linked client name; receipts without a
// client association are excluded (the relation is optional, unlike a
// category, which every receipt conceptually has).
func BreakdownByClient(records []core.Receipt) []BreakdownEntry {
	return breakdown(records, core.Receipt.ClientName)
}

// BreakdownByTrip groups spend by linked trip name; receipts without a trip
// association are excluded.
func BreakdownByTrip(records []core.Receipt) []BreakdownEntry {
	return breakdown(records, core.Receipt.TripName)
}

// breakdown sums amounts per non-empty key and sorts entries by summed
// amount descending. The sort is stable: equal totals keep first-encounter
// order, which keeps rendering deterministic.
func breakdown(records []core.Receipt, key func(core.Receipt) string) []BreakdownEntry {
	totals := make(map[string]float64)
	var order []string
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		if _, seen := totals[k]; !seen {
			order = append(order, k)
		}
		totals[k] += r.Amount.Float64()
	}

	entries := make([]BreakdownEntry, 0, len(order))
	for _, k := range order {
		entries = append(entries, BreakdownEntry{Label: k, Total: totals[k]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Total > entries[j].Total
	})

	if len(entries) > 0 && entries[0].Total > 0 {
		max := entries[0].Total
		for i := range entries {
			entries[i].Share = entries[i].Total / max
		}
	}
	return entries
}
