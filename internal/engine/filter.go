// Package engine derives filtered views and spending summaries from the
// in-memory receipt collection. Every function is pure: the input slice is
// treated as read-only and results are freshly allocated, so the same inputs
// always produce the same outputs.
package engine

import (
	"strings"

	"snapreceipt/internal/core"
)

// TypeAll disables the type predicate.
const TypeAll = "all"

// Criteria is one immutable set of optional predicates. The zero value
// matches every receipt; an empty field means "no constraint" for that
// dimension.
type Criteria struct {
	DateFrom      string // inclusive, ISO YYYY-MM-DD
	DateTo        string // inclusive, ISO YYYY-MM-DD
	Category      string
	ClientID      string
	TripID        string
	PaymentMethod string
}

// IsZero reports whether no predicate is active.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Apply narrows records to the strict intersection of all active predicates:
// type equality, case-insensitive free-text search, and the criteria set.
// Predicates are independent, so application order only affects cost, not
// the result; the cheap type predicate goes first.
func Apply(records []core.Receipt, typ string, search string, c Criteria) []core.Receipt {
	result := records

	if typ != "" && typ != TypeAll {
		result = filter(result, func(r core.Receipt) bool {
			return string(r.Type) == typ
		})
	}
	if search != "" {
		needle := strings.ToLower(search)
		result = filter(result, func(r core.Receipt) bool {
			return strings.Contains(strings.ToLower(r.Vendor), needle) ||
				strings.Contains(strings.ToLower(r.Notes), needle) ||
				strings.Contains(strings.ToLower(r.ClientName()), needle) ||
				strings.Contains(strings.ToLower(r.TripName()), needle)
		})
	}
	if c.DateFrom != "" {
		// Zero-padded ISO dates order lexicographically; receipts without a
		// date compare below every bound and drop out of any date range.
		result = filter(result, func(r core.Receipt) bool {
			return r.Date >= c.DateFrom
		})
	}
	if c.DateTo != "" {
		result = filter(result, func(r core.Receipt) bool {
			return r.Date != "" && r.Date <= c.DateTo
		})
	}
	if c.Category != "" {
		result = filter(result, func(r core.Receipt) bool {
			return r.Category == c.Category
		})
	}
	if c.ClientID != "" {
		result = filter(result, func(r core.Receipt) bool {
			return r.ClientID == c.ClientID
		})
	}
	if c.TripID != "" {
		result = filter(result, func(r core.Receipt) bool {
			return r.TripID == c.TripID
		})
	}
	if c.PaymentMethod != "" {
		result = filter(result, func(r core.Receipt) bool {
			return r.PaymentMethod == c.PaymentMethod
		})
	}

	// Always hand back a fresh slice, even when no predicate was active.
	out := make([]core.Receipt, len(result))
	copy(out, result)
	return out
}

func filter(records []core.Receipt, keep func(core.Receipt) bool) []core.Receipt {
	out := make([]core.Receipt, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
