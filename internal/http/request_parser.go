package http

import (
	"fmt"
	"net/url"
	"strings"

	"snapreceipt/internal/core"
	"snapreceipt/internal/engine"
)

// filterQuery is the parsed filter state of a list or export request.
type filterQuery struct {
	Type     string
	Search   string
	Criteria engine.Criteria
}

// parseFilterQuery extracts filter parameters from the query string.
// Absent parameters mean "no constraint"; malformed dates are rejected so a
// typo cannot silently widen a date-bounded export.
func parseFilterQuery(query url.Values) (filterQuery, error) {
	f := filterQuery{
		Type:   strings.TrimSpace(query.Get("type")),
		Search: strings.TrimSpace(query.Get("search")),
		Criteria: engine.Criteria{
			Category:      strings.TrimSpace(query.Get("category")),
			ClientID:      strings.TrimSpace(query.Get("client_id")),
			TripID:        strings.TrimSpace(query.Get("trip_id")),
			PaymentMethod: strings.TrimSpace(query.Get("payment_method")),
		},
	}
	if f.Type == "" {
		f.Type = engine.TypeAll
	}

	for _, p := range []struct {
		name string
		dst  *string
	}{
		{"from", &f.Criteria.DateFrom},
		{"to", &f.Criteria.DateTo},
	} {
		v := strings.TrimSpace(query.Get(p.name))
		if v == "" {
			continue
		}
		if !core.IsISODate(v) {
			return filterQuery{}, fmt.Errorf("%s must be a YYYY-MM-DD date, got %q", p.name, v)
		}
		*p.dst = v
	}

	return f, nil
}

// parsePeriodQuery reads the summary period, defaulting to month.
func parsePeriodQuery(query url.Values) (engine.Period, error) {
	v := strings.TrimSpace(query.Get("period"))
	if v == "" {
		return engine.Month, nil
	}
	return engine.ParsePeriod(v)
}

// canonicalKey flattens a parsed query into a stable cache key.
func (f filterQuery) canonicalKey() string {
	return strings.Join([]string{
		f.Type, f.Search,
		f.Criteria.DateFrom, f.Criteria.DateTo,
		f.Criteria.Category, f.Criteria.ClientID,
		f.Criteria.TripID, f.Criteria.PaymentMethod,
	}, "\x1f")
}
