package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// parseReceiptFields pulls the JSON object out of a model response. Models
// wrap answers in markdown fences or prose, so the object is located by the
// first "{" and the last "}".
func parseReceiptFields(text string) (*ReceiptFields, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var fields ReceiptFields
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields.Vendor = strings.TrimSpace(fields.Vendor)
	fields.PaymentMethod = strings.TrimSpace(fields.PaymentMethod)
	fields.Date = normalizeDate(fields.Date)
	if fields.Amount < 0 {
		fields.Amount = 0
	}

	return &fields, nil
}

// normalizeDate coerces common model date formats to YYYY-MM-DD. An
// unreadable date becomes empty rather than a guess, so the field stays
// open for the user to fill in.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
		"Jan 2, 2006",
		"January 2, 2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}
