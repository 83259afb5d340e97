package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	Personal ReceiptType = "personal"
	Business ReceiptType = "business"
)

type (
	ReceiptType string

	// Amount is a currency value that tolerates malformed input: JSON null,
	// a missing field, or a non-numeric value all decode to zero so that
	// aggregation stays total.
	Amount float64

	// NamedRef is the joined display name of a related client or trip row.
	NamedRef struct {
		Name string `json:"name"`
	}

	Receipt struct {
		ID            string      `json:"id"`
		Vendor        string      `json:"vendor"`
		Amount        Amount      `json:"amount"`
		Date          string      `json:"receipt_date"` // ISO YYYY-MM-DD, empty when unknown
		Type          ReceiptType `json:"type"`
		Category      string      `json:"category"`
		PaymentMethod string      `json:"payment_method"`
		ClientID      string      `json:"client_id"`
		TripID        string      `json:"trip_id"`
		Notes         string      `json:"notes"`
		PhotoURL      string      `json:"photo_url"`
		CreatedAt     time.Time   `json:"created_at"`
		UpdatedAt     time.Time   `json:"updated_at"`

		// Joined display names; nil when the reference is absent or dangling.
		Client *NamedRef `json:"clients_receipt,omitempty"`
		Trip   *NamedRef `json:"trips,omitempty"`
	}

	Client struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	Trip struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidType    = errors.New("invalid receipt type")
	ErrNegativeAmount = errors.New("negative amount")
	ErrInvalidDate    = errors.New("invalid date, want YYYY-MM-DD")
	ErrEmptyName      = errors.New("empty name")
	ErrNotFound       = errors.New("not found")
)

// ExtForContentType maps an image content type to the file extension used
// for stored photo keys.
func ExtForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ".jpg"
	}
}

// Validate reports whether the receipt type is one of the closed set.
func (t ReceiptType) Validate() error {
	switch t {
	case Personal, Business:
		return nil
	default:
		return ErrInvalidType
	}
}

// UnmarshalJSON decodes a number or a numeric string; anything else
// (null, "abc", {}, ...) decodes to zero rather than failing.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*a = Amount(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*a = Amount(f)
			return nil
		}
	}
	*a = 0
	return nil
}

func (a Amount) Float64() float64 {
	return float64(a)
}

// String formats the amount with two decimals, matching the export format.
func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', 2, 64)
}

// IsISODate reports whether s is a zero-padded YYYY-MM-DD calendar date.
// The zero-padded form is load-bearing: date range filtering compares these
// strings lexicographically without parsing.
func IsISODate(s string) bool {
	if len(s) != 10 {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func (r Receipt) Validate() error {
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if r.Amount < 0 {
		return ErrNegativeAmount
	}
	if r.Date != "" && !IsISODate(r.Date) {
		return ErrInvalidDate
	}
	if len(r.Vendor) > 200 {
		return errors.New("vendor too long (max 200 characters)")
	}
	return nil
}

// ClientName returns the joined client display name, or "" when the
// association is absent or the referenced client no longer exists.
func (r Receipt) ClientName() string {
	if r.Client == nil {
		return ""
	}
	return r.Client.Name
}

// TripName returns the joined trip display name, or "" when absent.
func (r Receipt) TripName() string {
	if r.Trip == nil {
		return ""
	}
	return r.Trip.Name
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Trip) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
