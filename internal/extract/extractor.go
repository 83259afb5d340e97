// Package extract pulls structured receipt fields out of photos.
package extract

import (
	"context"
	"errors"
)

// ErrUnreadable marks extraction failures that retrying cannot fix, such as
// a photo the model answers with no usable JSON for.
var ErrUnreadable = errors.New("unreadable receipt")

// ReceiptFields is what a scan recovers from a photo. Zero values mean the
// field could not be read; callers must not overwrite user input with them.
type ReceiptFields struct {
	Vendor        string  `json:"vendor"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"` // ISO YYYY-MM-DD, empty when unreadable
	PaymentMethod string  `json:"payment_method"`
}

// Extractor analyzes a receipt image and extracts its fields.
type Extractor interface {
	ExtractReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptFields, error)
	Close() error
}
