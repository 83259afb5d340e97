package backend

import (
	"context"

	"snapreceipt/internal/core"
)

// Backend is the unified data interface every store implements.
type Backend interface {
	ReceiptStore
	TaxonomyReader
	TaxonomyWriter
	PhotoStore
}

// ReceiptStore covers receipt persistence.
type ReceiptStore interface {
	ListReceipts(ctx context.Context) ([]core.Receipt, error)
	GetReceipt(ctx context.Context, id string) (core.Receipt, error)
	CreateReceipt(ctx context.Context, r core.Receipt) (core.Receipt, error)
	// UpdateReceipt applies a partial update. Keys use the wire field names.
	UpdateReceipt(ctx context.Context, id string, fields map[string]any) (core.Receipt, error)
	DeleteReceipt(ctx context.Context, id string) error
}

// TaxonomyReader lists the reference entities receipts link to.
type TaxonomyReader interface {
	ListClients(ctx context.Context) ([]core.Client, error)
	ListTrips(ctx context.Context) ([]core.Trip, error)
}

// TaxonomyWriter manages the reference entities. Deleting one leaves
// referencing receipts with a dangling id that renders as no association.
type TaxonomyWriter interface {
	CreateClient(ctx context.Context, name string) (core.Client, error)
	CreateTrip(ctx context.Context, name string) (core.Trip, error)
	DeleteClient(ctx context.Context, id string) error
	DeleteTrip(ctx context.Context, id string) error
}

// PhotoStore uploads receipt photos and returns a publicly fetchable URL.
type PhotoStore interface {
	UploadPhoto(ctx context.Context, owner string, data []byte, contentType string) (string, error)
}

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// BackendResult pairs a backend instance with its optional cleanup.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend.
type BackendType string

const (
	RESTBackend   BackendType = "rest"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer.
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid.
func (bt BackendType) IsValid() bool {
	switch bt {
	case RESTBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
