// Package services orchestrates receipt operations across the backend, the
// scan queue and the in-memory session.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"snapreceipt/internal/backend"
	"snapreceipt/internal/core"
	"snapreceipt/internal/session"
)

// photoOwner namespaces uploaded photo keys.
const photoOwner = "receipts"

// ErrNoPhoto is returned when a rescan is requested for a receipt that was
// captured without a photo.
var ErrNoPhoto = errors.New("no photo to scan")

// ScanPublisher enqueues photo extraction jobs.
type ScanPublisher interface {
	PublishScanJob(ctx context.Context, receiptID, photoURL string) error
	Close() error
}

// ReceiptService saves receipts to the backend first, then does the rest
// asynchronously: a failed scan enqueue or session reload never fails a
// capture that already persisted.
type ReceiptService struct {
	backend backend.Backend
	session *session.Session
	queue   ScanPublisher // nil disables scanning
}

func NewReceiptService(b backend.Backend, s *session.Session, queue ScanPublisher) *ReceiptService {
	return &ReceiptService{
		backend: b,
		session: s,
		queue:   queue,
	}
}

// CaptureReceipt uploads the photo (if any), creates the receipt, and
// enqueues a scan job when fields are left for extraction to fill.
func (s *ReceiptService) CaptureReceipt(ctx context.Context, r core.Receipt, photo []byte, contentType string) (core.Receipt, error) {
	if len(photo) > 0 {
		url, err := s.backend.UploadPhoto(ctx, photoOwner, photo, contentType)
		if err != nil {
			return core.Receipt{}, fmt.Errorf("upload photo: %w", err)
		}
		r.PhotoURL = url
	}

	created, err := s.backend.CreateReceipt(ctx, r)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}

	if created.PhotoURL != "" && needsScan(created) {
		if err := s.publishScanJob(ctx, created.ID, created.PhotoURL); err != nil {
			slog.ErrorContext(ctx, "Failed to enqueue scan job",
				"receipt_id", created.ID, "error", err)
			// The receipt is saved; scanning is best effort.
		}
	}

	s.reload(ctx)
	return created, nil
}

// UpdateReceipt applies a partial update and refreshes the session.
func (s *ReceiptService) UpdateReceipt(ctx context.Context, id string, fields map[string]any) (core.Receipt, error) {
	updated, err := s.backend.UpdateReceipt(ctx, id, fields)
	if err != nil {
		return core.Receipt{}, err
	}
	s.reload(ctx)
	return updated, nil
}

// DeleteReceipt removes the receipt and refreshes the session.
func (s *ReceiptService) DeleteReceipt(ctx context.Context, id string) error {
	if err := s.backend.DeleteReceipt(ctx, id); err != nil {
		return err
	}
	s.reload(ctx)
	return nil
}

// CreateClient adds a client and refreshes the session.
func (s *ReceiptService) CreateClient(ctx context.Context, name string) (core.Client, error) {
	created, err := s.backend.CreateClient(ctx, name)
	if err != nil {
		return core.Client{}, err
	}
	s.reload(ctx)
	return created, nil
}

// CreateTrip adds a trip and refreshes the session.
func (s *ReceiptService) CreateTrip(ctx context.Context, name string) (core.Trip, error) {
	created, err := s.backend.CreateTrip(ctx, name)
	if err != nil {
		return core.Trip{}, err
	}
	s.reload(ctx)
	return created, nil
}

// DeleteClient removes a client. Receipts keep the dangling id and render
// without an association.
func (s *ReceiptService) DeleteClient(ctx context.Context, id string) error {
	if err := s.backend.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.reload(ctx)
	return nil
}

// DeleteTrip removes a trip.
func (s *ReceiptService) DeleteTrip(ctx context.Context, id string) error {
	if err := s.backend.DeleteTrip(ctx, id); err != nil {
		return err
	}
	s.reload(ctx)
	return nil
}

// RescanReceipt re-enqueues extraction for a receipt that has a photo.
func (s *ReceiptService) RescanReceipt(ctx context.Context, id string) error {
	r, err := s.backend.GetReceipt(ctx, id)
	if err != nil {
		return err
	}
	if r.PhotoURL == "" {
		return fmt.Errorf("receipt %s: %w", id, ErrNoPhoto)
	}
	return s.publishScanJob(ctx, r.ID, r.PhotoURL)
}

// needsScan reports whether extraction still has fields to fill.
func needsScan(r core.Receipt) bool {
	return r.Vendor == "" || r.Amount == 0 || r.Date == "" || r.PaymentMethod == ""
}

func (s *ReceiptService) publishScanJob(ctx context.Context, receiptID, photoURL string) error {
	if s.queue == nil {
		slog.WarnContext(ctx, "Scan queue not available, skipping scan job")
		return nil
	}
	return s.queue.PublishScanJob(ctx, receiptID, photoURL)
}

func (s *ReceiptService) reload(ctx context.Context) {
	if s.session == nil {
		return
	}
	if err := s.session.Reload(ctx); err != nil {
		slog.WarnContext(ctx, "Session reload failed after write", "error", err)
	}
}

// Close releases the scan queue connection.
func (s *ReceiptService) Close() error {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			return fmt.Errorf("close scan queue: %w", err)
		}
	}
	return nil
}
