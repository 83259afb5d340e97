// Package worker processes queued scan jobs: download the receipt photo,
// extract its fields, and patch the receipt without clobbering anything the
// user already typed in.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"snapreceipt/internal/amqp"
	"snapreceipt/internal/backend"
	"snapreceipt/internal/core"
	"snapreceipt/internal/extract"
)

const maxPhotoBytes = 20 << 20

type ScanWorker struct {
	store          backend.ReceiptStore
	extractor      extract.Extractor
	client         *http.Client
	extractTimeout time.Duration
}

func NewScanWorker(store backend.ReceiptStore, extractor extract.Extractor, extractTimeout time.Duration) *ScanWorker {
	if extractTimeout <= 0 {
		extractTimeout = 30 * time.Second
	}
	return &ScanWorker{
		store:          store,
		extractor:      extractor,
		client:         &http.Client{Timeout: 30 * time.Second},
		extractTimeout: extractTimeout,
	}
}

// HandleScanJob processes a single scan job. A returned error requeues the
// job; permanent failures are logged and swallowed so the queue drains.
func (w *ScanWorker) HandleScanJob(ctx context.Context, msg *amqp.ScanJobMessage) error {
	slog.InfoContext(ctx, "Processing scan job",
		"receipt_id", msg.ReceiptID,
		"photo_url", msg.PhotoURL)

	receipt, err := w.store.GetReceipt(ctx, msg.ReceiptID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Receipt deleted while the job was queued. Nothing to patch.
			slog.WarnContext(ctx, "Receipt gone, dropping scan job", "receipt_id", msg.ReceiptID)
			return nil
		}
		return fmt.Errorf("get receipt: %w", err)
	}

	data, contentType, err := w.downloadPhoto(ctx, msg.PhotoURL)
	if err != nil {
		return fmt.Errorf("download photo: %w", err)
	}

	ectx, cancel := context.WithTimeout(ctx, w.extractTimeout)
	defer cancel()
	fields, err := w.extractor.ExtractReceipt(ectx, data, contentType)
	if err != nil {
		if errors.Is(err, extract.ErrUnreadable) {
			slog.WarnContext(ctx, "Photo unreadable, dropping scan job",
				"receipt_id", msg.ReceiptID,
				"error", err)
			return nil
		}
		return fmt.Errorf("extract receipt: %w", err)
	}

	patch := buildPatch(receipt, fields)
	if len(patch) == 0 {
		slog.InfoContext(ctx, "No fields to fill", "receipt_id", msg.ReceiptID)
		return nil
	}

	if _, err := w.store.UpdateReceipt(ctx, msg.ReceiptID, patch); err != nil {
		return fmt.Errorf("patch receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt fields filled from scan",
		"receipt_id", msg.ReceiptID,
		"fields", len(patch))
	return nil
}

// buildPatch keeps only extracted values for fields the receipt does not
// already have. User input always wins over the scan.
func buildPatch(r core.Receipt, fields *extract.ReceiptFields) map[string]any {
	patch := map[string]any{}
	if r.Vendor == "" && fields.Vendor != "" {
		patch["vendor"] = fields.Vendor
	}
	if r.Amount == 0 && fields.Amount > 0 {
		patch["amount"] = fields.Amount
	}
	if r.Date == "" && fields.Date != "" {
		patch["receipt_date"] = fields.Date
	}
	if r.PaymentMethod == "" && fields.PaymentMethod != "" {
		patch["payment_method"] = fields.PaymentMethod
	}
	return patch
}

func (w *ScanWorker) downloadPhoto(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("photo fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}
