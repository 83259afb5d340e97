package services

import (
	"context"
	"errors"
	"testing"

	"snapreceipt/internal/backend/memory"
	"snapreceipt/internal/core"
	"snapreceipt/internal/session"
)

type fakeQueue struct {
	published []string
	err       error
	closed    bool
}

func (q *fakeQueue) PublishScanJob(_ context.Context, receiptID, _ string) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, receiptID)
	return nil
}

func (q *fakeQueue) Close() error {
	q.closed = true
	return nil
}

func TestCaptureReceipt_WithPhotoEnqueuesScan(t *testing.T) {
	store := memory.New(nil, nil)
	sess := session.New(store, nil)
	queue := &fakeQueue{}
	svc := NewReceiptService(store, sess, queue)

	created, err := svc.CaptureReceipt(context.Background(),
		core.Receipt{Vendor: "Cafe", Type: core.Personal},
		[]byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatalf("CaptureReceipt error = %v", err)
	}
	if created.PhotoURL == "" {
		t.Error("photo URL not set on created receipt")
	}
	if len(queue.published) != 1 || queue.published[0] != created.ID {
		t.Errorf("published = %v, want [%s]", queue.published, created.ID)
	}
	// The session picked up the new receipt.
	if got := sess.Receipts(); len(got) != 1 {
		t.Errorf("session receipts = %d, want 1", len(got))
	}
}

func TestCaptureReceipt_CompleteReceiptSkipsScan(t *testing.T) {
	store := memory.New(nil, nil)
	queue := &fakeQueue{}
	svc := NewReceiptService(store, nil, queue)

	_, err := svc.CaptureReceipt(context.Background(),
		core.Receipt{
			Vendor: "Cafe", Amount: 9.5, Date: "2024-03-01",
			Type: core.Personal, PaymentMethod: "card",
		},
		[]byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatalf("CaptureReceipt error = %v", err)
	}
	if len(queue.published) != 0 {
		t.Errorf("scan enqueued for a fully filled receipt: %v", queue.published)
	}
}

func TestCaptureReceipt_NoPhotoSkipsScan(t *testing.T) {
	store := memory.New(nil, nil)
	queue := &fakeQueue{}
	svc := NewReceiptService(store, nil, queue)

	created, err := svc.CaptureReceipt(context.Background(),
		core.Receipt{Vendor: "Cafe", Amount: 1, Type: core.Personal}, nil, "")
	if err != nil {
		t.Fatalf("CaptureReceipt error = %v", err)
	}
	if created.PhotoURL != "" {
		t.Errorf("photo URL = %q, want empty", created.PhotoURL)
	}
	if len(queue.published) != 0 {
		t.Error("scan enqueued without a photo")
	}
}

func TestCaptureReceipt_QueueFailureIsNonFatal(t *testing.T) {
	store := memory.New(nil, nil)
	queue := &fakeQueue{err: errors.New("broker down")}
	svc := NewReceiptService(store, nil, queue)

	created, err := svc.CaptureReceipt(context.Background(),
		core.Receipt{Type: core.Personal, Vendor: "Cafe"},
		[]byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatalf("CaptureReceipt error = %v, want saved receipt despite queue failure", err)
	}
	if created.ID == "" {
		t.Error("receipt not persisted")
	}
}

func TestCaptureReceipt_NilQueue(t *testing.T) {
	store := memory.New(nil, nil)
	svc := NewReceiptService(store, nil, nil)

	if _, err := svc.CaptureReceipt(context.Background(),
		core.Receipt{Type: core.Personal, Vendor: "Cafe"},
		[]byte{0xFF, 0xD8}, "image/jpeg"); err != nil {
		t.Fatalf("CaptureReceipt error = %v", err)
	}
}

func TestUpdateAndDeleteRefreshSession(t *testing.T) {
	store := memory.New(nil, nil)
	sess := session.New(store, nil)
	svc := NewReceiptService(store, sess, nil)
	ctx := context.Background()

	created, err := svc.CaptureReceipt(ctx, core.Receipt{Vendor: "Cafe", Amount: 1, Type: core.Personal}, nil, "")
	if err != nil {
		t.Fatalf("CaptureReceipt error = %v", err)
	}

	if _, err := svc.UpdateReceipt(ctx, created.ID, map[string]any{"vendor": "Bar"}); err != nil {
		t.Fatalf("UpdateReceipt error = %v", err)
	}
	if got := sess.Receipts(); len(got) != 1 || got[0].Vendor != "Bar" {
		t.Errorf("session after update = %+v", got)
	}

	if err := svc.DeleteReceipt(ctx, created.ID); err != nil {
		t.Fatalf("DeleteReceipt error = %v", err)
	}
	if got := sess.Receipts(); len(got) != 0 {
		t.Errorf("session after delete = %+v", got)
	}
}

func TestRescanReceipt(t *testing.T) {
	store := memory.New(nil, nil)
	queue := &fakeQueue{}
	svc := NewReceiptService(store, nil, queue)
	ctx := context.Background()

	withPhoto, err := svc.CaptureReceipt(ctx, core.Receipt{Type: core.Personal}, []byte{1}, "image/jpeg")
	if err != nil {
		t.Fatalf("CaptureReceipt error = %v", err)
	}
	queue.published = nil

	if err := svc.RescanReceipt(ctx, withPhoto.ID); err != nil {
		t.Fatalf("RescanReceipt error = %v", err)
	}
	if len(queue.published) != 1 {
		t.Errorf("published = %v", queue.published)
	}

	noPhoto, err := svc.CaptureReceipt(ctx, core.Receipt{Vendor: "v", Amount: 1, Type: core.Personal}, nil, "")
	if err != nil {
		t.Fatalf("CaptureReceipt error = %v", err)
	}
	if err := svc.RescanReceipt(ctx, noPhoto.ID); err == nil {
		t.Error("RescanReceipt succeeded for a receipt without a photo")
	}
}

func TestClose(t *testing.T) {
	queue := &fakeQueue{}
	svc := NewReceiptService(memory.New(nil, nil), nil, queue)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if !queue.closed {
		t.Error("queue not closed")
	}
}

func TestTaxonomyWritesRefreshSession(t *testing.T) {
	store := memory.New(nil, nil)
	sess := session.New(store, nil)
	svc := NewReceiptService(store, sess, nil)
	ctx := context.Background()

	c, err := svc.CreateClient(ctx, "Globex")
	if err != nil {
		t.Fatalf("CreateClient error = %v", err)
	}
	if got := sess.Clients(); len(got) != 1 || got[0].ID != c.ID {
		t.Errorf("session clients = %+v, want the new client", got)
	}

	tr, err := svc.CreateTrip(ctx, "Paris")
	if err != nil {
		t.Fatalf("CreateTrip error = %v", err)
	}

	if err := svc.DeleteTrip(ctx, tr.ID); err != nil {
		t.Fatalf("DeleteTrip error = %v", err)
	}
	if got := sess.Trips(); len(got) != 0 {
		t.Errorf("session trips = %+v, want empty after delete", got)
	}

	if err := svc.DeleteClient(ctx, c.ID); err != nil {
		t.Fatalf("DeleteClient error = %v", err)
	}
}
