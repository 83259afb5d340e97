package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"snapreceipt/internal/amqp"
	"snapreceipt/internal/backend/memory"
	"snapreceipt/internal/core"
	"snapreceipt/internal/extract"
)

// fakeExtractor returns canned fields or a fixed error.
type fakeExtractor struct {
	fields *extract.ReceiptFields
	err    error
	calls  int
}

func (f *fakeExtractor) ExtractReceipt(context.Context, []byte, string) (*extract.ReceiptFields, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

func (f *fakeExtractor) Close() error { return nil }

func photoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildPatch(t *testing.T) {
	fields := &extract.ReceiptFields{
		Vendor: "Rewe", Amount: 23.5, Date: "2024-03-01", PaymentMethod: "card",
	}

	tests := []struct {
		name    string
		receipt core.Receipt
		want    map[string]any
	}{
		{
			name:    "all fields empty",
			receipt: core.Receipt{},
			want: map[string]any{
				"vendor": "Rewe", "amount": 23.5,
				"receipt_date": "2024-03-01", "payment_method": "card",
			},
		},
		{
			name: "user input wins",
			receipt: core.Receipt{
				Vendor: "My Vendor", Amount: 10, Date: "2024-01-01", PaymentMethod: "cash",
			},
			want: map[string]any{},
		},
		{
			name:    "partial fill",
			receipt: core.Receipt{Vendor: "My Vendor", Amount: 10},
			want:    map[string]any{"receipt_date": "2024-03-01", "payment_method": "card"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildPatch(tt.receipt, fields)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildPatch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPatch_ZeroExtractedValuesIgnored(t *testing.T) {
	got := buildPatch(core.Receipt{}, &extract.ReceiptFields{})
	if len(got) != 0 {
		t.Errorf("buildPatch with empty fields = %v, want empty", got)
	}
}

func TestHandleScanJob(t *testing.T) {
	srv := photoServer(t)
	store := memory.New(nil, nil)
	ctx := context.Background()

	created, err := store.CreateReceipt(ctx, core.Receipt{Amount: 0, Type: core.Personal, Vendor: "placeholder"})
	if err != nil {
		t.Fatalf("CreateReceipt error = %v", err)
	}
	// Simulate a photo-only capture: clear the placeholder vendor.
	if _, err := store.UpdateReceipt(ctx, created.ID, map[string]any{"vendor": ""}); err != nil {
		t.Fatalf("UpdateReceipt error = %v", err)
	}

	ex := &fakeExtractor{fields: &extract.ReceiptFields{Vendor: "Rewe", Amount: 23.5, Date: "2024-03-01"}}
	w := NewScanWorker(store, ex, time.Second)

	msg := amqp.NewScanJobMessage(created.ID, srv.URL+"/photo.jpg")
	if err := w.HandleScanJob(ctx, msg); err != nil {
		t.Fatalf("HandleScanJob error = %v", err)
	}

	got, err := store.GetReceipt(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetReceipt error = %v", err)
	}
	if got.Vendor != "Rewe" || got.Amount != 23.5 || got.Date != "2024-03-01" {
		t.Errorf("patched receipt = %+v", got)
	}
}

func TestHandleScanJob_ReceiptGoneIsDropped(t *testing.T) {
	srv := photoServer(t)
	store := memory.New(nil, nil)
	ex := &fakeExtractor{fields: &extract.ReceiptFields{Vendor: "Rewe"}}
	w := NewScanWorker(store, ex, time.Second)

	msg := amqp.NewScanJobMessage("gone", srv.URL+"/photo.jpg")
	if err := w.HandleScanJob(context.Background(), msg); err != nil {
		t.Errorf("HandleScanJob error = %v, want nil for a deleted receipt", err)
	}
	if ex.calls != 0 {
		t.Error("extractor ran for a deleted receipt")
	}
}

func TestHandleScanJob_UnreadablePhotoIsDropped(t *testing.T) {
	srv := photoServer(t)
	store := memory.New(nil, nil)
	created, err := store.CreateReceipt(context.Background(), core.Receipt{Vendor: "v", Amount: 1, Type: core.Personal})
	if err != nil {
		t.Fatalf("CreateReceipt error = %v", err)
	}

	ex := &fakeExtractor{err: extract.ErrUnreadable}
	w := NewScanWorker(store, ex, time.Second)

	msg := amqp.NewScanJobMessage(created.ID, srv.URL+"/photo.jpg")
	if err := w.HandleScanJob(context.Background(), msg); err != nil {
		t.Errorf("HandleScanJob error = %v, want nil for an unreadable photo", err)
	}
}

func TestHandleScanJob_TransientExtractionErrorRequeues(t *testing.T) {
	srv := photoServer(t)
	store := memory.New(nil, nil)
	created, err := store.CreateReceipt(context.Background(), core.Receipt{Vendor: "v", Amount: 1, Type: core.Personal})
	if err != nil {
		t.Fatalf("CreateReceipt error = %v", err)
	}

	ex := &fakeExtractor{err: errors.New("deadline exceeded")}
	w := NewScanWorker(store, ex, time.Second)

	msg := amqp.NewScanJobMessage(created.ID, srv.URL+"/photo.jpg")
	if err := w.HandleScanJob(context.Background(), msg); err == nil {
		t.Error("HandleScanJob swallowed a transient extraction error")
	}
}

func TestHandleScanJob_PhotoFetchFailureRequeues(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	store := memory.New(nil, nil)
	created, err := store.CreateReceipt(context.Background(), core.Receipt{Vendor: "v", Amount: 1, Type: core.Personal})
	if err != nil {
		t.Fatalf("CreateReceipt error = %v", err)
	}

	ex := &fakeExtractor{fields: &extract.ReceiptFields{}}
	w := NewScanWorker(store, ex, time.Second)

	msg := amqp.NewScanJobMessage(created.ID, srv.URL+"/photo.jpg")
	if err := w.HandleScanJob(context.Background(), msg); err == nil {
		t.Error("HandleScanJob swallowed a photo fetch failure")
	}
	if ex.calls != 0 {
		t.Error("extractor ran without a photo")
	}
}
