package memory

import (
	"context"
	"errors"
	"testing"

	"snapreceipt/internal/core"
)

func seededStore() *Store {
	return New(
		[]core.Client{{ID: "c1", Name: "Acme"}},
		[]core.Trip{{ID: "t1", Name: "Berlin"}},
	)
}

func TestCreateReceipt(t *testing.T) {
	s := seededStore()

	created, err := s.CreateReceipt(context.Background(), core.Receipt{
		Vendor:   "Cafe",
		Amount:   12.5,
		Date:     "2024-03-01",
		Type:     core.Business,
		ClientID: "c1",
	})
	if err != nil {
		t.Fatalf("CreateReceipt error = %v", err)
	}
	if created.ID == "" {
		t.Error("CreateReceipt did not assign an id")
	}
	if created.CreatedAt.IsZero() {
		t.Error("CreateReceipt did not set created_at")
	}
	if created.ClientName() != "Acme" {
		t.Errorf("ClientName = %q, want Acme", created.ClientName())
	}
}

func TestCreateReceipt_Invalid(t *testing.T) {
	s := seededStore()

	_, err := s.CreateReceipt(context.Background(), core.Receipt{
		Vendor: "Cafe",
		Amount: 1,
		Type:   "corporate",
	})
	if !errors.Is(err, core.ErrInvalidType) {
		t.Errorf("CreateReceipt error = %v, want ErrInvalidType", err)
	}
}

func TestListReceipts_NewestFirstUndatedLast(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	for _, date := range []string{"2024-01-10", "", "2024-03-05"} {
		if _, err := s.CreateReceipt(ctx, core.Receipt{Vendor: "v", Amount: 1, Date: date, Type: core.Personal}); err != nil {
			t.Fatalf("CreateReceipt error = %v", err)
		}
	}

	got, err := s.ListReceipts(ctx)
	if err != nil {
		t.Fatalf("ListReceipts error = %v", err)
	}
	dates := []string{got[0].Date, got[1].Date, got[2].Date}
	want := []string{"2024-03-05", "2024-01-10", ""}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("order = %v, want %v", dates, want)
		}
	}
}

func TestUpdateReceipt(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	created, err := s.CreateReceipt(ctx, core.Receipt{Vendor: "v", Amount: 1, Type: core.Personal})
	if err != nil {
		t.Fatalf("CreateReceipt error = %v", err)
	}

	updated, err := s.UpdateReceipt(ctx, created.ID, map[string]any{
		"vendor":  "Hotel Adler",
		"amount":  float64(120),
		"trip_id": "t1",
	})
	if err != nil {
		t.Fatalf("UpdateReceipt error = %v", err)
	}
	if updated.Vendor != "Hotel Adler" || updated.Amount != 120 {
		t.Errorf("UpdateReceipt = %+v", updated)
	}
	if updated.TripName() != "Berlin" {
		t.Errorf("TripName = %q, want Berlin", updated.TripName())
	}

	_, err = s.UpdateReceipt(ctx, "missing", map[string]any{"vendor": "x"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateReceipt(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteReceipt(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	created, err := s.CreateReceipt(ctx, core.Receipt{Vendor: "v", Amount: 1, Type: core.Personal})
	if err != nil {
		t.Fatalf("CreateReceipt error = %v", err)
	}
	if err := s.DeleteReceipt(ctx, created.ID); err != nil {
		t.Fatalf("DeleteReceipt error = %v", err)
	}
	got, _ := s.ListReceipts(ctx)
	if len(got) != 0 {
		t.Errorf("ListReceipts after delete = %d rows", len(got))
	}
	if err := s.DeleteReceipt(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteReceipt(gone) error = %v, want ErrNotFound", err)
	}
}

func TestTaxonomy(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	c, err := s.CreateClient(ctx, "  Globex  ")
	if err != nil {
		t.Fatalf("CreateClient error = %v", err)
	}
	if c.Name != "Globex" || c.ID == "" {
		t.Errorf("created client = %+v", c)
	}

	if _, err := s.CreateTrip(ctx, ""); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("CreateTrip(empty) error = %v, want ErrEmptyName", err)
	}

	if err := s.DeleteClient(ctx, c.ID); err != nil {
		t.Fatalf("DeleteClient error = %v", err)
	}
	if err := s.DeleteClient(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteClient(gone) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteClient_ReceiptsKeepDanglingID(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	created, err := s.CreateReceipt(ctx, core.Receipt{Vendor: "v", Amount: 1, Type: core.Business, ClientID: "c1"})
	if err != nil {
		t.Fatalf("CreateReceipt error = %v", err)
	}
	if created.Client == nil {
		t.Fatal("created receipt has no resolved client name")
	}

	if err := s.DeleteClient(ctx, "c1"); err != nil {
		t.Fatalf("DeleteClient error = %v", err)
	}

	got, err := s.GetReceipt(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetReceipt error = %v", err)
	}
	if got.ClientID != "c1" {
		t.Errorf("ClientID = %q, want the dangling id kept", got.ClientID)
	}
}

func TestUploadPhoto(t *testing.T) {
	s := seededStore()

	u, err := s.UploadPhoto(context.Background(), "user-1", []byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatalf("UploadPhoto error = %v", err)
	}
	if u == "" {
		t.Error("UploadPhoto returned an empty URL")
	}
}
