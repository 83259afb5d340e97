// Package session holds the working dataset in memory. All filtering and
// aggregation runs against this snapshot, so reads stay fast and work
// offline once a reload has succeeded.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"snapreceipt/internal/backend"
	"snapreceipt/internal/core"
)

// Mirror receives a copy of every successful reload for offline reads.
type Mirror interface {
	ReplaceSnapshot(ctx context.Context, receipts []core.Receipt, clients []core.Client, trips []core.Trip) error
}

type Session struct {
	backend backend.Backend
	mirror  Mirror // optional

	mu       sync.RWMutex
	receipts []core.Receipt
	clients  []core.Client
	trips    []core.Trip
	loadedAt time.Time
}

func New(b backend.Backend, mirror Mirror) *Session {
	return &Session{backend: b, mirror: mirror}
}

// Reload fetches receipts, clients and trips concurrently and swaps the
// snapshot in one step. On any fetch error the previous snapshot stays in
// place untouched.
func (s *Session) Reload(ctx context.Context) error {
	var (
		receipts []core.Receipt
		clients  []core.Client
		trips    []core.Trip
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		receipts, err = s.backend.ListReceipts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		clients, err = s.backend.ListClients(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		trips, err = s.backend.ListTrips(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.receipts = receipts
	s.clients = clients
	s.trips = trips
	s.loadedAt = time.Now()
	s.mu.Unlock()

	if s.mirror != nil {
		// Mirroring is best effort: the in-memory snapshot is already live.
		if err := s.mirror.ReplaceSnapshot(ctx, receipts, clients, trips); err != nil {
			slog.WarnContext(ctx, "Snapshot mirror failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "Session reloaded",
		"receipts", len(receipts),
		"clients", len(clients),
		"trips", len(trips))
	return nil
}

// Receipts returns a copy of the current snapshot.
func (s *Session) Receipts() []core.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Receipt(nil), s.receipts...)
}

func (s *Session) Clients() []core.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Client(nil), s.clients...)
}

func (s *Session) Trips() []core.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Trip(nil), s.trips...)
}

// LoadedAt reports when the snapshot was last swapped. Zero before the
// first successful reload.
func (s *Session) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
