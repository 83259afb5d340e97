package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"snapreceipt/internal/core"
)

// Store is an in-process backend used by tests and local development.
type Store struct {
	mu       sync.Mutex
	receipts []core.Receipt
	clients  []core.Client
	trips    []core.Trip
	photos   map[string][]byte

	now func() time.Time
}

func New(clients []core.Client, trips []core.Trip) *Store {
	return &Store{
		clients: clients,
		trips:   trips,
		photos:  map[string][]byte{},
		now:     time.Now,
	}
}

// NewFromFiles seeds clients and trips from newline-delimited name files
// under base, one entity per line.
func NewFromFiles(base string) *Store {
	clients := namedFromLines(readLines(filepath.Join(base, "seed_clients.txt")))
	trips := namedFromLines(readLines(filepath.Join(base, "seed_trips.txt")))

	s := New(nil, nil)
	for _, n := range clients {
		s.clients = append(s.clients, core.Client{ID: uuid.NewString(), Name: n})
	}
	for _, n := range trips {
		s.trips = append(s.trips, core.Trip{ID: uuid.NewString(), Name: n})
	}
	return s
}

func (s *Store) ListReceipts(_ context.Context) ([]core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]core.Receipt(nil), s.receipts...)
	// Newest first: undated receipts sink to the bottom.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			if out[i].Date == "" {
				return false
			}
			if out[j].Date == "" {
				return true
			}
			return out[i].Date > out[j].Date
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetReceipt(_ context.Context, id string) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.receipts {
		if r.ID == id {
			return r, nil
		}
	}
	return core.Receipt{}, fmt.Errorf("receipt %s: %w", id, core.ErrNotFound)
}

func (s *Store) CreateReceipt(_ context.Context, r core.Receipt) (core.Receipt, error) {
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.NewString()
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	s.attachRefs(&r)
	s.receipts = append(s.receipts, r)
	return r, nil
}

func (s *Store) UpdateReceipt(_ context.Context, id string, fields map[string]any) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.receipts {
		if s.receipts[i].ID != id {
			continue
		}
		r := &s.receipts[i]
		for k, v := range fields {
			applyField(r, k, v)
		}
		r.UpdatedAt = s.now()
		s.attachRefs(r)
		return *r, nil
	}
	return core.Receipt{}, fmt.Errorf("receipt %s: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteReceipt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.receipts {
		if s.receipts[i].ID == id {
			s.receipts = append(s.receipts[:i], s.receipts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("receipt %s: %w", id, core.ErrNotFound)
}

func (s *Store) ListClients(_ context.Context) ([]core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Client(nil), s.clients...), nil
}

func (s *Store) ListTrips(_ context.Context) ([]core.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Trip(nil), s.trips...), nil
}

func (s *Store) CreateClient(_ context.Context, name string) (core.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Client{}, core.ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := core.Client{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	s.clients = append(s.clients, c)
	return c, nil
}

func (s *Store) CreateTrip(_ context.Context, name string) (core.Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Trip{}, core.ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := core.Trip{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	s.trips = append(s.trips, t)
	return t, nil
}

// DeleteClient removes a client. Receipts that referenced it keep the id
// and render without an association.
func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.clients {
		if s.clients[i].ID == id {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("client %s: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteTrip(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.trips {
		if s.trips[i].ID == id {
			s.trips = append(s.trips[:i], s.trips[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("trip %s: %w", id, core.ErrNotFound)
}

func (s *Store) UploadPhoto(_ context.Context, owner string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s/%d%s", owner, s.now().UnixMilli(), core.ExtForContentType(contentType))
	s.photos[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

// attachRefs resolves the denormalized client and trip names the way the
// remote API would with an embedded select.
func (s *Store) attachRefs(r *core.Receipt) {
	r.Client = nil
	r.Trip = nil
	for _, c := range s.clients {
		if c.ID == r.ClientID {
			r.Client = &core.NamedRef{Name: c.Name}
			break
		}
	}
	for _, t := range s.trips {
		if t.ID == r.TripID {
			r.Trip = &core.NamedRef{Name: t.Name}
			break
		}
	}
}

func applyField(r *core.Receipt, key string, v any) {
	str := func() string { s, _ := v.(string); return s }
	switch key {
	case "vendor":
		r.Vendor = str()
	case "amount":
		switch n := v.(type) {
		case float64:
			r.Amount = core.Amount(n)
		case core.Amount:
			r.Amount = n
		}
	case "receipt_date":
		r.Date = str()
	case "type":
		r.Type = core.ReceiptType(str())
	case "category":
		r.Category = str()
	case "payment_method":
		r.PaymentMethod = str()
	case "client_id":
		r.ClientID = str()
	case "trip_id":
		r.TripID = str()
	case "notes":
		r.Notes = str()
	case "photo_url":
		r.PhotoURL = str()
	}
}

func namedFromLines(lines []string) []string {
	return lines
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
