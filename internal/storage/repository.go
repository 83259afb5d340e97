// Package storage persists receipts in SQLite. It backs the standalone
// sqlite backend and mirrors the remote dataset for offline reads.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"snapreceipt/internal/core"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db        *sql.DB
	photosDir string
	now       func() time.Time
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateSchema(dbPath, migrationsFS); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	photosDir := filepath.Join(filepath.Dir(dbPath), "photos")
	if err := os.MkdirAll(photosDir, 0755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create photos directory: %w", err)
	}

	return &Repository{
		db:        db,
		photosDir: photosDir,
		now:       time.Now,
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const listReceiptsQuery = `
SELECT r.id, r.vendor, r.amount, r.receipt_date, r.type, r.category,
       r.payment_method, r.client_id, r.trip_id, r.notes, r.photo_url,
       r.created_at, r.updated_at, c.name, t.name
FROM receipts r
LEFT JOIN clients c ON c.id = r.client_id
LEFT JOIN trips t ON t.id = r.trip_id
ORDER BY CASE WHEN r.receipt_date = '' THEN 1 ELSE 0 END,
         r.receipt_date DESC, r.created_at DESC`

func (r *Repository) ListReceipts(ctx context.Context) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, listReceiptsQuery)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	out := []core.Receipt{}
	for rows.Next() {
		var rec core.Receipt
		var clientName, tripName sql.NullString
		err := rows.Scan(&rec.ID, &rec.Vendor, &rec.Amount, &rec.Date, &rec.Type,
			&rec.Category, &rec.PaymentMethod, &rec.ClientID, &rec.TripID,
			&rec.Notes, &rec.PhotoURL, &rec.CreatedAt, &rec.UpdatedAt,
			&clientName, &tripName)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		if clientName.Valid {
			rec.Client = &core.NamedRef{Name: clientName.String}
		}
		if tripName.Valid {
			rec.Trip = &core.NamedRef{Name: tripName.String}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateReceipt(ctx context.Context, rec core.Receipt) (core.Receipt, error) {
	if err := rec.Validate(); err != nil {
		return core.Receipt{}, err
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = r.now()
	rec.UpdatedAt = rec.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receipts (id, vendor, amount, receipt_date, type, category,
			payment_method, client_id, trip_id, notes, photo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Vendor, float64(rec.Amount), rec.Date, string(rec.Type),
		rec.Category, rec.PaymentMethod, rec.ClientID, rec.TripID,
		rec.Notes, rec.PhotoURL, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved to SQLite",
		"id", rec.ID,
		"vendor", rec.Vendor,
		"amount", rec.Amount.Float64())

	return r.GetReceipt(ctx, rec.ID)
}

// receiptColumns whitelists the fields a partial update may touch.
var receiptColumns = map[string]struct{}{
	"vendor": {}, "amount": {}, "receipt_date": {}, "type": {},
	"category": {}, "payment_method": {}, "client_id": {}, "trip_id": {},
	"notes": {}, "photo_url": {},
}

func (r *Repository) UpdateReceipt(ctx context.Context, id string, fields map[string]any) (core.Receipt, error) {
	cols := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := receiptColumns[k]; !ok {
			return core.Receipt{}, fmt.Errorf("update receipt: unknown field %q", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, k := range cols {
		set = append(set, k+" = ?")
		args = append(args, fields[k])
	}
	set = append(set, "updated_at = ?")
	args = append(args, r.now(), id)

	res, err := r.db.ExecContext(ctx,
		"UPDATE receipts SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("update receipt %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Receipt{}, fmt.Errorf("update receipt %s: %w", id, core.ErrNotFound)
	}
	return r.GetReceipt(ctx, id)
}

func (r *Repository) DeleteReceipt(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM receipts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete receipt %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete receipt %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM clients ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	out := []core.Client{}
	for rows.Next() {
		var c core.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) CreateClient(ctx context.Context, name string) (core.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Client{}, core.ErrEmptyName
	}

	c := core.Client{ID: uuid.NewString(), Name: name, CreatedAt: r.now()}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO clients (id, name, created_at) VALUES (?, ?, ?)",
		c.ID, c.Name, c.CreatedAt)
	if err != nil {
		return core.Client{}, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateTrip(ctx context.Context, name string) (core.Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Trip{}, core.ErrEmptyName
	}

	t := core.Trip{ID: uuid.NewString(), Name: name, CreatedAt: r.now()}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO trips (id, name, created_at) VALUES (?, ?, ?)",
		t.ID, t.Name, t.CreatedAt)
	if err != nil {
		return core.Trip{}, fmt.Errorf("insert trip: %w", err)
	}
	return t, nil
}

// DeleteClient removes the client row only. Receipt rows keep the dangling
// id and the list join renders them without a client name.
func (r *Repository) DeleteClient(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteTrip(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM trips WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListTrips(ctx context.Context) ([]core.Trip, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM trips ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	out := []core.Trip{}
	for rows.Next() {
		var t core.Trip
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UploadPhoto writes the image next to the database and returns a file URL.
func (r *Repository) UploadPhoto(_ context.Context, owner string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("%s-%d%s", owner, r.now().UnixMilli(), core.ExtForContentType(contentType))
	path := filepath.Join(r.photosDir, key)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	return "file://" + path, nil
}

// ReplaceSnapshot swaps the entire local dataset for the given one in a
// single transaction. Used to mirror the remote backend for offline reads.
func (r *Repository) ReplaceSnapshot(ctx context.Context, receipts []core.Receipt, clients []core.Client, trips []core.Trip) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"receipts", "clients", "trips"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, c := range clients {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO clients (id, name, created_at) VALUES (?, ?, ?)",
			c.ID, c.Name, c.CreatedAt); err != nil {
			return fmt.Errorf("mirror client %s: %w", c.ID, err)
		}
	}
	for _, t := range trips {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO trips (id, name, created_at) VALUES (?, ?, ?)",
			t.ID, t.Name, t.CreatedAt); err != nil {
			return fmt.Errorf("mirror trip %s: %w", t.ID, err)
		}
	}
	for _, rec := range receipts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO receipts (id, vendor, amount, receipt_date, type, category,
				payment_method, client_id, trip_id, notes, photo_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Vendor, float64(rec.Amount), rec.Date, string(rec.Type),
			rec.Category, rec.PaymentMethod, rec.ClientID, rec.TripID,
			rec.Notes, rec.PhotoURL, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("mirror receipt %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

func (r *Repository) GetReceipt(ctx context.Context, id string) (core.Receipt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.vendor, r.amount, r.receipt_date, r.type, r.category,
		       r.payment_method, r.client_id, r.trip_id, r.notes, r.photo_url,
		       r.created_at, r.updated_at, c.name, t.name
		FROM receipts r
		LEFT JOIN clients c ON c.id = r.client_id
		LEFT JOIN trips t ON t.id = r.trip_id
		WHERE r.id = ?`, id)

	var rec core.Receipt
	var clientName, tripName sql.NullString
	err := row.Scan(&rec.ID, &rec.Vendor, &rec.Amount, &rec.Date, &rec.Type,
		&rec.Category, &rec.PaymentMethod, &rec.ClientID, &rec.TripID,
		&rec.Notes, &rec.PhotoURL, &rec.CreatedAt, &rec.UpdatedAt,
		&clientName, &tripName)
	if err == sql.ErrNoRows {
		return core.Receipt{}, fmt.Errorf("receipt %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt %s: %w", id, err)
	}
	if clientName.Valid {
		rec.Client = &core.NamedRef{Name: clientName.String}
	}
	if tripName.Valid {
		rec.Trip = &core.NamedRef{Name: tripName.String}
	}
	return rec, nil
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateSchema brings the database at dbPath up to the schema in source.
// golang-migrate takes ownership of the driver it is handed and closes it,
// so migrations run on their own connection rather than the caller's pool.
func migrateSchema(dbPath string, source fs.FS) error {
	src, err := iofs.New(source, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("init sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		db.Close()
		return fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
