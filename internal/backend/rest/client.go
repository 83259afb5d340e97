// Package rest implements the backend interface against a PostgREST-style
// API with a companion object storage endpoint.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"snapreceipt/internal/core"
)

// receiptSelect embeds the linked client and trip names so list responses
// carry display names without extra round trips.
const receiptSelect = "*,clients_receipt(name),trips(name)"

// receiptOrder puts the newest receipts first; undated rows sort last.
const receiptOrder = "receipt_date.desc.nullslast,created_at.desc"

type Client struct {
	baseURL *url.URL
	apiKey  string
	bucket  string
	http    *http.Client
	now     func() time.Time
}

func NewClient(baseURL, apiKey, bucket string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend URL %q must be http or https", baseURL)
	}
	return &Client{
		baseURL: u,
		apiKey:  apiKey,
		bucket:  bucket,
		http:    &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
	}, nil
}

func (c *Client) ListReceipts(ctx context.Context) ([]core.Receipt, error) {
	var out []core.Receipt
	q := url.Values{"select": {receiptSelect}, "order": {receiptOrder}}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/receipts", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return out, nil
}

func (c *Client) GetReceipt(ctx context.Context, id string) (core.Receipt, error) {
	var rows []core.Receipt
	q := url.Values{"id": {"eq." + id}, "select": {receiptSelect}}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/receipts", q, nil, &rows); err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt %s: %w", id, err)
	}
	if len(rows) == 0 {
		return core.Receipt{}, fmt.Errorf("get receipt %s: %w", id, core.ErrNotFound)
	}
	return rows[0], nil
}

func (c *Client) CreateReceipt(ctx context.Context, r core.Receipt) (core.Receipt, error) {
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}
	var rows []core.Receipt
	q := url.Values{"select": {receiptSelect}}
	if err := c.do(ctx, http.MethodPost, "/rest/v1/receipts", q, r, &rows); err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}
	if len(rows) != 1 {
		return core.Receipt{}, fmt.Errorf("create receipt: expected one row back, got %d", len(rows))
	}
	return rows[0], nil
}

func (c *Client) UpdateReceipt(ctx context.Context, id string, fields map[string]any) (core.Receipt, error) {
	// Hosted rows carry their last-modified time; the API does not stamp
	// it server-side.
	patch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["updated_at"] = c.now().UTC().Format(time.RFC3339)

	var rows []core.Receipt
	q := url.Values{"id": {"eq." + id}, "select": {receiptSelect}}
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/receipts", q, patch, &rows); err != nil {
		return core.Receipt{}, fmt.Errorf("update receipt %s: %w", id, err)
	}
	if len(rows) == 0 {
		return core.Receipt{}, fmt.Errorf("update receipt %s: %w", id, core.ErrNotFound)
	}
	return rows[0], nil
}

func (c *Client) DeleteReceipt(ctx context.Context, id string) error {
	q := url.Values{"id": {"eq." + id}}
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/receipts", q, nil, nil); err != nil {
		return fmt.Errorf("delete receipt %s: %w", id, err)
	}
	return nil
}

func (c *Client) ListClients(ctx context.Context) ([]core.Client, error) {
	var out []core.Client
	q := url.Values{"select": {"*"}, "order": {"name.asc"}}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/clients", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return out, nil
}

func (c *Client) ListTrips(ctx context.Context) ([]core.Trip, error) {
	var out []core.Trip
	q := url.Values{"select": {"*"}, "order": {"name.asc"}}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/trips", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	return out, nil
}

func (c *Client) CreateClient(ctx context.Context, name string) (core.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Client{}, core.ErrEmptyName
	}
	var out []core.Client
	q := url.Values{"select": {"*"}}
	if err := c.do(ctx, http.MethodPost, "/rest/v1/clients", q, map[string]string{"name": name}, &out); err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	if len(out) != 1 {
		return core.Client{}, fmt.Errorf("create client: expected 1 row back, got %d", len(out))
	}
	return out[0], nil
}

func (c *Client) CreateTrip(ctx context.Context, name string) (core.Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Trip{}, core.ErrEmptyName
	}
	var out []core.Trip
	q := url.Values{"select": {"*"}}
	if err := c.do(ctx, http.MethodPost, "/rest/v1/trips", q, map[string]string{"name": name}, &out); err != nil {
		return core.Trip{}, fmt.Errorf("create trip: %w", err)
	}
	if len(out) != 1 {
		return core.Trip{}, fmt.Errorf("create trip: expected 1 row back, got %d", len(out))
	}
	return out[0], nil
}

func (c *Client) DeleteClient(ctx context.Context, id string) error {
	q := url.Values{"id": {"eq." + id}}
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/clients", q, nil, nil); err != nil {
		return fmt.Errorf("delete client %s: %w", id, err)
	}
	return nil
}

func (c *Client) DeleteTrip(ctx context.Context, id string) error {
	q := url.Values{"id": {"eq." + id}}
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/trips", q, nil, nil); err != nil {
		return fmt.Errorf("delete trip %s: %w", id, err)
	}
	return nil
}

// UploadPhoto stores the image under <owner>/<unix-ms><ext> and returns the
// public URL of the object.
func (c *Client) UploadPhoto(ctx context.Context, owner string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("%s/%d%s", owner, c.now().UnixMilli(), core.ExtForContentType(contentType))

	u := *c.baseURL
	u.Path += "/storage/v1/object/" + c.bucket + "/" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload photo: %s", readAPIError(resp))
	}

	public := *c.baseURL
	public.Path += "/storage/v1/object/public/" + c.bucket + "/" + key
	return public.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	c.authorize(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s", readAPIError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func readAPIError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Sprintf("backend returned %d", resp.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", resp.StatusCode, msg)
}
