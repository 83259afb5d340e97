package assetcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config wires a Gateway to its origin and to the hosts it must never cache.
type Config struct {
	// Origin hosts the application shell; manifest paths resolve against it.
	Origin string

	// Version is the current cache generation tag. It must change whenever
	// the manifest changes so that activation purges the old generation.
	Version string

	// Manifest is the fixed list of root-relative asset paths installed up
	// front.
	Manifest []string

	// DynamicHosts are substrings of hostnames whose traffic carries
	// per-user data and must bypass the cache entirely.
	DynamicHosts []string

	// Client defaults to a client with a short timeout.
	Client *http.Client
}

// Gateway implements cache-then-network for the application shell: cached
// responses are returned immediately while a background fetch refreshes the
// store. Dynamic API traffic passes straight through.
type Gateway struct {
	store        *Store
	origin       *url.URL
	version      string
	manifest     []string
	dynamicHosts []string
	client       *http.Client

	// Tracks in-flight background revalidations so shutdown can drain them.
	revalidating sync.WaitGroup
}

func NewGateway(store *Store, cfg Config) (*Gateway, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin URL: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin URL %q must be absolute", cfg.Origin)
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("cache version is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Gateway{
		store:        store,
		origin:       origin,
		version:      cfg.Version,
		manifest:     cfg.Manifest,
		dynamicHosts: cfg.DynamicHosts,
		client:       client,
	}, nil
}

// Install fetches every manifest asset from the origin and stores the whole
// set in one transaction. All-or-nothing: a single failed asset fails the
// install and nothing is written.
func (g *Gateway) Install(ctx context.Context) error {
	entries := make([]Entry, len(g.manifest))
	keys := make([]string, len(g.manifest))

	eg, ctx := errgroup.WithContext(ctx)
	for i, path := range g.manifest {
		eg.Go(func() error {
			assetURL := g.origin.ResolveReference(&url.URL{Path: path}).String()
			entry, err := g.fetchEntry(ctx, http.MethodGet, assetURL)
			if err != nil {
				return fmt.Errorf("install %s: %w", path, err)
			}
			if entry.Status != http.StatusOK {
				return fmt.Errorf("install %s: origin returned %d", path, entry.Status)
			}
			entries[i] = entry
			keys[i] = EntryKey(http.MethodGet, assetURL)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	batch := make(map[string]Entry, len(keys))
	for i, key := range keys {
		batch[key] = entries[i]
	}
	if err := g.store.PutAll(g.version, batch); err != nil {
		return fmt.Errorf("store manifest: %w", err)
	}

	slog.InfoContext(ctx, "Asset cache installed",
		"version", g.version,
		"assets", len(g.manifest))
	return nil
}

// Activate purges every cache generation except the current one, bounding
// storage growth to a single live generation.
func (g *Gateway) Activate(ctx context.Context) error {
	versions, err := g.store.Versions()
	if err != nil {
		return fmt.Errorf("list cache versions: %w", err)
	}
	for _, v := range versions {
		if v == g.version {
			continue
		}
		if err := g.store.DropVersion(v); err != nil {
			return fmt.Errorf("drop cache version %s: %w", v, err)
		}
		slog.InfoContext(ctx, "Purged stale cache generation", "version", v)
	}
	return nil
}

// Fetch applies the interception decision table to one request and returns
// the response the caller should observe.
func (g *Gateway) Fetch(ctx context.Context, method, rawURL string) (Entry, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Entry{}, fmt.Errorf("parse request URL: %w", err)
	}

	// Non-reads and dynamic API traffic bypass the cache entirely: never
	// read from it, never written to it.
	if method != http.MethodGet || g.isDynamic(u.Host) {
		return g.fetchEntry(ctx, method, rawURL)
	}

	key := EntryKey(method, rawURL)
	cached, found, err := g.store.Get(g.version, key)
	if err != nil {
		slog.WarnContext(ctx, "Asset cache read failed", "key", key, "error", err)
		found = false
	}

	if found {
		// Stale-while-revalidate: the caller gets the cached copy now; the
		// network leg only repopulates the store. Its failure is masked.
		g.revalidating.Add(1)
		go func() {
			defer g.revalidating.Done()
			rctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			g.revalidate(rctx, key, rawURL)
		}()
		return cached, nil
	}

	// No cached copy: the caller observes the network result, success or
	// failure, directly.
	entry, err := g.fetchEntry(ctx, method, rawURL)
	if err != nil {
		return Entry{}, err
	}
	g.maybeCache(ctx, key, u, entry)
	return entry, nil
}

// Wait drains in-flight background revalidations. Called on shutdown.
func (g *Gateway) Wait() {
	g.revalidating.Wait()
}

// ServeHTTP serves shell assets through the cache by resolving the request
// path against the origin.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assetURL := g.origin.ResolveReference(&url.URL{Path: r.URL.Path}).String()
	entry, err := g.Fetch(r.Context(), r.Method, assetURL)
	if err != nil {
		// No cached copy and no network: visible as a broken resource.
		http.Error(w, "asset unavailable", http.StatusBadGateway)
		return
	}
	for k, vals := range entry.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(entry.Status)
	_, _ = w.Write(entry.Body)
}

func (g *Gateway) isDynamic(host string) bool {
	for _, d := range g.dynamicHosts {
		if d != "" && strings.Contains(host, d) {
			return true
		}
	}
	return false
}

func (g *Gateway) revalidate(ctx context.Context, key, rawURL string) {
	entry, err := g.fetchEntry(ctx, http.MethodGet, rawURL)
	if err != nil {
		// The stale copy was already delivered; nothing to surface.
		slog.DebugContext(ctx, "Revalidation fetch failed", "url", rawURL, "error", err)
		return
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	g.maybeCache(ctx, key, u, entry)
}

// maybeCache stores a response only when it is a 200 from the shell origin.
func (g *Gateway) maybeCache(ctx context.Context, key string, u *url.URL, entry Entry) {
	if entry.Status != http.StatusOK || u.Host != g.origin.Host {
		return
	}
	if err := g.store.Put(g.version, key, entry); err != nil {
		slog.WarnContext(ctx, "Asset cache write failed", "key", key, "error", err)
	}
}

func (g *Gateway) fetchEntry(ctx context.Context, method, rawURL string) (Entry, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return Entry{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("read response body: %w", err)
	}
	return Entry{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}
