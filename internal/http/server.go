// Package http exposes the receipt API, the summary endpoints and the CSV
// export, and front-ends the application shell through the asset cache.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"snapreceipt/internal/cache"
	"snapreceipt/internal/core"
	"snapreceipt/internal/engine"
	"snapreceipt/internal/services"
	"snapreceipt/internal/session"
)

const writeRateLimit = 60 // requests per minute per client

type Server struct {
	http.Server

	session *session.Session
	svc     *services.ReceiptService
	shell   http.Handler // asset cache gateway, nil when not configured

	rateLimiter *rateLimiter

	// Derived results are memoized between session reloads.
	listCache    *cache.LRUCache[[]core.Receipt]
	summaryCache *cache.LRUCache[summaryResponse]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, sess *session.Session, svc *services.ReceiptService, shell http.Handler) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		session:          sess,
		svc:              svc,
		shell:            shell,
		rateLimiter:      newRateLimiter(writeRateLimit),
		listCache:        cache.NewLRUCache[[]core.Receipt](200, 5*time.Minute),
		summaryCache:     cache.NewLRUCache[summaryResponse](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}
	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/receipts", s.secured(s.handleListReceipts))
	mux.HandleFunc("POST /api/receipts", s.secured(s.handleCaptureReceipt))
	mux.HandleFunc("PATCH /api/receipts/{id}", s.secured(s.handleUpdateReceipt))
	mux.HandleFunc("DELETE /api/receipts/{id}", s.secured(s.handleDeleteReceipt))
	mux.HandleFunc("POST /api/receipts/{id}/rescan", s.secured(s.handleRescanReceipt))

	mux.HandleFunc("GET /api/clients", s.secured(s.handleListClients))
	mux.HandleFunc("POST /api/clients", s.secured(s.handleCreateClient))
	mux.HandleFunc("DELETE /api/clients/{id}", s.secured(s.handleDeleteClient))
	mux.HandleFunc("GET /api/trips", s.secured(s.handleListTrips))
	mux.HandleFunc("POST /api/trips", s.secured(s.handleCreateTrip))
	mux.HandleFunc("DELETE /api/trips/{id}", s.secured(s.handleDeleteTrip))

	mux.HandleFunc("GET /api/summary", s.secured(s.handleSummary))
	mux.HandleFunc("GET /export.csv", s.secured(s.handleExportCSV))

	// Everything else is a shell asset served through the cache.
	mux.HandleFunc("/", s.secured(s.handleShell))

	return s
}

// secured adds security headers, per-IP rate limiting on writes, and
// request logging.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if isWrite(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			listCleaned := s.listCache.CleanExpired()
			summaryCleaned := s.summaryCache.CleanExpired()
			if listCleaned > 0 || summaryCleaned > 0 {
				slog.Debug("Cache cleanup completed",
					"list_entries_removed", listCleaned,
					"summary_entries_removed", summaryCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// invalidateDerived drops every memoized result. Called after any write,
// since one receipt can move totals, breakdowns and every filtered list.
func (s *Server) invalidateDerived() {
	s.listCache.Purge()
	s.summaryCache.Purge()
}

// Shutdown stops the cleanup goroutines along with the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once a session snapshot has been loaded.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.session == nil || s.session.LoadedAt().IsZero() {
		http.Error(w, "no data loaded yet", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleShell serves application shell assets through the asset cache.
func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	if s.shell == nil {
		http.NotFound(w, r)
		return
	}
	s.shell.ServeHTTP(w, r)
}

// summaryResponse is the JSON shape of GET /api/summary.
type summaryResponse struct {
	Period     engine.Period           `json:"period"`
	Stats      engine.Stats            `json:"stats"`
	ByCategory []engine.BreakdownEntry `json:"by_category"`
	ByClient   []engine.BreakdownEntry `json:"by_client,omitempty"`
	ByTrip     []engine.BreakdownEntry `json:"by_trip,omitempty"`
}
