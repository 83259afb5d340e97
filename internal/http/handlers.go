package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"snapreceipt/internal/core"
	"snapreceipt/internal/engine"
	"snapreceipt/internal/export"
	"snapreceipt/internal/services"
)

const maxUploadBytes = 20 << 20

// handleListReceipts returns the session snapshot narrowed by the filter
// query. Results are memoized until the next write.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilterQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := "list\x1f" + f.canonicalKey()
	if cached, ok := s.listCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	records := engine.Apply(s.session.Receipts(), f.Type, f.Search, f.Criteria)
	s.listCache.Set(key, records)
	writeJSON(w, http.StatusOK, records)
}

// handleCaptureReceipt creates a receipt from a JSON body or, when the
// request is multipart, from form fields plus an optional photo part.
func (s *Server) handleCaptureReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, photo, contentType, err := parseCaptureRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.svc.CaptureReceipt(r.Context(), receipt, photo, contentType)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to capture receipt", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save receipt")
		return
	}

	s.invalidateDerived()
	writeJSON(w, http.StatusCreated, created)
}

func parseCaptureRequest(r *http.Request) (core.Receipt, []byte, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}
	if mediaType != "multipart/form-data" {
		var receipt core.Receipt
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&receipt); err != nil {
			return core.Receipt{}, nil, "", fmt.Errorf("invalid JSON body: %v", err)
		}
		return receipt, nil, "", nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return core.Receipt{}, nil, "", fmt.Errorf("invalid multipart form: %v", err)
	}

	receipt := core.Receipt{
		Vendor:        strings.TrimSpace(r.FormValue("vendor")),
		Date:          strings.TrimSpace(r.FormValue("receipt_date")),
		Type:          core.ReceiptType(strings.TrimSpace(r.FormValue("type"))),
		Category:      strings.TrimSpace(r.FormValue("category")),
		PaymentMethod: strings.TrimSpace(r.FormValue("payment_method")),
		ClientID:      strings.TrimSpace(r.FormValue("client_id")),
		TripID:        strings.TrimSpace(r.FormValue("trip_id")),
		Notes:         strings.TrimSpace(r.FormValue("notes")),
	}
	if raw := strings.TrimSpace(r.FormValue("amount")); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return core.Receipt{}, nil, "", fmt.Errorf("amount must be a number, got %q", raw)
		}
		receipt.Amount = core.Amount(amount)
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return receipt, nil, "", nil
		}
		return core.Receipt{}, nil, "", fmt.Errorf("invalid photo upload: %v", err)
	}
	defer file.Close()

	photo, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return core.Receipt{}, nil, "", fmt.Errorf("failed to read photo: %v", err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(photo)
	}
	return receipt, photo, contentType, nil
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var fields map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	updated, err := s.svc.UpdateReceipt(r.Context(), id, fields)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update receipt", "receipt_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update receipt")
		return
	}

	s.invalidateDerived()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.svc.DeleteReceipt(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete receipt", "receipt_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete receipt")
		return
	}

	s.invalidateDerived()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRescanReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.svc.RescanReceipt(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			writeError(w, http.StatusNotFound, "receipt not found")
		case errors.Is(err, services.ErrNoPhoto):
			writeError(w, http.StatusConflict, "receipt has no photo to scan")
		default:
			slog.ErrorContext(r.Context(), "Failed to enqueue rescan", "receipt_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to enqueue rescan")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleListClients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Clients())
}

func (s *Server) handleListTrips(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Trips())
}

type namedRequest struct {
	Name string `json:"name"`
}

func decodeName(r *http.Request) (string, error) {
	var req namedRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		return "", fmt.Errorf("invalid JSON body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	return name, nil
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	name, err := decodeName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.svc.CreateClient(r.Context(), name)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create client", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create client")
		return
	}

	s.invalidateDerived()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	name, err := decodeName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.svc.CreateTrip(r.Context(), name)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create trip", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create trip")
		return
	}

	s.invalidateDerived()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.svc.DeleteClient(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete client", "client_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete client")
		return
	}

	s.invalidateDerived()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.svc.DeleteTrip(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trip not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete trip", "trip_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete trip")
		return
	}

	s.invalidateDerived()
	w.WriteHeader(http.StatusNoContent)
}

// handleSummary returns totals and breakdowns for the receipts dated within
// the selected period.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := "summary\x1f" + string(period)
	if cached, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	windowed := engine.InPeriod(s.session.Receipts(), time.Now(), period)
	resp := summaryResponse{
		Period:     period,
		Stats:      engine.Summarize(windowed),
		ByCategory: engine.BreakdownByCategory(windowed),
		ByClient:   engine.BreakdownByClient(windowed),
		ByTrip:     engine.BreakdownByTrip(windowed),
	}

	s.summaryCache.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleExportCSV streams the filtered receipts as a CSV download.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilterQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := engine.Apply(s.session.Receipts(), f.Type, f.Search, f.Criteria)
	body := export.CSV(records)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(time.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
