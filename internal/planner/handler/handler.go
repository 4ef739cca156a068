// Package handler exposes the planner over HTTP: the legacy POST /bible
// download, a JSON plan API and plan cache administration.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/export"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/planner"
	apperrors "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/logger"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	service    *planner.Service
	sink       *export.FileSink
	pattern    string
	headerLang string
	logger     *slog.Logger
}

// New creates the handler. sink may be nil, in which case POST /bible only
// streams the schedule without storing it.
func New(service *planner.Service, sink *export.FileSink, fileNamePattern, headerLang string) *Handler {
	return &Handler{
		service:    service,
		sink:       sink,
		pattern:    fileNamePattern,
		headerLang: headerLang,
		logger:     slog.Default().With("component", "plan-handler"),
	}
}

// Register adds the planner routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /bible", h.Bible)
	mux.HandleFunc("POST /api/v1/plans", h.CreatePlan)
	mux.HandleFunc("GET /api/v1/plans/{days}", h.GetPlan)
	mux.HandleFunc("GET /api/v1/plans/{days}/csv", h.GetPlanCSV)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Bible generates the schedule for the posted day count, stores it in the
// result directory and returns it as a CSV attachment.
func (h *Handler) Bible(w http.ResponseWriter, r *http.Request) {
	days, err := readDays(w, r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	p, err := h.service.Generate(r.Context(), days)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if h.sink != nil {
		if _, err := h.service.Export(r.Context(), h.sink, p); err != nil {
			h.writeAppError(w, r, err)
			return
		}
	}
	h.writeCSV(w, r, p)
}

// CreatePlan returns the schedule for the posted day count as JSON.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	days, err := readDays(w, r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.respondPlan(w, r, days)
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	days, err := planner.ParseDays(r.PathValue("days"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.respondPlan(w, r, days)
}

func (h *Handler) GetPlanCSV(w http.ResponseWriter, r *http.Request) {
	days, err := planner.ParseDays(r.PathValue("days"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	p, err := h.service.Generate(r.Context(), days)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeCSV(w, r, p)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Cache().Stats(r.Context())
	if err != nil {
		h.logger.Error("cache stats failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache stats unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !h.service.Cache().Enabled() {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.service.Cache().Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) respondPlan(w http.ResponseWriter, r *http.Request, days int) {
	p, err := h.service.Generate(r.Context(), days)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// readDays accepts {"days": N} with N an integral number or numeric string, or a form /
// query parameter days=N.
func readDays(w http.ResponseWriter, r *http.Request) (int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return 0, fmt.Errorf("%w: unreadable form: %w", apperrors.ErrInvalidTarget, err)
		}
		return planner.ParseDays(r.FormValue("days"))
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: reading body: %w", apperrors.ErrInvalidTarget, err)
	}
	var req struct {
		Days any `json:"days"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return 0, fmt.Errorf("%w: invalid JSON body", apperrors.ErrInvalidTarget)
	}
	switch v := req.Days.(type) {
	case json.Number:
		return planner.ParseDays(v.String())
	case string:
		return planner.ParseDays(v)
	default:
		return 0, fmt.Errorf("%w: days is required", apperrors.ErrInvalidTarget)
	}
}

func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, p *planner.Plan) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, p.Partition, h.headerLang); err != nil {
		h.writeAppError(w, r, fmt.Errorf("%w: %w", apperrors.ErrExportFailed, err))
		return
	}
	name := export.FileName(h.pattern, p.Days)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write csv response", "error", err)
	}
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := apperrors.PublicMessage(err)
	if status == http.StatusBadRequest {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
			msg = "request body too large"
		}
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("plan request failed",
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}
