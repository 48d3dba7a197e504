// Package handler exposes the trial pipeline over HTTP: registry
// search-and-ingest, the stored-corpus query surface, quality reporting and
// maintenance operations.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trialstore/internal/maintenance"
	"trialstore/internal/quality"
	"trialstore/internal/trial/models"
	"trialstore/internal/trial/service"
	"trialstore/internal/trial/store"
	"trialstore/pkg/domain"
	domainerrors "trialstore/pkg/domain-errors"
)

// TrialService is the pipeline surface the handler depends on.
type TrialService interface {
	SearchAndIngest(ctx context.Context, query string, max int) (*service.IngestResult, error)
	GetTrial(ctx context.Context, rawID string) (*models.TrialSummary, error)
	ListTrials(ctx context.Context, filter store.ListFilter) ([]models.TrialSummary, error)
	SearchStored(ctx context.Context, query string, limit int) ([]models.TrialSummary, error)
	Stats(ctx context.Context) (*models.CorpusStats, error)
}

// QualityService produces scored quality reports.
type QualityService interface {
	Report(ctx context.Context, refresh bool) (*quality.Report, error)
}

// Maintenance is the operational surface; nil disables those routes.
type Maintenance interface {
	PurgeChildren(ctx context.Context, nctID domain.NCTID) error
	Optimize(ctx context.Context) (*maintenance.OptimizeResult, error)
	CheckHealth(ctx context.Context) (*maintenance.Health, error)
}

// HealthCheck reports readiness of a named dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	log     *slog.Logger
	trials  TrialService
	quality QualityService
	maint   Maintenance
	checks  []HealthCheck
}

func New(trials TrialService, qualitySvc QualityService, maint Maintenance,
	log *slog.Logger, checks ...HealthCheck) *Handler {
	return &Handler{
		log:     log,
		trials:  trials,
		quality: qualitySvc,
		maint:   maint,
		checks:  checks,
	}
}

// Router builds the full route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/search-trials", h.handleSearchAndIngest)
	r.Route("/trials", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/search", h.handleSearchStored)
		r.Get("/stats", h.handleStats)
		r.Get("/{nctID}", h.handleGet)
		if h.maint != nil {
			r.Delete("/{nctID}/children", h.handlePurgeChildren)
		}
	})
	r.Get("/quality-report", h.handleQualityReport)
	if h.maint != nil {
		r.Route("/maintenance", func(r chi.Router) {
			r.Post("/optimize", h.handleOptimize)
			r.Get("/health", h.handleDBHealth)
		})
	}
	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (h *Handler) handleSearchAndIngest(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.MaxResults == 0 {
		req.MaxResults = 10
	}

	result, err := h.trials.SearchAndIngest(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		h.log.Error("search-trials failed", "query", req.Query, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	summary, err := h.trials.GetTrial(r.Context(), chi.URLParam(r, "nctID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{
		Status: r.URL.Query().Get("status"),
		Phase:  r.URL.Query().Get("phase"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	trials, err := h.trials.ListTrials(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trials": emptyIfNil(trials),
		"count":  len(trials),
	})
}

func (h *Handler) handleSearchStored(w http.ResponseWriter, r *http.Request) {
	trials, err := h.trials.SearchStored(r.Context(),
		r.URL.Query().Get("q"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trials": emptyIfNil(trials),
		"count":  len(trials),
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.trials.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleQualityReport(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	report, err := h.quality.Report(r.Context(), refresh)
	if err != nil {
		h.log.Error("quality report failed", "error", err)
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(quality.RenderText(report)))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handlePurgeChildren(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseNCTID(chi.URLParam(r, "nctID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.maint.PurgeChildren(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	result, err := h.maint.Optimize(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDBHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.maint.CheckHealth(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := true
	for _, check := range h.checks {
		if err := check.Check(r.Context()); err != nil {
			status[check.Name] = err.Error()
			healthy = false
			continue
		}
		status[check.Name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func emptyIfNil(trials []models.TrialSummary) []models.TrialSummary {
	if trials == nil {
		return []models.TrialSummary{}
	}
	return trials
}
