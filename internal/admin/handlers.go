package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vocira/vocira/internal/call"
	"github.com/vocira/vocira/internal/domain"
	"github.com/vocira/vocira/internal/ports"
)

const readinessTimeout = 5 * time.Second

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondError(w http.ResponseWriter, errType, message string, status int) {
	respondJSON(w, errorResponse{Error: errType, Message: message}, status)
}

// HealthHandler answers liveness and readiness probes. Readiness checks are
// optional; a nil check is treated as ready.
type HealthHandler struct {
	version string
	checks  map[string]func(context.Context) error
}

func NewHealthHandler(version string, checks map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, healthResponse{Status: "ok", Version: h.version}, http.StatusOK)
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: h.version, Checks: make(map[string]string)}
	status := http.StatusOK

	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks[name] = "ok"
		}
	}

	respondJSON(w, resp, status)
}

// CampaignsHandler exposes campaign definitions and aggregate call counts.
type CampaignsHandler struct {
	store ports.CampaignStore
}

func NewCampaignsHandler(store ports.CampaignStore) *CampaignsHandler {
	return &CampaignsHandler{store: store}
}

func (h *CampaignsHandler) List(w http.ResponseWriter, r *http.Request) {
	camps, err := h.store.ListActive(r.Context())
	if err != nil {
		respondError(w, "internal_error", "failed to list campaigns", http.StatusInternalServerError)
		return
	}
	respondJSON(w, camps, http.StatusOK)
}

func (h *CampaignsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	camp, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			respondError(w, "not_found", "campaign not found", http.StatusNotFound)
			return
		}
		respondError(w, "internal_error", "failed to load campaign", http.StatusInternalServerError)
		return
	}
	respondJSON(w, camp, http.StatusOK)
}

func (h *CampaignsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			respondError(w, "not_found", "campaign not found", http.StatusNotFound)
			return
		}
		respondError(w, "internal_error", "failed to load campaign", http.StatusInternalServerError)
		return
	}

	stats, err := h.store.Stats(r.Context(), id)
	if err != nil {
		respondError(w, "internal_error", "failed to aggregate calls", http.StatusInternalServerError)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}

// CallsHandler exposes the calls currently in flight.
type CallsHandler struct {
	registry *call.Registry
}

func NewCallsHandler(registry *call.Registry) *CallsHandler {
	return &CallsHandler{registry: registry}
}

type liveCallsResponse struct {
	Count int                `json:"count"`
	Calls []call.SessionInfo `json:"calls"`
}

func (h *CallsHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()
	respondJSON(w, liveCallsResponse{Count: len(snapshot), Calls: snapshot}, http.StatusOK)
}
