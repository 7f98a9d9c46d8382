package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/driftsec/phishdeck/internal/pkg/logger"
	"github.com/driftsec/phishdeck/internal/store"
	"github.com/driftsec/phishdeck/internal/store/conn"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	provider StoreProvider
	chaos    ChaosController
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(provider StoreProvider, chaos ChaosController) *Handlers {
	return &Handlers{provider: provider, chaos: chaos}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps contract errors onto HTTP statuses. Reachability
// problems are 503 so a load balancer can tell them from handler bugs.
func respondStoreError(w http.ResponseWriter, op string, err error) {
	logger.Error("request failed", "op", op, "error", err)
	if store.IsUnavailable(err) || errors.Is(err, conn.ErrFatal) {
		respondError(w, http.StatusServiceUnavailable, "storage backend unavailable")
		return
	}
	respondError(w, http.StatusInternalServerError, "internal error")
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// GetBackendStatus handles GET /api/admin/backend. It reports the
// controller state plus a fresh reachability probe of both descriptors.
func (h *Handlers) GetBackendStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.provider.Describe(r.Context()))
}

// InjectChaos handles POST /api/admin/chaos/inject.
func (h *Handlers) InjectChaos(w http.ResponseWriter, r *http.Request) {
	if err := h.chaos.InjectRemoteFailure(); err != nil {
		logger.Error("chaos injection failed", "error", err)
		respondError(w, http.StatusInternalServerError, "injection failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "injected"})
}

// RestoreChaos handles POST /api/admin/chaos/restore.
func (h *Handlers) RestoreChaos(w http.ResponseWriter, r *http.Request) {
	if err := h.chaos.RestoreRemoteConnection(); err != nil {
		logger.Error("chaos restore failed", "error", err)
		respondError(w, http.StatusInternalServerError, "restore failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// GetDashboard handles GET /api/dashboard for the requesting tenant.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := r.Header.Get(orgHeader)

	st, err := h.provider.Get(ctx)
	if err != nil {
		respondStoreError(w, "dashboard", err)
		return
	}
	stats, err := st.DashboardStats(ctx, orgID)
	if err != nil {
		respondStoreError(w, "dashboard", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetCampaignResults handles GET /api/campaigns/{campaignID}/results.
func (h *Handlers) GetCampaignResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := r.Header.Get(orgHeader)
	campaignID := chi.URLParam(r, "campaignID")

	st, err := h.provider.Get(ctx)
	if err != nil {
		respondStoreError(w, "campaign results", err)
		return
	}
	campaign, err := st.GetCampaign(ctx, orgID, campaignID)
	if err != nil {
		respondStoreError(w, "campaign results", err)
		return
	}
	if campaign == nil {
		respondError(w, http.StatusNotFound, "campaign not found")
		return
	}
	results, err := st.ResultsForCampaign(ctx, orgID, campaignID)
	if err != nil {
		respondStoreError(w, "campaign results", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign": campaign,
		"results":  results,
	})
}
