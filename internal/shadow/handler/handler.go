package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sherlock/internal/shadow"
	"sherlock/pkg/platform/httputil"
)

// StatsSource exposes the running shadow comparison totals.
type StatsSource interface {
	Snapshot() shadow.StatsSnapshot
}

// Handler serves shadow observability endpoints.
type Handler struct {
	stats   StatsSource
	enabled bool
}

func New(stats StatsSource, enabled bool) *Handler {
	return &Handler{stats: stats, enabled: enabled}
}

// Register mounts shadow endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/shadow/stats", h.HandleStats)
}

type statsResponse struct {
	Enabled bool `json:"enabled"`
	shadow.StatsSnapshot
}

// HandleStats handles GET /v1/shadow/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Enabled: h.enabled}
	if h.stats != nil {
		resp.StatsSnapshot = h.stats.Snapshot()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
