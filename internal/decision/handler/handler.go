package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sherlock/internal/decision"
	"sherlock/pkg/platform/httputil"
	"sherlock/pkg/requestcontext"
)

// Service defines the interface for decision operations.
type Service interface {
	Decide(ctx context.Context, tx decision.Transaction) (*decision.Decision, error)
}

// Handler wires decision endpoints to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a decision handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts decision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/decisions", h.HandleDecide)
}

// HandleDecide handles POST /v1/decisions requests.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DecideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Decide(ctx, req.Transaction())
	if err != nil {
		h.logger.WarnContext(ctx, "decision failed",
			"request_id", requestID,
			"transaction_id", req.TransactionID,
			"user_id", req.UserID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "decision made",
		"request_id", requestID,
		"transaction_id", result.TransactionID,
		"user_id", result.UserID,
		"decision", result.Outcome,
		"risk_score", result.RiskScore,
		"degraded", result.Degraded,
		"idempotent", result.Replayed,
		"latency_ms", result.Latency.Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromDecision(result))
}
