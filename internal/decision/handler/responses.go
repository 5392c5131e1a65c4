package handler

import (
	"time"

	"sherlock/internal/decision"
)

// DecideResponse is the HTTP response for POST /v1/decisions.
type DecideResponse struct {
	TransactionID   string    `json:"transaction_id"`
	Decision        string    `json:"decision"`
	RiskScore       float64   `json:"risk_score"`
	Reasons         []string  `json:"reasons"`
	VelocityCounter int       `json:"velocity_counter"`
	LatencyMS       float64   `json:"latency_ms"`
	ModelVersion    string    `json:"model_version"`
	Degraded        bool      `json:"degraded"`
	Idempotent      bool      `json:"idempotent"`
	DecidedAt       time.Time `json:"decided_at"`
}

// FromDecision converts a domain Decision to an HTTP response.
func FromDecision(d *decision.Decision) *DecideResponse {
	return &DecideResponse{
		TransactionID:   d.TransactionID,
		Decision:        string(d.Outcome),
		RiskScore:       d.RiskScore,
		Reasons:         d.ReasonStrings(),
		VelocityCounter: d.Velocity,
		LatencyMS:       float64(d.Latency.Microseconds()) / 1000,
		ModelVersion:    d.ModelVersion,
		Degraded:        d.Degraded,
		Idempotent:      d.Replayed,
		DecidedAt:       d.DecidedAt,
	}
}
