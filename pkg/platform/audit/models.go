package audit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Record is the immutable audit entry for one decision: the transaction as
// received, the velocity signals observed, and the verdict returned.
type Record struct {
	TransactionID   string          `json:"transaction_id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Location        string          `json:"location"`
	Merchant        string          `json:"merchant"`
	DeviceID        string          `json:"device_id,omitempty"`
	Outcome         string          `json:"outcome"`
	RiskScore       float64         `json:"risk_score"`
	Reasons         []string        `json:"reasons"`
	Velocity        int             `json:"velocity"`
	LocationChanged bool            `json:"location_changed"`
	ModelVersion    string          `json:"model_version"`
	Degraded        bool            `json:"degraded"`
	LatencyMS       float64         `json:"latency_ms"`
	RequestID       string          `json:"request_id,omitempty"`
	DecidedAt       time.Time       `json:"decided_at"`
}

// Store appends records. Implementations must tolerate duplicates of the same
// transaction ID (delivery is at-least-once).
type Store interface {
	Append(ctx context.Context, rec Record) error
}

// VerdictIndex looks up the recorded decision for a transaction. Returns
// sentinel.ErrNotFound when none has been recorded yet.
type VerdictIndex interface {
	Lookup(ctx context.Context, transactionID string) (*Record, error)
}

// Emitter hands records to the asynchronous audit pipeline.
type Emitter interface {
	Emit(ctx context.Context, rec Record) error
}
