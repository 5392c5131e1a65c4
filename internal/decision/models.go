package decision

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sherlock/internal/decision/ports"
)

// Outcome is the verdict returned to the caller.
type Outcome string

const (
	OutcomeAllow Outcome = "ALLOW"
	OutcomeBlock Outcome = "BLOCK"
)

// Reason explains a verdict. Rule reasons fire BLOCK; annotations record a
// degraded or replayed evaluation and never change the outcome.
type Reason string

const (
	ReasonHighVelocity     Reason = "HIGH_VELOCITY"
	ReasonImpossibleTravel Reason = "IMPOSSIBLE_TRAVEL"
	ReasonHighRiskScore    Reason = "HIGH_RISK_SCORE"
	ReasonFraudRing        Reason = "FRAUD_RING_DETECTED"

	ReasonModelUnavailable Reason = "MODEL_UNAVAILABLE"
	ReasonStateUnavailable Reason = "STATE_UNAVAILABLE"
	ReasonIdempotentReplay Reason = "IDEMPOTENT_REPLAY"
)

// IsAnnotation reports whether r is informational only.
func (r Reason) IsAnnotation() bool {
	switch r {
	case ReasonModelUnavailable, ReasonStateUnavailable, ReasonIdempotentReplay:
		return true
	}
	return false
}

// Transaction is a validated decision request.
type Transaction struct {
	TransactionID string
	UserID        string
	Amount        decimal.Decimal
	Location      string
	Merchant      string
	DeviceID      string
	ReceivedAt    time.Time
}

// Normalize trims string fields and assigns a transaction ID when absent.
func (t *Transaction) Normalize() {
	t.TransactionID = strings.TrimSpace(t.TransactionID)
	t.UserID = strings.TrimSpace(t.UserID)
	t.Location = strings.TrimSpace(t.Location)
	t.Merchant = strings.TrimSpace(t.Merchant)
	t.DeviceID = strings.TrimSpace(t.DeviceID)
	if t.TransactionID == "" {
		t.TransactionID = uuid.NewString()
	}
}

// Validate rejects transactions that must not reach the state store.
func (t *Transaction) Validate() error {
	switch {
	case strings.TrimSpace(t.UserID) == "":
		return invalid("user_id is required")
	case strings.TrimSpace(t.Location) == "":
		return invalid("location is required")
	case t.Amount.IsNegative():
		return invalid("amount must not be negative")
	}
	return nil
}

// Message is the shadow-path view of the transaction.
func (t Transaction) Message() ports.TransactionMessage {
	return ports.TransactionMessage{
		TransactionID: t.TransactionID,
		UserID:        t.UserID,
		Amount:        t.Amount,
		Location:      t.Location,
		Merchant:      t.Merchant,
		DeviceID:      t.DeviceID,
		ReceivedAt:    t.ReceivedAt,
	}
}

// TransactionFromMessage rebuilds a transaction from a shadow message.
func TransactionFromMessage(msg ports.TransactionMessage) Transaction {
	return Transaction{
		TransactionID: msg.TransactionID,
		UserID:        msg.UserID,
		Amount:        msg.Amount,
		Location:      msg.Location,
		Merchant:      msg.Merchant,
		DeviceID:      msg.DeviceID,
		ReceivedAt:    msg.ReceivedAt,
	}
}

// Signals are the inputs to the rule engine.
type Signals struct {
	Velocity        int
	VelocityKnown   bool
	LocationChanged bool
	RiskScore       float64
	// FraudRing is set when the device is shared by more users than allowed.
	FraudRing bool
}

// Decision is the result returned for one transaction.
type Decision struct {
	TransactionID string
	UserID        string
	Outcome       Outcome
	RiskScore     float64
	Reasons       []Reason
	Velocity      int
	Latency       time.Duration
	ModelVersion  string
	Degraded      bool
	Replayed      bool
	DecidedAt     time.Time
}

// ReasonStrings returns the reasons as a fresh slice of strings.
func (d *Decision) ReasonStrings() []string {
	out := make([]string, len(d.Reasons))
	for i, r := range d.Reasons {
		out[i] = string(r)
	}
	return out
}
