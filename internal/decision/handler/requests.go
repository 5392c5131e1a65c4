package handler

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"sherlock/internal/decision"
	dErrors "sherlock/pkg/domain-errors"
)

const maxFieldLength = 128

// DecideRequest is the HTTP request body for POST /v1/decisions.
type DecideRequest struct {
	TransactionID string           `json:"transaction_id"`
	UserID        string           `json:"user_id"`
	Amount        *decimal.Decimal `json:"amount"`
	Location      string           `json:"location"`
	Merchant      string           `json:"merchant"`
	DeviceID      string           `json:"device_id"`
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *DecideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	for name, v := range map[string]string{
		"transaction_id": r.TransactionID,
		"user_id":        r.UserID,
		"location":       r.Location,
		"merchant":       r.Merchant,
		"device_id":      r.DeviceID,
	} {
		if len(v) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %d characters", name, maxFieldLength))
		}
	}

	r.TransactionID = strings.TrimSpace(r.TransactionID)
	r.UserID = strings.TrimSpace(r.UserID)
	r.Location = strings.TrimSpace(r.Location)
	r.Merchant = strings.TrimSpace(r.Merchant)
	r.DeviceID = strings.TrimSpace(r.DeviceID)

	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if r.Location == "" {
		return dErrors.New(dErrors.CodeValidation, "location is required")
	}
	if r.Amount == nil {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	if r.Amount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	return nil
}

// Transaction converts the validated request into the domain type.
func (r *DecideRequest) Transaction() decision.Transaction {
	return decision.Transaction{
		TransactionID: r.TransactionID,
		UserID:        r.UserID,
		Amount:        *r.Amount,
		Location:      r.Location,
		Merchant:      r.Merchant,
		DeviceID:      r.DeviceID,
	}
}
