package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionMessage is the raw transaction handed to the shadow path. It
// carries no part of the production decision.
type TransactionMessage struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Location      string          `json:"location"`
	Merchant      string          `json:"merchant"`
	DeviceID      string          `json:"device_id,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// ShadowPort hands transactions to the shadow evaluator without blocking.
type ShadowPort interface {
	Dispatch(ctx context.Context, msg TransactionMessage) error
}
