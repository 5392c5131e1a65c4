package ports

import (
	"context"

	"sherlock/pkg/platform/audit"
)

// AuditPort defines the interface for emitting decision records.
// This matches the audit.Emitter interface but is defined here
// to maintain hexagonal boundaries.
type AuditPort interface {
	Emit(ctx context.Context, rec audit.Record) error
}

// VerdictLookup finds the decision already recorded for a transaction.
type VerdictLookup interface {
	Lookup(ctx context.Context, transactionID string) (*audit.Record, error)
}
