package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/sentinel"
)

// Schema creates the append-only decision audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS decision_audit (
	transaction_id   TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	amount           NUMERIC(18, 4) NOT NULL,
	location         TEXT NOT NULL,
	merchant         TEXT NOT NULL,
	device_id        TEXT NOT NULL DEFAULT '',
	outcome          TEXT NOT NULL,
	risk_score       DOUBLE PRECISION NOT NULL,
	reasons          TEXT[] NOT NULL,
	velocity         INTEGER NOT NULL,
	location_changed BOOLEAN NOT NULL,
	model_version    TEXT NOT NULL,
	degraded         BOOLEAN NOT NULL,
	latency_ms       DOUBLE PRECISION NOT NULL,
	request_id       TEXT NOT NULL DEFAULT '',
	decided_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS decision_audit_user_idx ON decision_audit (user_id, decided_at);
`

const selectColumns = `
	transaction_id, user_id, amount, location, merchant, device_id,
	outcome, risk_score, reasons, velocity, location_changed,
	model_version, degraded, latency_ms, request_id, decided_at
`

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// Store appends decision records to Postgres and serves verdict lookups.
// Duplicate deliveries of the same transaction are ignored.
type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the table and index when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create decision_audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	reasons := rec.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	query := `
		INSERT INTO decision_audit (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query,
		rec.TransactionID,
		rec.UserID,
		rec.Amount,
		rec.Location,
		rec.Merchant,
		rec.DeviceID,
		rec.Outcome,
		rec.RiskScore,
		reasons,
		rec.Velocity,
		rec.LocationChanged,
		rec.ModelVersion,
		rec.Degraded,
		rec.LatencyMS,
		rec.RequestID,
		rec.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision audit: %w", err)
	}
	return nil
}

// Lookup returns the recorded decision for a transaction.
func (s *Store) Lookup(ctx context.Context, transactionID string) (*audit.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM decision_audit WHERE transaction_id = $1`
	rec, err := scanRecord(s.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lookup decision audit: %w", err)
	}
	return &rec, nil
}

// ListByUser returns a user's decisions, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]audit.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM decision_audit WHERE user_id = $1 ORDER BY decided_at`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query decision audit: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision audit: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision audit: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (audit.Record, error) {
	var rec audit.Record
	err := row.Scan(
		&rec.TransactionID,
		&rec.UserID,
		&rec.Amount,
		&rec.Location,
		&rec.Merchant,
		&rec.DeviceID,
		&rec.Outcome,
		&rec.RiskScore,
		&rec.Reasons,
		&rec.Velocity,
		&rec.LocationChanged,
		&rec.ModelVersion,
		&rec.Degraded,
		&rec.LatencyMS,
		&rec.RequestID,
		&rec.DecidedAt,
	)
	return rec, err
}
