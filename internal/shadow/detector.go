package shadow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sherlock/internal/decision"
	"sherlock/internal/decision/ports"
	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/retry"
)

// Comparison is the outcome of correlating a shadow verdict with production.
type Comparison string

const (
	ComparisonAgree      Comparison = "agree"
	ComparisonConflict   Comparison = "conflict"
	ComparisonUncompared Comparison = "uncompared"
)

var errNoVerdictIndex = errors.New("no verdict index configured")

const (
	defaultLookupAttempts = 4
	defaultLookupDelay    = 50 * time.Millisecond
)

// Detector finds the production verdict for a transaction and reports a
// ConflictRecord when the shadow outcome differs. The audit trail is written
// asynchronously, so the lookup is retried briefly before giving up.
type Detector struct {
	verdicts ports.VerdictLookup
	sink     ConflictSink
	attempts int
	delay    time.Duration
	stats    *Stats
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

type DetectorOption func(*Detector)

func WithLookupRetry(attempts int, delay time.Duration) DetectorOption {
	return func(d *Detector) {
		if attempts > 0 {
			d.attempts = attempts
		}
		if delay > 0 {
			d.delay = delay
		}
	}
}

func WithStats(s *Stats) DetectorOption {
	return func(d *Detector) {
		d.stats = s
	}
}

func WithDetectorLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) {
		d.logger = logger
	}
}

func WithDetectorMetrics(m *Metrics) DetectorOption {
	return func(d *Detector) {
		d.metrics = m
	}
}

func NewDetector(verdicts ports.VerdictLookup, sink ConflictSink, opts ...DetectorOption) *Detector {
	d := &Detector{
		verdicts: verdicts,
		sink:     sink,
		attempts: defaultLookupAttempts,
		delay:    defaultLookupDelay,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Compare looks up the production verdict and judges the shadow verdict
// against it.
func (d *Detector) Compare(ctx context.Context, tx decision.Transaction, shadow decision.Verdict) Comparison {
	prod, err := d.Production(ctx, tx.TransactionID)
	return d.Judge(ctx, tx, shadow, prod, err)
}

// Production returns the recorded production verdict, retrying briefly while
// the asynchronous audit trail catches up.
func (d *Detector) Production(ctx context.Context, transactionID string) (*audit.Record, error) {
	return d.lookup(ctx, transactionID)
}

// Judge never fails: a missing production verdict (lookupErr set) is logged
// and counted as uncompared, and sink failures are logged.
func (d *Detector) Judge(ctx context.Context, tx decision.Transaction, shadow decision.Verdict, prod *audit.Record, lookupErr error) Comparison {
	result := d.judge(ctx, tx, shadow, prod, lookupErr)
	d.stats.record(result)
	d.metrics.incrementComparison(string(result))
	return result
}

func (d *Detector) judge(ctx context.Context, tx decision.Transaction, shadow decision.Verdict, prod *audit.Record, err error) Comparison {
	if err == nil && prod == nil {
		err = errNoVerdictIndex
	}
	if err != nil {
		d.logger.InfoContext(ctx, "shadow evaluated without comparison",
			"transaction_id", tx.TransactionID,
			"shadow_decision", shadow.Outcome,
			"shadow_score", shadow.RiskScore,
			"error", err,
		)
		return ComparisonUncompared
	}

	if prod.Outcome == string(shadow.Outcome) {
		d.logger.DebugContext(ctx, "shadow agrees with production",
			"transaction_id", tx.TransactionID,
			"decision", prod.Outcome,
		)
		return ComparisonAgree
	}

	rec := ConflictRecord{
		TransactionID:      tx.TransactionID,
		UserID:             tx.UserID,
		Amount:             tx.Amount,
		ProductionDecision: prod.Outcome,
		ProductionScore:    prod.RiskScore,
		ProductionModel:    prod.ModelVersion,
		ShadowDecision:     string(shadow.Outcome),
		ShadowScore:        shadow.RiskScore,
		ShadowModel:        shadow.ModelVersion,
		ShadowReasons:      reasonStrings(shadow.Reasons),
		DetectedAt:         d.now(),
	}
	if d.sink != nil {
		if err := d.sink.Report(ctx, rec); err != nil {
			d.metrics.incrementSinkFailure()
			d.logger.WarnContext(ctx, "conflict sink failed",
				"transaction_id", tx.TransactionID,
				"error", err,
			)
		}
	}
	return ComparisonConflict
}

func (d *Detector) lookup(ctx context.Context, transactionID string) (*audit.Record, error) {
	if d.verdicts == nil {
		return nil, errNoVerdictIndex
	}
	var rec *audit.Record
	err := retry.Do(ctx, d.attempts, d.delay, func() error {
		found, err := d.verdicts.Lookup(ctx, transactionID)
		if err != nil {
			return err
		}
		rec = found
		return nil
	})
	return rec, err
}

func reasonStrings(reasons []decision.Reason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = string(r)
	}
	return out
}
