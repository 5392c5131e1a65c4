package shadow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"sherlock/internal/decision"
	"sherlock/internal/decision/ports"
	"sherlock/pkg/platform/audit"
)

// CounterMode selects where the shadow path gets its velocity counter.
type CounterMode string

const (
	// CounterReuse reads the counter production already updated. Nothing is
	// written, so no transaction is counted twice.
	CounterReuse CounterMode = "reuse"
	// CounterIncrement keeps an independent counter in a separate keyspace.
	CounterIncrement CounterMode = "increment"
)

// ParseCounterMode accepts "reuse" and "increment".
func ParseCounterMode(s string) (CounterMode, error) {
	switch m := CounterMode(s); m {
	case CounterReuse, CounterIncrement:
		return m, nil
	}
	return "", fmt.Errorf("unknown shadow counter mode %q", s)
}

// DeviceCounter reads how many users share a device without linking.
type DeviceCounter interface {
	Count(ctx context.Context, deviceID string) (int, error)
}

// Processor evaluates one envelope with the shadow evaluator and hands the
// verdict to the detector. In reuse mode state must read the production store
// through a client of its own, so shadow failures never trip production's
// breaker; in increment mode it must be an isolated store.
type Processor struct {
	evaluator *decision.Evaluator
	state     ports.StatePort
	mode      CounterMode
	window    time.Duration
	detector  *Detector

	devices        DeviceCounter
	maxDeviceUsers int

	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type ProcessorOption func(*Processor)

func WithCounterMode(mode CounterMode) ProcessorOption {
	return func(p *Processor) {
		p.mode = mode
	}
}

func WithWindow(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.window = d
		}
	}
}

func WithDeviceCounter(devices DeviceCounter, maxUsers int) ProcessorOption {
	return func(p *Processor) {
		p.devices = devices
		p.maxDeviceUsers = maxUsers
	}
}

func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

func WithProcessorMetrics(m *Metrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = m
	}
}

func NewProcessor(evaluator *decision.Evaluator, state ports.StatePort, detector *Detector, opts ...ProcessorOption) *Processor {
	p := &Processor{
		evaluator: evaluator,
		state:     state,
		mode:      CounterReuse,
		window:    60 * time.Second,
		detector:  detector,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process evaluates the transaction and compares the verdict with
// production. It returns an error only when the envelope cannot be
// evaluated at all.
func (p *Processor) Process(ctx context.Context, env Envelope) error {
	tx := decision.TransactionFromMessage(env.Transaction)
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("shadow envelope %s: %w", tx.TransactionID, err)
	}

	var (
		prod      *audit.Record
		lookupErr error
	)
	if p.detector != nil {
		prod, lookupErr = p.detector.Production(ctx, tx.TransactionID)
	}

	activity, known := p.activity(ctx, tx, prod)
	verdict := p.evaluator.Evaluate(ctx, decision.Input{
		Transaction:   tx,
		Activity:      activity,
		VelocityKnown: known,
		FraudRing:     p.fraudRing(ctx, tx),
	})
	if verdict.ModelErr != nil {
		p.logger.WarnContext(ctx, "shadow model unavailable",
			"transaction_id", tx.TransactionID,
			"model_version", verdict.ModelVersion,
			"error", verdict.ModelErr,
		)
	}

	if !env.DispatchedAt.IsZero() {
		p.metrics.observeEvaluation(p.now().Sub(env.DispatchedAt).Seconds())
	}
	if p.detector != nil {
		p.detector.Judge(ctx, tx, verdict, prod, lookupErr)
	}
	return nil
}

// activity in reuse mode prefers the signals recorded with the production
// verdict, which are exact for this transaction however far the worker lags.
// Peek is the fallback when that record is missing.
func (p *Processor) activity(ctx context.Context, tx decision.Transaction, prod *audit.Record) (ports.Activity, bool) {
	if p.mode == CounterReuse && prod != nil {
		if slices.Contains(prod.Reasons, string(decision.ReasonStateUnavailable)) {
			return ports.Activity{}, false
		}
		return ports.Activity{Velocity: prod.Velocity, LocationChanged: prod.LocationChanged}, true
	}

	var (
		act ports.Activity
		err error
	)
	switch p.mode {
	case CounterIncrement:
		act, err = p.state.RecordAndFetch(ctx, tx.UserID, tx.Location, p.window, tx.TransactionID)
	default:
		act, err = p.state.Peek(ctx, tx.UserID)
	}
	if err != nil {
		p.logger.WarnContext(ctx, "shadow state read failed, evaluating without velocity",
			"transaction_id", tx.TransactionID,
			"mode", p.mode,
			"error", err,
		)
		return ports.Activity{}, false
	}
	return act, true
}

func (p *Processor) fraudRing(ctx context.Context, tx decision.Transaction) bool {
	if p.devices == nil || tx.DeviceID == "" {
		return false
	}
	n, err := p.devices.Count(ctx, tx.DeviceID)
	if err != nil {
		p.logger.WarnContext(ctx, "shadow device count failed",
			"transaction_id", tx.TransactionID,
			"error", err,
		)
		return false
	}
	return n > p.maxDeviceUsers
}
