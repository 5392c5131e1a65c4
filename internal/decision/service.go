package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"sherlock/internal/decision/metrics"
	"sherlock/internal/decision/ports"
	"sherlock/internal/platform/tracing"
	dErrors "sherlock/pkg/domain-errors"
	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/sentinel"
	"sherlock/pkg/requestcontext"
)

const (
	defaultWindow         = 60 * time.Second
	defaultDeadline       = 100 * time.Millisecond
	defaultMaxDeviceUsers = 3
)

// Service runs the synchronous decision path: validate, record activity,
// score, apply rules, then hand the result to audit and shadow without
// waiting on either.
type Service struct {
	state     ports.StatePort
	evaluator *Evaluator
	audit     ports.AuditPort
	shadow    ports.ShadowPort
	verdicts  ports.VerdictLookup
	devices   ports.DeviceGraphPort
	logger    *slog.Logger
	metrics   *metrics.Metrics

	window         time.Duration
	deadline       time.Duration
	lenientState   bool
	maxDeviceUsers int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAudit(a ports.AuditPort) Option {
	return func(s *Service) {
		s.audit = a
	}
}

func WithShadow(sh ports.ShadowPort) Option {
	return func(s *Service) {
		s.shadow = sh
	}
}

// WithVerdicts enables answering replayed transactions with their recorded
// decision.
func WithVerdicts(v ports.VerdictLookup) Option {
	return func(s *Service) {
		s.verdicts = v
	}
}

// WithDeviceGraph enables the fraud-ring rule: a device linked to more than
// maxUsers users blocks.
func WithDeviceGraph(devices ports.DeviceGraphPort, maxUsers int) Option {
	return func(s *Service) {
		s.devices = devices
		if maxUsers > 0 {
			s.maxDeviceUsers = maxUsers
		}
	}
}

// WithWindow sets the rolling velocity window.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithDeadline bounds the whole decision. Zero disables the bound.
func WithDeadline(d time.Duration) Option {
	return func(s *Service) {
		s.deadline = d
	}
}

// WithLenientState decides without velocity rules when the state store is
// unavailable, instead of failing the request.
func WithLenientState(lenient bool) Option {
	return func(s *Service) {
		s.lenientState = lenient
	}
}

func New(state ports.StatePort, evaluator *Evaluator, opts ...Option) (*Service, error) {
	if state == nil {
		return nil, errors.New("state store is required")
	}
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}

	svc := &Service{
		state:          state,
		evaluator:      evaluator,
		logger:         slog.Default(),
		window:         defaultWindow,
		deadline:       defaultDeadline,
		maxDeviceUsers: defaultMaxDeviceUsers,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Decide evaluates one transaction. Only invalid input, an unavailable state
// store in strict mode, and an unresolvable replay fail; every other fault
// degrades the decision instead.
func (s *Service) Decide(ctx context.Context, tx Transaction) (*Decision, error) {
	start := time.Now()

	tx.Normalize()
	ctx, span := tracing.StartSpan(ctx, "decision.decide",
		tracing.TransactionID(tx.TransactionID),
		tracing.UserID(tx.UserID),
	)
	defer span.End()

	if err := tx.Validate(); err != nil {
		s.metrics.IncrementRejected("invalid")
		span.SetStatus(codes.Error, "invalid transaction")
		return nil, err
	}
	if tx.ReceivedAt.IsZero() {
		tx.ReceivedAt = requestcontext.Now(ctx)
	}

	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	activity, stateErr := s.recordActivity(ctx, tx)
	if stateErr != nil {
		if !s.lenientState {
			s.metrics.IncrementRejected("state_unavailable")
			span.RecordError(stateErr)
			span.SetStatus(codes.Error, "state store unavailable")
			s.logger.ErrorContext(ctx, "state store unavailable, rejecting decision",
				"transaction_id", tx.TransactionID,
				"user_id", tx.UserID,
				"error", stateErr,
			)
			return nil, dErrors.Wrap(stateErr, dErrors.CodeUnavailable, "cannot decide without velocity state")
		}
		s.metrics.IncrementDegraded("state")
		s.logger.WarnContext(ctx, "state store unavailable, deciding without velocity",
			"transaction_id", tx.TransactionID,
			"user_id", tx.UserID,
			"error", stateErr,
		)
	} else if activity.Replay {
		return s.replay(ctx, tx, start)
	}

	verdict := s.evaluator.Evaluate(ctx, Input{
		Transaction:   tx,
		Activity:      activity,
		VelocityKnown: stateErr == nil,
		FraudRing:     s.fraudRing(ctx, tx),
	})
	if verdict.ModelErr != nil {
		s.metrics.IncrementDegraded("model")
		s.logger.WarnContext(ctx, "model unavailable, deciding on rules only",
			"transaction_id", tx.TransactionID,
			"model_version", verdict.ModelVersion,
			"error", verdict.ModelErr,
		)
	}

	reasons := verdict.Reasons
	if stateErr != nil {
		reasons = append(reasons, ReasonStateUnavailable)
	}

	d := &Decision{
		TransactionID: tx.TransactionID,
		UserID:        tx.UserID,
		Outcome:       verdict.Outcome,
		RiskScore:     verdict.RiskScore,
		Reasons:       reasons,
		Velocity:      activity.Velocity,
		ModelVersion:  verdict.ModelVersion,
		Degraded:      stateErr != nil || verdict.ModelErr != nil,
		DecidedAt:     requestcontext.Now(ctx),
		Latency:       time.Since(start),
	}

	s.metrics.ObserveDecision(string(d.Outcome), d.ReasonStrings(), d.Latency)
	s.emitAudit(ctx, tx, activity, d)
	s.dispatchShadow(ctx, tx)

	return d, nil
}

func (s *Service) recordActivity(ctx context.Context, tx Transaction) (ports.Activity, error) {
	ctx, span := tracing.StartSpan(ctx, "state.record")
	defer span.End()

	start := time.Now()
	activity, err := s.state.RecordAndFetch(ctx, tx.UserID, tx.Location, s.window, tx.TransactionID)
	s.metrics.ObserveStateLatency(time.Since(start))
	if err != nil {
		span.RecordError(err)
		return ports.Activity{}, fmt.Errorf("%w: %w", ErrStateUnavailable, err)
	}
	return activity, nil
}

// replay answers a retried transaction with the decision already recorded
// for it. The state store did not count the retry.
func (s *Service) replay(ctx context.Context, tx Transaction, start time.Time) (*Decision, error) {
	s.metrics.IncrementReplay()
	conflict := dErrors.Wrap(ErrDuplicateTransaction, dErrors.CodeConflict, "transaction already processed")
	if s.verdicts == nil {
		return nil, conflict
	}

	rec, err := s.verdicts.Lookup(ctx, tx.TransactionID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "verdict lookup failed for replayed transaction",
				"transaction_id", tx.TransactionID,
				"error", err,
			)
		}
		return nil, conflict
	}

	d := decisionFromRecord(rec)
	d.Replayed = true
	d.Reasons = append(d.Reasons, ReasonIdempotentReplay)
	d.Latency = time.Since(start)

	s.logger.InfoContext(ctx, "replayed recorded decision",
		"transaction_id", tx.TransactionID,
		"outcome", d.Outcome,
	)
	return d, nil
}

// fraudRing links the device to the user and reports whether the device is
// now shared by too many users. Graph failures are ignored.
func (s *Service) fraudRing(ctx context.Context, tx Transaction) bool {
	if s.devices == nil || tx.DeviceID == "" {
		return false
	}
	linked, err := s.devices.Link(ctx, tx.DeviceID, tx.UserID)
	if err != nil {
		s.metrics.IncrementDegraded("device_graph")
		s.logger.WarnContext(ctx, "device graph unavailable",
			"transaction_id", tx.TransactionID,
			"error", err,
		)
		return false
	}
	return linked > s.maxDeviceUsers
}

func (s *Service) emitAudit(ctx context.Context, tx Transaction, activity ports.Activity, d *Decision) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(context.WithoutCancel(ctx), recordFor(ctx, tx, activity, d)); err != nil {
		s.metrics.IncrementDegraded("audit")
		s.logger.WarnContext(ctx, "audit emit failed",
			"transaction_id", tx.TransactionID,
			"error", err,
		)
	}
}

func (s *Service) dispatchShadow(ctx context.Context, tx Transaction) {
	if s.shadow == nil {
		return
	}
	if err := s.shadow.Dispatch(context.WithoutCancel(ctx), tx.Message()); err != nil {
		s.metrics.IncrementDegraded("shadow")
		s.logger.WarnContext(ctx, "shadow dispatch dropped",
			"transaction_id", tx.TransactionID,
			"error", err,
		)
	}
}

func recordFor(ctx context.Context, tx Transaction, activity ports.Activity, d *Decision) audit.Record {
	return audit.Record{
		TransactionID:   d.TransactionID,
		UserID:          d.UserID,
		Amount:          tx.Amount,
		Location:        tx.Location,
		Merchant:        tx.Merchant,
		DeviceID:        tx.DeviceID,
		Outcome:         string(d.Outcome),
		RiskScore:       d.RiskScore,
		Reasons:         d.ReasonStrings(),
		Velocity:        d.Velocity,
		LocationChanged: activity.LocationChanged,
		ModelVersion:    d.ModelVersion,
		Degraded:        d.Degraded,
		LatencyMS:       float64(d.Latency.Microseconds()) / 1000,
		RequestID:       requestcontext.RequestID(ctx),
		DecidedAt:       d.DecidedAt,
	}
}

func decisionFromRecord(rec *audit.Record) *Decision {
	reasons := make([]Reason, 0, len(rec.Reasons)+1)
	for _, r := range rec.Reasons {
		reasons = append(reasons, Reason(r))
	}
	return &Decision{
		TransactionID: rec.TransactionID,
		UserID:        rec.UserID,
		Outcome:       Outcome(rec.Outcome),
		RiskScore:     rec.RiskScore,
		Reasons:       reasons,
		Velocity:      rec.Velocity,
		ModelVersion:  rec.ModelVersion,
		Degraded:      rec.Degraded,
		DecidedAt:     rec.DecidedAt,
	}
}
