package decision

import (
	"context"
	"time"

	"sherlock/internal/decision/ports"
	"sherlock/internal/model"
	"sherlock/internal/platform/tracing"
)

// Evaluator is the scoring pipeline shared by the production and shadow
// paths: features, model score under a latency budget, then the rules.
type Evaluator struct {
	name   string
	model  model.Model
	budget time.Duration
}

// NewEvaluator binds a model to its scoring budget. A zero budget means the
// caller's context alone bounds scoring.
func NewEvaluator(name string, m model.Model, budget time.Duration) *Evaluator {
	return &Evaluator{name: name, model: m, budget: budget}
}

func (e *Evaluator) Name() string {
	return e.name
}

func (e *Evaluator) ModelVersion() string {
	return e.model.Version()
}

// Input is everything one evaluation needs.
type Input struct {
	Transaction   Transaction
	Activity      ports.Activity
	VelocityKnown bool
	FraudRing     bool
}

// Verdict is one path's evaluation of a transaction.
type Verdict struct {
	Outcome      Outcome
	RiskScore    float64
	Reasons      []Reason
	ModelVersion string
	// ModelErr is set when scoring failed and the score fell back to 0.
	ModelErr error
}

// Evaluate never fails: a scoring error yields score 0 and a
// MODEL_UNAVAILABLE annotation after the rule reasons.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) Verdict {
	velocity, changed := 0, false
	if in.VelocityKnown {
		velocity, changed = in.Activity.Velocity, in.Activity.LocationChanged
	}
	amount, _ := in.Transaction.Amount.Float64()
	features := model.NewFeatures(amount, velocity, changed, in.Transaction.Merchant, in.Transaction.Location)

	score, err := e.score(ctx, features)

	outcome, reasons := EvaluateSignals(Signals{
		Velocity:        velocity,
		VelocityKnown:   in.VelocityKnown,
		LocationChanged: changed,
		RiskScore:       score,
		FraudRing:       in.FraudRing,
	})
	if err != nil {
		reasons = append(reasons, ReasonModelUnavailable)
	}

	return Verdict{
		Outcome:      outcome,
		RiskScore:    score,
		Reasons:      reasons,
		ModelVersion: e.model.Version(),
		ModelErr:     err,
	}
}

func (e *Evaluator) score(ctx context.Context, f model.Features) (float64, error) {
	ctx, span := tracing.StartSpan(ctx, "model.score",
		tracing.ModelVersion(e.model.Version()),
	)
	defer span.End()

	if e.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.budget)
		defer cancel()
	}

	score, err := e.model.Score(ctx, f)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return score, nil
}
