package decision

const (
	velocityLimit  = 5
	riskScoreLimit = 80
)

// Evaluate applies the fraud rules to one transaction.
// This is pure domain logic - no I/O, no side effects.
func Evaluate(velocity int, locationChanged bool, riskScore float64) (Outcome, []Reason) {
	return EvaluateSignals(Signals{
		Velocity:        velocity,
		VelocityKnown:   true,
		LocationChanged: locationChanged,
		RiskScore:       riskScore,
	})
}

// EvaluateSignals runs every rule independently, in a fixed order. The
// outcome is BLOCK iff at least one rule fired. Velocity rules are skipped
// when the velocity is unknown.
func EvaluateSignals(s Signals) (Outcome, []Reason) {
	reasons := []Reason{}

	if s.VelocityKnown {
		if s.Velocity > velocityLimit {
			reasons = append(reasons, ReasonHighVelocity)
		}
		if s.LocationChanged && s.Velocity > 1 {
			reasons = append(reasons, ReasonImpossibleTravel)
		}
	}
	if s.RiskScore > riskScoreLimit {
		reasons = append(reasons, ReasonHighRiskScore)
	}
	if s.FraudRing {
		reasons = append(reasons, ReasonFraudRing)
	}

	if len(reasons) > 0 {
		return OutcomeBlock, reasons
	}
	return OutcomeAllow, reasons
}
