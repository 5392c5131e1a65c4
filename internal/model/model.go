// Package model holds the risk scoring models, the registry that loads them,
// and the lazy load-once wrapper the serving process shares across requests.
package model

import (
	"context"
	"errors"
	"math"
)

// ErrUnavailable is returned when a model cannot be loaded or cannot score
// within the caller's budget.
var ErrUnavailable = errors.New("model unavailable")

// Model scores a feature vector into [0,100]. Implementations are
// deterministic, hold no mutable state after construction, and are safe for
// concurrent use.
type Model interface {
	Score(ctx context.Context, f Features) (float64, error)
	Version() string
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return 0
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}
