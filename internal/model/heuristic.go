package model

import "context"

// Heuristic scores from velocity signals alone: 50 + 5 per transaction in the
// window + 20 when the location changed. Useful as an explicit artifact when no
// trained model is available.
type Heuristic struct {
	version string
}

func NewHeuristic(version string) *Heuristic {
	return &Heuristic{version: version}
}

func (m *Heuristic) Score(ctx context.Context, f Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	score := 50 + 5*float64(f.Velocity)
	if f.LocationChanged {
		score += 20
	}
	return clampScore(score), nil
}

func (m *Heuristic) Version() string {
	return m.version
}
