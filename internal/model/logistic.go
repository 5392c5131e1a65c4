package model

import (
	"context"
	"fmt"
	"sort"
)

// LogisticParams is the serialized form of a logistic regression model.
type LogisticParams struct {
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

type weight struct {
	feature string
	value   float64
}

// Logistic is the lightweight production model: a weighted sum squashed
// through a sigmoid and scaled to [0,100].
type Logistic struct {
	version string
	bias    float64
	weights []weight
}

// NewLogistic validates params and builds the model.
func NewLogistic(version string, p LogisticParams) (*Logistic, error) {
	m := &Logistic{version: version, bias: p.Bias}
	for name, w := range p.Weights {
		if !knownFeature(name) {
			return nil, fmt.Errorf("logistic model %s: unknown feature %q", version, name)
		}
		m.weights = append(m.weights, weight{feature: name, value: w})
	}
	// Fixed summation order keeps scores bit-for-bit reproducible.
	sort.Slice(m.weights, func(i, j int) bool { return m.weights[i].feature < m.weights[j].feature })
	return m, nil
}

func (m *Logistic) Score(ctx context.Context, f Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	z := m.bias
	for _, w := range m.weights {
		v, _ := f.Value(w.feature)
		z += w.value * v
	}
	return clampScore(100 * sigmoid(z)), nil
}

func (m *Logistic) Version() string {
	return m.version
}
