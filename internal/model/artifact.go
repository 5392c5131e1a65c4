package model

import "fmt"

// Kind selects the model implementation an artifact describes.
type Kind string

const (
	KindLogistic     Kind = "logistic"
	KindTreeEnsemble Kind = "tree_ensemble"
	KindHeuristic    Kind = "heuristic"
)

// Artifact is the registry's storage format for one model version.
type Artifact struct {
	Name      string              `json:"name"`
	Version   string              `json:"version"`
	Kind      Kind                `json:"kind"`
	Logistic  *LogisticParams     `json:"logistic,omitempty"`
	Trees     *TreeEnsembleParams `json:"trees,omitempty"`
	TrainedAt string              `json:"trained_at,omitempty"`
}

// Build constructs the model an artifact describes.
func Build(a Artifact) (Model, error) {
	if a.Version == "" {
		return nil, fmt.Errorf("artifact %q: version is required", a.Name)
	}
	switch a.Kind {
	case KindLogistic:
		if a.Logistic == nil {
			return nil, fmt.Errorf("artifact %s: missing logistic params", a.Version)
		}
		return NewLogistic(a.Version, *a.Logistic)
	case KindTreeEnsemble:
		if a.Trees == nil {
			return nil, fmt.Errorf("artifact %s: missing tree params", a.Version)
		}
		return NewTreeEnsemble(a.Version, *a.Trees)
	case KindHeuristic:
		return NewHeuristic(a.Version), nil
	default:
		return nil, fmt.Errorf("artifact %s: unknown kind %q", a.Version, a.Kind)
	}
}
