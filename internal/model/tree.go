package model

import (
	"context"
	"errors"
	"fmt"
)

// TreeEnsembleParams is the serialized form of a boosted tree ensemble.
type TreeEnsembleParams struct {
	BaseMargin float64 `json:"base_margin"`
	Trees      []Tree  `json:"trees"`
}

// Tree is a flattened binary tree; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is either a split (Feature < Threshold goes Left) or a leaf.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   string  `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// TreeEnsemble is the heavier shadow model: the margins of all trees are
// summed with the base margin, squashed through a sigmoid, and scaled.
type TreeEnsemble struct {
	version string
	base    float64
	trees   []Tree
}

// NewTreeEnsemble validates the tree structure. Children must point forward,
// which rules out cycles and guarantees every walk terminates.
func NewTreeEnsemble(version string, p TreeEnsembleParams) (*TreeEnsemble, error) {
	if len(p.Trees) == 0 {
		return nil, fmt.Errorf("tree ensemble %s: no trees", version)
	}
	for ti, t := range p.Trees {
		if err := validateTree(t); err != nil {
			return nil, fmt.Errorf("tree ensemble %s: tree %d: %w", version, ti, err)
		}
	}
	return &TreeEnsemble{version: version, base: p.BaseMargin, trees: p.Trees}, nil
}

func validateTree(t Tree) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if !knownFeature(n.Feature) {
			return fmt.Errorf("node %d: unknown feature %q", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

func (m *TreeEnsemble) Score(ctx context.Context, f Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	margin := m.base
	for _, t := range m.trees {
		margin += t.walk(f)
	}
	return clampScore(100 * sigmoid(margin)), nil
}

func (m *TreeEnsemble) Version() string {
	return m.version
}

func (t Tree) walk(f Features) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		v, _ := f.Value(n.Feature)
		if v < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
