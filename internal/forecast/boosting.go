package forecast

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// BoostParams configures gradient-boosted regression trees.
type BoostParams struct {
	Rounds         int     `json:"rounds"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

// GradientBoosting fits trees to squared-error residuals.
type GradientBoosting struct {
	Params BoostParams `json:"params"`
	Init   float64     `json:"init"`
	Trees  []Tree      `json:"trees"`
}

func FitGradientBoosting(ctx context.Context, X [][]float64, y []float64, params BoostParams) (*GradientBoosting, error) {
	if params.Rounds <= 0 || params.LearningRate <= 0 {
		return nil, fmt.Errorf("boosting: rounds and learning rate must be positive")
	}
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("boosting: %d rows for %d targets", len(X), len(y))
	}

	m := &GradientBoosting{Params: params, Init: stat.Mean(y, nil)}
	current := make([]float64, len(y))
	for i := range current {
		current[i] = m.Init
	}
	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}
	residual := make([]float64, len(y))
	treeParams := TreeParams{MaxDepth: params.MaxDepth, MinSamplesLeaf: params.MinSamplesLeaf}

	for round := 0; round < params.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range y {
			residual[i] = y[i] - current[i]
		}
		tree := fitTree(X, residual, all, treeParams)
		for i := range current {
			current[i] += params.LearningRate * tree.Predict(X[i])
		}
		m.Trees = append(m.Trees, tree)
	}
	return m, nil
}

func (m *GradientBoosting) Predict(x []float64) float64 {
	v := m.Init
	for i := range m.Trees {
		v += m.Params.LearningRate * m.Trees[i].Predict(x)
	}
	return v
}

func (m *GradientBoosting) validate(features int) error {
	if len(m.Trees) == 0 {
		return fmt.Errorf("booster has no trees")
	}
	if m.Params.LearningRate <= 0 {
		return fmt.Errorf("booster learning rate must be positive")
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(features); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
