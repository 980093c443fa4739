package forecast

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestParams configures a bagged-tree ensemble.
type ForestParams struct {
	NumTrees int
	MaxDepth int
	Seed     int64
}

// Forest averages bootstrap-trained regression trees.
type Forest struct {
	Params ForestParams `json:"params"`
	Trees  []Tree       `json:"trees"`
}

// FitForest grows params.NumTrees trees in parallel. Every tree draws its
// bootstrap sample from a seed fixed up front, so the result does not depend
// on scheduling.
func FitForest(ctx context.Context, X [][]float64, y []float64, params ForestParams) (*Forest, error) {
	if params.NumTrees <= 0 {
		return nil, fmt.Errorf("forest: num trees must be positive")
	}
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("forest: %d rows for %d targets", len(X), len(y))
	}

	seeds := make([]int64, params.NumTrees)
	rng := rand.New(rand.NewSource(params.Seed))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	f := &Forest{Params: params, Trees: make([]Tree, params.NumTrees)}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range f.Trees {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			treeRng := rand.New(rand.NewSource(seeds[i]))
			f.Trees[i] = fitTree(X, y, bootstrap(treeRng, len(X)), TreeParams{MaxDepth: params.MaxDepth, MinSamplesLeaf: 1})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

func (f *Forest) validate(features int) error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(features); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
