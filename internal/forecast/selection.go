package forecast

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FScores returns the univariate regression F-statistic of every column
// against y. Columns with no variance score 0.
func FScores(X [][]float64, y []float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	n := float64(len(X))
	p := len(X[0])
	scores := make([]float64, p)
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		r := stat.Correlation(col, y, nil)
		r2 := r * r
		if math.IsNaN(r2) || n <= 2 {
			continue
		}
		if r2 >= 1 {
			scores[j] = math.MaxFloat64
			continue
		}
		scores[j] = r2 / (1 - r2) * (n - 2)
	}
	return scores
}

// SelectKBest returns the indices of the k highest-scoring columns in their
// original order. Ties keep the earlier column.
func SelectKBest(X [][]float64, y []float64, k int) []int {
	scores := FScores(X, y)
	p := len(scores)
	if k <= 0 || k >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}

	order := make([]int, p)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	chosen := append([]int(nil), order[:k]...)
	sort.Ints(chosen)
	return chosen
}
