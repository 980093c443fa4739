package forecast

import (
	"math"
	"math/rand"

	"github.com/andresuchdata/freshflow-go/internal/domain"
)

// Split partitions row indices into a shuffled train/test split. The same
// seed always yields the same partition.
func Split(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, &domain.ParamError{Name: "test_size", Value: testSize, Reason: "must be in (0, 1)"}
	}
	nTest := int(math.Ceil(float64(n) * testSize))
	if n < 2 || nTest >= n {
		return nil, nil, &domain.ParamError{Name: "rows", Value: n, Reason: "need at least one train and one test row"}
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

func takeRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func takeValues(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

func selectColumns(X [][]float64, cols []int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		sel := make([]float64, len(cols))
		for k, c := range cols {
			sel[k] = row[c]
		}
		out[i] = sel
	}
	return out
}
