package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ridge keeps the normal equations solvable when a standardized column is
// constant.
const ridge = 1e-9

// LinearModel is an ordinary least squares fit with intercept.
type LinearModel struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// FitLinear fits y ~ X. X is expected to be standardized with training
// statistics, so its columns are centered and the intercept is the mean of y.
func FitLinear(X [][]float64, y []float64) (*LinearModel, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("linear: %d rows for %d targets", len(X), len(y))
	}
	n, p := len(X), len(X[0])
	if p == 0 {
		return nil, fmt.Errorf("linear: no feature columns")
	}

	colMeans := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			colMeans[j] += X[i][j]
		}
		colMeans[j] /= float64(n)
	}
	yMean := stat.Mean(y, nil)

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			a.Set(i, j, X[i][j]-colMeans[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	for j := 0; j < p; j++ {
		ata.Set(j, j, ata.At(j, j)+ridge)
	}
	var atb mat.VecDense
	atb.MulVec(a.T(), b)

	var beta mat.VecDense
	if err := beta.SolveVec(&ata, &atb); err != nil {
		return nil, fmt.Errorf("linear: solve normal equations: %w", err)
	}

	m := &LinearModel{Coef: make([]float64, p)}
	m.Intercept = yMean
	for j := 0; j < p; j++ {
		m.Coef[j] = beta.AtVec(j)
		m.Intercept -= m.Coef[j] * colMeans[j]
	}
	return m, nil
}

func (m *LinearModel) Predict(x []float64) float64 {
	v := m.Intercept
	for j, c := range m.Coef {
		v += c * x[j]
	}
	return v
}
