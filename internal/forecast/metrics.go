package forecast

import "math"

// Metrics are held-out accuracy figures for one prediction series.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Evaluate computes MAE, RMSE and R². When y has no variance, R² is 1 for a
// perfect fit and 0 otherwise.
func Evaluate(yTrue, yPred []float64) Metrics {
	n := len(yTrue)
	if n == 0 || n != len(yPred) {
		return Metrics{}
	}
	var absSum, sqSum, mean float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		absSum += math.Abs(d)
		sqSum += d * d
		mean += yTrue[i]
	}
	mean /= float64(n)
	var tot float64
	for _, v := range yTrue {
		tot += (v - mean) * (v - mean)
	}

	m := Metrics{
		MAE:  absSum / float64(n),
		RMSE: math.Sqrt(sqSum / float64(n)),
	}
	switch {
	case tot > 0:
		m.R2 = 1 - sqSum/tot
	case sqSum == 0:
		m.R2 = 1
	}
	return m
}
