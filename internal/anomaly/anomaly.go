// Package anomaly flags unusual days in a demand history with an isolation
// forest.
package anomaly

import (
	"errors"
	"math"

	"github.com/andresuchdata/freshflow-go/internal/forecast"
	goiforest "github.com/narumiruna/go-iforest/pkg/iforest"
)

// MinPoints is the shortest series that gets scored.
const MinPoints = 16

var ErrTooShort = errors.New("anomaly: series too short to score")

type Options struct {
	NumTrees   int
	SampleSize int
}

func DefaultOptions() Options {
	return Options{NumTrees: 100, SampleSize: 256}
}

// Score returns one score in [0, 1] per day; higher is more anomalous.
// Each day is described by its quantity, the change from the previous day
// and the gap to the trailing weekly mean.
func Score(quantities []float64, opts Options) ([]float64, error) {
	if len(quantities) < MinPoints {
		return nil, ErrTooShort
	}
	if opts.NumTrees <= 0 {
		opts.NumTrees = DefaultOptions().NumTrees
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultOptions().SampleSize
	}
	if opts.SampleSize > len(quantities) {
		opts.SampleSize = len(quantities)
	}

	samples := describe(quantities)
	scaler := forecast.FitScaler(samples)
	normalized := scaler.TransformAll(samples)

	forest := goiforest.NewWithOptions(goiforest.Options{
		DetectionType: goiforest.DetectionTypeThreshold,
		Threshold:     0.6,
		NumTrees:      opts.NumTrees,
		SampleSize:    opts.SampleSize,
	})
	forest.Fit(normalized)

	scores := forest.Score(normalized)
	out := make([]float64, len(quantities))
	for i := range out {
		if i < len(scores) {
			out[i] = clamp(scores[i])
		}
	}
	return out, nil
}

func describe(q []float64) [][]float64 {
	const window = 7
	out := make([][]float64, len(q))
	var sum float64
	for i, v := range q {
		var delta, gap float64
		if i > 0 {
			delta = v - q[i-1]
		}
		n := i
		if n > window {
			n = window
			sum -= q[i-window-1]
		}
		if n > 0 {
			gap = v - sum/float64(n)
		}
		out[i] = []float64{v, delta, gap}
		sum += v
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
