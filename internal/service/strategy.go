package service

import "github.com/andresuchdata/freshflow-go/internal/forecast"

// PredictionStrategy is chosen once when an engine is built: either a
// trained ensemble or the moving-average baseline.
type PredictionStrategy interface {
	Name() string
	isStrategy()
}

// Trained predicts with a loaded ensemble.
type Trained struct {
	Model *forecast.Model
}

func (Trained) Name() string { return "trained" }
func (Trained) isStrategy()  {}

// Baseline predicts the trailing moving average.
type Baseline struct{}

func (Baseline) Name() string { return "baseline" }
func (Baseline) isStrategy()  {}
