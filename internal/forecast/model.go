package forecast

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Prediction series names, shared by metrics and artifact files.
const (
	ModelLinear   = "linear_regression"
	ModelForest   = "random_forest"
	ModelBoosted  = "lightgbm"
	ModelEnsemble = "ensemble"
)

// Booster kinds for the third regressor.
const (
	BoosterGBT    = "gbt"
	BoosterForest = "forest"
)

var tracer = otel.Tracer("github.com/andresuchdata/freshflow-go/internal/forecast")

// Regressor predicts one value from an aligned feature vector.
type Regressor interface {
	Predict(x []float64) float64
}

// TrainOptions configures one training run.
type TrainOptions struct {
	TestSize float64
	Seed     int64
	// SelectK keeps the k best columns by F-statistic; 0 keeps all.
	SelectK int
	Booster string
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{TestSize: 0.2, Seed: 42, SelectK: 0, Booster: BoosterGBT}
}

// Model is a trained ensemble. It is never mutated after Train or Load.
type Model struct {
	Features    []string
	Scaler      Scaler
	Linear      *LinearModel
	Forest      *Forest
	Booster     Regressor
	BoosterKind string
	Metrics     map[string]Metrics
	Manifest    Manifest
}

// Manifest records how a bundle was produced.
type Manifest struct {
	Version     int       `json:"version"`
	TrainedAt   time.Time `json:"trained_at"`
	TrainRows   int       `json:"train_rows"`
	TestRows    int       `json:"test_rows"`
	BoosterKind string    `json:"booster"`
	Seed        int64     `json:"seed"`
}

const manifestVersion = 1

// Prediction holds every model's output for one row, all non-negative.
type Prediction struct {
	Linear   float64 `json:"linear_regression"`
	Forest   float64 `json:"random_forest"`
	Boosted  float64 `json:"lightgbm"`
	Ensemble float64 `json:"ensemble"`
}

// TrainResult is the trained model plus its held-out predictions.
type TrainResult struct {
	Model       *Model
	TestTargets []float64
	TestPreds   map[string][]float64
}

// Train splits the matrix, optionally selects features on the training split,
// fits the linear, bagged and boosted regressors and scores all of them on
// the held-out split.
func Train(ctx context.Context, X [][]float64, y []float64, columns []string, opts TrainOptions) (*TrainResult, error) {
	ctx, span := tracer.Start(ctx, "forecast.train")
	defer span.End()

	if len(X) != len(y) {
		return nil, &domain.ParamError{Name: "y", Value: len(y), Reason: fmt.Sprintf("expected %d targets", len(X))}
	}
	if len(X) > 0 && len(X[0]) != len(columns) {
		return nil, &domain.ParamError{Name: "columns", Value: len(columns), Reason: fmt.Sprintf("matrix has %d columns", len(X[0]))}
	}
	if opts.SelectK < 0 {
		return nil, &domain.ParamError{Name: "select_k", Value: opts.SelectK, Reason: "must not be negative"}
	}
	booster := strings.ToLower(strings.TrimSpace(opts.Booster))
	if booster == "" {
		booster = BoosterGBT
	}
	if booster != BoosterGBT && booster != BoosterForest {
		return nil, &domain.ParamError{Name: "booster", Value: opts.Booster, Reason: "must be gbt or forest"}
	}

	trainIdx, testIdx, err := Split(len(X), opts.TestSize, opts.Seed)
	if err != nil {
		return nil, err
	}
	xTrain, yTrain := takeRows(X, trainIdx), takeValues(y, trainIdx)
	xTest, yTest := takeRows(X, testIdx), takeValues(y, testIdx)

	selected := SelectKBest(xTrain, yTrain, opts.SelectK)
	features := make([]string, len(selected))
	for i, c := range selected {
		features[i] = columns[c]
	}
	xTrain = selectColumns(xTrain, selected)
	xTest = selectColumns(xTest, selected)

	span.SetAttributes(
		attribute.Int("train_rows", len(xTrain)),
		attribute.Int("test_rows", len(xTest)),
		attribute.StringSlice("features", features),
	)

	scaler := FitScaler(xTrain)
	model := &Model{Features: features, Scaler: scaler, BoosterKind: booster}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lin, err := FitLinear(scaler.TransformAll(xTrain), yTrain)
		if err != nil {
			return err
		}
		model.Linear = lin
		return nil
	})
	g.Go(func() error {
		forest, err := FitForest(gctx, xTrain, yTrain, ForestParams{NumTrees: 100, MaxDepth: 12, Seed: opts.Seed})
		if err != nil {
			return fmt.Errorf("random forest: %w", err)
		}
		model.Forest = forest
		return nil
	})
	g.Go(func() error {
		if booster == BoosterForest {
			fallback, err := FitForest(gctx, xTrain, yTrain, ForestParams{NumTrees: 80, MaxDepth: 10, Seed: opts.Seed + 1})
			if err != nil {
				return fmt.Errorf("fallback forest: %w", err)
			}
			model.Booster = fallback
			return nil
		}
		gbt, err := FitGradientBoosting(gctx, xTrain, yTrain, BoostParams{Rounds: 100, MaxDepth: 8, LearningRate: 0.1, MinSamplesLeaf: 20})
		if err != nil {
			return fmt.Errorf("gradient boosting: %w", err)
		}
		model.Booster = gbt
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	preds := map[string][]float64{
		ModelLinear:   make([]float64, len(xTest)),
		ModelForest:   make([]float64, len(xTest)),
		ModelBoosted:  make([]float64, len(xTest)),
		ModelEnsemble: make([]float64, len(xTest)),
	}
	for i, row := range xTest {
		p := model.predictAligned(row)
		preds[ModelLinear][i] = p.Linear
		preds[ModelForest][i] = p.Forest
		preds[ModelBoosted][i] = p.Boosted
		preds[ModelEnsemble][i] = p.Ensemble
	}

	model.Metrics = make(map[string]Metrics, len(preds))
	for name, series := range preds {
		model.Metrics[name] = Evaluate(yTest, series)
		log.Info().
			Str("model", name).
			Float64("mae", model.Metrics[name].MAE).
			Float64("rmse", model.Metrics[name].RMSE).
			Float64("r2", model.Metrics[name].R2).
			Msg("forecast: held-out metrics")
	}
	model.Manifest = Manifest{
		Version:     manifestVersion,
		TrainedAt:   time.Now().UTC(),
		TrainRows:   len(xTrain),
		TestRows:    len(xTest),
		BoosterKind: booster,
		Seed:        opts.Seed,
	}

	return &TrainResult{Model: model, TestTargets: yTest, TestPreds: preds}, nil
}

// Align reindexes named feature values to the model's selected columns.
// Missing columns become 0; extra columns are dropped.
func (m *Model) Align(values map[string]float64) []float64 {
	out := make([]float64, len(m.Features))
	for i, name := range m.Features {
		v, ok := values[name]
		if !ok || math.IsNaN(v) {
			v = 0
		}
		out[i] = v
	}
	return out
}

// Predict aligns values to the trained columns and returns every model's
// non-negative prediction.
func (m *Model) Predict(values map[string]float64) (Prediction, error) {
	if m == nil || m.Linear == nil || m.Forest == nil || m.Booster == nil {
		return Prediction{}, domain.ErrNotTrained
	}
	p := m.predictAligned(m.Align(values))
	for _, v := range []float64{p.Linear, p.Forest, p.Boosted, p.Ensemble} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Prediction{}, fmt.Errorf("forecast: non-finite prediction")
		}
	}
	return p, nil
}

func (m *Model) predictAligned(x []float64) Prediction {
	p := Prediction{
		Linear:  clip(m.Linear.Predict(m.Scaler.Transform(x))),
		Forest:  clip(m.Forest.Predict(x)),
		Boosted: clip(m.Booster.Predict(x)),
	}
	p.Ensemble = clip((p.Linear + p.Forest + p.Boosted) / 3)
	return p
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
