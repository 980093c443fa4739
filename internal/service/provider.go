package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/forecast"
	"github.com/andresuchdata/freshflow-go/internal/repository"
	"github.com/rs/zerolog/log"
)

// ModelLoader loads a trained ensemble; forecast.ArtifactStore satisfies it.
type ModelLoader interface {
	Load(ctx context.Context) (*forecast.Model, error)
}

// EngineProvider builds the engine on first use and hands the same instance
// to every caller until Reload swaps in a new one.
type EngineProvider struct {
	source repository.DatasetSource
	models ModelLoader
	opts   Options

	mu       sync.Mutex
	current  atomic.Pointer[Engine]
	loadedAt atomic.Pointer[time.Time]
	onReload []func(ctx context.Context, e *Engine)
}

// NewEngineProvider wires the data and model sources. models may be nil, in
// which case engines always use the baseline.
func NewEngineProvider(source repository.DatasetSource, models ModelLoader, opts Options) *EngineProvider {
	return &EngineProvider{source: source, models: models, opts: opts}
}

// OnReload registers fn to run after every successful Reload.
func (p *EngineProvider) OnReload(fn func(ctx context.Context, e *Engine)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onReload = append(p.onReload, fn)
}

// Engine returns the current engine, building it if none exists yet.
// Concurrent first calls build it once.
func (p *EngineProvider) Engine(ctx context.Context) (*Engine, error) {
	if e := p.current.Load(); e != nil {
		return e, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.current.Load(); e != nil {
		return e, nil
	}

	e, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	p.store(e)
	return e, nil
}

// Reload rebuilds the engine from the sources and swaps it in. On failure the
// previous engine keeps serving.
func (p *EngineProvider) Reload(ctx context.Context) (*Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	p.store(e)
	for _, fn := range p.onReload {
		fn(ctx, e)
	}
	return e, nil
}

// Loaded reports whether an engine is available and when it was built.
func (p *EngineProvider) Loaded() (bool, time.Time) {
	at := p.loadedAt.Load()
	if at == nil {
		return false, time.Time{}
	}
	return true, *at
}

func (p *EngineProvider) store(e *Engine) {
	at := e.BuiltAt()
	p.current.Store(e)
	p.loadedAt.Store(&at)
}

func (p *EngineProvider) build(ctx context.Context) (*Engine, error) {
	if p.source == nil {
		return nil, &domain.UnavailableError{Resource: "dataset source"}
	}
	ds, err := p.source.LoadDataset(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			return nil, err
		}
		return nil, &domain.UnavailableError{Resource: "dataset", Err: err}
	}

	strategy := p.chooseStrategy(ctx)
	e, err := NewEngine(ds, strategy, p.opts)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	log.Info().
		Str("source", p.source.Describe()).
		Str("strategy", strategy.Name()).
		Int("daily_records", len(ds.Daily)).
		Int("items", len(ds.Items)).
		Int("order_pairs", len(ds.Pairs)).
		Msg("engine: built")
	return e, nil
}

// chooseStrategy never fails: any problem with the artifacts selects the
// baseline.
func (p *EngineProvider) chooseStrategy(ctx context.Context) PredictionStrategy {
	if p.models == nil {
		log.Info().Msg("engine: no model store configured, using moving-average baseline")
		return Baseline{}
	}

	model, err := p.models.Load(ctx)
	switch {
	case err == nil:
		return Trained{Model: model}
	case errors.Is(err, forecast.ErrArtifactsNotFound):
		log.Info().Msg("engine: no trained artifacts, using moving-average baseline")
	case errors.Is(err, domain.ErrMalformedArtifact):
		log.Warn().Err(err).Msg("engine: malformed artifacts, using moving-average baseline")
	default:
		log.Warn().Err(err).Msg("engine: artifacts unavailable, using moving-average baseline")
	}
	return Baseline{}
}
