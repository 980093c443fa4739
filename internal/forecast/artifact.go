package forecast

import (
	"encoding/json"
	"fmt"

	"github.com/andresuchdata/freshflow-go/internal/domain"
)

// Files that make up an artifact bundle.
const (
	FileFeatureCols = "feature_cols.json"
	FileScaler      = "scaler.json"
	FileLinear      = "linear_regression.json"
	FileForest      = "random_forest.json"
	FileBooster     = "lightgbm.json"
	FileMetrics     = "metrics.json"
	FileManifest    = "manifest.json"
)

// BundleFiles lists every file a complete bundle contains.
var BundleFiles = []string{FileFeatureCols, FileScaler, FileLinear, FileForest, FileBooster, FileMetrics, FileManifest}

type boosterEnvelope struct {
	Kind   string            `json:"kind"`
	GBT    *GradientBoosting `json:"gbt,omitempty"`
	Forest *Forest           `json:"forest,omitempty"`
}

// MarshalBundle encodes the model as named JSON documents.
func (m *Model) MarshalBundle() (map[string][]byte, error) {
	if m == nil || m.Linear == nil || m.Forest == nil || m.Booster == nil {
		return nil, domain.ErrNotTrained
	}

	env := boosterEnvelope{Kind: m.BoosterKind}
	switch b := m.Booster.(type) {
	case *GradientBoosting:
		env.GBT = b
	case *Forest:
		env.Forest = b
	default:
		return nil, fmt.Errorf("marshal bundle: unsupported booster %T", m.Booster)
	}

	docs := map[string]any{
		FileFeatureCols: m.Features,
		FileScaler:      m.Scaler,
		FileLinear:      m.Linear,
		FileForest:      m.Forest,
		FileBooster:     env,
		FileMetrics:     m.Metrics,
		FileManifest:    m.Manifest,
	}
	out := make(map[string][]byte, len(docs))
	for name, doc := range docs {
		blob, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", name, err)
		}
		out[name] = blob
	}
	return out, nil
}

// UnmarshalBundle decodes and validates a bundle. Every failure wraps
// domain.ErrMalformedArtifact.
func UnmarshalBundle(files map[string][]byte) (*Model, error) {
	m := &Model{}
	var env boosterEnvelope
	targets := map[string]any{
		FileFeatureCols: &m.Features,
		FileScaler:      &m.Scaler,
		FileLinear:      &m.Linear,
		FileForest:      &m.Forest,
		FileBooster:     &env,
		FileMetrics:     &m.Metrics,
		FileManifest:    &m.Manifest,
	}
	for _, name := range BundleFiles {
		blob, ok := files[name]
		if !ok || len(blob) == 0 {
			return nil, fmt.Errorf("%w: missing %s", domain.ErrMalformedArtifact, name)
		}
		if err := json.Unmarshal(blob, targets[name]); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrMalformedArtifact, name, err)
		}
	}

	switch env.Kind {
	case BoosterGBT:
		if env.GBT == nil {
			return nil, fmt.Errorf("%w: booster kind gbt without model", domain.ErrMalformedArtifact)
		}
		m.Booster = env.GBT
	case BoosterForest:
		if env.Forest == nil {
			return nil, fmt.Errorf("%w: booster kind forest without model", domain.ErrMalformedArtifact)
		}
		m.Booster = env.Forest
	default:
		return nil, fmt.Errorf("%w: unknown booster kind %q", domain.ErrMalformedArtifact, env.Kind)
	}
	m.BoosterKind = env.Kind

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedArtifact, err)
	}
	return m, nil
}

func (m *Model) validate() error {
	p := len(m.Features)
	if p == 0 {
		return fmt.Errorf("no feature columns")
	}
	seen := make(map[string]struct{}, p)
	for _, f := range m.Features {
		if _, dup := seen[f]; dup {
			return fmt.Errorf("duplicate feature column %q", f)
		}
		seen[f] = struct{}{}
	}
	if len(m.Scaler.Mean) != p || len(m.Scaler.Scale) != p {
		return fmt.Errorf("scaler has %d/%d columns, want %d", len(m.Scaler.Mean), len(m.Scaler.Scale), p)
	}
	for j, s := range m.Scaler.Scale {
		if s == 0 {
			return fmt.Errorf("scaler column %d has zero scale", j)
		}
	}
	if m.Linear == nil || len(m.Linear.Coef) != p {
		return fmt.Errorf("linear model does not match %d columns", p)
	}
	if m.Forest == nil {
		return fmt.Errorf("random forest missing")
	}
	if err := m.Forest.validate(p); err != nil {
		return fmt.Errorf("random forest: %w", err)
	}
	switch b := m.Booster.(type) {
	case *GradientBoosting:
		return b.validate(p)
	case *Forest:
		return b.validate(p)
	}
	return fmt.Errorf("booster missing")
}
