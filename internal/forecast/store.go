package forecast

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/storage"
)

// ErrArtifactsNotFound means no bundle has been published yet. Callers treat
// it as a normal condition and serve the baseline.
var ErrArtifactsNotFound = fmt.Errorf("model artifacts not found: %w", domain.ErrDataUnavailable)

// ArtifactStore persists whole bundles. Save replaces the previous bundle.
type ArtifactStore interface {
	Save(ctx context.Context, m *Model) error
	Load(ctx context.Context) (*Model, error)
	Location() string
}

// DirStore keeps the bundle as files in one directory.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

func (s *DirStore) Location() string { return s.dir }

// Save writes the bundle into a sibling temp directory and swaps it into
// place, so readers never see a half-written bundle.
func (s *DirStore) Save(ctx context.Context, m *Model) error {
	files, err := m.MarshalBundle()
	if err != nil {
		return err
	}
	parent := filepath.Dir(filepath.Clean(s.dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create artifact parent: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(s.dir)+"-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	for name, blob := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(tmp, name), blob, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	old := s.dir + ".old"
	_ = os.RemoveAll(old)
	if _, err := os.Stat(s.dir); err == nil {
		if err := os.Rename(s.dir, old); err != nil {
			return fmt.Errorf("move previous bundle: %w", err)
		}
	}
	if err := os.Rename(tmp, s.dir); err != nil {
		_ = os.Rename(old, s.dir)
		return fmt.Errorf("publish bundle: %w", err)
	}
	_ = os.RemoveAll(old)
	return nil
}

func (s *DirStore) Load(ctx context.Context) (*Model, error) {
	info, err := os.Stat(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrArtifactsNotFound
	}
	if err != nil {
		return nil, &domain.UnavailableError{Resource: "model artifacts", Err: err}
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrMalformedArtifact, s.dir)
	}

	files := make(map[string][]byte, len(BundleFiles))
	present := 0
	for _, name := range BundleFiles {
		blob, err := os.ReadFile(filepath.Join(s.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &domain.UnavailableError{Resource: "model artifacts", Err: err}
		}
		files[name] = blob
		present++
	}
	if present == 0 {
		return nil, ErrArtifactsNotFound
	}
	return UnmarshalBundle(files)
}

// ObjectStore keeps the bundle under a key prefix of an S3-compatible bucket.
type ObjectStore struct {
	client storage.ObjectStorage
	prefix string
}

func NewObjectStore(client storage.ObjectStorage, prefix string) *ObjectStore {
	prefix = strings.Trim(prefix, "/")
	return &ObjectStore{client: client, prefix: prefix}
}

func (s *ObjectStore) Location() string { return s.prefix + "/" }

func (s *ObjectStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Save uploads the manifest last; a bundle without a manifest is incomplete.
func (s *ObjectStore) Save(ctx context.Context, m *Model) error {
	files, err := m.MarshalBundle()
	if err != nil {
		return err
	}
	for _, name := range BundleFiles {
		if name == FileManifest {
			continue
		}
		if err := s.client.UploadObject(ctx, s.key(name), files[name]); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
	}
	if err := s.client.UploadObject(ctx, s.key(FileManifest), files[FileManifest]); err != nil {
		return fmt.Errorf("upload %s: %w", FileManifest, err)
	}
	return nil
}

func (s *ObjectStore) Load(ctx context.Context) (*Model, error) {
	objects, err := s.client.ListObjects(ctx, s.prefix)
	if err != nil {
		return nil, &domain.UnavailableError{Resource: "model artifacts", Err: err}
	}
	available := make(map[string]bool, len(objects))
	for _, o := range objects {
		available[path.Base(o.Key)] = true
	}
	if !available[FileManifest] {
		return nil, ErrArtifactsNotFound
	}

	files := make(map[string][]byte, len(BundleFiles))
	for _, name := range BundleFiles {
		if !available[name] {
			continue
		}
		blob, err := s.client.GetObject(ctx, s.key(name))
		if err != nil {
			return nil, &domain.UnavailableError{Resource: "model artifacts", Err: err}
		}
		files[name] = blob
	}
	return UnmarshalBundle(files)
}

var (
	_ ArtifactStore = (*DirStore)(nil)
	_ ArtifactStore = (*ObjectStore)(nil)
)

// Chain loads from the first store holding a bundle. A store without one is
// skipped; any other error stops the search.
type Chain []ArtifactStore

func (c Chain) Load(ctx context.Context) (*Model, error) {
	for _, s := range c {
		m, err := s.Load(ctx)
		if errors.Is(err, ErrArtifactsNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load from %s: %w", s.Location(), err)
		}
		return m, nil
	}
	return nil, ErrArtifactsNotFound
}
