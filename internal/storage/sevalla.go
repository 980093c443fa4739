package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chartmuseum/storage"
)

// BackendClient implements ObjectStorage over a chartmuseum storage backend.
type BackendClient struct {
	name    string
	backend storage.Backend
}

// NewSevallaClient builds a client for Sevalla or any S3-compatible service
// backed by chartmuseum's Amazon storage backend.
func NewSevallaClient(cfg Config) (*BackendClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sevalla endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("sevalla credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sevalla bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	// The Amazon backend reads credentials from the environment.
	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		"",
		region,
		endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)

	return &BackendClient{name: "sevalla", backend: backend}, nil
}

// NewLocalClient stores objects as files under root.
func NewLocalClient(root string) (*BackendClient, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("local storage root must be provided")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage root: %w", err)
	}
	return &BackendClient{name: "local", backend: storage.NewLocalFilesystemBackend(root)}, nil
}

// ListObjects lists all objects for a given prefix. Keys are returned in
// full, prefix included.
func (c *BackendClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("%s list failed: %w", c.name, err)
	}
	results := make([]ObjectInfo, 0, len(files))
	for _, object := range files {
		results = append(results, ObjectInfo{
			Key:  path.Join(prefix, object.Path),
			Size: int64(len(object.Content)),
		})
	}
	return results, nil
}

func (c *BackendClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	object, err := c.backend.GetObject(key)
	if err != nil {
		return nil, fmt.Errorf("%s get %s failed: %w", c.name, key, err)
	}
	return object.Content, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *BackendClient) DownloadObject(ctx context.Context, key, destPath string) error {
	content, err := c.GetObject(ctx, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

func (c *BackendClient) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("%s put %s failed: %w", c.name, key, err)
	}
	return nil
}

var _ ObjectStorage = (*BackendClient)(nil)

func awsBool(v bool) *bool {
	return &v
}
