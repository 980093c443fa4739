package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/freshflow-go/internal/config"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations needed to
// fetch raw exports and to mirror model artifacts.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	UploadObject(ctx context.Context, key string, data []byte) error
}

// ErrNotConfigured is returned by New when no provider is selected.
var ErrNotConfigured = errors.New("object storage not configured")

// Config encapsulates the connection info for any supported provider.
type Config struct {
	Provider  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// New builds the client for cfg.Provider. The local provider treats Endpoint
// as a root directory.
func New(cfg Config) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, ErrNotConfigured
	case "minio":
		return NewMinioClient(cfg)
	case "sevalla", "s3":
		return NewSevallaClient(cfg)
	case "local":
		return NewLocalClient(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// NewFromConfig builds the client selected by the application config.
func NewFromConfig(cfg config.StorageConfig) (ObjectStorage, error) {
	return New(Config{
		Provider:  cfg.Provider,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
}
