package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/freshflow-go/internal/drive"
	"github.com/andresuchdata/freshflow-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// FetchFromStorage downloads the raw exports under prefix into destDir,
// keeping their relative layout, and converts XLSX workbooks to CSV. A
// non-empty key fetches that single object.
func FetchFromStorage(ctx context.Context, client storage.ObjectStorage, prefix, key, destDir string) ([]string, error) {
	var keys []string
	if key != "" {
		keys = []string{resolveObjectKey(prefix, key)}
	} else {
		listPrefix := strings.TrimSpace(prefix)
		objects, err := client.ListObjects(ctx, listPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects for prefix %s: %w", listPrefix, err)
		}
		for _, obj := range objects {
			if IsExport(obj.Key) {
				keys = append(keys, obj.Key)
			}
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no order exports found for prefix %s", prefix)
	}

	localPaths := make([]string, 0, len(keys))
	for _, k := range keys {
		localPath := filepath.Join(destDir, filepath.FromSlash(objectRelativePath(prefix, k)))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to prepare directory for %s: %w", localPath, err)
		}
		if err := client.DownloadObject(ctx, k, localPath); err != nil {
			return nil, err
		}

		if strings.EqualFold(filepath.Ext(localPath), ".xlsx") {
			csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
			if err := drive.ConvertXLSXToCSV(localPath, csvPath); err != nil {
				return nil, err
			}
			_ = os.Remove(localPath)
			localPath = csvPath
		}
		log.Info().Str("key", k).Str("path", localPath).Msg("ingest: export fetched")
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}

func resolveObjectKey(prefix, key string) string {
	if prefix == "" {
		return strings.TrimPrefix(key, "/")
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	keyTrimmed := strings.TrimPrefix(strings.TrimSpace(key), "/")
	if strings.HasPrefix(keyTrimmed, prefixTrimmed) {
		return keyTrimmed
	}
	return prefixTrimmed + "/" + keyTrimmed
}

func objectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return filepath.Base(key)
	}
	return rel
}
