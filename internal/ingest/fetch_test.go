package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/freshflow-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFromStorage(t *testing.T) {
	ctx := context.Background()
	client, err := storage.NewLocalClient(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, client.UploadObject(ctx, "raw/2024/part1.csv", []byte(partOne)))
	require.NoError(t, client.UploadObject(ctx, "raw/notes.txt", []byte("skip")))

	dest := t.TempDir()
	paths, err := FetchFromStorage(ctx, client, "raw/", "", dest)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dest, "2024", "part1.csv")}, paths)

	blob, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, partOne, string(blob))

	single, err := FetchFromStorage(ctx, client, "raw", "2024/part1.csv", t.TempDir())
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = FetchFromStorage(ctx, client, "empty/", "", t.TempDir())
	assert.Error(t, err)
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "raw/a.csv", resolveObjectKey("raw/", "a.csv"))
	assert.Equal(t, "raw/a.csv", resolveObjectKey("raw", "/raw/a.csv"))
	assert.Equal(t, "a.csv", resolveObjectKey("", "/a.csv"))
	assert.Equal(t, "x/a.csv", objectRelativePath("raw/", "raw/x/a.csv"))
	assert.Equal(t, "raw/a.csv", objectRelativePath("", "raw/a.csv"))
}
