package drive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestConvertXLSXToCSV(t *testing.T) {
	dir := t.TempDir()
	xlsx := filepath.Join(dir, "orders.xlsx")
	writeWorkbook(t, xlsx, [][]any{
		{"order_id", "item_id", "quantity", "created_order", "place_id"},
		{1, 10, 2, "01/03/2024 08:15", 7},
		{2, 11, 1, "02/03/2024"},
	})

	out := filepath.Join(dir, "orders.csv")
	require.NoError(t, ConvertXLSXToCSV(xlsx, out))

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(blob)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "order_id,item_id,quantity,created_order,place_id", lines[0])
	assert.Equal(t, "1,10,2,01/03/2024 08:15,7", lines[1])
	assert.Equal(t, "2,11,1,02/03/2024,", lines[2])
}

func TestConvertXLSXToCSVPicksOrderSheetAndSkipsBlankRows(t *testing.T) {
	dir := t.TempDir()
	xlsx := filepath.Join(dir, "export.xlsx")

	f := excelize.NewFile()
	_, err := f.NewSheet("Orders")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"notes"}))
	require.NoError(t, f.SetSheetRow("Orders", "A1", &[]any{"order_id", "item_id"}))
	require.NoError(t, f.SetSheetRow("Orders", "A3", &[]any{5, 50}))
	require.NoError(t, f.SaveAs(xlsx))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "export.csv")
	require.NoError(t, ConvertXLSXToCSV(xlsx, out))

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "order_id,item_id\n5,50\n", string(blob))
}

func TestOrderSheet(t *testing.T) {
	name, ok := orderSheet([]string{"Summary", "raw_orders"})
	assert.True(t, ok)
	assert.Equal(t, "raw_orders", name)

	name, _ = orderSheet([]string{"Sheet1"})
	assert.Equal(t, "Sheet1", name)

	_, ok = orderSheet(nil)
	assert.False(t, ok)
}

func TestConvertXLSXToCSVMissingFile(t *testing.T) {
	err := ConvertXLSXToCSV(filepath.Join(t.TempDir(), "nope.xlsx"), filepath.Join(t.TempDir(), "out.csv"))
	assert.Error(t, err)
}

type stubSource struct {
	folders map[string]string
	files   map[string][]*File
	content map[string]func(w io.Writer) error
}

func (s *stubSource) FindFolderByPath(_ context.Context, path string) (string, error) {
	id, ok := s.folders[path]
	if !ok {
		return "", errors.New("folder not found: " + path)
	}
	return id, nil
}

func (s *stubSource) ListFiles(_ context.Context, folderID string) ([]*File, error) {
	return s.files[folderID], nil
}

func (s *stubSource) Download(_ context.Context, f *File, w io.Writer) error {
	return s.content[f.ID](w)
}

func TestDownloadExports(t *testing.T) {
	workbook := filepath.Join(t.TempDir(), "src.xlsx")
	writeWorkbook(t, workbook, [][]any{{"order_id", "item_id"}, {3, 30}})

	src := &stubSource{
		folders: map[string]string{"exports/orders": "folder-1"},
		files: map[string][]*File{"folder-1": {
			{ID: "a", Name: "part1.csv", MimeType: "text/csv"},
			{ID: "b", Name: "part2.xlsx"},
			{ID: "c", Name: "Live orders", MimeType: MimeSpreadsheet},
			{ID: "d", Name: "readme.pdf", MimeType: "application/pdf"},
		}},
		content: map[string]func(w io.Writer) error{
			"a": func(w io.Writer) error { _, err := io.WriteString(w, "order_id,item_id\n1,10\n"); return err },
			"b": func(w io.Writer) error {
				f, err := os.Open(workbook)
				if err != nil {
					return err
				}
				defer f.Close()
				_, err = io.Copy(w, f)
				return err
			},
			"c": func(w io.Writer) error { _, err := io.WriteString(w, "order_id,item_id\n2,20\n"); return err },
		},
	}

	dir := filepath.Join(t.TempDir(), "raw")
	paths, err := NewDownloader(src).DownloadExports(context.Background(), DownloadOptions{FolderPath: "exports/orders", DownloadDir: dir})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "part1.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, "part2.csv"), paths[1])
	assert.Equal(t, filepath.Join(dir, "Live orders.csv"), paths[2])

	converted, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "order_id,item_id\n3,30\n", string(converted))
	_, err = os.Stat(filepath.Join(dir, "part2.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadExportsErrors(t *testing.T) {
	src := &stubSource{
		folders: map[string]string{"x": "f"},
		files:   map[string][]*File{"f": {{ID: "a", Name: "a.csv"}}},
		content: map[string]func(w io.Writer) error{"a": func(io.Writer) error { return errors.New("quota") }},
	}
	d := NewDownloader(src)

	_, err := d.DownloadExports(context.Background(), DownloadOptions{FolderPath: "x"})
	assert.Error(t, err)

	_, err = d.DownloadExports(context.Background(), DownloadOptions{FolderPath: "missing", DownloadDir: t.TempDir()})
	assert.ErrorContains(t, err, "folder not found")

	_, err = d.DownloadExports(context.Background(), DownloadOptions{FolderPath: "x", DownloadDir: t.TempDir()})
	assert.ErrorContains(t, err, "quota")
}
