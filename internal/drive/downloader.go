package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Source is the part of the Drive API the downloader needs.
type Source interface {
	FindFolderByPath(ctx context.Context, path string) (string, error)
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	Download(ctx context.Context, f *File, w io.Writer) error
}

// DownloadOptions controls how order exports are pulled from a folder.
type DownloadOptions struct {
	FolderPath  string
	DownloadDir string
}

type Downloader struct {
	source Source
}

func NewDownloader(s Source) *Downloader {
	return &Downloader{source: s}
}

// DownloadExports copies every CSV, XLSX and Google Sheet in the folder into
// DownloadDir and returns the local CSV paths. XLSX files are converted to
// CSV and the workbook is removed.
func (d *Downloader) DownloadExports(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	folderID, err := d.source.FindFolderByPath(ctx, opts.FolderPath)
	if err != nil {
		return nil, err
	}
	files, err := d.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		base := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
		ext := strings.ToLower(filepath.Ext(f.Name))
		switch {
		case f.MimeType == MimeSpreadsheet, ext == ".csv":
			localPath := filepath.Join(opts.DownloadDir, base+".csv")
			if err := d.fetch(ctx, f, localPath); err != nil {
				return nil, err
			}
			localPaths = append(localPaths, localPath)

		case ext == ".xlsx":
			tmpPath := filepath.Join(opts.DownloadDir, filepath.Base(f.Name))
			if err := d.fetch(ctx, f, tmpPath); err != nil {
				return nil, err
			}
			csvPath := filepath.Join(opts.DownloadDir, base+".csv")
			if err := ConvertXLSXToCSV(tmpPath, csvPath); err != nil {
				return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
			}
			_ = os.Remove(tmpPath)
			localPaths = append(localPaths, csvPath)

		default:
			log.Debug().Str("file", f.Name).Str("mime", f.MimeType).Msg("drive: skipping non-export file")
			continue
		}
		log.Info().Str("file", f.Name).Str("folder", opts.FolderPath).Msg("drive: export downloaded")
	}
	return localPaths, nil
}

func (d *Downloader) fetch(ctx context.Context, f *File, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if err := d.source.Download(ctx, f, out); err != nil {
		out.Close()
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	return out.Close()
}
