package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/demand"
	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultPattern matches the raw order export parts.
const DefaultPattern = "*.csv"

// HistoryDays is how many trailing days of totals go into the history file.
const HistoryDays = 180

type Options struct {
	Pattern string
	// MaxFiles caps how many matching files are read, in name order. Zero
	// reads all of them.
	MaxFiles       int
	Workers        int
	ByLocation     bool
	ClosedStatuses []string
}

// Report summarizes one ingest run.
type Report struct {
	Files        int          `json:"files"`
	Lines        int          `json:"lines"`
	SkippedRows  int          `json:"skipped_rows"`
	Aggregation  demand.Stats `json:"aggregation"`
	DailyRecords int          `json:"daily_records"`
	Items        int          `json:"items"`
	OrderPairs   int          `json:"order_pairs"`
}

// Summary is written to summary.json.
type Summary struct {
	TotalQuantity int64            `json:"total_quantity"`
	UniqueItems   int              `json:"unique_items"`
	DateRange     domain.DateRange `json:"date_range"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Report        Report           `json:"report"`
}

// DiscoverFiles lists the raw exports under dir matching opts.Pattern.
func DiscoverFiles(dir string, opts Options) ([]string, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	sort.Strings(files)
	if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
		files = files[:opts.MaxFiles]
	}
	return files, nil
}

// Collect reads the files with a bounded worker pool and derives the
// dataset tables. Files without a status column count every line as closed.
func Collect(ctx context.Context, files []string, opts Options) (*domain.Dataset, Report, error) {
	report := Report{Files: len(files)}
	if len(files) == 0 {
		return nil, report, &domain.UnavailableError{Resource: "raw order exports"}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	exports := make([]*Export, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			exp, err := ReadFile(path)
			if err != nil {
				return err
			}
			exports[i] = exp
			log.Info().
				Str("file", filepath.Base(path)).
				Int("lines", len(exp.Lines)).
				Int("skipped", exp.Skipped).
				Dur("took", time.Since(start)).
				Msg("ingest: file read")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	closed := opts.ClosedStatuses
	if len(closed) == 0 {
		closed = demand.DefaultClosedStatuses
	}
	var lines []demand.OrderLine
	for _, exp := range exports {
		report.SkippedRows += exp.Skipped
		if !exp.HasStatus {
			log.Warn().Str("file", exp.Name).Msg("ingest: no status column, counting every line")
			for i := range exp.Lines {
				exp.Lines[i].Status = closed[0]
			}
		}
		if opts.ByLocation && !exp.HasLocation {
			log.Warn().Str("file", exp.Name).Msg("ingest: no location column, lines will be dropped")
		}
		lines = append(lines, exp.Lines...)
	}
	report.Lines = len(lines)

	aggOpts := demand.Options{ByLocation: opts.ByLocation, ClosedStatuses: closed}
	daily, stats := demand.Aggregate(lines, aggOpts)
	ds := &domain.Dataset{
		Daily: daily,
		Items: demand.Popularity(lines, aggOpts),
		Pairs: demand.OrderPairs(lines, aggOpts),
	}
	report.Aggregation = stats
	report.DailyRecords = len(ds.Daily)
	report.Items = len(ds.Items)
	report.OrderPairs = len(ds.Pairs)
	return ds, report, nil
}

// BuildCache reads every raw export in rawDir and writes the cache tables
// plus summary.json and demand_history.json to store.
func BuildCache(ctx context.Context, rawDir string, store *repository.CSVStore, opts Options) (Report, error) {
	files, err := DiscoverFiles(rawDir, opts)
	if err != nil {
		return Report{}, err
	}
	ds, report, err := Collect(ctx, files, opts)
	if err != nil {
		return report, err
	}

	if err := store.SaveDataset(ctx, ds); err != nil {
		return report, fmt.Errorf("save dataset: %w", err)
	}
	if err := store.SaveJSON(repository.FileSummary, Summarize(ds, report)); err != nil {
		return report, err
	}
	if err := store.SaveJSON(repository.FileDemandHistory, History(ds.Daily, HistoryDays)); err != nil {
		return report, err
	}

	log.Info().
		Str("cache", store.Describe()).
		Int("files", report.Files).
		Int("lines", report.Lines).
		Int("daily_records", report.DailyRecords).
		Int("items", report.Items).
		Int("order_pairs", report.OrderPairs).
		Int("bad_timestamps", report.Aggregation.BadTimestamp).
		Int("not_closed", report.Aggregation.NotClosed).
		Msg("ingest: cache built")
	return report, nil
}

// Summarize totals the daily table.
func Summarize(ds *domain.Dataset, report Report) Summary {
	s := Summary{GeneratedAt: time.Now().UTC(), Report: report}
	items := make(map[int64]struct{})
	var lo, hi time.Time
	for _, r := range ds.Daily {
		s.TotalQuantity += r.Quantity
		items[r.ItemID] = struct{}{}
		if lo.IsZero() || r.Date.Before(lo) {
			lo = r.Date
		}
		if r.Date.After(hi) {
			hi = r.Date
		}
	}
	s.UniqueItems = len(items)
	if len(items) > 0 {
		first, last := lo.Format(domain.DateLayout), hi.Format(domain.DateLayout)
		s.DateRange = domain.DateRange{Min: &first, Max: &last}
	}
	return s
}

// History returns the last days distinct dates of summed quantities, oldest
// first.
func History(daily []domain.DailyDemandRecord, days int) []domain.HistoryPoint {
	totals := make(map[string]int64)
	for _, r := range daily {
		totals[r.Date.Format(domain.DateLayout)] += r.Quantity
	}
	dates := make([]string, 0, len(totals))
	for d := range totals {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if days > 0 && len(dates) > days {
		dates = dates[len(dates)-days:]
	}

	out := make([]domain.HistoryPoint, len(dates))
	for i, d := range dates {
		out[i] = domain.HistoryPoint{Date: d, Quantity: totals[d]}
	}
	return out
}

// IsExport reports whether name looks like a raw export the ingest reads.
func IsExport(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv" || ext == ".xlsx"
}
