package repository

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/rs/zerolog/log"
)

// CSVStore reads and writes the dataset as CSV files in a cache directory.
type CSVStore struct {
	dir string
}

func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir}
}

func (s *CSVStore) Describe() string { return "csv:" + s.dir }

func (s *CSVStore) Dir() string { return s.dir }

// LoadDataset requires demand_daily.csv. items.csv and order_items.csv are
// optional and load as empty tables when absent.
func (s *CSVStore) LoadDataset(ctx context.Context) (*domain.Dataset, error) {
	ds := &domain.Dataset{}

	err := s.readFile(FileDemandDaily, func(row map[string]string, line int) error {
		rec, err := parseDemandRow(row)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", FileDemandDaily, line, err)
		}
		ds.Daily = append(ds.Daily, rec)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.UnavailableError{Resource: "daily demand table", Err: err}
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = s.readFile(FileItems, func(row map[string]string, line int) error {
		id, err := parseInt(row, "item_id")
		if err != nil {
			return fmt.Errorf("%s line %d: %w", FileItems, line, err)
		}
		count, err := parseInt(row, "order_count")
		if err != nil {
			return fmt.Errorf("%s line %d: %w", FileItems, line, err)
		}
		ds.Items = append(ds.Items, domain.ItemPopularity{ItemID: id, ItemName: row["item_name"], OrderCount: count})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("file", FileItems).Msg("repository: item lookup missing, names will be empty")
	} else if err != nil {
		return nil, err
	}

	err = s.readFile(FileOrderItems, func(row map[string]string, line int) error {
		order, err := parseInt(row, "order_id")
		if err != nil {
			return fmt.Errorf("%s line %d: %w", FileOrderItems, line, err)
		}
		item, err := parseInt(row, "item_id")
		if err != nil {
			return fmt.Errorf("%s line %d: %w", FileOrderItems, line, err)
		}
		ds.Pairs = append(ds.Pairs, domain.OrderItemPair{OrderID: order, ItemID: item})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("file", FileOrderItems).Msg("repository: order pairs missing, bundle pairing disabled")
	} else if err != nil {
		return nil, err
	}

	return ds, nil
}

func (s *CSVStore) readFile(name string, fn func(row map[string]string, line int) error) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s header: %w", name, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		if err := fn(row, line); err != nil {
			return err
		}
	}
}

func parseDemandRow(row map[string]string) (domain.DailyDemandRecord, error) {
	date, err := time.Parse(domain.DateLayout, row["date"])
	if err != nil {
		return domain.DailyDemandRecord{}, fmt.Errorf("date %q: %w", row["date"], err)
	}
	item, err := parseInt(row, "item_id")
	if err != nil {
		return domain.DailyDemandRecord{}, err
	}
	qty, err := parseInt(row, "quantity")
	if err != nil {
		return domain.DailyDemandRecord{}, err
	}
	rec := domain.DailyDemandRecord{Date: date, ItemID: item, Quantity: qty}
	if raw := row["location_id"]; raw != "" {
		loc, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.DailyDemandRecord{}, fmt.Errorf("location_id %q: %w", raw, err)
		}
		rec.LocationID = &loc
	}
	return rec, nil
}

func parseInt(row map[string]string, col string) (int64, error) {
	raw, ok := row[col]
	if !ok {
		return 0, fmt.Errorf("missing column %s", col)
	}
	// Exports occasionally carry integral floats such as "3.0".
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%s %q is not an integer", col, raw)
	}
	return int64(f), nil
}

// SaveDataset writes all three tables. Each file is written to a temp file
// and renamed into place.
func (s *CSVStore) SaveDataset(ctx context.Context, ds *domain.Dataset) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	withLocation := false
	for _, r := range ds.Daily {
		if r.LocationID != nil {
			withLocation = true
			break
		}
	}

	demandHeader := []string{"date", "item_id", "quantity"}
	if withLocation {
		demandHeader = append(demandHeader, "location_id")
	}
	err := s.writeFile(FileDemandDaily, demandHeader, len(ds.Daily), func(i int) []string {
		r := ds.Daily[i]
		row := []string{r.Date.Format(domain.DateLayout), strconv.FormatInt(r.ItemID, 10), strconv.FormatInt(r.Quantity, 10)}
		if withLocation {
			loc := ""
			if r.LocationID != nil {
				loc = strconv.FormatInt(*r.LocationID, 10)
			}
			row = append(row, loc)
		}
		return row
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.writeFile(FileItems, []string{"item_id", "item_name", "order_count"}, len(ds.Items), func(i int) []string {
		it := ds.Items[i]
		return []string{strconv.FormatInt(it.ItemID, 10), it.ItemName, strconv.FormatInt(it.OrderCount, 10)}
	})
	if err != nil {
		return err
	}

	return s.writeFile(FileOrderItems, []string{"order_id", "item_id"}, len(ds.Pairs), func(i int) []string {
		p := ds.Pairs[i]
		return []string{strconv.FormatInt(p.OrderID, 10), strconv.FormatInt(p.ItemID, 10)}
	})
}

func (s *CSVStore) writeFile(name string, header []string, n int, row func(i int) []string) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+"-")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			tmp.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

// SaveJSON writes v as indented JSON next to the tables.
func (s *CSVStore) SaveJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

var _ DatasetSource = (*CSVStore)(nil)
