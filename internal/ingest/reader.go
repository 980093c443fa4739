package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/andresuchdata/freshflow-go/internal/demand"
)

// Harmonized column names of a raw order export.
const (
	ColOrderID  = "order_id"
	ColItemID   = "item_id"
	ColItemName = "item_name"
	ColQuantity = "quantity"
	ColCreated  = "created_order"
	ColStatus   = "status_order"
	ColLocation = "place_id"
)

// columnAliases lists the headers accepted for each harmonized column, in
// order of preference.
var columnAliases = map[string][]string{
	ColOrderID:  {"order_id", "orderid", "order"},
	ColItemID:   {"item_id", "itemid", "product_id"},
	ColItemName: {"title", "item_name", "name", "product_name"},
	ColQuantity: {"quantity", "qty"},
	ColCreated:  {"created_order", "created", "order_date", "created_at"},
	ColStatus:   {"status_order", "status", "order_status"},
	ColLocation: {"place_id", "location_id", "store_id"},
}

var requiredColumns = []string{ColOrderID, ColItemID, ColQuantity, ColCreated}

// Export is one parsed raw order file.
type Export struct {
	Name        string
	Lines       []demand.OrderLine
	HasStatus   bool
	HasLocation bool
	// Skipped counts rows without a usable order or item id.
	Skipped int
}

// MissingColumnError reports a required column absent from a file header.
type MissingColumnError struct {
	File   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing required column %q", e.File, e.Column)
}

// ReadFile parses one CSV order export from disk.
func ReadFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return ReadOrders(f, path)
}

// ReadOrders parses a CSV order export. Headers are matched
// case-insensitively against the known aliases. Rows whose order or item id
// is not an integer are skipped; an unparsable quantity counts as 0.
func ReadOrders(r io.Reader, name string) (*Export, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := harmonize(header)
	for _, col := range requiredColumns {
		if _, ok := cols[col]; !ok {
			return nil, &MissingColumnError{File: name, Column: col}
		}
	}

	_, hasStatus := cols[ColStatus]
	_, hasLocation := cols[ColLocation]
	exp := &Export{Name: name, HasStatus: hasStatus, HasLocation: hasLocation}

	get := func(record []string, col string) string {
		if idx, ok := cols[col]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read CSV record: %w", name, err)
		}

		orderID, okOrder := parseID(get(record, ColOrderID))
		itemID, okItem := parseID(get(record, ColItemID))
		if !okOrder || !okItem {
			exp.Skipped++
			continue
		}
		line := demand.OrderLine{
			OrderID:  orderID,
			ItemID:   itemID,
			ItemName: get(record, ColItemName),
			Quantity: parseQuantity(get(record, ColQuantity)),
			Created:  get(record, ColCreated),
			Status:   get(record, ColStatus),
		}
		if loc, ok := parseID(get(record, ColLocation)); ok {
			line.LocationID = &loc
		}
		exp.Lines = append(exp.Lines, line)
	}
	return exp, nil
}

// harmonize maps each harmonized column to its index in header.
func harmonize(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}

	cols := make(map[string]int, len(columnAliases))
	for name, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := index[alias]; ok {
				cols[name] = i
				break
			}
		}
	}
	return cols
}

// parseID accepts integers and integral floats such as "42.0".
func parseID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

func parseQuantity(raw string) int64 {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
