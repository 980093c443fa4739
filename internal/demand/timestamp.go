package demand

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dayFirstLayouts are tried in order for non-numeric timestamps. Order
// exports use DD/MM/YYYY HH:MM; the rest cover hand-edited and ISO files.
var dayFirstLayouts = []string{
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006 15:04",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an order creation timestamp. Input made only of
// digits (optionally signed) is UNIX epoch seconds; anything else is parsed
// as a day-first date string. Results are UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if isEpoch(v) {
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse epoch %q: %w", v, err)
		}
		return time.Unix(secs, 0).UTC(), nil
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func isEpoch(v string) bool {
	digits := strings.TrimPrefix(v, "-")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
