package demand

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"epoch seconds", "1700000000", time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)},
		{"epoch with spaces", "  0 ", time.Unix(0, 0).UTC()},
		{"day first with time", "05/03/2024 14:30", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)},
		{"day first single digits", "5/3/2024 9:05", time.Date(2024, 3, 5, 9, 5, 0, 0, time.UTC)},
		{"day first date only", "31/12/2023", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"iso date", "2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"iso datetime", "2024-02-29 23:59:59", time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseTimestampNumericTakesPrecedence(t *testing.T) {
	// Eight digits look like a compact date but are read as epoch seconds.
	got, err := ParseTimestamp("20240305")
	require.NoError(t, err)
	assert.Equal(t, 1970, got.Year())
}

func TestParseTimestampRejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a date", "32/13/2024 10:00", "-"} {
		_, err := ParseTimestamp(raw)
		assert.Error(t, err, raw)
	}
}
