package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreRejectsShortSeries(t *testing.T) {
	_, err := Score(make([]float64, MinPoints-1), DefaultOptions())
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestScoreFlagsSpike(t *testing.T) {
	q := make([]float64, 60)
	for i := range q {
		q[i] = 10 + float64(i%3)
	}
	q[40] = 80

	scores, err := Score(q, Options{NumTrees: 200})
	require.NoError(t, err)
	require.Len(t, scores, len(q))

	for i, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		if i < 40 {
			assert.Greater(t, scores[40], s, "day %d scored above the spike", i)
		}
	}
}

func TestDescribeTrailingMean(t *testing.T) {
	rows := describe([]float64{1, 3, 5, 7, 9, 11, 13, 15, 17})
	assert.Equal(t, []float64{1, 0, 0}, rows[0])
	assert.Equal(t, []float64{3, 2, 2}, rows[1])
	// day 8 compares against days 1..7: mean of 3..15 is 9
	assert.Equal(t, []float64{17, 2, 8}, rows[8])
}
