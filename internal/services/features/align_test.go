package features

import (
	"math"
	"testing"
	"time"

	"Volatile/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 21, 0, 0, 0, time.UTC) }

func midnight(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestAlignFillsAndDrops(t *testing.T) {
	series := []models.Series{
		{Symbol: "AAA", Dates: []time.Time{day(2), day(3), day(4), day(5)}, Close: []float64{10, 11, 12, 13}, Volume: []float64{1, 2, 3, 4}},
		{Symbol: "BBB", Dates: []time.Time{day(3), day(5)}, Close: []float64{20, 22}, Volume: []float64{5, 6}},
		{Symbol: "CCC", Dates: []time.Time{day(9)}, Close: []float64{7}},
		{Symbol: "DDD", Dates: []time.Time{day(2), day(3)}, Close: []float64{math.NaN(), -1}},
	}

	got, dropped, err := Align(series, 0.4)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{midnight(2), midnight(3), midnight(4), midnight(5)}, got.Dates)
	require.Len(t, got.Series, 2)
	assert.Equal(t, "AAA", got.Series[0].Symbol)
	assert.Equal(t, []float64{10, 11, 12, 13}, got.Close[0])
	assert.Equal(t, []float64{20, 20, 20, 22}, got.Close[1])
	assert.Equal(t, []float64{0, 5, 0, 6}, got.Volume[1])

	require.Len(t, dropped, 2)
	assert.Equal(t, "CCC", dropped[0].Symbol)
	assert.InDelta(t, 0.2, dropped[0].Coverage, 1e-12)
	assert.Equal(t, "DDD", dropped[1].Symbol)
}

func TestAlignNoData(t *testing.T) {
	_, _, err := Align(nil, 0.5)
	assert.ErrorIs(t, err, ErrNoData)

	_, dropped, err := Align([]models.Series{
		{Symbol: "AAA", Dates: []time.Time{day(2)}, Close: []float64{1}},
		{Symbol: "BBB", Dates: []time.Time{day(3), day(4), day(5)}, Close: []float64{1, 1, 1}},
	}, 1)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Len(t, dropped, 2)
}

func TestAlignTo(t *testing.T) {
	rates := models.Series{Symbol: "EURUSD=X", Dates: []time.Time{day(3), day(5)}, Close: []float64{1.1, 1.2}}
	got, err := AlignTo(rates, []time.Time{midnight(2), midnight(3), midnight(4), midnight(5), midnight(6)})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.1, 1.1, 1.1, 1.2, 1.2}, got)

	_, err = AlignTo(models.Series{Symbol: "X"}, []time.Time{midnight(2)})
	assert.Error(t, err)
}

func TestLogPrices(t *testing.T) {
	m, err := LogPrices([][]float64{{1, math.E}, {math.E * math.E, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 1, m.At(0, 1), 1e-12)
	assert.InDelta(t, 2, m.At(1, 0), 1e-12)
	assert.Equal(t, [][]float64{{0, 1}, {2, 0}}, roundRows(Rows(m)))

	_, err = LogPrices([][]float64{{1, 0}})
	assert.Error(t, err)
	_, err = LogPrices([][]float64{{1, 2}, {1}})
	assert.Error(t, err)
	_, err = LogPrices(nil)
	assert.Error(t, err)
}

func roundRows(rows [][]float64) [][]float64 {
	for _, r := range rows {
		for j := range r {
			r[j] = math.Round(r[j]*1e9) / 1e9
		}
	}
	return rows
}
