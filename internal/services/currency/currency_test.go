package currency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertRoundTrip(t *testing.T) {
	logp := []float64{math.Log(100), math.Log(101.5), math.Log(99.2)}
	rates := []float64{1.08, 1.07, 1.1}

	fwd, err := Convert(logp, rates, Forward)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(108), fwd[0], 1e-12)

	back, err := Convert(fwd, rates, Backward)
	require.NoError(t, err)
	assert.InDeltaSlice(t, logp, back, 1e-12)
}

func TestConvertErrors(t *testing.T) {
	_, err := Convert([]float64{1, 2}, []float64{1}, Forward)
	assert.Error(t, err)

	_, err = Convert([]float64{1}, []float64{1}, Direction(5))
	assert.Error(t, err)

	_, err = Convert([]float64{1}, []float64{0}, Forward)
	assert.Error(t, err)

	_, err = Convert([]float64{1}, []float64{math.NaN()}, Forward)
	assert.Error(t, err)
}

func TestConvertRowsSkipsDefaultCurrency(t *testing.T) {
	logp := [][]float64{{1, 2}, {3, 4}}
	rates := map[string][]float64{"EUR": {math.E, math.E}}

	require.NoError(t, ConvertRows(logp, []string{"USD", "EUR"}, "USD", rates, Forward))
	assert.Equal(t, []float64{1, 2}, logp[0])
	assert.InDeltaSlice(t, []float64{4, 5}, logp[1], 1e-12)

	err := ConvertRows(logp, []string{"USD", "GBP"}, "USD", rates, Forward)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	assert.Equal(t, "USD", Default([]string{"EUR", "USD", "USD", "GBP"}))
	assert.Equal(t, "EUR", Default([]string{"USD", "EUR"}))
	assert.Equal(t, "", Default(nil))
}

func TestPairSymbol(t *testing.T) {
	assert.Equal(t, "EURUSD=X", PairSymbol("EUR", "USD"))
}
