package trend

import (
	"math"
	"testing"

	"Volatile/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRateDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score float64
		want  models.Rating
	}{
		{3.5, models.RatingHighlyBelow},
		{3, models.RatingBelow},
		{2.5, models.RatingBelow},
		{1, models.RatingAlong},
		{0, models.RatingAbove},
		{-1.9, models.RatingAbove},
		{-2, models.RatingHighlyAbove},
		{-2.5, models.RatingHighlyAbove},
		{-40, models.RatingHighlyAbove},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.RateOne(tt.score), "score %v", tt.score)
	}

	assert.Equal(t, []models.Rating{models.RatingHighlyBelow}, Rate([]float64{3.5}, th))
	assert.Equal(t, []models.Rating{models.RatingBelow}, Rate([]float64{2.5}, th))
	assert.Equal(t, []models.Rating{models.RatingAbove}, Rate([]float64{0}, th))
	assert.Equal(t, []models.Rating{models.RatingHighlyAbove}, Rate([]float64{-2.5}, th))
	assert.Empty(t, Rate(nil, th))
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
	bad := DefaultThresholds()
	bad.Along = 2
	assert.Error(t, bad.Validate())
}

func TestScores(t *testing.T) {
	logp := mat.NewDense(2, 3, []float64{1, 1.1, 1.2, 2, 2, 2})
	pred := mat.NewDense(2, 2, []float64{1.2, 1.5, 2, 1.9})
	std := mat.NewDense(2, 2, []float64{0.1, 0.1, 0.05, 0.05})

	got, err := Scores(pred, logp, std, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, -2}, got, 1e-9)

	_, err = Scores(pred, logp, std, 2)
	assert.Error(t, err)
	_, err = Scores(pred, mat.NewDense(3, 3, nil), std, 1)
	assert.Error(t, err)
}

func TestGrowth(t *testing.T) {
	phi := mat.NewDense(2, 3, []float64{5, 1, 2, -1, 0, 0})
	assert.InDeltaSlice(t, []float64{0.5, 0}, Growth(phi, 10), 1e-12)
}

func TestRankIsStableAndDescending(t *testing.T) {
	key := []float64{0.5, 2, math.NaN(), 2, -1}
	assert.Equal(t, []int{1, 3, 0, 4, 2}, Rank(key))
}

func TestRankModes(t *testing.T) {
	scores := []float64{1, 3, 2}
	growth := []float64{0.3, 0.1, 0.2}

	m, err := ParseRankMode("rate")
	require.NoError(t, err)
	order, err := m.Order(scores, growth)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, order)

	m, err = ParseRankMode("growth")
	require.NoError(t, err)
	order, err = m.Order(scores, growth)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, order)

	_, err = ParseRankMode("alphabetical")
	assert.ErrorIs(t, err, ErrUnknownRankMode)
	_, err = RankMode("volume").Order(scores, growth)
	assert.ErrorIs(t, err, ErrUnknownRankMode)
}
