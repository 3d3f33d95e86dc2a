package trend

import (
	"testing"

	"Volatile/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSectorHierarchy() *models.Hierarchy {
	return &models.Hierarchy{
		NumSectors:         2,
		NumIndustries:      2,
		SectorIndustriesID: []int{0, 1},
		IndustriesID:       []int{0, 0, 1},
		SectorsID:          []int{0, 0, 1},
		UniqueSectors:      []string{"Energy", "Technology"},
		UniqueIndustries:   []string{"Oil & Gas", "Software"},
	}
}

func TestTimeBasis(t *testing.T) {
	tt := TimeBasis(4, 2)
	r, c := tt.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 4, c)

	for j := 0; j < 4; j++ {
		assert.Equal(t, 1.0, tt.At(0, j))
	}
	assert.InDelta(t, 0.25, tt.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0, tt.At(1, 3), 1e-12)
	assert.InDelta(t, 0.0625, tt.At(2, 0), 1e-12)
	assert.InDelta(t, 0.5625, tt.At(2, 2), 1e-12)
}

func TestForecastBasisStartsAtLastObservedDay(t *testing.T) {
	tt := TimeBasis(50, 3)
	pred := ForecastBasis(50, 3, 5)
	r, c := pred.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 6, c)

	for k := 0; k < 4; k++ {
		assert.InDelta(t, tt.At(k, 49), pred.At(k, 0), 1e-12)
	}
	assert.InDelta(t, 1.1, pred.At(1, 5), 1e-12)
	assert.InDelta(t, 1.21, pred.At(2, 5), 1e-12)
}

func TestOrderScale(t *testing.T) {
	assert.InDeltaSlice(t, []float64{1, 2.0 / 3, 1.0 / 3}, OrderScale(2), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0.5}, OrderScale(1), 1e-12)

	s := OrderScale(6)
	for k := 1; k < len(s); k++ {
		assert.Less(t, s[k], s[k-1])
		assert.Greater(t, s[k], 0.0)
	}
}

func TestNewInfo(t *testing.T) {
	info, err := NewInfo(twoSectorHierarchy(), 50, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Order())
	assert.Equal(t, 50, info.NumTimes())
	assert.Equal(t, 1, info.NumEntities(Market))
	assert.Equal(t, 2, info.NumEntities(Sector))
	assert.Equal(t, 2, info.NumEntities(Industry))
	assert.Equal(t, 3, info.NumEntities(Stock))

	_, err = NewInfo(twoSectorHierarchy(), 1, 2)
	assert.Error(t, err)
	_, err = NewInfo(twoSectorHierarchy(), 50, 0)
	assert.Error(t, err)

	broken := twoSectorHierarchy()
	broken.SectorsID[2] = 0
	_, err = NewInfo(broken, 50, 2)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for _, l := range Levels() {
		got, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	_, err := ParseLevel("country")
	assert.ErrorIs(t, err, ErrUnknownLevel)
	assert.False(t, Level(7).Valid())
}
