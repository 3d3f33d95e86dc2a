package trend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

func testInfo(t *testing.T, times int) Info {
	t.Helper()
	info, err := NewInfo(twoSectorHierarchy(), times, 2)
	require.NoError(t, err)
	return info
}

// filled returns an r×c matrix with deterministic, distinct entries.
func filled(r, c int, offset float64) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, offset+0.1*float64(i+1)-0.05*float64(j)+0.01*float64(i*j))
		}
	}
	return m
}

func sampleParams(m *Model, l Level, offset float64) Params {
	z := m.ZeroParams(l)
	r, c := z.Phi.Dims()
	return Params{Phi: filled(r, c, offset), Psi: filled(r, 1, offset-1)}
}

func TestDefineModelLayers(t *testing.T) {
	info := testInfo(t, 10)
	for _, l := range Levels() {
		m, err := DefineModel(info, l)
		require.NoError(t, err)
		assert.Equal(t, l, m.Level())
		assert.Len(t, m.Layers(), int(l)+1)
		assert.Equal(t, Market, m.Layers()[0])
	}

	_, err := DefineModelByName(info, "portfolio")
	assert.ErrorIs(t, err, ErrUnknownLevel)

	m, err := DefineModelByName(info, "industry")
	require.NoError(t, err)
	assert.Equal(t, []Level{Market, Sector, Industry}, m.Layers())
}

func TestZeroParamsShapes(t *testing.T) {
	m, err := DefineModel(testInfo(t, 10), Stock)
	require.NoError(t, err)

	want := map[Level]int{Market: 1, Sector: 2, Industry: 2, Stock: 3}
	for l, n := range want {
		p := m.ZeroParams(l)
		r, c := p.Phi.Dims()
		assert.Equal(t, n, r, l.String())
		assert.Equal(t, 3, c, l.String())
		r, c = p.Psi.Dims()
		assert.Equal(t, n, r, l.String())
		assert.Equal(t, 1, c, l.String())
		assert.Zero(t, mat.Sum(p.Phi))
	}
}

func TestPriorLocationGathersParentRows(t *testing.T) {
	m, err := DefineModel(testInfo(t, 10), Stock)
	require.NoError(t, err)

	market := sampleParams(m, Market, 0.3)
	phiS, psiS := m.PriorLocation(Sector, market)
	for i := 0; i < 2; i++ {
		assert.Equal(t, market.Phi.RawRowView(0), phiS.RawRowView(i))
		assert.Equal(t, market.Psi.At(0, 0), psiS.At(i, 0))
	}

	sector := sampleParams(m, Sector, 0.7)
	industry := sampleParams(m, Industry, 1.1)
	phiI, _ := m.PriorLocation(Industry, sector)
	phiK, psiK := m.PriorLocation(Stock, industry)

	h := twoSectorHierarchy()
	for j, s := range h.SectorIndustriesID {
		assert.Equal(t, sector.Phi.RawRowView(s), phiI.RawRowView(j))
	}
	for i, ind := range h.IndustriesID {
		assert.Equal(t, industry.Phi.RawRowView(ind), phiK.RawRowView(i))
		assert.Equal(t, industry.Psi.At(ind, 0), psiK.At(i, 0))
	}

	// Gathering twice matches gathering by the stock's sector directly.
	viaIndustry := gatherRows(gatherRows(sector.Phi, h.SectorIndustriesID), h.IndustriesID)
	direct := gatherRows(sector.Phi, h.SectorsID)
	assert.True(t, mat.Equal(viaIndustry, direct))
}

func TestLogProbMarketMatchesNormalDensity(t *testing.T) {
	info := testInfo(t, 4)
	m, err := DefineModel(info, Market)
	require.NoError(t, err)

	p := Params{Phi: mat.NewDense(1, 3, []float64{0.5, -0.2, 0.1}), Psi: mat.NewDense(1, 1, []float64{-0.3})}
	y := mat.NewDense(1, 4, []float64{0.4, 0.45, 0.5, 0.47})

	var want float64
	os := OrderScale(2)
	for k := 0; k < 3; k++ {
		want += distuv.Normal{Mu: 0, Sigma: 4 * os[k]}.LogProb(p.Phi.At(0, k))
	}
	want += distuv.Normal{Mu: 0, Sigma: 4}.LogProb(-0.3)
	mu := m.Location(p)
	sigma := math.Log1p(math.Exp(-0.3))
	for j := 0; j < 4; j++ {
		want += distuv.Normal{Mu: mu.At(0, j), Sigma: sigma}.LogProb(y.At(0, j))
	}

	got, err := m.LogProb([]Params{p}, y)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-10)
}

func TestLocationShapeAtEveryLevel(t *testing.T) {
	const times = 7
	info := testInfo(t, times)
	m, err := DefineModel(info, Stock)
	require.NoError(t, err)

	tests := []struct {
		level    Level
		entities int
	}{
		{Market, 1},
		{Sector, 2},
		{Industry, 2},
		{Stock, 3},
	}
	require.Len(t, tests, len(Levels()))
	for i, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			require.Equal(t, Levels()[i], tt.level)
			require.Equal(t, tt.entities, info.NumEntities(tt.level))

			mu := m.Location(sampleParams(m, tt.level, 0.2*float64(i)))
			r, c := mu.Dims()
			assert.Equal(t, tt.entities, r)
			assert.Equal(t, times, c)
			for e := 0; e < r; e++ {
				for j := 0; j < c; j++ {
					assert.False(t, math.IsNaN(mu.At(e, j)), "entity %d day %d", e, j)
				}
			}
			p := sampleParams(m, tt.level, 0.2*float64(i))
			assert.InDelta(t, mat.Dot(p.Phi.RowView(r-1), info.TT.ColView(c-1)), mu.At(r-1, c-1), 1e-12)
		})
	}
}

func TestLogProbRejectsWrongShapes(t *testing.T) {
	info := testInfo(t, 5)
	m, err := DefineModel(info, Sector)
	require.NoError(t, err)

	market := m.ZeroParams(Market)
	sector := m.ZeroParams(Sector)
	_, err = m.LogProb([]Params{market}, mat.NewDense(2, 5, nil))
	assert.Error(t, err)

	_, err = m.LogProb([]Params{market, sector}, mat.NewDense(3, 5, nil))
	assert.Error(t, err)

	_, err = m.LogProb([]Params{market, m.ZeroParams(Stock)}, mat.NewDense(2, 5, nil))
	assert.Error(t, err)

	lp, err := m.LogProb([]Params{market, sector}, mat.NewDense(2, 5, nil))
	require.NoError(t, err)
	assert.False(t, math.IsNaN(lp))
}

func TestObjectiveIsNegativeLogProb(t *testing.T) {
	info := testInfo(t, 8)
	m, err := DefineModel(info, Stock)
	require.NoError(t, err)

	frozen := []Params{
		sampleParams(m, Market, 0.2),
		sampleParams(m, Sector, 0.3),
		sampleParams(m, Industry, 0.4),
	}
	y := filled(3, 8, 1.0)
	obj, err := m.objective(frozen, y)
	require.NoError(t, err)

	p := sampleParams(m, Stock, 0.5)
	lp, err := m.LogProb(append(append([]Params(nil), frozen...), p), y)
	require.NoError(t, err)
	assert.InDelta(t, -lp, obj.eval(obj.pack(p), nil), 1e-9*math.Abs(lp))
	assert.True(t, p.Equal(obj.unpack(obj.pack(p))))
}

func TestObjectiveGradientMatchesFiniteDifferences(t *testing.T) {
	info := testInfo(t, 12)
	for _, level := range Levels() {
		m, err := DefineModel(info, level)
		require.NoError(t, err)

		var frozen []Params
		for l := Market; l < level; l++ {
			frozen = append(frozen, sampleParams(m, l, 0.1*float64(l+1)))
		}
		y, err := StageTarget(level, filled(3, 12, 0.8), info)
		require.NoError(t, err)
		obj, err := m.objective(frozen, y)
		require.NoError(t, err)

		x := obj.pack(sampleParams(m, level, 0.6))
		grad := make([]float64, len(x))
		obj.eval(x, grad)

		const h = 1e-6
		for i := range x {
			xp := append([]float64(nil), x...)
			xm := append([]float64(nil), x...)
			xp[i] += h
			xm[i] -= h
			num := (obj.eval(xp, nil) - obj.eval(xm, nil)) / (2 * h)
			assert.InDelta(t, num, grad[i], 1e-4*math.Max(1, math.Abs(num)), "%s coordinate %d", level, i)
		}
	}
}

func TestObjectiveNeedsFrozenLayers(t *testing.T) {
	m, err := DefineModel(testInfo(t, 6), Industry)
	require.NoError(t, err)
	_, err = m.objective([]Params{m.ZeroParams(Market)}, mat.NewDense(2, 6, nil))
	assert.Error(t, err)
}
