package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"Volatile/internal/domain/models"
	"Volatile/pkg/util"

	"gonum.org/v1/gonum/mat"
)

// ErrNoData is returned when no symbol has enough prices to be kept.
var ErrNoData = errors.New("no symbol has enough price history")

// Dropped describes a symbol excluded from alignment.
type Dropped struct {
	Symbol   string
	Coverage float64
}

// Aligned holds series that share one date axis. Close and Volume are
// indexed [kept series][day].
type Aligned struct {
	Series []models.Series
	Dates  []time.Time
	Close  [][]float64
	Volume [][]float64
}

// Align puts series on the union of their trading days. Series observed on
// fewer than minCoverage of those days are dropped, and the union is then
// taken again over the kept series. Missing closes are forward filled, then
// back filled; missing volumes are zero.
func Align(series []models.Series, minCoverage float64) (Aligned, []Dropped, error) {
	days := make([][]time.Time, 0, len(series))
	for _, s := range series {
		days = append(days, validDays(s))
	}
	all := util.UnionDays(days...)
	if len(all) == 0 {
		return Aligned{}, nil, ErrNoData
	}

	var (
		kept     []models.Series
		keptDays [][]time.Time
		dropped  []Dropped
	)
	for i, s := range series {
		cov := float64(len(days[i])) / float64(len(all))
		if len(days[i]) == 0 || cov < minCoverage {
			dropped = append(dropped, Dropped{Symbol: s.Symbol, Coverage: cov})
			continue
		}
		kept = append(kept, s)
		keptDays = append(keptDays, days[i])
	}
	if len(kept) == 0 {
		return Aligned{}, dropped, ErrNoData
	}

	out := Aligned{Series: kept, Dates: util.UnionDays(keptDays...)}
	for _, s := range kept {
		closes, volumes := onDays(s, out.Dates)
		if err := FillGaps(closes); err != nil {
			return Aligned{}, dropped, fmt.Errorf("%s: %w", s.Symbol, err)
		}
		out.Close = append(out.Close, closes)
		out.Volume = append(out.Volume, volumes)
	}
	return out, dropped, nil
}

// AlignTo reindexes s onto dates with forward then backward filling.
func AlignTo(s models.Series, dates []time.Time) ([]float64, error) {
	closes, _ := onDays(s, dates)
	if err := FillGaps(closes); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Symbol, err)
	}
	return closes, nil
}

// FillGaps replaces NaNs in place, first with the previous value and then,
// for a leading gap, with the first observed one.
func FillGaps(x []float64) error {
	first := -1
	for i, v := range x {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return fmt.Errorf("series has no observations")
	}
	for i := 0; i < first; i++ {
		x[i] = x[first]
	}
	for i := first + 1; i < len(x); i++ {
		if math.IsNaN(x[i]) {
			x[i] = x[i-1]
		}
	}
	return nil
}

// LogPrices returns the elementwise log of price as a stocks×days matrix.
func LogPrices(price [][]float64) (*mat.Dense, error) {
	if len(price) == 0 || len(price[0]) == 0 {
		return nil, fmt.Errorf("empty price matrix")
	}
	t := len(price[0])
	out := mat.NewDense(len(price), t, nil)
	for i, row := range price {
		if len(row) != t {
			return nil, fmt.Errorf("price row %d has %d days, want %d", i, len(row), t)
		}
		for j, p := range row {
			if !(p > 0) || math.IsInf(p, 0) {
				return nil, fmt.Errorf("price row %d day %d: invalid price %v", i, j, p)
			}
			out.Set(i, j, math.Log(p))
		}
	}
	return out, nil
}

// Rows copies m into a slice of rows.
func Rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		mat.Row(out[i], i, m)
	}
	return out
}

func validDays(s models.Series) []time.Time {
	out := make([]time.Time, 0, len(s.Dates))
	for j, d := range s.Dates {
		if j < len(s.Close) && s.Close[j] > 0 && !math.IsInf(s.Close[j], 0) {
			out = append(out, util.Day(d))
		}
	}
	return out
}

func onDays(s models.Series, dates []time.Time) (closes, volumes []float64) {
	pos := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		pos[d] = i
	}
	closes = make([]float64, len(dates))
	volumes = make([]float64, len(dates))
	for i := range closes {
		closes[i] = math.NaN()
	}
	for j, d := range s.Dates {
		i, ok := pos[util.Day(d)]
		if !ok || j >= len(s.Close) || !(s.Close[j] > 0) || math.IsInf(s.Close[j], 0) {
			continue
		}
		closes[i] = s.Close[j]
		if j < len(s.Volume) && !math.IsNaN(s.Volume[j]) {
			volumes[i] = s.Volume[j]
		}
	}
	return closes, volumes
}
