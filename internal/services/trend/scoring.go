package trend

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"Volatile/internal/domain/models"

	"gonum.org/v1/gonum/mat"
)

// Scores returns, per stock, how many standard deviations the predicted
// log-price at horizon sits above the last observed log-price.
func Scores(logpPred, logp, stdPred *mat.Dense, horizon int) ([]float64, error) {
	n, h := logpPred.Dims()
	if horizon < 0 || horizon >= h {
		return nil, fmt.Errorf("horizon %d outside prediction of length %d", horizon, h)
	}
	r, t := logp.Dims()
	if r != n || t == 0 {
		return nil, fmt.Errorf("log prices are %dx%d, want %d rows", r, t, n)
	}
	if sr, _ := stdPred.Dims(); sr != n {
		return nil, fmt.Errorf("std has %d rows, want %d", sr, n)
	}
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = (logpPred.At(i, horizon) - logp.At(i, t-1)) / stdPred.At(i, 0)
	}
	return scores, nil
}

// Growth returns the derivative of each fitted polynomial at the last
// observed day, Σ_k k·φ[i,k] / T.
func Growth(phi *mat.Dense, t int) []float64 {
	n, k := phi.Dims()
	out := make([]float64, n)
	for i := range out {
		var g float64
		for j := 1; j < k; j++ {
			g += float64(j) * phi.At(i, j)
		}
		out[i] = g / float64(t)
	}
	return out
}

// Thresholds are the lower score boundaries of the five rating bins.
// A score must be strictly greater than a boundary to enter its bin.
// HighlyAbove is the nominal boundary of the last bin: every score at or
// below Above lands there.
type Thresholds struct {
	HighlyBelow float64 `yaml:"highly_below" json:"highly_below"`
	Below       float64 `yaml:"below" json:"below"`
	Along       float64 `yaml:"along" json:"along"`
	Above       float64 `yaml:"above" json:"above"`
	HighlyAbove float64 `yaml:"highly_above" json:"highly_above"`
}

// DefaultThresholds returns the boundaries 3, 2, 0, -2 and -3.
func DefaultThresholds() Thresholds {
	return Thresholds{HighlyBelow: 3, Below: 2, Along: 0, Above: -2, HighlyAbove: -3}
}

// Validate checks the boundaries are strictly decreasing.
func (t Thresholds) Validate() error {
	if !(t.HighlyBelow > t.Below && t.Below > t.Along && t.Along > t.Above && t.Above > t.HighlyAbove) {
		return fmt.Errorf("thresholds must be strictly decreasing, got %v %v %v %v %v",
			t.HighlyBelow, t.Below, t.Along, t.Above, t.HighlyAbove)
	}
	return nil
}

// RateOne bins a single score. A positive score means the trend predicts
// a higher price than the current one, so the stock is below its trend.
func (t Thresholds) RateOne(score float64) models.Rating {
	switch {
	case score > t.HighlyBelow:
		return models.RatingHighlyBelow
	case score > t.Below:
		return models.RatingBelow
	case score > t.Along:
		return models.RatingAlong
	case score > t.Above:
		return models.RatingAbove
	default:
		return models.RatingHighlyAbove
	}
}

// Rate bins every score.
func Rate(scores []float64, t Thresholds) []models.Rating {
	out := make([]models.Rating, len(scores))
	for i, s := range scores {
		out[i] = t.RateOne(s)
	}
	return out
}

// Rank returns stock indices ordered by descending key, keeping the input
// order among ties. NaN keys go last.
func Rank(key []float64) []int {
	idx := make([]int, len(key))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := key[idx[a]], key[idx[b]]
		if math.IsNaN(kb) {
			return !math.IsNaN(ka)
		}
		return ka > kb
	})
	return idx
}

// ErrUnknownRankMode is returned for a ranking mode other than rate or growth.
var ErrUnknownRankMode = errors.New("unknown rank mode")

// RankMode selects the key stocks are ordered by.
type RankMode string

const (
	RankByRate   RankMode = "rate"
	RankByGrowth RankMode = "growth"
)

// ParseRankMode validates a ranking mode name.
func ParseRankMode(name string) (RankMode, error) {
	switch m := RankMode(name); m {
	case RankByRate, RankByGrowth:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q: available modes are [rate growth]", ErrUnknownRankMode, name)
	}
}

// Order ranks stocks by descending score or descending growth.
func (m RankMode) Order(scores, growth []float64) ([]int, error) {
	switch m {
	case RankByRate:
		return Rank(scores), nil
	case RankByGrowth:
		return Rank(growth), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownRankMode, string(m))
	}
}
