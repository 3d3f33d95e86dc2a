package trend

import (
	"fmt"
	"math"

	"Volatile/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TimeBasis returns the (order+1)×T polynomial basis of the observed days:
// row k holds ((j+1)/T)^k for j = 0..T-1.
func TimeBasis(t, order int) *mat.Dense {
	tt := mat.NewDense(order+1, t, nil)
	for j := 0; j < t; j++ {
		x := float64(j+1) / float64(t)
		for k := 0; k <= order; k++ {
			tt.Set(k, j, math.Pow(x, float64(k)))
		}
	}
	return tt
}

// ForecastBasis returns the (order+1)×(horizon+1) basis at the forecast
// offsets 1 + h/T for h = 0..horizon, normalised like TimeBasis.
func ForecastBasis(t, order, horizon int) *mat.Dense {
	tt := mat.NewDense(order+1, horizon+1, nil)
	for h := 0; h <= horizon; h++ {
		x := 1 + float64(h)/float64(t)
		for k := 0; k <= order; k++ {
			tt.Set(k, h, math.Pow(x, float64(k)))
		}
	}
	return tt
}

// OrderScale returns the decreasing weights that scale the prior of each
// polynomial coefficient, e.g. [1, 2/3, 1/3] for order 2.
func OrderScale(order int) []float64 {
	s := make([]float64, order+1)
	floats.Span(s, 1/float64(order+1), 1)
	floats.Reverse(s)
	return s
}

// Info bundles what every model needs besides parameters and observations.
type Info struct {
	Hierarchy  *models.Hierarchy
	TT         *mat.Dense
	OrderScale []float64
}

// NewInfo builds the model information for T observed days.
func NewInfo(h *models.Hierarchy, t, order int) (Info, error) {
	if t < 2 {
		return Info{}, fmt.Errorf("need at least 2 observations, got %d", t)
	}
	if order < 1 {
		return Info{}, fmt.Errorf("polynomial order must be >= 1, got %d", order)
	}
	if err := h.Validate(); err != nil {
		return Info{}, fmt.Errorf("hierarchy: %w", err)
	}
	return Info{Hierarchy: h, TT: TimeBasis(t, order), OrderScale: OrderScale(order)}, nil
}

// Order returns the polynomial order.
func (i Info) Order() int { return len(i.OrderScale) - 1 }

// NumTimes returns the number of observed days.
func (i Info) NumTimes() int {
	_, t := i.TT.Dims()
	return t
}

// NumEntities returns how many rows a level's parameters have.
func (i Info) NumEntities(l Level) int {
	switch l {
	case Market:
		return 1
	case Sector:
		return i.Hierarchy.NumSectors
	case Industry:
		return i.Hierarchy.NumIndustries
	default:
		return i.Hierarchy.NumStocks()
	}
}
