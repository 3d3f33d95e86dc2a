package trend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Moments are per-entity, per-time means and standard deviations.
type Moments struct {
	Mean *mat.Dense
	Std  *mat.Dense
}

// EstimateLogPriceStatistics returns the mean φ·tt and the standard
// deviation softplus(ψ) broadcast over the columns of tt.
func EstimateLogPriceStatistics(phi, psi, tt *mat.Dense) (Moments, error) {
	n, k := phi.Dims()
	if r, c := psi.Dims(); r != n || c != 1 {
		return Moments{}, fmt.Errorf("psi is %dx%d, want %dx1", r, c, n)
	}
	kt, t := tt.Dims()
	if kt != k {
		return Moments{}, fmt.Errorf("basis has %d rows, phi has %d columns", kt, k)
	}

	mean := mat.NewDense(n, t, nil)
	mean.Mul(phi, tt)
	std := mat.NewDense(n, t, nil)
	for i := 0; i < n; i++ {
		s := Softplus(psi.At(i, 0))
		row := std.RawRowView(i)
		for j := range row {
			row[j] = s
		}
	}
	return Moments{Mean: mean, Std: std}, nil
}

// EstimatePriceStatistics maps log-normal moments to the mean and standard
// deviation of the price itself.
func EstimatePriceStatistics(logMean, logStd *mat.Dense) (Moments, error) {
	r, c := logMean.Dims()
	if sr, sc := logStd.Dims(); sr != r || sc != c {
		return Moments{}, fmt.Errorf("std is %dx%d, mean is %dx%d", sr, sc, r, c)
	}
	mean := mat.NewDense(r, c, nil)
	std := mat.NewDense(r, c, nil)
	mean.Apply(func(i, j int, mu float64) float64 {
		s := logStd.At(i, j)
		return math.Exp(mu + s*s/2)
	}, logMean)
	std.Apply(func(i, j int, mu float64) float64 {
		s2 := logStd.At(i, j) * logStd.At(i, j)
		return math.Sqrt(math.Exp(2*mu+s2) * math.Expm1(s2))
	}, logMean)
	return Moments{Mean: mean, Std: std}, nil
}

// Band returns row i of m as mean ± 2 std with the lower bound clipped at 0.
func (m Moments) Band(i int) (mean, std, lower, upper []float64) {
	mean = mat.Row(nil, i, m.Mean)
	std = mat.Row(nil, i, m.Std)
	lower = make([]float64, len(mean))
	upper = make([]float64, len(mean))
	for j := range mean {
		lower[j] = math.Max(mean[j]-2*std[j], 0)
		upper[j] = mean[j] + 2*std[j]
	}
	return mean, std, lower, upper
}

// Softplus is log(1+exp(x)) without overflow for large x.
func Softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}

// Sigmoid is the derivative of Softplus.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
