package trend

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// flatLogPrices returns constant log-prices per stock with a small
// zero-mean ripple of period 7 that vanishes on the last day of a
// 50-day window.
func flatLogPrices(levels []float64, times int) *mat.Dense {
	ripple := []float64{0, 0.01, -0.01, 0.01, -0.01, 0.01, -0.01}
	y := mat.NewDense(len(levels), times, nil)
	for i, c := range levels {
		for j := 0; j < times; j++ {
			y.Set(i, j, c+ripple[j%len(ripple)])
		}
	}
	return y
}

func TestStepsPerStage(t *testing.T) {
	assert.Equal(t, 2500, NewTrainer().StepsPerStage())
	assert.Equal(t, 3, NewTrainer(WithNumSteps(10)).StepsPerStage())
	assert.Equal(t, 1, NewTrainer(WithNumSteps(1)).StepsPerStage())
	assert.Equal(t, 2500, NewTrainer(WithNumSteps(-4)).StepsPerStage())
}

func TestStageTarget(t *testing.T) {
	info := testInfo(t, 3)
	logp := mat.NewDense(3, 3, []float64{1, 2, 3, 3, 4, 5, 10, 10, 10})

	market, err := StageTarget(Market, logp, info)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{14.0 / 3, 16.0 / 3, 6}, market.RawRowView(0), 1e-12)

	sector, err := StageTarget(Sector, logp, info)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, sector.RawRowView(0))
	assert.Equal(t, []float64{10, 10, 10}, sector.RawRowView(1))

	industry, err := StageTarget(Industry, logp, info)
	require.NoError(t, err)
	assert.True(t, mat.Equal(sector, industry))

	stock, err := StageTarget(Stock, logp, info)
	require.NoError(t, err)
	assert.True(t, mat.Equal(logp, stock))
	stock.Set(0, 0, 99)
	assert.Equal(t, 1.0, logp.At(0, 0))
}

func TestStageTargetEmptyGroup(t *testing.T) {
	info := testInfo(t, 3)
	info.Hierarchy.SectorsID = []int{0, 0, 0}
	_, err := StageTarget(Sector, mat.NewDense(3, 3, nil), info)
	assert.Error(t, err)
}

func TestTrainAdamRecordsEveryStep(t *testing.T) {
	info := testInfo(t, 50)
	logp := flatLogPrices([]float64{1, 1.2, 0.8}, 50)

	fit, err := NewTrainer(WithNumSteps(2000)).Train(context.Background(), logp, info)
	require.NoError(t, err)

	for _, l := range Levels() {
		losses := fit.Losses[l]
		require.Len(t, losses, 500, l.String())
		assert.Less(t, losses[len(losses)-1], losses[0], l.String())
		for _, v := range losses {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
		r, _ := fit.Params[l].Phi.Dims()
		assert.Equal(t, info.NumEntities(l), r)
	}

	for _, g := range Growth(fit.Params[Stock].Phi, 50) {
		assert.InDelta(t, 0, g, 0.1)
	}
}

func TestTrainFlatSeriesHasNoTrend(t *testing.T) {
	const times, horizon = 50, 5
	info := testInfo(t, times)
	logp := flatLogPrices([]float64{1, 1.5, 2}, times)

	fit, err := NewTrainer(WithSolver(&LBFGS{Store: 15}), WithNumSteps(4000)).Train(context.Background(), logp, info)
	require.NoError(t, err)

	stock := fit.Params[Stock]
	for i := 0; i < 3; i++ {
		for k := 1; k <= info.Order(); k++ {
			assert.InDelta(t, 0, stock.Phi.At(i, k), 0.05, "stock %d coefficient %d", i, k)
		}
	}
	for _, g := range Growth(stock.Phi, times) {
		assert.InDelta(t, 0, g, 1e-3)
	}

	pred, err := EstimateLogPriceStatistics(stock.Phi, stock.Psi, ForecastBasis(times, info.Order(), horizon))
	require.NoError(t, err)
	scores, err := Scores(pred.Mean, logp, pred.Std, horizon)
	require.NoError(t, err)
	for _, s := range scores {
		assert.InDelta(t, 0, s, 1)
	}
}

func TestTrainNeverMutatesFrozenStages(t *testing.T) {
	info := testInfo(t, 30)
	logp := flatLogPrices([]float64{0.5, 0.7, 1.4}, 30)

	var snapshots []Params
	var states []State
	hook := func(done State, frozen *Frozen) {
		states = append(states, done)
		require.Equal(t, int(done)+1, frozen.Len())
		for l, snap := range snapshots {
			assert.True(t, snap.Equal(frozen.At(Level(l))), "%s changed during %s", Level(l), done)
		}
		snapshots = append(snapshots, frozen.At(done.Level()).Clone())
	}

	fit, err := NewTrainer(WithNumSteps(400), WithStageHook(hook)).Train(context.Background(), logp, info)
	require.NoError(t, err)
	assert.Equal(t, []State{StateMarket, StateSector, StateIndustry, StateStock}, states)
	for l, snap := range snapshots {
		assert.True(t, snap.Equal(fit.Params[l]))
	}
}

func TestTrainDivergenceAbortsRun(t *testing.T) {
	info := testInfo(t, 10)
	logp := flatLogPrices([]float64{1, 1, 1}, 10)
	logp.Set(1, 4, math.NaN())

	var finished []State
	tr := NewTrainer(WithNumSteps(40), WithStageHook(func(done State, _ *Frozen) { finished = append(finished, done) }))
	fit, err := tr.Train(context.Background(), logp, info)
	require.Error(t, err)
	assert.Nil(t, fit)
	assert.True(t, errors.Is(err, ErrDivergence))
	assert.Contains(t, err.Error(), "market stage")
	assert.Empty(t, finished)
}

func TestTrainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTrainer().Train(ctx, flatLogPrices([]float64{1, 1, 1}, 10), testInfo(t, 10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainRejectsMismatchedLogPrices(t *testing.T) {
	_, err := NewTrainer().Train(context.Background(), mat.NewDense(2, 10, nil), testInfo(t, 10))
	assert.Error(t, err)
}

func TestAdamMinimizesQuadratic(t *testing.T) {
	f := func(x, grad []float64) float64 {
		if grad != nil {
			grad[0] = 2 * (x[0] - 3)
			grad[1] = 2 * (x[1] + 1)
		}
		return (x[0]-3)*(x[0]-3) + (x[1]+1)*(x[1]+1)
	}
	res, err := NewAdam(0.01).Minimize(context.Background(), f, []float64{0, 0}, 3000)
	require.NoError(t, err)
	assert.Len(t, res.Losses, 3000)
	assert.InDelta(t, 3, res.X[0], 0.05)
	assert.InDelta(t, -1, res.X[1], 0.05)
}

func TestAdamFirstStepMovesByLearningRate(t *testing.T) {
	f := func(x, grad []float64) float64 {
		if grad != nil {
			grad[0] = 100
		}
		return 100 * x[0]
	}
	res, err := NewAdam(0.01).Minimize(context.Background(), f, []float64{0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, -0.01, res.X[0], 1e-8)
	assert.Equal(t, []float64{0}, res.Losses)
}

func TestLBFGSMinimizesQuadratic(t *testing.T) {
	f := func(x, grad []float64) float64 {
		if grad != nil {
			grad[0] = 2 * (x[0] - 3)
			grad[1] = 20 * (x[1] + 1)
		}
		return (x[0]-3)*(x[0]-3) + 10*(x[1]+1)*(x[1]+1)
	}
	res, err := (&LBFGS{Store: 5}).Minimize(context.Background(), f, []float64{0, 0}, 100)
	require.NoError(t, err)
	assert.InDelta(t, 3, res.X[0], 1e-4)
	assert.InDelta(t, -1, res.X[1], 1e-4)
	assert.NotEmpty(t, res.Losses)
}

func TestSolverDivergence(t *testing.T) {
	f := func(x, grad []float64) float64 {
		if grad != nil {
			grad[0] = 1
		}
		if x[0] < -0.015 {
			return math.Inf(1)
		}
		return x[0]
	}
	res, err := NewAdam(0.01).Minimize(context.Background(), f, []float64{0}, 10)
	assert.ErrorIs(t, err, ErrDivergence)
	assert.Len(t, res.Losses, 2)
}

func TestNewSolver(t *testing.T) {
	s, err := NewSolver("adam", 0.02)
	require.NoError(t, err)
	assert.Equal(t, 0.02, s.(*Adam).LearningRate)

	s, err = NewSolver("lbfgs", 0.02)
	require.NoError(t, err)
	assert.Equal(t, "lbfgs", s.Name())

	_, err = NewSolver("sgd", 0.02)
	assert.Error(t, err)
}
