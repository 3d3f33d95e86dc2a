package trend

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// ErrDivergence is returned when the loss or its gradient stops being finite.
var ErrDivergence = errors.New("optimization diverged")

// ObjectiveFunc evaluates a loss at x. When grad is not nil it is filled
// with the gradient at x.
type ObjectiveFunc func(x, grad []float64) float64

// Result is the outcome of a minimization.
type Result struct {
	X      []float64
	Losses []float64 // loss before every step
}

// Solver minimizes an objective starting from x0 for at most steps
// iterations.
type Solver interface {
	Name() string
	Minimize(ctx context.Context, f ObjectiveFunc, x0 []float64, steps int) (Result, error)
}

// Adam is the Adam optimizer with bias correction folded into the step size.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// NewAdam returns Adam with the usual moment decays and the given
// learning rate.
func NewAdam(learningRate float64) *Adam {
	return &Adam{LearningRate: learningRate, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

func (a *Adam) Name() string { return "adam" }

// Minimize runs exactly steps Adam updates unless ctx is cancelled or the
// loss diverges.
func (a *Adam) Minimize(ctx context.Context, f ObjectiveFunc, x0 []float64, steps int) (Result, error) {
	n := len(x0)
	x := make([]float64, n)
	copy(x, x0)
	m := make([]float64, n)
	v := make([]float64, n)
	grad := make([]float64, n)
	losses := make([]float64, 0, steps)

	b1t, b2t := 1.0, 1.0
	for t := 1; t <= steps; t++ {
		if err := ctx.Err(); err != nil {
			return Result{X: x, Losses: losses}, err
		}
		loss := f(x, grad)
		if !isFinite(loss) || !allFinite(grad) {
			return Result{X: x, Losses: losses}, fmt.Errorf("%w at step %d: loss %v", ErrDivergence, t, loss)
		}
		losses = append(losses, loss)

		b1t *= a.Beta1
		b2t *= a.Beta2
		alpha := a.LearningRate * math.Sqrt(1-b2t) / (1 - b1t)
		for i, g := range grad {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
			x[i] -= alpha * m[i] / (math.Sqrt(v[i]) + a.Epsilon)
		}
	}
	return Result{X: x, Losses: losses}, nil
}

// LBFGS minimizes with gonum's limited-memory BFGS. It usually needs far
// fewer iterations than Adam and stops early on convergence.
type LBFGS struct {
	Store int
}

func (s *LBFGS) Name() string { return "lbfgs" }

func (s *LBFGS) Minimize(ctx context.Context, f ObjectiveFunc, x0 []float64, steps int) (Result, error) {
	rec := &lossRecorder{ctx: ctx}
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return f(x, nil) },
		Grad: func(grad, x []float64) { f(x, grad) },
	}
	settings := &optimize.Settings{
		MajorIterations: steps,
		Recorder:        rec,
	}
	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{Store: s.Store})
	if rec.err != nil {
		x := x0
		if res != nil {
			x = res.X
		}
		return Result{X: x, Losses: rec.losses}, rec.err
	}
	if res == nil {
		return Result{Losses: rec.losses}, fmt.Errorf("lbfgs: %w", err)
	}
	// Line search failures near the optimum still leave a usable point.
	if err != nil && !isFinite(res.F) {
		return Result{X: res.X, Losses: rec.losses}, fmt.Errorf("lbfgs %s: %w", res.Status, err)
	}
	return Result{X: res.X, Losses: rec.losses}, nil
}

// lossRecorder collects the loss of every major iteration and stops the
// run on cancellation or divergence.
type lossRecorder struct {
	ctx    context.Context
	losses []float64
	err    error
}

func (r *lossRecorder) Init() error { return nil }

func (r *lossRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op != optimize.InitIteration && op != optimize.MajorIteration {
		return nil
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return err
	}
	if !isFinite(loc.F) {
		r.err = fmt.Errorf("%w after %d iterations: loss %v", ErrDivergence, len(r.losses), loc.F)
		return r.err
	}
	r.losses = append(r.losses, loc.F)
	return nil
}

// NewSolver returns the solver registered under name.
func NewSolver(name string, learningRate float64) (Solver, error) {
	switch name {
	case "", "adam":
		return NewAdam(learningRate), nil
	case "lbfgs":
		return &LBFGS{Store: 15}, nil
	default:
		return nil, fmt.Errorf("unknown solver %q: available solvers are [adam lbfgs]", name)
	}
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func allFinite(v []float64) bool {
	for _, x := range v {
		if !isFinite(x) {
			return false
		}
	}
	return true
}
