package trend

import (
	"context"
	"fmt"
	"math"
	"time"

	applogger "Volatile/pkg/logger"

	"gonum.org/v1/gonum/mat"
)

// DefaultNumSteps is the total number of optimizer steps across all stages.
const DefaultNumSteps = 10000

// State is a position in the staged fit. Stages run in order from Market
// to Stock; Done is terminal.
type State int

const (
	StateMarket State = iota
	StateSector
	StateIndustry
	StateStock
	StateDone
)

func (s State) String() string {
	if s == StateDone {
		return "done"
	}
	return Level(s).String()
}

// Level returns the level fitted in state s.
func (s State) Level() Level { return Level(s) }

func (s State) next() State {
	if s >= StateDone {
		return StateDone
	}
	return s + 1
}

// Frozen holds the parameters of every completed stage, coarsest first.
// Entries are deep copies and are not modified once appended.
type Frozen struct {
	layers []Params
}

// Len returns how many stages have completed.
func (f *Frozen) Len() int { return len(f.layers) }

// At returns the frozen parameters of level l.
func (f *Frozen) At(l Level) Params { return f.layers[l] }

// Layers returns the frozen parameters, coarsest first.
func (f *Frozen) Layers() []Params { return f.layers }

func (f *Frozen) freeze(p Params) { f.layers = append(f.layers, p.Clone()) }

// Fit is the outcome of a full staged run.
type Fit struct {
	Params [NumLevels]Params
	Losses [NumLevels][]float64
}

// StageHook is called after each stage with the stage just finished and
// the frozen bundle handed to the next one.
type StageHook func(done State, frozen *Frozen)

// Trainer fits the four levels one after the other.
type Trainer struct {
	solver   Solver
	numSteps int
	l        *applogger.Logger
	hook     StageHook
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithSolver replaces the default Adam solver.
func WithSolver(s Solver) Option {
	return func(t *Trainer) {
		if s != nil {
			t.solver = s
		}
	}
}

// WithNumSteps sets the total number of steps shared by the four stages.
func WithNumSteps(n int) Option {
	return func(t *Trainer) {
		if n > 0 {
			t.numSteps = n
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(t *Trainer) { t.l = l }
}

// WithStageHook registers a callback run between stages.
func WithStageHook(h StageHook) Option {
	return func(t *Trainer) { t.hook = h }
}

// NewTrainer returns a trainer using Adam with learning rate 0.01 and
// DefaultNumSteps unless overridden.
func NewTrainer(opts ...Option) *Trainer {
	t := &Trainer{solver: NewAdam(0.01), numSteps: DefaultNumSteps}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StepsPerStage returns ceil(numSteps / 4).
func (t *Trainer) StepsPerStage() int {
	return int(math.Ceil(float64(t.numSteps) / NumLevels))
}

// Train fits market, sector, industry and stock trends to logp, a
// stocks × T matrix of log-prices. Any stage failure aborts the run.
func (t *Trainer) Train(ctx context.Context, logp *mat.Dense, info Info) (*Fit, error) {
	if logp == nil {
		return nil, fmt.Errorf("log prices are required")
	}
	if r, c := logp.Dims(); r != info.NumEntities(Stock) || c != info.NumTimes() {
		return nil, fmt.Errorf("log prices are %dx%d, want %dx%d", r, c, info.NumEntities(Stock), info.NumTimes())
	}

	fit := &Fit{}
	frozen := &Frozen{}
	for state := StateMarket; state != StateDone; state = state.next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s stage: %w", state, err)
		}
		params, losses, err := t.runStage(ctx, state.Level(), logp, info, frozen)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", state, err)
		}
		frozen.freeze(params)
		fit.Params[state] = frozen.At(state.Level())
		fit.Losses[state] = losses
		if t.hook != nil {
			t.hook(state, frozen)
		}
	}
	return fit, nil
}

func (t *Trainer) runStage(ctx context.Context, level Level, logp *mat.Dense, info Info, frozen *Frozen) (Params, []float64, error) {
	start := time.Now()
	if t.l != nil {
		t.l.Info("Training stage started",
			applogger.String("stage", level.String()),
			applogger.String("solver", t.solver.Name()),
			applogger.Int("steps", t.StepsPerStage()))
	}

	model, err := DefineModel(info, level)
	if err != nil {
		return Params{}, nil, err
	}
	y, err := StageTarget(level, logp, info)
	if err != nil {
		return Params{}, nil, err
	}
	obj, err := model.objective(frozen.Layers(), y)
	if err != nil {
		return Params{}, nil, err
	}

	x0 := obj.pack(model.ZeroParams(level))
	res, err := t.solver.Minimize(ctx, obj.eval, x0, t.StepsPerStage())
	if err != nil {
		return Params{}, res.Losses, err
	}

	if t.l != nil {
		final := math.NaN()
		if n := len(res.Losses); n > 0 {
			final = res.Losses[n-1]
		}
		t.l.Info("Training stage completed",
			applogger.String("stage", level.String()),
			applogger.Float64("loss", final),
			applogger.Int("iterations", len(res.Losses)),
			applogger.Duration("took", time.Since(start)))
	}
	return obj.unpack(res.X), res.Losses, nil
}

// StageTarget returns the observations a stage is fitted to: the column
// mean of logp for the market, group means for sectors and industries and
// logp itself for stocks.
func StageTarget(level Level, logp *mat.Dense, info Info) (*mat.Dense, error) {
	h := info.Hierarchy
	switch level {
	case Market:
		return groupMeans(logp, make([]int, h.NumStocks()), 1)
	case Sector:
		return groupMeans(logp, h.SectorsID, h.NumSectors)
	case Industry:
		return groupMeans(logp, h.IndustriesID, h.NumIndustries)
	case Stock:
		return mat.DenseCopyOf(logp), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}
}

// groupMeans averages the rows of x sharing a group id.
func groupMeans(x *mat.Dense, ids []int, groups int) (*mat.Dense, error) {
	_, c := x.Dims()
	out := mat.NewDense(groups, c, nil)
	counts := make([]int, groups)
	for i, g := range ids {
		row := out.RawRowView(g)
		for j, v := range x.RawRowView(i) {
			row[j] += v
		}
		counts[g]++
	}
	for g, n := range counts {
		if n == 0 {
			return nil, fmt.Errorf("group %d has no stocks", g)
		}
		row := out.RawRowView(g)
		for j := range row {
			row[j] /= float64(n)
		}
	}
	return out, nil
}
