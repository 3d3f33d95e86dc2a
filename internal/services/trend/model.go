package trend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var halfLog2Pi = 0.5 * math.Log(2*math.Pi)

// Params are the polynomial coefficients φ (N×(order+1)) and the
// pre-softplus volatilities ψ (N×1) of the entities of one level.
type Params struct {
	Phi *mat.Dense
	Psi *mat.Dense
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	return Params{Phi: mat.DenseCopyOf(p.Phi), Psi: mat.DenseCopyOf(p.Psi)}
}

// Equal reports whether p and q hold identical values.
func (p Params) Equal(q Params) bool {
	return mat.Equal(p.Phi, q.Phi) && mat.Equal(p.Psi, q.Psi)
}

// Rows returns the number of entities.
func (p Params) Rows() int {
	r, _ := p.Phi.Dims()
	return r
}

// layer is one (φ, ψ) prior pair of the generative model.
type layer struct {
	level Level
	scale priorScale
}

// layersFor lists the parameter layers of a model observed at level,
// coarsest first.
func layersFor(level Level) []layer {
	ls := make([]layer, 0, int(level)+1)
	for l := Market; l <= level; l++ {
		ls = append(ls, layer{level: l, scale: priorScales[l]})
	}
	return ls
}

// Model is the joint distribution over the trend parameters of every level
// down to the observed one, and the log-prices observed at that level.
type Model struct {
	level  Level
	info   Info
	layers []layer
}

// DefineModel builds the model observed at level.
func DefineModel(info Info, level Level) (*Model, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}
	if info.TT == nil {
		return nil, fmt.Errorf("time basis is required")
	}
	if r, _ := info.TT.Dims(); r != len(info.OrderScale) {
		return nil, fmt.Errorf("time basis has %d rows, order scale has %d entries", r, len(info.OrderScale))
	}
	if level > Market {
		if err := info.Hierarchy.Validate(); err != nil {
			return nil, fmt.Errorf("hierarchy: %w", err)
		}
	}
	return &Model{level: level, info: info, layers: layersFor(level)}, nil
}

// DefineModelByName is DefineModel with the level given by name.
func DefineModelByName(info Info, name string) (*Model, error) {
	level, err := ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return DefineModel(info, level)
}

// Level returns the observed level.
func (m *Model) Level() Level { return m.level }

// Layers returns the levels whose parameters the model holds, coarsest first.
func (m *Model) Layers() []Level {
	out := make([]Level, len(m.layers))
	for i, l := range m.layers {
		out[i] = l.level
	}
	return out
}

// ZeroParams returns zero parameters shaped like a sample of level l.
func (m *Model) ZeroParams(l Level) Params {
	n := m.info.NumEntities(l)
	return Params{
		Phi: mat.NewDense(n, len(m.info.OrderScale), nil),
		Psi: mat.NewDense(n, 1, nil),
	}
}

// PriorLocation returns the prior means of φ and ψ at level l given the
// parameters of the next coarser level. Market priors are centred at zero.
func (m *Model) PriorLocation(l Level, parent Params) (*mat.Dense, *mat.Dense) {
	h := m.info.Hierarchy
	switch l {
	case Sector:
		ids := make([]int, h.NumSectors)
		return gatherRows(parent.Phi, ids), gatherRows(parent.Psi, ids)
	case Industry:
		return gatherRows(parent.Phi, h.SectorIndustriesID), gatherRows(parent.Psi, h.SectorIndustriesID)
	case Stock:
		return gatherRows(parent.Phi, h.IndustriesID), gatherRows(parent.Psi, h.IndustriesID)
	default:
		z := m.ZeroParams(Market)
		return z.Phi, z.Psi
	}
}

// Location returns the mean of the observation layer, φ·tt.
func (m *Model) Location(p Params) *mat.Dense {
	var mu mat.Dense
	mu.Mul(p.Phi, m.info.TT)
	return &mu
}

// LogProb returns the log joint density of params, one entry per layer
// coarsest first, and of the observed log-prices y.
func (m *Model) LogProb(params []Params, y *mat.Dense) (float64, error) {
	if len(params) != len(m.layers) {
		return 0, fmt.Errorf("%s model needs %d parameter layers, got %d", m.level, len(m.layers), len(params))
	}
	if err := m.checkShapes(params, y); err != nil {
		return 0, err
	}
	var lp float64
	for i := range m.layers {
		lp += m.priorLogProb(i, params)
	}

	last := params[len(params)-1]
	mu := m.Location(last)
	rows, cols := y.Dims()
	for i := 0; i < rows; i++ {
		sigma := Softplus(last.Psi.At(i, 0))
		for t := 0; t < cols; t++ {
			lp += distuv.Normal{Mu: mu.At(i, t), Sigma: sigma}.LogProb(y.At(i, t))
		}
	}
	return lp, nil
}

// priorLogProb is the log density of layer i given layer i-1.
func (m *Model) priorLogProb(i int, params []Params) float64 {
	ly := m.layers[i]
	var parent Params
	if i > 0 {
		parent = params[i-1]
	}
	phiLoc, psiLoc := m.PriorLocation(ly.level, parent)
	p := params[i]
	rows, cols := p.Phi.Dims()

	var lp float64
	for r := 0; r < rows; r++ {
		for k := 0; k < cols; k++ {
			s := ly.scale.phi * m.info.OrderScale[k]
			lp += distuv.Normal{Mu: phiLoc.At(r, k), Sigma: s}.LogProb(p.Phi.At(r, k))
		}
		lp += distuv.Normal{Mu: psiLoc.At(r, 0), Sigma: ly.scale.psi}.LogProb(p.Psi.At(r, 0))
	}
	return lp
}

func (m *Model) checkShapes(params []Params, y *mat.Dense) error {
	for i, ly := range m.layers {
		want := m.info.NumEntities(ly.level)
		p := params[i]
		if p.Phi == nil || p.Psi == nil {
			return fmt.Errorf("%s parameters are missing", ly.level)
		}
		r, c := p.Phi.Dims()
		if r != want || c != len(m.info.OrderScale) {
			return fmt.Errorf("%s phi is %dx%d, want %dx%d", ly.level, r, c, want, len(m.info.OrderScale))
		}
		if r, c := p.Psi.Dims(); r != want || c != 1 {
			return fmt.Errorf("%s psi is %dx%d, want %dx1", ly.level, r, c, want)
		}
	}
	if y == nil {
		return fmt.Errorf("observations are required")
	}
	r, c := y.Dims()
	if r != m.info.NumEntities(m.level) || c != m.info.NumTimes() {
		return fmt.Errorf("%s observations are %dx%d, want %dx%d", m.level, r, c, m.info.NumEntities(m.level), m.info.NumTimes())
	}
	return nil
}

// gatherRows returns the matrix whose row i is row ids[i] of src.
func gatherRows(src *mat.Dense, ids []int) *mat.Dense {
	_, c := src.Dims()
	out := mat.NewDense(len(ids), c, nil)
	for i, id := range ids {
		out.SetRow(i, src.RawRowView(id))
	}
	return out
}

// objective is the negative log joint density as a function of the
// observed level's parameters, with every coarser layer held fixed.
// Points are packed as φ row-major followed by ψ.
type objective struct {
	rows, cols int
	tt         *mat.Dense
	y          *mat.Dense
	phiLoc     *mat.Dense
	psiLoc     *mat.Dense
	phiScale   []float64
	psiScale   float64
	constant   float64

	mu    mat.Dense
	resid mat.Dense
}

// objective fixes the frozen layers, coarsest first, and the observations y.
func (m *Model) objective(frozen []Params, y *mat.Dense) (*objective, error) {
	if len(frozen) != len(m.layers)-1 {
		return nil, fmt.Errorf("%s stage needs %d frozen layers, got %d", m.level, len(m.layers)-1, len(frozen))
	}
	params := append(append([]Params(nil), frozen...), m.ZeroParams(m.level))
	if err := m.checkShapes(params, y); err != nil {
		return nil, err
	}

	var constant float64
	for i := range frozen {
		constant -= m.priorLogProb(i, params)
	}
	var parent Params
	if len(frozen) > 0 {
		parent = frozen[len(frozen)-1]
	}
	phiLoc, psiLoc := m.PriorLocation(m.level, parent)

	sc := priorScales[m.level]
	phiScale := make([]float64, len(m.info.OrderScale))
	for k, s := range m.info.OrderScale {
		phiScale[k] = sc.phi * s
	}
	return &objective{
		rows:     m.info.NumEntities(m.level),
		cols:     len(m.info.OrderScale),
		tt:       m.info.TT,
		y:        y,
		phiLoc:   phiLoc,
		psiLoc:   psiLoc,
		phiScale: phiScale,
		psiScale: sc.psi,
		constant: constant,
	}, nil
}

func (o *objective) size() int { return o.rows*o.cols + o.rows }

func (o *objective) pack(p Params) []float64 {
	x := make([]float64, o.size())
	for i := 0; i < o.rows; i++ {
		copy(x[i*o.cols:(i+1)*o.cols], p.Phi.RawRowView(i))
		x[o.rows*o.cols+i] = p.Psi.At(i, 0)
	}
	return x
}

func (o *objective) unpack(x []float64) Params {
	n := o.rows * o.cols
	phi := make([]float64, n)
	psi := make([]float64, o.rows)
	copy(phi, x[:n])
	copy(psi, x[n:])
	return Params{Phi: mat.NewDense(o.rows, o.cols, phi), Psi: mat.NewDense(o.rows, 1, psi)}
}

// eval returns the objective at x. When grad is not nil it receives the
// gradient with respect to x.
func (o *objective) eval(x, grad []float64) float64 {
	n := o.rows * o.cols
	phi := mat.NewDense(o.rows, o.cols, x[:n])
	psi := x[n:]
	_, times := o.y.Dims()

	o.mu.Mul(phi, o.tt)
	o.resid.Sub(o.y, &o.mu)

	nll := o.constant
	for i := 0; i < o.rows; i++ {
		for k := 0; k < o.cols; k++ {
			d := phi.At(i, k) - o.phiLoc.At(i, k)
			nll += negNormalLogProb(d, o.phiScale[k])
		}
		d := psi[i] - o.psiLoc.At(i, 0)
		nll += negNormalLogProb(d, o.psiScale)

		sigma := Softplus(psi[i])
		var ss float64
		for _, r := range o.resid.RawRowView(i) {
			ss += r * r
		}
		nll += 0.5*ss/(sigma*sigma) + float64(times)*(math.Log(sigma)+halfLog2Pi)

		if grad != nil {
			dsigma := float64(times)/sigma - ss/(sigma*sigma*sigma)
			grad[n+i] = d/(o.psiScale*o.psiScale) + dsigma*Sigmoid(psi[i])
		}
	}
	if grad == nil {
		return nll
	}

	gphi := mat.NewDense(o.rows, o.cols, grad[:n])
	gphi.Mul(&o.resid, o.tt.T())
	for i := 0; i < o.rows; i++ {
		sigma := Softplus(psi[i])
		inv := 1 / (sigma * sigma)
		for k := 0; k < o.cols; k++ {
			s := o.phiScale[k]
			d := phi.At(i, k) - o.phiLoc.At(i, k)
			gphi.Set(i, k, d/(s*s)-gphi.At(i, k)*inv)
		}
	}
	return nll
}

func negNormalLogProb(d, sigma float64) float64 {
	z := d / sigma
	return 0.5*z*z + math.Log(sigma) + halfLog2Pi
}
