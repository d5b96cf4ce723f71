// Package augment extends models with extra state: regression coefficients,
// known exogenous effects, per-variable intercepts and measurement errors
// folded into the state.
package augment

import (
	"fmt"

	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

// Regression appends one constant, diffuse state per column of the design x
// to m. Row pos of x multiplies the coefficients at position pos. A design
// without columns returns m unchanged.
func Regression(m *ssf.Model, x *mat.Dense) (*ssf.Model, error) {
	if x == nil || x.IsEmpty() {
		return m, nil
	}
	_, nx := x.Dims()
	n := m.StateDim()
	init := &regInit{base: m.Initialization, nx: nx, diffuse: true}
	dyn := &regDynamics{base: m.Dynamics, nx: nx}
	meas := &regMeasurement{base: m.Measurement, n: n, x: design{x: x}}
	return ssf.NewModel(init, dyn, meas)
}

// Exogenous appends the known effects x·coefficients to the measurement of
// m. The appended state holds the coefficients exactly (no variance, no
// innovation), so nothing new is estimated.
func Exogenous(m *ssf.Model, x *mat.Dense, coefficients []float64) (*ssf.Model, error) {
	const op = "augment.Exogenous"
	if x == nil || x.IsEmpty() {
		if len(coefficients) != 0 {
			return nil, ssf.Reject(op, fmt.Errorf("%d coefficients for an empty design: %w", len(coefficients), ssf.ErrDimensionMismatch))
		}
		return m, nil
	}
	_, nx := x.Dims()
	if len(coefficients) != nx {
		return nil, ssf.Reject(op, fmt.Errorf("%d coefficients for %d columns: %w", len(coefficients), nx, ssf.ErrDimensionMismatch))
	}
	c := make([]float64, nx)
	copy(c, coefficients)
	init := &regInit{base: m.Initialization, nx: nx, coeffs: mat.NewVecDense(nx, c)}
	dyn := &regDynamics{base: m.Dynamics, nx: nx}
	meas := &regMeasurement{base: m.Measurement, n: m.StateDim(), x: design{x: x}}
	return ssf.NewModel(init, dyn, meas)
}

// RegressionMeasurements appends to mm one block of regression coefficients
// per variable; xs[i] is the design of variable i and may be nil.
func RegressionMeasurements(mm *ssf.MultivariateModel, xs []*mat.Dense) (*ssf.MultivariateModel, error) {
	const op = "augment.RegressionMeasurements"
	if len(xs) != mm.Measurements.MaxCount() {
		return nil, ssf.Reject(op, fmt.Errorf("%d designs for %d variables: %w", len(xs), mm.Measurements.MaxCount(), ssf.ErrDimensionMismatch))
	}
	ds := make([]design, len(xs))
	for i, x := range xs {
		if x != nil && !x.IsEmpty() {
			ds[i] = design{x: x}
		}
	}
	return withDesigns(mm, ds, true)
}

// Intercepts appends one constant, diffuse state per variable of mm, loaded
// with 1 on its own variable only.
func Intercepts(mm *ssf.MultivariateModel) (*ssf.MultivariateModel, error) {
	one := mat.NewVecDense(1, []float64{1})
	ds := make([]design, mm.Measurements.MaxCount())
	for i := range ds {
		ds[i] = design{fixed: one}
	}
	return withDesigns(mm, ds, true)
}

func withDesigns(mm *ssf.MultivariateModel, ds []design, diffuse bool) (*ssf.MultivariateModel, error) {
	n := mm.StateDim()
	sizes := make([]int, len(ds))
	for i, d := range ds {
		sizes[i] = d.cols()
	}
	offs := utils.Offsets(sizes)
	nx := offs[len(ds)]
	if nx == 0 {
		return mm, nil
	}
	init := &regInit{base: mm.Initialization, nx: nx, diffuse: diffuse}
	dyn := &regDynamics{base: mm.Dynamics, nx: nx}
	meas := &regMeasurements{base: mm.Measurements, n: n, ds: ds, offs: offs}
	return ssf.NewMultivariateModel(init, dyn, meas)
}

// design yields the regression row of a variable at each position: either
// row pos of x, or the same fixed vector at every position.
type design struct {
	x     *mat.Dense
	fixed *mat.VecDense
}

func (d design) cols() int {
	switch {
	case d.x != nil:
		_, c := d.x.Dims()
		return c
	case d.fixed != nil:
		return d.fixed.Len()
	}
	return 0
}

func (d design) row(pos int) *mat.VecDense {
	if d.x != nil {
		return utils.Row(d.x, pos)
	}
	return d.fixed
}

func (d design) isTimeInvariant() bool { return d.x == nil }

// regInit places the base initialization in the leading block and nx
// coefficients after it: diffuse, or fixed at coeffs.
type regInit struct {
	base    ssf.Initialization
	nx      int
	diffuse bool
	coeffs  *mat.VecDense
}

func (i *regInit) StateDim() int   { return i.base.StateDim() + i.nx }
func (i *regInit) IsDiffuse() bool { return i.diffuse || i.base.IsDiffuse() }

func (i *regInit) DiffuseDim() int {
	if i.diffuse {
		return i.base.DiffuseDim() + i.nx
	}
	return i.base.DiffuseDim()
}

func (i *regInit) DiffuseConstraints(b *mat.Dense) {
	b.Zero()
	n, d := i.base.StateDim(), i.base.DiffuseDim()
	if w := utils.Window(b, 0, n, 0, d); w != nil {
		i.base.DiffuseConstraints(w)
	}
	if i.diffuse {
		for k := 0; k < i.nx; k++ {
			b.Set(n+k, d+k, 1)
		}
	}
}

func (i *regInit) A0(a *mat.VecDense) {
	n := i.base.StateDim()
	i.base.A0(utils.Range(a, 0, n))
	r := utils.Range(a, n, n+i.nx)
	if i.coeffs != nil {
		r.CopyVec(i.coeffs)
	} else {
		r.Zero()
	}
}

func (i *regInit) Pf0(p *mat.Dense) {
	p.Zero()
	i.base.Pf0(utils.Square(p, 0, i.base.StateDim()))
}

func (i *regInit) Pi0(p *mat.Dense) {
	p.Zero()
	n := i.base.StateDim()
	i.base.Pi0(utils.Square(p, 0, n))
	if i.diffuse {
		for k := n; k < n+i.nx; k++ {
			p.Set(k, k, 1)
		}
	}
}

// regDynamics is block-diag(T, I) with the innovations of the base model
// only.
type regDynamics struct {
	base ssf.Dynamics
	nx   int
}

func (d *regDynamics) n() int                      { return d.base.StateDim() }
func (d *regDynamics) StateDim() int               { return d.n() + d.nx }
func (d *regDynamics) IsTimeInvariant() bool       { return d.base.IsTimeInvariant() }
func (d *regDynamics) InnovationsDim() int         { return d.base.InnovationsDim() }
func (d *regDynamics) HasInnovations(pos int) bool { return d.base.HasInnovations(pos) }

func (d *regDynamics) T(pos int, tr *mat.Dense) {
	tr.Zero()
	n := d.n()
	d.base.T(pos, utils.Square(tr, 0, n))
	for k := n; k < n+d.nx; k++ {
		tr.Set(k, k, 1)
	}
}

func (d *regDynamics) TX(pos int, x *mat.VecDense) {
	d.base.TX(pos, utils.Range(x, 0, d.n()))
}

func (d *regDynamics) XT(pos int, x *mat.VecDense) {
	d.base.XT(pos, utils.Range(x, 0, d.n()))
}

func (d *regDynamics) TM(pos int, m *mat.Dense) {
	_, c := m.Dims()
	d.base.TM(pos, utils.Window(m, 0, d.n(), 0, c))
}

func (d *regDynamics) TVT(pos int, v *mat.Dense) {
	n, N := d.n(), d.StateDim()
	d.base.TVT(pos, utils.Square(v, 0, n))
	d.base.TM(pos, utils.Window(v, 0, n, n, N))
	ssf.RightT(d.base, pos, utils.Window(v, n, N, 0, n))
}

func (d *regDynamics) V(pos int, q *mat.Dense) {
	q.Zero()
	d.base.V(pos, utils.Square(q, 0, d.n()))
}

func (d *regDynamics) S(pos int, s *mat.Dense) {
	s.Zero()
	if w := utils.Window(s, 0, d.n(), 0, d.InnovationsDim()); w != nil {
		d.base.S(pos, w)
	}
}

func (d *regDynamics) AddSU(pos int, x, u *mat.VecDense) {
	d.base.AddSU(pos, utils.Range(x, 0, d.n()), u)
}

func (d *regDynamics) XS(pos int, x, xs *mat.VecDense) {
	d.base.XS(pos, utils.Range(x, 0, d.n()), xs)
}

func (d *regDynamics) AddV(pos int, p *mat.Dense) {
	d.base.AddV(pos, utils.Square(p, 0, d.n()))
}

// regMeasurement is Z' = [Z | x(pos)] on a state [base, coefficients].
type regMeasurement struct {
	base ssf.Measurement
	n    int
	x    design
}

func (m *regMeasurement) IsTimeInvariant() bool {
	return m.base.IsTimeInvariant() && m.x.isTimeInvariant()
}

func (m *regMeasurement) Z(pos int, z *mat.VecDense) {
	m.base.Z(pos, utils.Range(z, 0, m.n))
	utils.Range(z, m.n, m.n+m.x.cols()).CopyVec(m.x.row(pos))
}

func (m *regMeasurement) ZX(pos int, x *mat.VecDense) float64 {
	return m.base.ZX(pos, utils.Range(x, 0, m.n)) + mat.Dot(m.x.row(pos), utils.Range(x, m.n, m.n+m.x.cols()))
}

func (m *regMeasurement) ZVZ(pos int, v *mat.Dense) float64 {
	r := m.x.row(pos)
	return m.base.ZVZ(pos, utils.Square(v, 0, m.n)) + extraZVZ(pos, m.n, m.base, r, 0, m.base, r, 0, v)
}

func (m *regMeasurement) VpZdZ(pos int, v *mat.Dense, d float64) {
	if d == 0 {
		return
	}
	r := m.x.row(pos)
	m.base.VpZdZ(pos, utils.Square(v, 0, m.n), d)
	extraVpZdZ(pos, m.n, m.base, r, 0, m.base, r, 0, v, d)
}

func (m *regMeasurement) XpZd(pos int, x *mat.VecDense, d float64) {
	m.base.XpZd(pos, utils.Range(x, 0, m.n), d)
	utils.Axpy(d, m.x.row(pos), utils.Range(x, m.n, m.n+m.x.cols()))
}

func (m *regMeasurement) HasErrors() bool               { return m.base.HasErrors() }
func (m *regMeasurement) HasError(pos int) bool         { return m.base.HasError(pos) }
func (m *regMeasurement) ErrorVariance(pos int) float64 { return m.base.ErrorVariance(pos) }
func (m *regMeasurement) AreErrorsTimeInvariant() bool  { return m.base.AreErrorsTimeInvariant() }

// regMeasurements gives variable i the loading [Zi | 0 … xi(pos) … 0], where
// xi(pos) occupies coefficients offs[i]:offs[i+1] after the base state.
type regMeasurements struct {
	base ssf.Measurements
	n    int
	ds   []design
	offs []int
}

func (m *regMeasurements) MaxCount() int     { return m.base.MaxCount() }
func (m *regMeasurements) Count(pos int) int { return m.base.Count(pos) }

func (m *regMeasurements) IsTimeInvariant() bool {
	for _, d := range m.ds {
		if !d.isTimeInvariant() {
			return false
		}
	}
	return m.base.IsTimeInvariant()
}

func (m *regMeasurements) row(pos, i int) *mat.VecDense {
	if m.ds[i].cols() == 0 {
		return nil
	}
	return m.ds[i].row(pos)
}

func (m *regMeasurements) coeffs(x *mat.VecDense, i int) *mat.VecDense {
	return utils.Range(x, m.n+m.offs[i], m.n+m.offs[i+1])
}

func (m *regMeasurements) Z(pos, i int, z *mat.VecDense) {
	m.base.Z(pos, i, utils.Range(z, 0, m.n))
	utils.Range(z, m.n, z.Len()).Zero()
	if r := m.row(pos, i); r != nil {
		m.coeffs(z, i).CopyVec(r)
	}
}

func (m *regMeasurements) ZX(pos, i int, x *mat.VecDense) float64 {
	s := m.base.ZX(pos, i, utils.Range(x, 0, m.n))
	if r := m.row(pos, i); r != nil {
		s += mat.Dot(r, m.coeffs(x, i))
	}
	return s
}

func (m *regMeasurements) ZVZ(pos, i, j int, v *mat.Dense) float64 {
	li, lj := ssf.Variable(m.base, i), ssf.Variable(m.base, j)
	return m.base.ZVZ(pos, i, j, utils.Square(v, 0, m.n)) +
		extraZVZ(pos, m.n, li, m.row(pos, i), m.offs[i], lj, m.row(pos, j), m.offs[j], v)
}

func (m *regMeasurements) VpZdZ(pos, i, j int, v *mat.Dense, d float64) {
	if d == 0 {
		return
	}
	li, lj := ssf.Variable(m.base, i), ssf.Variable(m.base, j)
	m.base.VpZdZ(pos, i, j, utils.Square(v, 0, m.n), d)
	extraVpZdZ(pos, m.n, li, m.row(pos, i), m.offs[i], lj, m.row(pos, j), m.offs[j], v, d)
}

func (m *regMeasurements) XpZd(pos, i int, x *mat.VecDense, d float64) {
	m.base.XpZd(pos, i, utils.Range(x, 0, m.n), d)
	if r := m.row(pos, i); r != nil {
		utils.Axpy(d, r, m.coeffs(x, i))
	}
}

func (m *regMeasurements) HasErrors() bool         { return m.base.HasErrors() }
func (m *regMeasurements) HasError(pos int) bool   { return m.base.HasError(pos) }
func (m *regMeasurements) H(pos int, h *mat.Dense) { m.base.H(pos, h) }
func (m *regMeasurements) R(pos int, r *mat.Dense) { m.base.R(pos, r) }

// extraZVZ returns the part of Zi'·v·Zj'ᵀ that involves the coefficients,
// with Zi' = [Zi | ri at oi] and Zj' = [Zj | rj at oj] (ri, rj may be nil).
func extraZVZ(pos, n int, li ssf.Loading, ri *mat.VecDense, oi int, lj ssf.Loading, rj *mat.VecDense, oj int, v *mat.Dense) float64 {
	s := 0.0
	if rj != nil {
		// Zi·V[base, j]·rjᵀ
		w := utils.Window(v, 0, n, n+oj, n+oj+rj.Len())
		for k := 0; k < rj.Len(); k++ {
			if c := rj.AtVec(k); c != 0 {
				s += c * li.ZX(pos, utils.Col(w, k))
			}
		}
	}
	if ri != nil {
		// ri·V[i, base]·Zjᵀ
		w := utils.Window(v, n+oi, n+oi+ri.Len(), 0, n)
		for k := 0; k < ri.Len(); k++ {
			if c := ri.AtVec(k); c != 0 {
				s += c * lj.ZX(pos, utils.Row(w, k))
			}
		}
	}
	if ri != nil && rj != nil {
		w := utils.Window(v, n+oi, n+oi+ri.Len(), n+oj, n+oj+rj.Len())
		s += mat.Inner(ri, w, rj)
	}
	return s
}

// extraVpZdZ applies the coefficient part of v += d·Zi'ᵀ·Zj'.
func extraVpZdZ(pos, n int, li ssf.Loading, ri *mat.VecDense, oi int, lj ssf.Loading, rj *mat.VecDense, oj int, v *mat.Dense, d float64) {
	if rj != nil {
		w := utils.Window(v, 0, n, n+oj, n+oj+rj.Len())
		for k := 0; k < rj.Len(); k++ {
			if c := rj.AtVec(k); c != 0 {
				li.XpZd(pos, utils.Col(w, k), d*c)
			}
		}
	}
	if ri != nil {
		w := utils.Window(v, n+oi, n+oi+ri.Len(), 0, n)
		for k := 0; k < ri.Len(); k++ {
			if c := ri.AtVec(k); c != 0 {
				lj.XpZd(pos, utils.Row(w, k), d*c)
			}
		}
	}
	if ri != nil && rj != nil {
		utils.Ger(d, ri, rj, utils.Window(v, n+oi, n+oi+ri.Len(), n+oj, n+oj+rj.Len()))
	}
}
