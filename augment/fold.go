package augment

import (
	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

// FoldErrors moves the measurement error of m into the state. The new state
// is [e, x]: e has loading 1, no dynamics, initial variance h(0) and
// innovation variance h(pos+1), so that e(pos) always has variance h(pos).
// The folded measurement reports no error. A model without errors is
// returned unchanged.
func FoldErrors(m *ssf.Model) (*ssf.Model, error) {
	if !m.Measurement.HasErrors() {
		return m, nil
	}
	src := ssf.Proxy(m.Measurement)
	init := &foldInit{base: m.Initialization, errs: src}
	dyn := &foldDynamics{base: m.Dynamics, errs: src, invariant: m.Measurement.AreErrorsTimeInvariant()}
	return ssf.NewModel(init, dyn, &foldMeasurement{base: m.Measurement})
}

// FoldMeasurementErrors moves the errors of all the variables of mm into
// MaxCount new leading states with covariance H.
func FoldMeasurementErrors(mm *ssf.MultivariateModel) (*ssf.MultivariateModel, error) {
	if !mm.Measurements.HasErrors() {
		return mm, nil
	}
	ms := mm.Measurements
	init := &foldInit{base: mm.Initialization, errs: ms}
	dyn := &foldDynamics{base: mm.Dynamics, errs: ms, invariant: ms.IsTimeInvariant()}
	return ssf.NewMultivariateModel(init, dyn, &foldMeasurements{base: ms})
}

// errorSource provides the error covariance and its factor; both
// ssf.Measurements and the univariate proxy satisfy it.
type errorSource interface {
	MaxCount() int
	H(pos int, h *mat.Dense)
	R(pos int, r *mat.Dense)
}

type foldInit struct {
	base ssf.Initialization
	errs errorSource
}

func (i *foldInit) k() int          { return i.errs.MaxCount() }
func (i *foldInit) StateDim() int   { return i.k() + i.base.StateDim() }
func (i *foldInit) IsDiffuse() bool { return i.base.IsDiffuse() }
func (i *foldInit) DiffuseDim() int { return i.base.DiffuseDim() }

func (i *foldInit) A0(a *mat.VecDense) {
	utils.Range(a, 0, i.k()).Zero()
	i.base.A0(utils.Range(a, i.k(), i.StateDim()))
}

func (i *foldInit) DiffuseConstraints(b *mat.Dense) {
	d := i.DiffuseDim()
	if d == 0 {
		return
	}
	b.Zero()
	i.base.DiffuseConstraints(utils.Window(b, i.k(), i.StateDim(), 0, d))
}

func (i *foldInit) Pf0(p *mat.Dense) {
	p.Zero()
	i.errs.H(0, utils.Square(p, 0, i.k()))
	i.base.Pf0(utils.Square(p, i.k(), i.StateDim()))
}

func (i *foldInit) Pi0(p *mat.Dense) {
	p.Zero()
	i.base.Pi0(utils.Square(p, i.k(), i.StateDim()))
}

// foldDynamics is block-diag(0, T) with block-diag(H(pos+1), V) innovations.
type foldDynamics struct {
	base      ssf.Dynamics
	errs      errorSource
	invariant bool
}

func (d *foldDynamics) k() int { return d.errs.MaxCount() }

func (d *foldDynamics) tail(x *mat.VecDense) *mat.VecDense {
	return utils.Range(x, d.k(), d.StateDim())
}

func (d *foldDynamics) StateDim() int         { return d.k() + d.base.StateDim() }
func (d *foldDynamics) IsTimeInvariant() bool { return d.invariant && d.base.IsTimeInvariant() }
func (d *foldDynamics) InnovationsDim() int   { return d.k() + d.base.InnovationsDim() }

func (d *foldDynamics) HasInnovations(pos int) bool {
	if d.base.HasInnovations(pos) {
		return true
	}
	h := mat.NewDense(d.k(), d.k(), nil)
	d.errs.H(pos+1, h)
	return mat.Norm(h, 1) > 0
}

func (d *foldDynamics) T(pos int, tr *mat.Dense) {
	tr.Zero()
	d.base.T(pos, utils.Square(tr, d.k(), d.StateDim()))
}

func (d *foldDynamics) TX(pos int, x *mat.VecDense) {
	utils.Range(x, 0, d.k()).Zero()
	d.base.TX(pos, d.tail(x))
}

func (d *foldDynamics) XT(pos int, x *mat.VecDense) {
	utils.Range(x, 0, d.k()).Zero()
	d.base.XT(pos, d.tail(x))
}

func (d *foldDynamics) TM(pos int, m *mat.Dense) {
	_, c := m.Dims()
	utils.Window(m, 0, d.k(), 0, c).Zero()
	d.base.TM(pos, utils.Window(m, d.k(), d.StateDim(), 0, c))
}

func (d *foldDynamics) TVT(pos int, v *mat.Dense) {
	k, N := d.k(), d.StateDim()
	utils.Window(v, 0, k, 0, N).Zero()
	utils.Window(v, k, N, 0, k).Zero()
	d.base.TVT(pos, utils.Square(v, k, N))
}

func (d *foldDynamics) V(pos int, q *mat.Dense) {
	q.Zero()
	d.errs.H(pos+1, utils.Square(q, 0, d.k()))
	d.base.V(pos, utils.Square(q, d.k(), d.StateDim()))
}

func (d *foldDynamics) S(pos int, s *mat.Dense) {
	s.Zero()
	k := d.k()
	d.errs.R(pos+1, utils.Square(s, 0, k))
	if w := utils.Window(s, k, d.StateDim(), k, d.InnovationsDim()); w != nil {
		d.base.S(pos, w)
	}
}

func (d *foldDynamics) AddSU(pos int, x, u *mat.VecDense) {
	k := d.k()
	r := mat.NewDense(k, k, nil)
	d.errs.R(pos+1, r)
	var ru mat.VecDense
	ru.MulVec(r, utils.Range(u, 0, k))
	e := utils.Range(x, 0, k)
	e.AddVec(e, &ru)
	if u.Len() > k {
		d.base.AddSU(pos, d.tail(x), utils.Range(u, k, u.Len()))
	}
}

func (d *foldDynamics) XS(pos int, x, xs *mat.VecDense) {
	k := d.k()
	r := mat.NewDense(k, k, nil)
	d.errs.R(pos+1, r)
	utils.Range(xs, 0, k).MulVec(r.T(), utils.Range(x, 0, k))
	if xs.Len() > k {
		d.base.XS(pos, d.tail(x), utils.Range(xs, k, xs.Len()))
	}
}

func (d *foldDynamics) AddV(pos int, p *mat.Dense) {
	k := d.k()
	h := mat.NewDense(k, k, nil)
	d.errs.H(pos+1, h)
	e := utils.Square(p, 0, k)
	e.Add(e, h)
	d.base.AddV(pos, utils.Square(p, k, d.StateDim()))
}

// foldMeasurement is Z' = [1, Z] without error.
type foldMeasurement struct {
	base ssf.Measurement
}

func (m *foldMeasurement) n(x *mat.VecDense) *mat.VecDense {
	return utils.Range(x, 1, x.Len())
}

func (m *foldMeasurement) IsTimeInvariant() bool { return m.base.IsTimeInvariant() }

func (m *foldMeasurement) Z(pos int, z *mat.VecDense) {
	z.SetVec(0, 1)
	m.base.Z(pos, m.n(z))
}

func (m *foldMeasurement) ZX(pos int, x *mat.VecDense) float64 {
	return x.AtVec(0) + m.base.ZX(pos, m.n(x))
}

func (m *foldMeasurement) ZVZ(pos int, v *mat.Dense) float64 {
	N, _ := v.Dims()
	return v.At(0, 0) +
		m.base.ZX(pos, m.n(utils.Row(v, 0))) +
		m.base.ZX(pos, m.n(utils.Col(v, 0))) +
		m.base.ZVZ(pos, utils.Square(v, 1, N))
}

func (m *foldMeasurement) VpZdZ(pos int, v *mat.Dense, d float64) {
	if d == 0 {
		return
	}
	N, _ := v.Dims()
	v.Set(0, 0, v.At(0, 0)+d)
	m.base.XpZd(pos, m.n(utils.Row(v, 0)), d)
	m.base.XpZd(pos, m.n(utils.Col(v, 0)), d)
	m.base.VpZdZ(pos, utils.Square(v, 1, N), d)
}

func (m *foldMeasurement) XpZd(pos int, x *mat.VecDense, d float64) {
	x.SetVec(0, x.AtVec(0)+d)
	m.base.XpZd(pos, m.n(x), d)
}

func (m *foldMeasurement) HasErrors() bool               { return false }
func (m *foldMeasurement) HasError(pos int) bool         { return false }
func (m *foldMeasurement) ErrorVariance(pos int) float64 { return 0 }
func (m *foldMeasurement) AreErrorsTimeInvariant() bool  { return true }

// foldMeasurements gives variable i the loading [e_i, Zi] without error.
type foldMeasurements struct {
	base ssf.Measurements
}

func (m *foldMeasurements) k() int { return m.base.MaxCount() }

func (m *foldMeasurements) tail(x *mat.VecDense) *mat.VecDense {
	return utils.Range(x, m.k(), x.Len())
}

func (m *foldMeasurements) MaxCount() int         { return m.base.MaxCount() }
func (m *foldMeasurements) Count(pos int) int     { return m.base.Count(pos) }
func (m *foldMeasurements) IsTimeInvariant() bool { return m.base.IsTimeInvariant() }

func (m *foldMeasurements) Z(pos, i int, z *mat.VecDense) {
	e := utils.Range(z, 0, m.k())
	e.Zero()
	e.SetVec(i, 1)
	m.base.Z(pos, i, m.tail(z))
}

func (m *foldMeasurements) ZX(pos, i int, x *mat.VecDense) float64 {
	return x.AtVec(i) + m.base.ZX(pos, i, m.tail(x))
}

func (m *foldMeasurements) ZVZ(pos, i, j int, v *mat.Dense) float64 {
	k := m.k()
	N, _ := v.Dims()
	return v.At(i, j) +
		m.base.ZX(pos, j, m.tail(utils.Row(v, i))) +
		m.base.ZX(pos, i, m.tail(utils.Col(v, j))) +
		m.base.ZVZ(pos, i, j, utils.Square(v, k, N))
}

func (m *foldMeasurements) VpZdZ(pos, i, j int, v *mat.Dense, d float64) {
	if d == 0 {
		return
	}
	k := m.k()
	N, _ := v.Dims()
	v.Set(i, j, v.At(i, j)+d)
	m.base.XpZd(pos, j, m.tail(utils.Row(v, i)), d)
	m.base.XpZd(pos, i, m.tail(utils.Col(v, j)), d)
	m.base.VpZdZ(pos, i, j, utils.Square(v, k, N), d)
}

func (m *foldMeasurements) XpZd(pos, i int, x *mat.VecDense, d float64) {
	x.SetVec(i, x.AtVec(i)+d)
	m.base.XpZd(pos, i, m.tail(x), d)
}

func (m *foldMeasurements) HasErrors() bool         { return false }
func (m *foldMeasurements) HasError(pos int) bool   { return false }
func (m *foldMeasurements) H(pos int, h *mat.Dense) { h.Zero() }
func (m *foldMeasurements) R(pos int, r *mat.Dense) { r.Zero() }
