// Package invariant freezes time-invariant models into dense matrices
// evaluated once, at position 0.
package invariant

import (
	"fmt"
	"sync"

	"github.com/lucasmaystre/gossf/metrics"
	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

// Of returns a copy of m whose operations ignore the position and serve
// dense matrices computed at position 0. m must be time invariant.
func Of(m *ssf.Model) (*ssf.Model, error) {
	const op = "invariant.Of"
	if !m.IsTimeInvariant() {
		return nil, ssf.Reject(op, ssf.ErrNotTimeInvariant)
	}
	init, err := initializationOf(m.Initialization)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	n := m.StateDim()
	z := mat.NewVecDense(n, nil)
	m.Measurement.Z(0, z)
	meas, err := ssf.NewLoading(z.RawVector().Data, m.Measurement.ErrorVariance(0))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ssf.NewModel(init, NewDynamics(m.Dynamics), meas)
}

// OfMultivariate is Of for multivariate models.
func OfMultivariate(mm *ssf.MultivariateModel) (*ssf.MultivariateModel, error) {
	const op = "invariant.OfMultivariate"
	if !mm.IsTimeInvariant() {
		return nil, ssf.Reject(op, ssf.ErrNotTimeInvariant)
	}
	init, err := initializationOf(mm.Initialization)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	n, k := mm.StateDim(), mm.Measurements.Count(0)
	ls := make([]ssf.Loading, k)
	for i := range ls {
		z := mat.NewVecDense(n, nil)
		mm.Measurements.Z(0, i, z)
		if ls[i], err = ssf.NewLoading(z.RawVector().Data, 0); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	errs := &constErrors{h: mat.NewDense(k, k, nil), r: mat.NewDense(k, k, nil)}
	mm.Measurements.H(0, errs.h)
	mm.Measurements.R(0, errs.r)
	errs.any = mm.Measurements.HasErrors()
	ms, err := ssf.NewStack(ls, errs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ssf.NewMultivariateModel(init, NewDynamics(mm.Dynamics), ms)
}

func initializationOf(init ssf.Initialization) (ssf.Initialization, error) {
	n := init.StateDim()
	a0 := mat.NewVecDense(n, nil)
	init.A0(a0)
	pf0 := mat.NewDense(n, n, nil)
	init.Pf0(pf0)
	var b *mat.Dense
	if d := init.DiffuseDim(); d > 0 {
		b = mat.NewDense(n, d, nil)
		init.DiffuseConstraints(b)
	}
	return ssf.NewInitialization(n, a0.RawVector().Data, pf0, b)
}

var _ ssf.Dynamics = (*Dynamics)(nil)

// Dynamics holds T and V evaluated at position 0. The square root of V is a
// lower Cholesky factor computed on first use.
type Dynamics struct {
	t, v        *mat.Dense
	innovations bool

	once sync.Once
	s    *mat.Dense
}

// NewDynamics evaluates dyn at position 0. It does not check that dyn is
// time invariant.
func NewDynamics(dyn ssf.Dynamics) *Dynamics {
	n := dyn.StateDim()
	d := &Dynamics{
		t:           mat.NewDense(n, n, nil),
		v:           mat.NewDense(n, n, nil),
		innovations: dyn.HasInnovations(0),
	}
	dyn.T(0, d.t)
	dyn.V(0, d.v)
	return d
}

// errNotPSD is raised by every square root request once the factorization
// has failed.
const errNotPSD = "invariant: innovation covariance is not positive semi-definite"

func (d *Dynamics) sqrt() *mat.Dense {
	d.once.Do(func() {
		s, ok := utils.LCholesky(d.v, utils.Eps)
		if !ok {
			ssf.Logger().Debug("innovation square root failed")
			return
		}
		metrics.SquareRoots.Inc()
		n, _ := s.Dims()
		ssf.Logger().Debug("innovation square root computed", "dim", n)
		d.s = s
	})
	if d.s == nil {
		panic(errNotPSD)
	}
	return d.s
}

func (d *Dynamics) StateDim() int               { n, _ := d.t.Dims(); return n }
func (d *Dynamics) IsTimeInvariant() bool       { return true }
func (d *Dynamics) InnovationsDim() int         { return d.StateDim() }
func (d *Dynamics) HasInnovations(pos int) bool { return d.innovations }
func (d *Dynamics) T(pos int, tr *mat.Dense)    { tr.Copy(d.t) }
func (d *Dynamics) TX(pos int, x *mat.VecDense) { utils.MulVecInPlace(d.t, x) }
func (d *Dynamics) XT(pos int, x *mat.VecDense) { utils.MulVecInPlace(d.t.T(), x) }
func (d *Dynamics) TM(pos int, m *mat.Dense)    { utils.MulInPlace(d.t, m) }
func (d *Dynamics) TVT(pos int, v *mat.Dense)   { utils.Sandwich(d.t, v) }
func (d *Dynamics) V(pos int, q *mat.Dense)     { q.Copy(d.v) }
func (d *Dynamics) S(pos int, s *mat.Dense)     { s.Copy(d.sqrt()) }
func (d *Dynamics) AddV(pos int, p *mat.Dense)  { p.Add(p, d.v) }

func (d *Dynamics) AddSU(pos int, x, u *mat.VecDense) {
	var su mat.VecDense
	su.MulVec(d.sqrt(), u)
	x.AddVec(x, &su)
}

func (d *Dynamics) XS(pos int, x, xs *mat.VecDense) {
	xs.MulVec(d.sqrt().T(), x)
}

// constErrors serves H and R captured at position 0.
type constErrors struct {
	h, r *mat.Dense
	any  bool
}

func (e *constErrors) HasErrors() bool         { return e.any }
func (e *constErrors) HasError(pos int) bool   { return e.any }
func (e *constErrors) IsTimeInvariant() bool   { return true }
func (e *constErrors) H(pos int, h *mat.Dense) { h.Copy(e.h) }
func (e *constErrors) R(pos int, r *mat.Dense) { r.Copy(e.r) }
