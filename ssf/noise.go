package ssf

import (
	"fmt"
	"math"

	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

var (
	_ Dynamics = (*Noise)(nil)
	_ Dynamics = (*FullNoise)(nil)
	_ Dynamics = (*DenseDynamics)(nil)
	_ Dynamics = (*TimeVaryingDynamics)(nil)
)

// Noise is an i.i.d. state with independent components: T = 0 and
// V = diag(variances).
type Noise struct {
	vars []float64
	stde []float64
}

// NewNoise returns white-noise dynamics with the given (non-negative)
// variances.
func NewNoise(variances []float64) (*Noise, error) {
	const op = "ssf.NewNoise"
	if len(variances) == 0 {
		return nil, Reject(op, fmt.Errorf("no variances: %w", ErrInvalidArgument))
	}
	d := &Noise{
		vars: make([]float64, len(variances)),
		stde: make([]float64, len(variances)),
	}
	for i, v := range variances {
		if v < 0 || math.IsNaN(v) {
			return nil, Reject(op, fmt.Errorf("variance %d is %g: %w", i, v, ErrInvalidArgument))
		}
		d.vars[i] = v
		d.stde[i] = math.Sqrt(v)
	}
	return d, nil
}

func (d *Noise) StateDim() int         { return len(d.vars) }
func (d *Noise) IsTimeInvariant() bool { return true }
func (d *Noise) InnovationsDim() int   { return len(d.vars) }

func (d *Noise) HasInnovations(pos int) bool {
	for _, v := range d.vars {
		if v > 0 {
			return true
		}
	}
	return false
}

func (d *Noise) T(pos int, tr *mat.Dense)    { tr.Zero() }
func (d *Noise) TX(pos int, x *mat.VecDense) { x.Zero() }
func (d *Noise) XT(pos int, x *mat.VecDense) { x.Zero() }
func (d *Noise) TM(pos int, m *mat.Dense)    { m.Zero() }
func (d *Noise) TVT(pos int, v *mat.Dense)   { v.Zero() }

func (d *Noise) V(pos int, q *mat.Dense) {
	q.Zero()
	for i, v := range d.vars {
		q.Set(i, i, v)
	}
}

func (d *Noise) S(pos int, s *mat.Dense) {
	s.Zero()
	for i, e := range d.stde {
		s.Set(i, i, e)
	}
}

func (d *Noise) AddSU(pos int, x, u *mat.VecDense) {
	for i, e := range d.stde {
		x.SetVec(i, x.AtVec(i)+e*u.AtVec(i))
	}
}

func (d *Noise) XS(pos int, x, xs *mat.VecDense) {
	for i, e := range d.stde {
		xs.SetVec(i, x.AtVec(i)*e)
	}
}

func (d *Noise) AddV(pos int, p *mat.Dense) {
	for i, v := range d.vars {
		p.Set(i, i, p.At(i, i)+v)
	}
}

// FullNoise is an i.i.d. state with a full covariance: T = 0, V = v,
// S = lower Cholesky factor of v.
type FullNoise struct {
	v *mat.Dense
	s *mat.Dense
}

// NewFullNoise returns white-noise dynamics with covariance v. v must be
// symmetric positive semi-definite.
func NewFullNoise(v *mat.Dense) (*FullNoise, error) {
	const op = "ssf.NewFullNoise"
	if !utils.IsSymmetric(v, utils.Eps) {
		return nil, Reject(op, fmt.Errorf("covariance is not symmetric: %w", ErrInvalidArgument))
	}
	s, ok := utils.LCholesky(v, utils.Eps)
	if !ok {
		return nil, Reject(op, ErrNotPositiveDefinite)
	}
	return &FullNoise{v: mat.DenseCopyOf(v), s: s}, nil
}

func (d *FullNoise) StateDim() int               { n, _ := d.v.Dims(); return n }
func (d *FullNoise) IsTimeInvariant() bool       { return true }
func (d *FullNoise) InnovationsDim() int         { return d.StateDim() }
func (d *FullNoise) HasInnovations(pos int) bool { return true }
func (d *FullNoise) T(pos int, tr *mat.Dense)    { tr.Zero() }
func (d *FullNoise) TX(pos int, x *mat.VecDense) { x.Zero() }
func (d *FullNoise) XT(pos int, x *mat.VecDense) { x.Zero() }
func (d *FullNoise) TM(pos int, m *mat.Dense)    { m.Zero() }
func (d *FullNoise) TVT(pos int, v *mat.Dense)   { v.Zero() }
func (d *FullNoise) V(pos int, q *mat.Dense)     { q.Copy(d.v) }
func (d *FullNoise) S(pos int, s *mat.Dense)     { s.Copy(d.s) }
func (d *FullNoise) AddV(pos int, p *mat.Dense)  { p.Add(p, d.v) }

func (d *FullNoise) AddSU(pos int, x, u *mat.VecDense) {
	addSU(d.s, x, u)
}

func (d *FullNoise) XS(pos int, x, xs *mat.VecDense) {
	xs.MulVec(d.s.T(), x)
}

// DenseDynamics holds constant, explicit T and V matrices. It is the natural
// leaf for ARIMA companion forms and small structural components.
type DenseDynamics struct {
	t *mat.Dense
	v *mat.Dense
	s *mat.Dense
}

// NewDenseDynamics returns time-invariant dynamics with transition t and
// innovation covariance v (symmetric positive semi-definite).
func NewDenseDynamics(t, v *mat.Dense) (*DenseDynamics, error) {
	const op = "ssf.NewDenseDynamics"
	n, c := t.Dims()
	if n != c {
		return nil, Reject(op, fmt.Errorf("T is %d×%d: %w", n, c, ErrDimensionMismatch))
	}
	if r, c := v.Dims(); r != n || c != n {
		return nil, Reject(op, fmt.Errorf("V is %d×%d, want %d×%d: %w", r, c, n, n, ErrDimensionMismatch))
	}
	if !utils.IsSymmetric(v, utils.Eps) {
		return nil, Reject(op, fmt.Errorf("V is not symmetric: %w", ErrInvalidArgument))
	}
	s, ok := utils.LCholesky(v, utils.Eps)
	if !ok {
		return nil, Reject(op, ErrNotPositiveDefinite)
	}
	return &DenseDynamics{
		t: mat.DenseCopyOf(t),
		v: mat.DenseCopyOf(v),
		s: s,
	}, nil
}

func (d *DenseDynamics) StateDim() int               { n, _ := d.t.Dims(); return n }
func (d *DenseDynamics) IsTimeInvariant() bool       { return true }
func (d *DenseDynamics) InnovationsDim() int         { return d.StateDim() }
func (d *DenseDynamics) HasInnovations(pos int) bool { return mat.Norm(d.v, 1) > 0 }
func (d *DenseDynamics) T(pos int, tr *mat.Dense)    { tr.Copy(d.t) }
func (d *DenseDynamics) TX(pos int, x *mat.VecDense) { utils.MulVecInPlace(d.t, x) }
func (d *DenseDynamics) XT(pos int, x *mat.VecDense) { utils.MulVecInPlace(d.t.T(), x) }
func (d *DenseDynamics) TM(pos int, m *mat.Dense)    { utils.MulInPlace(d.t, m) }
func (d *DenseDynamics) TVT(pos int, v *mat.Dense)   { utils.Sandwich(d.t, v) }
func (d *DenseDynamics) V(pos int, q *mat.Dense)     { q.Copy(d.v) }
func (d *DenseDynamics) S(pos int, s *mat.Dense)     { s.Copy(d.s) }
func (d *DenseDynamics) AddV(pos int, p *mat.Dense)  { p.Add(p, d.v) }

func (d *DenseDynamics) AddSU(pos int, x, u *mat.VecDense) {
	addSU(d.s, x, u)
}

func (d *DenseDynamics) XS(pos int, x, xs *mat.VecDense) {
	xs.MulVec(d.s.T(), x)
}

// TransitionFunc fills the n×n buffers t and v with the transition and
// innovation covariance at pos. Both buffers are zeroed before the call.
type TransitionFunc func(pos int, t, v *mat.Dense)

// TimeVaryingDynamics evaluates T(pos) and V(pos) through a callback on every
// call. The square root is a fresh Cholesky factor of V(pos).
type TimeVaryingDynamics struct {
	n  int
	fn TransitionFunc
}

// NewTimeVaryingDynamics returns dynamics of dimension n driven by fn.
func NewTimeVaryingDynamics(n int, fn TransitionFunc) (*TimeVaryingDynamics, error) {
	const op = "ssf.NewTimeVaryingDynamics"
	if n <= 0 || fn == nil {
		return nil, Reject(op, fmt.Errorf("dimension %d: %w", n, ErrInvalidArgument))
	}
	return &TimeVaryingDynamics{n: n, fn: fn}, nil
}

func (d *TimeVaryingDynamics) eval(pos int) (t, v *mat.Dense) {
	t = mat.NewDense(d.n, d.n, nil)
	v = mat.NewDense(d.n, d.n, nil)
	d.fn(pos, t, v)
	return t, v
}

func (d *TimeVaryingDynamics) sqrt(pos int) *mat.Dense {
	_, v := d.eval(pos)
	s, ok := utils.LCholesky(v, utils.Eps)
	if !ok {
		panic(fmt.Sprintf("ssf: innovation covariance at %d is not positive semi-definite", pos))
	}
	return s
}

func (d *TimeVaryingDynamics) StateDim() int         { return d.n }
func (d *TimeVaryingDynamics) IsTimeInvariant() bool { return false }
func (d *TimeVaryingDynamics) InnovationsDim() int   { return d.n }

func (d *TimeVaryingDynamics) HasInnovations(pos int) bool {
	_, v := d.eval(pos)
	return mat.Norm(v, 1) > 0
}

func (d *TimeVaryingDynamics) T(pos int, tr *mat.Dense) {
	t, _ := d.eval(pos)
	tr.Copy(t)
}

func (d *TimeVaryingDynamics) TX(pos int, x *mat.VecDense) {
	t, _ := d.eval(pos)
	utils.MulVecInPlace(t, x)
}

func (d *TimeVaryingDynamics) XT(pos int, x *mat.VecDense) {
	t, _ := d.eval(pos)
	utils.MulVecInPlace(t.T(), x)
}

func (d *TimeVaryingDynamics) TM(pos int, m *mat.Dense) {
	t, _ := d.eval(pos)
	utils.MulInPlace(t, m)
}

func (d *TimeVaryingDynamics) TVT(pos int, v *mat.Dense) {
	t, _ := d.eval(pos)
	utils.Sandwich(t, v)
}

func (d *TimeVaryingDynamics) V(pos int, q *mat.Dense) {
	_, v := d.eval(pos)
	q.Copy(v)
}

func (d *TimeVaryingDynamics) S(pos int, s *mat.Dense) {
	s.Copy(d.sqrt(pos))
}

func (d *TimeVaryingDynamics) AddSU(pos int, x, u *mat.VecDense) {
	addSU(d.sqrt(pos), x, u)
}

func (d *TimeVaryingDynamics) XS(pos int, x, xs *mat.VecDense) {
	xs.MulVec(d.sqrt(pos).T(), x)
}

func (d *TimeVaryingDynamics) AddV(pos int, p *mat.Dense) {
	_, v := d.eval(pos)
	p.Add(p, v)
}

// addSU computes x += s·u.
func addSU(s *mat.Dense, x, u *mat.VecDense) {
	var su mat.VecDense
	su.MulVec(s, u)
	x.AddVec(x, &su)
}
