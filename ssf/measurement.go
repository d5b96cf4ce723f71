package ssf

import (
	"fmt"
	"math"

	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

// Loading is the row vector Z(pos) that maps the state onto one observed
// variable. Implementations never need to materialize Z.
type Loading interface {
	IsTimeInvariant() bool

	// Z overwrites z with Z(pos).
	Z(pos int, z *mat.VecDense)

	// ZX returns Z(pos)·x.
	ZX(pos int, x *mat.VecDense) float64

	// ZVZ returns Z(pos)·v·Z(pos)ᵀ.
	ZVZ(pos int, v *mat.Dense) float64

	// VpZdZ computes v ← v + d·Z(pos)ᵀ·Z(pos).
	VpZdZ(pos int, v *mat.Dense, d float64)

	// XpZd computes x ← x + d·Z(pos)ᵀ.
	XpZd(pos int, x *mat.VecDense, d float64)
}

// Measurement is a loading with a scalar observation error of variance
// h(pos) ≥ 0. IsTimeInvariant covers both Z and h.
type Measurement interface {
	Loading

	HasErrors() bool
	HasError(pos int) bool
	ErrorVariance(pos int) float64
	AreErrorsTimeInvariant() bool
}

// variance is a constant error variance shared by the leaf measurements.
type variance float64

func (e variance) HasErrors() bool               { return e > 0 }
func (e variance) HasError(pos int) bool         { return e > 0 }
func (e variance) ErrorVariance(pos int) float64 { return float64(e) }
func (e variance) AreErrorsTimeInvariant() bool  { return true }

func checkVariance(op string, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return Reject(op, fmt.Errorf("error variance %g: %w", v, ErrInvalidArgument))
	}
	return nil
}

var (
	_ Measurement = (*Selection)(nil)
	_ Measurement = (*Vector)(nil)
	_ Measurement = (*TimeVaryingVector)(nil)
)

// Selection observes a single state component: Z = e_idx.
type Selection struct {
	variance
	idx int
}

// NewSelection returns the measurement y = x[idx] + e, Var(e) = errVariance.
func NewSelection(idx int, errVariance float64) (*Selection, error) {
	const op = "ssf.NewSelection"
	if idx < 0 {
		return nil, Reject(op, fmt.Errorf("index %d: %w", idx, ErrInvalidArgument))
	}
	if err := checkVariance(op, errVariance); err != nil {
		return nil, err
	}
	return &Selection{variance: variance(errVariance), idx: idx}, nil
}

func (m *Selection) IsTimeInvariant() bool { return true }

func (m *Selection) Z(pos int, z *mat.VecDense) {
	z.Zero()
	z.SetVec(m.idx, 1)
}

func (m *Selection) ZX(pos int, x *mat.VecDense) float64 {
	return x.AtVec(m.idx)
}

func (m *Selection) ZVZ(pos int, v *mat.Dense) float64 {
	return v.At(m.idx, m.idx)
}

func (m *Selection) VpZdZ(pos int, v *mat.Dense, d float64) {
	v.Set(m.idx, m.idx, v.At(m.idx, m.idx)+d)
}

func (m *Selection) XpZd(pos int, x *mat.VecDense, d float64) {
	x.SetVec(m.idx, x.AtVec(m.idx)+d)
}

// Vector is a constant, explicit loading vector.
type Vector struct {
	variance
	z *mat.VecDense
}

// NewLoading returns the measurement y = z·x + e, Var(e) = errVariance.
func NewLoading(z []float64, errVariance float64) (*Vector, error) {
	const op = "ssf.NewLoading"
	if len(z) == 0 {
		return nil, Reject(op, fmt.Errorf("empty loading: %w", ErrInvalidArgument))
	}
	if err := checkVariance(op, errVariance); err != nil {
		return nil, err
	}
	zc := make([]float64, len(z))
	copy(zc, z)
	return &Vector{variance: variance(errVariance), z: mat.NewVecDense(len(zc), zc)}, nil
}

func (m *Vector) IsTimeInvariant() bool { return true }

func (m *Vector) Z(pos int, z *mat.VecDense)              { z.CopyVec(m.z) }
func (m *Vector) ZX(pos int, x *mat.VecDense) float64     { return mat.Dot(m.z, x) }
func (m *Vector) ZVZ(pos int, v *mat.Dense) float64       { return quadratic(m.z, v) }
func (m *Vector) VpZdZ(pos int, v *mat.Dense, d float64)  { utils.Ger(d, m.z, m.z, v) }
func (m *Vector) XpZd(pos int, x *mat.VecDense, d float64) { utils.Axpy(d, m.z, x) }

// LoadingFunc overwrites z with the loading at pos. z is zeroed before the
// call.
type LoadingFunc func(pos int, z []float64)

// TimeVaryingVector evaluates an explicit loading vector on every call.
type TimeVaryingVector struct {
	variance
	n  int
	fn LoadingFunc
}

// NewTimeVaryingLoading returns the measurement y = z(pos)·x + e for a state
// of dimension n.
func NewTimeVaryingLoading(n int, fn LoadingFunc, errVariance float64) (*TimeVaryingVector, error) {
	const op = "ssf.NewTimeVaryingLoading"
	if n <= 0 || fn == nil {
		return nil, Reject(op, fmt.Errorf("dimension %d: %w", n, ErrInvalidArgument))
	}
	if err := checkVariance(op, errVariance); err != nil {
		return nil, err
	}
	return &TimeVaryingVector{variance: variance(errVariance), n: n, fn: fn}, nil
}

func (m *TimeVaryingVector) eval(pos int) *mat.VecDense {
	z := make([]float64, m.n)
	m.fn(pos, z)
	return mat.NewVecDense(m.n, z)
}

func (m *TimeVaryingVector) IsTimeInvariant() bool { return false }

func (m *TimeVaryingVector) Z(pos int, z *mat.VecDense)          { z.CopyVec(m.eval(pos)) }
func (m *TimeVaryingVector) ZX(pos int, x *mat.VecDense) float64 { return mat.Dot(m.eval(pos), x) }
func (m *TimeVaryingVector) ZVZ(pos int, v *mat.Dense) float64   { return quadratic(m.eval(pos), v) }

func (m *TimeVaryingVector) VpZdZ(pos int, v *mat.Dense, d float64) {
	z := m.eval(pos)
	utils.Ger(d, z, z, v)
}

func (m *TimeVaryingVector) XpZd(pos int, x *mat.VecDense, d float64) {
	utils.Axpy(d, m.eval(pos), x)
}

// quadratic returns zᵀ·v·z.
func quadratic(z *mat.VecDense, v *mat.Dense) float64 {
	var vz mat.VecDense
	vz.MulVec(v, z)
	return mat.Dot(z, &vz)
}
