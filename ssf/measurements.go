package ssf

import (
	"fmt"
	"math"

	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

// Measurements observes several, possibly correlated, variables at each
// position. Variables are indexed 0..Count(pos)-1; every implementation in
// this module observes all MaxCount variables at every position (missing
// values are the caller's business).
type Measurements interface {
	MaxCount() int
	Count(pos int) int
	IsTimeInvariant() bool

	// Z overwrites z with the loading of variable i.
	Z(pos, i int, z *mat.VecDense)

	// ZX returns Zi(pos)·x.
	ZX(pos, i int, x *mat.VecDense) float64

	// ZVZ returns Zi(pos)·v·Zj(pos)ᵀ.
	ZVZ(pos, i, j int, v *mat.Dense) float64

	// VpZdZ computes v ← v + d·Zi(pos)ᵀ·Zj(pos).
	VpZdZ(pos, i, j int, v *mat.Dense, d float64)

	// XpZd computes x ← x + d·Zi(pos)ᵀ.
	XpZd(pos, i int, x *mat.VecDense, d float64)

	HasErrors() bool
	HasError(pos int) bool

	// H overwrites the m×m buffer h with the error covariance.
	H(pos int, h *mat.Dense)

	// R overwrites the m×m buffer r with a lower factor of H (R·Rᵀ = H).
	R(pos int, r *mat.Dense)
}

// ZVZMatrix overwrites the m×m buffer out with Z(pos)·v·Z(pos)ᵀ.
func ZVZMatrix(ms Measurements, pos int, v, out *mat.Dense) {
	m := ms.Count(pos)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			out.Set(i, j, ms.ZVZ(pos, i, j, v))
		}
	}
}

// AddZDZ computes v ← v + Z(pos)ᵀ·d·Z(pos) for an m×m matrix d.
func AddZDZ(ms Measurements, pos int, v, d *mat.Dense) {
	m := ms.Count(pos)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			if dij := d.At(i, j); dij != 0 {
				ms.VpZdZ(pos, i, j, v, dij)
			}
		}
	}
}

// Errors is the observation-error structure of a multivariate measurement.
type Errors interface {
	HasErrors() bool
	HasError(pos int) bool
	IsTimeInvariant() bool
	H(pos int, h *mat.Dense)
	R(pos int, r *mat.Dense)
}

var (
	_ Errors = (*independentErrors)(nil)
	_ Errors = (*covarianceErrors)(nil)
	_ Errors = (*correlatedErrors)(nil)
)

// IndependentErrors returns uncorrelated errors whose variances are the
// error variances of ms.
func IndependentErrors(ms []Measurement) Errors {
	return &independentErrors{ms: ms}
}

type independentErrors struct {
	ms []Measurement
}

func (e *independentErrors) HasErrors() bool {
	for _, m := range e.ms {
		if m.HasErrors() {
			return true
		}
	}
	return false
}

func (e *independentErrors) HasError(pos int) bool {
	for _, m := range e.ms {
		if m.HasError(pos) {
			return true
		}
	}
	return false
}

func (e *independentErrors) IsTimeInvariant() bool {
	for _, m := range e.ms {
		if !m.AreErrorsTimeInvariant() {
			return false
		}
	}
	return true
}

func (e *independentErrors) H(pos int, h *mat.Dense) {
	h.Zero()
	for i, m := range e.ms {
		h.Set(i, i, m.ErrorVariance(pos))
	}
}

func (e *independentErrors) R(pos int, r *mat.Dense) {
	r.Zero()
	for i, m := range e.ms {
		r.Set(i, i, math.Sqrt(m.ErrorVariance(pos)))
	}
}

// CovarianceErrors returns constant errors with covariance h, which must be
// symmetric positive definite.
func CovarianceErrors(h *mat.Dense) (Errors, error) {
	const op = "ssf.CovarianceErrors"
	if !utils.IsSymmetric(h, utils.Eps) {
		return nil, Reject(op, fmt.Errorf("covariance is not symmetric: %w", ErrNotPositiveDefinite))
	}
	l, ok := utils.Potrf(h)
	if !ok {
		return nil, Reject(op, ErrNotPositiveDefinite)
	}
	return &covarianceErrors{h: mat.DenseCopyOf(h), l: l}, nil
}

// DiagonalErrors returns constant, independent errors with the given
// non-negative variances.
func DiagonalErrors(variances []float64) (Errors, error) {
	const op = "ssf.DiagonalErrors"
	n := len(variances)
	if n == 0 {
		return nil, Reject(op, fmt.Errorf("no variances: %w", ErrInvalidArgument))
	}
	h := mat.NewDense(n, n, nil)
	l := mat.NewDense(n, n, nil)
	for i, v := range variances {
		if v < 0 || math.IsNaN(v) {
			return nil, Reject(op, fmt.Errorf("variance %d is %g: %w", i, v, ErrInvalidArgument))
		}
		h.Set(i, i, v)
		l.Set(i, i, math.Sqrt(v))
	}
	return &covarianceErrors{h: h, l: l}, nil
}

type covarianceErrors struct {
	h, l *mat.Dense
}

func (e *covarianceErrors) HasErrors() bool         { return mat.Norm(e.h, 1) > 0 }
func (e *covarianceErrors) HasError(pos int) bool   { return e.HasErrors() }
func (e *covarianceErrors) IsTimeInvariant() bool   { return true }
func (e *covarianceErrors) H(pos int, h *mat.Dense) { h.Copy(e.h) }
func (e *covarianceErrors) R(pos int, r *mat.Dense) { r.Copy(e.l) }

// CorrelatedErrors returns errors with variances taken from ms and the
// correlation matrix corr: H = D·C·D and R = D·L, where D = diag(√hᵢ) and L
// is the lower Cholesky factor of C. corr must have a unit diagonal and be
// positive definite.
func CorrelatedErrors(ms []Measurement, corr *mat.Dense) (Errors, error) {
	const op = "ssf.CorrelatedErrors"
	if r, c := corr.Dims(); r != len(ms) || c != len(ms) {
		return nil, Reject(op, fmt.Errorf("correlation is %d×%d for %d variables: %w", r, c, len(ms), ErrDimensionMismatch))
	}
	if !utils.IsCorrelation(corr, utils.Eps) {
		return nil, Reject(op, ErrNotCorrelation)
	}
	l, ok := utils.Potrf(corr)
	if !ok {
		return nil, Reject(op, fmt.Errorf("%w: %w", ErrNotCorrelation, ErrNotPositiveDefinite))
	}
	return &correlatedErrors{ms: ms, c: mat.DenseCopyOf(corr), l: l}, nil
}

type correlatedErrors struct {
	ms   []Measurement
	c, l *mat.Dense
}

func (e *correlatedErrors) HasErrors() bool {
	return IndependentErrors(e.ms).HasErrors()
}

func (e *correlatedErrors) HasError(pos int) bool {
	return IndependentErrors(e.ms).HasError(pos)
}

func (e *correlatedErrors) IsTimeInvariant() bool {
	return IndependentErrors(e.ms).IsTimeInvariant()
}

func (e *correlatedErrors) stdev(pos int) []float64 {
	d := make([]float64, len(e.ms))
	for i, m := range e.ms {
		d[i] = math.Sqrt(m.ErrorVariance(pos))
	}
	return d
}

func (e *correlatedErrors) H(pos int, h *mat.Dense) {
	d := e.stdev(pos)
	for i := range d {
		for j := range d {
			h.Set(i, j, d[i]*e.c.At(i, j)*d[j])
		}
	}
}

func (e *correlatedErrors) R(pos int, r *mat.Dense) {
	d := e.stdev(pos)
	for i := range d {
		for j := range d {
			r.Set(i, j, d[i]*e.l.At(i, j))
		}
	}
}

var (
	_ Measurements = (*Stack)(nil)
	_ Measurements = (*ProxyMeasurements)(nil)
)

// Stack is a set of loadings on a shared state together with an error
// structure.
type Stack struct {
	ls   []Loading
	errs Errors
}

// NewStack combines loadings on a shared state with an error structure of
// matching size.
func NewStack(ls []Loading, errs Errors) (*Stack, error) {
	const op = "ssf.NewStack"
	if len(ls) == 0 {
		return nil, Reject(op, fmt.Errorf("no loadings: %w", ErrInvalidArgument))
	}
	if errs == nil {
		return nil, Reject(op, fmt.Errorf("no error structure: %w", ErrInvalidArgument))
	}
	return &Stack{ls: ls, errs: errs}, nil
}

// OfMeasurements stacks independent measurements of a shared state.
func OfMeasurements(ms ...Measurement) (*Stack, error) {
	ls := make([]Loading, len(ms))
	for i, m := range ms {
		ls[i] = m
	}
	return NewStack(ls, IndependentErrors(ms))
}

// WithCovariance attaches the dense error covariance h to error-free
// loadings. h must be positive definite.
func WithCovariance(ls []Loading, h *mat.Dense) (*Stack, error) {
	const op = "ssf.WithCovariance"
	if err := checkErrorFree(op, ls); err != nil {
		return nil, err
	}
	if r, _ := h.Dims(); r != len(ls) {
		return nil, Reject(op, fmt.Errorf("covariance has %d rows for %d loadings: %w", r, len(ls), ErrDimensionMismatch))
	}
	errs, err := CovarianceErrors(h)
	if err != nil {
		return nil, err
	}
	return NewStack(ls, errs)
}

// WithVariances attaches independent error variances to error-free loadings.
func WithVariances(ls []Loading, variances []float64) (*Stack, error) {
	const op = "ssf.WithVariances"
	if err := checkErrorFree(op, ls); err != nil {
		return nil, err
	}
	if len(variances) != len(ls) {
		return nil, Reject(op, fmt.Errorf("%d variances for %d loadings: %w", len(variances), len(ls), ErrDimensionMismatch))
	}
	errs, err := DiagonalErrors(variances)
	if err != nil {
		return nil, err
	}
	return NewStack(ls, errs)
}

// Correlated stacks measurements of a shared state whose errors are
// correlated through corr (see CorrelatedErrors).
func Correlated(ms []Measurement, corr *mat.Dense) (*Stack, error) {
	errs, err := CorrelatedErrors(ms, corr)
	if err != nil {
		return nil, err
	}
	ls := make([]Loading, len(ms))
	for i, m := range ms {
		ls[i] = m
	}
	return NewStack(ls, errs)
}

func checkErrorFree(op string, ls []Loading) error {
	for i, l := range ls {
		if m, ok := l.(Measurement); ok && m.HasErrors() {
			return Reject(op, fmt.Errorf("loading %d: %w", i, ErrMeasurementErrors))
		}
	}
	return nil
}

func (s *Stack) MaxCount() int     { return len(s.ls) }
func (s *Stack) Count(pos int) int { return len(s.ls) }

func (s *Stack) IsTimeInvariant() bool {
	for _, l := range s.ls {
		if !l.IsTimeInvariant() {
			return false
		}
	}
	return s.errs.IsTimeInvariant()
}

func (s *Stack) Z(pos, i int, z *mat.VecDense) { s.ls[i].Z(pos, z) }

func (s *Stack) ZX(pos, i int, x *mat.VecDense) float64 {
	return s.ls[i].ZX(pos, x)
}

func (s *Stack) ZVZ(pos, i, j int, v *mat.Dense) float64 {
	if i == j {
		return s.ls[i].ZVZ(pos, v)
	}
	return CrossZVZ(pos, s.ls[i], s.ls[j], v)
}

func (s *Stack) VpZdZ(pos, i, j int, v *mat.Dense, d float64) {
	if i == j {
		s.ls[i].VpZdZ(pos, v, d)
		return
	}
	CrossVpZdZ(pos, s.ls[i], s.ls[j], v, d)
}

func (s *Stack) XpZd(pos, i int, x *mat.VecDense, d float64) {
	s.ls[i].XpZd(pos, x, d)
}

func (s *Stack) HasErrors() bool         { return s.errs.HasErrors() }
func (s *Stack) HasError(pos int) bool   { return s.errs.HasError(pos) }
func (s *Stack) H(pos int, h *mat.Dense) { s.errs.H(pos, h) }
func (s *Stack) R(pos int, r *mat.Dense) { s.errs.R(pos, r) }

// ProxyMeasurements presents a single measurement as a one-variable
// multivariate measurement.
type ProxyMeasurements struct {
	m Measurement
}

// Proxy lifts m into the multivariate contract.
func Proxy(m Measurement) *ProxyMeasurements {
	return &ProxyMeasurements{m: m}
}

func (p *ProxyMeasurements) MaxCount() int                 { return 1 }
func (p *ProxyMeasurements) Count(pos int) int             { return 1 }
func (p *ProxyMeasurements) IsTimeInvariant() bool         { return p.m.IsTimeInvariant() }
func (p *ProxyMeasurements) Z(pos, i int, z *mat.VecDense) { p.m.Z(pos, z) }
func (p *ProxyMeasurements) HasErrors() bool               { return p.m.HasErrors() }
func (p *ProxyMeasurements) HasError(pos int) bool         { return p.m.HasError(pos) }
func (p *ProxyMeasurements) H(pos int, h *mat.Dense)       { h.Set(0, 0, p.m.ErrorVariance(pos)) }
func (p *ProxyMeasurements) R(pos int, r *mat.Dense)       { r.Set(0, 0, math.Sqrt(p.m.ErrorVariance(pos))) }

func (p *ProxyMeasurements) ZX(pos, i int, x *mat.VecDense) float64 {
	return p.m.ZX(pos, x)
}

func (p *ProxyMeasurements) ZVZ(pos, i, j int, v *mat.Dense) float64 {
	return p.m.ZVZ(pos, v)
}

func (p *ProxyMeasurements) VpZdZ(pos, i, j int, v *mat.Dense, d float64) {
	p.m.VpZdZ(pos, v, d)
}

func (p *ProxyMeasurements) XpZd(pos, i int, x *mat.VecDense, d float64) {
	p.m.XpZd(pos, x, d)
}

// Variable returns the loading of variable i of ms.
func Variable(ms Measurements, i int) Loading {
	return variable{ms: ms, i: i}
}

type variable struct {
	ms Measurements
	i  int
}

func (v variable) IsTimeInvariant() bool               { return v.ms.IsTimeInvariant() }
func (v variable) Z(pos int, z *mat.VecDense)          { v.ms.Z(pos, v.i, z) }
func (v variable) ZX(pos int, x *mat.VecDense) float64 { return v.ms.ZX(pos, v.i, x) }
func (v variable) ZVZ(pos int, m *mat.Dense) float64   { return v.ms.ZVZ(pos, v.i, v.i, m) }

func (v variable) VpZdZ(pos int, m *mat.Dense, d float64) {
	v.ms.VpZdZ(pos, v.i, v.i, m, d)
}

func (v variable) XpZd(pos int, x *mat.VecDense, d float64) {
	v.ms.XpZd(pos, v.i, x, d)
}
