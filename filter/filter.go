// Package filter runs a plain Kalman filter over the model contracts and
// reports the one-step-ahead predictions of the observations. The diffuse
// part of the initial state is approximated by a large finite variance.
package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrSingular = errors.New("singular prediction-error variance")

// DefaultKappa scales the diffuse part of the initial covariance.
const DefaultKappa = 1e7

// Prediction is the predictive distribution of y(pos) given y(0..pos-1).
type Prediction struct {
	Mean     float64
	Variance float64
}

// Result of a univariate run.
type Result struct {
	Predictions   []Prediction
	LogLikelihood float64
}

// Filter holds the settings of a run; it keeps no state between runs.
type Filter struct {
	kappa  float64
	logger *slog.Logger
}

type Option func(*Filter)

// WithKappa sets the variance multiplier of the diffuse initial state.
func WithKappa(kappa float64) Option {
	return func(f *Filter) {
		f.kappa = kappa
	}
}

// WithLogger sets the logger used to report skipped observations.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

func New(opts ...Option) *Filter {
	f := &Filter{
		kappa:  DefaultKappa,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// state is the predicted state at the current position.
type state struct {
	a *mat.VecDense
	p *mat.Dense
}

func (f *Filter) initial(init ssf.Initialization) state {
	n := init.StateDim()
	s := state{a: mat.NewVecDense(n, nil), p: mat.NewDense(n, n, nil)}
	init.A0(s.a)
	init.Pf0(s.p)
	if init.IsDiffuse() {
		pi := mat.NewDense(n, n, nil)
		init.Pi0(pi)
		s.p.Apply(func(i, j int, v float64) float64 {
			return v + f.kappa*pi.At(i, j)
		}, s.p)
	}
	return s
}

// predict computes a ← T·a, P ← T·P·Tᵀ + V.
func predict(dyn ssf.Dynamics, pos int, s state) {
	dyn.TX(pos, s.a)
	dyn.TVT(pos, s.p)
	dyn.AddV(pos, s.p)
}

// Run filters the observations ys (NaN for missing) through m.
func (f *Filter) Run(m *ssf.Model, ys []float64) (*Result, error) {
	n := m.StateDim()
	s := f.initial(m.Initialization)
	res := &Result{Predictions: make([]Prediction, len(ys))}
	z := mat.NewVecDense(n, nil)
	var pz mat.VecDense
	for pos, y := range ys {
		mean := m.Measurement.ZX(pos, s.a)
		variance := m.Measurement.ZVZ(pos, s.p)
		if m.Measurement.HasError(pos) {
			variance += m.Measurement.ErrorVariance(pos)
		}
		res.Predictions[pos] = Prediction{Mean: mean, Variance: variance}
		switch {
		case math.IsNaN(y):
			f.logger.Debug("missing observation", "pos", pos)
		case variance <= 0:
			return nil, fmt.Errorf("position %d: %w", pos, ErrSingular)
		default:
			// K = P·Zᵀ / F
			z.Zero()
			m.Measurement.XpZd(pos, z, 1)
			pz.MulVec(s.p, z)
			utils.Axpy((y-mean)/variance, &pz, s.a)
			utils.Ger(-1/variance, &pz, &pz, s.p)
			res.LogLikelihood += distuv.Normal{Mu: mean, Sigma: math.Sqrt(variance)}.LogProb(y)
		}
		predict(m.Dynamics, pos, s)
	}
	return res, nil
}

// MultivariatePrediction is the predictive distribution of the vector y(pos).
type MultivariatePrediction struct {
	Mean       *mat.VecDense
	Covariance *mat.Dense
}

// RunMultivariate filters the rows of ys (one column per variable) through
// mm. A row with a missing value is skipped entirely.
func (f *Filter) RunMultivariate(mm *ssf.MultivariateModel, ys *mat.Dense) ([]MultivariatePrediction, error) {
	rows, _ := ys.Dims()
	n := mm.StateDim()
	ms := mm.Measurements
	s := f.initial(mm.Initialization)
	out := make([]MultivariatePrediction, rows)
	for pos := 0; pos < rows; pos++ {
		k := ms.Count(pos)
		mean := mat.NewVecDense(k, nil)
		for i := 0; i < k; i++ {
			mean.SetVec(i, ms.ZX(pos, i, s.a))
		}
		cov := mat.NewDense(k, k, nil)
		ssf.ZVZMatrix(ms, pos, s.p, cov)
		if ms.HasError(pos) {
			h := mat.NewDense(k, k, nil)
			ms.H(pos, h)
			cov.Add(cov, h)
		}
		out[pos] = MultivariatePrediction{Mean: mean, Covariance: cov}

		y := mat.Row(nil, pos, ys)
		if floats.HasNaN(y) {
			f.logger.Debug("missing observation", "pos", pos)
			predict(mm.Dynamics, pos, s)
			continue
		}
		var chol mat.Cholesky
		// cov is k×k with stride k, so its data is a valid SymDense.
		if ok := chol.Factorize(mat.NewSymDense(k, cov.RawMatrix().Data)); !ok {
			return nil, fmt.Errorf("position %d: %w", pos, ErrSingular)
		}
		// PZ = P·Zᵀ, one column per variable.
		pz := mat.NewDense(n, k, nil)
		for i := 0; i < k; i++ {
			for r := 0; r < n; r++ {
				pz.Set(r, i, ms.ZX(pos, i, utils.Row(s.p, r)))
			}
		}
		v := mat.NewVecDense(k, y)
		v.SubVec(v, mean)
		var fv mat.VecDense
		if err := chol.SolveVecTo(&fv, v); err != nil {
			return nil, fmt.Errorf("position %d: %w", pos, err)
		}
		var da mat.VecDense
		da.MulVec(pz, &fv)
		s.a.AddVec(s.a, &da)
		var fpz, dp mat.Dense
		if err := chol.SolveTo(&fpz, pz.T()); err != nil {
			return nil, fmt.Errorf("position %d: %w", pos, err)
		}
		dp.Mul(pz, &fpz)
		s.p.Sub(s.p, &dp)
		predict(mm.Dynamics, pos, s)
	}
	return out, nil
}
