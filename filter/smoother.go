package filter

import (
	"fmt"
	"math"

	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

// Smoothed is the distribution of the signal Z(pos)·x(pos) given every
// observation.
type Smoothed struct {
	Mean     float64
	Variance float64
}

// Smooth runs the filter forward and a Rauch-Tung-Striebel pass backward
// over m, and returns the smoothed signal at every position.
func (f *Filter) Smooth(m *ssf.Model, ys []float64) ([]Smoothed, error) {
	k := len(ys)
	if k == 0 {
		return nil, nil
	}
	n := m.StateDim()
	var (
		aP = make([]*mat.VecDense, k)
		pP = make([]*mat.Dense, k)
		aF = make([]*mat.VecDense, k)
		pF = make([]*mat.Dense, k)
	)
	s := f.initial(m.Initialization)
	z := mat.NewVecDense(n, nil)
	var pz mat.VecDense
	// Forward pass (Kalman filter).
	for pos, y := range ys {
		aP[pos] = mat.VecDenseCopyOf(s.a)
		pP[pos] = mat.DenseCopyOf(s.p)
		if !math.IsNaN(y) {
			mean := m.Measurement.ZX(pos, s.a)
			variance := m.Measurement.ZVZ(pos, s.p)
			if m.Measurement.HasError(pos) {
				variance += m.Measurement.ErrorVariance(pos)
			}
			if variance <= 0 {
				return nil, fmt.Errorf("position %d: %w", pos, ErrSingular)
			}
			z.Zero()
			m.Measurement.XpZd(pos, z, 1)
			pz.MulVec(s.p, z)
			utils.Axpy((y-mean)/variance, &pz, s.a)
			utils.Ger(-1/variance, &pz, &pz, s.p)
		}
		aF[pos] = mat.VecDenseCopyOf(s.a)
		pF[pos] = mat.DenseCopyOf(s.p)
		predict(m.Dynamics, pos, s)
	}
	// Backward pass (RTS smoother).
	out := make([]Smoothed, k)
	aS, pS := aF[k-1], pF[k-1]
	tr := mat.NewDense(n, n, nil)
	var g, tmp mat.Dense
	var da, gda mat.VecDense
	for pos := k - 1; pos >= 0; pos-- {
		if pos < k-1 {
			// G = P_p(pos+1)⁻¹·T·P_f(pos)
			m.Dynamics.T(pos, tr)
			tmp.Mul(tr, pF[pos])
			if err := g.Solve(pP[pos+1], &tmp); err != nil {
				return nil, fmt.Errorf("position %d: %w: %v", pos, ErrSingular, err)
			}
			// a_s = a_f + Gᵀ·(a_s(pos+1) - a_p(pos+1))
			da.SubVec(aS, aP[pos+1])
			gda.MulVec(g.T(), &da)
			aS = mat.VecDenseCopyOf(aF[pos])
			aS.AddVec(aS, &gda)
			// P_s = P_f + Gᵀ·(P_s(pos+1) - P_p(pos+1))·G
			tmp.Sub(pS, pP[pos+1])
			next := mat.NewDense(n, n, nil)
			next.Product(g.T(), &tmp, &g)
			next.Add(next, pF[pos])
			pS = next
		}
		out[pos] = Smoothed{
			Mean:     m.Measurement.ZX(pos, aS),
			Variance: m.Measurement.ZVZ(pos, pS),
		}
	}
	return out, nil
}
