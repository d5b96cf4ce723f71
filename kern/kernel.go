// Package kern expresses Gaussian-process kernels with a state-space
// representation as components of a linear Gaussian state-space model.
package kern

import (
	"errors"
	"fmt"

	"github.com/lucasmaystre/gossf/ssf"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

var ErrNotChronological = errors.New("observation times not in chronological order")

type Kernel interface {
	// Order of the SDE :math:`m`.
	Order() int

	// Prior mean of the state vector, :math:`\mathbf{m}_0(t)`.
	StateMean(t float64) blas64.Vector

	// Prior covariance of the state vector, :math:`\mathbf{P}_0(t)`.
	StateCov(t float64) blas64.Symmetric

	// Measurement vector :math:`\mathbf{h}`.
	MeasurementVec() blas64.Vector

	// Transition matrix :math:`\mathbf{A}` for a given time interval.
	Transition(delta float64) blas64.General

	// Noise covariance matrix :math:`\mathbf{Q}` for a given time interval.
	NoiseCov(delta float64) blas64.Symmetric
}

// Component returns the state of kernel k observed at times. A nil times
// means unit-spaced observations starting at 0, which yields time-invariant
// dynamics; otherwise the transition between pos and pos+1 covers
// times[pos+1]-times[pos] (and is the identity past the last time).
func Component(k Kernel, times []float64) (*ssf.StateComponent, error) {
	const op = "kern.Component"
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return nil, ssf.Reject(op, fmt.Errorf("time %d: %w", i, ErrNotChronological))
		}
	}
	if add, ok := k.(*Add); ok {
		return add.component(times)
	}
	t0 := 0.0
	if len(times) > 0 {
		t0 = times[0]
	}
	n := k.Order()
	init, err := ssf.NewInitialization(n, k.StateMean(t0).Data, symDense(k.StateCov(t0)), nil)
	if err != nil {
		return nil, err
	}
	var dyn ssf.Dynamics
	if times == nil {
		dyn, err = ssf.NewDenseDynamics(genDense(k.Transition(1)), symDense(k.NoiseCov(1)))
	} else {
		dyn, err = ssf.NewTimeVaryingDynamics(n, func(pos int, t, v *mat.Dense) {
			delta := 0.0
			if pos >= 0 && pos+1 < len(times) {
				delta = times[pos+1] - times[pos]
			}
			t.Copy(genDense(k.Transition(delta)))
			v.Copy(symDense(k.NoiseCov(delta)))
		})
	}
	if err != nil {
		return nil, err
	}
	return ssf.NewStateComponent(init, dyn)
}

// Model returns the model y(pos) = f(times[pos]) + e, f ~ GP(0, k) and
// Var(e) = noise.
func Model(k Kernel, times []float64, noise float64) (*ssf.Model, error) {
	c, err := Component(k, times)
	if err != nil {
		return nil, err
	}
	m, err := ssf.NewLoading(k.MeasurementVec().Data, noise)
	if err != nil {
		return nil, err
	}
	return ssf.Of(c, m)
}

// symDense copies the upper triangle of s into a full symmetric matrix.
func symDense(s blas64.Symmetric) *mat.Dense {
	out := mat.NewDense(s.N, s.N, nil)
	for i := 0; i < s.N; i++ {
		for j := i; j < s.N; j++ {
			v := s.Data[i*s.Stride+j]
			out.Set(i, j, v)
			out.Set(j, i, v)
		}
	}
	return out
}

func genDense(g blas64.General) *mat.Dense {
	out := mat.NewDense(g.Rows, g.Cols, nil)
	for i := 0; i < g.Rows; i++ {
		for j := 0; j < g.Cols; j++ {
			out.Set(i, j, g.Data[i*g.Stride+j])
		}
	}
	return out
}
