package kern

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

var _ Kernel = (*Wiener)(nil)

// Wiener is a Brownian motion started at t0, the continuous-time local
// level.
type Wiener struct {
	variance float64
	t0       float64
}

func NewWiener(variance, t0 float64) *Wiener {
	return &Wiener{
		variance: variance,
		t0:       t0,
	}
}

func (k *Wiener) Order() int {
	return 1
}

func (k *Wiener) StateMean(t float64) blas64.Vector {
	return blas64.Vector{N: 1, Inc: 1, Data: []float64{0.0}}
}

func (k *Wiener) StateCov(t float64) blas64.Symmetric {
	return scalarSym(k.variance * (t - k.t0))
}

func (k *Wiener) MeasurementVec() blas64.Vector {
	return blas64.Vector{N: 1, Inc: 1, Data: []float64{1.0}}
}

func (k *Wiener) Transition(delta float64) blas64.General {
	return blas64.General{Rows: 1, Cols: 1, Stride: 1, Data: []float64{1.0}}
}

func (k *Wiener) NoiseCov(delta float64) blas64.Symmetric {
	return scalarSym(k.variance * delta)
}

func scalarSym(v float64) blas64.Symmetric {
	return blas64.Symmetric{
		N:      1,
		Stride: 1,
		Data:   []float64{v},
		Uplo:   blas.Upper,
	}
}
