package kern

import (
	"gonum.org/v1/gonum/blas/blas64"
)

var _ Kernel = (*Constant)(nil)

// Constant is a level fixed over time, drawn once with the given variance.
type Constant struct {
	variance float64
}

func NewConstant(variance float64) *Constant {
	return &Constant{
		variance: variance,
	}
}

func (k *Constant) Order() int {
	return 1
}

func (k *Constant) StateMean(t float64) blas64.Vector {
	return blas64.Vector{N: 1, Inc: 1, Data: []float64{0.0}}
}

func (k *Constant) StateCov(t float64) blas64.Symmetric {
	return scalarSym(k.variance)
}

func (k *Constant) MeasurementVec() blas64.Vector {
	return blas64.Vector{N: 1, Inc: 1, Data: []float64{1.0}}
}

func (k *Constant) Transition(delta float64) blas64.General {
	return blas64.General{Rows: 1, Cols: 1, Stride: 1, Data: []float64{1.0}}
}

func (k *Constant) NoiseCov(delta float64) blas64.Symmetric {
	return scalarSym(0.0)
}
