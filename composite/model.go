package composite

import (
	"github.com/lucasmaystre/gossf/ssf"
	"gonum.org/v1/gonum/mat"
)

func split(models []*ssf.Model) (*Initialization, *Dynamics, []int, error) {
	inits := make([]ssf.Initialization, len(models))
	dyns := make([]ssf.Dynamics, len(models))
	dims := make([]int, len(models))
	for i, m := range models {
		inits[i] = m.Initialization
		dyns[i] = m.Dynamics
		dims[i] = m.StateDim()
	}
	init, err := NewInitialization(inits...)
	if err != nil {
		return nil, nil, nil, err
	}
	dyn, err := NewDynamics(dyns...)
	if err != nil {
		return nil, nil, nil, err
	}
	return init, dyn, dims, nil
}

func measurementsOf(models []*ssf.Model) []ssf.Measurement {
	ms := make([]ssf.Measurement, len(models))
	for i, m := range models {
		ms[i] = m.Measurement
	}
	return ms
}

// Sum returns the model whose observation is the sum of the observations of
// the independent models.
func Sum(models ...*ssf.Model) (*ssf.Model, error) {
	init, dyn, dims, err := split(models)
	if err != nil {
		return nil, err
	}
	m, err := NewSumMeasurement(dims, measurementsOf(models))
	if err != nil {
		return nil, err
	}
	return ssf.NewModel(init, dyn, m)
}

// WeightedSum returns the model observing Σ wi(pos)·yi(pos) plus an error of
// variance variance(pos) (nil for none). The models must be error-free.
func WeightedSum(models []*ssf.Model, weights []ssf.WeightFunc, variance ssf.WeightFunc) (*ssf.Model, error) {
	init, dyn, dims, err := split(models)
	if err != nil {
		return nil, err
	}
	m, err := NewWeightedMeasurement(dims, weights, measurementsOf(models), variance)
	if err != nil {
		return nil, err
	}
	return ssf.NewModel(init, dyn, m)
}

// Stack observes each model as its own variable. A nil corr keeps the
// errors independent; otherwise corr is the correlation of the errors.
func Stack(models []*ssf.Model, corr *mat.Dense) (*ssf.MultivariateModel, error) {
	init, dyn, dims, err := split(models)
	if err != nil {
		return nil, err
	}
	blocks := make([]int, len(models))
	for i := range blocks {
		blocks[i] = i
	}
	ms, err := NewMeasurements(dims, blocks, measurementsOf(models), corr)
	if err != nil {
		return nil, err
	}
	return ssf.NewMultivariateModel(init, dyn, ms)
}
