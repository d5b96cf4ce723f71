package composite_test

import (
	"math"
	"testing"

	"github.com/lucasmaystre/gossf/composite"
	"github.com/lucasmaystre/gossf/filter"
	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/ssftest"
	"github.com/lucasmaystre/gossf/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func whiteNoise(t *testing.T, variance, h float64) *ssf.Model {
	t.Helper()
	dyn, err := ssf.NewNoise([]float64{variance})
	require.NoError(t, err)
	m, err := ssf.NewSelection(0, h)
	require.NoError(t, err)
	model, err := ssf.NewModel(ssf.NewDiffuseInitialization(1), dyn, m)
	require.NoError(t, err)
	return model
}

func trend(t *testing.T, r *ssftest.Rand, h float64) *ssf.Model {
	t.Helper()
	tr := mat.NewDense(2, 2, []float64{1, 1, 0, 1})
	dyn, err := ssf.NewDenseDynamics(tr, r.SPD(2))
	require.NoError(t, err)
	m, err := ssf.NewLoading([]float64{1, 2}, h)
	require.NoError(t, err)
	init, err := ssf.NewInitialization(2, []float64{1, 0}, r.SPD(2), nil)
	require.NoError(t, err)
	model, err := ssf.NewModel(init, dyn, m)
	require.NoError(t, err)
	return model
}

func TestDynamics(t *testing.T) {
	r := ssftest.NewRand(20)
	a, b := whiteNoise(t, 0.5, 0), trend(t, r, 0)
	tv, err := ssf.NewTimeVaryingDynamics(1, func(pos int, tr, v *mat.Dense) {
		tr.Set(0, 0, 0.5+0.1*float64(pos))
		v.Set(0, 0, 1+float64(pos))
	})
	require.NoError(t, err)

	dyn, err := composite.NewDynamics(a.Dynamics, b.Dynamics, tv)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3, 4}, dyn.Offsets())
	assert.Equal(t, 4, dyn.StateDim())
	assert.Equal(t, 4, dyn.InnovationsDim())
	assert.False(t, dyn.IsTimeInvariant())
	for pos := 0; pos < 3; pos++ {
		ssftest.CheckDynamics(t, dyn, pos, r)
	}

	tr := ssftest.TransitionOf(dyn, 2)
	want := utils.BlockDiag(mat.NewDense(1, 1, nil), mat.NewDense(2, 2, []float64{1, 1, 0, 1}), mat.NewDense(1, 1, []float64{0.7}))
	assert.True(t, mat.EqualApprox(want, tr, ssftest.Tol))

	_, err = composite.NewDynamics()
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
}

func TestInitialization(t *testing.T) {
	r := ssftest.NewRand(21)
	a, b := whiteNoise(t, 0.5, 0), trend(t, r, 0)
	init, err := composite.NewInitialization(b.Initialization, a.Initialization, ssf.NewDiffuseInitialization(2))
	require.NoError(t, err)
	assert.Equal(t, 5, init.StateDim())
	assert.Equal(t, 3, init.DiffuseDim())
	ssftest.CheckInitialization(t, init)

	a0 := mat.NewVecDense(5, nil)
	init.A0(a0)
	assert.Equal(t, []float64{1, 0, 0, 0, 0}, a0.RawVector().Data)

	pf := mat.NewDense(5, 5, nil)
	init.Pf0(pf)
	want := mat.NewDense(2, 2, nil)
	b.Initialization.Pf0(want)
	assert.True(t, mat.EqualApprox(want, utils.Square(pf, 0, 2), ssftest.Tol))
	assert.Zero(t, mat.Norm(utils.Square(pf, 2, 5), 1))
}

func TestSumMeasurement(t *testing.T) {
	r := ssftest.NewRand(22)
	a, b := whiteNoise(t, 0.5, 0.25), trend(t, r, 1)
	m, err := composite.NewSumMeasurement([]int{1, 2}, []ssf.Measurement{a.Measurement, b.Measurement})
	require.NoError(t, err)
	assert.True(t, m.IsTimeInvariant())
	assert.True(t, m.HasErrors())
	assert.Equal(t, 1.25, m.ErrorVariance(3))
	ssftest.CheckMeasurement(t, m, 3, 0, r)
	assert.Equal(t, []float64{1, 1, 2}, ssftest.LoadingOf(m, 3, 0).RawVector().Data)

	_, err = composite.NewSumMeasurement([]int{1}, []ssf.Measurement{a.Measurement, b.Measurement})
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
}

func TestWeightedMeasurement(t *testing.T) {
	r := ssftest.NewRand(23)
	a, b := whiteNoise(t, 0.5, 0), trend(t, r, 0)
	weights := []ssf.WeightFunc{
		func(pos int) float64 { return 2 },
		func(pos int) float64 { return float64(pos) - 1 },
	}
	m, err := composite.NewWeightedMeasurement([]int{1, 2}, weights, []ssf.Measurement{a.Measurement, b.Measurement}, nil)
	require.NoError(t, err)
	assert.False(t, m.IsTimeInvariant())
	assert.False(t, m.HasErrors())
	for pos := 0; pos < 3; pos++ {
		ssftest.CheckMeasurement(t, m, 3, pos, r)
	}
	assert.Equal(t, []float64{2, -1, -2}, ssftest.LoadingOf(m, 3, 0).RawVector().Data)

	noisy, err := composite.NewWeightedMeasurement([]int{1, 2}, weights, []ssf.Measurement{a.Measurement, b.Measurement},
		func(pos int) float64 { return 0.5 })
	require.NoError(t, err)
	assert.True(t, noisy.HasError(4))
	assert.Equal(t, 0.5, noisy.ErrorVariance(4))

	withErrors := whiteNoise(t, 0.5, 1)
	_, err = composite.NewWeightedMeasurement([]int{1, 2}, weights, []ssf.Measurement{withErrors.Measurement, b.Measurement}, nil)
	assert.ErrorIs(t, err, ssf.ErrMeasurementErrors)
	_, err = composite.NewWeightedMeasurement([]int{1, 2}, []ssf.WeightFunc{weights[0], nil}, []ssf.Measurement{a.Measurement, b.Measurement}, nil)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
	_, err = composite.NewWeightedMeasurement([]int{1, 2}, weights[:1], []ssf.Measurement{a.Measurement, b.Measurement}, nil)
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
}

func TestMeasurements(t *testing.T) {
	sel, err := ssf.NewSelection(0, 1)
	require.NoError(t, err)
	vec, err := ssf.NewLoading([]float64{1, 2}, 4)
	require.NoError(t, err)

	ms, err := composite.NewMeasurements([]int{1, 2}, []int{0, 1}, []ssf.Measurement{sel, vec}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ms.MaxCount())
	assert.True(t, ms.IsTimeInvariant())

	v := utils.Eye(3)
	assert.Equal(t, 1.0, ms.ZVZ(0, 0, 0, v))
	assert.Equal(t, 5.0, ms.ZVZ(0, 1, 1, v))
	assert.Equal(t, 0.0, ms.ZVZ(0, 0, 1, v))
	assert.Equal(t, 0.0, ms.ZVZ(0, 1, 0, v))

	h := mat.NewDense(2, 2, nil)
	ms.H(0, h)
	assert.Equal(t, []float64{1, 0, 0, 4}, h.RawMatrix().Data)

	r := ssftest.NewRand(24)
	for pos := 0; pos < 2; pos++ {
		ssftest.CheckMeasurements(t, ms, 3, pos, r)
	}

	// Two variables on the same block.
	shared, err := composite.NewMeasurements([]int{1, 2}, []int{1, 1}, []ssf.Measurement{vec, sel}, nil)
	require.NoError(t, err)
	ssftest.CheckMeasurements(t, shared, 3, 0, r)

	_, err = composite.NewMeasurements([]int{1, 2}, []int{0, 2}, []ssf.Measurement{sel, vec}, nil)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
	_, err = composite.NewMeasurements([]int{1, 2}, []int{0}, []ssf.Measurement{sel, vec}, nil)
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
}

func TestStack(t *testing.T) {
	r := ssftest.NewRand(25)
	a, b := whiteNoise(t, 0.5, 1), trend(t, r, 4)
	corr := mat.NewDense(2, 2, []float64{1, 0.5, 0.5, 1})

	mm, err := composite.Stack([]*ssf.Model{a, b}, corr)
	require.NoError(t, err)
	assert.Equal(t, 3, mm.StateDim())
	assert.True(t, mm.IsTimeInvariant())
	ssftest.CheckInitialization(t, mm.Initialization)
	ssftest.CheckDynamics(t, mm.Dynamics, 0, r)
	ssftest.CheckMeasurements(t, mm.Measurements, 3, 0, r)

	// H = D·C·D with D = diag(1, 2).
	h := mat.NewDense(2, 2, nil)
	mm.Measurements.H(0, h)
	assert.True(t, mat.EqualApprox(mat.NewDense(2, 2, []float64{1, 1, 1, 4}), h, ssftest.Tol))

	_, err = composite.Stack([]*ssf.Model{a, b}, mat.NewDense(2, 2, []float64{2, 0.5, 0.5, 1}))
	assert.ErrorIs(t, err, ssf.ErrNotCorrelation)
	_, err = composite.Stack([]*ssf.Model{a, b}, mat.NewDense(2, 2, []float64{1, 1, 1, 1}))
	assert.ErrorIs(t, err, ssf.ErrNotPositiveDefinite)
	_, err = composite.Stack([]*ssf.Model{a, b}, utils.Eye(3))
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)

	independent, err := composite.Stack([]*ssf.Model{a, b}, nil)
	require.NoError(t, err)
	independent.Measurements.H(0, h)
	assert.Equal(t, []float64{1, 0, 0, 4}, h.RawMatrix().Data)
}

// Without observations, the prediction of a sum is the sum of the
// predictions of its independent parts.
func TestSumPredictions(t *testing.T) {
	r := ssftest.NewRand(26)
	a, b := whiteNoise(t, 0.5, 0.1), trend(t, r, 0.2)
	a.Initialization = mustPrior(t, 1, r)
	sum, err := composite.Sum(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.StateDim())
	assert.True(t, sum.IsTimeInvariant())

	ys := make([]float64, 6)
	for i := range ys {
		ys[i] = math.NaN()
	}
	f := filter.New()
	got, err := f.Run(sum, ys)
	require.NoError(t, err)
	pa, err := f.Run(a, ys)
	require.NoError(t, err)
	pb, err := f.Run(b, ys)
	require.NoError(t, err)
	for pos := range ys {
		assert.InDelta(t, pa.Predictions[pos].Mean+pb.Predictions[pos].Mean, got.Predictions[pos].Mean, 1e-9)
		assert.InDelta(t, pa.Predictions[pos].Variance+pb.Predictions[pos].Variance, got.Predictions[pos].Variance, 1e-9)
	}
	assert.Zero(t, got.LogLikelihood)
}

func TestWeightedSum(t *testing.T) {
	r := ssftest.NewRand(27)
	a, b := whiteNoise(t, 0.5, 0), trend(t, r, 0)
	weights := []ssf.WeightFunc{
		func(pos int) float64 { return 1 },
		func(pos int) float64 { return 0.5 },
	}
	sum, err := composite.WeightedSum([]*ssf.Model{a, b}, weights, func(pos int) float64 { return 1 })
	require.NoError(t, err)
	assert.Equal(t, 3, sum.StateDim())
	assert.False(t, sum.IsTimeInvariant())
	ssftest.CheckMeasurement(t, sum.Measurement, 3, 1, r)
	assert.Equal(t, []float64{1, 0.5, 1}, ssftest.LoadingOf(sum.Measurement, 3, 1).RawVector().Data)
}

func mustPrior(t *testing.T, n int, r *ssftest.Rand) ssf.Initialization {
	t.Helper()
	init, err := ssf.NewInitialization(n, make([]float64, n), r.SPD(n), nil)
	require.NoError(t, err)
	return init
}
