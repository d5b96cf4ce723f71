package ssf_test

import (
	"math"
	"testing"

	"github.com/lucasmaystre/gossf/metrics"
	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/ssftest"
	"github.com/lucasmaystre/gossf/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLeafMeasurements(t *testing.T) {
	r := ssftest.NewRand(1)
	sel, err := ssf.NewSelection(2, 0.5)
	require.NoError(t, err)
	vec, err := ssf.NewLoading([]float64{1, -2, 0.5, 3}, 0)
	require.NoError(t, err)
	tv, err := ssf.NewTimeVaryingLoading(4, func(pos int, z []float64) {
		z[0] = float64(pos)
		z[3] = 1
	}, 2)
	require.NoError(t, err)

	for name, m := range map[string]ssf.Measurement{"selection": sel, "vector": vec, "time-varying": tv} {
		t.Run(name, func(t *testing.T) {
			for pos := 0; pos < 3; pos++ {
				ssftest.CheckMeasurement(t, m, 4, pos, r)
			}
		})
	}

	assert.True(t, sel.HasErrors())
	assert.False(t, vec.HasErrors())
	assert.Equal(t, 2.0, tv.ErrorVariance(7))
	assert.False(t, tv.IsTimeInvariant())
	assert.InDelta(t, 5.0, tv.ZX(5, mat.NewVecDense(4, []float64{1, 0, 0, 0})), 1e-12)
}

func TestMeasurementRejections(t *testing.T) {
	before := testutil.ToFloat64(metrics.ModelsRejected.WithLabelValues("ssf.NewSelection"))
	_, err := ssf.NewSelection(-1, 1)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
	_, err = ssf.NewSelection(0, -1)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.ModelsRejected.WithLabelValues("ssf.NewSelection")))

	_, err = ssf.NewLoading(nil, 0)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
	_, err = ssf.NewLoading([]float64{1}, math.NaN())
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
}

func TestLeafDynamics(t *testing.T) {
	r := ssftest.NewRand(2)
	noise, err := ssf.NewNoise([]float64{1, 0, 2.5})
	require.NoError(t, err)
	full, err := ssf.NewFullNoise(r.SPD(3))
	require.NoError(t, err)
	dense, err := ssf.NewDenseDynamics(r.Dense(3, 3), r.SPD(3))
	require.NoError(t, err)
	tv, err := ssf.NewTimeVaryingDynamics(2, func(pos int, t, v *mat.Dense) {
		t.Set(0, 0, 1)
		t.Set(0, 1, float64(pos))
		t.Set(1, 1, 0.5)
		v.Set(0, 0, 1)
		v.Set(1, 1, float64(pos))
	})
	require.NoError(t, err)

	for name, d := range map[string]ssf.Dynamics{
		"noise":        noise,
		"full noise":   full,
		"dense":        dense,
		"time-varying": tv,
		"shifted":      ssf.ShiftDynamics(tv, 3),
	} {
		t.Run(name, func(t *testing.T) {
			for pos := 0; pos < 3; pos++ {
				ssftest.CheckDynamics(t, d, pos, r)
			}
		})
	}

	assert.True(t, dense.IsTimeInvariant())
	assert.False(t, tv.IsTimeInvariant())
	assert.Equal(t, tv, ssf.ShiftDynamics(tv, 0))
	shifted := ssftest.TransitionOf(ssf.ShiftDynamics(tv, 3), 1)
	assert.Equal(t, 4.0, shifted.At(0, 1))
}

func TestDynamicsRejections(t *testing.T) {
	_, err := ssf.NewNoise([]float64{1, -1})
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)

	indefinite := mat.NewDense(2, 2, []float64{1, 2, 2, 1})
	_, err = ssf.NewFullNoise(indefinite)
	assert.ErrorIs(t, err, ssf.ErrNotPositiveDefinite)

	asymmetric := mat.NewDense(2, 2, []float64{1, 0, 0.5, 1})
	_, err = ssf.NewFullNoise(asymmetric)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)

	_, err = ssf.NewDenseDynamics(mat.NewDense(2, 3, nil), mat.NewDense(2, 2, nil))
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
	_, err = ssf.NewDenseDynamics(utils.Eye(2), mat.NewDense(3, 3, nil))
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
}

func TestSingularNoiseIsAccepted(t *testing.T) {
	v := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	d, err := ssf.NewFullNoise(v)
	require.NoError(t, err)
	ssftest.CheckDynamics(t, d, 0, ssftest.NewRand(3))
}

func TestDecorators(t *testing.T) {
	r := ssftest.NewRand(4)
	base, err := ssf.NewLoading([]float64{1, 2, -1}, 0.5)
	require.NoError(t, err)
	w := func(pos int) float64 { return 1 + float64(pos) }

	weighted := ssf.Weighted(base, w)
	noisy := ssf.Noisy(base, func(pos int) float64 { return float64(pos) })
	shifted := ssf.Shifted(ssf.Weighted(base, w), 2)
	for name, m := range map[string]ssf.Measurement{"weighted": weighted, "noisy": noisy, "shifted": shifted} {
		t.Run(name, func(t *testing.T) {
			for pos := 0; pos < 3; pos++ {
				ssftest.CheckMeasurement(t, m, 3, pos, r)
			}
		})
	}

	assert.False(t, weighted.IsTimeInvariant())
	assert.InDelta(t, 0.5*9, weighted.ErrorVariance(2), 1e-12)
	assert.InDelta(t, 0.5+3, noisy.ErrorVariance(3), 1e-12)
	assert.InDelta(t, 0.5*16, shifted.ErrorVariance(1), 1e-12)
	z := ssftest.LoadingOf(shifted, 3, 1)
	assert.Equal(t, []float64{4, 8, -4}, z.RawVector().Data)
	assert.Same(t, base, ssf.Shifted(base, 0))
}

func TestStacks(t *testing.T) {
	r := ssftest.NewRand(5)
	a, err := ssf.NewLoading([]float64{1, 0, 2}, 1)
	require.NoError(t, err)
	b, err := ssf.NewSelection(1, 4)
	require.NoError(t, err)
	c, err := ssf.NewTimeVaryingLoading(3, func(pos int, z []float64) {
		z[2] = float64(pos + 1)
	}, 0.25)
	require.NoError(t, err)

	independent, err := ssf.OfMeasurements(a, b, c)
	require.NoError(t, err)
	corr := r.Correlation(3)
	correlated, err := ssf.Correlated([]ssf.Measurement{a, b, c}, corr)
	require.NoError(t, err)
	for name, ms := range map[string]ssf.Measurements{
		"independent": independent,
		"correlated":  correlated,
		"proxy":       ssf.Proxy(a),
	} {
		t.Run(name, func(t *testing.T) {
			for pos := 0; pos < 2; pos++ {
				ssftest.CheckMeasurements(t, ms, 3, pos, r)
			}
		})
	}

	h := mat.NewDense(3, 3, nil)
	independent.H(0, h)
	assert.Equal(t, []float64{1, 0, 0, 0, 4, 0, 0, 0, 0.25}, h.RawMatrix().Data)

	// H = D·C·D
	correlated.H(0, h)
	d := []float64{1, 2, 0.5}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, d[i]*corr.At(i, j)*d[j], h.At(i, j), 1e-12)
		}
	}
	assert.False(t, correlated.IsTimeInvariant())
}

func TestStackRejections(t *testing.T) {
	a, err := ssf.NewSelection(0, 1)
	require.NoError(t, err)

	_, err = ssf.NewStack(nil, ssf.IndependentErrors([]ssf.Measurement{a}))
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
	_, err = ssf.NewStack([]ssf.Loading{a}, nil)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
}

func TestCorrelatedRejections(t *testing.T) {
	a, err := ssf.NewSelection(0, 1)
	require.NoError(t, err)
	b, err := ssf.NewSelection(1, 1)
	require.NoError(t, err)
	ms := []ssf.Measurement{a, b}

	_, err = ssf.Correlated(ms, mat.NewDense(2, 2, []float64{2, 0.5, 0.5, 1}))
	assert.ErrorIs(t, err, ssf.ErrNotCorrelation)
	_, err = ssf.Correlated(ms, mat.NewDense(2, 2, []float64{1, 1, 1, 1}))
	assert.ErrorIs(t, err, ssf.ErrNotCorrelation)
	assert.ErrorIs(t, err, ssf.ErrNotPositiveDefinite)
	_, err = ssf.Correlated(ms, mat.NewDense(2, 2, []float64{1, 0.3, 0.2, 1}))
	assert.ErrorIs(t, err, ssf.ErrNotCorrelation)
	_, err = ssf.Correlated(ms, utils.Eye(3))
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
}

func TestExplicitCovariance(t *testing.T) {
	r := ssftest.NewRand(6)
	a, err := ssf.NewLoading([]float64{1, 1}, 0)
	require.NoError(t, err)
	b, err := ssf.NewSelection(0, 0)
	require.NoError(t, err)
	ls := []ssf.Loading{a, b}

	cov := r.SPD(2)
	ms, err := ssf.WithCovariance(ls, cov)
	require.NoError(t, err)
	ssftest.CheckMeasurements(t, ms, 2, 0, r)
	h := mat.NewDense(2, 2, nil)
	ms.H(3, h)
	assert.True(t, mat.Equal(cov, h))
	assert.True(t, ms.IsTimeInvariant())

	diag, err := ssf.WithVariances(ls, []float64{2, 0})
	require.NoError(t, err)
	ssftest.CheckMeasurements(t, diag, 2, 0, r)

	_, err = ssf.WithCovariance(ls, mat.NewDense(2, 2, []float64{1, 2, 2, 1}))
	assert.ErrorIs(t, err, ssf.ErrNotPositiveDefinite)
	_, err = ssf.WithCovariance(ls, utils.Eye(3))
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
	_, err = ssf.WithVariances(ls, []float64{1})
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)

	noisy, err := ssf.NewSelection(1, 1)
	require.NoError(t, err)
	_, err = ssf.WithVariances([]ssf.Loading{a, noisy}, []float64{1, 1})
	assert.ErrorIs(t, err, ssf.ErrMeasurementErrors)
}

func TestInitializations(t *testing.T) {
	d := ssf.NewDiffuseInitialization(3)
	ssftest.CheckInitialization(t, d)
	assert.Equal(t, 3, d.DiffuseDim())
	assert.Panics(t, func() { ssf.NewDiffuseInitialization(0) })

	b := mat.NewDense(3, 1, []float64{1, 1, 0})
	pf := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 2})
	p, err := ssf.NewInitialization(3, []float64{1, 2, 3}, pf, b)
	require.NoError(t, err)
	ssftest.CheckInitialization(t, p)
	assert.Equal(t, 1, p.DiffuseDim())
	a := mat.NewVecDense(3, nil)
	p.A0(a)
	assert.Equal(t, []float64{1, 2, 3}, a.RawVector().Data)

	plain, err := ssf.NewInitialization(2, nil, nil, nil)
	require.NoError(t, err)
	ssftest.CheckInitialization(t, plain)
	assert.False(t, plain.IsDiffuse())

	_, err = ssf.NewInitialization(2, []float64{1}, nil, nil)
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
	_, err = ssf.NewInitialization(2, nil, mat.NewDense(2, 2, []float64{1, 1, 0, 1}), nil)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
	_, err = ssf.NewInitialization(2, nil, nil, mat.NewDense(3, 1, nil))
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
}

func TestModels(t *testing.T) {
	init := ssf.NewDiffuseInitialization(2)
	dyn, err := ssf.NewNoise([]float64{1, 1})
	require.NoError(t, err)
	m, err := ssf.NewSelection(0, 1)
	require.NoError(t, err)

	model, err := ssf.NewModel(init, dyn, m)
	require.NoError(t, err)
	assert.Equal(t, 2, model.StateDim())
	assert.True(t, model.IsTimeInvariant())

	c, err := ssf.NewStateComponent(init, dyn)
	require.NoError(t, err)
	viaOf, err := ssf.Of(c, m)
	require.NoError(t, err)
	assert.Equal(t, model, viaOf)
	assert.Equal(t, c, model.Component())

	mm := model.Multivariate()
	assert.Equal(t, 1, mm.Measurements.MaxCount())
	assert.True(t, mm.IsTimeInvariant())

	_, err = ssf.NewModel(ssf.NewDiffuseInitialization(3), dyn, m)
	assert.ErrorIs(t, err, ssf.ErrDimensionMismatch)
	_, err = ssf.NewStateComponent(nil, dyn)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
	_, err = ssf.NewMultivariateModel(init, dyn, nil)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
}
