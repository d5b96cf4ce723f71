package kern_test

import (
	"math"
	"testing"

	"github.com/lucasmaystre/gossf/filter"
	"github.com/lucasmaystre/gossf/kern"
	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/ssftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var times = []float64{0.5, 0.7, 1.6, 1.6, 3.0}

func kernels() map[string]kern.Kernel {
	return map[string]kern.Kernel{
		"constant": kern.NewConstant(2.0),
		"wiener":   kern.NewWiener(1.5, 0.0),
		"matern12": kern.NewMatern12(1.2, 0.8),
		"matern32": kern.NewMatern32(0.7, 1.3),
		"add":      kern.NewAdd(kern.NewConstant(0.4), kern.NewAdd(kern.NewMatern12(1, 2), kern.NewMatern32(1, 0.5))),
	}
}

func TestComponent(t *testing.T) {
	r := ssftest.NewRand(40)
	for name, k := range kernels() {
		t.Run(name, func(t *testing.T) {
			c, err := kern.Component(k, times)
			require.NoError(t, err)
			assert.Equal(t, k.Order(), c.StateDim())
			assert.False(t, c.Dynamics.IsTimeInvariant())
			assert.False(t, c.Initialization.IsDiffuse())
			ssftest.CheckInitialization(t, c.Initialization)
			for pos := range times {
				ssftest.CheckDynamics(t, c.Dynamics, pos, r)
			}

			grid, err := kern.Component(k, nil)
			require.NoError(t, err)
			assert.True(t, grid.Dynamics.IsTimeInvariant())
			ssftest.CheckDynamics(t, grid.Dynamics, 0, r)
		})
	}
}

func TestComponentPastLastTime(t *testing.T) {
	c, err := kern.Component(kern.NewMatern32(1, 1), times)
	require.NoError(t, err)
	tr := ssftest.TransitionOf(c.Dynamics, len(times)-1)
	assert.True(t, mat.EqualApprox(mat.NewDense(2, 2, []float64{1, 0, 0, 1}), tr, ssftest.Tol))
	v := mat.NewDense(2, 2, nil)
	c.Dynamics.V(len(times)-1, v)
	assert.InDelta(t, 0, mat.Norm(v, 1), ssftest.Tol)
}

func TestMatern12Transition(t *testing.T) {
	c, err := kern.Component(kern.NewMatern12(2, 0.5), times)
	require.NoError(t, err)
	tr := ssftest.TransitionOf(c.Dynamics, 1)
	assert.InDelta(t, math.Exp(-0.9/0.5), tr.At(0, 0), ssftest.Tol)
	v := mat.NewDense(1, 1, nil)
	c.Dynamics.V(1, v)
	assert.InDelta(t, 2*(1-math.Exp(-2*0.9/0.5)), v.At(0, 0), ssftest.Tol)

	// Repeated times do not move the state.
	tr = ssftest.TransitionOf(c.Dynamics, 2)
	assert.Equal(t, 1.0, tr.At(0, 0))
}

func TestNotChronological(t *testing.T) {
	_, err := kern.Component(kern.NewMatern12(1, 1), []float64{0, 2, 1})
	assert.ErrorIs(t, err, kern.ErrNotChronological)
	_, err = kern.Model(kern.NewAdd(kern.NewConstant(1), kern.NewMatern12(1, 1)), []float64{3, 2}, 0.1)
	assert.ErrorIs(t, err, kern.ErrNotChronological)
}

func TestAdd(t *testing.T) {
	k := kern.NewAdd(kern.NewAdd(kern.NewConstant(1), kern.NewMatern32(1, 1)), kern.NewMatern12(1, 1))
	assert.Equal(t, 4, k.Order())
	assert.Equal(t, []float64{1, 1, 0, 1}, k.MeasurementVec().Data)

	c, err := kern.Component(k, times)
	require.NoError(t, err)
	assert.Equal(t, 4, c.StateDim())
	tr := ssftest.TransitionOf(c.Dynamics, 0)
	dense := k.Transition(times[1] - times[0])
	assert.True(t, mat.EqualApprox(mat.NewDense(4, 4, dense.Data), tr, ssftest.Tol))
}

// Stationary kernels keep the prior variance; the predictive variance of an
// unobserved series is k(t, t) plus the observation noise.
func TestPriorVariance(t *testing.T) {
	const noise = 0.1
	nan := make([]float64, len(times))
	for i := range nan {
		nan[i] = math.NaN()
	}
	cases := []struct {
		name string
		k    kern.Kernel
		kvar func(t float64) float64
	}{
		{"constant", kern.NewConstant(2.0), func(float64) float64 { return 2.0 }},
		{"wiener", kern.NewWiener(1.5, 0.0), func(t float64) float64 { return 1.5 * t }},
		{"matern12", kern.NewMatern12(1.2, 0.8), func(float64) float64 { return 1.2 }},
		{"matern32", kern.NewMatern32(0.7, 1.3), func(float64) float64 { return 0.7 }},
		{"add", kern.NewAdd(kern.NewConstant(0.4), kern.NewMatern12(1, 2)), func(float64) float64 { return 1.4 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := kern.Model(tc.k, times, noise)
			require.NoError(t, err)
			res, err := filter.New().Run(m, nan)
			require.NoError(t, err)
			for pos, ts := range times {
				assert.Zero(t, res.Predictions[pos].Mean)
				assert.InDelta(t, tc.kvar(ts)+noise, res.Predictions[pos].Variance, 1e-9)
			}
		})
	}
}

func TestModelWithoutNoise(t *testing.T) {
	m, err := kern.Model(kern.NewMatern32(1, 1), nil, 0)
	require.NoError(t, err)
	assert.False(t, m.Measurement.HasErrors())
	assert.True(t, m.IsTimeInvariant())

	_, err = kern.Model(kern.NewMatern32(1, 1), nil, -1)
	assert.ErrorIs(t, err, ssf.ErrInvalidArgument)
}
