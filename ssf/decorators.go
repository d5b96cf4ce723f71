package ssf

import (
	"gonum.org/v1/gonum/mat"
)

// WeightFunc returns a scalar attached to a time position.
type WeightFunc func(pos int) float64

var (
	_ Measurement = (*WeightedMeasurement)(nil)
	_ Measurement = (*NoisyMeasurement)(nil)
	_ Measurement = (*ShiftedMeasurement)(nil)
)

// WeightedMeasurement scales a measurement by w(pos): Z' = w·Z, h' = w²·h.
type WeightedMeasurement struct {
	m Measurement
	w WeightFunc
}

// Weighted returns m scaled by the time-varying weight w.
func Weighted(m Measurement, w WeightFunc) *WeightedMeasurement {
	return &WeightedMeasurement{m: m, w: w}
}

func (m *WeightedMeasurement) IsTimeInvariant() bool { return false }

func (m *WeightedMeasurement) Z(pos int, z *mat.VecDense) {
	m.m.Z(pos, z)
	z.ScaleVec(m.w(pos), z)
}

func (m *WeightedMeasurement) ZX(pos int, x *mat.VecDense) float64 {
	return m.w(pos) * m.m.ZX(pos, x)
}

func (m *WeightedMeasurement) ZVZ(pos int, v *mat.Dense) float64 {
	w := m.w(pos)
	return w * w * m.m.ZVZ(pos, v)
}

func (m *WeightedMeasurement) VpZdZ(pos int, v *mat.Dense, d float64) {
	w := m.w(pos)
	m.m.VpZdZ(pos, v, d*w*w)
}

func (m *WeightedMeasurement) XpZd(pos int, x *mat.VecDense, d float64) {
	m.m.XpZd(pos, x, d*m.w(pos))
}

func (m *WeightedMeasurement) HasErrors() bool { return m.m.HasErrors() }

func (m *WeightedMeasurement) HasError(pos int) bool {
	return m.m.HasError(pos) && m.w(pos) != 0
}

func (m *WeightedMeasurement) ErrorVariance(pos int) float64 {
	w := m.w(pos)
	return w * w * m.m.ErrorVariance(pos)
}

func (m *WeightedMeasurement) AreErrorsTimeInvariant() bool { return false }

// NoisyMeasurement adds a time-varying variance to the error of a
// measurement: h'(pos) = h(pos) + noise(pos).
type NoisyMeasurement struct {
	m     Measurement
	noise WeightFunc
}

// Noisy returns m with additional heteroskedastic noise.
func Noisy(m Measurement, noise WeightFunc) *NoisyMeasurement {
	return &NoisyMeasurement{m: m, noise: noise}
}

func (m *NoisyMeasurement) IsTimeInvariant() bool                    { return false }
func (m *NoisyMeasurement) Z(pos int, z *mat.VecDense)               { m.m.Z(pos, z) }
func (m *NoisyMeasurement) ZX(pos int, x *mat.VecDense) float64      { return m.m.ZX(pos, x) }
func (m *NoisyMeasurement) ZVZ(pos int, v *mat.Dense) float64        { return m.m.ZVZ(pos, v) }
func (m *NoisyMeasurement) VpZdZ(pos int, v *mat.Dense, d float64)   { m.m.VpZdZ(pos, v, d) }
func (m *NoisyMeasurement) XpZd(pos int, x *mat.VecDense, d float64) { m.m.XpZd(pos, x, d) }
func (m *NoisyMeasurement) HasErrors() bool                          { return true }
func (m *NoisyMeasurement) AreErrorsTimeInvariant() bool             { return false }

func (m *NoisyMeasurement) HasError(pos int) bool {
	return m.ErrorVariance(pos) > 0
}

func (m *NoisyMeasurement) ErrorVariance(pos int) float64 {
	return m.m.ErrorVariance(pos) + m.noise(pos)
}

// ShiftedMeasurement delegates every call to pos+shift.
type ShiftedMeasurement struct {
	m     Measurement
	shift int
}

// Shifted returns m seen from a time axis moved by shift.
func Shifted(m Measurement, shift int) Measurement {
	if shift == 0 {
		return m
	}
	return &ShiftedMeasurement{m: m, shift: shift}
}

func (m *ShiftedMeasurement) IsTimeInvariant() bool         { return m.m.IsTimeInvariant() }
func (m *ShiftedMeasurement) HasErrors() bool               { return m.m.HasErrors() }
func (m *ShiftedMeasurement) HasError(pos int) bool         { return m.m.HasError(pos + m.shift) }
func (m *ShiftedMeasurement) ErrorVariance(pos int) float64 { return m.m.ErrorVariance(pos + m.shift) }
func (m *ShiftedMeasurement) AreErrorsTimeInvariant() bool  { return m.m.AreErrorsTimeInvariant() }
func (m *ShiftedMeasurement) Z(pos int, z *mat.VecDense)    { m.m.Z(pos+m.shift, z) }

func (m *ShiftedMeasurement) ZX(pos int, x *mat.VecDense) float64 {
	return m.m.ZX(pos+m.shift, x)
}

func (m *ShiftedMeasurement) ZVZ(pos int, v *mat.Dense) float64 {
	return m.m.ZVZ(pos+m.shift, v)
}

func (m *ShiftedMeasurement) VpZdZ(pos int, v *mat.Dense, d float64) {
	m.m.VpZdZ(pos+m.shift, v, d)
}

func (m *ShiftedMeasurement) XpZd(pos int, x *mat.VecDense, d float64) {
	m.m.XpZd(pos+m.shift, x, d)
}
