// Package ssftest checks model implementations against the dense matrices
// they stand for.
package ssftest

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/lucasmaystre/gossf/ssf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Tol is the tolerance of every comparison.
const Tol = 1e-8

// Rand draws standard normal fixtures from a seeded source.
type Rand struct {
	normal distuv.Normal
}

func NewRand(seed uint64) *Rand {
	return &Rand{normal: distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}}
}

func (r *Rand) Float64() float64 { return r.normal.Rand() }

func (r *Rand) Vec(n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, r.normal.Rand())
	}
	return v
}

func (r *Rand) Dense(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, r.normal.Rand())
		}
	}
	return m
}

// SPD returns A·Aᵀ + I for a random n×n A.
func (r *Rand) SPD(n int) *mat.Dense {
	a := r.Dense(n, n)
	var out mat.Dense
	out.Mul(a, a.T())
	for i := 0; i < n; i++ {
		out.Set(i, i, out.At(i, i)+1)
	}
	return &out
}

// Correlation returns a random positive definite correlation matrix.
func (r *Rand) Correlation(n int) *mat.Dense {
	s := r.SPD(n)
	c := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			c.Set(i, j, s.At(i, j)/math.Sqrt(s.At(i, i)*s.At(j, j)))
		}
	}
	return c
}

// LoadingOf materializes Z(pos) through XpZd on a zero vector.
func LoadingOf(l ssf.Loading, n, pos int) *mat.VecDense {
	z := mat.NewVecDense(n, nil)
	l.XpZd(pos, z, 1)
	return z
}

// TransitionOf materializes T(pos).
func TransitionOf(d ssf.Dynamics, pos int) *mat.Dense {
	n := d.StateDim()
	t := mat.NewDense(n, n, nil)
	d.T(pos, t)
	return t
}

// CheckMeasurement compares the operations of m at pos with Z(pos) for a
// state of dimension n.
func CheckMeasurement(t *testing.T, m ssf.Measurement, n, pos int, r *Rand) {
	t.Helper()
	z := LoadingOf(m, n, pos)
	zz := mat.NewVecDense(n, nil)
	m.Z(pos, zz)
	assert.True(t, mat.EqualApprox(z, zz, Tol), "Z")

	x := r.Vec(n)
	assert.InDelta(t, mat.Dot(z, x), m.ZX(pos, x), Tol, "ZX")

	v := r.Dense(n, n)
	assert.InDelta(t, mat.Inner(z, v, z), m.ZVZ(pos, v), Tol, "ZVZ")

	d := r.Float64()
	want := mat.DenseCopyOf(v)
	want.RankOne(want, d, z, z)
	m.VpZdZ(pos, v, d)
	assert.True(t, mat.EqualApprox(want, v, Tol), "VpZdZ")

	wantX := mat.VecDenseCopyOf(x)
	wantX.AddScaledVec(wantX, d, z)
	m.XpZd(pos, x, d)
	assert.True(t, mat.EqualApprox(wantX, x, Tol), "XpZd")

	if m.HasErrors() {
		assert.GreaterOrEqual(t, m.ErrorVariance(pos), 0.0)
	}
}

// CheckDynamics compares the operations of d at pos with T(pos) and V(pos).
func CheckDynamics(t *testing.T, d ssf.Dynamics, pos int, r *Rand) {
	t.Helper()
	n, q := d.StateDim(), d.InnovationsDim()
	tr := TransitionOf(d, pos)

	x := r.Vec(n)
	var want mat.VecDense
	want.MulVec(tr, x)
	got := mat.VecDenseCopyOf(x)
	d.TX(pos, got)
	assert.True(t, mat.EqualApprox(&want, got, Tol), "TX")

	want.MulVec(tr.T(), x)
	got = mat.VecDenseCopyOf(x)
	d.XT(pos, got)
	assert.True(t, mat.EqualApprox(&want, got, Tol), "XT")

	m := r.Dense(n, 3)
	var wantM mat.Dense
	wantM.Mul(tr, m)
	d.TM(pos, m)
	assert.True(t, mat.EqualApprox(&wantM, m, Tol), "TM")

	v := r.Dense(n, n)
	var tv, wantV mat.Dense
	tv.Mul(tr, v)
	wantV.Mul(&tv, tr.T())
	d.TVT(pos, v)
	assert.True(t, mat.EqualApprox(&wantV, v, Tol), "TVT")

	vv := mat.NewDense(n, n, nil)
	d.V(pos, vv)
	s := mat.NewDense(n, q, nil)
	d.S(pos, s)
	var ss mat.Dense
	ss.Mul(s, s.T())
	assert.True(t, mat.EqualApprox(vv, &ss, Tol), "S·Sᵀ = V")

	p := r.Dense(n, n)
	wantP := mat.DenseCopyOf(p)
	wantP.Add(wantP, vv)
	d.AddV(pos, p)
	assert.True(t, mat.EqualApprox(wantP, p, Tol), "AddV")

	u := r.Vec(q)
	x = r.Vec(n)
	want.MulVec(s, u)
	want.AddVec(&want, x)
	d.AddSU(pos, x, u)
	assert.True(t, mat.EqualApprox(&want, x, Tol), "AddSU")

	xs := mat.NewVecDense(q, nil)
	var wantXS mat.VecDense
	wantXS.MulVec(s.T(), x)
	d.XS(pos, x, xs)
	assert.True(t, mat.EqualApprox(&wantXS, xs, Tol), "XS")

	assert.Equal(t, mat.Norm(vv, 1) > 0, d.HasInnovations(pos), "HasInnovations")
}

// CheckMeasurements compares the pairwise operations of ms at pos with the
// rows Zi(pos) for a state of dimension n.
func CheckMeasurements(t *testing.T, ms ssf.Measurements, n, pos int, r *Rand) {
	t.Helper()
	k := ms.Count(pos)
	require.LessOrEqual(t, k, ms.MaxCount())
	zs := make([]*mat.VecDense, k)
	for i := range zs {
		zs[i] = LoadingOf(ssf.Variable(ms, i), n, pos)
		zz := mat.NewVecDense(n, nil)
		ms.Z(pos, i, zz)
		assert.True(t, mat.EqualApprox(zs[i], zz, Tol), "Z(%d)", i)
		x := r.Vec(n)
		assert.InDelta(t, mat.Dot(zs[i], x), ms.ZX(pos, i, x), Tol, "ZX(%d)", i)
	}
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			v := r.Dense(n, n)
			assert.InDelta(t, mat.Inner(zs[i], v, zs[j]), ms.ZVZ(pos, i, j, v), Tol, "ZVZ(%d, %d)", i, j)

			d := r.Float64()
			want := mat.DenseCopyOf(v)
			want.RankOne(want, d, zs[i], zs[j])
			ms.VpZdZ(pos, i, j, v, d)
			assert.True(t, mat.EqualApprox(want, v, Tol), "VpZdZ(%d, %d)", i, j)
		}
	}

	zm := mat.NewDense(k, n, nil)
	for i, z := range zs {
		zm.SetRow(i, z.RawVector().Data)
	}
	v := r.SPD(n)
	var zv, want mat.Dense
	zv.Mul(zm, v)
	want.Mul(&zv, zm.T())
	got := mat.NewDense(k, k, nil)
	ssf.ZVZMatrix(ms, pos, v, got)
	assert.True(t, mat.EqualApprox(&want, got, Tol), "ZVZMatrix")

	dd := r.SPD(k)
	var zd, wantV mat.Dense
	zd.Mul(zm.T(), dd)
	wantV.Mul(&zd, zm)
	wantV.Add(&wantV, v)
	ssf.AddZDZ(ms, pos, v, dd)
	assert.True(t, mat.EqualApprox(&wantV, v, Tol), "AddZDZ")

	h := mat.NewDense(k, k, nil)
	ms.H(pos, h)
	rr := mat.NewDense(k, k, nil)
	ms.R(pos, rr)
	var rrt mat.Dense
	rrt.Mul(rr, rr.T())
	assert.True(t, mat.EqualApprox(h, &rrt, Tol), "R·Rᵀ = H")
}

// CheckInitialization checks Pi0 = B·Bᵀ and the buffer sizes of init.
func CheckInitialization(t *testing.T, init ssf.Initialization) {
	t.Helper()
	n, d := init.StateDim(), init.DiffuseDim()
	assert.Equal(t, d > 0, init.IsDiffuse())
	pi := mat.NewDense(n, n, nil)
	init.Pi0(pi)
	if d > 0 {
		b := mat.NewDense(n, d, nil)
		init.DiffuseConstraints(b)
		var bb mat.Dense
		bb.Mul(b, b.T())
		assert.True(t, mat.EqualApprox(&bb, pi, Tol), "Pi0 = B·Bᵀ")
	} else {
		assert.Zero(t, mat.Norm(pi, 1))
	}
	pf := mat.NewDense(n, n, nil)
	init.Pf0(pf)
	assert.True(t, mat.EqualApprox(pf, pf.T(), Tol), "Pf0 symmetric")
	a := mat.NewVecDense(n, nil)
	init.A0(a)
}
