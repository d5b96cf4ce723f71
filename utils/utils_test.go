package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestConcatVecs(t *testing.T) {
	v := ConcatVecs(mat.NewVecDense(2, []float64{1, 2}), mat.NewVecDense(1, []float64{3}))
	assert.Equal(t, []float64{1, 2, 3}, v.RawVector().Data)
}

func TestBlockDiag(t *testing.T) {
	m := BlockDiag(Eye(1), mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	want := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 2,
		0, 3, 4,
	})
	assert.True(t, mat.Equal(want, m))
}

func TestOffsets(t *testing.T) {
	assert.Equal(t, []int{0, 2, 2, 5}, Offsets([]int{2, 0, 3}))
	assert.Equal(t, []int{0}, Offsets(nil))
}

func TestWindows(t *testing.T) {
	m := mat.NewDense(3, 3, nil)
	assert.Nil(t, Window(m, 1, 1, 0, 3))
	assert.Nil(t, Range(mat.NewVecDense(3, nil), 2, 2))

	w := Square(m, 1, 3)
	w.Set(0, 0, 5)
	assert.Equal(t, 5.0, m.At(1, 1))
}

func TestRankOneUpdates(t *testing.T) {
	x := mat.NewVecDense(2, []float64{1, 2})
	y := mat.NewVecDense(2, []float64{3, 4})
	m := Eye(2)
	Ger(2, x, y, m)
	assert.Equal(t, []float64{7, 8, 12, 17}, m.RawMatrix().Data)

	Axpy(-1, x, y)
	assert.Equal(t, []float64{2, 2}, y.RawVector().Data)
}

func TestLCholesky(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{4, 2, 2, 5})
	l, ok := LCholesky(a, Eps)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 0, 1, 2}, l.RawMatrix().Data)

	// Singular matrices give an empty column.
	singular := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		1, 1, 0,
		0, 0, 2,
	})
	l, ok = LCholesky(singular, Eps)
	require.True(t, ok)
	var llt mat.Dense
	llt.Mul(l, l.T())
	assert.True(t, mat.EqualApprox(singular, &llt, 1e-12))
	assert.Zero(t, l.At(1, 1))

	_, ok = LCholesky(mat.NewDense(2, 2, []float64{1, 2, 2, 1}), Eps)
	assert.False(t, ok)
}

func TestPotrf(t *testing.T) {
	l, ok := Potrf(mat.NewDense(2, 2, []float64{4, 2, 2, 5}))
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{2, 0, 1, 2}, l.RawMatrix().Data, 1e-12)

	_, ok = Potrf(mat.NewDense(2, 2, []float64{1, 1, 1, 1}))
	assert.False(t, ok)
	_, ok = Potrf(mat.NewDense(2, 3, nil))
	assert.False(t, ok)
}

func TestIsCorrelation(t *testing.T) {
	assert.True(t, IsCorrelation(Eye(3), Eps))
	assert.True(t, IsCorrelation(mat.NewDense(2, 2, []float64{1, -0.3, -0.3, 1}), Eps))
	assert.False(t, IsCorrelation(mat.NewDense(2, 2, []float64{1, 0.3, 0.2, 1}), Eps))
	assert.False(t, IsCorrelation(mat.NewDense(2, 2, []float64{2, 0, 0, 1}), Eps))
	assert.False(t, IsCorrelation(mat.NewDense(2, 2, []float64{1, 1.5, 1.5, 1}), Eps))
}

func TestInPlaceProducts(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 1, 0, 1})
	x := mat.NewVecDense(2, []float64{1, 2})
	MulVecInPlace(a, x)
	assert.Equal(t, []float64{3, 2}, x.RawVector().Data)

	v := Eye(2)
	Sandwich(a, v)
	assert.Equal(t, []float64{2, 1, 1, 1}, v.RawMatrix().Data)

	m := Eye(2)
	MulInPlace(a, m)
	assert.True(t, mat.Equal(a, m))
}
