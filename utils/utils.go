package utils

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
)

// Eps is the default tolerance used for pivots and correlation checks.
const Eps = 1e-9

// Concatenate multiple vectors.
func ConcatVecs(vecs ...mat.Vector) *mat.VecDense {
	size := 0
	for _, vec := range vecs {
		size += vec.Len()
	}
	out := mat.NewVecDense(size, nil)
	offset := 0
	for _, vec := range vecs {
		n := vec.Len()
		if n == 0 {
			continue
		}
		Range(out, offset, offset+n).CopyVec(vec)
		offset += n
	}
	return out
}

// Make a block diagonal matrix.
func BlockDiag(mats ...mat.Matrix) *mat.Dense {
	rows, cols := 0, 0
	for _, matrix := range mats {
		r, c := matrix.Dims()
		rows += r
		cols += c
	}
	out := mat.NewDense(rows, cols, nil)
	r0, c0 := 0, 0
	for _, matrix := range mats {
		r, c := matrix.Dims()
		if w := Window(out, r0, r0+r, c0, c0+c); w != nil {
			w.Copy(matrix)
		}
		r0 += r
		c0 += c
	}
	return out
}

// Identity Matrix.
func Eye(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// Offsets returns the cumulative boundaries [0, n0, n0+n1, ...] of a sequence
// of block sizes.
func Offsets(sizes []int) []int {
	out := make([]int, len(sizes)+1)
	for i, n := range sizes {
		out[i+1] = out[i] + n
	}
	return out
}

// Window returns the view m[r0:r1, c0:c1], or nil when it is empty. The view
// shares its storage with m.
func Window(m *mat.Dense, r0, r1, c0, c1 int) *mat.Dense {
	if r1 <= r0 || c1 <= c0 {
		return nil
	}
	return m.Slice(r0, r1, c0, c1).(*mat.Dense)
}

// Square returns the diagonal window m[i0:i1, i0:i1], or nil when empty.
func Square(m *mat.Dense, i0, i1 int) *mat.Dense {
	return Window(m, i0, i1, i0, i1)
}

// Range returns the view x[start:end], or nil when it is empty.
func Range(x *mat.VecDense, start, end int) *mat.VecDense {
	if end <= start {
		return nil
	}
	return x.SliceVec(start, end).(*mat.VecDense)
}

// Col returns column j of m as a vector view.
func Col(m *mat.Dense, j int) *mat.VecDense {
	return m.ColView(j).(*mat.VecDense)
}

// Row returns row i of m as a vector view.
func Row(m *mat.Dense, i int) *mat.VecDense {
	return m.RowView(i).(*mat.VecDense)
}

// Ger performs the rank-one update m += alpha * x * yᵀ in place.
func Ger(alpha float64, x, y *mat.VecDense, m *mat.Dense) {
	if alpha == 0 {
		return
	}
	blas64.Ger(alpha, x.RawVector(), y.RawVector(), m.RawMatrix())
}

// Axpy performs y += alpha * x in place.
func Axpy(alpha float64, x, y *mat.VecDense) {
	if alpha == 0 {
		return
	}
	blas64.Axpy(alpha, x.RawVector(), y.RawVector())
}

// LCholesky computes a lower triangular L such that L * Lᵀ = a for a
// symmetric positive semi-definite a. Pivots smaller than eps (relative to the
// largest diagonal element) are treated as zero and their column is left
// empty, so singular covariances are accepted. The second result is false
// when a has a clearly negative pivot.
func LCholesky(a mat.Matrix, eps float64) (*mat.Dense, bool) {
	n, c := a.Dims()
	if n != c {
		return nil, false
	}
	scale := 0.0
	for i := 0; i < n; i++ {
		scale = math.Max(scale, math.Abs(a.At(i, i)))
	}
	tol := eps * math.Max(scale, 1)
	l := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		d := a.At(j, j)
		for k := 0; k < j; k++ {
			d -= l.At(j, k) * l.At(j, k)
		}
		if d < -tol {
			return nil, false
		}
		if d <= tol {
			continue
		}
		ljj := math.Sqrt(d)
		l.Set(j, j, ljj)
		for i := j + 1; i < n; i++ {
			s := a.At(i, j)
			for k := 0; k < j; k++ {
				s -= l.At(i, k) * l.At(j, k)
			}
			l.Set(i, j, s/ljj)
		}
	}
	return l, true
}

// Potrf computes the strict lower Cholesky factor of a symmetric positive
// definite a. The second result is false when a is not positive definite.
func Potrf(a mat.Matrix) (*mat.Dense, bool) {
	n, c := a.Dims()
	if n != c || n == 0 {
		return nil, false
	}
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			data[i*n+j] = a.At(i, j)
		}
	}
	sym := blas64.Symmetric{
		N:      n,
		Stride: n,
		Data:   data,
		Uplo:   blas.Lower,
	}
	if _, ok := lapack64.Potrf(sym); !ok {
		return nil, false
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			data[i*n+j] = 0
		}
	}
	return mat.NewDense(n, n, data), true
}

// IsSymmetric reports whether a is square and symmetric within eps.
func IsSymmetric(a mat.Matrix, eps float64) bool {
	n, c := a.Dims()
	if n != c {
		return false
	}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			if !scalar.EqualWithinAbsOrRel(a.At(i, j), a.At(j, i), eps, eps) {
				return false
			}
		}
	}
	return true
}

// IsCorrelation reports whether c is a symmetric matrix with a unit diagonal
// and off-diagonal elements in [-1, 1]. Positive definiteness is checked
// separately with Potrf.
func IsCorrelation(c mat.Matrix, eps float64) bool {
	if !IsSymmetric(c, eps) {
		return false
	}
	n, _ := c.Dims()
	for i := 0; i < n; i++ {
		if !scalar.EqualWithinAbs(c.At(i, i), 1, eps) {
			return false
		}
		for j := 0; j < i; j++ {
			if math.Abs(c.At(i, j)) > 1+eps {
				return false
			}
		}
	}
	return true
}

// MulVecInPlace computes x ← a·x for a square a.
func MulVecInPlace(a mat.Matrix, x *mat.VecDense) {
	var tmp mat.VecDense
	tmp.MulVec(a, x)
	x.CopyVec(&tmp)
}

// MulInPlace computes m ← a·m for a square a.
func MulInPlace(a mat.Matrix, m *mat.Dense) {
	var tmp mat.Dense
	tmp.Mul(a, m)
	m.Copy(&tmp)
}

// Sandwich computes v ← a·v·aᵀ for a square a.
func Sandwich(a mat.Matrix, v *mat.Dense) {
	var tmp, out mat.Dense
	tmp.Mul(a, v)
	out.Mul(&tmp, a.T())
	v.Copy(&out)
}
