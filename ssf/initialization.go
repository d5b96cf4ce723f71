package ssf

import (
	"fmt"

	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

// Initialization describes the distribution of the initial state. The diffuse
// part is given by an n×d full-rank matrix B of constraints (Π0 = B·Bᵀ).
type Initialization interface {
	StateDim() int
	IsDiffuse() bool
	DiffuseDim() int

	// DiffuseConstraints overwrites the n×d buffer b with B.
	DiffuseConstraints(b *mat.Dense)

	// A0 overwrites a with the initial mean.
	A0(a *mat.VecDense)

	// Pf0 overwrites p with the finite part of the initial covariance.
	Pf0(p *mat.Dense)

	// Pi0 overwrites p with the diffuse part of the initial covariance.
	Pi0(p *mat.Dense)
}

var (
	_ Initialization = (*Diffuse)(nil)
	_ Initialization = (*Prior)(nil)
)

// Diffuse is a fully diffuse initialization: no prior information on any
// state component.
type Diffuse struct {
	n int
}

// NewDiffuseInitialization returns a fully diffuse initialization of
// dimension n (B = I, Pf0 = 0, a0 = 0).
func NewDiffuseInitialization(n int) *Diffuse {
	if n <= 0 {
		panic(fmt.Sprintf("ssf: invalid state dimension %d", n))
	}
	return &Diffuse{n: n}
}

func (d *Diffuse) StateDim() int   { return d.n }
func (d *Diffuse) IsDiffuse() bool { return true }
func (d *Diffuse) DiffuseDim() int { return d.n }

func (d *Diffuse) DiffuseConstraints(b *mat.Dense) {
	setIdentity(b)
}

func (d *Diffuse) A0(a *mat.VecDense) {
	a.Zero()
}

func (d *Diffuse) Pf0(p *mat.Dense) {
	p.Zero()
}

func (d *Diffuse) Pi0(p *mat.Dense) {
	setIdentity(p)
}

// Prior is an explicit initialization with a finite covariance and an
// optional diffuse part.
type Prior struct {
	a0  *mat.VecDense
	pf0 *mat.Dense
	b   *mat.Dense
}

// NewInitialization builds an initialization of dimension n. A nil a0 or pf0
// stands for zeros; a nil b means no diffuse part.
func NewInitialization(n int, a0 []float64, pf0, b *mat.Dense) (*Prior, error) {
	const op = "ssf.NewInitialization"
	if n <= 0 {
		return nil, Reject(op, fmt.Errorf("state dimension %d: %w", n, ErrInvalidArgument))
	}
	p := &Prior{
		a0:  mat.NewVecDense(n, nil),
		pf0: mat.NewDense(n, n, nil),
	}
	if a0 != nil {
		if len(a0) != n {
			return nil, Reject(op, fmt.Errorf("a0 has %d elements, want %d: %w", len(a0), n, ErrDimensionMismatch))
		}
		p.a0.CopyVec(mat.NewVecDense(n, a0))
	}
	if pf0 != nil {
		if r, c := pf0.Dims(); r != n || c != n {
			return nil, Reject(op, fmt.Errorf("Pf0 is %d×%d, want %d×%d: %w", r, c, n, n, ErrDimensionMismatch))
		}
		if !utils.IsSymmetric(pf0, utils.Eps) {
			return nil, Reject(op, fmt.Errorf("Pf0 is not symmetric: %w", ErrInvalidArgument))
		}
		p.pf0.Copy(pf0)
	}
	if b != nil {
		r, d := b.Dims()
		if r != n || d > n {
			return nil, Reject(op, fmt.Errorf("B is %d×%d for state dimension %d: %w", r, d, n, ErrDimensionMismatch))
		}
		p.b = mat.DenseCopyOf(b)
	}
	return p, nil
}

func (p *Prior) StateDim() int   { return p.a0.Len() }
func (p *Prior) IsDiffuse() bool { return p.b != nil }

func (p *Prior) DiffuseDim() int {
	if p.b == nil {
		return 0
	}
	_, d := p.b.Dims()
	return d
}

func (p *Prior) DiffuseConstraints(b *mat.Dense) {
	if p.b != nil {
		b.Copy(p.b)
	}
}

func (p *Prior) A0(a *mat.VecDense) {
	a.CopyVec(p.a0)
}

func (p *Prior) Pf0(pf *mat.Dense) {
	pf.Copy(p.pf0)
}

func (p *Prior) Pi0(pi *mat.Dense) {
	if p.b == nil {
		pi.Zero()
		return
	}
	pi.Mul(p.b, p.b.T())
}

func setIdentity(m *mat.Dense) {
	m.Zero()
	r, c := m.Dims()
	for i := 0; i < r && i < c; i++ {
		m.Set(i, i, 1)
	}
}
