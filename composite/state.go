// Package composite stacks independent state-space models end to end. The
// state of a composite is the concatenation of the sub-states; block i
// occupies [cdim[i], cdim[i+1]) and every sub-operation works on a view of
// its own block.
package composite

import (
	"fmt"

	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

var (
	_ ssf.Initialization = (*Initialization)(nil)
	_ ssf.Dynamics       = (*Dynamics)(nil)
)

// Initialization is the block-diagonal stacking of sub-initializations.
type Initialization struct {
	inits []ssf.Initialization
	cdim  []int
	ddim  []int
}

// NewInitialization stacks inits in order.
func NewInitialization(inits ...ssf.Initialization) (*Initialization, error) {
	const op = "composite.NewInitialization"
	if len(inits) == 0 {
		return nil, ssf.Reject(op, fmt.Errorf("no initializations: %w", ssf.ErrInvalidArgument))
	}
	sizes := make([]int, len(inits))
	dsizes := make([]int, len(inits))
	for i, init := range inits {
		sizes[i] = init.StateDim()
		dsizes[i] = init.DiffuseDim()
	}
	return &Initialization{
		inits: inits,
		cdim:  utils.Offsets(sizes),
		ddim:  utils.Offsets(dsizes),
	}, nil
}

func (c *Initialization) StateDim() int   { return c.cdim[len(c.inits)] }
func (c *Initialization) DiffuseDim() int { return c.ddim[len(c.inits)] }
func (c *Initialization) IsDiffuse() bool { return c.DiffuseDim() > 0 }

func (c *Initialization) DiffuseConstraints(b *mat.Dense) {
	b.Zero()
	for i, init := range c.inits {
		w := utils.Window(b, c.cdim[i], c.cdim[i+1], c.ddim[i], c.ddim[i+1])
		if w != nil {
			init.DiffuseConstraints(w)
		}
	}
}

func (c *Initialization) A0(a *mat.VecDense) {
	for i, init := range c.inits {
		init.A0(utils.Range(a, c.cdim[i], c.cdim[i+1]))
	}
}

func (c *Initialization) Pf0(p *mat.Dense) {
	p.Zero()
	for i, init := range c.inits {
		init.Pf0(utils.Square(p, c.cdim[i], c.cdim[i+1]))
	}
}

func (c *Initialization) Pi0(p *mat.Dense) {
	p.Zero()
	for i, init := range c.inits {
		init.Pi0(utils.Square(p, c.cdim[i], c.cdim[i+1]))
	}
}

// Dynamics is the block-diagonal stacking of independent sub-dynamics.
type Dynamics struct {
	dyns []ssf.Dynamics
	cdim []int
	idim []int
}

// NewDynamics stacks dyns in order.
func NewDynamics(dyns ...ssf.Dynamics) (*Dynamics, error) {
	const op = "composite.NewDynamics"
	if len(dyns) == 0 {
		return nil, ssf.Reject(op, fmt.Errorf("no dynamics: %w", ssf.ErrInvalidArgument))
	}
	sizes := make([]int, len(dyns))
	isizes := make([]int, len(dyns))
	for i, dyn := range dyns {
		sizes[i] = dyn.StateDim()
		isizes[i] = dyn.InnovationsDim()
	}
	return &Dynamics{dyns: dyns, cdim: utils.Offsets(sizes), idim: utils.Offsets(isizes)}, nil
}

// Offsets returns the block boundaries cdim[0..k].
func (c *Dynamics) Offsets() []int { return c.cdim }

func (c *Dynamics) block(x *mat.VecDense, i int) *mat.VecDense {
	return utils.Range(x, c.cdim[i], c.cdim[i+1])
}

func (c *Dynamics) StateDim() int       { return c.cdim[len(c.dyns)] }
func (c *Dynamics) InnovationsDim() int { return c.idim[len(c.dyns)] }

func (c *Dynamics) IsTimeInvariant() bool {
	for _, dyn := range c.dyns {
		if !dyn.IsTimeInvariant() {
			return false
		}
	}
	return true
}

func (c *Dynamics) HasInnovations(pos int) bool {
	for _, dyn := range c.dyns {
		if dyn.HasInnovations(pos) {
			return true
		}
	}
	return false
}

func (c *Dynamics) T(pos int, tr *mat.Dense) {
	tr.Zero()
	for i, dyn := range c.dyns {
		dyn.T(pos, utils.Square(tr, c.cdim[i], c.cdim[i+1]))
	}
}

func (c *Dynamics) TX(pos int, x *mat.VecDense) {
	for i, dyn := range c.dyns {
		dyn.TX(pos, c.block(x, i))
	}
}

func (c *Dynamics) XT(pos int, x *mat.VecDense) {
	for i, dyn := range c.dyns {
		dyn.XT(pos, c.block(x, i))
	}
}

func (c *Dynamics) TM(pos int, m *mat.Dense) {
	_, cols := m.Dims()
	for i, dyn := range c.dyns {
		dyn.TM(pos, utils.Window(m, c.cdim[i], c.cdim[i+1], 0, cols))
	}
}

// TVT computes V[i,j] ← Ti·V[i,j]·Tjᵀ for every pair of blocks.
func (c *Dynamics) TVT(pos int, v *mat.Dense) {
	for i, di := range c.dyns {
		for j, dj := range c.dyns {
			w := utils.Window(v, c.cdim[i], c.cdim[i+1], c.cdim[j], c.cdim[j+1])
			if i == j {
				di.TVT(pos, w)
				continue
			}
			di.TM(pos, w)
			ssf.RightT(dj, pos, w)
		}
	}
}

func (c *Dynamics) V(pos int, q *mat.Dense) {
	q.Zero()
	for i, dyn := range c.dyns {
		dyn.V(pos, utils.Square(q, c.cdim[i], c.cdim[i+1]))
	}
}

func (c *Dynamics) S(pos int, s *mat.Dense) {
	s.Zero()
	for i, dyn := range c.dyns {
		if w := utils.Window(s, c.cdim[i], c.cdim[i+1], c.idim[i], c.idim[i+1]); w != nil {
			dyn.S(pos, w)
		}
	}
}

func (c *Dynamics) AddSU(pos int, x, u *mat.VecDense) {
	for i, dyn := range c.dyns {
		if ui := utils.Range(u, c.idim[i], c.idim[i+1]); ui != nil {
			dyn.AddSU(pos, c.block(x, i), ui)
		}
	}
}

func (c *Dynamics) XS(pos int, x, xs *mat.VecDense) {
	for i, dyn := range c.dyns {
		if out := utils.Range(xs, c.idim[i], c.idim[i+1]); out != nil {
			dyn.XS(pos, c.block(x, i), out)
		}
	}
}

func (c *Dynamics) AddV(pos int, p *mat.Dense) {
	for i, dyn := range c.dyns {
		dyn.AddV(pos, utils.Square(p, c.cdim[i], c.cdim[i+1]))
	}
}

// NewComponent stacks the state components cs.
func NewComponent(cs ...*ssf.StateComponent) (*ssf.StateComponent, error) {
	inits := make([]ssf.Initialization, len(cs))
	dyns := make([]ssf.Dynamics, len(cs))
	for i, c := range cs {
		inits[i] = c.Initialization
		dyns[i] = c.Dynamics
	}
	init, err := NewInitialization(inits...)
	if err != nil {
		return nil, err
	}
	dyn, err := NewDynamics(dyns...)
	if err != nil {
		return nil, err
	}
	return ssf.NewStateComponent(init, dyn)
}
