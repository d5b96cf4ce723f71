package ssf

import (
	"gonum.org/v1/gonum/mat"
)

// Dynamics describes the state transition
//
//	x(pos+1) = T(pos)·x(pos) + S(pos)·u(pos),  V(pos) = S(pos)·S(pos)ᵀ.
type Dynamics interface {
	StateDim() int

	// IsTimeInvariant reports whether T, V and S do not depend on pos.
	IsTimeInvariant() bool

	// InnovationsDim is the number of columns of S.
	InnovationsDim() int
	HasInnovations(pos int) bool

	// T overwrites tr with T(pos).
	T(pos int, tr *mat.Dense)

	// TX computes x ← T(pos)·x.
	TX(pos int, x *mat.VecDense)

	// XT computes x ← xᵀ·T(pos).
	XT(pos int, x *mat.VecDense)

	// TM computes m ← T(pos)·m.
	TM(pos int, m *mat.Dense)

	// TVT computes v ← T(pos)·v·T(pos)ᵀ.
	TVT(pos int, v *mat.Dense)

	// V overwrites q with the innovation covariance.
	V(pos int, q *mat.Dense)

	// S overwrites the n×InnovationsDim buffer s with a square root of V.
	S(pos int, s *mat.Dense)

	// AddSU computes x ← x + S(pos)·u.
	AddSU(pos int, x, u *mat.VecDense)

	// XS computes xs ← xᵀ·S(pos).
	XS(pos int, x, xs *mat.VecDense)

	// AddV computes p ← p + V(pos).
	AddV(pos int, p *mat.Dense)
}

// RightT computes m ← m·T(pos)ᵀ, row by row, using only TX.
func RightT(dyn Dynamics, pos int, m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		dyn.TX(pos, m.RowView(i).(*mat.VecDense))
	}
}

// ShiftedDynamics delegates every call to pos+shift.
type ShiftedDynamics struct {
	dyn   Dynamics
	shift int
}

var _ Dynamics = (*ShiftedDynamics)(nil)

// ShiftDynamics returns dyn seen from a time axis moved by shift.
func ShiftDynamics(dyn Dynamics, shift int) Dynamics {
	if shift == 0 {
		return dyn
	}
	return &ShiftedDynamics{dyn: dyn, shift: shift}
}

func (d *ShiftedDynamics) StateDim() int               { return d.dyn.StateDim() }
func (d *ShiftedDynamics) IsTimeInvariant() bool       { return d.dyn.IsTimeInvariant() }
func (d *ShiftedDynamics) InnovationsDim() int         { return d.dyn.InnovationsDim() }
func (d *ShiftedDynamics) HasInnovations(pos int) bool { return d.dyn.HasInnovations(pos + d.shift) }
func (d *ShiftedDynamics) T(pos int, tr *mat.Dense)    { d.dyn.T(pos+d.shift, tr) }
func (d *ShiftedDynamics) TX(pos int, x *mat.VecDense) { d.dyn.TX(pos+d.shift, x) }
func (d *ShiftedDynamics) XT(pos int, x *mat.VecDense) { d.dyn.XT(pos+d.shift, x) }
func (d *ShiftedDynamics) TM(pos int, m *mat.Dense)    { d.dyn.TM(pos+d.shift, m) }
func (d *ShiftedDynamics) TVT(pos int, v *mat.Dense)   { d.dyn.TVT(pos+d.shift, v) }
func (d *ShiftedDynamics) V(pos int, q *mat.Dense)     { d.dyn.V(pos+d.shift, q) }
func (d *ShiftedDynamics) S(pos int, s *mat.Dense)     { d.dyn.S(pos+d.shift, s) }
func (d *ShiftedDynamics) AddV(pos int, p *mat.Dense)  { d.dyn.AddV(pos+d.shift, p) }

func (d *ShiftedDynamics) AddSU(pos int, x, u *mat.VecDense) {
	d.dyn.AddSU(pos+d.shift, x, u)
}

func (d *ShiftedDynamics) XS(pos int, x, xs *mat.VecDense) {
	d.dyn.XS(pos+d.shift, x, xs)
}
