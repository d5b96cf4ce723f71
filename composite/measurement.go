package composite

import (
	"fmt"

	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

var (
	_ ssf.Measurement  = (*SumMeasurement)(nil)
	_ ssf.Measurement  = (*WeightedMeasurement)(nil)
	_ ssf.Measurements = (*Measurements)(nil)
)

// blocks is the loading Z = [w1·Z1 … wk·Zk] over consecutive state blocks.
// A nil weight function stands for 1.
type blocks struct {
	ls      []ssf.Loading
	cdim    []int
	weights []ssf.WeightFunc
}

func (b *blocks) weight(pos, i int) float64 {
	if b.weights == nil || b.weights[i] == nil {
		return 1
	}
	return b.weights[i](pos)
}

func (b *blocks) window(v *mat.Dense, i, j int) *mat.Dense {
	return utils.Window(v, b.cdim[i], b.cdim[i+1], b.cdim[j], b.cdim[j+1])
}

func (b *blocks) isTimeInvariant() bool {
	if b.weights != nil {
		return false
	}
	for _, l := range b.ls {
		if !l.IsTimeInvariant() {
			return false
		}
	}
	return true
}

func (b *blocks) z(pos int, z *mat.VecDense) {
	for i, l := range b.ls {
		zi := utils.Range(z, b.cdim[i], b.cdim[i+1])
		l.Z(pos, zi)
		if w := b.weight(pos, i); w != 1 {
			zi.ScaleVec(w, zi)
		}
	}
}

func (b *blocks) zx(pos int, x *mat.VecDense) float64 {
	s := 0.0
	for i, l := range b.ls {
		if w := b.weight(pos, i); w != 0 {
			s += w * l.ZX(pos, utils.Range(x, b.cdim[i], b.cdim[i+1]))
		}
	}
	return s
}

// zvz returns Σi Σj wi·wj·Zi·V[i,j]·Zjᵀ.
func (b *blocks) zvz(pos int, v *mat.Dense) float64 {
	ws := b.weightsAt(pos)
	s := 0.0
	for i, li := range b.ls {
		if ws[i] == 0 {
			continue
		}
		for j, lj := range b.ls {
			if ws[j] == 0 {
				continue
			}
			if i == j {
				s += ws[i] * ws[i] * li.ZVZ(pos, b.window(v, i, i))
			} else {
				s += ws[i] * ws[j] * ssf.CrossZVZ(pos, li, lj, b.window(v, i, j))
			}
		}
	}
	return s
}

// vpzdz applies V[i,j] += d·wi·wj·Ziᵀ·Zj on every pair of blocks.
func (b *blocks) vpzdz(pos int, v *mat.Dense, d float64) {
	if d == 0 {
		return
	}
	ws := b.weightsAt(pos)
	for i, li := range b.ls {
		if ws[i] == 0 {
			continue
		}
		for j, lj := range b.ls {
			if ws[j] == 0 {
				continue
			}
			if i == j {
				li.VpZdZ(pos, b.window(v, i, i), d*ws[i]*ws[i])
			} else {
				ssf.CrossVpZdZ(pos, li, lj, b.window(v, i, j), d*ws[i]*ws[j])
			}
		}
	}
}

func (b *blocks) xpzd(pos int, x *mat.VecDense, d float64) {
	for i, l := range b.ls {
		l.XpZd(pos, utils.Range(x, b.cdim[i], b.cdim[i+1]), d*b.weight(pos, i))
	}
}

func (b *blocks) weightsAt(pos int) []float64 {
	ws := make([]float64, len(b.ls))
	for i := range ws {
		ws[i] = b.weight(pos, i)
	}
	return ws
}

// SumMeasurement observes the sum of the observations of its components:
// Z = [Z1 … Zk], h = Σ hi.
type SumMeasurement struct {
	b  blocks
	ms []ssf.Measurement
}

// NewSumMeasurement adds up ms, where ms[i] loads on a block of dimension
// dims[i].
func NewSumMeasurement(dims []int, ms []ssf.Measurement) (*SumMeasurement, error) {
	const op = "composite.NewSumMeasurement"
	if err := checkBlocks(op, dims, len(ms)); err != nil {
		return nil, err
	}
	ls := make([]ssf.Loading, len(ms))
	for i, m := range ms {
		ls[i] = m
	}
	return &SumMeasurement{b: blocks{ls: ls, cdim: utils.Offsets(dims)}, ms: ms}, nil
}

func (m *SumMeasurement) IsTimeInvariant() bool                    { return m.b.isTimeInvariant() }
func (m *SumMeasurement) Z(pos int, z *mat.VecDense)               { m.b.z(pos, z) }
func (m *SumMeasurement) ZX(pos int, x *mat.VecDense) float64      { return m.b.zx(pos, x) }
func (m *SumMeasurement) ZVZ(pos int, v *mat.Dense) float64        { return m.b.zvz(pos, v) }
func (m *SumMeasurement) VpZdZ(pos int, v *mat.Dense, d float64)   { m.b.vpzdz(pos, v, d) }
func (m *SumMeasurement) XpZd(pos int, x *mat.VecDense, d float64) { m.b.xpzd(pos, x, d) }

func (m *SumMeasurement) HasErrors() bool {
	for _, c := range m.ms {
		if c.HasErrors() {
			return true
		}
	}
	return false
}

func (m *SumMeasurement) HasError(pos int) bool {
	return m.ErrorVariance(pos) > 0
}

func (m *SumMeasurement) ErrorVariance(pos int) float64 {
	h := 0.0
	for _, c := range m.ms {
		h += c.ErrorVariance(pos)
	}
	return h
}

func (m *SumMeasurement) AreErrorsTimeInvariant() bool {
	for _, c := range m.ms {
		if !c.AreErrorsTimeInvariant() {
			return false
		}
	}
	return true
}

// WeightedMeasurement observes Σ wi(pos)·Zi(pos)·xi plus an error of
// variance variance(pos).
type WeightedMeasurement struct {
	b        blocks
	variance ssf.WeightFunc
}

// NewWeightedMeasurement combines the error-free measurements ms with the
// time-varying weights. ms[i] loads on a block of dimension dims[i]. A nil
// variance means no observation error.
func NewWeightedMeasurement(dims []int, weights []ssf.WeightFunc, ms []ssf.Measurement, variance ssf.WeightFunc) (*WeightedMeasurement, error) {
	const op = "composite.NewWeightedMeasurement"
	if err := checkBlocks(op, dims, len(ms)); err != nil {
		return nil, err
	}
	if len(weights) != len(ms) {
		return nil, ssf.Reject(op, fmt.Errorf("%d weights for %d measurements: %w", len(weights), len(ms), ssf.ErrDimensionMismatch))
	}
	ls := make([]ssf.Loading, len(ms))
	for i, m := range ms {
		if m.HasErrors() {
			return nil, ssf.Reject(op, fmt.Errorf("measurement %d: %w", i, ssf.ErrMeasurementErrors))
		}
		if weights[i] == nil {
			return nil, ssf.Reject(op, fmt.Errorf("weight %d is nil: %w", i, ssf.ErrInvalidArgument))
		}
		ls[i] = m
	}
	return &WeightedMeasurement{
		b:        blocks{ls: ls, cdim: utils.Offsets(dims), weights: weights},
		variance: variance,
	}, nil
}

func (m *WeightedMeasurement) IsTimeInvariant() bool                    { return false }
func (m *WeightedMeasurement) Z(pos int, z *mat.VecDense)               { m.b.z(pos, z) }
func (m *WeightedMeasurement) ZX(pos int, x *mat.VecDense) float64      { return m.b.zx(pos, x) }
func (m *WeightedMeasurement) ZVZ(pos int, v *mat.Dense) float64        { return m.b.zvz(pos, v) }
func (m *WeightedMeasurement) VpZdZ(pos int, v *mat.Dense, d float64)   { m.b.vpzdz(pos, v, d) }
func (m *WeightedMeasurement) XpZd(pos int, x *mat.VecDense, d float64) { m.b.xpzd(pos, x, d) }
func (m *WeightedMeasurement) HasErrors() bool                          { return m.variance != nil }
func (m *WeightedMeasurement) AreErrorsTimeInvariant() bool             { return m.variance == nil }
func (m *WeightedMeasurement) HasError(pos int) bool                    { return m.ErrorVariance(pos) > 0 }

func (m *WeightedMeasurement) ErrorVariance(pos int) float64 {
	if m.variance == nil {
		return 0
	}
	return m.variance(pos)
}

// Measurements observes several variables of a block-structured state.
// Variable v loads on block blocks[v] only.
type Measurements struct {
	ms     []ssf.Measurement
	blocks []int
	cdim   []int
	errs   ssf.Errors
}

// NewMeasurements builds the measurements of a composite state with block
// dimensions dims. Variable v is ms[v] applied to block blocks[v]. A nil
// corr gives independent errors; otherwise the errors are correlated as in
// ssf.CorrelatedErrors.
func NewMeasurements(dims []int, blocks []int, ms []ssf.Measurement, corr *mat.Dense) (*Measurements, error) {
	const op = "composite.NewMeasurements"
	if err := checkBlocks(op, dims, len(dims)); err != nil {
		return nil, err
	}
	if len(ms) == 0 || len(blocks) != len(ms) {
		return nil, ssf.Reject(op, fmt.Errorf("%d blocks for %d measurements: %w", len(blocks), len(ms), ssf.ErrDimensionMismatch))
	}
	for v, b := range blocks {
		if b < 0 || b >= len(dims) {
			return nil, ssf.Reject(op, fmt.Errorf("variable %d on block %d of %d: %w", v, b, len(dims), ssf.ErrInvalidArgument))
		}
	}
	errs := ssf.IndependentErrors(ms)
	if corr != nil {
		var err error
		if errs, err = ssf.CorrelatedErrors(ms, corr); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &Measurements{ms: ms, blocks: blocks, cdim: utils.Offsets(dims), errs: errs}, nil
}

func (c *Measurements) block(x *mat.VecDense, i int) *mat.VecDense {
	b := c.blocks[i]
	return utils.Range(x, c.cdim[b], c.cdim[b+1])
}

func (c *Measurements) window(v *mat.Dense, i, j int) *mat.Dense {
	bi, bj := c.blocks[i], c.blocks[j]
	return utils.Window(v, c.cdim[bi], c.cdim[bi+1], c.cdim[bj], c.cdim[bj+1])
}

func (c *Measurements) MaxCount() int     { return len(c.ms) }
func (c *Measurements) Count(pos int) int { return len(c.ms) }

func (c *Measurements) IsTimeInvariant() bool {
	for _, m := range c.ms {
		if !m.IsTimeInvariant() {
			return false
		}
	}
	return c.errs.IsTimeInvariant()
}

func (c *Measurements) Z(pos, i int, z *mat.VecDense) {
	z.Zero()
	c.ms[i].Z(pos, c.block(z, i))
}

func (c *Measurements) ZX(pos, i int, x *mat.VecDense) float64 {
	return c.ms[i].ZX(pos, c.block(x, i))
}

func (c *Measurements) ZVZ(pos, i, j int, v *mat.Dense) float64 {
	if i == j {
		return c.ms[i].ZVZ(pos, c.window(v, i, i))
	}
	return ssf.CrossZVZ(pos, c.ms[i], c.ms[j], c.window(v, i, j))
}

// VpZdZ applies v += d·Ziᵀ·Zj on the window of blocks (bi, bj) only; the
// transposed update is the caller's (see ssf.AddZDZ).
func (c *Measurements) VpZdZ(pos, i, j int, v *mat.Dense, d float64) {
	if i == j {
		c.ms[i].VpZdZ(pos, c.window(v, i, i), d)
		return
	}
	ssf.CrossVpZdZ(pos, c.ms[i], c.ms[j], c.window(v, i, j), d)
}

func (c *Measurements) XpZd(pos, i int, x *mat.VecDense, d float64) {
	c.ms[i].XpZd(pos, c.block(x, i), d)
}

func (c *Measurements) HasErrors() bool         { return c.errs.HasErrors() }
func (c *Measurements) HasError(pos int) bool   { return c.errs.HasError(pos) }
func (c *Measurements) H(pos int, h *mat.Dense) { c.errs.H(pos, h) }
func (c *Measurements) R(pos int, r *mat.Dense) { c.errs.R(pos, r) }

func checkBlocks(op string, dims []int, n int) error {
	if len(dims) == 0 || len(dims) != n {
		return ssf.Reject(op, fmt.Errorf("%d block dimensions for %d components: %w", len(dims), n, ssf.ErrDimensionMismatch))
	}
	for i, d := range dims {
		if d <= 0 {
			return ssf.Reject(op, fmt.Errorf("block %d has dimension %d: %w", i, d, ssf.ErrInvalidArgument))
		}
	}
	return nil
}
