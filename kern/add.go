package kern

import (
	"github.com/lucasmaystre/gossf/composite"
	"github.com/lucasmaystre/gossf/ssf"
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

var _ Kernel = (*Add)(nil)

// Add is the sum of independent kernels. Its state is the concatenation of
// the states of its parts.
type Add struct {
	parts []Kernel
	order int
}

func NewAdd(first, second Kernel) *Add {
	parts := make([]Kernel, 0, 2)
	for _, k := range []Kernel{first, second} {
		switch k := k.(type) {
		case *Add:
			parts = append(parts, k.parts...)
		default:
			parts = append(parts, k)
		}
	}
	order := 0
	for _, part := range parts {
		order += part.Order()
	}
	return &Add{
		parts: parts,
		order: order,
	}
}

func (k *Add) Order() int {
	return k.order
}

func (k *Add) StateMean(t float64) blas64.Vector {
	vecs := make([]mat.Vector, len(k.parts))
	for i, part := range k.parts {
		v := part.StateMean(t)
		vecs[i] = mat.NewVecDense(part.Order(), v.Data)
	}
	return utils.ConcatVecs(vecs...).RawVector()
}

func (k *Add) StateCov(t float64) blas64.Symmetric {
	mats := make([]mat.Matrix, len(k.parts))
	for i, part := range k.parts {
		mats[i] = symDense(part.StateCov(t))
	}
	return asSym(utils.BlockDiag(mats...))
}

func (k *Add) MeasurementVec() blas64.Vector {
	vecs := make([]mat.Vector, len(k.parts))
	for i, part := range k.parts {
		vecs[i] = mat.NewVecDense(part.Order(), part.MeasurementVec().Data)
	}
	return utils.ConcatVecs(vecs...).RawVector()
}

func (k *Add) Transition(delta float64) blas64.General {
	mats := make([]mat.Matrix, len(k.parts))
	for i, part := range k.parts {
		mats[i] = genDense(part.Transition(delta))
	}
	return utils.BlockDiag(mats...).RawMatrix()
}

func (k *Add) NoiseCov(delta float64) blas64.Symmetric {
	mats := make([]mat.Matrix, len(k.parts))
	for i, part := range k.parts {
		mats[i] = symDense(part.NoiseCov(delta))
	}
	return asSym(utils.BlockDiag(mats...))
}

// component stacks the components of the parts instead of materializing the
// block-diagonal matrices.
func (k *Add) component(times []float64) (*ssf.StateComponent, error) {
	cs := make([]*ssf.StateComponent, len(k.parts))
	for i, part := range k.parts {
		c, err := Component(part, times)
		if err != nil {
			return nil, err
		}
		cs[i] = c
	}
	return composite.NewComponent(cs...)
}

func asSym(m *mat.Dense) blas64.Symmetric {
	raw := m.RawMatrix()
	return blas64.Symmetric{
		N:      raw.Rows,
		Stride: raw.Stride,
		Data:   raw.Data,
		Uplo:   blas.Upper,
	}
}
