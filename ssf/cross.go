package ssf

import (
	"github.com/lucasmaystre/gossf/utils"
	"gonum.org/v1/gonum/mat"
)

// CrossZVZ returns Zi(pos)·v·Zj(pos)ᵀ, where v is the (possibly off-diagonal)
// window linking the state seen by li (rows) to the state seen by lj
// (columns).
func CrossZVZ(pos int, li, lj Loading, v *mat.Dense) float64 {
	_, c := v.Dims()
	w := mat.NewVecDense(c, nil)
	for k := 0; k < c; k++ {
		w.SetVec(k, li.ZX(pos, utils.Col(v, k)))
	}
	return lj.ZX(pos, w)
}

// CrossVpZdZ computes v ← v + d·Zi(pos)ᵀ·Zj(pos) on the window v linking the
// state seen by li (rows) to the state seen by lj (columns). The update is
// not symmetric; callers wanting V + d·(ZiᵀZj + ZjᵀZi) apply it for both
// orders.
func CrossVpZdZ(pos int, li, lj Loading, v *mat.Dense, d float64) {
	if d == 0 {
		return
	}
	_, c := v.Dims()
	zj := mat.NewVecDense(c, nil)
	lj.Z(pos, zj)
	for k := 0; k < c; k++ {
		if z := zj.AtVec(k); z != 0 {
			li.XpZd(pos, utils.Col(v, k), d*z)
		}
	}
}
