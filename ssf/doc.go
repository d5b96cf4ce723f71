// Package ssf defines the contracts of a linear Gaussian state-space form and
// the leaf implementations models are assembled from.
//
// A model is the triple (Initialization, Dynamics, Measurement):
//
//	x(0)   ~ N(a0, Pf0 + κ·B·Bᵀ),  κ → ∞
//	x(t+1) = T(t)·x(t) + S(t)·u(t), u(t) ~ N(0, I)
//	y(t)   = Z(t)·x(t) + e(t),      e(t) ~ N(0, h(t))
//
// # Buffers and windows
//
// Every operation works on caller-owned gonum buffers (*mat.VecDense and
// *mat.Dense, covariances held as full squares). Composite operators hand their
// parts views obtained with utils.Window and utils.Range, so a part only ever
// sees the sub-range of the state it owns. Operations that produce a matrix
// (T, V, S, Pf0, ...) overwrite the whole buffer they are given; apply-style
// operations (TX, TVT, VpZdZ, ...) update it in place. No reference to a
// buffer is kept after a call returns.
//
// Apply-style operations never materialize T or Z, but they must be
// observably equal to the explicit products:
//
//	TX(x)       x ← T·x
//	TVT(V)      V ← T·V·Tᵀ
//	ZVZ(V)      returns Z·V·Zᵀ
//	VpZdZ(V, d) V ← V + d·Zᵀ·Z
//
// # Construction failures
//
// Constructors validate their input and return an error wrapping one of the
// package sentinels (ErrDimensionMismatch, ErrNotPositiveDefinite, ...).
// Model search loops are expected to treat such errors as "try another model".
// Undersized buffers and out-of-range indices are programming errors and panic.
//
// # Concurrency
//
// All types in this package are immutable once built and may be shared by
// concurrent filter runs.
package ssf
