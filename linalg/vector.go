// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linalg provides the dense/sparse vector and matrix primitives
// shared by every ingredient: norms, axpy-style updates, and the COO/CSC
// symmetric and rectangular matrix triplets described by the Iterate and
// SymmetricMatrix data model.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NormKind selects the vector norm used for residual and scaling
// comparisons (spec §6.2's residual_norm option).
type NormKind int

const (
	L1 NormKind = iota
	L2
	Inf
)

// Norm computes the ℓ1, ℓ2 or ℓ∞ norm of x according to kind.
func Norm(x []float64, kind NormKind) float64 {
	switch kind {
	case L1:
		return floats.Norm(x, 1)
	case L2:
		return floats.Norm(x, 2)
	default:
		return floats.Norm(x, math.Inf(1))
	}
}

// Dot returns the inner product 𝐱ᵀ𝐲.
func Dot(x, y []float64) float64 {
	return floats.Dot(x, y)
}

// AxpyTo performs 𝐲 ← 𝐲 + 𝛂𝐱 in place.
func AxpyTo(alpha float64, x []float64, y []float64) {
	floats.AddScaled(y, alpha, x)
}

// Zero fills x with zero.
func Zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// Clamp projects a scalar onto [lo, hi]; NaN bounds mean "no bound" and
// are treated as -∞/+∞ respectively. Used by the bound-projection step
// shared by every mechanism (§4.H "assemble_trial_iterate").
func Clamp(v, lo, hi float64) float64 {
	if !math.IsNaN(lo) && v < lo {
		return lo
	}
	if !math.IsNaN(hi) && v > hi {
		return hi
	}
	return v
}

// ForEach visits every (index, value) pair of a sparse vector stored as
// parallel index/value slices, in storage order. Implementations must not
// assume the indices are sorted; ForEach does not sort them.
func ForEach(idx []int, val []float64, f func(i int, v float64)) {
	for k, i := range idx {
		f(i, val[k])
	}
}

// InfNorm returns ‖x‖∞, the largest absolute component of x. It is kept
// distinct from Norm(x, Inf) because it is used on the hot path of
// fraction-to-boundary and trust-region box checks where an extra
// indirection through NormKind would be wasted.
func InfNorm(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}
