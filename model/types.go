// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model holds the data types shared by every ingredient: the
// model oracle contract (§6.1), the problem views the algorithm sees
// instead of the raw model (§3), and the Iterate/Direction/Multipliers
// triple that flows between the outer driver and the mechanisms.
package model

import "math"

// Bound is a two-sided range; a NaN endpoint means "no bound" (±∞),
// mirroring slsqp.Bound/lbfgsb.Bound's convention.
type Bound struct {
	Lower, Upper float64
}

// IsFree reports whether the bound has no finite endpoint.
func (b Bound) IsFree() bool { return math.IsNaN(b.Lower) && math.IsNaN(b.Upper) }

// BoundType classifies a variable or constraint bound for the
// algorithm's case analysis (§3 "classifications").
type BoundType int

const (
	FreeBound BoundType = iota
	LowerBounded
	UpperBounded
	TwoSidedBounded
	Equality // Lower == Upper
)

// ClassifyBound derives the BoundType from a Bound's endpoints.
func ClassifyBound(b Bound) BoundType {
	l, u := !math.IsNaN(b.Lower), !math.IsNaN(b.Upper)
	switch {
	case l && u && b.Lower == b.Upper:
		return Equality
	case l && u:
		return TwoSidedBounded
	case l:
		return LowerBounded
	case u:
		return UpperBounded
	default:
		return FreeBound
	}
}

// Multipliers is the (λ, z_L, z_U) triple of §3. The sign convention
// fixed by this implementation (the Open Question in spec §9) is
// z_L ≥ 0, z_U ≤ 0: a lower-bound multiplier pushes x up, an
// upper-bound multiplier pushes x down.
type Multipliers struct {
	Constraints []float64 // λ, one per general constraint, free sign
	LowerBounds []float64 // z_L ≥ 0, one per variable
	UpperBounds []float64 // z_U ≤ 0, one per variable
}

// NewMultipliers allocates a zeroed Multipliers triple of the given
// dimensions.
func NewMultipliers(n, m int) Multipliers {
	return Multipliers{
		Constraints: make([]float64, m),
		LowerBounds: make([]float64, n),
		UpperBounds: make([]float64, n),
	}
}

// CombinedMagnitudeZero reports whether every multiplier is (numerically)
// zero — the Fritz-John failure mode flagged by §3's invariant that the
// combined magnitude may not vanish simultaneously at a stationary
// point satisfying constraint qualification.
func (m Multipliers) CombinedMagnitudeZero(tol float64) bool {
	for _, v := range m.Constraints {
		if math.Abs(v) > tol {
			return false
		}
	}
	for _, v := range m.LowerBounds {
		if math.Abs(v) > tol {
			return false
		}
	}
	for _, v := range m.UpperBounds {
		if math.Abs(v) > tol {
			return false
		}
	}
	return true
}

// Copy returns a deep copy.
func (m Multipliers) Copy() Multipliers {
	out := Multipliers{
		Constraints: append([]float64(nil), m.Constraints...),
		LowerBounds: append([]float64(nil), m.LowerBounds...),
		UpperBounds: append([]float64(nil), m.UpperBounds...),
	}
	return out
}
