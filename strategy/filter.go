// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package strategy

import "math"

// FilterKind selects between the Leyffer (§4.G G2) and Wächter-Biegler
// (§4.G G3) filter variants; they share the dominance test and differ
// only in whether a switching condition can bypass it with a plain
// Armijo test on the objective.
type FilterKind int

const (
	LeyfferFilter FilterKind = iota
	WachterFilter
)

// filterEntry is one (infeasibility, objective) pair the filter has
// accepted and therefore forbids any future trial point from
// dominating.
type filterEntry struct {
	infeasibility float64
	objective     float64
}

var _ AcceptanceStrategy = (*Filter)(nil)

const (
	filterGammaThetaDefault   = 1e-5
	filterGammaObjDefault     = 1e-5
	filterKappaEnvelopeDefault = 1e4
	filterThetaMinDefault     = 1e-4

	switchingSThetaDefault   = 1.1
	switchingSObjDefault     = 2.3
	switchingDeltaMinDefault = 1e-8
)

// Filter is the shared filter data structure: an antichain of
// (θ, f) pairs plus an upper envelope bound (§4.G "envelope upper
// bound") that immediately rejects any trial with worse infeasibility
// than max(θ̄, κ·θ(x₀)) regardless of objective — the invariant that
// keeps the filter from ever admitting an arbitrarily infeasible point
// just because its objective happens to be small. The numeric knobs
// are exported so uno.Options.FromMap (§6.2's filter_delta, filter_ubd,
// filter_fact, filter_switching_infeasibility_exponent keys) can
// override them; NewFilter seeds them with the standard defaults.
type Filter struct {
	kind    FilterKind
	entries []filterEntry
	upperBound float64

	GammaTheta, GammaObj   float64
	KappaEnvelope, ThetaMin float64
	SwitchingSTheta, SwitchingSObj, SwitchingDeltaMin float64
}

// NewFilter constructs a filter of the given kind, with the envelope
// bound set from the infeasibility at the starting point θ(x₀), per
// §4.G.
func NewFilter(kind FilterKind, initialInfeasibility float64) *Filter {
	f := &Filter{
		kind:              kind,
		GammaTheta:        filterGammaThetaDefault,
		GammaObj:          filterGammaObjDefault,
		KappaEnvelope:     filterKappaEnvelopeDefault,
		ThetaMin:          filterThetaMinDefault,
		SwitchingSTheta:   switchingSThetaDefault,
		SwitchingSObj:     switchingSObjDefault,
		SwitchingDeltaMin: switchingDeltaMinDefault,
	}
	f.upperBound = math.Max(f.ThetaMin, f.KappaEnvelope*initialInfeasibility)
	return f
}

// Reset clears the filter's history, called when a feasibility-phase
// switch (§4.F) invalidates the accumulated (θ, f) pairs.
func (f *Filter) Reset() {
	f.entries = f.entries[:0]
}

// dominated reports whether (theta, obj) is dominated by some entry
// already in the filter, i.e. no improvement margin over that entry in
// either coordinate.
func (f *Filter) dominated(theta, obj float64) bool {
	for _, e := range f.entries {
		if theta >= (1-f.GammaTheta)*e.infeasibility && obj >= e.objective-f.GammaObj*e.infeasibility {
			return true
		}
	}
	return false
}

// switchingConditionHolds implements the Wächter-Biegler switching
// condition (§4.G G3): when the step is a good enough descent direction
// on a nearly-feasible iterate, the filter defers to a plain
// sufficient-decrease (Armijo) test on the objective alone, avoiding
// the filter's notorious difficulty accepting very small steps near a
// feasible optimum (the Maratos-effect-adjacent failure mode).
func (f *Filter) switchingConditionHolds(currentInfeasibility, predictedReduction, stepNormInf float64) bool {
	if f.kind != WachterFilter {
		return false
	}
	if predictedReduction <= 0 {
		return false
	}
	delta := math.Max(f.SwitchingDeltaMin, stepNormInf)
	return predictedReduction > delta*math.Pow(currentInfeasibility, f.SwitchingSTheta) &&
		math.Pow(predictedReduction, f.SwitchingSObj) > delta*math.Pow(currentInfeasibility, f.SwitchingSTheta)
}

// IsAcceptable applies the envelope bound, then either the switching
// condition's Armijo test (Wächter, when applicable) or the filter
// dominance test.
func (f *Filter) IsAcceptable(currentInfeasibility, currentObjective, trialInfeasibility, trialObjective, predictedReduction float64) bool {
	if trialInfeasibility > f.upperBound {
		return false
	}
	if f.switchingConditionHolds(currentInfeasibility, predictedReduction, 0) {
		const sufficientFraction = 1e-4
		return currentObjective-trialObjective >= sufficientFraction*predictedReduction
	}
	if f.dominated(trialInfeasibility, trialObjective) {
		return false
	}
	return true
}

// Accept records (infeasibility, objective) into the filter's
// antichain, discarding any existing entry the new point now
// dominates (the filter monotonicity invariant of §4.G). The envelope
// bound set at construction is left unchanged.
func (f *Filter) Accept(infeasibility, objective float64) {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if !(infeasibility <= e.infeasibility && objective <= e.objective) {
			kept = append(kept, e)
		}
	}
	f.entries = append(kept, filterEntry{infeasibility, objective})
}
