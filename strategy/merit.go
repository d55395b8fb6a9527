// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package strategy implements the two step-acceptance globalization
// strategies of §4.G: an ℓ1 merit function (G1) and the filter family
// (G2 Leyffer, G3 Wächter). Both answer the same question — "is this
// trial iterate good enough to accept?" — from a predicted-reduction
// model supplied by the active subproblem (§4.E), so a mechanism
// package (§4.H) can be written against the AcceptanceStrategy
// interface without caring which globalization is in effect.
package strategy

// AcceptanceStrategy decides whether a trial point (infeasibility,
// objective) improves enough over the current iterate to accept the
// step that produced it.
type AcceptanceStrategy interface {
	IsAcceptable(currentInfeasibility, currentObjective, trialInfeasibility, trialObjective, predictedReduction float64) bool
	// Accept registers an accepted (infeasibility, objective) pair. The
	// filter strategies use this to grow their antichain (§4.G
	// monotonicity); the merit function has no history to register and
	// implements it as a no-op.
	Accept(infeasibility, objective float64)
	Reset()
}

// PenaltyUpdater is the optional capability (§9 "expose capability
// sets") a strategy implements when it owns a penalty parameter that
// must be updated from the subproblem's predicted-reduction split
// before acceptance is tested — only the ℓ1 merit function (G1) does.
type PenaltyUpdater interface {
	UpdatePenalty(predictedObjectiveReduction, predictedInfeasibilityReduction float64)
}

var _ PenaltyUpdater = (*MeritFunction)(nil)

// MeritFunction is the classical ℓ1 exact penalty merit function of
// §4.G G1: φ(x) = f(x) + ν·θ(x), accepted when the actual decrease in
// φ is a sufficient fraction of the predicted decrease (an Armijo-style
// condition), exactly the acceptance test lbfgsb's line search applies
// to the plain objective, generalized here to include the penalty term.
type MeritFunction struct {
	nu             float64
	sufficientFraction float64
}

const (
	meritNuInitial          = 1.0
	meritNuGrowth           = 10.0
	meritNuMax              = 1e8
	meritSufficientFraction = 1e-4
)

// NewMeritFunction constructs a merit function with its default
// sufficient-decrease fraction and initial penalty weight ν.
func NewMeritFunction() *MeritFunction {
	return &MeritFunction{nu: meritNuInitial, sufficientFraction: meritSufficientFraction}
}

// Nu returns the current penalty weight.
func (m *MeritFunction) Nu() float64 { return m.nu }

// UpdatePenalty grows ν when the predicted reduction of the merit
// function at the current ν would be non-positive (the constraint term
// dominates), guaranteeing the QP step is always a descent direction
// for φ, per the standard ℓ1 merit penalty update.
func (m *MeritFunction) UpdatePenalty(predictedObjectiveReduction, predictedInfeasibilityReduction float64) {
	if predictedInfeasibilityReduction <= 0 {
		return
	}
	required := -predictedObjectiveReduction / predictedInfeasibilityReduction
	if required > m.nu {
		m.nu = minFloat(required*2, meritNuMax)
	}
}

func (m *MeritFunction) value(infeasibility, objective float64) float64 {
	return objective + m.nu*infeasibility
}

// IsAcceptable applies the sufficient-decrease test to the merit value
// at the current and trial points.
func (m *MeritFunction) IsAcceptable(currentInfeasibility, currentObjective, trialInfeasibility, trialObjective, predictedReduction float64) bool {
	actual := m.value(currentInfeasibility, currentObjective) - m.value(trialInfeasibility, trialObjective)
	return actual >= m.sufficientFraction*predictedReduction
}

// Accept is a no-op for the merit function: it carries no accepted-
// point history, only the scalar penalty weight ν.
func (m *MeritFunction) Accept(float64, float64) {}

// Reset restores the penalty weight to its initial value, called when
// a feasibility-phase switch invalidates the accumulated history (§4.F).
func (m *MeritFunction) Reset() { m.nu = meritNuInitial }

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
