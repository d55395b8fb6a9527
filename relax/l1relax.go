// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package relax implements the two constraint-relaxation strategies of
// §4.F: L1Relaxation (a single smooth elastic reformulation carried
// through the whole solve) and FeasibilityRestoration (a two-phase
// switch into a dedicated feasibility subproblem whenever the
// optimality subproblem reports infeasibility). Both own how far the
// algorithm is willing to trust a locally infeasible linearization
// before giving up on optimality altogether, and both satisfy Strategy
// so the driver can drive either without a type switch.
package relax

import (
	"math"

	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/residual"
)

// Strategy is the capability shared by F1 and F2 (§9 design notes'
// "expose capability sets" guidance): produce the problem view the
// subproblem should solve this iteration, report the σ that view
// carries, and react to the subproblem's verdict.
type Strategy interface {
	View(oracle model.Oracle, iterate *model.Iterate) model.Problem
	ObjectiveMultiplier() float64
	// Notify is called after each subproblem solve with the resulting
	// direction, the view it was solved against, the iterate it was
	// solved at, and the subproblem's own predicted-reduction value (used
	// by L1Relaxation's penalty update). It reports whether the active
	// phase/view changed, so the driver resets the owning globalization
	// strategy (§4.F "switching resets the opposing filter/merit").
	Notify(direction *model.Direction, problem model.Problem, iterate *model.Iterate, predictedReduction float64) (phaseChanged bool)
}

var (
	_ Strategy = (*FeasibilityRestoration)(nil)
	_ Strategy = (*L1Relaxation)(nil)
)

// L1Relaxation reformulates the problem once, at construction, into a
// model.FeasibilityView-shaped objective folding the ℓ1 penalty on
// constraint violation directly into the objective with a dynamically
// updated penalty coefficient η (§4.F F2), rather than switching
// problems at runtime the way FeasibilityRestoration does.
type L1Relaxation struct {
	eta            float64
	etaMin         float64
	etaMax         float64
	decreaseFactor float64
}

const (
	l1EtaInitial  = 1.0
	l1EtaMin      = 1e-6
	l1EtaMax      = 1e8
	l1EtaDecrease = 0.5
)

// NewL1Relaxation constructs the relaxation with η at its initial
// value.
func NewL1Relaxation() *L1Relaxation {
	return &L1Relaxation{
		eta:            l1EtaInitial,
		etaMin:         l1EtaMin,
		etaMax:         l1EtaMax,
		decreaseFactor: l1EtaDecrease,
	}
}

// Eta returns the current penalty coefficient.
func (r *L1Relaxation) Eta() float64 { return r.eta }

// View builds the elastic reformulation of oracle at the current
// penalty η, centered on iterate (the proximal term is disabled for F2,
// per §4.F F2's formulation).
func (r *L1Relaxation) View(oracle model.Oracle, iterate *model.Iterate) model.Problem {
	return model.NewFeasibilityView(oracle, r.eta, iterate.X, 0)
}

// ObjectiveMultiplier is always 1: the ℓ1 penalty is folded into the
// (smooth) objective, so the relaxed problem is always solved in full
// optimality mode.
func (r *L1Relaxation) ObjectiveMultiplier() float64 { return 1 }

// Notify drives the Byrd-Nocedal-Waltz η update from the fraction of
// the current linearized infeasibility the direction is predicted to
// remove — the count of linearized constraints the subproblem reports
// as feasible at d, out of all constraints in the direction's partition
// (not only those violated at the current iterate) — compared against
// the subproblem's total predicted reduction.
// L1Relaxation never changes "phase" so it always reports false.
func (r *L1Relaxation) Notify(direction *model.Direction, problem model.Problem, iterate *model.Iterate, predictedReduction float64) bool {
	violatedBefore, remainingAfter := 0, 0
	for _, infeasible := range direction.InfeasibleConstraints {
		violatedBefore++
		if infeasible {
			remainingAfter++
		}
	}
	var infeasibilityReduction float64
	if violatedBefore > 0 {
		currentInfeasibility := residual.Evaluate(problem, iterate, residual.DefaultScaleMax).PrimalInfeasibility
		infeasibilityReduction = currentInfeasibility * float64(violatedBefore-remainingAfter) / float64(violatedBefore)
	}
	r.UpdateEta(infeasibilityReduction, predictedReduction)
	return false
}

// UpdateEta implements the Byrd-Nocedal-Waltz dynamic penalty update
// (§4.F F2): if the predicted reduction in linearized infeasibility
// achieved at the current η is not a sufficiently large fraction of
// the total predicted reduction, η grows; otherwise it is safe to
// relax the penalty by decreaseFactor, subject to the floor etaMin.
func (r *L1Relaxation) UpdateEta(linearizedInfeasibilityReduction, totalPredictedReduction float64) {
	const sufficientFraction = 0.1
	if totalPredictedReduction <= 0 {
		return
	}
	ratio := linearizedInfeasibilityReduction / totalPredictedReduction
	if ratio < sufficientFraction {
		r.eta = math.Min(r.eta*2, r.etaMax)
		return
	}
	r.eta = math.Max(r.eta*r.decreaseFactor, r.etaMin)
}
