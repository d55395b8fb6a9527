// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package relax

import (
	"math"
	"testing"

	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/strategy"
)

// trivialOracle is a single-variable, single-constraint oracle used to
// exercise View/Notify without pulling in a real problem definition.
type trivialOracle struct{}

func (trivialOracle) NumVariables() int              { return 1 }
func (trivialOracle) NumConstraints() int            { return 1 }
func (trivialOracle) Objective(x []float64) float64  { return x[0] }
func (trivialOracle) ObjectiveGradient(x, grad []float64) { grad[0] = 1 }
func (trivialOracle) Constraints(x, c []float64)     { c[0] = x[0] }
func (trivialOracle) ConstraintGradient(x []float64, index int, grad []float64) { grad[0] = 1 }
func (trivialOracle) ConstraintJacobian(x []float64) *linalg.RectMatrix {
	m := linalg.NewRectMatrix(1, 1, 1)
	m.Add(0, 0, 1)
	return m
}
func (trivialOracle) LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix {
	return linalg.NewSymmetricMatrix(1, 0)
}
func (trivialOracle) VariableBounds() []model.Bound {
	return []model.Bound{{Lower: math.NaN(), Upper: math.NaN()}}
}
func (trivialOracle) ConstraintBounds() []model.Bound {
	return []model.Bound{{Lower: 0, Upper: math.NaN()}}
}
func (trivialOracle) LinearConstraints() []bool  { return []bool{true} }
func (trivialOracle) ObjectiveSign() float64     { return 1 }
func (trivialOracle) InitialPrimalPoint() []float64 { return []float64{1} }
func (trivialOracle) InitialDualPoint() model.Multipliers { return model.NewMultipliers(1, 1) }

func TestL1RelaxationViewIsFeasibilityShaped(t *testing.T) {
	r := NewL1Relaxation()
	iterate := model.NewIterate([]float64{1}, 1, 1)
	view := r.View(trivialOracle{}, iterate)

	if _, ok := view.(*model.FeasibilityView); !ok {
		t.Fatalf("View() = %T, want *model.FeasibilityView", view)
	}
	if r.ObjectiveMultiplier() != 1 {
		t.Fatalf("ObjectiveMultiplier() = %v, want 1", r.ObjectiveMultiplier())
	}
}

func TestL1RelaxationUpdateEtaGrowsOnPoorProgress(t *testing.T) {
	r := NewL1Relaxation()
	before := r.Eta()
	r.UpdateEta(0.01, 1.0) // ratio 0.01 < 0.1 sufficient fraction
	if r.Eta() <= before {
		t.Fatalf("Eta() = %v, want > %v after insufficient infeasibility reduction", r.Eta(), before)
	}
}

func TestL1RelaxationUpdateEtaShrinksOnGoodProgress(t *testing.T) {
	r := NewL1Relaxation()
	r.eta = 1.0
	r.UpdateEta(0.5, 1.0) // ratio 0.5 >= 0.1
	if r.Eta() >= 1.0 {
		t.Fatalf("Eta() = %v, want < 1.0 after sufficient infeasibility reduction", r.Eta())
	}
}

func TestL1RelaxationUpdateEtaNoOpWithoutPredictedReduction(t *testing.T) {
	r := NewL1Relaxation()
	before := r.Eta()
	r.UpdateEta(1.0, 0)
	if r.Eta() != before {
		t.Fatalf("Eta() = %v, want unchanged %v when predicted reduction is <= 0", r.Eta(), before)
	}
}

func TestFeasibilityRestorationSwitchesPhaseOnInfeasibleSubproblem(t *testing.T) {
	optimalityAccept := strategy.NewMeritFunction()
	feasibilityAccept := strategy.NewMeritFunction()
	fr := NewFeasibilityRestoration(Options{}, optimalityAccept, feasibilityAccept)
	if fr.Phase() != Optimality {
		t.Fatalf("Phase() = %v, want Optimality initially", fr.Phase())
	}
	if fr.Accept() != optimalityAccept {
		t.Fatal("Accept() != optimalityAccept, want the optimality-phase instance initially")
	}

	direction := model.NewDirection(1, 1)
	direction.SubproblemStatus = 1 // INFEASIBLE
	changed := fr.Notify(direction, model.NewOptimalityView(trivialOracle{}), model.NewIterate([]float64{1}, 1, 1), 0)

	if !changed {
		t.Fatal("Notify() = false, want true on phase switch")
	}
	if fr.Phase() != Feasibility {
		t.Fatalf("Phase() = %v, want Feasibility after an infeasible subproblem", fr.Phase())
	}
	if fr.ObjectiveMultiplier() != 0 {
		t.Fatalf("ObjectiveMultiplier() = %v, want 0 in feasibility phase", fr.ObjectiveMultiplier())
	}
	if fr.Accept() != feasibilityAccept {
		t.Fatal("Accept() != feasibilityAccept, want the feasibility-phase instance after the switch")
	}
}

func TestFeasibilityRestorationReturnsToOptimalityWhenFeasible(t *testing.T) {
	optimalityAccept := strategy.NewMeritFunction()
	feasibilityAccept := strategy.NewMeritFunction()
	fr := NewFeasibilityRestoration(Options{}, optimalityAccept, feasibilityAccept)
	direction := model.NewDirection(1, 1)
	direction.SubproblemStatus = 1
	fr.Notify(direction, model.NewOptimalityView(trivialOracle{}), model.NewIterate([]float64{1}, 1, 1), 0)
	if fr.Phase() != Feasibility {
		t.Fatal("setup: expected Feasibility phase")
	}

	// Give the feasibility-phase strategy some history that a shared,
	// reset-on-every-switch instance would have destroyed.
	feasibilityAccept.UpdatePenalty(-10, 1) // required nu = 10 > 1, so nu grows to 20
	nuAfterFeasibility := feasibilityAccept.Nu()

	direction2 := model.NewDirection(1, 1)
	direction2.InfeasibleConstraints = []bool{false}
	changed := fr.Notify(direction2, model.NewOptimalityView(trivialOracle{}), model.NewIterate([]float64{1}, 1, 1), 0)

	if !changed {
		t.Fatal("Notify() = false, want true returning to optimality")
	}
	if fr.Phase() != Optimality {
		t.Fatalf("Phase() = %v, want Optimality once no linearized constraint remains infeasible", fr.Phase())
	}
	if fr.Accept() != optimalityAccept {
		t.Fatal("Accept() != optimalityAccept, want the optimality-phase instance restored")
	}
	if feasibilityAccept.Nu() != nuAfterFeasibility {
		t.Fatalf("feasibilityAccept.Nu() = %v, want unchanged %v: switching phase must not touch the other phase's strategy", feasibilityAccept.Nu(), nuAfterFeasibility)
	}
}

func TestFeasibilityRestorationViewUsesBoundRelaxation(t *testing.T) {
	fr := NewFeasibilityRestoration(Options{BoundRelaxation: 0.1}, strategy.NewMeritFunction(), strategy.NewMeritFunction())
	iterate := model.NewIterate([]float64{1}, 1, 1)
	view := fr.View(trivialOracle{}, iterate)

	relaxed, ok := view.(*model.BoundRelaxedModel)
	if !ok {
		t.Fatalf("View() = %T, want *model.BoundRelaxedModel in optimality phase with BoundRelaxation > 0", view)
	}
	_ = relaxed
}
