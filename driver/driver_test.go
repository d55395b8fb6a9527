// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"math"
	"testing"

	"github.com/worc4021/Uno/hessian"
	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/mechanism"
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/relax"
	"github.com/worc4021/Uno/residual"
	"github.com/worc4021/Uno/strategy"
	"github.com/worc4021/Uno/subproblem"
)

// boundedQuadratic is minimize 0.5*x0^2 + x0 on x0 in [-10, 10],
// unconstrained otherwise, with KKT point x0 = -1.
type boundedQuadratic struct{}

func (boundedQuadratic) NumVariables() int   { return 1 }
func (boundedQuadratic) NumConstraints() int { return 0 }
func (boundedQuadratic) Objective(x []float64) float64 {
	return 0.5*x[0]*x[0] + x[0]
}
func (boundedQuadratic) ObjectiveGradient(x, grad []float64) { grad[0] = x[0] + 1 }
func (boundedQuadratic) Constraints(x, c []float64)          {}
func (boundedQuadratic) ConstraintGradient(x []float64, i int, grad []float64) {}
func (boundedQuadratic) ConstraintJacobian(x []float64) *linalg.RectMatrix {
	return linalg.NewRectMatrix(0, 1, 0)
}
func (boundedQuadratic) LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix {
	h := linalg.NewSymmetricMatrix(1, 1)
	h.Add(0, 0, sigma)
	return h
}
func (boundedQuadratic) VariableBounds() []model.Bound {
	return []model.Bound{{Lower: -10, Upper: 10}}
}
func (boundedQuadratic) ConstraintBounds() []model.Bound { return nil }
func (boundedQuadratic) LinearConstraints() []bool        { return nil }
func (boundedQuadratic) ObjectiveSign() float64           { return 1 }
func (boundedQuadratic) InitialPrimalPoint() []float64    { return []float64{5} }
func (boundedQuadratic) InitialDualPoint() model.Multipliers {
	return model.NewMultipliers(1, 0)
}

func TestDriverRunConvergesToFeasibleKKTPoint(t *testing.T) {
	oracle := boundedQuadratic{}
	optimalityAccept := strategy.NewMeritFunction()
	d := &Driver{
		Oracle:     oracle,
		Relax:      relax.NewFeasibilityRestoration(relax.Options{}, optimalityAccept, strategy.NewMeritFunction()),
		Mechanism:  mechanism.NewLineSearch(0.5, 1e-12, residual.DefaultScaleMax),
		Accept:     optimalityAccept,
		Subproblem: subproblem.NewSQP(1, 0, hessian.NewExact(1, false)),
		Options: Options{
			Tolerance:     1e-8,
			MaxIterations: 50,
		},
	}

	result := d.Run(oracle.InitialPrimalPoint(), oracle.InitialDualPoint())

	if result.Status != model.FeasibleKKTPoint {
		t.Fatalf("Status = %v, want FeasibleKKTPoint", result.Status)
	}
	if math.Abs(result.X[0]-(-1)) > 1e-6 {
		t.Fatalf("X = %v, want [-1]", result.X)
	}
	if result.SubproblemsSolved == 0 {
		t.Fatal("SubproblemsSolved = 0, want at least one subproblem solve")
	}
}

func TestCheckTerminationFeasibleKKTPoint(t *testing.T) {
	d := &Driver{Options: Options{Tolerance: 1e-6}}
	iterate := model.NewIterate([]float64{-1}, 1, 0)
	iterate.Sigma = 1

	measures := residual.Measures{Stationarity: 0, Complementarity: 0, PrimalInfeasibility: 0}
	looseStreak := 0
	status := d.checkTermination(measures, iterate, &looseStreak)

	if status != model.FeasibleKKTPoint {
		t.Fatalf("status = %v, want FeasibleKKTPoint", status)
	}
}

func TestCheckTerminationInfeasibleStationaryPoint(t *testing.T) {
	d := &Driver{Options: Options{Tolerance: 1e-6}}
	iterate := model.NewIterate([]float64{5}, 1, 0)
	iterate.Sigma = 0

	measures := residual.Measures{Stationarity: 0, Complementarity: 0, PrimalInfeasibility: 1.0}
	looseStreak := 0
	status := d.checkTermination(measures, iterate, &looseStreak)

	if status != model.InfeasibleStationaryPoint {
		t.Fatalf("status = %v, want InfeasibleStationaryPoint", status)
	}
}

func TestCheckTerminationNotYetSatisfied(t *testing.T) {
	d := &Driver{Options: Options{Tolerance: 1e-6}}
	iterate := model.NewIterate([]float64{5}, 1, 0)
	iterate.Sigma = 1

	measures := residual.Measures{Stationarity: 1.0, Complementarity: 1.0, PrimalInfeasibility: 0}
	looseStreak := 0
	status := d.checkTermination(measures, iterate, &looseStreak)

	if status != model.NotTerminated {
		t.Fatalf("status = %v, want NotTerminated", status)
	}
}

func TestCheckTerminationLooseToleranceConsecutiveIterations(t *testing.T) {
	d := &Driver{Options: Options{Tolerance: 1e-10, LooseTolerance: 1e-3, LooseToleranceConsecutiveIterations: 2}}
	iterate := model.NewIterate([]float64{-1}, 1, 0)
	iterate.Sigma = 1

	measures := residual.Measures{Stationarity: 1e-4, Complementarity: 1e-4, PrimalInfeasibility: 0}
	looseStreak := 0

	status := d.checkTermination(measures, iterate, &looseStreak)
	if status != model.NotTerminated {
		t.Fatalf("status after 1st loose iteration = %v, want NotTerminated", status)
	}
	if looseStreak != 1 {
		t.Fatalf("looseStreak = %d, want 1", looseStreak)
	}

	status = d.checkTermination(measures, iterate, &looseStreak)
	if status != model.FeasibleKKTPoint {
		t.Fatalf("status after 2nd loose iteration = %v, want FeasibleKKTPoint", status)
	}
}

func TestSmallStepDetectsNegligibleDirection(t *testing.T) {
	d := &Driver{Options: Options{SmallStepFactor: 1e-8}}
	iterate := model.NewIterate([]float64{1}, 1, 0)
	direction := model.NewDirection(1, 0)
	direction.NormInf = 1e-12

	outcome := mechanism.Outcome{Iterate: iterate, Direction: direction}
	if !d.smallStep(outcome) {
		t.Fatal("smallStep() = false, want true for a negligible direction norm")
	}
}

func TestSmallStepIgnoresDisabledFactor(t *testing.T) {
	d := &Driver{Options: Options{SmallStepFactor: 0}}
	iterate := model.NewIterate([]float64{1}, 1, 0)
	direction := model.NewDirection(1, 0)
	direction.NormInf = 1e-12

	outcome := mechanism.Outcome{Iterate: iterate, Direction: direction}
	if d.smallStep(outcome) {
		t.Fatal("smallStep() = true, want false when SmallStepFactor <= 0")
	}
}
