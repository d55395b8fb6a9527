// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package subproblem implements the two local models of §4.E: SQP (a
// trust-region-constrained quadratic model of the Lagrangian, solved by
// qpsolve) and InteriorPoint (a primal-dual barrier step built from the
// same KKT ingredients plus inertia correction). Both share the
// Subproblem interface so a mechanism package can drive either without
// knowing which is underneath, mirroring how lbfgsb.Optimizer and
// slsqp.Optimizer both expose New/Init/Fit despite different inner
// kernels.
package subproblem

import (
	"math"

	"github.com/worc4021/Uno/hessian"
	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/qpsolve"
)

// Subproblem is the contract shared by SQP and InteriorPoint (§9
// "Subproblem interface"): solve the local model at the current
// iterate subject to a trust region (SQP) or barrier parameter
// (InteriorPoint), and describe the predicted reduction used by the
// owning globalization strategy to judge a step.
type Subproblem interface {
	Solve(problem model.Problem, iterate *model.Iterate, radius float64) *model.Direction
	PredictedReduction(direction *model.Direction, stepLength float64) float64
}

// SQP solves a trust-region-constrained QP model of the Lagrangian at
// every iteration (§4.E step 1): H from a hessian.Model, linearized
// constraints and bounds intersected with the trust region box.
type SQP struct {
	solver     *qpsolve.Solver
	hessian    hessian.Model
	maxN, maxM int

	gradDotD float64 // g_k · d, cached from the last Solve
	quadDotD float64 // d^T H d, cached from the last Solve
}

// NewSQP allocates an SQP subproblem whose QP solver can handle any
// problem up to maxN variables and maxM constraints.
func NewSQP(maxN, maxM int, hessianModel hessian.Model) *SQP {
	return &SQP{
		solver:  qpsolve.NewSolver(maxN, maxM),
		hessian: hessianModel,
		maxN:    maxN,
		maxM:    maxM,
	}
}

// Solve builds and solves the trust-region QP model at iterate and
// returns the resulting Direction.
func (s *SQP) Solve(problem model.Problem, iterate *model.Iterate, radius float64) *model.Direction {
	n, m := problem.NumVariables(), problem.NumConstraints()

	grad := iterate.ObjectiveGradient(problem)
	jac := iterate.Jacobian(problem)
	h := s.hessian.Evaluate(problem, iterate)
	a := linalg.NewCSCFromRect(jac)
	c := iterate.Constraints(problem)

	qp := &qpsolve.Problem{
		N: n, M: m,
		H: h,
		G: grad,
		A: a,
	}

	qp.VarBounds = make([]qpsolve.Bound, n)
	for i, b := range problem.VariableBounds() {
		lo, hi := b.Lower-iterate.X[i], b.Upper-iterate.X[i]
		if radius > 0 {
			// A NaN (absent) bound is replaced by the box edge, since
			// math.Max/math.Min would propagate the NaN.
			if math.IsNaN(lo) {
				lo = -radius
			} else {
				lo = math.Max(lo, -radius)
			}
			if math.IsNaN(hi) {
				hi = radius
			} else {
				hi = math.Min(hi, radius)
			}
		}
		qp.VarBounds[i] = qpsolve.Bound{Lower: lo, Upper: hi}
	}

	qp.ConBounds = make([]qpsolve.Bound, m)
	for j, b := range problem.ConstraintBounds() {
		qp.ConBounds[j] = qpsolve.Bound{Lower: subNaN(b.Lower, c[j]), Upper: subNaN(b.Upper, c[j])}
	}

	result := &qpsolve.Result{}
	s.solver.Solve(qp, qpsolve.AllChanged, result)

	direction := model.NewDirection(n, m)
	copy(direction.Primal, result.D)
	copy(direction.DeltaMult.Constraints, result.Multipliers)
	copy(direction.DeltaMult.LowerBounds, result.ZLower)
	copy(direction.DeltaMult.UpperBounds, result.ZUpper)
	direction.NormInf = linalg.InfNorm(result.D)
	direction.SubproblemObjective = result.Objective
	if result.ConFeasible != nil {
		direction.InfeasibleConstraints = make([]bool, len(result.ConFeasible))
		for i, feasible := range result.ConFeasible {
			direction.InfeasibleConstraints[i] = !feasible
		}
	}

	direction.ActiveLower = make([]bool, n)
	direction.ActiveUpper = make([]bool, n)
	for i := 0; i < n; i++ {
		switch result.VarActive[i] {
		case 1:
			direction.ActiveLower[i] = true
		case 2:
			direction.ActiveUpper[i] = true
		}
	}

	switch result.Status {
	case qpsolve.OPTIMAL:
		direction.SubproblemStatus = 0
	case qpsolve.INFEASIBLE:
		direction.SubproblemStatus = 1
	case qpsolve.UNBOUNDED:
		direction.SubproblemStatus = 2
	default:
		direction.SubproblemStatus = 3
	}

	s.gradDotD = linalg.Dot(grad, result.D)
	s.quadDotD = quadraticForm(h, result.D)

	return direction
}

// quadraticForm returns d^T H d for a lower-triangular SymmetricMatrix.
func quadraticForm(h *linalg.SymmetricMatrix, d []float64) float64 {
	total := 0.0
	h.ForEach(func(i, j int, v float64) {
		if i == j {
			total += v * d[i] * d[i]
		} else {
			total += 2 * v * d[i] * d[j]
		}
	})
	return total
}

func subNaN(bound, shift float64) float64 {
	if math.IsNaN(bound) {
		return math.NaN()
	}
	return bound - shift
}

// PredictedReduction evaluates the quadratic model's predicted
// objective decrease at stepLength·d, m(0) - m(αd) = -α(g_k·d) -
// ½α²(dᵀHd), the quantity both the ℓ1 merit function and the filter's
// switching condition compare against the actual decrease (§4.G).
func (s *SQP) PredictedReduction(direction *model.Direction, stepLength float64) float64 {
	return -stepLength*s.gradDotD - 0.5*stepLength*stepLength*s.quadDotD
}

// Correct implements the second-order correction of §4.H H1,
// satisfying mechanism.SecondOrderCorrector: a QP built from the same
// gradient and Hessian as the rejected direction, but with the
// constraint right-hand side evaluated at the rejected trial point
// x+αd (trialConstraints) instead of x, recovering steps the filter or
// merit function would otherwise reject purely from constraint
// curvature (the Maratos effect). The result is the full corrected
// direction from iterate — direction's primal step plus the correction
// QP's solution — not an increment on top of it.
func (s *SQP) Correct(problem model.Problem, iterate *model.Iterate, direction *model.Direction, trialConstraints []float64) *model.Direction {
	n, m := problem.NumVariables(), problem.NumConstraints()

	grad := iterate.ObjectiveGradient(problem)
	jac := iterate.Jacobian(problem)
	h := s.hessian.Evaluate(problem, iterate)
	a := linalg.NewCSCFromRect(jac)

	qp := &qpsolve.Problem{
		N: n, M: m,
		H: h,
		G: grad,
		A: a,
	}

	qp.VarBounds = make([]qpsolve.Bound, n)
	for i, b := range problem.VariableBounds() {
		qp.VarBounds[i] = qpsolve.Bound{Lower: b.Lower - iterate.X[i], Upper: b.Upper - iterate.X[i]}
	}

	qp.ConBounds = make([]qpsolve.Bound, m)
	for j, b := range problem.ConstraintBounds() {
		qp.ConBounds[j] = qpsolve.Bound{Lower: subNaN(b.Lower, trialConstraints[j]), Upper: subNaN(b.Upper, trialConstraints[j])}
	}

	result := &qpsolve.Result{}
	s.solver.Solve(qp, qpsolve.AllChanged, result)

	corrected := model.NewDirection(n, m)
	for i := range corrected.Primal {
		corrected.Primal[i] = direction.Primal[i] + result.D[i]
	}
	copy(corrected.DeltaMult.Constraints, result.Multipliers)
	copy(corrected.DeltaMult.LowerBounds, result.ZLower)
	copy(corrected.DeltaMult.UpperBounds, result.ZUpper)
	corrected.NormInf = linalg.InfNorm(corrected.Primal)
	corrected.SubproblemObjective = result.Objective
	if result.ConFeasible != nil {
		corrected.InfeasibleConstraints = make([]bool, len(result.ConFeasible))
		for i, feasible := range result.ConFeasible {
			corrected.InfeasibleConstraints[i] = !feasible
		}
	}

	corrected.ActiveLower = make([]bool, n)
	corrected.ActiveUpper = make([]bool, n)
	for i := 0; i < n; i++ {
		switch result.VarActive[i] {
		case 1:
			corrected.ActiveLower[i] = true
		case 2:
			corrected.ActiveUpper[i] = true
		}
	}

	switch result.Status {
	case qpsolve.OPTIMAL:
		corrected.SubproblemStatus = 0
	case qpsolve.INFEASIBLE:
		corrected.SubproblemStatus = 1
	case qpsolve.UNBOUNDED:
		corrected.SubproblemStatus = 2
	default:
		corrected.SubproblemStatus = 3
	}
	corrected.FractionToBoundary = 1

	s.gradDotD = linalg.Dot(grad, corrected.Primal)
	s.quadDotD = quadraticForm(h, corrected.Primal)

	return corrected
}
