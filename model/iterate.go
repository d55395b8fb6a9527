package model

import "github.com/worc4021/Uno/linalg"

// Iterate is a complete primal-dual point (§3 "Iterate"): the primal
// vector, the three multiplier blocks, the objective multiplier σ
// distinguishing optimality (σ=1) from pure feasibility phase (σ=0),
// and a set of evaluation caches each guarded by its own "evaluated"
// flag, exactly as slsqp/lbfgsb memoize f/g/c per location. An Iterate
// owns its caches exclusively; resetting it clears every flag (§9
// "Iterate caching").
type Iterate struct {
	X     []float64
	Mult  Multipliers
	Sigma float64

	Status Status

	objectiveEvaluated bool
	objective          float64

	gradientEvaluated bool
	gradient          []float64

	constraintsEvaluated bool
	constraints          []float64

	jacobianEvaluated bool
	jacobian          *linalg.RectMatrix

	hessianEvaluated bool
	hessian          *linalg.SymmetricMatrix

	progressEvaluated bool
	infeasibility     float64
	scaledOptimality  float64
	unscaledOptimality float64

	residualsEvaluated bool
	Stationarity        float64
	Complementarity     float64
	PrimalInfeasibility float64
	ScaleDual           float64
	ScaleComplementarity float64
}

// NewIterate allocates an Iterate of dimensions (n, m) at the given
// primal point, with σ = 1 (optimality phase) by default.
func NewIterate(x []float64, n, m int) *Iterate {
	return &Iterate{
		X:     append([]float64(nil), x...),
		Mult:  NewMultipliers(n, m),
		Sigma: 1,
	}
}

// Reset clears every evaluation and progress cache, as required before
// reusing an Iterate at a new primal-dual point (§9).
func (it *Iterate) Reset() {
	it.objectiveEvaluated = false
	it.gradientEvaluated = false
	it.constraintsEvaluated = false
	it.jacobianEvaluated = false
	it.hessianEvaluated = false
	it.progressEvaluated = false
	it.residualsEvaluated = false
	it.Status = NotTerminated
}

// Objective returns the (memoized) objective value at X, evaluating
// through problem on first use.
func (it *Iterate) Objective(problem Problem) float64 {
	if !it.objectiveEvaluated {
		it.objective = problem.Objective(it.X)
		it.objectiveEvaluated = true
	}
	return it.objective
}

// ObjectiveGradient returns the (memoized) objective gradient.
func (it *Iterate) ObjectiveGradient(problem Problem) []float64 {
	if !it.gradientEvaluated {
		if it.gradient == nil || len(it.gradient) != problem.NumVariables() {
			it.gradient = make([]float64, problem.NumVariables())
		}
		problem.ObjectiveGradient(it.X, it.gradient)
		it.gradientEvaluated = true
	}
	return it.gradient
}

// Constraints returns the (memoized) constraint vector c(x).
func (it *Iterate) Constraints(problem Problem) []float64 {
	if !it.constraintsEvaluated {
		if it.constraints == nil || len(it.constraints) != problem.NumConstraints() {
			it.constraints = make([]float64, problem.NumConstraints())
		}
		problem.Constraints(it.X, it.constraints)
		it.constraintsEvaluated = true
	}
	return it.constraints
}

// Jacobian returns the (memoized) constraint Jacobian ∇c(x).
func (it *Iterate) Jacobian(problem Problem) *linalg.RectMatrix {
	if !it.jacobianEvaluated {
		it.jacobian = problem.ConstraintJacobian(it.X)
		it.jacobianEvaluated = true
	}
	return it.jacobian
}

// Hessian returns the (memoized) Lagrangian Hessian ∇²_xx L(x, σ, λ).
func (it *Iterate) Hessian(problem Problem) *linalg.SymmetricMatrix {
	if !it.hessianEvaluated {
		it.hessian = problem.LagrangianHessian(it.X, it.Sigma, it.Mult.Constraints)
		it.hessianEvaluated = true
	}
	return it.hessian
}

// SetProgress caches the progress measures computed by the residual
// package, avoiding recomputation within the same accepted iterate.
func (it *Iterate) SetProgress(infeasibility, scaledOptimality, unscaledOptimality float64) {
	it.infeasibility, it.scaledOptimality, it.unscaledOptimality = infeasibility, scaledOptimality, unscaledOptimality
	it.progressEvaluated = true
}

// Progress returns the cached progress measures and whether they have
// been computed since the last Reset.
func (it *Iterate) Progress() (infeasibility, scaledOptimality, unscaledOptimality float64, ok bool) {
	return it.infeasibility, it.scaledOptimality, it.unscaledOptimality, it.progressEvaluated
}

// SetResiduals caches the KKT residual measures computed by the
// residual package for this iterate, so the driver's termination check
// can read them back without recomputing.
func (it *Iterate) SetResiduals(stationarity, complementarity, primalInfeasibility, scaleDual, scaleComplementarity float64) {
	it.Stationarity = stationarity
	it.Complementarity = complementarity
	it.PrimalInfeasibility = primalInfeasibility
	it.ScaleDual = scaleDual
	it.ScaleComplementarity = scaleComplementarity
	it.residualsEvaluated = true
}

// ResidualsEvaluated reports whether SetResiduals has been called since
// the last Reset.
func (it *Iterate) ResidualsEvaluated() bool { return it.residualsEvaluated }

// Clone deep-copies the primal-dual point without copying the
// evaluation caches (the clone starts unevaluated, matching the "never
// mutate cached values across acceptance boundaries" rule of §9).
func (it *Iterate) Clone() *Iterate {
	return &Iterate{
		X:     append([]float64(nil), it.X...),
		Mult:  it.Mult.Copy(),
		Sigma: it.Sigma,
	}
}
