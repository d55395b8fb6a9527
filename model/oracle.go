package model

import "github.com/worc4021/Uno/linalg"

// Oracle is the model supplied by the caller (§6.1). Uno treats it as a
// pure algebraic oracle: no part of the core inspects how f, c or their
// derivatives are computed. Every method must be safe to call
// repeatedly with the same x (memoization, if any, is the oracle's own
// business — the Iterate layer does its own caching on top).
type Oracle interface {
	NumVariables() int
	NumConstraints() int

	Objective(x []float64) float64
	ObjectiveGradient(x []float64, grad []float64)

	Constraints(x []float64, c []float64)
	ConstraintGradient(x []float64, i int, grad []float64)
	ConstraintJacobian(x []float64) *linalg.RectMatrix

	// LagrangianHessian returns ∇²_xx L(x, σ, λ), lower-triangular.
	LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix

	VariableBounds() []Bound
	ConstraintBounds() []Bound

	// LinearConstraints reports, per constraint, whether it is known to
	// be linear (used by the relaxation strategies to skip
	// re-linearization work). May return nil if unknown/all nonlinear.
	LinearConstraints() []bool

	// ObjectiveSign is +1 for minimization, -1 for maximization; the
	// core always minimizes internally and multiplies back on output.
	ObjectiveSign() float64

	InitialPrimalPoint() []float64
	InitialDualPoint() Multipliers
}

// PostProcessor is an optional capability: an Oracle may implement it
// to be notified of the final iterate and status (§6.1
// "postprocess_solution").
type PostProcessor interface {
	PostprocessSolution(x []float64, mult Multipliers, status int)
}
