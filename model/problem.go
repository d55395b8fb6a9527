package model

import (
	"math"

	"github.com/worc4021/Uno/linalg"
)

// Problem is the view the algorithm sees instead of the raw Oracle
// (§3 "OptimizationProblem / ReformulatedProblem"). Every view
// satisfies number_variables = n + k and number_constraints = m + k'
// for some k, k' ≥ 0 of elastic variables/constraints added by the
// reformulation; OptimalityView sets k = k' = 0.
type Problem interface {
	NumVariables() int
	NumConstraints() int

	Objective(x []float64) float64
	ObjectiveGradient(x []float64, grad []float64)
	Constraints(x []float64, c []float64)
	ConstraintJacobian(x []float64) *linalg.RectMatrix
	LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix

	VariableBounds() []Bound
	ConstraintBounds() []Bound

	ObjectiveSign() float64

	NumElasticVariables() int
	NumElasticConstraints() int

	// Underlying returns the base Oracle, for code that needs the
	// original (non-reformulated) dimensions, e.g. the residual
	// package when reporting results back to the caller.
	Underlying() Oracle
}

// OptimalityView is the σ=1, no-elastics view of an Oracle: the
// algorithm's default problem when not in feasibility phase.
type OptimalityView struct {
	oracle Oracle
}

// NewOptimalityView wraps oracle in the original-problem view.
func NewOptimalityView(oracle Oracle) *OptimalityView { return &OptimalityView{oracle} }

func (v *OptimalityView) NumVariables() int   { return v.oracle.NumVariables() }
func (v *OptimalityView) NumConstraints() int { return v.oracle.NumConstraints() }

func (v *OptimalityView) Objective(x []float64) float64 { return v.oracle.Objective(x) }
func (v *OptimalityView) ObjectiveGradient(x []float64, grad []float64) {
	v.oracle.ObjectiveGradient(x, grad)
}
func (v *OptimalityView) Constraints(x []float64, c []float64) { v.oracle.Constraints(x, c) }
func (v *OptimalityView) ConstraintJacobian(x []float64) *linalg.RectMatrix {
	return v.oracle.ConstraintJacobian(x)
}
func (v *OptimalityView) LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix {
	return v.oracle.LagrangianHessian(x, sigma, lambda)
}
func (v *OptimalityView) VariableBounds() []Bound   { return v.oracle.VariableBounds() }
func (v *OptimalityView) ConstraintBounds() []Bound { return v.oracle.ConstraintBounds() }
func (v *OptimalityView) ObjectiveSign() float64    { return v.oracle.ObjectiveSign() }
func (v *OptimalityView) NumElasticVariables() int   { return 0 }
func (v *OptimalityView) NumElasticConstraints() int { return 0 }
func (v *OptimalityView) Underlying() Oracle         { return v.oracle }

// FeasibilityView is the σ=0 elastic-variable view used by feasibility
// restoration (§4.F F1): elastic variables p, n ≥ 0 are appended so
// that c(x) + p - n stays within [g_L, g_U] for any x, at the cost of
// the ℓ1 penalty η·Σ(p+n) folded into the objective. The constraint
// count is unchanged (k' = 0); the variable count grows by k = 2m.
type FeasibilityView struct {
	oracle Oracle
	m      int
	eta    float64
	// xRef, rho implement the optional proximal stabilization term
	// ½ρ‖x − x_ref‖² mentioned in §4.F.
	xRef []float64
	rho  float64
}

// NewFeasibilityView builds the elastic reformulation of oracle. eta is
// the ℓ1 penalty coefficient on the elastics; rho <= 0 disables the
// proximal term.
func NewFeasibilityView(oracle Oracle, eta float64, xRef []float64, rho float64) *FeasibilityView {
	return &FeasibilityView{oracle: oracle, m: oracle.NumConstraints(), eta: eta, xRef: xRef, rho: rho}
}

func (v *FeasibilityView) NumVariables() int   { return v.oracle.NumVariables() + 2*v.m }
func (v *FeasibilityView) NumConstraints() int { return v.m }

// split separates the augmented vector [x; p; n] into its three parts.
func (v *FeasibilityView) split(xpn []float64) (x, p, n []float64) {
	nOrig := v.oracle.NumVariables()
	return xpn[:nOrig], xpn[nOrig : nOrig+v.m], xpn[nOrig+v.m : nOrig+2*v.m]
}

func (v *FeasibilityView) Objective(xpn []float64) float64 {
	x, p, n := v.split(xpn)
	obj := 0.0
	for i := 0; i < v.m; i++ {
		obj += v.eta * (p[i] + n[i])
	}
	if v.rho > 0 && v.xRef != nil {
		for i, xi := range x {
			d := xi - v.xRef[i]
			obj += 0.5 * v.rho * d * d
		}
	}
	return obj
}

func (v *FeasibilityView) ObjectiveGradient(xpn []float64, grad []float64) {
	x, _, _ := v.split(xpn)
	nOrig := len(x)
	for i := 0; i < nOrig; i++ {
		if v.rho > 0 && v.xRef != nil {
			grad[i] = v.rho * (x[i] - v.xRef[i])
		} else {
			grad[i] = 0
		}
	}
	for i := 0; i < 2*v.m; i++ {
		grad[nOrig+i] = v.eta
	}
}

func (v *FeasibilityView) Constraints(xpn []float64, c []float64) {
	x, p, n := v.split(xpn)
	v.oracle.Constraints(x, c)
	for i := range c {
		c[i] += p[i] - n[i]
	}
}

func (v *FeasibilityView) ConstraintJacobian(xpn []float64) *linalg.RectMatrix {
	x, _, _ := v.split(xpn)
	nOrig := len(x)
	base := v.oracle.ConstraintJacobian(x)
	out := linalg.NewRectMatrix(v.m, nOrig+2*v.m, base.NumNonzeros()+2*v.m)
	base.ForEach(func(i, j int, val float64) { out.Add(i, j, val) })
	for i := 0; i < v.m; i++ {
		out.Add(i, nOrig+i, 1)
		out.Add(i, nOrig+v.m+i, -1)
	}
	return out
}

func (v *FeasibilityView) LagrangianHessian(xpn []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix {
	x, _, _ := v.split(xpn)
	nOrig := len(x)
	base := v.oracle.LagrangianHessian(x, sigma, lambda)
	out := linalg.NewSymmetricMatrix(nOrig+2*v.m, base.NumNonzeros())
	base.ForEach(func(i, j int, val float64) { out.Add(i, j, val) })
	if v.rho > 0 {
		for i := 0; i < nOrig; i++ {
			out.Add(i, i, v.rho)
		}
	}
	return out
}

func (v *FeasibilityView) VariableBounds() []Bound {
	orig := v.oracle.VariableBounds()
	out := make([]Bound, 0, len(orig)+2*v.m)
	out = append(out, orig...)
	for i := 0; i < 2*v.m; i++ {
		out = append(out, Bound{Lower: 0, Upper: math.NaN()})
	}
	return out
}

func (v *FeasibilityView) ConstraintBounds() []Bound { return v.oracle.ConstraintBounds() }
func (v *FeasibilityView) ObjectiveSign() float64    { return 1 }
func (v *FeasibilityView) NumElasticVariables() int   { return 2 * v.m }
func (v *FeasibilityView) NumElasticConstraints() int { return 0 }
func (v *FeasibilityView) Underlying() Oracle         { return v.oracle }
