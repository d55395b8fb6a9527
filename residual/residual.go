// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package residual computes the KKT residual measures of §4.J:
// stationarity, complementarity and primal infeasibility, together
// with the IPOPT-style scaling factors s_d, s_c that keep those
// residuals comparable across problems with large multipliers. The
// driver, the mechanisms, the relaxation strategies and the
// interior-point subproblem call Evaluate directly; only the driver
// caches the result on the accepted model.Iterate (via SetResiduals).
package residual

import (
	"math"

	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/model"
)

// DefaultScaleMax is IPOPT's s_max, the scaling cap below which no
// rescaling is applied (§4.J).
const DefaultScaleMax = 100.0

// Measures is the full set of KKT residuals computed at an iterate.
type Measures struct {
	Stationarity        float64
	Complementarity      float64
	PrimalInfeasibility float64
	ScaleDual            float64
	ScaleComplementarity float64
}

// Evaluate computes the residual measures at it and returns them
// without storing them on it (the caller decides whether to cache them
// via Iterate.SetResiduals). scaleMax should normally be DefaultScaleMax.
func Evaluate(problem model.Problem, it *model.Iterate, scaleMax float64) Measures {
	n := problem.NumVariables()
	m := problem.NumConstraints()

	grad := it.ObjectiveGradient(problem)
	jac := it.Jacobian(problem)

	lagrangianGrad := make([]float64, n)
	for i := 0; i < n; i++ {
		lagrangianGrad[i] = it.Sigma * grad[i]
	}
	jac.ForEach(func(row, col int, val float64) {
		lagrangianGrad[col] += val * it.Mult.Constraints[row]
	})
	for i := 0; i < n; i++ {
		lagrangianGrad[i] -= it.Mult.LowerBounds[i]
		lagrangianGrad[i] -= it.Mult.UpperBounds[i]
	}

	sd, sc := scalingFactors(it.Mult, n, m, scaleMax)

	stationarity := linalg.InfNorm(lagrangianGrad) / sd
	complementarity := complementarityResidual(problem, it) / sc
	infeasibility := primalInfeasibility(problem, it)

	return Measures{
		Stationarity:         stationarity,
		Complementarity:      complementarity,
		PrimalInfeasibility:  infeasibility,
		ScaleDual:            sd,
		ScaleComplementarity: sc,
	}
}

// scalingFactors implements IPOPT's s_d, s_c formulas (§4.J): the
// average ℓ1 magnitude of the multipliers, divided by s_max once it
// exceeds that cap, so that problems with huge multipliers don't make
// every residual look artificially large.
func scalingFactors(mult model.Multipliers, n, m int, scaleMax float64) (sd, sc float64) {
	if scaleMax <= 0 {
		scaleMax = DefaultScaleMax
	}
	dualSum := linalg.Norm(mult.Constraints, linalg.L1) +
		linalg.Norm(mult.LowerBounds, linalg.L1) +
		linalg.Norm(mult.UpperBounds, linalg.L1)
	denom := float64(n + m)
	if denom == 0 {
		denom = 1
	}
	sd = math.Max(scaleMax, dualSum/denom) / scaleMax

	boundSum := linalg.Norm(mult.LowerBounds, linalg.L1) + linalg.Norm(mult.UpperBounds, linalg.L1)
	nf := float64(n)
	if nf == 0 {
		nf = 1
	}
	sc = math.Max(scaleMax, boundSum/nf) / scaleMax

	return sd, sc
}

// complementarityResidual returns max over all bound/constraint pairs
// of the complementarity violation |z·(x - bound)|, the discrete analog
// of §4.J's Σ z_i(x_i - bound_i) = 0 requirement.
func complementarityResidual(problem model.Problem, it *model.Iterate) float64 {
	bounds := problem.VariableBounds()
	x := it.X
	worst := 0.0
	for i, b := range bounds {
		if !math.IsNaN(b.Lower) {
			worst = math.Max(worst, math.Abs(it.Mult.LowerBounds[i]*(x[i]-b.Lower)))
		}
		if !math.IsNaN(b.Upper) {
			worst = math.Max(worst, math.Abs(it.Mult.UpperBounds[i]*(x[i]-b.Upper)))
		}
	}
	c := it.Constraints(problem)
	conBounds := problem.ConstraintBounds()
	for i, b := range conBounds {
		lam := it.Mult.Constraints[i]
		if lam >= 0 && !math.IsNaN(b.Lower) {
			worst = math.Max(worst, math.Abs(lam*(c[i]-b.Lower)))
		}
		if lam <= 0 && !math.IsNaN(b.Upper) {
			worst = math.Max(worst, math.Abs(lam*(c[i]-b.Upper)))
		}
	}
	return worst
}

// primalInfeasibility returns the ℓ1 sum of constraint and variable
// bound violations at the current iterate (§3 "infeasibility
// measure"), the quantity minimized by feasibility restoration.
func primalInfeasibility(problem model.Problem, it *model.Iterate) float64 {
	c := it.Constraints(problem)
	bounds := problem.ConstraintBounds()
	total := 0.0
	for i, b := range bounds {
		total += violation(c[i], b)
	}
	varBounds := problem.VariableBounds()
	for i, b := range varBounds {
		total += violation(it.X[i], b)
	}
	return total
}

func violation(v float64, b model.Bound) float64 {
	switch {
	case !math.IsNaN(b.Lower) && v < b.Lower:
		return b.Lower - v
	case !math.IsNaN(b.Upper) && v > b.Upper:
		return v - b.Upper
	default:
		return 0
	}
}
