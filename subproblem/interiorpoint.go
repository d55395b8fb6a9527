// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subproblem

import (
	"math"

	"github.com/worc4021/Uno/hessian"
	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/linsolve"
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/residual"
	"github.com/worc4021/Uno/strategy"
)

// InteriorPoint implements the primal-dual barrier subproblem of §4.E
// step 2: general constraints are eliminated to equalities via a slack
// vector s bounded by the original constraint bounds, both x and s
// receive a logarithmic barrier, and every Newton step solves the
// reduced KKT system
//
//	⎡ W + Σ_x + δ_w I        Jᵀ         ⎤ ⎡Δx⎤   ⎡ -∇_x L ⎤
//	⎣ J                -(Σ_s⁻¹ + δ_c I) ⎦ ⎣Δλ⎦ = ⎣ -(c(x)-s) ⎦
//
// with δ_w grown geometrically from a seed by trial factorization, and
// δ_c set once to a small fixed seed after the first failed trial, until
// the inertia (n positive, m negative, 0 zero) certifies a descent
// direction — the retry idiom of hessian.ConvexifyMatrix applied to the
// bordered system instead of H alone.
type InteriorPoint struct {
	factorizer *linsolve.Factorizer
	hessian    hessian.Model
	maxN, maxM int

	mu float64

	// Warm-started slack state; the driver never sees s directly, only
	// the resulting Direction.
	s, zsLower, zsUpper []float64
	initialized          bool

	gradDotD float64
	quadDotD float64

	// Tunable Fiacco-McCormick barrier parameters (§6.2's tau_min,
	// k_sigma, k_mu, theta_mu, kappa keys), exported so
	// uno.Options.FromMap can override the defaults NewInteriorPoint
	// seeds them with.
	TauMin             float64 // floor on the fraction-to-boundary margin τ
	KappaSigma         float64 // bound-multiplier safeguard κ_Σ
	MuLinearDecrease   float64 // κ_μ, the linear barrier-decrease factor
	MuSuperlinearPower float64 // θ_μ, the superlinear barrier-decrease exponent
	MuFloor            float64
	Kappa              float64 // κ in τ = max(τ_min, 1 - κμ)

	// KappaEpsilon gates the barrier decrease (§6.2's k_epsilon key): μ
	// only shrinks once the scaled KKT error at the current μ falls
	// below KappaEpsilon*μ. KKTTolerance is ε_tol, the outer driver's
	// convergence tolerance, floor-ing the new μ at ε_tol/10. ScaleMax
	// is the s_max cap passed to residual.Evaluate for that check.
	KappaEpsilon float64
	KKTTolerance float64
	ScaleMax     float64

	// Accept is the globalization strategy owned by the caller for the
	// phase this subproblem is currently solving; a barrier decrease
	// resets its filter/merit history (§4.E step 5) since the envelope
	// built around the old, larger μ no longer applies. May be nil.
	Accept strategy.AcceptanceStrategy
}

const (
	ipMuInitial       = 0.1
	ipMuReduceFactor  = 0.2
	ipMuSuperlinear   = 1.5
	ipMuFloor         = 1e-11
	ipKappaSigma      = 1e10
	ipKappaEpsilon    = 10.0
	ipDeltaWSeed      = 1e-4
	ipDeltaWGrowth    = 8.0
	ipDeltaCSeed      = 1e-8
	ipDeltaMax        = 1e40
	ipInertiaTrials   = 60
	ipBoundaryDefault = 0.99
)

// NewInteriorPoint allocates an InteriorPoint subproblem for problems
// up to maxN variables and maxM general constraints.
func NewInteriorPoint(maxN, maxM int, hessianModel hessian.Model) *InteriorPoint {
	return &InteriorPoint{
		factorizer:         linsolve.NewFactorizer(maxN + maxM),
		hessian:            hessianModel,
		maxN:               maxN,
		maxM:               maxM,
		mu:                 ipMuInitial,
		TauMin:             ipBoundaryDefault,
		KappaSigma:         ipKappaSigma,
		MuLinearDecrease:   ipMuReduceFactor,
		MuSuperlinearPower: ipMuSuperlinear,
		MuFloor:            ipMuFloor,
		Kappa:              1,
		KappaEpsilon:       ipKappaEpsilon,
		KKTTolerance:       ipMuFloor,
		ScaleMax:           residual.DefaultScaleMax,
	}
}

// Mu returns the current barrier parameter.
func (ip *InteriorPoint) Mu() float64 { return ip.mu }

func (ip *InteriorPoint) ensureSlack(problem model.Problem, iterate *model.Iterate) {
	m := problem.NumConstraints()
	if ip.initialized && len(ip.s) == m {
		return
	}
	c := iterate.Constraints(problem)
	bounds := problem.ConstraintBounds()
	ip.s = make([]float64, m)
	ip.zsLower = make([]float64, m)
	ip.zsUpper = make([]float64, m)
	for j, b := range bounds {
		ip.s[j] = boundedInterior(c[j], b, 1)
		ip.zsLower[j] = 1
		ip.zsUpper[j] = -1
	}
	ip.initialized = true
}

// boundedInterior nudges v strictly inside [b.Lower, b.Upper] by margin
// on whichever side it violates, mirroring the "push interior point off
// the boundary" step every barrier-method cold start needs.
func boundedInterior(v float64, b model.Bound, margin float64) float64 {
	lo, hi := b.Lower, b.Upper
	switch {
	case !math.IsNaN(lo) && !math.IsNaN(hi):
		if v <= lo || v >= hi {
			return 0.5 * (lo + hi)
		}
		return v
	case !math.IsNaN(lo):
		if v <= lo {
			return lo + margin
		}
		return v
	case !math.IsNaN(hi):
		if v >= hi {
			return hi - margin
		}
		return v
	default:
		return v
	}
}

// Solve advances one primal-dual Newton step of the barrier subproblem
// and returns it as a Direction. radius is accepted for interface
// symmetry with SQP but the barrier method does not use a trust
// region; the fraction-to-boundary rule plays that role instead.
func (ip *InteriorPoint) Solve(problem model.Problem, iterate *model.Iterate, _ float64) *model.Direction {
	n, m := problem.NumVariables(), problem.NumConstraints()
	ip.ensureSlack(problem, iterate)

	x := iterate.X
	grad := iterate.ObjectiveGradient(problem)
	jac := iterate.Jacobian(problem)
	c := iterate.Constraints(problem)
	h := ip.hessian.Evaluate(problem, iterate)
	varBounds := problem.VariableBounds()
	conBounds := problem.ConstraintBounds()

	sigmaX := make([]float64, n)
	for i := 0; i < n; i++ {
		sigmaX[i] = barrierSigma(x[i], iterate.Mult.LowerBounds[i], iterate.Mult.UpperBounds[i], varBounds[i])
	}
	sigmaSInv := make([]float64, m)
	for j := 0; j < m; j++ {
		sigma := barrierSigma(ip.s[j], ip.zsLower[j], ip.zsUpper[j], conBounds[j])
		if sigma > 0 {
			sigmaSInv[j] = 1 / sigma
		}
	}

	rhsX := make([]float64, n)
	for i := 0; i < n; i++ {
		rhsX[i] = -(grad[i] - iterate.Mult.LowerBounds[i] - iterate.Mult.UpperBounds[i])
	}
	jac.ForEach(func(row, col int, val float64) {
		rhsX[col] -= val * iterate.Mult.Constraints[row]
	})
	rhsLambda := make([]float64, m)
	for j := 0; j < m; j++ {
		rhsLambda[j] = -(c[j] - ip.s[j])
	}

	dim := n + m
	deltaW, deltaC := 0.0, 0.0
	var dx, dlambda []float64
	for trial := 0; trial < ipInertiaTrials; trial++ {
		k := linalg.NewSymmetricMatrix(dim, dim*4)
		h.ForEach(func(i, j int, v float64) { k.Add(i, j, v) })
		for i := 0; i < n; i++ {
			k.Add(i, i, sigmaX[i]+deltaW)
		}
		jac.ForEach(func(row, col int, val float64) { k.Add(n+row, col, val) })
		for j := 0; j < m; j++ {
			k.Add(n+j, n+j, -(sigmaSInv[j] + deltaC))
		}

		rhs := make([]float64, dim)
		copy(rhs[:n], rhsX)
		copy(rhs[n:], rhsLambda)

		if err := ip.factorizer.Factorize(k, true); err == nil {
			inertia := ip.factorizer.Inertia()
			if inertia.Equal(n, m) {
				sol := make([]float64, dim)
				if err := ip.factorizer.Solve(k, rhs, sol, true); err == nil {
					dx, dlambda = sol[:n], sol[n:]
					break
				}
			}
		}

		if deltaW == 0 {
			deltaW = ipDeltaWSeed
		} else {
			deltaW *= ipDeltaWGrowth
		}
		if deltaC == 0 {
			deltaC = ipDeltaCSeed
		}
		if deltaW > ipDeltaMax {
			break
		}
	}

	direction := model.NewDirection(n, m)
	if dx == nil {
		direction.SubproblemStatus = 3 // ERROR: inertia correction failed to converge
		return direction
	}

	copy(direction.Primal, dx)
	copy(direction.DeltaMult.Constraints, dlambda)

	ds := make([]float64, m)
	for j := 0; j < m; j++ {
		ds[j] = sigmaSInv[j] * dlambda[j]
	}

	tau := math.Max(ip.TauMin, 1-ip.Kappa*ip.mu)
	alphaPrimal := fractionToBoundaryPrimal(x, dx, varBounds, tau)
	alphaPrimal = math.Min(alphaPrimal, fractionToBoundaryPrimal(ip.s, ds, conBounds, tau))

	dzLower := make([]float64, n)
	dzUpper := make([]float64, n)
	for i := 0; i < n; i++ {
		dzLower[i], dzUpper[i] = boundDualStep(x[i], dx[i], iterate.Mult.LowerBounds[i], iterate.Mult.UpperBounds[i], varBounds[i], ip.mu)
	}
	alphaDual := fractionToBoundaryDual(iterate.Mult.LowerBounds, iterate.Mult.UpperBounds, dzLower, dzUpper, tau)

	copy(direction.DeltaMult.LowerBounds, dzLower)
	copy(direction.DeltaMult.UpperBounds, dzUpper)
	direction.NormInf = linalg.InfNorm(dx)
	direction.SubproblemStatus = 0
	direction.FractionToBoundary = alphaPrimal

	direction.ActiveLower = make([]bool, n)
	direction.ActiveUpper = make([]bool, n)
	for i := 0; i < n; i++ {
		b := varBounds[i]
		if !math.IsNaN(b.Lower) && x[i]-b.Lower < 1e-8 {
			direction.ActiveLower[i] = true
		}
		if !math.IsNaN(b.Upper) && b.Upper-x[i] < 1e-8 {
			direction.ActiveUpper[i] = true
		}
	}

	ip.gradDotD = linalg.Dot(grad, dx)
	ip.quadDotD = quadraticForm(h, dx)

	// Apply the accepted slack/dual step immediately; the primal x step
	// itself is applied by the owning mechanism (line search/trust
	// region) after globalization decides the step length, but the
	// internal slack and its duals are this subproblem's private state.
	for j := 0; j < m; j++ {
		ip.s[j] += alphaPrimal * ds[j]
	}
	for i := 0; i < n; i++ {
		iterate.Mult.LowerBounds[i] = safeguardBoundDual(iterate.Mult.LowerBounds[i]+alphaDual*dzLower[i], x[i], varBounds[i].Lower, ip.mu, ip.KappaSigma, true)
		iterate.Mult.UpperBounds[i] = safeguardBoundDual(iterate.Mult.UpperBounds[i]+alphaDual*dzUpper[i], x[i], varBounds[i].Upper, ip.mu, ip.KappaSigma, false)
	}

	ip.updateBarrierParameter(problem, iterate)

	return direction
}

// barrierSigma returns the diagonal Σ entry z_L/(v-l) + (-z_U)/(u-v)
// for a bounded scalar v with multipliers (zLower, zUpper).
func barrierSigma(v, zLower, zUpper float64, b model.Bound) float64 {
	sigma := 0.0
	if !math.IsNaN(b.Lower) {
		d := v - b.Lower
		if d > 0 {
			sigma += zLower / d
		}
	}
	if !math.IsNaN(b.Upper) {
		d := b.Upper - v
		if d > 0 {
			sigma += -zUpper / d
		}
	}
	return sigma
}

// boundDualStep computes the Newton update of the bound-multiplier
// pair at index i from the complementarity conditions
// z_L(x-l) = μ and z_U(u-x) = -μ, linearized around the current point.
func boundDualStep(x, dx, zLower, zUpper float64, b model.Bound, mu float64) (dzLower, dzUpper float64) {
	if !math.IsNaN(b.Lower) {
		d := x - b.Lower
		if d > 0 {
			dzLower = (mu-zLower*d)/d - zLower*dx/d
		}
	}
	if !math.IsNaN(b.Upper) {
		d := b.Upper - x
		if d > 0 {
			dzUpper = -(mu+zUpper*d)/d + zUpper*dx/d
		}
	}
	return dzLower, dzUpper
}

// safeguardBoundDual applies the Wächter-Biegler bound-multiplier
// safeguard: after the step, z is clipped back into
// [μ/(κ_Σ (x-l)), κ_Σ μ/(x-l)] (mirrored for the upper multiplier) so a
// single bad step cannot let a multiplier diverge from the size the
// barrier term implies.
func safeguardBoundDual(z, x, bound float64, mu, kappaSigma float64, isLower bool) float64 {
	if math.IsNaN(bound) {
		return 0
	}
	var d float64
	if isLower {
		d = x - bound
	} else {
		d = bound - x
	}
	if d <= 0 {
		d = 1e-12
	}
	lo := mu / (kappaSigma * d)
	hi := kappaSigma * mu / d
	mag := math.Abs(z)
	mag = math.Max(lo, math.Min(hi, mag))
	if isLower {
		return mag
	}
	return -mag
}

// fractionToBoundaryPrimal returns the largest α ∈ (0, 1] such that
// v + α·dv stays within τ of every finite bound (§4.E "fraction to
// boundary rule").
func fractionToBoundaryPrimal(v, dv []float64, bounds []model.Bound, tau float64) float64 {
	alpha := 1.0
	for i, b := range bounds {
		if !math.IsNaN(b.Lower) && dv[i] < 0 {
			limit := -tau * (v[i] - b.Lower) / dv[i]
			alpha = math.Min(alpha, limit)
		}
		if !math.IsNaN(b.Upper) && dv[i] > 0 {
			limit := tau * (b.Upper - v[i]) / dv[i]
			alpha = math.Min(alpha, limit)
		}
	}
	if alpha < 0 {
		alpha = 0
	}
	return alpha
}

// fractionToBoundaryDual is the same rule applied to the strictly
// positive/negative bound multipliers, which must never cross zero.
func fractionToBoundaryDual(zLower, zUpper, dzLower, dzUpper []float64, tau float64) float64 {
	alpha := 1.0
	for i := range zLower {
		if dzLower[i] < 0 {
			alpha = math.Min(alpha, -tau*zLower[i]/dzLower[i])
		}
		if dzUpper[i] > 0 {
			alpha = math.Min(alpha, -tau*zUpper[i]/dzUpper[i])
		}
	}
	if alpha < 0 {
		alpha = 0
	}
	return alpha
}

// updateBarrierParameter applies the gated Fiacco-McCormick rule of
// §4.E step 5: μ only shrinks once the scaled KKT error at the current
// μ (the max of stationarity, complementarity and primal infeasibility,
// each already divided by their s_max-capped scaling factor by
// residual.Evaluate) falls below κ_ε·μ. On a decrease, the new μ is
// max(ε_tol/10, min(κ_μ·μ, μ^θ_μ)), floored at ipMuFloor, and the
// caller's globalization strategy is reset since its filter/merit
// envelope was built around the old μ.
func (ip *InteriorPoint) updateBarrierParameter(problem model.Problem, iterate *model.Iterate) {
	if ip.mu <= ip.MuFloor {
		return
	}

	scaleMax := ip.ScaleMax
	if scaleMax <= 0 {
		scaleMax = residual.DefaultScaleMax
	}
	measures := residual.Evaluate(problem, iterate, scaleMax)
	kktError := math.Max(measures.Stationarity, math.Max(measures.Complementarity, measures.PrimalInfeasibility))

	kappaEpsilon := ip.KappaEpsilon
	if kappaEpsilon <= 0 {
		kappaEpsilon = ipKappaEpsilon
	}
	if kktError >= kappaEpsilon*ip.mu {
		return
	}

	candidate := math.Min(ip.MuLinearDecrease*ip.mu, math.Pow(ip.mu, ip.MuSuperlinearPower))
	ip.mu = math.Max(ip.KKTTolerance/10, math.Max(candidate, ip.MuFloor))

	if ip.Accept != nil {
		ip.Accept.Reset()
	}
}

// PredictedReduction mirrors SQP's quadratic model prediction; the
// barrier subproblem's own model is quadratic in (Δx, Δλ) exactly like
// the SQP QP, so the same m(0) - m(αd) formula applies to Δx.
func (ip *InteriorPoint) PredictedReduction(direction *model.Direction, stepLength float64) float64 {
	return -stepLength*ip.gradDotD - 0.5*stepLength*stepLength*ip.quadDotD
}
