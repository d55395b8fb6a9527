// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mechanism

import (
	"math"

	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/residual"
	"github.com/worc4021/Uno/strategy"
	"github.com/worc4021/Uno/subproblem"
)

const (
	trDefaultInitial    = 1.0
	trDefaultMin        = 1e-10
	trDefaultMax        = 1e10
	trDefaultShrink     = 0.5
	trDefaultExpand     = 2.0
	trDefaultEtaSuccess = 1e-8
	trDefaultEtaExpand  = 0.75
	trDefaultEtaFail    = 1e-8
)

// TrustRegion is the radius-managed globalization mechanism of §4.H H2:
// at every outer iteration the subproblem is re-solved with the
// direction constrained to the current box ‖d‖∞ ≤ Δ, and the radius
// grows or shrinks from the ratio ρ = actual/predicted reduction,
// exactly as lbfgsb's Cauchy-point step is first bounded by its own box
// before any refinement — here the box itself is what adapts between
// iterations.
type TrustRegion struct {
	Radius float64

	Min, Max               float64
	Shrink, Expand         float64
	EtaSuccess, EtaExpand  float64
	EtaFail                float64
	ScaleMax               float64
}

// NewTrustRegion constructs a TrustRegion at the given initial radius,
// falling back to defaults for any non-positive/out-of-range parameter.
func NewTrustRegion(initial, min, max, shrink, expand, etaSuccess, etaExpand, scaleMax float64) *TrustRegion {
	tr := &TrustRegion{
		Min: min, Max: max, Shrink: shrink, Expand: expand,
		EtaSuccess: etaSuccess, EtaExpand: etaExpand, EtaFail: trDefaultEtaFail, ScaleMax: scaleMax,
	}
	if initial <= 0 {
		initial = trDefaultInitial
	}
	if tr.Min <= 0 {
		tr.Min = trDefaultMin
	}
	if tr.Max <= 0 {
		tr.Max = trDefaultMax
	}
	if tr.Shrink <= 0 || tr.Shrink >= 1 {
		tr.Shrink = trDefaultShrink
	}
	if tr.Expand <= 1 {
		tr.Expand = trDefaultExpand
	}
	if tr.EtaSuccess <= 0 {
		tr.EtaSuccess = trDefaultEtaSuccess
	}
	if tr.EtaExpand <= tr.EtaSuccess {
		tr.EtaExpand = trDefaultEtaExpand
	}
	tr.Radius = initial
	return tr
}

// Advance solves the subproblem at the current radius, evaluates the
// actual/predicted reduction ratio ρ, and either accepts (growing the
// radius when ρ is large), or shrinks the radius and retries without
// advancing the iterate (§4.H H2). A radius that falls below Min
// reports Stuck so the driver can declare INFEASIBLE_STATIONARY_POINT
// or hand control to the relaxation strategy's feasibility phase,
// depending on the iterate's objective multiplier σ. accept is part of
// the Mechanism interface for symmetry with LineSearch but unused: §4.H
// H2 defines its own ratio-based acceptance test rather than delegating
// to the filter/merit strategy.
func (tr *TrustRegion) Advance(problem model.Problem, iterate *model.Iterate, sub subproblem.Subproblem, _ strategy.AcceptanceStrategy) Outcome {
	currentMeasures := residual.Evaluate(problem, iterate, tr.ScaleMax)
	currentObj := iterate.Objective(problem)

	for {
		direction := sub.Solve(problem, iterate, tr.Radius)
		if direction.SubproblemStatus != 0 {
			tr.Radius *= tr.Shrink
			if tr.Radius < tr.Min {
				return Outcome{Iterate: iterate, Direction: direction, Accepted: false, Stuck: true}
			}
			continue
		}

		trial := AssembleTrialIterate(problem, iterate, direction, 1)
		trialObj := trial.Objective(problem)
		trialMeasures := residual.Evaluate(problem, trial, tr.ScaleMax)

		predicted := sub.PredictedReduction(direction, 1)
		actual := currentObj - trialObj
		if trialMeasures.PrimalInfeasibility > currentMeasures.PrimalInfeasibility+1e-12 {
			// Infeasibility grew: treat like a failed ratio test rather
			// than rewarding an objective gain that worsens violation.
			actual = -math.Abs(actual) - (trialMeasures.PrimalInfeasibility - currentMeasures.PrimalInfeasibility)
		}

		var rho float64
		if predicted > 0 {
			rho = actual / predicted
		}

		switch {
		case rho >= tr.EtaSuccess:
			if rho >= tr.EtaExpand {
				tr.Radius = math.Min(tr.Expand*tr.Radius, tr.Max)
			}
			return Outcome{Iterate: trial, Direction: direction, StepLength: 1, Accepted: true}
		default:
			tr.Radius *= tr.Shrink
			if tr.Radius < tr.Min {
				return Outcome{Iterate: iterate, Direction: direction, Accepted: false, Stuck: true}
			}
		}
	}
}
