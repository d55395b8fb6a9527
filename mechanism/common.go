// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mechanism implements the two globalization mechanisms of
// §4.H: LineSearch (backtracking with second-order correction) and
// TrustRegion (radius management driven by the ratio of actual to
// predicted reduction). Both drive a subproblem.Subproblem and hand
// the resulting trial iterate to a strategy.AcceptanceStrategy,
// exactly the separation lbfgsb keeps between performLineSearch (the
// step-size search) and the direction-generating Cauchy/subspace-min
// steps that feed it.
package mechanism

import (
	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/strategy"
	"github.com/worc4021/Uno/subproblem"
)

// Mechanism is the shared capability of LineSearch and TrustRegion (§9
// "expose capability sets"): drive the subproblem for one outer
// iteration and return the resulting trial iterate, or report Stuck so
// the driver/relaxation strategy can react (phase switch, infeasible
// stationary point).
type Mechanism interface {
	Advance(problem model.Problem, iterate *model.Iterate, sub subproblem.Subproblem, accept strategy.AcceptanceStrategy) Outcome
}

var (
	_ Mechanism = (*LineSearch)(nil)
	_ Mechanism = (*TrustRegion)(nil)
)

// AssembleTrialIterate builds x + stepLength·d, projected onto the
// problem's variable bounds, and the correspondingly displaced
// multipliers — the "assemble_trial_iterate" step shared by both
// mechanisms (§4.H).
func AssembleTrialIterate(problem model.Problem, iterate *model.Iterate, direction *model.Direction, stepLength float64) *model.Iterate {
	n := problem.NumVariables()
	bounds := problem.VariableBounds()

	trialX := make([]float64, n)
	for i := 0; i < n; i++ {
		trialX[i] = linalg.Clamp(iterate.X[i]+stepLength*direction.Primal[i], bounds[i].Lower, bounds[i].Upper)
	}

	trial := model.NewIterate(trialX, n, problem.NumConstraints())
	trial.Sigma = iterate.Sigma

	trial.Mult.Constraints = make([]float64, len(iterate.Mult.Constraints))
	for i := range trial.Mult.Constraints {
		trial.Mult.Constraints[i] = iterate.Mult.Constraints[i] + stepLength*direction.DeltaMult.Constraints[i]
	}
	trial.Mult.LowerBounds = make([]float64, n)
	trial.Mult.UpperBounds = make([]float64, n)
	for i := 0; i < n; i++ {
		trial.Mult.LowerBounds[i] = iterate.Mult.LowerBounds[i] + stepLength*direction.DeltaMult.LowerBounds[i]
		trial.Mult.UpperBounds[i] = iterate.Mult.UpperBounds[i] + stepLength*direction.DeltaMult.UpperBounds[i]
	}

	return trial
}
