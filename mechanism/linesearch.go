// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mechanism

import (
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/residual"
	"github.com/worc4021/Uno/strategy"
	"github.com/worc4021/Uno/subproblem"
)

// linearizedInfeasibilityReduction estimates how much of the current
// infeasibility the direction's linearized constraint partition
// predicts will be resolved: the fraction of all linearized constraints
// in the direction's partition that are not flagged infeasible at d
// (every constraint counts in the denominator, not only those violated
// at the current iterate), scaled by the current infeasibility measure.
// An empty partition yields the whole current infeasibility. Used by the
// ℓ1 merit function's
// penalty update (§4.E step 1's "predicted reduction ... for merit").
func linearizedInfeasibilityReduction(currentInfeasibility float64, direction *model.Direction) float64 {
	if len(direction.InfeasibleConstraints) == 0 {
		return currentInfeasibility
	}
	remaining := 0
	for _, infeasible := range direction.InfeasibleConstraints {
		if infeasible {
			remaining++
		}
	}
	resolvedFraction := 1 - float64(remaining)/float64(len(direction.InfeasibleConstraints))
	return currentInfeasibility * resolvedFraction
}

// SecondOrderCorrector is the optional capability a subproblem may
// implement (§4.H H1): one extra solve using constraints linearized at
// the trial point x+αd instead of x, recovering directions the filter
// or merit function rejects purely because of constraint curvature
// (the Maratos effect).
type SecondOrderCorrector interface {
	Correct(problem model.Problem, iterate *model.Iterate, direction *model.Direction, trialConstraints []float64) *model.Direction
}

const (
	lineSearchDefaultRatio   = 0.5
	lineSearchDefaultMinStep = 1e-12
)

// LineSearch is the backtracking globalization mechanism of §4.H H1:
// one direction computed per outer iteration, geometric step-length
// backtracking gated by an AcceptanceStrategy, a single second-order-
// correction retry at the smallest rejected step, then a signal back to
// the caller that the relaxation strategy should switch phase.
type LineSearch struct {
	Ratio    float64
	MinStep  float64
	ScaleMax float64
}

// NewLineSearch constructs a LineSearch with backtracking ratio
// β ∈ (0,1) and minimum step length α_min.
func NewLineSearch(ratio, minStep, scaleMax float64) *LineSearch {
	if ratio <= 0 || ratio >= 1 {
		ratio = lineSearchDefaultRatio
	}
	if minStep <= 0 {
		minStep = lineSearchDefaultMinStep
	}
	return &LineSearch{Ratio: ratio, MinStep: minStep, ScaleMax: scaleMax}
}

// Outcome reports what a mechanism did for one outer iteration: the
// trial iterate (equal to the input iterate when not accepted), the
// direction that produced it, the step length used, whether it was
// accepted, and whether the mechanism is "stuck" — exhausted every
// retry it owns and wants the relaxation strategy to switch phase
// (§4.H H1 "hand control back to F") or the driver to declare
// infeasible-stationary (§4.H H2).
type Outcome struct {
	Iterate    *model.Iterate
	Direction  *model.Direction
	StepLength float64
	Accepted   bool
	Stuck      bool
	UsedSOC    bool
}

// Advance computes one direction from sub (radius 0, i.e. unconstrained
// by a trust region) and backtracks α from the direction's fraction-to-
// boundary cap by Ratio until accept approves the trial or α falls
// below MinStep, at which point it tries one second-order correction.
func (ls *LineSearch) Advance(problem model.Problem, iterate *model.Iterate, sub subproblem.Subproblem, accept strategy.AcceptanceStrategy) Outcome {
	direction := sub.Solve(problem, iterate, 0)
	if direction.SubproblemStatus != 0 {
		return Outcome{Iterate: iterate, Direction: direction, Accepted: false, Stuck: true}
	}

	currentMeasures := residual.Evaluate(problem, iterate, ls.ScaleMax)
	currentObj := iterate.Objective(problem)

	if updater, ok := accept.(strategy.PenaltyUpdater); ok {
		predictedObj := sub.PredictedReduction(direction, 1)
		predictedInfeas := linearizedInfeasibilityReduction(currentMeasures.PrimalInfeasibility, direction)
		updater.UpdatePenalty(predictedObj, predictedInfeas)
	}

	alpha := direction.FractionToBoundary
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}

	for alpha >= ls.MinStep {
		trial := AssembleTrialIterate(problem, iterate, direction, alpha)
		trialObj := trial.Objective(problem)
		trialMeasures := residual.Evaluate(problem, trial, ls.ScaleMax)
		predicted := sub.PredictedReduction(direction, alpha)

		if accept.IsAcceptable(currentMeasures.PrimalInfeasibility, currentObj, trialMeasures.PrimalInfeasibility, trialObj, predicted) {
			accept.Accept(trialMeasures.PrimalInfeasibility, trialObj)
			return Outcome{Iterate: trial, Direction: direction, StepLength: alpha, Accepted: true}
		}
		alpha *= ls.Ratio
	}

	if corrector, ok := sub.(SecondOrderCorrector); ok {
		smallest := AssembleTrialIterate(problem, iterate, direction, ls.MinStep)
		corrected := corrector.Correct(problem, iterate, direction, smallest.Constraints(problem))
		socTrial := AssembleTrialIterate(problem, iterate, corrected, 1)
		socObj := socTrial.Objective(problem)
		socMeasures := residual.Evaluate(problem, socTrial, ls.ScaleMax)
		predicted := sub.PredictedReduction(corrected, 1)

		if accept.IsAcceptable(currentMeasures.PrimalInfeasibility, currentObj, socMeasures.PrimalInfeasibility, socObj, predicted) {
			accept.Accept(socMeasures.PrimalInfeasibility, socObj)
			return Outcome{Iterate: socTrial, Direction: corrected, StepLength: 1, Accepted: true, UsedSOC: true}
		}
	}

	return Outcome{Iterate: iterate, Direction: direction, Accepted: false, Stuck: true}
}
