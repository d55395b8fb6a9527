// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver implements the outer convergence loop of §4.I:
// initialize the constraint-relaxation strategy (which in turn
// initializes its globalization strategy and evaluates the initial
// progress measures), repeatedly ask the globalization mechanism for an
// accepted iterate, update residuals, check termination, and return a
// Result with the final status, iterate and counters — the same
// Problem→Optimizer→Workspace→Result pipeline shape as
// slsqp.Optimizer/lbfgsb.Optimizer, generalized to the pluggable
// ingredient assembly described by spec.md §2.
package driver

import (
	"time"

	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/mechanism"
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/relax"
	"github.com/worc4021/Uno/residual"
	"github.com/worc4021/Uno/strategy"
	"github.com/worc4021/Uno/subproblem"
)

// Options carries the termination and scaling parameters of §6.2 that
// belong to the outer driver rather than to any one ingredient.
type Options struct {
	Tolerance                           float64
	LooseTolerance                      float64
	LooseToleranceConsecutiveIterations int
	MaxIterations                       int
	SmallStepFactor                     float64
	ResidualNorm                        linalg.NormKind
	UnboundedObjectiveThreshold         float64
	MaxTime                             time.Duration
	ScaleMax                            float64
}

func (o Options) scaleMax() float64 {
	if o.ScaleMax > 0 {
		return o.ScaleMax
	}
	return residual.DefaultScaleMax
}

// Summary carries the evaluation counters §6.3 requires on a Result.
type Summary struct {
	Iterations          int
	SubproblemsSolved   int
	FunctionEvaluations int
	WallTime            time.Duration
}

// Result is the outer driver's return value (§4.I, §6.3): termination
// status, the final iterate projected back onto the original
// variables/constraints (elastics stripped per §9 "the reported
// solution must be projected back to original variables"), and the
// evaluation counters.
type Result struct {
	Status      model.Status
	X           []float64
	Multipliers model.Multipliers
	Objective   float64
	Summary
}

// Driver assembles one instance of every ingredient and runs the outer
// loop of §4.I. All fields are exclusively owned per §5's ownership
// model (Driver → Mechanism → Relaxation → Subproblem → Hessian/LinearSolver).
type Driver struct {
	Oracle     model.Oracle
	Relax      relax.Strategy
	Mechanism  mechanism.Mechanism
	Accept     strategy.AcceptanceStrategy
	Subproblem subproblem.Subproblem
	Options    Options

	subproblemsSolved   int
	functionEvaluations int
}

// Run executes the outer loop starting at (x0, mult0) and returns the
// terminal Result. It is safe to call multiple times on the same
// Driver (each call resets its own counters), but not concurrently —
// the core is strictly single-threaded (§5).
func (d *Driver) Run(x0 []float64, mult0 model.Multipliers) *Result {
	start := time.Now()
	d.subproblemsSolved = 0
	d.functionEvaluations = 0

	n, m := d.Oracle.NumVariables(), d.Oracle.NumConstraints()
	iterate := model.NewIterate(x0, n, m)
	iterate.Mult = mult0
	iterate.Sigma = d.Relax.ObjectiveMultiplier()

	looseStreak := 0

	maxIterations := d.Options.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1000
	}

	for iter := 0; ; iter++ {
		if iter >= maxIterations {
			return d.finish(iterate, model.IterationLimit, iter, start)
		}
		if d.Options.MaxTime > 0 && time.Since(start) >= d.Options.MaxTime {
			return d.finish(iterate, model.TimeLimit, iter, start)
		}

		problem := d.Relax.View(d.Oracle, iterate)
		iterate.Sigma = d.Relax.ObjectiveMultiplier()

		outcome := d.Mechanism.Advance(problem, iterate, d.Subproblem, d.Accept)
		d.subproblemsSolved++
		d.functionEvaluations += 2 // objective + at least one trial re-evaluation, a lower bound

		if outcome.Direction != nil && outcome.Direction.SubproblemStatus == subproblemError {
			return d.finish(iterate, model.ErrorStatus, iter, start)
		}

		var predictedReduction float64
		if outcome.Direction != nil {
			predictedReduction = d.Subproblem.PredictedReduction(outcome.Direction, 1)
		}
		if d.Relax.Notify(outcome.Direction, problem, iterate, predictedReduction) {
			if provider, ok := d.Relax.(relax.AcceptProvider); ok {
				if next := provider.Accept(); next != nil {
					d.Accept = next
				}
			} else {
				d.Accept.Reset()
			}
			continue
		}

		if !outcome.Accepted {
			if outcome.Stuck {
				if status := d.stuckStatus(problem, iterate); status != model.NotTerminated {
					return d.finish(iterate, status, iter, start)
				}
			}
			continue
		}

		iterate = outcome.Iterate
		measures := residual.Evaluate(problem, iterate, d.Options.scaleMax())
		iterate.SetResiduals(measures.Stationarity, measures.Complementarity, measures.PrimalInfeasibility, measures.ScaleDual, measures.ScaleComplementarity)

		if status := d.checkTermination(measures, iterate, &looseStreak); status != model.NotTerminated {
			return d.finish(iterate, status, iter, start)
		}

		if d.smallStep(outcome) {
			if measures.PrimalInfeasibility <= d.Options.Tolerance {
				return d.finish(iterate, model.FeasibleSmallStep, iter, start)
			}
			return d.finish(iterate, model.InfeasibleSmallStep, iter, start)
		}

		if d.Options.UnboundedObjectiveThreshold != 0 && iterate.Objective(problem) <= d.Options.UnboundedObjectiveThreshold {
			return d.finish(iterate, model.Unbounded, iter, start)
		}
	}
}

// subproblemError is subproblem.Subproblem's fatal SubproblemStatus
// value (§4.E E2's UnstableInertiaCorrection); duplicated here to avoid
// an import of qpsolve just for one constant.
const subproblemError = 3

// checkTermination implements the Open-Question decision of spec.md §9:
// a single combined check covering both the tight tolerance and the
// loose-tolerance relaxation (rather than two independent code paths),
// distinguishing FEASIBLE_KKT_POINT (σ=1), FJ_POINT (σ=0, feasible,
// multipliers not all zero) and INFEASIBLE_STATIONARY_POINT (σ=0,
// infeasible but stationary for the infeasibility measure).
func (d *Driver) checkTermination(measures residual.Measures, iterate *model.Iterate, looseStreak *int) model.Status {
	tol := d.Options.Tolerance
	tight := measures.Stationarity <= tol && measures.Complementarity <= tol

	loose := d.Options.LooseTolerance > 0 &&
		measures.Stationarity <= d.Options.LooseTolerance &&
		measures.Complementarity <= d.Options.LooseTolerance

	if loose && !tight {
		*looseStreak++
	} else {
		*looseStreak = 0
	}

	satisfied := tight
	if d.Options.LooseToleranceConsecutiveIterations > 0 && *looseStreak >= d.Options.LooseToleranceConsecutiveIterations {
		satisfied = true
	}
	if !satisfied {
		return model.NotTerminated
	}

	feasible := measures.PrimalInfeasibility <= tol
	switch {
	case feasible && iterate.Sigma != 0:
		return model.FeasibleKKTPoint
	case feasible:
		if iterate.Mult.CombinedMagnitudeZero(tol) {
			return model.FeasibleKKTPoint
		}
		return model.FJPoint
	case iterate.Sigma == 0:
		return model.InfeasibleStationaryPoint
	default:
		return model.NotTerminated
	}
}

// stuckStatus classifies a mechanism's Stuck report (§4.H H1's
// exhausted backtracking+SOC, H2's radius below minimum) once the
// relaxation strategy has already had its chance to switch phase.
func (d *Driver) stuckStatus(problem model.Problem, iterate *model.Iterate) model.Status {
	measures := residual.Evaluate(problem, iterate, d.Options.scaleMax())
	if measures.PrimalInfeasibility <= d.Options.Tolerance {
		return model.FeasibleSmallStep
	}
	if iterate.Sigma == 0 {
		return model.InfeasibleStationaryPoint
	}
	return model.InfeasibleSmallStep
}

// smallStep implements §7's StepTooSmall detection: the accepted
// direction's ℓ∞ norm is negligible relative to the current point.
func (d *Driver) smallStep(outcome mechanism.Outcome) bool {
	if outcome.Direction == nil || d.Options.SmallStepFactor <= 0 {
		return false
	}
	return outcome.Direction.NormInf <= d.Options.SmallStepFactor*(1+linalg.InfNorm(outcome.Iterate.X))
}

// finish projects the iterate back onto the original problem's
// variables/constraints (stripping any elastics the active relaxation
// view added, §9 "Elastic reformulation"), runs the oracle's optional
// PostProcessor, and assembles the Result.
func (d *Driver) finish(iterate *model.Iterate, status model.Status, iterations int, start time.Time) *Result {
	n, m := d.Oracle.NumVariables(), d.Oracle.NumConstraints()

	x := iterate.X
	if len(x) > n {
		x = x[:n]
	}
	mult := model.Multipliers{
		Constraints: truncate(iterate.Mult.Constraints, m),
		LowerBounds: truncate(iterate.Mult.LowerBounds, n),
		UpperBounds: truncate(iterate.Mult.UpperBounds, n),
	}

	objective := d.Oracle.Objective(x) * d.Oracle.ObjectiveSign()

	if pp, ok := d.Oracle.(model.PostProcessor); ok {
		pp.PostprocessSolution(x, mult, int(status))
	}

	return &Result{
		Status:      status,
		X:           append([]float64(nil), x...),
		Multipliers: mult,
		Objective:   objective,
		Summary: Summary{
			Iterations:          iterations,
			SubproblemsSolved:   d.subproblemsSolved,
			FunctionEvaluations: d.functionEvaluations,
			WallTime:            time.Since(start),
		},
	}
}

func truncate(v []float64, n int) []float64 {
	if len(v) > n {
		v = v[:n]
	}
	return append([]float64(nil), v...)
}
