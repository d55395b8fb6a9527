// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package relax

import (
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/residual"
	"github.com/worc4021/Uno/strategy"
)

// Phase distinguishes which problem view the outer driver is currently
// solving (§4.F F1).
type Phase int

const (
	Optimality Phase = iota
	Feasibility
)

func (p Phase) String() string {
	if p == Feasibility {
		return "FEASIBILITY"
	}
	return "OPTIMALITY"
}

// Options configures a constraint-relaxation strategy; BoundRelaxation
// is the supplemental feature recovered from
// original_source/uno/preprocessing/Preprocessing.hpp's
// BoundRelaxedModel: relax every variable bound by this margin before
// feasibility restoration starts, so the starting active set is not
// degenerately "every variable at a bound". Zero (the default)
// preserves spec.md's unrelaxed behavior.
type Options struct {
	BoundRelaxation float64
	ScaleMax        float64
}

// AcceptProvider is implemented by a Strategy that owns a distinct
// globalization-strategy instance per phase (§4.F F1). The driver asks
// for the phase-appropriate instance once Notify reports a phase
// switch, instead of resetting whatever instance it already holds —
// resetting a single shared instance would discard the other phase's
// filter/merit history every time the algorithm switches back to it.
type AcceptProvider interface {
	Accept() strategy.AcceptanceStrategy
}

// FeasibilityRestoration owns the optimality/feasibility phase switch
// (§4.F F1): the outer driver hands it the optimality subproblem's own
// verdict (did the linearization turn out infeasible?), and it decides
// whether to keep going in optimality phase or divert to minimizing
// constraint violation via a model.FeasibilityView built around the
// iterate that triggered the switch. Each phase owns its own
// globalization strategy instance, supplied at construction, so that
// the merit or filter history of one phase never leaks into the other;
// switching phase resets the strategy being entered and registers it
// with the current iterate's measures.
type FeasibilityRestoration struct {
	phase Phase

	// etaProximal is the proximal-term coefficient ρ used while in
	// feasibility phase, keeping the restoration step from wandering
	// arbitrarily far from the iterate that triggered it.
	etaProximal float64
	penalty     float64

	boundRelaxation float64
	scaleMax        float64

	optimalityAccept  strategy.AcceptanceStrategy
	feasibilityAccept strategy.AcceptanceStrategy

	// view caches the feasibility-phase problem view for the duration
	// of the phase: it is centered on the iterate that triggered the
	// switch, not re-centered every iteration.
	view *model.FeasibilityView
}

const (
	frDefaultProximal = 1.0
	frDefaultPenalty  = 1.0
)

// NewFeasibilityRestoration constructs the strategy starting in
// optimality phase, wired to optimalityAccept and feasibilityAccept —
// the two globalization strategy instances the caller has assembled for
// each phase (§4.F F1). Either may be nil if the driver never needs to
// retrieve it (e.g. a caller that manages acceptance outside this
// type), but Accept() then returns nil for that phase.
func NewFeasibilityRestoration(opts Options, optimalityAccept, feasibilityAccept strategy.AcceptanceStrategy) *FeasibilityRestoration {
	return &FeasibilityRestoration{
		phase:             Optimality,
		etaProximal:       frDefaultProximal,
		penalty:           frDefaultPenalty,
		boundRelaxation:   opts.BoundRelaxation,
		scaleMax:          opts.ScaleMax,
		optimalityAccept:  optimalityAccept,
		feasibilityAccept: feasibilityAccept,
	}
}

// Phase reports the currently active phase.
func (fr *FeasibilityRestoration) Phase() Phase { return fr.phase }

// Accept returns the globalization strategy instance owned by the
// currently active phase, satisfying AcceptProvider.
func (fr *FeasibilityRestoration) Accept() strategy.AcceptanceStrategy {
	if fr.phase == Feasibility {
		return fr.feasibilityAccept
	}
	return fr.optimalityAccept
}

// View returns the problem view the subproblem should solve this
// iteration: the plain optimality view, or — while in feasibility
// phase — the elastic view centered on the iterate that triggered the
// switch (§4.F F1).
func (fr *FeasibilityRestoration) View(oracle model.Oracle, iterate *model.Iterate) model.Problem {
	if fr.phase == Feasibility {
		if fr.view == nil {
			xRef := append([]float64(nil), iterate.X...)
			fr.view = model.NewFeasibilityView(oracle, fr.penalty, xRef, fr.etaProximal)
		}
		return fr.view
	}
	if fr.boundRelaxation > 0 {
		return model.NewBoundRelaxedModel(model.NewOptimalityView(oracle), fr.boundRelaxation)
	}
	return model.NewOptimalityView(oracle)
}

// ObjectiveMultiplier returns σ for the currently active phase: 1 in
// optimality, 0 in feasibility (§3 "objective multiplier").
func (fr *FeasibilityRestoration) ObjectiveMultiplier() float64 {
	if fr.phase == Feasibility {
		return 0
	}
	return 1
}

// Notify reacts to the subproblem's verdict on the current view and
// reports whether the phase changed this call. On a switch, the
// strategy instance owned by the phase being entered is reset and
// notified of the current iterate (§4.F F1 "switching resets the
// opposing filter/merit and notifies it of the current iterate") —
// the *other* phase's instance is left untouched, preserving its
// filter/merit history for when the algorithm switches back.
// subproblemInfeasible (direction.SubproblemStatus == INFEASIBLE)
// triggers entry into feasibility phase; an empty
// linearized-infeasible-constraint set while already in feasibility
// phase triggers the return to optimality.
func (fr *FeasibilityRestoration) Notify(direction *model.Direction, problem model.Problem, iterate *model.Iterate, _ float64) bool {
	const infeasibleStatus = 1
	switch fr.phase {
	case Optimality:
		if direction.SubproblemStatus == infeasibleStatus {
			fr.phase = Feasibility
			fr.view = nil
			fr.registerEnteredPhase(problem, iterate)
			return true
		}
	case Feasibility:
		if noneInfeasible(direction.InfeasibleConstraints) {
			fr.phase = Optimality
			fr.view = nil
			fr.registerEnteredPhase(problem, iterate)
			return true
		}
	}
	return false
}

// registerEnteredPhase resets the strategy instance owned by the phase
// just entered and re-evaluates residuals to register it with the
// current iterate, so its dominance/sufficient-decrease test starts
// from a clean envelope rather than one built for the phase just left.
func (fr *FeasibilityRestoration) registerEnteredPhase(problem model.Problem, iterate *model.Iterate) {
	accept := fr.Accept()
	if accept == nil || problem == nil || iterate == nil {
		return
	}
	accept.Reset()
	scaleMax := fr.scaleMax
	if scaleMax <= 0 {
		scaleMax = residual.DefaultScaleMax
	}
	measures := residual.Evaluate(problem, iterate, scaleMax)
	accept.Accept(measures.PrimalInfeasibility, iterate.Objective(problem))
}

func noneInfeasible(flags []bool) bool {
	for _, f := range flags {
		if f {
			return false
		}
	}
	return true
}
