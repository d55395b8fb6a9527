// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uno is the public façade: it validates a model.Oracle and a
// set of Options into a Solver (mirroring
// slsqp.Problem.New/lbfgsb.Problem.New's validating constructor),
// preallocates a Workspace sized to the problem's declared dimensions,
// and runs the assembled driver.Driver to produce a driver.Result.
package uno

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/worc4021/Uno/driver"
	"github.com/worc4021/Uno/hessian"
	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/mechanism"
	"github.com/worc4021/Uno/model"
	"github.com/worc4021/Uno/relax"
	"github.com/worc4021/Uno/strategy"
	"github.com/worc4021/Uno/subproblem"
)

// RelaxationKind selects the constraint-relaxation strategy of §4.F.
type RelaxationKind string

const (
	FeasibilityRestoration RelaxationKind = "feasibility-restoration"
	L1Relaxation           RelaxationKind = "l1-relaxation"
)

// StrategyKind selects the globalization strategy of §4.G.
type StrategyKind string

const (
	L1Merit        StrategyKind = "l1-merit"
	LeyfferFilter  StrategyKind = "leyffer-filter"
	WaechterFilter StrategyKind = "waechter-filter"
)

// MechanismKind selects the globalization mechanism of §4.H.
type MechanismKind string

const (
	LineSearchMechanism  MechanismKind = "LS"
	TrustRegionMechanism MechanismKind = "TR"
)

// SubproblemKind selects the local model of §4.E.
type SubproblemKind string

const (
	QPSubproblem    SubproblemKind = "QP"
	LPSubproblem    SubproblemKind = "LP"
	InteriorPointSubproblem SubproblemKind = "primal-dual-interior-point"
)

// Options is the strongly-typed configuration of §6.2. FromMap parses
// the keyed-string-map contract into this struct once, so the core
// never re-parses strings on the hot path — the same separation
// slsqp.Problem/lbfgsb.Problem draw between the caller-facing struct
// and the internal iterSpec.
type Options struct {
	Tolerance                           float64
	LooseTolerance                      float64
	LooseToleranceConsecutiveIterations int
	MaxIterations                       int
	SmallStepFactor                     float64
	ResidualNorm                        linalg.NormKind
	UnboundedObjectiveThreshold         float64

	ConstraintRelaxation RelaxationKind
	Strategy              StrategyKind
	Mechanism             MechanismKind
	Subproblem            SubproblemKind

	BoundRelaxation float64 // §4.F supplemental feature

	// Barrier parameters (§6.2), applied to the interior-point
	// subproblem when Subproblem == InteriorPointSubproblem. KEpsilon
	// gates the barrier decrease of §4.E step 5 on the scaled KKT error.
	TauMin, KSigma, SMax, KMu, ThetaMu, Kappa, KEpsilon float64

	// Filter parameters (§6.2), applied when Strategy names a filter.
	FilterDelta, FilterUbd, FilterFact, FilterSwitchingExponent float64

	// Line-search parameters (§6.2).
	MinStepLength, LineSearchRatio float64

	// Trust-region parameters (§6.2).
	TRInitial, TRMinimum, TRMaximum, TRShrink, TRExpand, TREtaSuccess, TREtaExpand float64
}

// defaultOptions returns the Options a caller gets when a key is
// omitted from the map, matching the standard parameter choices
// documented next to each ingredient constructor.
func defaultOptions() Options {
	return Options{
		Tolerance:                           1e-8,
		LooseTolerance:                      1e-6,
		LooseToleranceConsecutiveIterations: 15,
		MaxIterations:                       1000,
		SmallStepFactor:                     1e-15,
		ResidualNorm:                        linalg.Inf,
		UnboundedObjectiveThreshold:         -1e10,

		ConstraintRelaxation: FeasibilityRestoration,
		Strategy:             WaechterFilter,
		Mechanism:            LineSearchMechanism,
		Subproblem:           QPSubproblem,

		TauMin: 0.99, KSigma: 1e10, SMax: 100, KMu: 0.2, ThetaMu: 1.5, Kappa: 1, KEpsilon: 10,
		FilterDelta: 1e-8, FilterUbd: 1e4, FilterFact: 1e-5, FilterSwitchingExponent: 1.1,
		MinStepLength: 1e-12, LineSearchRatio: 0.5,
		TRInitial: 1, TRMinimum: 1e-10, TRMaximum: 1e10, TRShrink: 0.5, TRExpand: 2, TREtaSuccess: 1e-8, TREtaExpand: 0.75,
	}
}

// FromMap parses the §6.2 keyed-string-map contract into a typed
// Options, validating every recognized key with strconv and reporting
// the first malformed entry, mirroring the switch-over-field-checks
// validation idiom of slsqp.Problem.New/lbfgsb.Problem.New. Unset keys
// keep their default.
func FromMap(m map[string]string) (*Options, error) {
	opt := defaultOptions()

	getFloat := func(key string, dst *float64) error {
		v, ok := m[key]
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("uno: option %q: %w", key, err)
		}
		*dst = f
		return nil
	}
	getInt := func(key string, dst *int) error {
		v, ok := m[key]
		if !ok {
			return nil
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("uno: option %q: %w", key, err)
		}
		*dst = i
		return nil
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"tolerance", &opt.Tolerance},
		{"loose_tolerance", &opt.LooseTolerance},
		{"small_step_factor", &opt.SmallStepFactor},
		{"unbounded_objective_threshold", &opt.UnboundedObjectiveThreshold},
		{"bound_relaxation", &opt.BoundRelaxation},
		{"tau_min", &opt.TauMin},
		{"k_sigma", &opt.KSigma},
		{"s_max", &opt.SMax},
		{"k_mu", &opt.KMu},
		{"theta_mu", &opt.ThetaMu},
		{"kappa", &opt.Kappa},
		{"k_epsilon", &opt.KEpsilon},
		{"filter_delta", &opt.FilterDelta},
		{"filter_ubd", &opt.FilterUbd},
		{"filter_fact", &opt.FilterFact},
		{"filter_switching_infeasibility_exponent", &opt.FilterSwitchingExponent},
		{"min_step_length", &opt.MinStepLength},
		{"ratio", &opt.LineSearchRatio},
		{"initial", &opt.TRInitial},
		{"minimum", &opt.TRMinimum},
		{"maximum", &opt.TRMaximum},
		{"shrink", &opt.TRShrink},
		{"expand", &opt.TRExpand},
		{"eta_success", &opt.TREtaSuccess},
		{"eta_expand", &opt.TREtaExpand},
	}
	for _, f := range floats {
		if err := getFloat(f.key, f.dst); err != nil {
			return nil, err
		}
	}

	if err := getInt("max_iterations", &opt.MaxIterations); err != nil {
		return nil, err
	}
	if err := getInt("loose_tolerance_consecutive_iteration_threshold", &opt.LooseToleranceConsecutiveIterations); err != nil {
		return nil, err
	}

	if v, ok := m["residual_norm"]; ok {
		switch v {
		case "L1":
			opt.ResidualNorm = linalg.L1
		case "L2":
			opt.ResidualNorm = linalg.L2
		case "INF":
			opt.ResidualNorm = linalg.Inf
		default:
			return nil, fmt.Errorf("uno: option %q: unrecognized residual norm %q", "residual_norm", v)
		}
	}
	if v, ok := m["constraint-relaxation"]; ok {
		switch RelaxationKind(v) {
		case FeasibilityRestoration, L1Relaxation:
			opt.ConstraintRelaxation = RelaxationKind(v)
		default:
			return nil, fmt.Errorf("uno: option %q: unrecognized constraint-relaxation %q", "constraint-relaxation", v)
		}
	}
	if v, ok := m["strategy"]; ok {
		switch StrategyKind(v) {
		case L1Merit, LeyfferFilter, WaechterFilter:
			opt.Strategy = StrategyKind(v)
		default:
			return nil, fmt.Errorf("uno: option %q: unrecognized strategy %q", "strategy", v)
		}
	}
	if v, ok := m["mechanism"]; ok {
		switch MechanismKind(v) {
		case LineSearchMechanism, TrustRegionMechanism:
			opt.Mechanism = MechanismKind(v)
		default:
			return nil, fmt.Errorf("uno: option %q: unrecognized mechanism %q", "mechanism", v)
		}
	}
	if v, ok := m["subproblem"]; ok {
		switch SubproblemKind(v) {
		case QPSubproblem, LPSubproblem, InteriorPointSubproblem:
			opt.Subproblem = SubproblemKind(v)
		default:
			return nil, fmt.Errorf("uno: option %q: unrecognized subproblem %q", "subproblem", v)
		}
	}

	if err := opt.validate(); err != nil {
		return nil, err
	}
	return &opt, nil
}

func (o Options) validate() error {
	switch {
	case o.Tolerance <= 0:
		return errors.New("uno: tolerance must be greater than 0")
	case o.MaxIterations <= 0:
		return errors.New("uno: max_iterations must be greater than 0")
	case o.LineSearchRatio <= 0 || o.LineSearchRatio >= 1:
		return errors.New("uno: ratio must lie strictly between 0 and 1")
	case o.TRShrink <= 0 || o.TRShrink >= 1:
		return errors.New("uno: shrink must lie strictly between 0 and 1")
	case o.TRExpand <= 1:
		return errors.New("uno: expand must be greater than 1")
	}
	return nil
}

// Problem is the validating-constructor input, per §4.I: an Oracle plus
// the options governing every ingredient assembled around it.
type Problem struct {
	Oracle  model.Oracle
	Options Options
}

// New validates p and assembles one instance of every ingredient named
// by p.Options into a Solver. logger may be nil, defaulting to LogNoop.
func (p *Problem) New(logger *Logger) (*Solver, error) {
	if p.Oracle == nil {
		return nil, errors.New("uno: oracle is required")
	}
	n, m := p.Oracle.NumVariables(), p.Oracle.NumConstraints()
	if n <= 0 {
		return nil, errors.New("uno: problem dimension must be greater than 0")
	}
	if err := p.Options.validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = &Logger{Level: LogNoop}
	}

	// The relaxation strategies' FeasibilityView appends 2m elastic
	// variables, so every subproblem is sized for n+2m variables.
	maxN := n + 2*m
	maxDim := maxN + m

	var hessianModel hessian.Model
	switch p.Options.Subproblem {
	case LPSubproblem:
		hessianModel = hessian.Zero{}
	default:
		hessianModel = hessian.NewExact(maxDim, true)
	}

	x0 := p.Oracle.InitialPrimalPoint()
	initialView := model.NewOptimalityView(p.Oracle)
	initialIterate := model.NewIterate(x0, n, m)
	initialInfeasibility := primalInfeasibilityAt(initialView, initialIterate)

	// newAcceptanceStrategy builds one fresh globalization-strategy
	// instance per p.Options.Strategy; called once for a shared
	// instance under L1Relaxation, or twice — once per phase — under
	// FeasibilityRestoration (§4.F F1 "each phase owns its own
	// globalization strategy instance").
	newAcceptanceStrategy := func() strategy.AcceptanceStrategy {
		if p.Options.Strategy == L1Merit {
			return strategy.NewMeritFunction()
		}
		kind := strategy.LeyfferFilter
		if p.Options.Strategy == WaechterFilter {
			kind = strategy.WachterFilter
		}
		filter := strategy.NewFilter(kind, initialInfeasibility)
		filter.SwitchingDeltaMin = p.Options.FilterDelta
		filter.KappaEnvelope = p.Options.FilterUbd
		filter.GammaTheta = p.Options.FilterFact
		filter.GammaObj = p.Options.FilterFact
		filter.SwitchingSTheta = p.Options.FilterSwitchingExponent
		return filter
	}

	relaxOpts := relax.Options{BoundRelaxation: p.Options.BoundRelaxation, ScaleMax: p.Options.SMax}
	var relaxation relax.Strategy
	var accept strategy.AcceptanceStrategy
	switch p.Options.ConstraintRelaxation {
	case L1Relaxation:
		relaxation = relax.NewL1Relaxation()
		accept = newAcceptanceStrategy()
	default:
		optimalityAccept := newAcceptanceStrategy()
		feasibilityAccept := newAcceptanceStrategy()
		relaxation = relax.NewFeasibilityRestoration(relaxOpts, optimalityAccept, feasibilityAccept)
		accept = optimalityAccept
	}

	var sub subproblem.Subproblem
	switch p.Options.Subproblem {
	case InteriorPointSubproblem:
		ip := subproblem.NewInteriorPoint(maxN, m, hessianModel)
		ip.TauMin = p.Options.TauMin
		ip.KappaSigma = p.Options.KSigma
		ip.MuLinearDecrease = p.Options.KMu
		ip.MuSuperlinearPower = p.Options.ThetaMu
		ip.Kappa = p.Options.Kappa
		ip.KappaEpsilon = p.Options.KEpsilon
		ip.KKTTolerance = p.Options.Tolerance
		ip.ScaleMax = p.Options.SMax
		ip.Accept = accept
		sub = ip
	default:
		sub = subproblem.NewSQP(maxN, m, hessianModel)
	}

	var mech mechanism.Mechanism
	switch p.Options.Mechanism {
	case TrustRegionMechanism:
		mech = mechanism.NewTrustRegion(p.Options.TRInitial, p.Options.TRMinimum, p.Options.TRMaximum,
			p.Options.TRShrink, p.Options.TRExpand, p.Options.TREtaSuccess, p.Options.TREtaExpand, p.Options.SMax)
	default:
		mech = mechanism.NewLineSearch(p.Options.LineSearchRatio, p.Options.MinStepLength, p.Options.SMax)
	}

	d := &driver.Driver{
		Oracle:     p.Oracle,
		Relax:      relaxation,
		Mechanism:  mech,
		Accept:     accept,
		Subproblem: sub,
		Options: driver.Options{
			Tolerance:                           p.Options.Tolerance,
			LooseTolerance:                      p.Options.LooseTolerance,
			LooseToleranceConsecutiveIterations: p.Options.LooseToleranceConsecutiveIterations,
			MaxIterations:                       p.Options.MaxIterations,
			SmallStepFactor:                     p.Options.SmallStepFactor,
			ResidualNorm:                        p.Options.ResidualNorm,
			UnboundedObjectiveThreshold:         p.Options.UnboundedObjectiveThreshold,
			ScaleMax:                            p.Options.SMax,
		},
	}

	return &Solver{oracle: p.Oracle, driver: d, logger: *logger, n: n, m: m}, nil
}

func primalInfeasibilityAt(problem model.Problem, it *model.Iterate) float64 {
	c := it.Constraints(problem)
	bounds := problem.ConstraintBounds()
	total := 0.0
	for i, b := range bounds {
		if !isNaN(b.Lower) && c[i] < b.Lower {
			total += b.Lower - c[i]
		}
		if !isNaN(b.Upper) && c[i] > b.Upper {
			total += c[i] - b.Upper
		}
	}
	return total
}

func isNaN(f float64) bool { return f != f }

// Solver is the validated, assembled instance of every ingredient,
// analogous to slsqp.Optimizer/lbfgsb.Optimizer. Every Solve call runs
// the same driver, whose ingredients (filter/merit history, warm-started
// QP and barrier state) keep mutable state across calls, so one Solver
// is not safe for concurrent Solve calls.
type Solver struct {
	oracle model.Oracle
	driver *driver.Driver
	logger Logger
	n, m   int
}

// Workspace is the handle Solve checks against the Solver's dimensions.
// Currently the driver owns its own scratch buffers internally per
// call, so Workspace carries only the dimensions it was sized for —
// kept as a distinct type so a future shared-buffer optimization can
// slot in without changing the public Init/Solve signatures.
type Workspace struct {
	n, m int
}

// Init allocates a Workspace recording the Solver's declared problem
// dimensions. It holds no scratch buffers, so separate Workspaces do not
// make concurrent Solve calls on one Solver safe.
func (s *Solver) Init() *Workspace {
	return &Workspace{n: s.n, m: s.m}
}

// Solve runs the assembled driver starting from the oracle's declared
// initial primal-dual point and returns the terminal driver.Result.
func (s *Solver) Solve(w *Workspace) *driver.Result {
	if w.n != s.n || w.m != s.m {
		panic("uno: workspace dimension does not match solver")
	}
	x0 := s.oracle.InitialPrimalPoint()
	mult0 := s.oracle.InitialDualPoint()

	if s.logger.enable(LogLast) {
		s.logger.log("Uno: starting solve, n=%d m=%d\n", s.n, s.m)
	}
	result := s.driver.Run(x0, mult0)
	if s.logger.enable(LogLast) {
		s.logger.log("Uno: %s after %d iterations, f=%.8g\n", result.Status, result.Iterations, result.Objective)
	}
	return result
}
