// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qpsolve implements the bound-constrained QP/LP solver of §4.C:
// minimize ½ 𝐝ᵀ𝐇𝐝 + 𝐠ᵀ𝐝 subject to 𝐥 ≤ 𝐝 ≤ 𝐮 and 𝐛_L ≤ 𝐀𝐝 ≤ 𝐛_U.
//
// The algorithm generalizes the index-set bookkeeping of
// slsqp's NNLS/LDP (ℤ = inactive, ℙ = active) from least-squares with
// nonnegativity to a general quadratic objective with two-sided bounds:
// at every iteration the working set of active bounds and active
// general constraints defines an equality-constrained QP, solved via
// the bordered KKT system
//
//	⎡ H  Cᵀ ⎤ ⎡ p ⎤   ⎡ -g_k ⎤
//	⎣ C  0  ⎦ ⎣ λ ⎦ = ⎣  0   ⎦
//
// through linsolve. A zero step with correctly signed multipliers means
// optimality; otherwise a ratio test against the inactive constraints
// determines the largest feasible step, adding a blocking constraint to
// the working set when the full step is not available.
package qpsolve

import (
	"math"

	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/linsolve"
)

// Status is the QP/LP solve outcome, per spec §4.C.
type Status int

const (
	OPTIMAL Status = iota
	INFEASIBLE
	UNBOUNDED
	ERROR
)

// Changed is the warm-start descriptor (§9 "Warm-start descriptor"):
// the caller states which ingredients changed since the previous Solve
// call. Mis-declaring "unchanged" when the data did change yields
// silently wrong answers — the caller, not this package, owns that
// contract.
type Changed struct {
	Objective       bool
	Constraints     bool
	VariableBounds  bool
	ConstraintBounds bool
	Structure       bool
}

// AllChanged is the conservative warm-start descriptor used for a cold
// start: nothing may be reused.
var AllChanged = Changed{true, true, true, true, true}

// Bound holds a two-sided range; NaN means "no bound" (±∞).
type Bound struct {
	Lower, Upper float64
}

// Problem is one QP/LP subproblem instance. H may be nil to request LP
// mode (H ≡ 0 internally, per spec §4.C).
type Problem struct {
	N, M int

	H *linalg.SymmetricMatrix // n×n, lower-triangular, nil for LP
	G []float64               // n

	VarBounds []Bound // n
	A         *linalg.CSC
	ConBounds []Bound // m
}

// activeKind distinguishes which bound of a constraint is currently
// enforced as an equality, or that the constraint is inactive.
type activeKind int

const (
	inactive activeKind = iota
	atLower
	atUpper
)

// Result is the Direction information returned to the caller: the
// step d, multipliers, the active-set partition, a feasibility
// partition of the linearized constraints, and the solve status.
type Result struct {
	D           []float64
	Multipliers []float64 // m, sign per §3 "Multipliers" (λ free in sign)
	ZLower      []float64 // n, z_L ≥ 0
	ZUpper      []float64 // n, z_U ≤ 0

	VarActive []activeKind // n
	ConActive []activeKind // m
	ConFeasible []bool     // m — true if linearized constraint i holds at d

	Status    Status
	Objective float64
}

// Solver owns the warm-startable working set and the linsolve
// factorizer backing the bordered KKT solves. Sized once to the
// maximum (n, m) ever declared, per §5's single-allocation policy.
type Solver struct {
	maxN, maxM int
	factorizer *linsolve.Factorizer

	varActive []activeKind
	conActive []activeKind

	maxIterations int
}

// NewSolver allocates a Solver whose workspace can handle any problem
// up to maxN variables and maxM general constraints.
func NewSolver(maxN, maxM int) *Solver {
	return &Solver{
		maxN:          maxN,
		maxM:          maxM,
		// The bordered KKT system has n rows plus one per active bound
		// and one per active general constraint: at most 2n+m.
		factorizer:    linsolve.NewFactorizer(2*maxN + maxM),
		varActive:     make([]activeKind, maxN),
		conActive:     make([]activeKind, maxM),
		maxIterations: 50 * (maxN + maxM + 1),
	}
}

const activeSetTol = 1e-9

// Solve finds d minimizing the quadratic model subject to the problem's
// bounds, starting the active set from the solver's warm-started state
// unless changed.Structure requests a cold restart.
func (s *Solver) Solve(p *Problem, changed Changed, out *Result) {
	n, m := p.N, p.M

	cold := changed.Structure || len(out.D) != n
	if cold {
		for i := range s.varActive[:n] {
			s.varActive[i] = inactive
		}
		for i := range s.conActive[:m] {
			s.conActive[i] = inactive
		}
	}

	// A pure LP (H == nil) has no curvature to pin down a unique step
	// from an interior point: the equality-constrained KKT system is
	// singular unless the working set already supplies n independent
	// active rows. Start it at a bound-active vertex instead of the box
	// midpoint, one active bound per variable with a finite bound (free
	// variables stay inactive at 0), so the first solveEquality
	// call has a well-posed (if not yet optimal) working set to relax
	// from — the same vertex-to-vertex convention a simplex-style LP
	// active-set method uses.
	x := make([]float64, n)
	for i, b := range p.VarBounds {
		switch {
		case p.H == nil && !math.IsNaN(b.Lower):
			x[i] = b.Lower
			if cold {
				s.varActive[i] = atLower
			}
		case p.H == nil && !math.IsNaN(b.Upper):
			x[i] = b.Upper
			if cold {
				s.varActive[i] = atUpper
			}
		case !math.IsNaN(b.Lower) && !math.IsNaN(b.Upper):
			x[i] = 0.5 * (b.Lower + b.Upper)
		case !math.IsNaN(b.Lower):
			x[i] = b.Lower
		case !math.IsNaN(b.Upper):
			x[i] = b.Upper
		default:
			x[i] = 0
		}
	}

	ax := make([]float64, m)
	if p.A != nil {
		p.A.MulVec(x, ax)
	}

	status := OPTIMAL
	iter := 0
	var finalWS activeSetWS
	var finalLambda []float64
	for ; iter < s.maxIterations; iter++ {
		ws := s.workingSet(p)
		d, lambda, ok := s.solveEquality(p, x, ws)
		if !ok {
			status = s.tryInfeasibilityDirection(p, x, ax, out)
			break
		}

		if linalg.InfNorm(d) <= activeSetTol {
			if s.multipliersOptimal(p, ws, lambda) {
				status = OPTIMAL
				finalWS, finalLambda = ws, lambda
				break
			}
			s.dropWorstActive(p, ws, lambda)
			continue
		}

		alpha, blocking := s.ratioTest(p, x, ax, d)
		if math.IsInf(alpha, 1) {
			status = UNBOUNDED
			break
		}
		for i := 0; i < n; i++ {
			x[i] += alpha * d[i]
		}
		if p.A != nil {
			dax := make([]float64, m)
			p.A.MulVec(d, dax)
			for j := 0; j < m; j++ {
				ax[j] += alpha * dax[j]
			}
		}
		if blocking.isVar {
			s.varActive[blocking.index] = blocking.kind
		} else if blocking.index >= 0 {
			s.conActive[blocking.index] = blocking.kind
		}
	}
	if iter >= s.maxIterations {
		status = ERROR
	}

	out.D = x
	out.Status = status
	out.VarActive = append(out.VarActive[:0], s.varActive[:n]...)
	out.ConActive = append(out.ConActive[:0], s.conActive[:m]...)
	out.ConFeasible = make([]bool, m)
	for j := 0; j < m; j++ {
		b := p.ConBounds[j]
		lo, hi := b.Lower, b.Upper
		out.ConFeasible[j] = (math.IsNaN(lo) || ax[j] >= lo-activeSetTol) && (math.IsNaN(hi) || ax[j] <= hi+activeSetTol)
	}
	out.Multipliers = make([]float64, m)
	out.ZLower = make([]float64, n)
	out.ZUpper = make([]float64, n)
	if status == OPTIMAL {
		out.Objective = s.evalObjective(p, x)
		for i, vi := range finalWS.varIdx {
			// The bordered system's row for an active bound enters the
			// stationarity equation as +λ, whereas the z_L >= 0, z_U <= 0
			// convention (spec.md's Open Question decision, see
			// model.Multipliers) wants -λ.
			mult := -finalLambda[i]
			switch s.varActive[vi] {
			case atLower:
				out.ZLower[vi] = mult
			case atUpper:
				out.ZUpper[vi] = mult
			}
		}
		base := len(finalWS.varIdx)
		for i, cj := range finalWS.conIdx {
			out.Multipliers[cj] = finalLambda[base+i]
		}
	}
}

type activeSetWS struct {
	varIdx []int
	conIdx []int
}

func (s *Solver) workingSet(p *Problem) activeSetWS {
	ws := activeSetWS{}
	for i := 0; i < p.N; i++ {
		if s.varActive[i] != inactive {
			ws.varIdx = append(ws.varIdx, i)
		}
	}
	for j := 0; j < p.M; j++ {
		if s.conActive[j] != inactive {
			ws.conIdx = append(ws.conIdx, j)
		}
	}
	return ws
}

// solveEquality solves the bordered KKT system for the current working
// set and returns the step p and the multipliers of the active rows (in
// the order varIdx then conIdx).
func (s *Solver) solveEquality(p *Problem, x []float64, ws activeSetWS) (d []float64, lambda []float64, ok bool) {
	n := p.N
	nc := len(ws.varIdx) + len(ws.conIdx)
	dim := n + nc

	k := linalg.NewSymmetricMatrix(dim, dim*4)
	if p.H != nil {
		p.H.ForEach(func(i, j int, v float64) { k.Add(i, j, v) })
	}
	row := n
	for _, vi := range ws.varIdx {
		k.Add(row, vi, 1)
		row++
	}

	// Fill the active general-constraint rows using CSC column access;
	// a dense scan over columns is acceptable since the working set is
	// small relative to the problem.
	row = n + len(ws.varIdx)
	if p.A != nil {
		for _, cj := range ws.conIdx {
			for colIdx := 0; colIdx < p.A.Cols; colIdx++ {
				for kk := p.A.ColPtr[colIdx]; kk < p.A.ColPtr[colIdx+1]; kk++ {
					if p.A.RowIdx[kk] == cj {
						k.Add(row, colIdx, p.A.Val[kk])
					}
				}
			}
			row++
		}
	}

	gk := make([]float64, n)
	copy(gk, p.G)
	if p.H != nil {
		hx := make([]float64, n)
		p.H.ForEach(func(i, j int, v float64) {
			hx[i] += v * x[j]
			if i != j {
				hx[j] += v * x[i]
			}
		})
		for i := range gk {
			gk[i] += hx[i]
		}
	}

	rhs := make([]float64, dim)
	for i := 0; i < n; i++ {
		rhs[i] = -gk[i]
	}

	if err := s.factorizer.Factorize(k, true); err != nil {
		return nil, nil, false
	}
	sol := make([]float64, dim)
	if err := s.factorizer.Solve(k, rhs, sol, false); err != nil {
		return nil, nil, false
	}
	return sol[:n], sol[n:], true
}

// multipliersOptimal reports whether every active bound's raw solve
// multiplier has the sign a valid KKT point requires. The bordered
// system's active-bound row is c(d) = d_i - bound, the same +1
// coefficient whether the bound is a lower or upper one, so the raw
// multiplier's optimal sign is the mirror image of the z_L/z_U output
// convention: an active lower bound is valid when relaxing it would
// increase the objective (raw mult <= 0), an active upper bound when
// relaxing it would decrease the objective (raw mult >= 0).
func (s *Solver) multipliersOptimal(p *Problem, ws activeSetWS, lambda []float64) bool {
	for i, vi := range ws.varIdx {
		mult := lambda[i]
		switch s.varActive[vi] {
		case atLower:
			if mult > activeSetTol {
				return false
			}
		case atUpper:
			if mult < -activeSetTol {
				return false
			}
		}
	}
	base := len(ws.varIdx)
	for i, cj := range ws.conIdx {
		mult := lambda[base+i]
		switch s.conActive[cj] {
		case atLower:
			if mult > activeSetTol {
				return false
			}
		case atUpper:
			if mult < -activeSetTol {
				return false
			}
		}
	}
	return true
}

func (s *Solver) dropWorstActive(p *Problem, ws activeSetWS, lambda []float64) {
	worst, worstIdx, isVar := 0.0, -1, true
	for i, vi := range ws.varIdx {
		mult := lambda[i]
		sign := 1.0
		if s.varActive[vi] == atUpper {
			sign = -1.0
		}
		viol := sign * mult
		if viol > worst {
			worst, worstIdx, isVar = viol, vi, true
		}
	}
	base := len(ws.varIdx)
	for i, cj := range ws.conIdx {
		mult := lambda[base+i]
		sign := 1.0
		if s.conActive[cj] == atUpper {
			sign = -1.0
		}
		viol := sign * mult
		if viol > worst {
			worst, worstIdx, isVar = viol, cj, false
		}
	}
	if worstIdx < 0 {
		return
	}
	if isVar {
		s.varActive[worstIdx] = inactive
	} else {
		s.conActive[worstIdx] = inactive
	}
}

type blockingConstraint struct {
	isVar bool
	index int
	kind  activeKind
}

// ratioTest returns the largest α ∈ (0, 1] such that x + αd stays
// within every inactive bound, and which constraint becomes binding at
// that α (if any).
func (s *Solver) ratioTest(p *Problem, x, ax, d []float64) (float64, blockingConstraint) {
	alpha := 1.0
	block := blockingConstraint{index: -1}

	for i := 0; i < p.N; i++ {
		if s.varActive[i] != inactive || d[i] == 0 {
			continue
		}
		b := p.VarBounds[i]
		if d[i] < 0 && !math.IsNaN(b.Lower) {
			if a := (b.Lower - x[i]) / d[i]; a < alpha {
				alpha, block = a, blockingConstraint{true, i, atLower}
			}
		} else if d[i] > 0 && !math.IsNaN(b.Upper) {
			if a := (b.Upper - x[i]) / d[i]; a < alpha {
				alpha, block = a, blockingConstraint{true, i, atUpper}
			}
		}
	}

	if p.A != nil {
		dax := make([]float64, p.M)
		p.A.MulVec(d, dax)
		for j := 0; j < p.M; j++ {
			if s.conActive[j] != inactive || dax[j] == 0 {
				continue
			}
			b := p.ConBounds[j]
			if dax[j] < 0 && !math.IsNaN(b.Lower) {
				if a := (b.Lower - ax[j]) / dax[j]; a < alpha {
					alpha, block = a, blockingConstraint{false, j, atLower}
				}
			} else if dax[j] > 0 && !math.IsNaN(b.Upper) {
				if a := (b.Upper - ax[j]) / dax[j]; a < alpha {
					alpha, block = a, blockingConstraint{false, j, atUpper}
				}
			}
		}
	}

	allBoundless := true
	for i := 0; i < p.N && allBoundless; i++ {
		if s.varActive[i] == inactive && d[i] != 0 {
			b := p.VarBounds[i]
			if (d[i] < 0 && !math.IsNaN(b.Lower)) || (d[i] > 0 && !math.IsNaN(b.Upper)) {
				allBoundless = false
			}
		}
	}
	if allBoundless && block.index < 0 && p.H == nil {
		return math.Inf(1), block
	}

	return math.Max(alpha, 0), block
}

// tryInfeasibilityDirection handles a working-set QP that becomes
// inconsistent: instead of failing outright, it moves x one step along
// the descent direction of the ℓ1 sum of constraint violations (the
// signed rows of A of every violated constraint, summed), scaled so the
// step's ℓ∞ norm is at most 1 and clipped to the variable bounds. It
// takes that single step only; the ℓ1 violation is not minimized. The
// INFEASIBLE status triggers the caller's phase switch to feasibility
// restoration.
func (s *Solver) tryInfeasibilityDirection(p *Problem, x, ax []float64, out *Result) Status {
	d := make([]float64, p.N)
	if p.A != nil {
		for j := 0; j < p.M; j++ {
			b := p.ConBounds[j]
			var viol float64
			if !math.IsNaN(b.Lower) && ax[j] < b.Lower {
				viol = b.Lower - ax[j]
			} else if !math.IsNaN(b.Upper) && ax[j] > b.Upper {
				viol = ax[j] - b.Upper
			}
			if viol == 0 {
				continue
			}
			sign := 1.0
			if !math.IsNaN(b.Upper) && ax[j] > b.Upper {
				sign = -1.0
			}
			for colIdx := 0; colIdx < p.A.Cols; colIdx++ {
				for kk := p.A.ColPtr[colIdx]; kk < p.A.ColPtr[colIdx+1]; kk++ {
					if p.A.RowIdx[kk] == j {
						d[colIdx] += sign * p.A.Val[kk]
					}
				}
			}
		}
	}
	step := 1.0
	if norm := linalg.InfNorm(d); norm > 1 {
		step = 1 / norm
	}
	out.D = make([]float64, p.N)
	for i := range out.D {
		out.D[i] = linalg.Clamp(x[i]+step*d[i], p.VarBounds[i].Lower, p.VarBounds[i].Upper)
	}
	return INFEASIBLE
}

func (s *Solver) evalObjective(p *Problem, x []float64) float64 {
	obj := linalg.Dot(p.G, x)
	if p.H != nil {
		p.H.ForEach(func(i, j int, v float64) {
			if i == j {
				obj += 0.5 * v * x[i] * x[j]
			} else {
				obj += v * x[i] * x[j]
			}
		})
	}
	return obj
}
