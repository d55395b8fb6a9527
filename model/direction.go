package model

// Direction is the search step produced by a subproblem solve (§3
// "Direction"): the primal step d, the displacement of every
// multiplier block, the subproblem status, its ℓ∞ norm, the
// subproblem's own objective value, an optional partition of which
// linearized constraints are infeasible at d, and an active-set
// snapshot.
type Direction struct {
	Primal []float64
	DeltaMult Multipliers

	SubproblemStatus int
	NormInf          float64
	SubproblemObjective float64

	// InfeasibleConstraints, if non-nil, flags which linearized
	// constraints remain infeasible at d (§3 "constraint partition").
	InfeasibleConstraints []bool

	// ActiveLower/ActiveUpper record which variables/constraints sit
	// at their lower/upper bound at d (§3 "active-set snapshot").
	ActiveLower []bool
	ActiveUpper []bool

	// FractionToBoundary caps the step length a line-search mechanism
	// may take along this direction (§4.E step 4, α_primal). SQP/LP
	// directions leave it at 1 (no cap beyond the trust region already
	// baked into d); the interior-point subproblem sets it to the
	// fraction-to-boundary α_primal it computed internally.
	FractionToBoundary float64
}

// NewDirection allocates a zeroed Direction for a problem of dimension
// (n, m).
func NewDirection(n, m int) *Direction {
	return &Direction{
		Primal:              make([]float64, n),
		DeltaMult:           NewMultipliers(n, m),
		ActiveLower:         make([]bool, n),
		ActiveUpper:         make([]bool, n),
		FractionToBoundary:  1,
	}
}
