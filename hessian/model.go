// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hessian implements the two Hessian models of §4.D: Exact
// (the true Lagrangian Hessian, optionally convexified) and Zero (used
// by LP subproblems or to disable curvature). The convexification
// retry loop (ConvexifyMatrix) is reached by both subproblems through
// Exact.Evaluate; the interior-point subproblem's inertia correction of
// the bordered KKT matrix (§4.E step 2) is a separate loop in package
// subproblem. The Exact/Zero split matches the original's single
// HessianModel hierarchy
// (original_source/uno/ingredients/hessian_models/HessianModel.hpp).
package hessian

import (
	"fmt"

	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/linsolve"
	"github.com/worc4021/Uno/model"
)

// Model produces the n×n symmetric Hessian block used by a subproblem.
type Model interface {
	Evaluate(problem model.Problem, iterate *model.Iterate) *linalg.SymmetricMatrix
}

// Exact returns the true Lagrangian Hessian, convexified by repeated
// trial factorization when Convexify is set.
type Exact struct {
	Convexify  bool
	factorizer *linsolve.Factorizer
}

// NewExact allocates an Exact Hessian model whose convexification
// trials share a factorizer sized to maxDim.
func NewExact(maxDim int, convexify bool) *Exact {
	var f *linsolve.Factorizer
	if convexify {
		f = linsolve.NewFactorizer(maxDim)
	}
	return &Exact{Convexify: convexify, factorizer: f}
}

func (e *Exact) Evaluate(problem model.Problem, iterate *model.Iterate) *linalg.SymmetricMatrix {
	h := iterate.Hessian(problem)
	if !e.Convexify {
		return h
	}
	convexified, _, err := ConvexifyMatrix(h, problem.NumVariables(), e.factorizer)
	if err != nil {
		// Fall back to the unmodified Hessian; the caller's inertia
		// check downstream (subproblem E1/E2) will react.
		return h
	}
	return convexified
}

// Zero disables curvature (LP mode, or to strip the Hessian entirely).
type Zero struct{}

func (Zero) Evaluate(problem model.Problem, _ *model.Iterate) *linalg.SymmetricMatrix {
	return linalg.NewSymmetricMatrix(problem.NumVariables(), 0)
}

const (
	convexifySeed   = 1e-4
	convexifyGrowth = 8.0
	convexifyMax    = 1e40
	convexifyTrials = 60
)

// ConvexifyMatrix adds αI to h, growing α geometrically from a seed
// value, until the resulting matrix is positive definite (inertia
// (n, 0, 0)) or α exceeds the abort threshold, per §4.D/§4.E step 2's
// shared inertia-correction idiom. It returns the convexified matrix
// and the α that worked.
func ConvexifyMatrix(h *linalg.SymmetricMatrix, n int, factorizer *linsolve.Factorizer) (*linalg.SymmetricMatrix, float64, error) {
	alpha := 0.0
	for trial := 0; trial < convexifyTrials; trial++ {
		candidate := addDiagonal(h, alpha, n)
		if err := factorizer.Factorize(candidate, true); err == nil {
			inertia := factorizer.Inertia()
			if inertia.Positive == n && inertia.Negative == 0 && inertia.Zero == 0 {
				return candidate, alpha, nil
			}
		}
		if alpha == 0 {
			alpha = convexifySeed
		} else {
			alpha *= convexifyGrowth
		}
		if alpha > convexifyMax {
			return nil, alpha, fmt.Errorf("hessian: convexification exceeded %g without reaching positive definiteness", convexifyMax)
		}
	}
	return nil, alpha, fmt.Errorf("hessian: convexification did not converge in %d trials", convexifyTrials)
}

func addDiagonal(h *linalg.SymmetricMatrix, alpha float64, n int) *linalg.SymmetricMatrix {
	out := linalg.NewSymmetricMatrix(n, h.NumNonzeros()+n)
	h.ForEach(func(i, j int, v float64) { out.Add(i, j, v) })
	if alpha != 0 {
		for i := 0; i < n; i++ {
			out.Add(i, i, alpha)
		}
	}
	return out
}
