// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hessian

import (
	"testing"

	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/linsolve"
	"github.com/worc4021/Uno/model"
)

// quadraticProblem is a minimal model.Problem stub sized for the
// hessian package's tests: only NumVariables is exercised.
type quadraticProblem struct{ n int }

func (p quadraticProblem) NumVariables() int   { return p.n }
func (p quadraticProblem) NumConstraints() int { return 0 }
func (p quadraticProblem) Objective(x []float64) float64 { return 0 }
func (p quadraticProblem) ObjectiveGradient(x, grad []float64) {}
func (p quadraticProblem) Constraints(x, c []float64) {}
func (p quadraticProblem) ConstraintJacobian(x []float64) *linalg.RectMatrix {
	return linalg.NewRectMatrix(0, p.n, 0)
}
func (p quadraticProblem) LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix {
	return linalg.NewSymmetricMatrix(p.n, 0)
}
func (p quadraticProblem) VariableBounds() []model.Bound   { return make([]model.Bound, p.n) }
func (p quadraticProblem) ConstraintBounds() []model.Bound { return nil }
func (p quadraticProblem) ObjectiveSign() float64          { return 1 }
func (p quadraticProblem) NumElasticVariables() int        { return 0 }
func (p quadraticProblem) NumElasticConstraints() int      { return 0 }
func (p quadraticProblem) Underlying() model.Oracle        { return nil }

func TestZeroEvaluateIsZeroMatrix(t *testing.T) {
	z := Zero{}
	h := z.Evaluate(quadraticProblem{n: 3}, nil)
	if h.Dimension != 3 || h.NumNonzeros() != 0 {
		t.Fatalf("Zero.Evaluate = dim %d nnz %d, want dim 3 nnz 0", h.Dimension, h.NumNonzeros())
	}
}

func TestConvexifyMatrixIndefinite(t *testing.T) {
	h := linalg.NewSymmetricMatrix(2, 2)
	h.Add(0, 0, 1)
	h.Add(1, 1, -1)

	f := linsolve.NewFactorizer(2)
	convexified, alpha, err := ConvexifyMatrix(h, 2, f)
	if err != nil {
		t.Fatalf("ConvexifyMatrix: %v", err)
	}
	if alpha <= 0 {
		t.Fatalf("alpha = %v, want > 0 (original matrix was indefinite)", alpha)
	}
	if err := f.Factorize(convexified, true); err != nil {
		t.Fatalf("Factorize(convexified): %v", err)
	}
	if !f.Inertia().Equal(2, 0) {
		t.Fatalf("Inertia(convexified) = %+v, want (2,0,0)", f.Inertia())
	}
}

func TestConvexifyMatrixAlreadyDefinite(t *testing.T) {
	h := linalg.NewSymmetricMatrix(2, 2)
	h.Add(0, 0, 1)
	h.Add(1, 1, 1)

	f := linsolve.NewFactorizer(2)
	_, alpha, err := ConvexifyMatrix(h, 2, f)
	if err != nil {
		t.Fatalf("ConvexifyMatrix: %v", err)
	}
	if alpha != 0 {
		t.Fatalf("alpha = %v, want 0 (already positive definite)", alpha)
	}
}
