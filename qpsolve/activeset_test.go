// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpsolve

import (
	"math"
	"testing"

	"github.com/worc4021/Uno/linalg"
)

func TestSolveUnconstrainedQP(t *testing.T) {
	h := linalg.NewSymmetricMatrix(1, 1)
	h.Add(0, 0, 1)
	p := &Problem{
		N:         1,
		H:         h,
		G:         []float64{-1},
		VarBounds: []Bound{{Lower: 0, Upper: 10}},
	}
	s := NewSolver(1, 0)
	var out Result
	s.Solve(p, AllChanged, &out)

	if out.Status != OPTIMAL {
		t.Fatalf("status = %v, want OPTIMAL", out.Status)
	}
	if math.Abs(out.D[0]-1) > 1e-6 {
		t.Fatalf("d = %v, want [1]", out.D)
	}
}

func TestSolveBoundActiveQP(t *testing.T) {
	// minimize 0.5x^2 + x on [2, 10]: the unconstrained minimizer x=-1
	// lies outside the box, so the lower bound must bind.
	h := linalg.NewSymmetricMatrix(1, 1)
	h.Add(0, 0, 1)
	p := &Problem{
		N:         1,
		H:         h,
		G:         []float64{1},
		VarBounds: []Bound{{Lower: 2, Upper: 10}},
	}
	s := NewSolver(1, 0)
	var out Result
	s.Solve(p, AllChanged, &out)

	if out.Status != OPTIMAL {
		t.Fatalf("status = %v, want OPTIMAL", out.Status)
	}
	if math.Abs(out.D[0]-2) > 1e-6 {
		t.Fatalf("d = %v, want [2] (lower bound active)", out.D)
	}
	if out.ZLower[0] < 0 {
		t.Fatalf("ZLower = %v, want >= 0 at an active lower bound", out.ZLower[0])
	}
}

func TestSolveBoundActiveLP(t *testing.T) {
	// minimize x on [2, 10] with no curvature: the vertex-start
	// initialization must place the working set at the lower bound
	// directly, since a zero Hessian leaves the bordered system singular
	// until at least one bound is active.
	p := &Problem{
		N:         1,
		G:         []float64{1},
		VarBounds: []Bound{{Lower: 2, Upper: 10}},
	}
	s := NewSolver(1, 0)
	var out Result
	s.Solve(p, AllChanged, &out)

	if out.Status != OPTIMAL {
		t.Fatalf("status = %v, want OPTIMAL", out.Status)
	}
	if math.Abs(out.D[0]-2) > 1e-6 {
		t.Fatalf("d = %v, want [2] (lower bound active)", out.D)
	}
	if out.ZLower[0] < 0 {
		t.Fatalf("ZLower = %v, want >= 0 at an active lower bound", out.ZLower[0])
	}
}
