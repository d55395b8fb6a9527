// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uno_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/worc4021/Uno/linalg"
	"github.com/worc4021/Uno/model"
	uno "github.com/worc4021/Uno"
)

// hs71 is the classic Hock-Schittkowski problem 71, a small nonconvex
// NLP with one nonlinear inequality, one nonlinear equality and box
// bounds on every variable:
//
//	minimize   x0*x3*(x0+x1+x2) + x2
//	subject to x0*x1*x2*x3 >= 25
//	           x0^2+x1^2+x2^2+x3^2 = 40
//	           1 <= xi <= 5, i=0..3
//
// Grounded on original_source/nlp_test/src/hs71.cpp and hs71.hpp.
type hs71 struct{}

func (hs71) NumVariables() int   { return 4 }
func (hs71) NumConstraints() int { return 2 }

func (hs71) Objective(x []float64) float64 {
	return x[0]*x[3]*(x[0]+x[1]+x[2]) + x[2]
}

func (hs71) ObjectiveGradient(x []float64, grad []float64) {
	grad[0] = x[0]*x[3] + x[3]*(x[0]+x[1]+x[2])
	grad[1] = x[0] * x[3]
	grad[2] = x[0]*x[3] + 1
	grad[3] = x[0] * (x[0] + x[1] + x[2])
}

func (hs71) Constraints(x []float64, c []float64) {
	c[0] = x[0] * x[1] * x[2] * x[3]
	c[1] = x[0]*x[0] + x[1]*x[1] + x[2]*x[2] + x[3]*x[3]
}

func (hs71) ConstraintGradient(x []float64, i int, grad []float64) {
	switch i {
	case 0:
		grad[0] = x[1] * x[2] * x[3]
		grad[1] = x[0] * x[2] * x[3]
		grad[2] = x[0] * x[1] * x[3]
		grad[3] = x[0] * x[1] * x[2]
	case 1:
		grad[0] = 2 * x[0]
		grad[1] = 2 * x[1]
		grad[2] = 2 * x[2]
		grad[3] = 2 * x[3]
	}
}

func (h hs71) ConstraintJacobian(x []float64) *linalg.RectMatrix {
	j := linalg.NewRectMatrix(2, 4, 8)
	row := make([]float64, 4)
	for i := 0; i < 2; i++ {
		h.ConstraintGradient(x, i, row)
		for k, v := range row {
			if v != 0 {
				j.Add(i, k, v)
			}
		}
	}
	return j
}

func (hs71) LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix {
	h := linalg.NewSymmetricMatrix(4, 10)
	objH := [4][4]float64{
		{2 * x[3], 0, 0, 0},
		{x[3], 0, 0, 0},
		{x[3], 0, 0, 0},
		{2*x[0] + x[1] + x[2], x[0], x[0], 0},
	}
	c0H := [4][4]float64{
		{0, 0, 0, 0},
		{x[2] * x[3], 0, 0, 0},
		{x[1] * x[3], x[0] * x[3], 0, 0},
		{x[1] * x[2], x[0] * x[2], x[0] * x[1], 0},
	}
	c1H := [4][4]float64{
		{2, 0, 0, 0},
		{0, 2, 0, 0},
		{0, 0, 2, 0},
		{0, 0, 0, 2},
	}
	for i := 0; i < 4; i++ {
		for j := 0; j <= i; j++ {
			v := sigma*objH[i][j] + lambda[0]*c0H[i][j] + lambda[1]*c1H[i][j]
			if v != 0 {
				h.Add(i, j, v)
			}
		}
	}
	return h
}

func (hs71) VariableBounds() []model.Bound {
	return []model.Bound{{Lower: 1, Upper: 5}, {Lower: 1, Upper: 5}, {Lower: 1, Upper: 5}, {Lower: 1, Upper: 5}}
}

func (hs71) ConstraintBounds() []model.Bound {
	return []model.Bound{{Lower: 25, Upper: math.NaN()}, {Lower: 40, Upper: 40}}
}

func (hs71) LinearConstraints() []bool { return []bool{false, false} }

func (hs71) ObjectiveSign() float64 { return 1 }

func (hs71) InitialPrimalPoint() []float64 { return []float64{1, 5, 5, 1} }

func (hs71) InitialDualPoint() model.Multipliers {
	return model.Multipliers{
		Constraints: []float64{0, 0},
		LowerBounds: []float64{0, 0, 0, 0},
		UpperBounds: []float64{0, 0, 0, 0},
	}
}

var _ model.Oracle = hs71{}

// TestHS71 reproduces the end-to-end scenario of spec.md: the default
// filter/interior-point-free assembly (feasibility restoration, SQP
// subproblem, line search, Wächter filter) driven to the documented
// optimum.
func TestHS71(t *testing.T) {
	opt, err := uno.FromMap(map[string]string{
		"tolerance":       "1e-8",
		"max_iterations":  "200",
	})
	require.NoError(t, err)

	p := &uno.Problem{Oracle: hs71{}, Options: *opt}
	solver, err := p.New(nil)
	require.NoError(t, err)

	w := solver.Init()
	result := solver.Solve(w)

	wantX := []float64{1.0, 4.7429994, 3.8211503, 1.3794082}
	const wantF = 17.014017

	require.InDelta(t, wantF, result.Objective, 1e-3)
	require.Len(t, result.X, 4)
	for i, want := range wantX {
		require.InDelta(t, want, result.X[i], 1e-3, "x[%d]", i)
	}
}
