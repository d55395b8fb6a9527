// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"math"

	"github.com/worc4021/Uno/linalg"
)

// BoundRelaxedModel wraps a Problem view and relaxes every finite
// variable bound outward by a fixed margin ε. Recovered from
// original_source/uno/preprocessing/Preprocessing.hpp's
// BoundRelaxedModel: feasibility restoration's starting point is often
// exactly at a bound on every coordinate (the previous optimality
// iterate stalled there), and starting the elastic QP with every
// variable already active is a degenerate active set to warm-start
// from. Relaxing bounds by a small ε gives the active-set solver room
// to move before it has to decide which bounds matter.
type BoundRelaxedModel struct {
	inner   Problem
	epsilon float64
}

// NewBoundRelaxedModel wraps inner, relaxing its variable bounds by
// epsilon. epsilon <= 0 makes this the identity wrapper.
func NewBoundRelaxedModel(inner Problem, epsilon float64) *BoundRelaxedModel {
	return &BoundRelaxedModel{inner: inner, epsilon: epsilon}
}

func (b *BoundRelaxedModel) NumVariables() int   { return b.inner.NumVariables() }
func (b *BoundRelaxedModel) NumConstraints() int { return b.inner.NumConstraints() }

func (b *BoundRelaxedModel) Objective(x []float64) float64 { return b.inner.Objective(x) }
func (b *BoundRelaxedModel) ObjectiveGradient(x []float64, grad []float64) {
	b.inner.ObjectiveGradient(x, grad)
}
func (b *BoundRelaxedModel) Constraints(x []float64, c []float64) { b.inner.Constraints(x, c) }
func (b *BoundRelaxedModel) ConstraintJacobian(x []float64) *linalg.RectMatrix {
	return b.inner.ConstraintJacobian(x)
}
func (b *BoundRelaxedModel) LagrangianHessian(x []float64, sigma float64, lambda []float64) *linalg.SymmetricMatrix {
	return b.inner.LagrangianHessian(x, sigma, lambda)
}

// VariableBounds returns the inner bounds widened by epsilon on each
// finite side.
func (b *BoundRelaxedModel) VariableBounds() []Bound {
	orig := b.inner.VariableBounds()
	if b.epsilon <= 0 {
		return orig
	}
	out := make([]Bound, len(orig))
	for i, bound := range orig {
		out[i] = bound
		if !math.IsNaN(bound.Lower) {
			out[i].Lower -= b.epsilon
		}
		if !math.IsNaN(bound.Upper) {
			out[i].Upper += b.epsilon
		}
	}
	return out
}

func (b *BoundRelaxedModel) ConstraintBounds() []Bound   { return b.inner.ConstraintBounds() }
func (b *BoundRelaxedModel) ObjectiveSign() float64      { return b.inner.ObjectiveSign() }
func (b *BoundRelaxedModel) NumElasticVariables() int    { return b.inner.NumElasticVariables() }
func (b *BoundRelaxedModel) NumElasticConstraints() int  { return b.inner.NumElasticConstraints() }
func (b *BoundRelaxedModel) Underlying() Oracle          { return b.inner.Underlying() }
