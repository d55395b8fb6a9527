// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linsolve is the single oracle allowed to know how the
// symmetric indefinite KKT systems of §4.B are factored. It is the only
// component that may reason about pivoting, regularization thresholds
// or workspace layout; every other ingredient sees only Factorize,
// Solve, Inertia, IsSingular and Rank.
package linsolve

import (
	"errors"
	"fmt"
	"math"

	"github.com/worc4021/Uno/linalg"
	"gonum.org/v1/gonum/mat"
)

// Kind classifies a factorization failure, per spec §4.B.
type Kind int

const (
	// OK indicates a successful factorization.
	OK Kind = iota
	// NumericalSingular means K could not be factored even after the
	// caller's regularization attempts.
	NumericalSingular
	// InsufficientWorkspace means the declared maximum dimension was
	// exceeded by a later call.
	InsufficientWorkspace
)

func (k Kind) String() string {
	switch k {
	case NumericalSingular:
		return "NumericalSingular"
	case InsufficientWorkspace:
		return "InsufficientWorkspace"
	default:
		return "OK"
	}
}

// Error wraps a Kind with a message, the error type surfaced to callers
// (§7 "Error kinds").
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func fail(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, a...)}
}

// Inertia is the ordered triple (n₊, n₋, n₀) of positive, negative and
// zero eigenvalues of the most recently factored matrix.
type Inertia struct {
	Positive, Negative, Zero int
}

// Equal reports whether the inertia matches the target (n, m, 0), the
// invariant required by the interior-point subproblem (§4.E step 2).
func (i Inertia) Equal(positive, negative int) bool {
	return i.Positive == positive && i.Negative == negative && i.Zero == 0
}

// zeroTolerance bounds how small an eigenvalue must be, relative to the
// largest eigenvalue magnitude, to be classified as a zero eigenvalue
// rather than a small positive/negative one. Matrices arising from
// Lagrangian Hessians routinely have eigenvalues spanning many orders
// of magnitude, so an absolute threshold would misclassify badly scaled
// problems.
const zeroTolerance = 1e-12

// Factorizer owns the scratch buffers for one symmetric indefinite
// solve pipeline, sized once to the maximum dimension ever declared
// (§5 "the linear solver owns workspaces sized to the maximum matrix
// dimension ever encountered"). A Factorizer is not safe for concurrent
// use; callers needing concurrency allocate one Factorizer per
// goroutine, exactly as slsqp/lbfgsb's Workspace do.
type Factorizer struct {
	maxDim int

	dim      int
	dense    *mat.SymDense
	eigen    mat.EigenSym
	values   []float64
	inertia  Inertia
	singular bool

	// symbolic is not populated or read by Factorize: whether the dense
	// workspace is reused depends only on the caller's structureChanged
	// flag and the dimension, never on a comparison of triplet
	// coordinates.
	symbolic []linalg.Triplet
}

// NewFactorizer allocates a Factorizer whose internal dense workspace
// can hold any symmetric matrix up to maxDim × maxDim.
func NewFactorizer(maxDim int) *Factorizer {
	if maxDim <= 0 {
		panic("linsolve: maxDim must be positive")
	}
	return &Factorizer{maxDim: maxDim}
}

// Factorize decomposes K, caching the eigenvalue spectrum used to
// answer Inertia/IsSingular/Rank and to drive Solve. structureChanged
// tells the factorizer whether K's sparsity pattern differs from the
// last call; when false and the dimension matches the last call, the
// allocated dense workspace is cleared and refilled instead of
// reallocated. The sparsity pattern itself is not compared.
func (f *Factorizer) Factorize(k *linalg.SymmetricMatrix, structureChanged bool) error {
	if k.Dimension > f.maxDim {
		return fail(InsufficientWorkspace, "linsolve: matrix dimension %d exceeds declared maximum %d", k.Dimension, f.maxDim)
	}
	f.dim = k.Dimension

	if structureChanged || f.dense == nil || f.dense.SymmetricDim() != f.dim {
		f.dense = mat.NewSymDense(f.dim, nil)
	} else {
		// Numeric-only phase: reuse the allocated dense workspace,
		// just clear the values.
		for i := 0; i < f.dim; i++ {
			for j := 0; j <= i; j++ {
				f.dense.SetSym(i, j, 0)
			}
		}
	}
	k.ForEach(func(i, j int, v float64) {
		f.dense.SetSym(i, j, f.dense.At(i, j)+v)
	})

	if ok := f.eigen.Factorize(f.dense, false); !ok {
		return fail(NumericalSingular, "linsolve: eigen-decomposition failed to converge")
	}
	if len(f.values) != f.dim {
		f.values = make([]float64, f.dim)
	}
	f.values = f.eigen.Values(f.values)

	maxAbs := 0.0
	for _, v := range f.values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}

	var pos, neg, zer int
	threshold := zeroTolerance * math.Max(maxAbs, 1)
	for _, v := range f.values {
		switch {
		case v > threshold:
			pos++
		case v < -threshold:
			neg++
		default:
			zer++
		}
	}
	f.inertia = Inertia{Positive: pos, Negative: neg, Zero: zer}
	f.singular = zer > 0 || maxAbs == 0

	return nil
}

// Solve computes x such that Kx = b, using the factorization cached by
// the most recent call to Factorize. refine requests one step of
// iterative refinement (recompute the residual and correct), useful
// when K is ill-conditioned but not singular.
func (f *Factorizer) Solve(k *linalg.SymmetricMatrix, b []float64, x []float64, refine bool) error {
	if f.dim != k.Dimension {
		return fail(InsufficientWorkspace, "linsolve: Solve called with dimension %d, last factorized %d", k.Dimension, f.dim)
	}
	if f.singular {
		return fail(NumericalSingular, "linsolve: matrix is singular, cannot solve")
	}

	dense := mat.NewDense(f.dim, f.dim, nil)
	for i := 0; i < f.dim; i++ {
		for j := 0; j < f.dim; j++ {
			dense.Set(i, j, f.dense.At(i, j))
		}
	}

	rhs := mat.NewVecDense(f.dim, b[:f.dim])
	var sol mat.VecDense
	if err := sol.SolveVec(dense, rhs); err != nil {
		return fail(NumericalSingular, "linsolve: %v", err)
	}
	copy(x[:f.dim], sol.RawVector().Data)

	if refine {
		var residual mat.VecDense
		residual.MulVec(dense, &sol)
		residual.SubVec(rhs, &residual)
		var correction mat.VecDense
		if err := correction.SolveVec(dense, &residual); err == nil {
			for i := 0; i < f.dim; i++ {
				x[i] += correction.AtVec(i)
			}
		}
	}
	return nil
}

// Inertia returns the (n₊, n₋, n₀) triple of the last factorization.
func (f *Factorizer) Inertia() Inertia { return f.inertia }

// IsSingular reports whether the last factorization detected a zero
// eigenvalue or an all-zero matrix.
func (f *Factorizer) IsSingular() bool { return f.singular }

// Rank returns the number of nonzero eigenvalues found in the last
// factorization.
func (f *Factorizer) Rank() int { return f.inertia.Positive + f.inertia.Negative }

// ErrSingular is returned by callers that want a sentinel to compare
// against with errors.Is, in addition to the richer *Error/Kind API.
var ErrSingular = errors.New("linsolve: numerically singular")
