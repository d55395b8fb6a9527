package linalg

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Triplet is a single (row, col, value) entry of a sparse matrix.
type Triplet struct {
	Row, Col int
	Value    float64
}

// SymmetricMatrix is the triplet representation described by the data
// model (§3 "SymmetricMatrix"): dimension, number of nonzeros, and a
// lower-triangular triplet list (i ≥ j). Entries may repeat: the dense
// conversion sums duplicate coordinates, and ForEach visits each stored
// duplicate separately; neither rejects them.
type SymmetricMatrix struct {
	Dimension int
	entries   []Triplet
}

// NewSymmetricMatrix allocates an empty symmetric triplet matrix of the
// given dimension, reserving space for nnzHint nonzeros.
func NewSymmetricMatrix(dimension, nnzHint int) *SymmetricMatrix {
	return &SymmetricMatrix{Dimension: dimension, entries: make([]Triplet, 0, nnzHint)}
}

// Add appends a lower-triangular entry (i, j, v) with i ≥ j. Panics if
// the caller violates the lower-triangular invariant, mirroring the
// teacher's bound-check panics on malformed internal state.
func (s *SymmetricMatrix) Add(i, j int, v float64) {
	if i < j {
		panic("linalg: symmetric matrix entry must be lower-triangular (i >= j)")
	}
	s.entries = append(s.entries, Triplet{i, j, v})
}

// NumNonzeros returns the number of stored triplets, including
// duplicates (the raw count, not the number of distinct coordinates).
func (s *SymmetricMatrix) NumNonzeros() int { return len(s.entries) }

// ForEach visits every stored triplet exactly once, in insertion order.
// Duplicate coordinates are visited separately; callers that need the
// summed value should use ToSymDense.
func (s *SymmetricMatrix) ForEach(f func(i, j int, v float64)) {
	for _, t := range s.entries {
		f(t.Row, t.Col, t.Value)
	}
}

// ToSymDense materializes the triplets into a dense gonum SymDense,
// summing duplicate coordinates. This is the bridge into the
// gonum.org/v1/gonum/mat numeric kernels used by linsolve.
func (s *SymmetricMatrix) ToSymDense() *mat.SymDense {
	dense := mat.NewSymDense(s.Dimension, nil)
	for _, t := range s.entries {
		dense.SetSym(t.Row, t.Col, dense.At(t.Row, t.Col)+t.Value)
	}
	return dense
}

// RectMatrix is the triplet representation of a rectangular matrix
// (used for the constraint Jacobian ∇c).
type RectMatrix struct {
	Rows, Cols int
	entries    []Triplet
}

// NewRectMatrix allocates an empty rectangular triplet matrix.
func NewRectMatrix(rows, cols, nnzHint int) *RectMatrix {
	return &RectMatrix{Rows: rows, Cols: cols, entries: make([]Triplet, 0, nnzHint)}
}

// Add appends an entry (i, j, v), 0 ≤ i < Rows, 0 ≤ j < Cols.
func (m *RectMatrix) Add(i, j int, v float64) {
	m.entries = append(m.entries, Triplet{i, j, v})
}

// NumNonzeros returns the raw number of stored triplets.
func (m *RectMatrix) NumNonzeros() int { return len(m.entries) }

// ForEach visits every stored triplet exactly once, in insertion order.
func (m *RectMatrix) ForEach(f func(i, j int, v float64)) {
	for _, t := range m.entries {
		f(t.Row, t.Col, t.Value)
	}
}

// ToDense materializes the triplets into a dense gonum Dense matrix,
// summing duplicate coordinates.
func (m *RectMatrix) ToDense() *mat.Dense {
	dense := mat.NewDense(m.Rows, m.Cols, nil)
	for _, t := range m.entries {
		dense.Set(t.Row, t.Col, dense.At(t.Row, t.Col)+t.Value)
	}
	return dense
}

// RowTo extracts row i (0-indexed) as a dense vector of length Cols.
func (m *RectMatrix) RowTo(i int, out []float64) {
	Zero(out[:m.Cols])
	for _, t := range m.entries {
		if t.Row == i {
			out[t.Col] += t.Value
		}
	}
}

// CSC is a compressed-sparse-column rectangular matrix, used where the
// QP/LP active-set solver needs column access to the constraint matrix.
type CSC struct {
	Rows, Cols int
	ColPtr     []int
	RowIdx     []int
	Val        []float64
}

// NewCSCFromRect builds a CSC matrix from a triplet RectMatrix, summing
// duplicate coordinates and sorting within each column by row index.
func NewCSCFromRect(m *RectMatrix) *CSC {
	type kv struct {
		row int
		val float64
	}
	cols := make([][]kv, m.Cols)
	for _, t := range m.entries {
		col := cols[t.Col]
		merged := false
		for i := range col {
			if col[i].row == t.Row {
				col[i].val += t.Value
				merged = true
				break
			}
		}
		if !merged {
			cols[t.Col] = append(cols[t.Col], kv{t.Row, t.Value})
		}
	}

	csc := &CSC{Rows: m.Rows, Cols: m.Cols, ColPtr: make([]int, m.Cols+1)}
	for j, col := range cols {
		sort.Slice(col, func(a, b int) bool { return col[a].row < col[b].row })
		csc.ColPtr[j+1] = csc.ColPtr[j] + len(col)
		for _, e := range col {
			csc.RowIdx = append(csc.RowIdx, e.row)
			csc.Val = append(csc.Val, e.val)
		}
	}
	return csc
}

// MulVec computes y = A·x for the CSC matrix A.
func (c *CSC) MulVec(x []float64, y []float64) {
	Zero(y[:c.Rows])
	for j := 0; j < c.Cols; j++ {
		xj := x[j]
		if xj == 0 {
			continue
		}
		for k := c.ColPtr[j]; k < c.ColPtr[j+1]; k++ {
			y[c.RowIdx[k]] += c.Val[k] * xj
		}
	}
}
