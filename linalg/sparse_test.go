// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import "testing"

func TestSymmetricMatrixToSymDense(t *testing.T) {
	s := NewSymmetricMatrix(2, 3)
	s.Add(0, 0, 2)
	s.Add(1, 0, 1)
	s.Add(1, 0, 1) // duplicate coordinate, must sum
	s.Add(1, 1, 3)

	dense := s.ToSymDense()
	if got := dense.At(0, 0); got != 2 {
		t.Fatalf("(0,0) = %v, want 2", got)
	}
	if got := dense.At(1, 0); got != 2 {
		t.Fatalf("(1,0) = %v, want 2 (summed duplicates)", got)
	}
	if got := dense.At(0, 1); got != 2 {
		t.Fatalf("(0,1) = %v, want 2 (symmetric mirror)", got)
	}
}

func TestSymmetricMatrixRejectsUpperTriangle(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for i < j")
		}
	}()
	s := NewSymmetricMatrix(2, 1)
	s.Add(0, 1, 1)
}

func TestRectMatrixRowTo(t *testing.T) {
	m := NewRectMatrix(2, 3, 4)
	m.Add(0, 0, 1)
	m.Add(0, 2, 5)
	m.Add(1, 1, 9)

	row := make([]float64, 3)
	m.RowTo(0, row)
	want := []float64{1, 0, 5}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("row[%d] = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestCSCMulVec(t *testing.T) {
	m := NewRectMatrix(2, 2, 4)
	m.Add(0, 0, 1)
	m.Add(0, 1, 2)
	m.Add(1, 0, 3)
	m.Add(1, 1, 4)
	csc := NewCSCFromRect(m)

	x := []float64{1, 1}
	y := make([]float64, 2)
	csc.MulVec(x, y)
	if y[0] != 3 || y[1] != 7 {
		t.Fatalf("y = %v, want [3 7]", y)
	}
}
