// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import (
	"math"
	"testing"
)

func TestNorm(t *testing.T) {
	x := []float64{3, -4, 0}
	if got := Norm(x, L1); got != 7 {
		t.Fatalf("L1 norm = %v, want 7", got)
	}
	if got := Norm(x, L2); got != 5 {
		t.Fatalf("L2 norm = %v, want 5", got)
	}
	if got := Norm(x, Inf); got != 4 {
		t.Fatalf("Inf norm = %v, want 4", got)
	}
}

func TestAxpyTo(t *testing.T) {
	y := []float64{1, 1, 1}
	AxpyTo(2, []float64{1, 2, 3}, y)
	want := []float64{3, 5, 7}
	for i := range want {
		if y[i] != want[i] {
			t.Fatalf("y[%d] = %v, want %v", i, y[i], want[i])
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(10, 0, 5); got != 5 {
		t.Fatalf("Clamp above upper = %v, want 5", got)
	}
	if got := Clamp(-10, 0, 5); got != 0 {
		t.Fatalf("Clamp below lower = %v, want 0", got)
	}
	if got := Clamp(3, math.NaN(), math.NaN()); got != 3 {
		t.Fatalf("Clamp with free bounds = %v, want 3", got)
	}
}

func TestInfNorm(t *testing.T) {
	if got := InfNorm([]float64{-1, 2, -5, 3}); got != 5 {
		t.Fatalf("InfNorm = %v, want 5", got)
	}
}

func TestForEach(t *testing.T) {
	idx := []int{2, 0}
	val := []float64{9, 4}
	seen := map[int]float64{}
	ForEach(idx, val, func(i int, v float64) { seen[i] = v })
	if seen[2] != 9 || seen[0] != 4 {
		t.Fatalf("ForEach visited %v", seen)
	}
}
