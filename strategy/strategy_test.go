// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package strategy

import "testing"

func TestMeritFunctionAcceptsSufficientDecrease(t *testing.T) {
	m := NewMeritFunction()
	// value(current) = 1 + 1*0.1 = 1.1, value(trial) = 0.5 + 1*0.05 = 0.55
	// actual decrease = 0.55, predictedReduction = 0.5: comfortably above
	// the 1e-4 sufficient fraction.
	ok := m.IsAcceptable(0.1, 1.0, 0.05, 0.5, 0.5)
	if !ok {
		t.Fatal("IsAcceptable() = false, want true for a large actual decrease")
	}
}

func TestMeritFunctionRejectsInsufficientDecrease(t *testing.T) {
	m := NewMeritFunction()
	// value(current) = 1.1, value(trial) = 1.099999 + 1*0.1 = 1.199999:
	// the merit value increases against a large predicted reduction.
	ok := m.IsAcceptable(0.1, 1.0, 0.1, 1.099999, 10.0)
	if ok {
		t.Fatal("IsAcceptable() = true, want false when actual decrease is far below predicted*fraction")
	}
}

func TestMeritFunctionUpdatePenaltyGrowsWhenRequired(t *testing.T) {
	m := NewMeritFunction()
	before := m.Nu()
	// predictedObjectiveReduction = -10 (objective increases in the
	// model), predictedInfeasibilityReduction = 1: required nu = 10,
	// above the default 1.0, so nu must grow.
	m.UpdatePenalty(-10, 1)
	if m.Nu() <= before {
		t.Fatalf("Nu() = %v, want > %v after a penalty-requiring update", m.Nu(), before)
	}
}

func TestMeritFunctionUpdatePenaltyNoOpWhenInfeasibilityReductionNonPositive(t *testing.T) {
	m := NewMeritFunction()
	before := m.Nu()
	m.UpdatePenalty(-10, 0)
	if m.Nu() != before {
		t.Fatalf("Nu() = %v, want unchanged %v when predictedInfeasibilityReduction <= 0", m.Nu(), before)
	}
}

func TestMeritFunctionReset(t *testing.T) {
	m := NewMeritFunction()
	m.UpdatePenalty(-10, 1)
	if m.Nu() == meritNuInitial {
		t.Fatal("setup: expected Nu() to have grown")
	}
	m.Reset()
	if m.Nu() != meritNuInitial {
		t.Fatalf("Nu() = %v after Reset, want %v", m.Nu(), meritNuInitial)
	}
}

func TestFilterRejectsAboveEnvelopeBound(t *testing.T) {
	f := NewFilter(LeyfferFilter, 1.0)
	// upperBound = max(thetaMin, kappaEnvelope*1.0) = 1e4; anything above
	// it must be rejected outright regardless of objective.
	ok := f.IsAcceptable(0.5, 10, 2e4, -1000, 1)
	if ok {
		t.Fatal("IsAcceptable() = true, want false above the envelope bound")
	}
}

func TestFilterAcceptsNondominatedPoint(t *testing.T) {
	f := NewFilter(LeyfferFilter, 1.0)
	if !f.IsAcceptable(0.5, 10, 0.1, 5, 1) {
		t.Fatal("IsAcceptable() = false, want true for a point improving both coordinates")
	}
}

func TestFilterRejectsDominatedPoint(t *testing.T) {
	f := NewFilter(LeyfferFilter, 1.0)
	f.Accept(0.2, 3)
	// worse in both infeasibility and objective than the accepted entry.
	if f.IsAcceptable(0.5, 10, 0.3, 5, 1) {
		t.Fatal("IsAcceptable() = true, want false for a point dominated by filter history")
	}
}

func TestFilterAcceptPrunesDominatedEntries(t *testing.T) {
	f := NewFilter(LeyfferFilter, 1.0)
	f.Accept(0.5, 5)
	f.Accept(0.1, 1) // dominates the first entry in both coordinates
	if len(f.entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (dominated entry pruned)", len(f.entries))
	}
	if f.entries[0].infeasibility != 0.1 || f.entries[0].objective != 1 {
		t.Fatalf("entries[0] = %+v, want {0.1 1}", f.entries[0])
	}
}

func TestFilterResetClearsHistory(t *testing.T) {
	f := NewFilter(LeyfferFilter, 1.0)
	f.Accept(0.1, 1)
	f.Reset()
	if len(f.entries) != 0 {
		t.Fatalf("len(entries) = %d after Reset, want 0", len(f.entries))
	}
}

func TestWachterSwitchingConditionBypassesDominance(t *testing.T) {
	f := NewFilter(WachterFilter, 1.0)
	f.Accept(1e-3, 5) // a point that would dominate a naive comparison

	// Very small current infeasibility and a large predicted reduction
	// should satisfy the switching condition, falling back to the plain
	// Armijo test on the objective instead of the dominance test.
	ok := f.IsAcceptable(1e-10, 5, 1e-10, 4, 1.0)
	if !ok {
		t.Fatal("IsAcceptable() = false, want true via the Wachter switching condition")
	}
}

func TestLeyfferFilterNeverSwitches(t *testing.T) {
	f := NewFilter(LeyfferFilter, 1.0)
	if f.switchingConditionHolds(1e-10, 1.0, 0) {
		t.Fatal("switchingConditionHolds() = true for LeyfferFilter, want always false")
	}
}
