package score

import "testing"

func TestComputeVacuouslyPerfect(t *testing.T) {
	if got := Compute(0, 0, 0, 0, 0, 0); got != 100.0 {
		t.Errorf("no rules and no records: got %v, want 100.0", got)
	}
	if got := Compute(10, 0, 1, 0, 0, 0); got != 100.0 {
		t.Errorf("no records: got %v, want 100.0", got)
	}
	if got := Compute(0, 10, 1, 0, 0, 0); got != 100.0 {
		t.Errorf("no rules: got %v, want 100.0", got)
	}
}

func TestComputeNoOpenViolations(t *testing.T) {
	if got := Compute(10, 20, 0, 0, 0, 0); got != 100.0 {
		t.Errorf("clean slate: got %v, want 100.0", got)
	}
}

func TestComputeWeightedPenalty(t *testing.T) {
	// weighted = 4+3+2+1 = 10, coverage = 10*20 = 200
	// score = 100 - 10/200*100*5 = 75.0
	if got := Compute(10, 20, 1, 1, 1, 1); got != 75.0 {
		t.Errorf("one of each severity: got %v, want 75.0", got)
	}
}

func TestComputeFloorsAtZero(t *testing.T) {
	// 2x2 coverage: a single critical is weighted 4, 100 - 4/4*100*5 < 0.
	if got := Compute(2, 2, 1, 0, 0, 0); got != 0.0 {
		t.Errorf("critical under tiny coverage: got %v, want 0.0", got)
	}
	// Even a single low violation saturates the penalty at this scale.
	if got := Compute(2, 2, 0, 0, 0, 1); got != 0.0 {
		t.Errorf("low under tiny coverage: got %v, want 0.0", got)
	}
}

func TestComputeRoundsToOneDecimal(t *testing.T) {
	// weighted = 1, coverage = 30 -> 100 - 1/30*500 = 83.333... -> 83.3
	if got := Compute(3, 10, 0, 0, 0, 1); got != 83.3 {
		t.Errorf("rounding: got %v, want 83.3", got)
	}
}
