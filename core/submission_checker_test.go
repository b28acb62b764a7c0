package core

import "testing"

// Concrete scenario: time-limit inference. A slowest AC runtime of 1.4s with
// time_multiplier=2 and safety_margin=2 yields the documented exact/timelim/
// lo/margin values.
func TestInferTimeLimitExample(t *testing.T) {
	timelim, lo, margin := inferTimeLimit(1.4, 2, 2)
	if timelim != 3 {
		t.Errorf("timelim = %v, want 3", timelim)
	}
	if lo != 1 {
		t.Errorf("lo = %v, want 1", lo)
	}
	if margin != 6 {
		t.Errorf("margin = %v, want 6", margin)
	}
}

func TestInferTimeLimitNeverBelowOne(t *testing.T) {
	timelim, lo, _ := inferTimeLimit(0.01, 1, 2)
	if timelim < 1 {
		t.Errorf("timelim = %v, want >= 1", timelim)
	}
	if lo < 1 {
		t.Errorf("lo = %v, want >= 1", lo)
	}
}

func TestInferTimeLimitMarginExceedsTimelim(t *testing.T) {
	timelim, _, margin := inferTimeLimit(2.0, 1, 1)
	if margin <= timelim {
		t.Errorf("margin = %v, want strictly greater than timelim = %v", margin, timelim)
	}
}
