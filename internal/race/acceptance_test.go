package race

import "testing"

func results(n int, profile string, success bool, raceType Type) []TestResult {
	out := make([]TestResult, n)
	for i := range out {
		out[i] = TestResult{
			Success:      success,
			ProfileName:  profile,
			RaceType:     raceType,
			RaceDetected: raceType != TypeNone,
		}
	}
	return out
}

func TestEvaluateAcceptance_Passes(t *testing.T) {
	set := append(results(8, "fast", true, TypeNone), results(2, "fast", false, TypeConnectionTimeout)...)
	set = append(set, results(5, "stress", true, TypeNone)...)

	report := EvaluateAcceptance(set)
	if !report.Passed {
		t.Fatalf("expected pass, failures: %v", report.Failures)
	}
	if report.FastSuccessRate != 0.8 {
		t.Errorf("FastSuccessRate = %.2f, want 0.80", report.FastSuccessRate)
	}
}

func TestEvaluateAcceptance_FastBelowThreshold(t *testing.T) {
	set := append(results(3, "fast", true, TypeNone), results(2, "fast", false, TypeConnectionTimeout)...)

	report := EvaluateAcceptance(set)
	if report.Passed {
		t.Fatal("expected failure: fast success rate 0.60 < 0.70")
	}
}

func TestEvaluateAcceptance_SevereShareTooHigh(t *testing.T) {
	set := append(results(6, "typical", true, TypeNone), results(4, "typical", false, TypeServiceNotReady)...)

	report := EvaluateAcceptance(set)
	if report.Passed {
		t.Fatal("expected failure: severe share 0.40 > 0.30")
	}
	if report.SevereCount != 4 {
		t.Errorf("SevereCount = %d, want 4", report.SevereCount)
	}
}

func TestEvaluateAcceptance_Empty(t *testing.T) {
	report := EvaluateAcceptance(nil)
	if report.Passed {
		t.Error("empty result set must not pass")
	}
}
