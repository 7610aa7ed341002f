package race

import "fmt"

// Acceptance thresholds for a race-detection run.
const (
	MinFastSuccessRate    = 0.70 // fast profile, across repeated trials
	MinOverallSuccessRate = 0.50 // aggregate across all profiles
	MaxSevereShare        = 0.30 // accept-first + service-not-ready share
)

// AcceptanceReport summarizes a result set against the acceptance policy.
type AcceptanceReport struct {
	Total              int
	Succeeded          int
	FastTotal          int
	FastSucceeded      int
	SevereCount        int
	FastSuccessRate    float64
	OverallSuccessRate float64
	SevereShare        float64
	Passed             bool
	Failures           []string
}

// EvaluateAcceptance checks a result set against the acceptance policy:
// fast-profile success >= 70%, overall success >= 50%, and the most
// severe classes (accept-first, service-not-ready) <= 30% of attempts.
func EvaluateAcceptance(results []TestResult) AcceptanceReport {
	report := AcceptanceReport{Total: len(results)}
	if report.Total == 0 {
		report.Failures = append(report.Failures, "no attempts recorded")
		return report
	}

	for _, r := range results {
		if r.Success {
			report.Succeeded++
		}
		if r.ProfileName == ProfileFast.Name {
			report.FastTotal++
			if r.Success {
				report.FastSucceeded++
			}
		}
		if r.RaceType == TypeAcceptFirst || r.RaceType == TypeServiceNotReady {
			report.SevereCount++
		}
	}

	report.OverallSuccessRate = float64(report.Succeeded) / float64(report.Total)
	report.SevereShare = float64(report.SevereCount) / float64(report.Total)
	if report.FastTotal > 0 {
		report.FastSuccessRate = float64(report.FastSucceeded) / float64(report.FastTotal)
	}

	if report.FastTotal > 0 && report.FastSuccessRate < MinFastSuccessRate {
		report.Failures = append(report.Failures,
			fmt.Sprintf("fast profile success rate %.2f below %.2f", report.FastSuccessRate, MinFastSuccessRate))
	}
	if report.OverallSuccessRate < MinOverallSuccessRate {
		report.Failures = append(report.Failures,
			fmt.Sprintf("overall success rate %.2f below %.2f", report.OverallSuccessRate, MinOverallSuccessRate))
	}
	if report.SevereShare > MaxSevereShare {
		report.Failures = append(report.Failures,
			fmt.Sprintf("severe race share %.2f above %.2f", report.SevereShare, MaxSevereShare))
	}

	report.Passed = len(report.Failures) == 0
	return report
}
