package botguard

import (
	"fmt"
	"strings"
)

// Evaluation is the pure output of scoring one activity sample. The caller
// owns id assignment and timestamps; Score itself never touches the clock.
type Evaluation struct {
	ConfidenceScore  int             `json:"confidenceScore"`
	Status           DetectionStatus `json:"status"`
	DetectionReasons []string        `json:"detectionReasons"`
}

// Score evaluates a single activity sample against the criteria. It is
// deterministic and side-effect free: the score is the weight sum of all
// triggered signals capped at 100, and the reason list carries one entry per
// triggered signal in fixed evaluation order.
func Score(sample ActivitySample, criteria DetectionCriteria) Evaluation {
	total := 0
	var reasons []string

	if sample.RequestsPerMinute > criteria.RequestFrequency.Threshold {
		total += criteria.RequestFrequency.Weight
		reasons = append(reasons, fmt.Sprintf(
			"high request frequency: %g requests/minute exceeds threshold %g",
			sample.RequestsPerMinute, criteria.RequestFrequency.Threshold))
	}

	if matched := matchUserAgent(sample.UserAgent, criteria.UserAgentPatterns); len(matched) > 0 {
		total += criteria.UserAgentPatterns.Weight
		reasons = append(reasons, fmt.Sprintf(
			"user agent matched bot patterns: %s", strings.Join(matched, ", ")))
	}

	if !sample.HasJavaScript {
		total += criteria.BehaviorPatterns.NoJavaScript.Weight
		reasons = append(reasons, "no JavaScript execution detected")
	}

	if sample.NavigationSpeed > criteria.BehaviorPatterns.RapidNavigation.Threshold {
		total += criteria.BehaviorPatterns.RapidNavigation.Weight
		reasons = append(reasons, fmt.Sprintf(
			"rapid navigation: %g pages/minute exceeds threshold %g",
			sample.NavigationSpeed, criteria.BehaviorPatterns.RapidNavigation.Threshold))
	}

	if sample.ViewingPatterns == ViewingUnusual {
		total += criteria.BehaviorPatterns.UnusualViewingPatterns.Weight
		reasons = append(reasons, "unusual content viewing pattern")
	}

	if sample.IsDatacenterIP {
		total += criteria.IPAnalysis.DatacenterIP.Weight
		reasons = append(reasons, "request originates from a datacenter IP")
	}

	if sample.IsVPN {
		total += criteria.IPAnalysis.VPN.Weight
		reasons = append(reasons, "request originates from a VPN")
	}

	if sample.HasGeographicAnomalies {
		total += criteria.IPAnalysis.GeoAnomaly.Weight
		reasons = append(reasons, "geographic anomaly detected")
	}

	score := clampScore(total)
	return Evaluation{
		ConfidenceScore:  score,
		Status:           statusForScore(score),
		DetectionReasons: reasons,
	}
}

// matchUserAgent returns every known-bot or suspicious substring contained
// in the lower-cased user agent, in criteria order.
func matchUserAgent(userAgent string, criteria UserAgentCriteria) []string {
	lower := strings.ToLower(userAgent)
	var matched []string
	for _, s := range criteria.KnownBotSubstrings {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			matched = append(matched, s)
		}
	}
	for _, s := range criteria.SuspiciousSubstrings {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			matched = append(matched, s)
		}
	}
	return matched
}

func clampScore(total int) int {
	if total > 100 {
		return 100
	}
	if total < 0 {
		return 0
	}
	return total
}

// statusForScore maps a confidence score onto the fixed classification
// bands, highest first.
func statusForScore(score int) DetectionStatus {
	switch {
	case score >= 80:
		return StatusConfirmedBot
	case score >= 50:
		return StatusSuspected
	case score >= 30:
		return StatusPendingReview
	default:
		return StatusConfirmedHuman
	}
}
