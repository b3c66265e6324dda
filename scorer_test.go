package botguard

import (
	"reflect"
	"strings"
	"testing"
)

func botSample() ActivitySample {
	return ActivitySample{
		UserID:                 "user-1",
		IPAddress:              "203.0.113.7",
		UserAgent:              "curl/7.68.0",
		RequestsPerMinute:      200,
		HasJavaScript:          false,
		NavigationSpeed:        50,
		ViewingPatterns:        ViewingUnusual,
		IsDatacenterIP:         true,
		IsVPN:                  true,
		HasGeographicAnomalies: true,
	}
}

func humanSample() ActivitySample {
	return ActivitySample{
		UserID:            "user-2",
		IPAddress:         "198.51.100.20",
		UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15",
		RequestsPerMinute: 5,
		HasJavaScript:     true,
		NavigationSpeed:   2,
		ViewingPatterns:   ViewingNormal,
	}
}

func TestScoreAllSignalsTriggered(t *testing.T) {
	eval := Score(botSample(), DefaultCriteria())

	if eval.ConfidenceScore != 100 {
		t.Fatalf("expected score 100, got %d", eval.ConfidenceScore)
	}
	if eval.Status != StatusConfirmedBot {
		t.Fatalf("expected status confirmed_bot, got %s", eval.Status)
	}
	if len(eval.DetectionReasons) != 8 {
		t.Fatalf("expected 8 reasons, got %d: %v", len(eval.DetectionReasons), eval.DetectionReasons)
	}
}

func TestScoreCleanSample(t *testing.T) {
	eval := Score(humanSample(), DefaultCriteria())

	if eval.ConfidenceScore != 0 {
		t.Fatalf("expected score 0, got %d (%v)", eval.ConfidenceScore, eval.DetectionReasons)
	}
	if eval.Status != StatusConfirmedHuman {
		t.Fatalf("expected status confirmed_human, got %s", eval.Status)
	}
	if len(eval.DetectionReasons) != 0 {
		t.Fatalf("expected no reasons, got %v", eval.DetectionReasons)
	}
}

func TestScoreDeterministic(t *testing.T) {
	criteria := DefaultCriteria()
	samples := []ActivitySample{botSample(), humanSample(), {UserAgent: "Googlebot/2.1", HasJavaScript: true}}
	for _, sample := range samples {
		first := Score(sample, criteria)
		second := Score(sample, criteria)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("scoring is not deterministic: %+v vs %+v", first, second)
		}
	}
}

func TestScoreWeightSumInvariant(t *testing.T) {
	criteria := DefaultCriteria()
	samples := []ActivitySample{
		botSample(),
		humanSample(),
		{RequestsPerMinute: 100, HasJavaScript: true},
		{HasJavaScript: false, IsVPN: true},
		{UserAgent: "my-crawler/1.0", HasJavaScript: true, IsDatacenterIP: true},
		{HasJavaScript: true, ViewingPatterns: ViewingUnusual, HasGeographicAnomalies: true},
	}
	for _, sample := range samples {
		eval := Score(sample, criteria)
		sum := 0
		if sample.RequestsPerMinute > criteria.RequestFrequency.Threshold {
			sum += criteria.RequestFrequency.Weight
		}
		if len(matchUserAgent(sample.UserAgent, criteria.UserAgentPatterns)) > 0 {
			sum += criteria.UserAgentPatterns.Weight
		}
		if !sample.HasJavaScript {
			sum += criteria.BehaviorPatterns.NoJavaScript.Weight
		}
		if sample.NavigationSpeed > criteria.BehaviorPatterns.RapidNavigation.Threshold {
			sum += criteria.BehaviorPatterns.RapidNavigation.Weight
		}
		if sample.ViewingPatterns == ViewingUnusual {
			sum += criteria.BehaviorPatterns.UnusualViewingPatterns.Weight
		}
		if sample.IsDatacenterIP {
			sum += criteria.IPAnalysis.DatacenterIP.Weight
		}
		if sample.IsVPN {
			sum += criteria.IPAnalysis.VPN.Weight
		}
		if sample.HasGeographicAnomalies {
			sum += criteria.IPAnalysis.GeoAnomaly.Weight
		}
		if sum > 100 {
			sum = 100
		}
		if eval.ConfidenceScore != sum {
			t.Fatalf("score %d does not match capped weight sum %d for %+v", eval.ConfidenceScore, sum, sample)
		}
	}
}

func TestScoreReasonCountMatchesTriggeredSignals(t *testing.T) {
	criteria := DefaultCriteria()
	sample := ActivitySample{
		UserAgent:     "python-requests/2.31",
		HasJavaScript: false,
		IsVPN:         true,
	}
	eval := Score(sample, criteria)
	if len(eval.DetectionReasons) != 3 {
		t.Fatalf("expected 3 reasons, got %v", eval.DetectionReasons)
	}
	if eval.ConfidenceScore == 0 {
		t.Fatalf("expected non-zero score with triggered signals")
	}
}

func TestStatusThresholds(t *testing.T) {
	cases := []struct {
		score  int
		status DetectionStatus
	}{
		{0, StatusConfirmedHuman},
		{29, StatusConfirmedHuman},
		{30, StatusPendingReview},
		{49, StatusPendingReview},
		{50, StatusSuspected},
		{79, StatusSuspected},
		{80, StatusConfirmedBot},
		{100, StatusConfirmedBot},
	}
	for _, tc := range cases {
		if got := statusForScore(tc.score); got != tc.status {
			t.Fatalf("score %d: expected %s, got %s", tc.score, tc.status, got)
		}
	}
}

func TestScoreCapsAtHundred(t *testing.T) {
	criteria := DefaultCriteria()
	criteria.RequestFrequency.Weight = 90
	criteria.BehaviorPatterns.NoJavaScript.Weight = 90

	eval := Score(ActivitySample{RequestsPerMinute: 1000}, criteria)
	if eval.ConfidenceScore != 100 {
		t.Fatalf("expected capped score 100, got %d", eval.ConfidenceScore)
	}
	if len(eval.DetectionReasons) != 2 {
		t.Fatalf("expected 2 reasons, got %v", eval.DetectionReasons)
	}
}

func TestScoreHandlesNegativeInputs(t *testing.T) {
	eval := Score(ActivitySample{
		RequestsPerMinute: -10,
		NavigationSpeed:   -5,
		HasJavaScript:     true,
	}, DefaultCriteria())
	if eval.ConfidenceScore != 0 {
		t.Fatalf("expected score 0 for negative rates, got %d", eval.ConfidenceScore)
	}
}

func TestMatchUserAgentListsAllMatches(t *testing.T) {
	criteria := DefaultCriteria().UserAgentPatterns
	matched := matchUserAgent("SuperBot spider curl/8.0", criteria)
	for _, want := range []string{"bot", "spider", "curl"} {
		found := false
		for _, m := range matched {
			if m == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %q in matches, got %v", want, matched)
		}
	}

	eval := Score(ActivitySample{UserAgent: "SuperBot spider", HasJavaScript: true}, DefaultCriteria())
	if len(eval.DetectionReasons) != 1 {
		t.Fatalf("expected a single user agent reason, got %v", eval.DetectionReasons)
	}
	if !strings.Contains(eval.DetectionReasons[0], "bot") || !strings.Contains(eval.DetectionReasons[0], "spider") {
		t.Fatalf("reason should list matched substrings: %s", eval.DetectionReasons[0])
	}
}

func TestMatchUserAgentIsCaseInsensitive(t *testing.T) {
	criteria := DefaultCriteria().UserAgentPatterns
	if len(matchUserAgent("CURL/7.0", criteria)) == 0 {
		t.Fatalf("expected case-insensitive match for CURL")
	}
	if len(matchUserAgent("Mozilla/5.0 Firefox/115.0", criteria)) != 0 {
		t.Fatalf("expected no match for a benign browser agent")
	}
}
