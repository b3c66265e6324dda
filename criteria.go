package botguard

import (
	"encoding/json"
	"fmt"
	"os"
)

// DetectionCriteria holds the immutable weights and thresholds for every
// scoring signal. Weights are not normalized; the score is capped at 100.
type DetectionCriteria struct {
	RequestFrequency  FrequencyCriteria `json:"requestFrequency"`
	UserAgentPatterns UserAgentCriteria `json:"userAgentPatterns"`
	BehaviorPatterns  BehaviorCriteria  `json:"behaviorPatterns"`
	IPAnalysis        IPCriteria        `json:"ipAnalysis"`
}

type FrequencyCriteria struct {
	Threshold float64 `json:"threshold"`
	Weight    int     `json:"weight"`
}

type UserAgentCriteria struct {
	KnownBotSubstrings   []string `json:"knownBotSubstrings"`
	SuspiciousSubstrings []string `json:"suspiciousSubstrings"`
	Weight               int      `json:"weight"`
}

type BehaviorCriteria struct {
	NoJavaScript           WeightedSignal    `json:"noJavaScript"`
	RapidNavigation        FrequencyCriteria `json:"rapidNavigation"`
	UnusualViewingPatterns WeightedSignal    `json:"unusualViewingPatterns"`
}

type IPCriteria struct {
	DatacenterIP WeightedSignal `json:"datacenterIP"`
	VPN          WeightedSignal `json:"vpn"`
	GeoAnomaly   WeightedSignal `json:"geoAnomaly"`
}

type WeightedSignal struct {
	Weight int `json:"weight"`
}

// DefaultCriteria returns the reference configuration.
func DefaultCriteria() DetectionCriteria {
	return DetectionCriteria{
		RequestFrequency: FrequencyCriteria{Threshold: 60, Weight: 30},
		UserAgentPatterns: UserAgentCriteria{
			KnownBotSubstrings: []string{
				"bot", "crawler", "spider", "scraper", "curl", "wget",
			},
			SuspiciousSubstrings: []string{
				"python-requests", "go-http-client", "java/", "headless",
				"phantomjs", "selenium",
			},
			Weight: 25,
		},
		BehaviorPatterns: BehaviorCriteria{
			NoJavaScript:           WeightedSignal{Weight: 20},
			RapidNavigation:        FrequencyCriteria{Threshold: 10, Weight: 15},
			UnusualViewingPatterns: WeightedSignal{Weight: 10},
		},
		IPAnalysis: IPCriteria{
			DatacenterIP: WeightedSignal{Weight: 15},
			VPN:          WeightedSignal{Weight: 10},
			GeoAnomaly:   WeightedSignal{Weight: 5},
		},
	}
}

const maxCriteriaFileSize = 1024 * 1024 // 1MB

// LoadCriteria reads a criteria file, fills unset substring lists from the
// defaults and validates the result. Malformed weights are a load-time
// error; the scoring engine never re-validates.
func LoadCriteria(path string, validator CriteriaValidator) (*DetectionCriteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read criteria file %s: %w", path, err)
	}
	if len(data) > maxCriteriaFileSize {
		return nil, fmt.Errorf("criteria file %s is too large", path)
	}

	criteria := DefaultCriteria()
	if err := json.Unmarshal(data, &criteria); err != nil {
		return nil, fmt.Errorf("failed to parse criteria file %s: %w", path, err)
	}

	if validator == nil {
		validator = NewDefaultCriteriaValidator()
	}
	if err := validator.Validate(&criteria); err != nil {
		return nil, fmt.Errorf("invalid criteria in %s: %w", path, err)
	}
	return &criteria, nil
}
