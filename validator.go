package botguard

import (
	"fmt"
)

type DefaultCriteriaValidator struct{}

func NewDefaultCriteriaValidator() *DefaultCriteriaValidator {
	return &DefaultCriteriaValidator{}
}

func (v *DefaultCriteriaValidator) Validate(criteria *DetectionCriteria) error {
	if criteria == nil {
		return fmt.Errorf("criteria is nil")
	}

	weights := map[string]int{
		"requestFrequency":                        criteria.RequestFrequency.Weight,
		"userAgentPatterns":                       criteria.UserAgentPatterns.Weight,
		"behaviorPatterns.noJavaScript":           criteria.BehaviorPatterns.NoJavaScript.Weight,
		"behaviorPatterns.rapidNavigation":        criteria.BehaviorPatterns.RapidNavigation.Weight,
		"behaviorPatterns.unusualViewingPatterns": criteria.BehaviorPatterns.UnusualViewingPatterns.Weight,
		"ipAnalysis.datacenterIP":                 criteria.IPAnalysis.DatacenterIP.Weight,
		"ipAnalysis.vpn":                          criteria.IPAnalysis.VPN.Weight,
		"ipAnalysis.geoAnomaly":                   criteria.IPAnalysis.GeoAnomaly.Weight,
	}
	for name, weight := range weights {
		if weight < 0 {
			return fmt.Errorf("signal %s has negative weight: %d", name, weight)
		}
	}

	if criteria.RequestFrequency.Threshold < 0 {
		return fmt.Errorf("requestFrequency has negative threshold: %v", criteria.RequestFrequency.Threshold)
	}
	if criteria.BehaviorPatterns.RapidNavigation.Threshold < 0 {
		return fmt.Errorf("rapidNavigation has negative threshold: %v", criteria.BehaviorPatterns.RapidNavigation.Threshold)
	}

	for i, s := range criteria.UserAgentPatterns.KnownBotSubstrings {
		if s == "" {
			return fmt.Errorf("knownBotSubstrings entry %d is empty", i)
		}
	}
	for i, s := range criteria.UserAgentPatterns.SuspiciousSubstrings {
		if s == "" {
			return fmt.Errorf("suspiciousSubstrings entry %d is empty", i)
		}
	}

	return nil
}
