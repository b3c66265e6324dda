package botguard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DetectionEngine coordinates one evaluation: score the sample, persist the
// detection, record the ledger and bump metrics. The id and timestamp come
// from the caller so the scoring path stays deterministic.
type DetectionEngine struct {
	store    DetectionStore
	criteria *CriteriaProvider
	metrics  MetricsCollector
	ledger   *DetectionLedger
	alerts   *AlertRegistry
	logger   *logrus.Logger
}

func NewDetectionEngine(
	store DetectionStore,
	criteria *CriteriaProvider,
	metrics MetricsCollector,
	ledger *DetectionLedger,
	alerts *AlertRegistry,
	logger *logrus.Logger,
) *DetectionEngine {
	if logger == nil {
		logger = logrus.New()
	}
	return &DetectionEngine{
		store:    store,
		criteria: criteria,
		metrics:  metrics,
		ledger:   ledger,
		alerts:   alerts,
		logger:   logger,
	}
}

// Evaluate scores a sample under the active criteria and stores the result
// under the supplied fresh id.
func (e *DetectionEngine) Evaluate(sample ActivitySample, id string, now time.Time) (*DetectionResult, error) {
	if id == "" {
		return nil, ErrMissingDetectionID
	}

	evaluation := Score(sample, e.criteria.Current())
	result := &DetectionResult{
		ID:               id,
		UserID:           sample.UserID,
		IPAddress:        sample.IPAddress,
		UserAgent:        sample.UserAgent,
		ConfidenceScore:  evaluation.ConfidenceScore,
		DetectionReasons: evaluation.DetectionReasons,
		Status:           evaluation.Status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.store.AddDetection(result); err != nil {
		return nil, fmt.Errorf("failed to store detection %s: %w", id, err)
	}

	if e.metrics != nil {
		e.metrics.IncrementCounter("botguard_detections_total", map[string]string{
			"status": string(result.Status),
		})
		e.metrics.ObserveHistogram("botguard_confidence_score", float64(result.ConfidenceScore), nil)
	}

	if e.ledger != nil {
		e.ledger.Record(LedgerEvent{
			DetectionID: result.ID,
			UserID:      result.UserID,
			IPAddress:   result.IPAddress,
			Score:       result.ConfidenceScore,
			Status:      result.Status,
			Reasons:     len(result.DetectionReasons),
			Recorded:    now,
		})
	}

	e.logger.WithFields(logrus.Fields{
		"detectionId": result.ID,
		"ipAddress":   result.IPAddress,
		"score":       result.ConfidenceScore,
		"status":      result.Status,
		"signals":     len(result.DetectionReasons),
	}).Debug("activity sample scored")

	if e.alerts != nil && result.Status == StatusConfirmedBot {
		e.alerts.Notify(context.Background(), &AlertPayload{
			Kind:        AlertConfirmedBot,
			DetectionID: result.ID,
			UserID:      result.UserID,
			IPAddress:   result.IPAddress,
			Score:       result.ConfidenceScore,
			Status:      result.Status,
			Reasons:     result.DetectionReasons,
			Timestamp:   now,
		})
	}

	return result, nil
}
