package botguard

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ReviewWorkflow applies human decisions to stored detections and keeps the
// accuracy accumulator current. Each submission is one atomic
// read-compute-write over a detection record and the shared metrics, so a
// single mutex is the entire concurrency story.
type ReviewWorkflow struct {
	mu      sync.Mutex
	store   DetectionStore
	metrics MetricsCollector
	alerts  *AlertRegistry
	logger  *logrus.Logger
}

func NewReviewWorkflow(store DetectionStore, metrics MetricsCollector, alerts *AlertRegistry, logger *logrus.Logger) *ReviewWorkflow {
	if logger == nil {
		logger = logrus.New()
	}
	return &ReviewWorkflow{
		store:   store,
		metrics: metrics,
		alerts:  alerts,
		logger:  logger,
	}
}

// SubmitReview records a reviewer decision for an existing detection. An
// unknown detection id fails with ErrDetectionNotFound and leaves the store
// and metrics untouched.
func (w *ReviewWorkflow) SubmitReview(review ManualReview) (ReviewFeedback, error) {
	if !validDecision(review.Decision) {
		return ReviewFeedback{}, fmt.Errorf("%w: %q", ErrInvalidDecision, review.Decision)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	detection, err := w.store.GetDetection(review.DetectionID)
	if err != nil {
		return ReviewFeedback{}, fmt.Errorf("failed to load detection %s: %w", review.DetectionID, err)
	}
	if detection == nil {
		return ReviewFeedback{}, fmt.Errorf("%w: %s", ErrDetectionNotFound, review.DetectionID)
	}

	originalScore := detection.ConfidenceScore
	originalStatus := detection.Status
	improvement := accuracyImprovement(originalScore, review.ReviewerConfidence)

	detection.Status = statusForDecision(review.Decision)
	detection.ReviewedBy = review.ReviewerID
	reviewedAt := review.ReviewedAt
	detection.ReviewedAt = &reviewedAt
	detection.UpdatedAt = review.ReviewedAt

	if err := w.store.UpdateDetection(detection); err != nil {
		return ReviewFeedback{}, fmt.Errorf("failed to update detection %s: %w", review.DetectionID, err)
	}
	if err := w.store.SaveReview(&review); err != nil {
		return ReviewFeedback{}, fmt.Errorf("failed to save review for %s: %w", review.DetectionID, err)
	}

	metrics, err := w.store.Metrics()
	if err != nil {
		return ReviewFeedback{}, fmt.Errorf("failed to load accuracy metrics: %w", err)
	}
	applyReviewOutcome(&metrics, originalStatus, originalScore, review.Decision)
	if err := w.store.PutMetrics(metrics); err != nil {
		return ReviewFeedback{}, fmt.Errorf("failed to store accuracy metrics: %w", err)
	}

	if w.metrics != nil {
		w.metrics.IncrementCounter("botguard_reviews_total", map[string]string{
			"decision": string(review.Decision),
		})
		w.metrics.SetGauge("botguard_overall_accuracy", metrics.OverallAccuracy, nil)
	}

	w.logger.WithFields(logrus.Fields{
		"detectionId": review.DetectionID,
		"reviewer":    review.ReviewerID,
		"decision":    review.Decision,
		"fromStatus":  originalStatus,
		"toStatus":    detection.Status,
		"improvement": improvement,
	}).Info("review accepted")

	if w.alerts != nil && classificationFlipped(originalScore, review.Decision) {
		w.alerts.Notify(context.Background(), &AlertPayload{
			Kind:        AlertClassificationOverride,
			DetectionID: detection.ID,
			UserID:      detection.UserID,
			IPAddress:   detection.IPAddress,
			Score:       originalScore,
			Status:      detection.Status,
			ReviewerID:  review.ReviewerID,
			Timestamp:   review.ReviewedAt,
		})
	}

	return ReviewFeedback{
		DetectionID:         detection.ID,
		Status:              detection.Status,
		AccuracyImprovement: improvement,
		Metrics:             metrics,
	}, nil
}

func statusForDecision(decision ReviewDecision) DetectionStatus {
	switch decision {
	case DecisionConfirmBot:
		return StatusConfirmedBot
	case DecisionConfirmHuman:
		return StatusConfirmedHuman
	default:
		// needs_more_data sends the detection back to the review queue.
		return StatusPendingReview
	}
}

// accuracyImprovement estimates how much a review should inform future
// scoring, in [0,1]. Reviewer confidence always contributes; a large gap
// between the automatic score and the reviewer signals high learning value,
// as does a score in the ambiguous middle band.
func accuracyImprovement(originalScore, reviewerConfidence int) float64 {
	if reviewerConfidence < 0 {
		reviewerConfidence = 0
	} else if reviewerConfidence > 100 {
		reviewerConfidence = 100
	}

	improvement := 0.3 * float64(reviewerConfidence) / 100
	diff := originalScore - reviewerConfidence
	if diff < 0 {
		diff = -diff
	}
	if diff > 30 {
		improvement += 0.4
	}
	if originalScore >= 30 && originalScore <= 70 {
		improvement += 0.3
	}
	if improvement > 1.0 {
		improvement = 1.0
	}
	return improvement
}

// applyReviewOutcome folds one review into the accuracy accumulator. The
// suspected+confirm_human case only counts as a false positive through the
// score>=50 branch, never via status; that asymmetry is inherited behavior
// and kept as is.
func applyReviewOutcome(metrics *AccuracyMetrics, status DetectionStatus, score int, decision ReviewDecision) {
	metrics.TotalReviews++

	correct := false
	switch {
	case (status == StatusConfirmedBot || status == StatusSuspected) && decision == DecisionConfirmBot:
		correct = true
	case status == StatusConfirmedHuman && decision == DecisionConfirmHuman:
		correct = true
	case status == StatusPendingReview && decision != DecisionNeedsMoreData:
		correct = true
	}

	if correct {
		metrics.CorrectDetections++
	} else if score >= 50 && decision == DecisionConfirmHuman {
		metrics.FalsePositives++
	} else if score < 50 && decision == DecisionConfirmBot {
		metrics.FalseNegatives++
	}

	metrics.OverallAccuracy = float64(metrics.CorrectDetections) / float64(metrics.TotalReviews)
}

// classificationFlipped reports whether a reviewer overturned the automatic
// verdict, which is worth alerting on.
func classificationFlipped(originalScore int, decision ReviewDecision) bool {
	if originalScore >= 50 && decision == DecisionConfirmHuman {
		return true
	}
	if originalScore < 50 && decision == DecisionConfirmBot {
		return true
	}
	return false
}
