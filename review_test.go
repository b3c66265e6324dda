package botguard

import (
	"errors"
	"math"
	"testing"
	"time"
)

func newTestWorkflow(t *testing.T) (*ReviewWorkflow, *InMemoryDetectionStore) {
	t.Helper()
	store := NewInMemoryDetectionStore()
	return NewReviewWorkflow(store, nil, nil, nil), store
}

func seedDetection(t *testing.T, store DetectionStore, id string, score int, status DetectionStatus) {
	t.Helper()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := store.AddDetection(&DetectionResult{
		ID:               id,
		UserID:           "user-1",
		IPAddress:        "203.0.113.7",
		ConfidenceScore:  score,
		DetectionReasons: []string{"seed"},
		Status:           status,
		CreatedAt:        created,
		UpdatedAt:        created,
	})
	if err != nil {
		t.Fatalf("failed to seed detection: %v", err)
	}
}

func TestSubmitReviewTransitions(t *testing.T) {
	cases := []struct {
		decision ReviewDecision
		status   DetectionStatus
	}{
		{DecisionConfirmBot, StatusConfirmedBot},
		{DecisionConfirmHuman, StatusConfirmedHuman},
		{DecisionNeedsMoreData, StatusPendingReview},
	}
	for _, tc := range cases {
		workflow, store := newTestWorkflow(t)
		seedDetection(t, store, "det-1", 60, StatusSuspected)

		reviewedAt := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
		feedback, err := workflow.SubmitReview(ManualReview{
			DetectionID:        "det-1",
			ReviewerID:         "analyst-7",
			Decision:           tc.decision,
			ReviewerConfidence: 80,
			ReviewedAt:         reviewedAt,
		})
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tc.decision, err)
		}
		if feedback.Status != tc.status {
			t.Fatalf("decision %s: expected status %s, got %s", tc.decision, tc.status, feedback.Status)
		}

		stored, err := store.GetDetection("det-1")
		if err != nil || stored == nil {
			t.Fatalf("failed to reload detection: %v", err)
		}
		if stored.Status != tc.status {
			t.Fatalf("stored status %s, expected %s", stored.Status, tc.status)
		}
		if stored.ReviewedBy != "analyst-7" {
			t.Fatalf("reviewedBy not stamped: %q", stored.ReviewedBy)
		}
		if stored.ReviewedAt == nil || !stored.ReviewedAt.Equal(reviewedAt) {
			t.Fatalf("reviewedAt not stamped: %v", stored.ReviewedAt)
		}
		if !stored.UpdatedAt.Equal(reviewedAt) {
			t.Fatalf("updatedAt not stamped: %v", stored.UpdatedAt)
		}
	}
}

func TestSubmitReviewUnknownDetection(t *testing.T) {
	workflow, store := newTestWorkflow(t)
	seedDetection(t, store, "det-1", 60, StatusSuspected)

	_, err := workflow.SubmitReview(ManualReview{
		DetectionID:        "missing",
		ReviewerID:         "analyst-7",
		Decision:           DecisionConfirmBot,
		ReviewerConfidence: 90,
		ReviewedAt:         time.Now(),
	})
	if !errors.Is(err, ErrDetectionNotFound) {
		t.Fatalf("expected ErrDetectionNotFound, got %v", err)
	}

	metrics, _ := store.Metrics()
	if metrics.TotalReviews != 0 {
		t.Fatalf("metrics mutated on failed review: %+v", metrics)
	}
	reviews, _ := store.ListReviews()
	if len(reviews) != 0 {
		t.Fatalf("review stored despite missing detection")
	}
}

func TestSubmitReviewInvalidDecision(t *testing.T) {
	workflow, store := newTestWorkflow(t)
	seedDetection(t, store, "det-1", 60, StatusSuspected)

	_, err := workflow.SubmitReview(ManualReview{
		DetectionID: "det-1",
		ReviewerID:  "analyst-7",
		Decision:    "maybe_bot",
		ReviewedAt:  time.Now(),
	})
	if !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
}

func TestAccuracyImprovementFormula(t *testing.T) {
	cases := []struct {
		score      int
		confidence int
		want       float64
	}{
		// confidence term only
		{100, 90, 0.27},
		// large disagreement
		{100, 20, 0.3*0.2 + 0.4},
		// ambiguous middle band
		{50, 60, 0.3*0.6 + 0.3},
		// all three terms, capped at 1.0
		{50, 100, 1.0},
		// zero confidence outside the band
		{0, 0, 0.0},
	}
	for _, tc := range cases {
		got := accuracyImprovement(tc.score, tc.confidence)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("improvement(%d, %d) = %v, expected %v", tc.score, tc.confidence, got, tc.want)
		}
		if got < 0 || got > 1 {
			t.Fatalf("improvement out of [0,1]: %v", got)
		}
	}
}

func TestHighConfidenceReviewAlwaysInformative(t *testing.T) {
	for score := 0; score <= 100; score += 10 {
		if got := accuracyImprovement(score, 90); got <= 0.2 {
			t.Fatalf("confidence 90 at score %d should yield improvement > 0.2, got %v", score, got)
		}
	}
}

func TestAccuracyBookkeeping(t *testing.T) {
	cases := []struct {
		name     string
		score    int
		status   DetectionStatus
		decision ReviewDecision
		correct  int
		fp       int
		fn       int
	}{
		{"confirmed bot confirmed", 85, StatusConfirmedBot, DecisionConfirmBot, 1, 0, 0},
		{"suspected confirmed as bot", 60, StatusSuspected, DecisionConfirmBot, 1, 0, 0},
		{"confirmed human confirmed", 10, StatusConfirmedHuman, DecisionConfirmHuman, 1, 0, 0},
		{"pending resolved either way", 40, StatusPendingReview, DecisionConfirmHuman, 1, 0, 0},
		{"false positive", 60, StatusSuspected, DecisionConfirmHuman, 0, 1, 0},
		{"false negative", 10, StatusConfirmedHuman, DecisionConfirmBot, 0, 0, 1},
		{"pending needs more data", 40, StatusPendingReview, DecisionNeedsMoreData, 0, 0, 0},
	}
	for _, tc := range cases {
		workflow, store := newTestWorkflow(t)
		seedDetection(t, store, "det-1", tc.score, tc.status)

		feedback, err := workflow.SubmitReview(ManualReview{
			DetectionID:        "det-1",
			ReviewerID:         "analyst-7",
			Decision:           tc.decision,
			ReviewerConfidence: 75,
			ReviewedAt:         time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}

		m := feedback.Metrics
		if m.TotalReviews != 1 {
			t.Fatalf("%s: expected 1 total review, got %d", tc.name, m.TotalReviews)
		}
		if m.CorrectDetections != tc.correct || m.FalsePositives != tc.fp || m.FalseNegatives != tc.fn {
			t.Fatalf("%s: metrics %+v, expected correct=%d fp=%d fn=%d", tc.name, m, tc.correct, tc.fp, tc.fn)
		}
		if m.OverallAccuracy < 0 || m.OverallAccuracy > 1 {
			t.Fatalf("%s: accuracy out of range: %v", tc.name, m.OverallAccuracy)
		}
	}
}

func TestRepeatReviewOverwritesButKeepsCounting(t *testing.T) {
	workflow, store := newTestWorkflow(t)
	seedDetection(t, store, "det-1", 60, StatusSuspected)

	base := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	for i, decision := range []ReviewDecision{DecisionNeedsMoreData, DecisionConfirmBot} {
		_, err := workflow.SubmitReview(ManualReview{
			DetectionID:        "det-1",
			ReviewerID:         "analyst-7",
			Decision:           decision,
			ReviewerConfidence: 70,
			ReviewedAt:         base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("review %d failed: %v", i, err)
		}
	}

	metrics, _ := store.Metrics()
	if metrics.TotalReviews != 2 {
		t.Fatalf("expected 2 total reviews, got %d", metrics.TotalReviews)
	}

	reviews, _ := store.ListReviews()
	if len(reviews) != 1 {
		t.Fatalf("expected one stored review after overwrite, got %d", len(reviews))
	}
	if reviews[0].Decision != DecisionConfirmBot {
		t.Fatalf("expected latest decision stored, got %s", reviews[0].Decision)
	}

	detection, _ := store.GetDetection("det-1")
	if detection.Status != StatusConfirmedBot {
		t.Fatalf("expected final status confirmed_bot, got %s", detection.Status)
	}
}

func TestNeedsMoreDataReentersPendingQueue(t *testing.T) {
	workflow, store := newTestWorkflow(t)
	seedDetection(t, store, "det-1", 60, StatusSuspected)

	_, err := workflow.SubmitReview(ManualReview{
		DetectionID:        "det-1",
		ReviewerID:         "analyst-7",
		Decision:           DecisionNeedsMoreData,
		ReviewerConfidence: 40,
		ReviewedAt:         time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	detection, _ := store.GetDetection("det-1")
	if detection.Status != StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", detection.Status)
	}
}
