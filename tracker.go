package botguard

import (
	"fmt"
	"sort"
)

// AccuracyTracker is a read-only projection over the accuracy accumulator
// and the stored reviews.
type AccuracyTracker struct {
	store DetectionStore
}

func NewAccuracyTracker(store DetectionStore) *AccuracyTracker {
	return &AccuracyTracker{store: store}
}

func (t *AccuracyTracker) Metrics() (AccuracyMetrics, error) {
	return t.store.Metrics()
}

// History returns every stored review joined with its detection, most recent
// first. Reviews sharing a reviewedAt keep their insertion order.
func (t *AccuracyTracker) History() ([]ReviewHistoryEntry, error) {
	reviews, err := t.store.ListReviews()
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	entries := make([]ReviewHistoryEntry, 0, len(reviews))
	for _, review := range reviews {
		detection, err := t.store.GetDetection(review.DetectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load detection %s: %w", review.DetectionID, err)
		}
		if detection == nil {
			// Detections are never deleted by this subsystem; a dangling
			// review means an external cleanup ran, so skip it.
			continue
		}
		entries = append(entries, ReviewHistoryEntry{
			Review:    *review,
			Detection: *detection,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Review.ReviewedAt.After(entries[j].Review.ReviewedAt)
	})
	return entries, nil
}
