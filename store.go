package botguard

import (
	"sync"
)

// InMemoryDetectionStore implements DetectionStore with mutex-guarded maps.
// Detections and reviews are kept in two maps keyed by detection id, next to
// the shared accuracy accumulator.
type InMemoryDetectionStore struct {
	mu          sync.RWMutex
	detections  map[string]*DetectionResult
	reviews     map[string]*ManualReview
	reviewOrder []string
	metrics     AccuracyMetrics
}

func NewInMemoryDetectionStore() *InMemoryDetectionStore {
	return &InMemoryDetectionStore{
		detections: make(map[string]*DetectionResult),
		reviews:    make(map[string]*ManualReview),
	}
}

func (s *InMemoryDetectionStore) AddDetection(result *DetectionResult) error {
	if result == nil || result.ID == "" {
		return ErrMissingDetectionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Last writer for a given id wins.
	s.detections[result.ID] = copyDetection(result)
	return nil
}

func (s *InMemoryDetectionStore) GetDetection(id string) (*DetectionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, exists := s.detections[id]
	if !exists {
		return nil, nil
	}
	return copyDetection(result), nil
}

func (s *InMemoryDetectionStore) UpdateDetection(result *DetectionResult) error {
	if result == nil || result.ID == "" {
		return ErrMissingDetectionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.detections[result.ID]; !exists {
		return ErrDetectionNotFound
	}
	s.detections[result.ID] = copyDetection(result)
	return nil
}

func (s *InMemoryDetectionStore) ListPending() ([]*DetectionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []*DetectionResult
	for _, result := range s.detections {
		if result.Status == StatusPendingReview && result.ReviewedBy == "" {
			pending = append(pending, copyDetection(result))
		}
	}
	return pending, nil
}

func (s *InMemoryDetectionStore) SaveReview(review *ManualReview) error {
	if review == nil || review.DetectionID == "" {
		return ErrMissingDetectionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reviews[review.DetectionID]; exists {
		// Overwrite counts as a fresh submission for ordering purposes.
		for i, id := range s.reviewOrder {
			if id == review.DetectionID {
				s.reviewOrder = append(s.reviewOrder[:i], s.reviewOrder[i+1:]...)
				break
			}
		}
	}
	stored := *review
	s.reviews[review.DetectionID] = &stored
	s.reviewOrder = append(s.reviewOrder, review.DetectionID)
	return nil
}

func (s *InMemoryDetectionStore) ListReviews() ([]*ManualReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reviews := make([]*ManualReview, 0, len(s.reviewOrder))
	for _, id := range s.reviewOrder {
		if review, exists := s.reviews[id]; exists {
			copied := *review
			reviews = append(reviews, &copied)
		}
	}
	return reviews, nil
}

func (s *InMemoryDetectionStore) Metrics() (AccuracyMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics, nil
}

func (s *InMemoryDetectionStore) PutMetrics(metrics AccuracyMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = metrics
	return nil
}

func (s *InMemoryDetectionStore) HealthCheck() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_ = len(s.detections)
	_ = len(s.reviews)
	return nil
}

func copyDetection(result *DetectionResult) *DetectionResult {
	copied := *result
	if result.DetectionReasons != nil {
		copied.DetectionReasons = append([]string(nil), result.DetectionReasons...)
	}
	if result.ReviewedAt != nil {
		at := *result.ReviewedAt
		copied.ReviewedAt = &at
	}
	return &copied
}
