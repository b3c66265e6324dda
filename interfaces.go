package botguard

// DetectionStore is the pluggable storage boundary for detections, reviews
// and the shared accuracy accumulator. Implementations must support
// concurrent AddDetection/GetDetection; the review workflow serializes its
// own read-modify-write on top of this interface.
type DetectionStore interface {
	AddDetection(result *DetectionResult) error
	GetDetection(id string) (*DetectionResult, error)
	UpdateDetection(result *DetectionResult) error
	ListPending() ([]*DetectionResult, error)

	// SaveReview stores a review keyed by its detection id. A second review
	// for the same detection overwrites the first and moves it to the end of
	// the insertion order.
	SaveReview(review *ManualReview) error
	ListReviews() ([]*ManualReview, error)

	Metrics() (AccuracyMetrics, error)
	PutMetrics(metrics AccuracyMetrics) error

	HealthCheck() error
}

// CriteriaValidator validates a criteria configuration at load time.
type CriteriaValidator interface {
	Validate(criteria *DetectionCriteria) error
}

// MetricsCollector is the observability boundary.
type MetricsCollector interface {
	IncrementCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
	HealthCheck() error
	ExportPrometheus() string
}
