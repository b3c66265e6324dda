package botguard

import "time"

// DetectionStatus is the current classification state of a detection record.
type DetectionStatus string

const (
	StatusSuspected      DetectionStatus = "suspected"
	StatusConfirmedBot   DetectionStatus = "confirmed_bot"
	StatusConfirmedHuman DetectionStatus = "confirmed_human"
	StatusPendingReview  DetectionStatus = "pending_review"
)

// ReviewDecision is the verdict a human reviewer submits for a detection.
type ReviewDecision string

const (
	DecisionConfirmBot    ReviewDecision = "confirm_bot"
	DecisionConfirmHuman  ReviewDecision = "confirm_human"
	DecisionNeedsMoreData ReviewDecision = "needs_more_data"
)

// ViewingPattern describes how a visitor consumes pages.
type ViewingPattern string

const (
	ViewingNormal  ViewingPattern = "normal"
	ViewingUnusual ViewingPattern = "unusual"
)

// ActivitySample is one immutable observation of a visitor, evaluated exactly once.
type ActivitySample struct {
	UserID                 string         `json:"userId"`
	IPAddress              string         `json:"ipAddress"`
	UserAgent              string         `json:"userAgent"`
	RequestsPerMinute      float64        `json:"requestsPerMinute"`
	HasJavaScript          bool           `json:"hasJavaScript"`
	NavigationSpeed        float64        `json:"navigationSpeed"`
	ViewingPatterns        ViewingPattern `json:"viewingPatterns"`
	IsDatacenterIP         bool           `json:"isDatacenterIP"`
	IsVPN                  bool           `json:"isVPN"`
	HasGeographicAnomalies bool           `json:"hasGeographicAnomalies"`
}

// DetectionResult is the stored outcome of scoring one activity sample.
// Status and reviewer fields are mutated only by the review workflow.
type DetectionResult struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	IPAddress        string          `json:"ipAddress"`
	UserAgent        string          `json:"userAgent"`
	ConfidenceScore  int             `json:"confidenceScore"`
	DetectionReasons []string        `json:"detectionReasons"`
	Status           DetectionStatus `json:"status"`
	ReviewedBy       string          `json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time      `json:"reviewedAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// ManualReview is a human decision about a stored detection.
type ManualReview struct {
	DetectionID        string         `json:"detectionId"`
	ReviewerID         string         `json:"reviewerId"`
	Decision           ReviewDecision `json:"decision"`
	ReviewerConfidence int            `json:"confidence"`
	Notes              string         `json:"notes,omitempty"`
	ReviewedAt         time.Time      `json:"reviewedAt"`
}

// AccuracyMetrics aggregates review outcomes over the lifetime of a store.
type AccuracyMetrics struct {
	TotalReviews      int     `json:"totalReviews"`
	CorrectDetections int     `json:"correctDetections"`
	FalsePositives    int     `json:"falsePositives"`
	FalseNegatives    int     `json:"falseNegatives"`
	OverallAccuracy   float64 `json:"overallAccuracy"`
}

// ReviewFeedback is returned to the caller after a review is accepted.
type ReviewFeedback struct {
	DetectionID         string          `json:"detectionId"`
	Status              DetectionStatus `json:"status"`
	AccuracyImprovement float64         `json:"accuracyImprovement"`
	Metrics             AccuracyMetrics `json:"metrics"`
}

// ReviewHistoryEntry joins a stored review with its detection.
type ReviewHistoryEntry struct {
	Review    ManualReview    `json:"review"`
	Detection DetectionResult `json:"detection"`
}

func validDecision(d ReviewDecision) bool {
	switch d {
	case DecisionConfirmBot, DecisionConfirmHuman, DecisionNeedsMoreData:
		return true
	}
	return false
}
