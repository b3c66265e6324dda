package botguard

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS detections (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	ip_address        TEXT NOT NULL DEFAULT '',
	user_agent        TEXT NOT NULL DEFAULT '',
	confidence_score  INTEGER NOT NULL,
	detection_reasons TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL,
	reviewed_by       TEXT NOT NULL DEFAULT '',
	reviewed_at       TIMESTAMP,
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_detections_status ON detections(status);

CREATE TABLE IF NOT EXISTS reviews (
	detection_id TEXT PRIMARY KEY,
	reviewer_id  TEXT NOT NULL,
	decision     TEXT NOT NULL,
	confidence   INTEGER NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	reviewed_at  TIMESTAMP NOT NULL,
	position     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accuracy (
	id                 INTEGER PRIMARY KEY CHECK (id = 1),
	total_reviews      INTEGER NOT NULL DEFAULT 0,
	correct_detections INTEGER NOT NULL DEFAULT 0,
	false_positives    INTEGER NOT NULL DEFAULT 0,
	false_negatives    INTEGER NOT NULL DEFAULT 0,
	overall_accuracy   REAL NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO accuracy (id) VALUES (1);
`

// SQLDetectionStore implements DetectionStore on sqlite. It is the
// durable alternative to the in-memory store behind the same interface.
type SQLDetectionStore struct {
	db *sqlx.DB
}

// NewSQLDetectionStore opens (or creates) a sqlite database at dsn and
// ensures the schema. Use ":memory:" for tests.
func NewSQLDetectionStore(dsn string) (*SQLDetectionStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// sqlite serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLDetectionStore{db: db}, nil
}

func (s *SQLDetectionStore) Close() error {
	return s.db.Close()
}

type detectionRow struct {
	ID               string       `db:"id"`
	UserID           string       `db:"user_id"`
	IPAddress        string       `db:"ip_address"`
	UserAgent        string       `db:"user_agent"`
	ConfidenceScore  int          `db:"confidence_score"`
	DetectionReasons string       `db:"detection_reasons"`
	Status           string       `db:"status"`
	ReviewedBy       string       `db:"reviewed_by"`
	ReviewedAt       sql.NullTime `db:"reviewed_at"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

type reviewRow struct {
	DetectionID string    `db:"detection_id"`
	ReviewerID  string    `db:"reviewer_id"`
	Decision    string    `db:"decision"`
	Confidence  int       `db:"confidence"`
	Notes       string    `db:"notes"`
	ReviewedAt  time.Time `db:"reviewed_at"`
	Position    int64     `db:"position"`
}

func toDetectionRow(result *DetectionResult) (*detectionRow, error) {
	reasons := result.DetectionReasons
	if reasons == nil {
		reasons = []string{}
	}
	encoded, err := json.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("failed to encode detection reasons: %w", err)
	}
	row := &detectionRow{
		ID:               result.ID,
		UserID:           result.UserID,
		IPAddress:        result.IPAddress,
		UserAgent:        result.UserAgent,
		ConfidenceScore:  result.ConfidenceScore,
		DetectionReasons: string(encoded),
		Status:           string(result.Status),
		ReviewedBy:       result.ReviewedBy,
		CreatedAt:        result.CreatedAt,
		UpdatedAt:        result.UpdatedAt,
	}
	if result.ReviewedAt != nil {
		row.ReviewedAt = sql.NullTime{Time: *result.ReviewedAt, Valid: true}
	}
	return row, nil
}

func (r *detectionRow) toDetection() (*DetectionResult, error) {
	var reasons []string
	if err := json.Unmarshal([]byte(r.DetectionReasons), &reasons); err != nil {
		return nil, fmt.Errorf("failed to decode detection reasons for %s: %w", r.ID, err)
	}
	result := &DetectionResult{
		ID:               r.ID,
		UserID:           r.UserID,
		IPAddress:        r.IPAddress,
		UserAgent:        r.UserAgent,
		ConfidenceScore:  r.ConfidenceScore,
		DetectionReasons: reasons,
		Status:           DetectionStatus(r.Status),
		ReviewedBy:       r.ReviewedBy,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.ReviewedAt.Valid {
		at := r.ReviewedAt.Time
		result.ReviewedAt = &at
	}
	return result, nil
}

const upsertDetection = `
INSERT INTO detections (
	id, user_id, ip_address, user_agent, confidence_score,
	detection_reasons, status, reviewed_by, reviewed_at, created_at, updated_at
) VALUES (
	:id, :user_id, :ip_address, :user_agent, :confidence_score,
	:detection_reasons, :status, :reviewed_by, :reviewed_at, :created_at, :updated_at
)
ON CONFLICT(id) DO UPDATE SET
	user_id = excluded.user_id,
	ip_address = excluded.ip_address,
	user_agent = excluded.user_agent,
	confidence_score = excluded.confidence_score,
	detection_reasons = excluded.detection_reasons,
	status = excluded.status,
	reviewed_by = excluded.reviewed_by,
	reviewed_at = excluded.reviewed_at,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at`

func (s *SQLDetectionStore) AddDetection(result *DetectionResult) error {
	if result == nil || result.ID == "" {
		return ErrMissingDetectionID
	}
	row, err := toDetectionRow(result)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExec(upsertDetection, row); err != nil {
		return fmt.Errorf("failed to insert detection %s: %w", result.ID, err)
	}
	return nil
}

func (s *SQLDetectionStore) GetDetection(id string) (*DetectionResult, error) {
	var row detectionRow
	err := s.db.Get(&row, `SELECT * FROM detections WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load detection %s: %w", id, err)
	}
	return row.toDetection()
}

func (s *SQLDetectionStore) UpdateDetection(result *DetectionResult) error {
	if result == nil || result.ID == "" {
		return ErrMissingDetectionID
	}
	existing, err := s.GetDetection(result.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrDetectionNotFound
	}
	return s.AddDetection(result)
}

func (s *SQLDetectionStore) ListPending() ([]*DetectionResult, error) {
	var rows []detectionRow
	err := s.db.Select(&rows,
		`SELECT * FROM detections WHERE status = ? AND reviewed_by = '' ORDER BY created_at`,
		string(StatusPendingReview))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending detections: %w", err)
	}
	pending := make([]*DetectionResult, 0, len(rows))
	for i := range rows {
		result, err := rows[i].toDetection()
		if err != nil {
			return nil, err
		}
		pending = append(pending, result)
	}
	return pending, nil
}

func (s *SQLDetectionStore) SaveReview(review *ManualReview) error {
	if review == nil || review.DetectionID == "" {
		return ErrMissingDetectionID
	}
	_, err := s.db.Exec(`
INSERT INTO reviews (detection_id, reviewer_id, decision, confidence, notes, reviewed_at, position)
VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM reviews))
ON CONFLICT(detection_id) DO UPDATE SET
	reviewer_id = excluded.reviewer_id,
	decision = excluded.decision,
	confidence = excluded.confidence,
	notes = excluded.notes,
	reviewed_at = excluded.reviewed_at,
	position = excluded.position`,
		review.DetectionID, review.ReviewerID, string(review.Decision),
		review.ReviewerConfidence, review.Notes, review.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to save review for %s: %w", review.DetectionID, err)
	}
	return nil
}

func (s *SQLDetectionStore) ListReviews() ([]*ManualReview, error) {
	var rows []reviewRow
	if err := s.db.Select(&rows, `SELECT * FROM reviews ORDER BY position`); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	reviews := make([]*ManualReview, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, &ManualReview{
			DetectionID:        row.DetectionID,
			ReviewerID:         row.ReviewerID,
			Decision:           ReviewDecision(row.Decision),
			ReviewerConfidence: row.Confidence,
			Notes:              row.Notes,
			ReviewedAt:         row.ReviewedAt,
		})
	}
	return reviews, nil
}

func (s *SQLDetectionStore) Metrics() (AccuracyMetrics, error) {
	var metrics AccuracyMetrics
	err := s.db.QueryRow(`
SELECT total_reviews, correct_detections, false_positives, false_negatives, overall_accuracy
FROM accuracy WHERE id = 1`).Scan(
		&metrics.TotalReviews, &metrics.CorrectDetections,
		&metrics.FalsePositives, &metrics.FalseNegatives, &metrics.OverallAccuracy)
	if err != nil {
		return AccuracyMetrics{}, fmt.Errorf("failed to load accuracy metrics: %w", err)
	}
	return metrics, nil
}

func (s *SQLDetectionStore) PutMetrics(metrics AccuracyMetrics) error {
	_, err := s.db.Exec(`
UPDATE accuracy SET
	total_reviews = ?, correct_detections = ?, false_positives = ?,
	false_negatives = ?, overall_accuracy = ?
WHERE id = 1`,
		metrics.TotalReviews, metrics.CorrectDetections,
		metrics.FalsePositives, metrics.FalseNegatives, metrics.OverallAccuracy)
	if err != nil {
		return fmt.Errorf("failed to store accuracy metrics: %w", err)
	}
	return nil
}

func (s *SQLDetectionStore) HealthCheck() error {
	return s.db.Ping()
}
