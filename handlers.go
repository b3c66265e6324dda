package botguard

import (
	"errors"
	"time"

	"github.com/avct/uasurfer"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Server exposes the detection core over HTTP with the wire field names
// external collaborators depend on.
type Server struct {
	engine   *DetectionEngine
	workflow *ReviewWorkflow
	tracker  *AccuracyTracker
	ledger   *DetectionLedger
	store    DetectionStore
	metrics  MetricsCollector
	logger   *logrus.Logger
}

func NewServer(
	engine *DetectionEngine,
	workflow *ReviewWorkflow,
	tracker *AccuracyTracker,
	ledger *DetectionLedger,
	store DetectionStore,
	metrics MetricsCollector,
	logger *logrus.Logger,
) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		engine:   engine,
		workflow: workflow,
		tracker:  tracker,
		ledger:   ledger,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use(s.timingMiddleware())

	api := app.Group("/api/v1")
	api.Post("/detections", s.handleDetect)
	api.Get("/detections/pending", s.handleListPending)
	api.Get("/detections/:id", s.handleGetDetection)
	api.Post("/reviews", s.handleSubmitReview)
	api.Get("/accuracy", s.handleAccuracy)
	api.Get("/accuracy/history", s.handleAccuracyHistory)
	api.Get("/stats", s.handleStats)

	app.Get("/metrics", s.handleMetrics)
	app.Get("/health", s.handleHealth)
}

func (s *Server) timingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if s.metrics != nil {
			s.metrics.ObserveHistogram("botguard_request_duration_seconds",
				time.Since(start).Seconds(), nil)
		}
		return err
	}
}

func (s *Server) handleDetect(c *fiber.Ctx) error {
	var sample ActivitySample
	if err := c.BodyParser(&sample); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid activity sample: " + err.Error(),
		})
	}
	if sample.ViewingPatterns == "" {
		sample.ViewingPatterns = ViewingNormal
	}
	if sample.ViewingPatterns != ViewingNormal && sample.ViewingPatterns != ViewingUnusual {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "viewingPatterns must be \"normal\" or \"unusual\"",
		})
	}
	if sample.UserAgent == "" {
		sample.UserAgent = c.Get("User-Agent")
	}

	s.recordUserAgentTelemetry(sample.UserAgent)

	result, err := s.engine.Evaluate(sample, uuid.NewString(), time.Now().UTC())
	if err != nil {
		s.logger.WithError(err).Error("evaluation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to evaluate activity sample",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// recordUserAgentTelemetry tags metrics and logs with parsed user agent
// details. Telemetry only; the score never depends on it.
func (s *Server) recordUserAgentTelemetry(userAgent string) {
	if userAgent == "" || s.metrics == nil {
		return
	}
	parsed := uasurfer.Parse(userAgent)
	s.metrics.IncrementCounter("botguard_user_agents_total", map[string]string{
		"browser": parsed.Browser.Name.String(),
		"bot":     boolLabel(parsed.IsBot()),
	})
}

func (s *Server) handleGetDetection(c *fiber.Ctx) error {
	result, err := s.store.GetDetection(c.Params("id"))
	if err != nil {
		s.logger.WithError(err).Error("failed to load detection")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load detection",
		})
	}
	if result == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "detection not found",
		})
	}
	return c.JSON(result)
}

func (s *Server) handleListPending(c *fiber.Ctx) error {
	pending, err := s.store.ListPending()
	if err != nil {
		s.logger.WithError(err).Error("failed to list pending detections")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list pending detections",
		})
	}
	if pending == nil {
		pending = []*DetectionResult{}
	}
	return c.JSON(pending)
}

func (s *Server) handleSubmitReview(c *fiber.Ctx) error {
	var review ManualReview
	if err := c.BodyParser(&review); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid review: " + err.Error(),
		})
	}
	if review.DetectionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "detectionId is required",
		})
	}
	if review.ReviewerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "reviewerId is required",
		})
	}
	if review.ReviewerConfidence < 0 || review.ReviewerConfidence > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "confidence must be between 0 and 100",
		})
	}
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = time.Now().UTC()
	}

	feedback, err := s.workflow.SubmitReview(review)
	if err != nil {
		switch {
		case errors.Is(err, ErrDetectionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "detection not found",
			})
		case errors.Is(err, ErrInvalidDecision):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "decision must be confirm_bot, confirm_human or needs_more_data",
			})
		default:
			s.logger.WithError(err).Error("review submission failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to submit review",
			})
		}
	}
	return c.JSON(feedback)
}

func (s *Server) handleAccuracy(c *fiber.Ctx) error {
	metrics, err := s.tracker.Metrics()
	if err != nil {
		s.logger.WithError(err).Error("failed to load accuracy metrics")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load accuracy metrics",
		})
	}
	return c.JSON(metrics)
}

func (s *Server) handleAccuracyHistory(c *fiber.Ctx) error {
	history, err := s.tracker.History()
	if err != nil {
		s.logger.WithError(err).Error("failed to build review history")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to build review history",
		})
	}
	if history == nil {
		history = []ReviewHistoryEntry{}
	}
	return c.JSON(history)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.ledger.Summary())
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(s.metrics.ExportPrometheus())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.store.HealthCheck(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
