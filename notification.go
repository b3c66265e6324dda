package botguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type AlertKind string

const (
	AlertConfirmedBot           AlertKind = "confirmed_bot"
	AlertClassificationOverride AlertKind = "classification_override"
)

// AlertPayload describes one detection or review event worth telling an
// operator about.
type AlertPayload struct {
	Kind        AlertKind       `json:"kind"`
	DetectionID string          `json:"detectionId"`
	UserID      string          `json:"userId,omitempty"`
	IPAddress   string          `json:"ipAddress,omitempty"`
	Score       int             `json:"score"`
	Status      DetectionStatus `json:"status"`
	Reasons     []string        `json:"reasons,omitempty"`
	ReviewerID  string          `json:"reviewerId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// AlertSender delivers alerts over one channel.
type AlertSender interface {
	Send(ctx context.Context, payload *AlertPayload) error
	Name() string
}

// AlertRegistry fans alerts out to every registered sender. Delivery is
// asynchronous and never blocks request processing.
type AlertRegistry struct {
	mu      sync.RWMutex
	senders map[string]AlertSender
	logger  *logrus.Logger
}

func NewAlertRegistry(logger *logrus.Logger) *AlertRegistry {
	if logger == nil {
		logger = logrus.New()
	}
	registry := &AlertRegistry{
		senders: make(map[string]AlertSender),
		logger:  logger,
	}
	registry.Register(&LogAlertSender{logger: logger})
	return registry
}

func (r *AlertRegistry) Register(sender AlertSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[sender.Name()] = sender
}

func (r *AlertRegistry) Notify(ctx context.Context, payload *AlertPayload) {
	if payload == nil {
		return
	}
	r.mu.RLock()
	senders := make([]AlertSender, 0, len(r.senders))
	for _, sender := range r.senders {
		senders = append(senders, sender)
	}
	r.mu.RUnlock()

	for _, sender := range senders {
		go func(sender AlertSender) {
			sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := sender.Send(sendCtx, payload); err != nil {
				r.logger.WithError(err).WithField("channel", sender.Name()).
					Warn("failed to deliver alert")
			}
		}(sender)
	}
}

// LogAlertSender writes alerts to the structured log.
type LogAlertSender struct {
	logger *logrus.Logger
}

func (s *LogAlertSender) Name() string {
	return "log"
}

func (s *LogAlertSender) Send(ctx context.Context, payload *AlertPayload) error {
	s.logger.WithFields(logrus.Fields{
		"kind":        payload.Kind,
		"detectionId": payload.DetectionID,
		"ipAddress":   payload.IPAddress,
		"score":       payload.Score,
		"status":      payload.Status,
		"reviewer":    payload.ReviewerID,
	}).Warn("bot detection alert")
	return nil
}

// WebhookAlertSender POSTs alerts to a configured endpoint as JSON.
type WebhookAlertSender struct {
	client *http.Client
	url    string
}

func NewWebhookAlertSender(url string) *WebhookAlertSender {
	return &WebhookAlertSender{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

func (s *WebhookAlertSender) Name() string {
	return "webhook"
}

func (s *WebhookAlertSender) Send(ctx context.Context, payload *AlertPayload) error {
	if s.url == "" {
		return fmt.Errorf("webhook url not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BotGuard-Alert/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
