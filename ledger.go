package botguard

import (
	"sync"
	"time"
)

// DetectionLedger keeps a short-lived record of recent evaluations for the
// stats endpoint. Entries are keyed by detection id and expire after the TTL.
type DetectionLedger struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*LedgerEvent
}

type LedgerEvent struct {
	DetectionID string          `json:"detectionId"`
	UserID      string          `json:"userId"`
	IPAddress   string          `json:"ipAddress"`
	Score       int             `json:"score"`
	Status      DetectionStatus `json:"status"`
	Reasons     int             `json:"reasons"`
	Recorded    time.Time       `json:"recorded"`
}

type LedgerSummary struct {
	ByStatus       map[DetectionStatus]int `json:"byStatus"`
	ActiveEntries  int                     `json:"activeEntries"`
	TriggeredTotal int                     `json:"triggeredTotal"`
	LastUpdated    time.Time               `json:"lastUpdated"`
}

func NewDetectionLedger(ttl time.Duration) *DetectionLedger {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DetectionLedger{
		ttl:     ttl,
		entries: make(map[string]*LedgerEvent),
	}
}

func (l *DetectionLedger) Record(event LedgerEvent) {
	if event.DetectionID == "" {
		return
	}
	if event.Recorded.IsZero() {
		event.Recorded = time.Now()
	}
	l.mu.Lock()
	l.entries[event.DetectionID] = &event
	l.mu.Unlock()
}

func (l *DetectionLedger) Snapshot() []LedgerEvent {
	now := time.Now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	var events []LedgerEvent
	for _, entry := range l.entries {
		if now.Sub(entry.Recorded) > l.ttl {
			continue
		}
		events = append(events, *entry)
	}
	return events
}

func (l *DetectionLedger) Cleanup() {
	now := time.Now()
	l.mu.Lock()
	for id, entry := range l.entries {
		if now.Sub(entry.Recorded) > l.ttl {
			delete(l.entries, id)
		}
	}
	l.mu.Unlock()
}

func (l *DetectionLedger) Summary() LedgerSummary {
	summary := LedgerSummary{
		ByStatus: make(map[DetectionStatus]int),
	}
	for _, ev := range l.Snapshot() {
		summary.ByStatus[ev.Status]++
		summary.ActiveEntries++
		if ev.Reasons > 0 {
			summary.TriggeredTotal++
		}
		if ev.Recorded.After(summary.LastUpdated) {
			summary.LastUpdated = ev.Recorded
		}
	}
	return summary
}
