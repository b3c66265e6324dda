package botguard

import (
	"testing"
	"time"
)

func TestLedgerRecordAndSummary(t *testing.T) {
	ledger := NewDetectionLedger(time.Minute)
	ledger.Record(LedgerEvent{DetectionID: "a", Score: 100, Status: StatusConfirmedBot, Reasons: 8})
	ledger.Record(LedgerEvent{DetectionID: "b", Score: 0, Status: StatusConfirmedHuman})
	ledger.Record(LedgerEvent{DetectionID: "c", Score: 60, Status: StatusSuspected, Reasons: 3})
	ledger.Record(LedgerEvent{}) // no id, dropped

	summary := ledger.Summary()
	if summary.ActiveEntries != 3 {
		t.Fatalf("expected 3 active entries, got %d", summary.ActiveEntries)
	}
	if summary.ByStatus[StatusConfirmedBot] != 1 || summary.ByStatus[StatusSuspected] != 1 {
		t.Fatalf("unexpected status breakdown: %+v", summary.ByStatus)
	}
	if summary.TriggeredTotal != 2 {
		t.Fatalf("expected 2 triggered entries, got %d", summary.TriggeredTotal)
	}
}

func TestLedgerExpiry(t *testing.T) {
	ledger := NewDetectionLedger(50 * time.Millisecond)
	ledger.Record(LedgerEvent{DetectionID: "a", Status: StatusConfirmedBot})

	time.Sleep(80 * time.Millisecond)
	if events := ledger.Snapshot(); len(events) != 0 {
		t.Fatalf("expected expired entries to be excluded, got %d", len(events))
	}

	ledger.Cleanup()
	ledger.Record(LedgerEvent{DetectionID: "b", Status: StatusSuspected})
	if events := ledger.Snapshot(); len(events) != 1 || events[0].DetectionID != "b" {
		t.Fatalf("unexpected snapshot after cleanup: %+v", events)
	}
}

func TestLedgerRecordOverwritesByID(t *testing.T) {
	ledger := NewDetectionLedger(time.Minute)
	ledger.Record(LedgerEvent{DetectionID: "a", Score: 40, Status: StatusPendingReview})
	ledger.Record(LedgerEvent{DetectionID: "a", Score: 90, Status: StatusConfirmedBot})

	events := ledger.Snapshot()
	if len(events) != 1 || events[0].Score != 90 {
		t.Fatalf("expected overwrite by id, got %+v", events)
	}
}
