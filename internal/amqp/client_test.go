package amqp

import (
	"testing"
	"time"

	"frugal/internal/core"
)

func TestNewSummaryRunMessage(t *testing.T) {
	msg := NewSummaryRunMessage("user-1", core.Period("2026-08"))

	if msg.OwnerID != "user-1" {
		t.Errorf("OwnerID = %q, want user-1", msg.OwnerID)
	}
	if msg.Period != core.Period("2026-08") {
		t.Errorf("Period = %q, want 2026-08", msg.Period)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestSummaryRunMessageRoundTrip(t *testing.T) {
	msg := &SummaryRunMessage{
		OwnerID:   "user-1",
		Period:    core.Period("2026-07"),
		Timestamp: time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SummaryRunMessageFromJSON(body)
	if err != nil {
		t.Fatalf("SummaryRunMessageFromJSON() error = %v", err)
	}
	if parsed.OwnerID != msg.OwnerID || parsed.Period != msg.Period {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestSummaryRunMessageInvalidJSON(t *testing.T) {
	if _, err := SummaryRunMessageFromJSON([]byte(`{"owner_id": 42`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
