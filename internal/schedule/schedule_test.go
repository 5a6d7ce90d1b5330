package schedule

import (
	"testing"
	"time"

	"fleettrack/internal/event"
	"fleettrack/internal/fix"
)

func TestTimer_NoScheduleIsNoop(t *testing.T) {
	rec := &event.Recorder{}
	tm := New(rec)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		tm.CheckTime(now.Add(time.Duration(i)*time.Hour), fix.New())
	}
	if len(rec.Events) != 0 {
		t.Fatalf("events=%d want 0", len(rec.Events))
	}
}

func TestTimer_PeriodicAndClockJump(t *testing.T) {
	rec := &event.Recorder{}
	tm := New(rec)
	if err := tm.Schedule(event.CodeElapsedLimit, time.Minute, event.PriorityLow); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := tm.Schedule(event.CodeLocation, 0, event.PriorityLow); err == nil {
		t.Fatalf("expected error for zero interval")
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	last := fix.New()
	last.Timestamp = now.Unix()
	for s := 0; s <= 180; s++ {
		tm.CheckTime(now.Add(time.Duration(s)*time.Second), last)
	}
	if len(rec.Events) != 3 {
		t.Fatalf("events=%d want 3", len(rec.Events))
	}
	if rec.Events[0].Code() != event.CodeElapsedLimit || rec.Events[0].Fix.Timestamp != last.Timestamp {
		t.Fatalf("unexpected event %+v", rec.Events[0])
	}

	// A 10 minute jump yields one event, not ten.
	tm.CheckTime(now.Add(13*time.Minute), last)
	if len(rec.Events) != 4 {
		t.Fatalf("events=%d want 4 after clock jump", len(rec.Events))
	}

	tm.Cancel(event.CodeElapsedLimit)
	tm.CheckTime(now.Add(time.Hour), last)
	if len(rec.Events) != 4 {
		t.Fatalf("cancelled entry still firing")
	}
}
