// Package schedule emits wall-clock driven events. With nothing scheduled
// CheckTime does nothing.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"fleettrack/internal/event"
	"fleettrack/internal/fix"
)

type entry struct {
	code     event.Code
	interval time.Duration
	priority event.Priority
	next     time.Time
}

// Timer fires registered periodic events.
type Timer struct {
	queue event.Queue

	mu      sync.Mutex
	entries []*entry
}

func New(q event.Queue) *Timer {
	return &Timer{queue: q}
}

// Schedule registers code to be emitted every interval. The first
// emission happens one interval after the next CheckTime call.
func (t *Timer) Schedule(code event.Code, interval time.Duration, p event.Priority) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be > 0", code)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.code == code {
			e.interval = interval
			e.priority = p
			e.next = time.Time{}
			return nil
		}
	}
	t.entries = append(t.entries, &entry{code: code, interval: interval, priority: p})
	return nil
}

// Cancel removes code from the schedule.
func (t *Timer) Cancel(code event.Code) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.code == code {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// CheckTime emits every entry due at now, attaching last as the fix.
// A clock jump larger than one interval produces a single event.
func (t *Timer) CheckTime(now time.Time, last fix.Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.next.IsZero() {
			e.next = now.Add(e.interval)
			continue
		}
		if now.Before(e.next) {
			continue
		}
		event.Emit(t.queue, e.priority, e.code, last)
		e.next = e.next.Add(e.interval)
		if !e.next.After(now) {
			e.next = now.Add(e.interval)
		}
	}
}
