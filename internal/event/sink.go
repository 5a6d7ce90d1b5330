package event

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Sink delivers one event to its destination.
type Sink interface {
	Send(ev Event) error
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Send(ev Event) error {
	f := ev.Fix
	log.Printf("event code=%s priority=%s seq=%d ts=%d lat=%.6f lon=%.6f speed=%.1f odom=%.3f",
		ev.Code(), ev.Priority, ev.Seq, f.Timestamp, f.Lat, f.Lon, f.Speed, f.Odometer)
	return nil
}

// Forwarder drains a MemoryQueue into a Sink in priority order. Failed
// deliveries are requeued and retried with a doubling backoff.
type Forwarder struct {
	Queue *MemoryQueue
	Sink  Sink

	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (f *Forwarder) Run(ctx context.Context) error {
	if f == nil || f.Queue == nil || f.Sink == nil {
		return fmt.Errorf("event forwarder is not configured")
	}
	initial := f.BackoffInitial
	if initial <= 0 {
		initial = 250 * time.Millisecond
	}
	maxBackoff := f.BackoffMax
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	backoff := initial

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev, ok := f.Queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-f.Queue.Ready():
			}
			continue
		}

		if err := f.Sink.Send(ev); err != nil {
			f.Queue.Requeue(ev)
			log.Printf("event send failed code=%s seq=%d: %v (retry in %s)", ev.Code(), ev.Seq, err, backoff)
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initial
	}
}
