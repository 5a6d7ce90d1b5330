// Package tracker drives the state machines from the engine's accepted fix.
package tracker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fleettrack/internal/event"
	"fleettrack/internal/fix"
	"fleettrack/internal/motion"
	"fleettrack/internal/odometer"
	"fleettrack/internal/props"
	"fleettrack/internal/schedule"
)

// FixSource is the accepted-fix slot of the acquisition engine.
type FixSource interface {
	Accepted() (fix.Fix, uint64, bool)
}

type Config struct {
	// PollInterval is how often the accepted fix version is checked.
	PollInterval time.Duration
	// LocationInterval schedules periodic location reports; 0 disables.
	LocationInterval time.Duration
	// ElapsedLimit schedules a high priority elapsed-time event; 0 disables.
	ElapsedLimit time.Duration
}

// Stats is a point-in-time view for diagnostics and metrics.
type Stats struct {
	Processed uint64
	Gated     uint64
	LastFix   fix.Fix
	Motion    motion.State
	Odometer  odometer.State
}

// Tracker feeds every newly accepted fix through the odometer and motion
// stages, and lets the schedule timer fire on each poll. All stages run on
// the goroutine calling Step or Run.
type Tracker struct {
	cfg   Config
	src   FixSource
	store props.Store

	odo    *odometer.Accumulator
	motion *motion.Machine
	timer  *schedule.Timer

	now func() time.Time

	mu          sync.Mutex
	lastVersion uint64
	last        fix.Fix
	stats       Stats
}

func New(cfg Config, src FixSource, store props.Store, q event.Queue) (*Tracker, error) {
	if src == nil {
		return nil, fmt.Errorf("tracker fix source is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("tracker property store is nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	t := &Tracker{
		cfg:    cfg,
		src:    src,
		store:  store,
		odo:    odometer.New(store, q),
		motion: motion.New(store, q),
		timer:  schedule.New(q),
		now:    time.Now,
		last:   fix.New(),
	}
	if cfg.LocationInterval > 0 {
		if err := t.timer.Schedule(event.CodeLocation, cfg.LocationInterval, event.PriorityLow); err != nil {
			return nil, err
		}
	}
	if cfg.ElapsedLimit > 0 {
		if err := t.timer.Schedule(event.CodeElapsedLimit, cfg.ElapsedLimit, event.PriorityHigh); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Timer exposes the schedule so callers can register extra periodic events.
func (t *Tracker) Timer() *schedule.Timer { return t.timer }

// Run polls until ctx ends, then flushes the property store.
func (t *Tracker) Run(ctx context.Context) error {
	tick := time.NewTicker(t.cfg.PollInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := t.store.Save(); err != nil {
				log.Printf("tracker save failed: %v", err)
				return err
			}
			return nil
		case <-tick.C:
			t.Step(t.now())
		}
	}
}

// Step processes the accepted fix if it changed since the last call and
// runs the schedule. It reports whether a new fix went through the stages.
func (t *Tracker) Step(now time.Time) bool {
	f, version, ok := t.src.Accepted()

	t.mu.Lock()
	fresh := ok && version != t.lastVersion
	if fresh {
		t.lastVersion = version
	}
	t.mu.Unlock()

	processed := false
	if fresh {
		processed = t.process(f)
	}

	t.mu.Lock()
	last := t.last
	t.mu.Unlock()
	t.timer.CheckTime(now, last)
	return processed
}

func (t *Tracker) process(f fix.Fix) bool {
	if limit := t.store.Float(props.GPSAccuracy, 0); limit > 0 && f.HasAccuracy() && f.Accuracy > limit {
		t.mu.Lock()
		t.stats.Gated++
		t.mu.Unlock()
		return false
	}

	t.odo.CheckFix(&f)
	t.motion.CheckFix(f)

	t.mu.Lock()
	t.last = f
	t.stats.Processed++
	t.stats.LastFix = f
	t.stats.Motion = t.motion.State()
	t.stats.Odometer = t.odo.State()
	t.mu.Unlock()
	return true
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
