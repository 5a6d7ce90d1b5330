// Package motion turns a stream of fixes into start, stop, in-motion,
// dormant and excess-speed events.
package motion

import (
	"log"

	"fleettrack/internal/event"
	"fleettrack/internal/fix"
	"fleettrack/internal/props"
)

type StartType int

const (
	// StartSpeed: moving when speed >= motion.start km/h.
	StartSpeed StartType = 0
	// StartDistance: moving when the fix is motion.start meters or more away
	// from the last motion fix.
	StartDistance StartType = 1
)

type StopType int

const (
	// StopAfterDelay attaches the fix seen when the stop delay expires.
	StopAfterDelay StopType = 0
	// StopWhenStopped attaches the first stopped fix.
	StopWhenStopped StopType = 1
)

const (
	MinInMotionInterval = 60
	MinDormantInterval  = 60

	defaultStopDelay = 180
)

// State is the machine's memory between fixes. Timers are fix timestamps in
// seconds; 0 means unarmed.
type State struct {
	InMotion       bool
	ExceedingSpeed bool

	LastMotionFix    fix.Fix
	HasLastMotionFix bool
	LastStoppedFix   fix.Fix

	LastStoppedTimer  int64
	LastInMotionTimer int64
	LastDormantTimer  int64
	DormantCount      int64
}

// Machine must be driven from a single goroutine.
type Machine struct {
	props props.Store
	queue event.Queue
	state State
}

func New(store props.Store, q event.Queue) *Machine {
	return &Machine{props: store, queue: q}
}

// State returns a copy of the current state.
func (m *Machine) State() State { return m.state }

// CheckFix feeds one fix. Invalid fixes are ignored.
func (m *Machine) CheckFix(f fix.Fix) {
	if !f.Valid {
		return
	}
	now := f.Timestamp

	m.checkExcessSpeed(f)

	threshold := m.props.Float(props.MotionStart, 0)
	if threshold <= 0 {
		// Disabled: drop anything armed while it was enabled.
		if m.state.InMotion || m.state.LastStoppedTimer != 0 {
			log.Printf("motion disabled, resetting state")
		}
		m.state.InMotion = false
		m.state.LastStoppedTimer = 0
		return
	}

	stopType := StopType(m.props.Int(props.MotionStopType, int64(StopAfterDelay)))
	moving := m.isMoving(f, threshold)

	switch {
	case moving:
		m.state.LastStoppedTimer = 0
		if !m.state.InMotion {
			m.state.InMotion = true
			m.state.LastInMotionTimer = now
			m.state.DormantCount = 0
			m.state.LastDormantTimer = 0
			event.Emit(m.queue, event.PriorityNormal, event.CodeMotionStart, f)
		}
	case m.state.InMotion:
		if m.state.LastStoppedTimer == 0 {
			m.state.LastStoppedTimer = now
			m.state.LastStoppedFix = f
		}
		delay := m.props.Int(props.MotionStop, defaultStopDelay)
		if now-m.state.LastStoppedTimer >= delay {
			stopFix := f
			if stopType == StopWhenStopped {
				stopFix = m.state.LastStoppedFix
			}
			m.state.InMotion = false
			m.state.LastStoppedTimer = 0
			m.state.DormantCount = 0
			m.state.LastDormantTimer = now
			event.Emit(m.queue, event.PriorityNormal, event.CodeMotionStop, stopFix)
			return
		}
	}

	if m.state.InMotion {
		m.checkInMotion(f, moving, stopType)
	} else {
		m.checkDormant(f)
	}
}

func (m *Machine) isMoving(f fix.Fix, threshold float64) bool {
	switch StartType(m.props.Int(props.MotionStartType, int64(StartSpeed))) {
	case StartDistance:
		if !m.state.HasLastMotionFix {
			m.state.LastMotionFix = f
			m.state.HasLastMotionFix = true
			return false
		}
		if fix.Distance(m.state.LastMotionFix, f) < threshold {
			return false
		}
		// A poor fix can jump further than the threshold on its own.
		if !m.state.InMotion && f.HasAccuracy() && f.Accuracy > threshold {
			return false
		}
		m.state.LastMotionFix = f
		return true
	default:
		if f.Speed < threshold {
			return false
		}
		m.state.LastMotionFix = f
		m.state.HasLastMotionFix = true
		return true
	}
}

func (m *Machine) checkInMotion(f fix.Fix, moving bool, stopType StopType) {
	interval := clampInterval(m.props.Int(props.MotionInMotion, 0), MinInMotionInterval)
	if interval <= 0 || f.Timestamp-m.state.LastInMotionTimer < interval {
		return
	}
	m.state.LastInMotionTimer = f.Timestamp
	// With when_stopped the vehicle already counts as stopped while the
	// stop delay runs.
	if moving || stopType == StopAfterDelay {
		event.Emit(m.queue, event.PriorityLow, event.CodeInMotion, f)
	}
}

func (m *Machine) checkDormant(f fix.Fix) {
	interval := clampInterval(m.props.Int(props.MotionDormantInterval, 0), MinDormantInterval)
	if interval <= 0 {
		return
	}
	if m.state.LastDormantTimer == 0 {
		m.state.LastDormantTimer = f.Timestamp
		return
	}
	if f.Timestamp-m.state.LastDormantTimer < interval {
		return
	}
	m.state.LastDormantTimer = f.Timestamp
	max := m.props.Int(props.MotionDormantCount, 0)
	if max > 0 && m.state.DormantCount >= max {
		return
	}
	m.state.DormantCount++
	event.Emit(m.queue, event.PriorityLow, event.CodeDormant, f)
}

func (m *Machine) checkExcessSpeed(f fix.Fix) {
	limit := m.props.Float(props.MotionExcessSpeed, 0)
	if limit <= 0 || f.Speed < limit {
		m.state.ExceedingSpeed = false
		return
	}
	if m.state.ExceedingSpeed {
		return
	}
	m.state.ExceedingSpeed = true
	event.Emit(m.queue, event.PriorityNormal, event.CodeExcessSpeed, f)
}

func clampInterval(v int64, min int64) int64 {
	if v <= 0 {
		return 0
	}
	if v < min {
		return min
	}
	return v
}
