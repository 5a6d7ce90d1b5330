// Package event defines the telemetry events produced by the tracker and the
// queue they are handed to.
package event

import (
	"fmt"

	"fleettrack/internal/fix"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Code is a status code. Values are part of the wire protocol and must not
// change.
type Code uint16

const (
	CodeLocation      Code = 0xF020
	CodeMotionStart   Code = 0xE011
	CodeMotionStop    Code = 0xE012
	CodeInMotion      Code = 0xE013
	CodeDormant       Code = 0xE014
	CodeExcessSpeed   Code = 0xE021
	CodeOdometerLimit Code = 0xE031
	CodeElapsedLimit  Code = 0xE041
)

var codeNames = map[Code]string{
	CodeLocation:      "location",
	CodeMotionStart:   "motion.start",
	CodeMotionStop:    "motion.stop",
	CodeInMotion:      "motion.inmotion",
	CodeDormant:       "motion.dormant",
	CodeExcessSpeed:   "motion.excess",
	CodeOdometerLimit: "odometer.limit",
	CodeElapsedLimit:  "elapsed.limit",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("0x%04X", uint16(c))
}

// Event is a queued fix snapshot. The status code travels in Fix.Status.
type Event struct {
	Seq      uint64   `json:"seq"`
	Priority Priority `json:"priority"`
	Fix      fix.Fix  `json:"fix"`
}

func (e Event) Code() Code { return Code(e.Fix.Status) }

// Queue accepts ownership of a fix snapshot tagged with a status code.
type Queue interface {
	AddEvent(p Priority, f fix.Fix)
}

// Emit stamps code onto a copy of f and hands it to q.
func Emit(q Queue, p Priority, code Code, f fix.Fix) {
	if q == nil {
		return
	}
	f.Status = uint16(code)
	q.AddEvent(p, f)
}

// Recorder is a Queue that keeps every event in arrival order.
type Recorder struct {
	Events []Event
}

func (r *Recorder) AddEvent(p Priority, f fix.Fix) {
	r.Events = append(r.Events, Event{Seq: uint64(len(r.Events) + 1), Priority: p, Fix: f})
}

// Codes lists recorded codes in order.
func (r *Recorder) Codes() []Code {
	out := make([]Code, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Code())
	}
	return out
}
