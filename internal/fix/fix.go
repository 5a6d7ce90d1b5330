// Package fix holds the position fix value shared by every stage of the
// tracker, plus the arbitration policy used to pick the best of two fixes.
package fix

import (
	"math"
	"time"
)

// Unknown marks an accuracy or heading that the source did not report.
const Unknown = -1.0

// Fix is one positioning sample.
//
// Fix is a value type: stages copy it in and out of shared slots and never
// hand out pointers into state owned by another goroutine.
type Fix struct {
	// Timestamp is UTC seconds since the epoch. Invalid fixes carry 0.
	Timestamp int64 `json:"timestamp"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Accuracy is the horizontal accuracy in meters (Unknown when absent).
	Accuracy float64 `json:"accuracy"`
	Altitude float64 `json:"altitude"`
	// Speed is ground speed in km/h.
	Speed float64 `json:"speed"`
	// Heading is degrees true (Unknown when absent).
	Heading float64 `json:"heading"`
	HDOP    float64 `json:"hdop,omitempty"`

	Provider string `json:"provider,omitempty"`

	// Odometer is the accumulated distance in km, stamped by the odometer stage.
	Odometer float64 `json:"odometer"`
	// Status is the event status code attached when the fix is queued.
	Status uint16 `json:"status,omitempty"`

	Valid bool `json:"valid"`
}

// New returns an invalid fix with unknown accuracy and heading.
func New() Fix {
	return Fix{Accuracy: Unknown, Heading: Unknown}
}

// Time returns the fix timestamp as a UTC time.
func (f Fix) Time() time.Time {
	if f.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(f.Timestamp, 0).UTC()
}

// Age is how old the fix is relative to now.
func (f Fix) Age(now time.Time) time.Duration {
	if f.Timestamp <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(f.Time())
}

// HasAccuracy reports whether the source reported an accuracy.
func (f Fix) HasAccuracy() bool {
	return f.Accuracy >= 0
}

// InRange reports whether the coordinates lie strictly inside the valid
// latitude/longitude ranges.
func (f Fix) InRange() bool {
	return f.Lat > -90 && f.Lat < 90 && f.Lon > -180 && f.Lon < 180
}

// Invalidate clears validity and the timestamp sentinel.
func (f *Fix) Invalidate() {
	f.Valid = false
	f.Timestamp = 0
}
