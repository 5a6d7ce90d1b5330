package web

import (
	"sync/atomic"
	"time"

	"fleettrack/internal/gps"
	"fleettrack/internal/tracker"
)

type GPSSource interface {
	Snapshot() gps.Snapshot
}

type TrackerSource interface {
	Stats() tracker.Stats
}

type QueueSource interface {
	Len() int
	Dropped() uint64
}

// Status assembles the /api/status document from the running components.
// Any source may be nil.
type Status struct {
	startUnixNano int64
	deviceID      atomic.Value // string

	GPS     GPSSource
	Tracker TrackerSource
	Queue   QueueSource
}

func NewStatus(deviceID string) *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.deviceID.Store(deviceID)
	return s
}

type QueueSnapshot struct {
	Queued  int    `json:"queued"`
	Dropped uint64 `json:"dropped"`
}

type TrackerSnapshot struct {
	Processed      uint64  `json:"processed"`
	Gated          uint64  `json:"gated"`
	InMotion       bool    `json:"in_motion"`
	ExceedingSpeed bool    `json:"exceeding_speed"`
	DormantCount   int64   `json:"dormant_count"`
	OdometerMeters float64 `json:"odometer_meters"`
	LastFixUTC     string  `json:"last_fix_utc,omitempty"`
	LastLat        float64 `json:"last_lat,omitempty"`
	LastLon        float64 `json:"last_lon,omitempty"`
}

type StatusSnapshot struct {
	Service   string           `json:"service"`
	DeviceID  string           `json:"device_id"`
	NowUTC    string           `json:"now_utc"`
	UptimeSec int64            `json:"uptime_sec"`
	GPS       *gps.Snapshot    `json:"gps,omitempty"`
	Tracker   *TrackerSnapshot `json:"tracker,omitempty"`
	Queue     *QueueSnapshot   `json:"queue,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   "fleettrack",
		DeviceID:  s.deviceID.Load().(string),
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
	}
	if s.GPS != nil {
		g := s.GPS.Snapshot()
		snap.GPS = &g
	}
	if s.Tracker != nil {
		st := s.Tracker.Stats()
		ts := &TrackerSnapshot{
			Processed:      st.Processed,
			Gated:          st.Gated,
			InMotion:       st.Motion.InMotion,
			ExceedingSpeed: st.Motion.ExceedingSpeed,
			DormantCount:   st.Motion.DormantCount,
			OdometerMeters: st.Odometer.Meters,
		}
		if st.LastFix.Timestamp > 0 {
			ts.LastFixUTC = st.LastFix.Time().Format(time.RFC3339)
			ts.LastLat = st.LastFix.Lat
			ts.LastLon = st.LastFix.Lon
		}
		snap.Tracker = ts
	}
	if s.Queue != nil {
		snap.Queue = &QueueSnapshot{Queued: s.Queue.Len(), Dropped: s.Queue.Dropped()}
	}
	return snap
}
