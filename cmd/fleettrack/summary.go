package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fleettrack/internal/props"
)

type propsSummary struct {
	OdometerMeters float64
	HasRef         bool
	RefLat         float64
	RefLon         float64
	RefTime        time.Time
	MotionStart    float64
	MotionStop     int64
	ExcessSpeed    float64
	LimitMeters    float64
	LimitRemaining float64
}

func summarizeProps(store props.Store) propsSummary {
	s := propsSummary{
		OdometerMeters: store.Float(props.OdomValue, 0),
		MotionStart:    store.Float(props.MotionStart, 0),
		MotionStop:     store.Int(props.MotionStop, 0),
		ExcessSpeed:    store.Float(props.MotionExcessSpeed, 0),
		LimitMeters:    store.Float(props.OdomLimit, 0),
	}
	if store.Has(props.OdomRefLat) && store.Has(props.OdomRefLon) {
		s.HasRef = true
		s.RefLat = store.Float(props.OdomRefLat, 0)
		s.RefLon = store.Float(props.OdomRefLon, 0)
		if ts := store.Int(props.OdomRefTime, 0); ts > 0 {
			s.RefTime = time.Unix(ts, 0).UTC()
		}
	}
	if s.LimitMeters > 0 {
		since := s.OdometerMeters - store.Float(props.OdomLimitRef, 0)
		s.LimitRemaining = s.LimitMeters - since
		if s.LimitRemaining < 0 {
			s.LimitRemaining = 0
		}
	}
	return s
}

func printPropsSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	store, err := props.Open(path)
	if err != nil {
		return err
	}
	s := summarizeProps(store)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "odometer: %s\n", humanizeMeters(s.OdometerMeters))
	if s.HasRef {
		fmt.Fprintf(w, "odometer_ref: %.6f,%.6f\n", s.RefLat, s.RefLon)
		if !s.RefTime.IsZero() {
			fmt.Fprintf(w, "odometer_ref_time: %s (%s)\n", s.RefTime.Format(time.RFC3339), humanize.Time(s.RefTime))
		}
	}
	if s.MotionStart > 0 {
		fmt.Fprintf(w, "motion_start: %g\n", s.MotionStart)
		fmt.Fprintf(w, "motion_stop: %ds\n", s.MotionStop)
	} else {
		fmt.Fprintf(w, "motion: disabled\n")
	}
	if s.ExcessSpeed > 0 {
		fmt.Fprintf(w, "excess_speed: %g km/h\n", s.ExcessSpeed)
	}
	if s.LimitMeters > 0 {
		fmt.Fprintf(w, "odometer_limit: %s (remaining %s)\n", humanizeMeters(s.LimitMeters), humanizeMeters(s.LimitRemaining))
	}
	return nil
}
