// Package odometer accumulates traveled distance from the fix stream and
// persists it through the property store.
package odometer

import (
	"log"
	"math"

	"github.com/dustin/go-humanize"

	"fleettrack/internal/event"
	"fleettrack/internal/fix"
	"fleettrack/internal/props"
)

const (
	// DefaultMinDelta is used when odom.delta is unset.
	DefaultMinDelta = 500.0
	// CheckpointMeters is how much travel may go unsaved.
	CheckpointMeters = 50_000.0
)

// State mirrors what is persisted.
type State struct {
	Meters float64

	HasRef  bool
	RefLat  float64
	RefLon  float64
	RefTime int64

	// LastSaved is the accumulator value at the last checkpoint; -1 until
	// the first checkpoint of this process.
	LastSaved float64
}

// Accumulator must be driven from a single goroutine.
type Accumulator struct {
	props props.Store
	queue event.Queue

	loaded bool
	state  State
	// lastWritten is the odom.value this accumulator last put in the store,
	// saved or not; -1 until the first checkpoint.
	lastWritten float64
}

func New(store props.Store, q event.Queue) *Accumulator {
	return &Accumulator{props: store, queue: q, state: State{LastSaved: -1}, lastWritten: -1}
}

func (a *Accumulator) State() State { return a.state }

// Meters returns the accumulated distance.
func (a *Accumulator) Meters() float64 {
	a.load()
	return a.state.Meters
}

// CheckFix accumulates distance for f and stamps the odometer (km) onto it.
func (a *Accumulator) CheckFix(f *fix.Fix) {
	a.load()
	a.adoptExternalReset()
	defer func() { f.Odometer = a.state.Meters / 1000 }()

	if !f.Valid {
		return
	}

	if !a.state.HasRef {
		a.state.Meters = 0
		a.setRef(*f)
		a.checkpoint()
		return
	}

	d := fix.DistanceLatLon(a.state.RefLat, a.state.RefLon, f.Lat, f.Lon)
	minDelta := a.props.Float(props.OdomDelta, DefaultMinDelta)
	if d < minDelta {
		return
	}

	a.state.Meters += d
	a.setRef(*f)
	if a.state.LastSaved < 0 || a.state.Meters-a.state.LastSaved >= CheckpointMeters {
		a.checkpoint()
	}
	a.checkLimit(*f)
}

func (a *Accumulator) load() {
	if a.loaded {
		return
	}
	a.loaded = true
	a.state.Meters = a.props.Float(props.OdomValue, 0)
	if a.props.Has(props.OdomRefLat) && a.props.Has(props.OdomRefLon) {
		a.state.HasRef = true
		a.state.RefLat = a.props.Float(props.OdomRefLat, 0)
		a.state.RefLon = a.props.Float(props.OdomRefLon, 0)
		a.state.RefTime = a.props.Int(props.OdomRefTime, 0)
	}
}

// adoptExternalReset picks up an odometer value written by someone else
// (for example a remote reset) since the last checkpoint.
func (a *Accumulator) adoptExternalReset() {
	if a.lastWritten < 0 {
		return
	}
	stored := a.props.Float(props.OdomValue, a.lastWritten)
	if math.Abs(stored-a.lastWritten) < 1e-6 {
		return
	}
	log.Printf("odometer value changed externally old_km=%s new_km=%s",
		humanize.Commaf(round1(a.state.Meters/1000)), humanize.Commaf(round1(stored/1000)))
	a.state.Meters = stored
	a.state.LastSaved = stored
	a.lastWritten = stored
	a.props.SetFloat(props.OdomLimitRef, stored)
}

func (a *Accumulator) setRef(f fix.Fix) {
	a.state.HasRef = true
	a.state.RefLat = f.Lat
	a.state.RefLon = f.Lon
	a.state.RefTime = f.Timestamp
	a.props.SetFloat(props.OdomRefLat, f.Lat)
	a.props.SetFloat(props.OdomRefLon, f.Lon)
	a.props.SetInt(props.OdomRefTime, f.Timestamp)
}

func (a *Accumulator) checkpoint() {
	a.props.SetFloat(props.OdomValue, a.state.Meters)
	a.lastWritten = a.state.Meters
	if err := a.props.Save(); err != nil {
		log.Printf("odometer checkpoint failed: %v", err)
		return
	}
	a.state.LastSaved = a.state.Meters
	log.Printf("odometer checkpoint km=%s", humanize.Commaf(round1(a.state.Meters/1000)))
}

func (a *Accumulator) checkLimit(f fix.Fix) {
	limit := a.props.Float(props.OdomLimit, 0)
	if limit <= 0 {
		return
	}
	base := a.props.Float(props.OdomLimitRef, 0)
	if base > a.state.Meters {
		base = 0
	}
	if a.state.Meters-base < limit {
		return
	}
	a.props.SetFloat(props.OdomLimitRef, a.state.Meters)
	f.Odometer = a.state.Meters / 1000
	event.Emit(a.queue, event.PriorityNormal, event.CodeOdometerLimit, f)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
