package sim

import (
	"math"
	"time"

	"fleettrack/internal/fix"
)

// Source produces a simulated fix for a wall-clock time.
type Source interface {
	FixAt(now time.Time) fix.Fix
}

// Vehicle drives a deterministic figure-eight around a center point, then
// parks, then drives again.
type Vehicle struct {
	CenterLat float64       `yaml:"center_lat"`
	CenterLon float64       `yaml:"center_lon"`
	RadiusM   float64       `yaml:"radius_m"`
	Lap       time.Duration `yaml:"lap"`
	DriveFor  time.Duration `yaml:"drive_for"`
	ParkFor   time.Duration `yaml:"park_for"`
	Altitude  float64       `yaml:"altitude_m"`
	AccuracyM float64       `yaml:"accuracy_m"`
}

func (v Vehicle) withDefaults() Vehicle {
	if v.RadiusM <= 0 {
		v.RadiusM = 2000
	}
	if v.Lap <= 0 {
		v.Lap = 10 * time.Minute
	}
	if v.DriveFor <= 0 {
		v.DriveFor = 15 * time.Minute
	}
	if v.ParkFor < 0 {
		v.ParkFor = 0
	}
	return v
}

// Parked reports whether the vehicle is in the parked part of its cycle.
func (v Vehicle) Parked(now time.Time) bool {
	v = v.withDefaults()
	_, parked := v.driveTime(now)
	return parked
}

// driveTime maps wall time to accumulated driving time. While parked the
// driving clock stands still.
func (v Vehicle) driveTime(now time.Time) (time.Duration, bool) {
	cycle := v.DriveFor + v.ParkFor
	elapsed := time.Duration(now.UnixNano())
	n := elapsed / cycle
	off := elapsed % cycle
	if off >= v.DriveFor {
		return (n + 1) * v.DriveFor, true
	}
	return n*v.DriveFor + off, false
}

// FixAt returns the vehicle state at now. Speed is zero while parked.
func (v Vehicle) FixAt(now time.Time) fix.Fix {
	v = v.withDefaults()
	drive, parked := v.driveTime(now)

	phase := float64(drive%v.Lap) / float64(v.Lap)

	// Figure-eight (Lissajous): x east, y north, both in radii.
	//	x = cos(2πt)
	//	y = 0.5*sin(4πt)
	w := 2 * math.Pi * phase
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	radiusDeg := v.RadiusM / 111320.0
	f := fix.New()
	f.Valid = true
	f.Timestamp = now.Unix()
	f.Lat = v.CenterLat + radiusDeg*y
	f.Lon = v.CenterLon + (radiusDeg*x)/math.Cos(v.CenterLat*math.Pi/180.0)
	f.Altitude = v.Altitude
	f.HDOP = 1.0
	if v.AccuracyM > 0 {
		f.Accuracy = v.AccuracyM
	}

	// Velocity in radii per lap.
	vx := -2 * math.Pi * math.Sin(w)
	vy := 2 * math.Pi * math.Cos(2*w)
	f.Heading = math.Mod((math.Atan2(vx, vy)*180/math.Pi)+360, 360)
	if !parked {
		mps := v.RadiusM * math.Hypot(vx, vy) / v.Lap.Seconds()
		f.Speed = mps * 3.6
	}
	return f
}
