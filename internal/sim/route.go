package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"fleettrack/internal/fix"
)

// RouteScript is a scripted drive. Positions, speed and heading are
// interpolated linearly between keyframes.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 10m
//	loop: true
//	accuracy_m: 8
//	keyframes:
//	  - t: 0s
//	    lat: 45.0
//	    lon: -122.0
//	    speed_kph: 0
//	    heading: 90
//	  - t: 2m
//	    lat: 45.0
//	    lon: -121.98
//	    speed_kph: 50
//	    heading: 90
//
// If duration is zero it is derived from the last keyframe.
type RouteScript struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	Loop      bool          `yaml:"loop"`
	AccuracyM float64       `yaml:"accuracy_m"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

// Keyframe is a time-stamped vehicle state.
type Keyframe struct {
	T        time.Duration `yaml:"t"`
	Lat      float64       `yaml:"lat"`
	Lon      float64       `yaml:"lon"`
	Altitude float64       `yaml:"altitude_m"`
	SpeedKPH float64       `yaml:"speed_kph"`
	Heading  float64       `yaml:"heading"`
}

// Route is the validated, runtime representation of a RouteScript.
type Route struct {
	script   RouteScript
	duration time.Duration
}

// LoadRouteScript reads and unmarshals a YAML route from path.
func LoadRouteScript(path string) (RouteScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RouteScript{}, err
	}
	return ParseRouteScriptYAML(b)
}

func ParseRouteScriptYAML(b []byte) (RouteScript, error) {
	var s RouteScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return RouteScript{}, err
	}
	return s, nil
}

// NewRoute validates script and returns a runtime Route.
func NewRoute(script RouteScript) (*Route, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported route version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
		if kf.Lat < -90 || kf.Lat > 90 || kf.Lon < -180 || kf.Lon > 180 {
			return nil, fmt.Errorf("keyframes[%d] position out of range", i)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	return &Route{script: script, duration: dur}, nil
}

func (r *Route) Duration() time.Duration {
	if r == nil {
		return 0
	}
	return r.duration
}

// StateAt computes the fix at elapsed. Looping routes wrap around Duration;
// others clamp to [0, Duration].
func (r *Route) StateAt(elapsed time.Duration) fix.Fix {
	if elapsed < 0 {
		elapsed = 0
	}
	if r.script.Loop {
		elapsed = elapsed % r.duration
	} else if elapsed > r.duration {
		elapsed = r.duration
	}

	k0, k1, alpha := selectSegment(r.script.Keyframes, elapsed)
	f := fix.New()
	f.Valid = true
	f.Lat = lerp(k0.Lat, k1.Lat, alpha)
	f.Lon = lerp(k0.Lon, k1.Lon, alpha)
	f.Altitude = lerp(k0.Altitude, k1.Altitude, alpha)
	f.Speed = lerp(k0.SpeedKPH, k1.SpeedKPH, alpha)
	f.Heading = lerpAngleDeg(k0.Heading, k1.Heading, alpha)
	f.HDOP = 1.0
	if r.script.AccuracyM > 0 {
		f.Accuracy = r.script.AccuracyM
	}
	return f
}

// Play anchors the route at start so it can serve as a Source.
func (r *Route) Play(start time.Time) Source {
	return routePlayer{route: r, start: start}
}

type routePlayer struct {
	route *Route
	start time.Time
}

func (p routePlayer) FixAt(now time.Time) fix.Fix {
	f := p.route.StateAt(now.Sub(p.start))
	f.Timestamp = now.Unix()
	return f
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerpAngleDeg(a0, a1, t float64) float64 {
	// Shortest path across north.
	norm := func(x float64) float64 {
		for x < 0 {
			x += 360
		}
		for x >= 360 {
			x -= 360
		}
		return x
	}
	a0 = norm(a0)
	a1 = norm(a1)
	delta := a1 - a0
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return norm(a0 + delta*t)
}
