package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRoute_ParseAndInterpolateHeadingWrap(t *testing.T) {
	yaml := []byte(`
version: 1
# duration derived from last keyframe
accuracy_m: 8
keyframes:
  - t: 0s
    lat: 0
    lon: 0
    speed_kph: 20
    heading: 350
  - t: 10s
    lat: 10
    lon: 20
    speed_kph: 40
    heading: 10
`)

	script, err := ParseRouteScriptYAML(yaml)
	if err != nil {
		t.Fatalf("ParseRouteScriptYAML: %v", err)
	}
	r, err := NewRoute(script)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	if r.Duration() != 10*time.Second {
		t.Fatalf("duration: got %s want %s", r.Duration(), 10*time.Second)
	}

	f := r.StateAt(5 * time.Second)
	// 350->10 goes through north: halfway is 0.
	if f.Heading != 0 {
		t.Fatalf("heading wrap interpolation: got %v want 0", f.Heading)
	}
	if f.Lat != 5 || f.Lon != 10 {
		t.Fatalf("position interpolation: got %v,%v want 5,10", f.Lat, f.Lon)
	}
	if f.Speed != 30 {
		t.Fatalf("speed interpolation: got %v want 30", f.Speed)
	}
	if f.Accuracy != 8 {
		t.Fatalf("accuracy=%v want 8", f.Accuracy)
	}
}

func TestRoute_LoopAndClamp(t *testing.T) {
	script := RouteScript{
		Duration: 10 * time.Second,
		Keyframes: []Keyframe{
			{T: 0, Lat: 0},
			{T: 10 * time.Second, Lat: 10},
		},
	}
	r, err := NewRoute(script)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	if got := r.StateAt(11 * time.Second).Lat; got != 10 {
		t.Fatalf("clamp lat: got %v want 10", got)
	}

	script.Loop = true
	r, err = NewRoute(script)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	if got := r.StateAt(11 * time.Second).Lat; got != 1 {
		t.Fatalf("loop lat: got %v want 1", got)
	}
}

func TestRoute_PlayStampsWallTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "route.yaml")
	body := "keyframes:\n  - t: 0s\n    lat: 45\n    lon: -122\n  - t: 1m\n    lat: 45.01\n    lon: -122\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	script, err := LoadRouteScript(path)
	if err != nil {
		t.Fatalf("LoadRouteScript: %v", err)
	}
	r, err := NewRoute(script)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}

	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := r.Play(start).FixAt(start.Add(30 * time.Second))
	if f.Timestamp != start.Add(30*time.Second).Unix() {
		t.Fatalf("timestamp=%d", f.Timestamp)
	}
	if !f.Valid || f.Lat <= 45 || f.Lat >= 45.01 {
		t.Fatalf("fix=%+v", f)
	}
}

func TestNewRoute_RejectsUnsorted(t *testing.T) {
	_, err := NewRoute(RouteScript{Keyframes: []Keyframe{
		{T: 10 * time.Second},
		{T: 5 * time.Second},
	}})
	if err == nil {
		t.Fatalf("expected error")
	}
}
