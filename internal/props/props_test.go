package props

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemory_TypedGettersAndDefaults(t *testing.T) {
	m := NewMemory(map[string]string{
		MotionStart:       "20",
		MotionStopType:    "0x1",
		OdomDelta:         "500.5",
		MotionInMotion:    "60.0",
		MotionExcessSpeed: "fast",
	})
	if got := m.Float(MotionStart, 0); got != 20 {
		t.Fatalf("motion.start=%v want 20", got)
	}
	if got := m.Int(MotionStopType, 0); got != 1 {
		t.Fatalf("motion.stop.type=%v want 1", got)
	}
	if got := m.Float(OdomDelta, 0); got != 500.5 {
		t.Fatalf("odom.delta=%v want 500.5", got)
	}
	if got := m.Int(MotionInMotion, 0); got != 60 {
		t.Fatalf("motion.inmotion=%v want 60", got)
	}
	if got := m.Float(MotionExcessSpeed, 7); got != 7 {
		t.Fatalf("unparsable value should return default, got %v", got)
	}
	if got := m.String("missing", "dflt"); got != "dflt" {
		t.Fatalf("missing=%q", got)
	}
	if m.Has("missing") || !m.Has(MotionStart) {
		t.Fatalf("Has() mismatch")
	}
}

func TestMemory_DirtyTracking(t *testing.T) {
	m := NewMemory(nil)
	if m.Dirty() {
		t.Fatalf("new store should be clean")
	}
	m.SetFloat(OdomValue, 12.5)
	if !m.Dirty() {
		t.Fatalf("expected dirty after set")
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m.SetFloat(OdomValue, 12.5)
	if m.Dirty() {
		t.Fatalf("writing the same value should not dirty the store")
	}
	if m.Saves() != 1 {
		t.Fatalf("saves=%d want 1", m.Saves())
	}
}

func TestFile_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.yaml")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.SetFloat(OdomValue, 1234.5)
	f.SetInt(OdomRefTime, 1700000000)
	f.SetString("device.id", "truck-7")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("writes must be batched until Save")
	}
	if err := f.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := g.Float(OdomValue, 0); got != 1234.5 {
		t.Fatalf("odom.value=%v", got)
	}
	if got := g.Int(OdomRefTime, 0); got != 1700000000 {
		t.Fatalf("odom.ref.time=%v", got)
	}
	if got := g.String("device.id", ""); got != "truck-7" {
		t.Fatalf("device.id=%q", got)
	}
}

func TestFile_ReadsHandWrittenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.yaml")
	contents := "motion.start: 20\nmotion.stop: 180\nmotion.stop.type: 1\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Float(MotionStart, 0) != 20 || f.Int(MotionStop, 0) != 180 || f.Int(MotionStopType, 0) != 1 {
		t.Fatalf("unexpected values")
	}
}

func TestFile_RejectsNestedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.yaml")
	if err := os.WriteFile(path, []byte("motion:\n  start: 20\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("expected error for nested mapping")
	}
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
