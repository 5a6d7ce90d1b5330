package gps

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fleettrack/internal/fix"
	"fleettrack/internal/replay"
	"fleettrack/internal/sim"
)

const (
	SourceSerial = "nmea"
	SourceTCP    = "tcp"
	SourceGPSD   = "gpsd"
	SourceSim    = "sim"
	SourceReplay = "replay"
)

// Config controls the acquisition engine.
//
// Source selects the device: "nmea" (serial receiver), "tcp" (NMEA over a
// TCP stream), "gpsd", "sim" or "replay" (a capture file). Device may be
// empty to auto-detect a serial receiver.
//
// The durations default to the values the receivers were tuned for; tests
// shrink them.
type Config struct {
	Enable bool

	Source string
	Device string
	Baud   int
	// Addr is host:port for Source "tcp" and "gpsd".
	Addr string
	// Provider tags fixes from this engine for arbitration.
	Provider string

	ReadTimeout      time.Duration
	WatchdogTimeout  time.Duration
	WatchdogInterval time.Duration
	ErrorDelay       time.Duration
	OpenDelay        time.Duration
	RestartDelay     time.Duration

	// Sim drives Source "sim"; SimRoute, when set, replaces it with a
	// scripted route file.
	Sim      sim.Vehicle
	SimRoute string

	// ReplayPath is the capture file for Source "replay", played at
	// ReplaySpeed times real time.
	ReplayPath  string
	ReplaySpeed float64
	// RecordPath, when set, captures every line read from the device.
	RecordPath string
}

func (c Config) withDefaults() Config {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = SourceSerial
	}
	c.Device = strings.TrimSpace(c.Device)
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Baud == 0 {
		c.Baud = 9600
	}
	if c.Source == SourceGPSD && c.Addr == "" {
		c.Addr = gpsdDefaultAddr
	}
	if c.ReplaySpeed <= 0 {
		c.ReplaySpeed = 1
	}
	if c.Provider == "" {
		c.Provider = c.Source
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WatchdogTimeout <= 0 {
		c.WatchdogTimeout = 14 * time.Second
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = 2 * time.Second
	}
	if c.ErrorDelay <= 0 {
		c.ErrorDelay = 5 * time.Second
	}
	if c.OpenDelay <= 0 {
		c.OpenDelay = 4 * time.Second
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = 3 * time.Second
	}
	return c
}

// Counters are diagnostic sample statistics.
type Counters struct {
	Valid      uint64    `json:"valid"`
	Invalid    uint64    `json:"invalid"`
	LastSample time.Time `json:"last_sample"`
	LastValid  time.Time `json:"last_valid"`
	Restarts   uint64    `json:"restarts"`
}

type Snapshot struct {
	Enabled bool   `json:"enabled"`
	State   string `json:"state"`
	Source  string `json:"source,omitempty"`
	Device  string `json:"device,omitempty"`
	Baud    int    `json:"baud,omitempty"`

	Valid      bool     `json:"valid"`
	Fix        fix.Fix  `json:"fix"`
	Version    uint64   `json:"version"`
	FixAgeSec  float64  `json:"fix_age_sec,omitempty"`
	Satellites int      `json:"satellites,omitempty"`
	Counters   Counters `json:"counters"`

	LastError string `json:"last_error,omitempty"`
}

// Engine owns the device connection and the best fix seen so far.
//
// The accepted fix and the sample counters sit behind two independent
// mutexes; readers may see one updated slightly before the other.
type Engine struct {
	cfg Config
	now func() time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Accepted fix.
	fixMu    sync.Mutex
	accepted fix.Fix
	hasFix   bool
	version  uint64

	// Sample counters.
	countMu  sync.Mutex
	counters Counters

	// Device and diagnostics.
	mu         sync.Mutex
	dev        io.ReadCloser
	reader     *lineReader
	devName    string
	openedAt   time.Time
	startedAt  time.Time
	state      string
	lastErr    string
	satellites int

	// Serializes synchronous Fix callers.
	syncMu sync.Mutex

	// Working fix merged from successive sentences. Owned by whichever
	// goroutine is reading the device.
	work fix.Fix

	interrupt chan struct{}

	capture *replay.Writer
}

func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		now:       time.Now,
		state:     "closed",
		work:      fix.New(),
		interrupt: make(chan struct{}, 1),
	}
}

func (e *Engine) Config() Config { return e.cfg }

// Start runs acquisition on background goroutines. Fix then serves the
// accepted fix without touching the device.
func (e *Engine) Start(ctx context.Context) error {
	if e == nil {
		return fmt.Errorf("gps engine is nil")
	}
	if !e.cfg.Enable {
		return nil
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if e.running.Swap(true) {
		return nil
	}

	if e.cfg.RecordPath != "" && e.cfg.Source != SourceGPSD {
		w, err := replay.CreateWriter(e.cfg.RecordPath)
		if err != nil {
			e.running.Store(false)
			return fmt.Errorf("gps capture %s: %w", e.cfg.RecordPath, err)
		}
		e.capture = w
		log.Printf("gps capture enabled path=%s", e.cfg.RecordPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.startedAt = e.now()
	e.mu.Unlock()

	log.Printf("gps enabled source=%s device=%s baud=%d", e.cfg.Source, e.deviceLabel(), e.cfg.Baud)

	if e.cfg.Source == SourceGPSD {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runGPSD(runCtx)
		}()
		return nil
	}

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.watchdog(runCtx)
	}()
	return nil
}

// Close stops background acquisition and closes the device.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.closeDevice()
	e.wg.Wait()
	if e.capture != nil {
		if err := e.capture.Close(); err != nil {
			log.Printf("gps capture close: %v", err)
		}
		e.capture = nil
	}
	e.running.Store(false)
}

// Fix returns the best fix.
//
// When the engine is running it returns the accepted fix, or ErrNoFix if
// that fix is older than timeout. Otherwise it reads the device on the
// calling goroutine until a valid fix arrives or timeout elapses;
// permission failures are returned to the caller.
func (e *Engine) Fix(ctx context.Context, timeout time.Duration) (fix.Fix, error) {
	if e.running.Load() {
		f, _, ok := e.Accepted()
		if !ok || f.Age(e.now()) > timeout {
			return fix.Fix{}, ErrNoFix
		}
		return f, nil
	}
	return e.acquire(ctx, timeout)
}

// Accepted returns a copy of the accepted fix and its version. The version
// increases every time a new fix is accepted.
func (e *Engine) Accepted() (fix.Fix, uint64, bool) {
	e.fixMu.Lock()
	defer e.fixMu.Unlock()
	return e.accepted, e.version, e.hasFix
}

// SubmitFix offers a fix from an external source (gpsd, the platform
// location service) to the arbiter.
func (e *Engine) SubmitFix(f fix.Fix) bool {
	now := e.now()
	if !f.Valid || !f.InRange() || f.Timestamp <= 0 {
		e.countInvalid(now)
		return false
	}
	e.countValid(now)
	return e.offer(f)
}

func (e *Engine) offer(f fix.Fix) bool {
	e.fixMu.Lock()
	defer e.fixMu.Unlock()
	return e.offerLocked(f)
}

// offerWork offers the working fix. A later sentence of the epoch already
// accepted (same timestamp and provider) refines that fix in place.
func (e *Engine) offerWork(f fix.Fix) bool {
	e.fixMu.Lock()
	defer e.fixMu.Unlock()
	if e.hasFix && e.accepted.Timestamp == f.Timestamp && e.accepted.Provider == f.Provider {
		if e.accepted == f {
			return false
		}
		e.accepted = f
		e.version++
		return true
	}
	return e.offerLocked(f)
}

func (e *Engine) offerLocked(f fix.Fix) bool {
	var cur *fix.Fix
	if e.hasFix {
		c := e.accepted
		cur = &c
	}
	if !fix.Accept(cur, f) {
		return false
	}
	e.accepted = f
	e.hasFix = true
	e.version++
	return true
}

func (e *Engine) Counters() Counters {
	e.countMu.Lock()
	defer e.countMu.Unlock()
	return e.counters
}

func (e *Engine) countValid(now time.Time) {
	e.countMu.Lock()
	e.counters.Valid++
	e.counters.LastSample = now
	e.counters.LastValid = now
	e.countMu.Unlock()
}

func (e *Engine) countInvalid(now time.Time) {
	e.countMu.Lock()
	e.counters.Invalid++
	e.counters.LastSample = now
	e.countMu.Unlock()
}

// touch records a sample that carried no fix.
func (e *Engine) touch(now time.Time) {
	e.countMu.Lock()
	e.counters.LastSample = now
	e.countMu.Unlock()
}

func (e *Engine) countRestart() {
	e.countMu.Lock()
	e.counters.Restarts++
	e.countMu.Unlock()
}

func (e *Engine) Snapshot() Snapshot {
	if e == nil {
		return Snapshot{}
	}
	f, version, ok := e.Accepted()
	counters := e.Counters()

	e.mu.Lock()
	out := Snapshot{
		Enabled:    e.cfg.Enable,
		State:      e.state,
		Source:     e.cfg.Source,
		Device:     e.devName,
		Baud:       e.cfg.Baud,
		Satellites: e.satellites,
		LastError:  e.lastErr,
	}
	e.mu.Unlock()
	if out.Device == "" {
		out.Device = e.deviceLabel()
	}

	out.Valid = ok
	out.Fix = f
	out.Version = version
	if ok {
		out.FixAgeSec = f.Age(e.now()).Seconds()
	}
	out.Counters = counters
	return out
}

func (e *Engine) setState(state string) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

func (e *Engine) setError(msg string) {
	e.mu.Lock()
	e.lastErr = msg
	e.mu.Unlock()
}

func (e *Engine) setSatellites(n int) {
	e.mu.Lock()
	e.satellites = n
	e.mu.Unlock()
}

func (e *Engine) deviceLabel() string {
	switch e.cfg.Source {
	case SourceTCP, SourceGPSD:
		return e.cfg.Addr
	case SourceSim:
		return "sim"
	case SourceReplay:
		return e.cfg.ReplayPath
	}
	if e.cfg.Device == "" {
		return "auto"
	}
	return e.cfg.Device
}
