package gps

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"fleettrack/internal/fix"
	"fleettrack/internal/nmea"
)

// lineReader scans a device on its own goroutine so the acquisition loop can
// bound every read with a timer and the watchdog.
type lineReader struct {
	lines chan string
	errc  chan error
	done  chan struct{}
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{
		lines: make(chan string),
		errc:  make(chan error, 1),
		done:  make(chan struct{}),
	}
	go func() {
		scanner := bufio.NewScanner(r)
		// NMEA sentences are typically < 82 chars, but allow some headroom.
		scanner.Buffer(make([]byte, 0, 256), 4096)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lr.lines <- line:
			case <-lr.done:
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		lr.errc <- err
	}()
	return lr
}

func (lr *lineReader) stop() {
	close(lr.done)
}

// run is the threaded acquisition loop. It only returns on cancellation or
// a permission failure.
func (e *Engine) run(ctx context.Context) {
	defer e.closeDevice()
	for {
		if ctx.Err() != nil {
			e.setState("stopped")
			return
		}

		lr, err := e.ensureOpen(ctx)
		if err != nil {
			if isPermission(err) {
				log.Printf("gps stopped device=%s err=%v", e.deviceLabel(), err)
				e.setState("stopped")
				return
			}
			if !sleepCtx(ctx, e.cfg.OpenDelay) {
				e.setState("stopped")
				return
			}
			continue
		}

		line, err := e.readLine(ctx, lr, e.cfg.ReadTimeout)
		switch {
		case err == nil:
			e.handleLine(line)
		case ctx.Err() != nil:
			e.setState("stopped")
			return
		case e.cfg.Source == SourceReplay && errors.Is(err, io.EOF):
			log.Printf("gps replay finished path=%s", e.cfg.ReplayPath)
			e.setState("finished")
			return
		case errors.Is(err, ErrInterrupted):
			log.Printf("gps watchdog restart device=%s", e.deviceLabel())
			e.countRestart()
			e.closeDevice()
			if !sleepCtx(ctx, e.cfg.RestartDelay) {
				e.setState("stopped")
				return
			}
		case isPermission(err):
			log.Printf("gps stopped device=%s err=%v", e.deviceLabel(), err)
			e.setState("stopped")
			return
		default:
			e.setError(err.Error())
			e.closeDevice()
			if !sleepCtx(ctx, e.cfg.ErrorDelay) {
				e.setState("stopped")
				return
			}
		}
	}
}

// watchdog breaks a read that has produced no sample for WatchdogTimeout
// since the device was opened or the last sample arrived.
func (e *Engine) watchdog(ctx context.Context) {
	t := time.NewTicker(e.cfg.WatchdogInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		e.mu.Lock()
		open := e.dev != nil
		since := e.openedAt
		e.mu.Unlock()
		if !open {
			continue
		}
		if last := e.Counters().LastSample; last.After(since) {
			since = last
		}
		if e.now().Sub(since) > e.cfg.WatchdogTimeout {
			select {
			case e.interrupt <- struct{}{}:
			default:
			}
		}
	}
}

// acquire reads the device on the calling goroutine until a valid fix is
// accepted or timeout elapses.
func (e *Engine) acquire(ctx context.Context, timeout time.Duration) (fix.Fix, error) {
	if !e.cfg.Enable {
		return fix.Fix{}, ErrNoFix
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		lr, err := e.ensureOpen(ctx)
		if err != nil {
			if isPermission(err) {
				return fix.Fix{}, err
			}
			if !sleepCtx(ctx, e.cfg.OpenDelay) {
				return fix.Fix{}, ErrNoFix
			}
			continue
		}

		line, err := e.readLine(ctx, lr, e.cfg.ReadTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return fix.Fix{}, ErrNoFix
			}
			if isPermission(err) {
				return fix.Fix{}, err
			}
			e.setError(err.Error())
			e.closeDevice()
			if !sleepCtx(ctx, e.cfg.ErrorDelay) {
				return fix.Fix{}, ErrNoFix
			}
			continue
		}

		if e.handleLine(line) {
			f, _, _ := e.Accepted()
			return f, nil
		}
	}
}

// ensureOpen returns the reader for the open device, opening it first if
// needed.
func (e *Engine) ensureOpen(ctx context.Context) (*lineReader, error) {
	e.mu.Lock()
	lr := e.reader
	e.mu.Unlock()
	if lr != nil {
		return lr, nil
	}

	e.setState("opening")
	dev, name, err := openDeviceFn(ctx, e.cfg)
	if err != nil {
		err = classify("open", name, err)
		e.setError(err.Error())
		e.setState("error")
		return nil, err
	}

	// Drop an interrupt raised against the previous device.
	select {
	case <-e.interrupt:
	default:
	}

	lr = newLineReader(dev)
	e.mu.Lock()
	e.dev = dev
	e.reader = lr
	e.devName = name
	e.openedAt = e.now()
	e.state = "reading"
	e.lastErr = ""
	e.mu.Unlock()
	e.work = fix.New()
	log.Printf("gps device opened source=%s device=%s", e.cfg.Source, name)
	return lr, nil
}

func (e *Engine) closeDevice() {
	e.mu.Lock()
	dev := e.dev
	lr := e.reader
	e.dev = nil
	e.reader = nil
	if e.state != "stopped" && e.state != "finished" {
		e.state = "closed"
	}
	e.mu.Unlock()

	if lr != nil {
		lr.stop()
	}
	if dev != nil {
		_ = dev.Close()
	}
}

// readLine waits for one line, bounded by timeout, the watchdog and ctx.
func (e *Engine) readLine(ctx context.Context, lr *lineReader, timeout time.Duration) (string, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	e.mu.Lock()
	name := e.devName
	e.mu.Unlock()

	select {
	case line := <-lr.lines:
		return line, nil
	case err := <-lr.errc:
		return "", classify("read", name, err)
	case <-t.C:
		return "", &DeviceError{Op: "read", Device: name, Err: ErrReadTimeout}
	case <-e.interrupt:
		return "", ErrInterrupted
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// handleLine parses one line and merges it into the working fix. It reports
// whether the arbiter accepted a new fix.
func (e *Engine) handleLine(line string) bool {
	now := e.now()
	if e.capture != nil {
		if err := e.capture.WriteLine(now, line); err != nil {
			log.Printf("gps capture write: %v", err)
		}
	}
	rec, err := nmea.Parse(line, now)
	if err != nil {
		e.countInvalid(now)
		e.setError(err.Error())
		return false
	}

	switch {
	case rec.Kind == nmea.KindNone:
		if n, ok := nmea.SatellitesInView(line); ok {
			e.setSatellites(n)
		}
		e.touch(now)
		return false
	case !rec.Valid:
		e.countInvalid(now)
		return false
	}

	mergeRecord(&e.work, rec, e.cfg.Provider)
	e.countValid(now)
	return e.offerWork(e.work)
}

// mergeRecord folds a parsed sentence into the working fix. RMC carries
// motion, GGA carries altitude and HDOP, a custom record replaces the fix.
func mergeRecord(work *fix.Fix, rec nmea.Record, provider string) {
	if rec.Kind == nmea.KindCustom {
		*work = rec.Fix(provider)
		return
	}
	work.Valid = true
	work.Timestamp = rec.Timestamp
	work.Lat = rec.Lat
	work.Lon = rec.Lon
	work.Provider = provider
	work.Status = 0
	work.Odometer = 0
	switch rec.Kind {
	case nmea.KindRMC:
		work.Speed = rec.Speed
		work.Heading = rec.Heading
	case nmea.KindGGA:
		work.Altitude = rec.Altitude
		work.HDOP = rec.HDOP
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
