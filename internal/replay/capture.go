// Package replay records raw receiver sentences with their timing and plays
// them back as a device stream.
package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Capture format: line-oriented text.
//
//   - Blank lines and lines starting with '#' are ignored.
//   - "START" resets the origin (next record time is relative to 0 again).
//   - Data lines are <t_ms>,<sentence> where t_ms is milliseconds since START
//     and sentence is the raw line as read from the device.

type Record struct {
	At time.Duration
	// Line is empty for a START marker.
	Line string
}

func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}

func ReadAll(r io.Reader) ([]Record, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 64*1024)

	recs := make([]Record, 0, 1024)
	n := 0
	for s.Scan() {
		n++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma <= 0 || comma == len(line)-1 {
			return nil, fmt.Errorf("capture line %d: want <t_ms>,<sentence>", n)
		}
		ms, err := strconv.ParseInt(strings.TrimSpace(line[:comma]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("capture line %d: bad timestamp: %w", n, err)
		}
		if ms < 0 {
			return nil, fmt.Errorf("capture line %d: negative timestamp", n)
		}
		recs = append(recs, Record{At: time.Duration(ms) * time.Millisecond, Line: line[comma+1:]})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Writer appends sentences to a capture file. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

// CreateWriter opens path for appending and writes a START marker, so one
// file can hold several sessions.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 16*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

func (ww *Writer) WriteLine(now time.Time, line string) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("capture writer is closed")
	}
	if strings.ContainsAny(line, "\r\n") {
		line = strings.TrimRight(line, "\r\n")
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Milliseconds(), line)
	return err
}

func (ww *Writer) Flush() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

// SleepFunc waits for d and reports false if ctx ended first.
type SleepFunc func(ctx context.Context, d time.Duration) bool

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Play replays records with their relative timing, calling cb for each
// sentence. START markers reset the origin.
//
// speed: 1.0 = real time, 2.0 = twice as fast.
func Play(ctx context.Context, records []Record, speed float64, loop bool, sleep SleepFunc, cb func(line string) error) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be > 0")
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin, lastAt time.Duration
		haveLast := false

		for _, r := range records {
			if r.Line == "" {
				origin = r.At
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := time.Duration(float64(at-lastAt) / speed)
				if wait > 0 && !sleep(ctx, wait) {
					return ctx.Err()
				}
			}
			if err := cb(r.Line); err != nil {
				return err
			}
			lastAt = at
			haveLast = true
		}

		if !loop || ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
