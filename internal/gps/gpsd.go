package gps

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"strings"
	"time"

	"fleettrack/internal/fix"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// dialGPSD connects to gpsd over TCP.
func dialGPSD(ctx context.Context, addr string) (net.Conn, error) {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// gpsdWatch enables JSON streaming reports.
func gpsdWatch(conn net.Conn) error {
	// scaled=true yields SI units (m/s, meters) and degrees.
	_, err := conn.Write([]byte("?WATCH={\"enable\":true,\"json\":true,\"scaled\":true}\n"))
	return err
}

type gpsdMsgBase struct {
	Class string `json:"class"`
}

type gpsdTPV struct {
	Class string `json:"class"`
	Mode  *int   `json:"mode"`
	Time  string `json:"time"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	Alt     *float64 `json:"alt"`
	AltMSL  *float64 `json:"altMSL"`
	SpeedMS *float64 `json:"speed"`
	Track   *float64 `json:"track"`

	// Estimated position errors (meters) when available.
	Epx *float64 `json:"epx"`
	Epy *float64 `json:"epy"`
	Eph *float64 `json:"eph"`
}

type gpsdSat struct {
	Used bool `json:"used"`
}

type gpsdSKY struct {
	Class      string    `json:"class"`
	HDOP       *float64  `json:"hdop"`
	Satellites []gpsdSat `json:"satellites"`
}

// gpsdState folds gpsd reports into a fix. TPV carries position and motion,
// SKY carries HDOP and the satellite list.
type gpsdState struct {
	provider   string
	cur        fix.Fix
	satellites int
}

func newGPSDState(provider string) *gpsdState {
	return &gpsdState{provider: provider, cur: fix.New()}
}

// applyLine returns the fix to submit when the report completed one.
func (s *gpsdState) applyLine(nowUTC time.Time, line string) (fix.Fix, bool, error) {
	var base gpsdMsgBase
	if err := json.Unmarshal([]byte(line), &base); err != nil {
		return fix.Fix{}, false, fmt.Errorf("gpsd json parse failed: %v", err)
	}

	switch strings.ToUpper(strings.TrimSpace(base.Class)) {
	case "TPV":
		var tpv gpsdTPV
		if err := json.Unmarshal([]byte(line), &tpv); err != nil {
			return fix.Fix{}, false, fmt.Errorf("gpsd tpv parse failed: %v", err)
		}
		f, ok := s.applyTPV(nowUTC, tpv)
		return f, ok, nil
	case "SKY":
		var sky gpsdSKY
		if err := json.Unmarshal([]byte(line), &sky); err != nil {
			return fix.Fix{}, false, fmt.Errorf("gpsd sky parse failed: %v", err)
		}
		s.applySKY(sky)
		return fix.Fix{}, false, nil
	default:
		// VERSION, DEVICES, WATCH and friends.
		return fix.Fix{}, false, nil
	}
}

func (s *gpsdState) applyTPV(nowUTC time.Time, tpv gpsdTPV) (fix.Fix, bool) {
	f := s.cur
	f.Provider = s.provider
	f.Status = 0
	f.Odometer = 0

	fixTime := nowUTC
	if strings.TrimSpace(tpv.Time) != "" {
		if t, err := time.Parse(time.RFC3339Nano, tpv.Time); err == nil {
			fixTime = t.UTC()
		}
	}
	f.Timestamp = fixTime.Unix()

	switch {
	case tpv.Eph != nil:
		f.Accuracy = *tpv.Eph
	case tpv.Epx != nil && tpv.Epy != nil:
		f.Accuracy = math.Sqrt((*tpv.Epx)*(*tpv.Epx) + (*tpv.Epy)*(*tpv.Epy))
	default:
		f.Accuracy = fix.Unknown
	}

	if tpv.SpeedMS != nil {
		// gpsd scaled speed is m/s.
		f.Speed = *tpv.SpeedMS * 3.6
	}
	if tpv.Track != nil {
		f.Heading = *tpv.Track
	}
	altM := tpv.AltMSL
	if altM == nil {
		altM = tpv.Alt
	}
	if altM != nil {
		f.Altitude = *altM
	}

	mode := 0
	if tpv.Mode != nil {
		mode = *tpv.Mode
	}
	if mode < 2 || tpv.Lat == nil || tpv.Lon == nil {
		f.Valid = false
		s.cur = f
		return f, false
	}
	f.Lat = *tpv.Lat
	f.Lon = *tpv.Lon
	f.Valid = true
	s.cur = f
	return f, true
}

func (s *gpsdState) applySKY(sky gpsdSKY) {
	if sky.HDOP != nil {
		s.cur.HDOP = *sky.HDOP
	}
	if len(sky.Satellites) > 0 {
		s.satellites = len(sky.Satellites)
	}
}

// runGPSD streams gpsd reports into the arbiter, reconnecting with a
// doubling backoff.
func (e *Engine) runGPSD(ctx context.Context) {
	addr := e.cfg.Addr
	st := newGPSDState(e.cfg.Provider)
	backoff := 250 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			e.setState("stopped")
			return
		default:
		}

		e.setState("opening")
		conn, err := dialGPSD(ctx, addr)
		if err != nil {
			e.setError(fmt.Sprintf("gpsd dial failed addr=%s: %v", addr, err))
			e.setState("error")
			t := backoff
			if t > maxBackoff {
				t = maxBackoff
			}
			if !sleepCtx(ctx, t) {
				e.setState("stopped")
				return
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}

		// Reset backoff after a successful connection.
		backoff = 250 * time.Millisecond

		e.mu.Lock()
		// Close() interrupts an active connection through dev.
		e.dev = conn
		e.devName = addr
		e.openedAt = e.now()
		e.state = "reading"
		e.mu.Unlock()
		log.Printf("gps device opened source=gpsd addr=%s", addr)

		e.readGPSD(ctx, conn, st)
		e.closeDevice()
	}
}

func (e *Engine) readGPSD(ctx context.Context, conn net.Conn, st *gpsdState) {
	if err := gpsdWatch(conn); err != nil {
		e.setError(fmt.Sprintf("gpsd watch failed: %v", err))
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout))
		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			e.setError(fmt.Sprintf("gpsd read stopped: %v", err))
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f, ok, perr := st.applyLine(e.now().UTC(), line)
		if perr != nil {
			e.countInvalid(e.now())
			e.setError(perr.Error())
			continue
		}
		if st.satellites > 0 {
			e.setSatellites(st.satellites)
		}
		if ok {
			e.SubmitFix(f)
		} else {
			e.touch(e.now())
		}
	}
}
