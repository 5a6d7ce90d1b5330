package gps

import (
	"fmt"
	"io"
	"time"

	"fleettrack/internal/nmea"
	"fleettrack/internal/sim"
)

func simSource(cfg Config) (sim.Source, string, error) {
	if cfg.SimRoute == "" {
		return cfg.Sim, "sim", nil
	}
	script, err := sim.LoadRouteScript(cfg.SimRoute)
	if err != nil {
		return nil, cfg.SimRoute, err
	}
	r, err := sim.NewRoute(script)
	if err != nil {
		return nil, cfg.SimRoute, err
	}
	return r.Play(time.Now()), cfg.SimRoute, nil
}

const simSatellites = 9

// simDevice renders a simulated vehicle as an NMEA stream, one RMC/GGA pair
// per step.
type simDevice struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	done chan struct{}
}

func newSimDevice(src sim.Source, step time.Duration) *simDevice {
	r, w := io.Pipe()
	d := &simDevice{r: r, w: w, done: make(chan struct{})}
	go d.run(src, step)
	return d
}

func (d *simDevice) run(src sim.Source, step time.Duration) {
	t := time.NewTicker(step)
	defer t.Stop()
	for {
		f := src.FixAt(time.Now().UTC())
		lines := nmea.EncodeRMC("GP", f) + "\r\n" +
			nmea.EncodeGGA("GP", f, simSatellites) + "\r\n" +
			nmea.AppendChecksum(fmt.Sprintf("GPGSV,1,1,%02d", simSatellites)) + "\r\n"
		if _, err := io.WriteString(d.w, lines); err != nil {
			return
		}
		select {
		case <-d.done:
			return
		case <-t.C:
		}
	}
}

func (d *simDevice) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *simDevice) Close() error {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	_ = d.w.Close()
	return d.r.Close()
}
