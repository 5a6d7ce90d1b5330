package gps

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// openDeviceFn is swapped out by tests.
var openDeviceFn = openDevice

// openDevice opens the configured source and returns it with a label for
// logs and diagnostics.
func openDevice(ctx context.Context, cfg Config) (io.ReadCloser, string, error) {
	switch cfg.Source {
	case SourceSerial:
		device := cfg.Device
		if device == "" {
			device = autoDetectDevice()
			if device == "" {
				return nil, "auto", fmt.Errorf("auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			}
		}
		f, err := openSerial(device, cfg.Baud)
		if err != nil {
			return nil, device, err
		}
		return f, device, nil
	case SourceTCP:
		if cfg.Addr == "" {
			return nil, "tcp", fmt.Errorf("tcp addr is required")
		}
		d := &net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
		if err != nil {
			return nil, cfg.Addr, err
		}
		return conn, cfg.Addr, nil
	case SourceSim:
		src, name, err := simSource(cfg)
		if err != nil {
			return nil, name, err
		}
		return newSimDevice(src, time.Second), name, nil
	case SourceReplay:
		if cfg.ReplayPath == "" {
			return nil, "replay", fmt.Errorf("replay path is required")
		}
		d, err := openReplay(cfg.ReplayPath, cfg.ReplaySpeed)
		if err != nil {
			return nil, cfg.ReplayPath, err
		}
		return d, cfg.ReplayPath, nil
	default:
		return nil, cfg.Source, fmt.Errorf("unsupported source %q", cfg.Source)
	}
}

func autoDetectDevice() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
