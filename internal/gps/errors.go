package gps

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNoFix is returned when no fix newer than the caller's timeout exists.
	ErrNoFix = errors.New("gps: no fix")
	// ErrPermission wraps access-denied failures on the device.
	ErrPermission = errors.New("gps: permission denied")
	// ErrInterrupted is the watchdog breaking a stalled read.
	ErrInterrupted = errors.New("gps: read interrupted by watchdog")
	// ErrReadTimeout is a read that produced no line within ReadTimeout.
	ErrReadTimeout = errors.New("gps: read timeout")
)

// DeviceError is an I/O failure on the device. The acquisition loop
// recovers from it by closing the device and retrying.
type DeviceError struct {
	Op     string
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("gps %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// classify wraps err as a DeviceError, promoting access-denied failures to
// ErrPermission.
func classify(op, device string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrPermission) {
		err = fmt.Errorf("%w: %v", ErrPermission, err)
	}
	return &DeviceError{Op: op, Device: device, Err: err}
}

func isPermission(err error) bool {
	return errors.Is(err, ErrPermission) || errors.Is(err, fs.ErrPermission)
}
