// Package gps acquires position fixes from a receiver and keeps the best one.
//
// Sources:
//   - "nmea": serial receiver (auto-detected when no device is configured)
//   - "tcp": NMEA over a TCP stream
//   - "gpsd": gpsd JSON reports
//   - "sim": synthetic vehicle
//
// The Engine runs either threaded (Start, then Fix serves the accepted fix)
// or synchronously (Fix reads the device on the caller's goroutine). A
// watchdog restarts a device that stops producing sentences.
package gps
