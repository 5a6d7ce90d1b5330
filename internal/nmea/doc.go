// Package nmea decodes NMEA-0183 position sentences into fix records.
//
// It is intentionally small:
// - RMC for position, ground speed, course and date
// - GGA for position, altitude and HDOP
// - PTRKF, a compact record exported by platform location providers
//
// Everything else (GSV, GSA, VTG, vendor sentences) is reported as "not a
// fix" and left to the caller.
package nmea
