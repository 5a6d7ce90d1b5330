package nmea

import (
	"fmt"
	"math"

	"fleettrack/internal/fix"
)

// FormatLatLon encodes decimal degrees as ddmm.mmmm (lat) or dddmm.mmmm
// (lon) with its hemisphere letter.
func FormatLatLon(deg float64, isLat bool) (string, string) {
	hemi := "N"
	if !isLat {
		hemi = "E"
	}
	if deg < 0 {
		hemi = "S"
		if !isLat {
			hemi = "W"
		}
	}

	// Work in 1e-4 minute units so rounding carries into the degrees.
	units := int64(math.Round(math.Abs(deg) * 60 * 10000))
	d := units / (60 * 10000)
	m := float64(units%(60*10000)) / 10000

	if isLat {
		return fmt.Sprintf("%02d%07.4f", d, m), hemi
	}
	return fmt.Sprintf("%03d%07.4f", d, m), hemi
}

// EncodeRMC builds a checksummed RMC sentence for f.
func EncodeRMC(talker string, f fix.Fix) string {
	t := f.Time()
	lat, ns := FormatLatLon(f.Lat, true)
	lon, ew := FormatLatLon(f.Lon, false)
	status := "A"
	if !f.Valid {
		status = "V"
	}
	course := ""
	if f.Heading >= 0 {
		course = fmt.Sprintf("%.1f", f.Heading)
	}
	payload := fmt.Sprintf("%sRMC,%s,%s,%s,%s,%s,%s,%.2f,%s,%s,,",
		talker, t.Format("150405.00"), status, lat, ns, lon, ew, f.Speed/KnotsToKPH, course, t.Format("020106"))
	return AppendChecksum(payload)
}

// EncodeGGA builds a checksummed GGA sentence for f.
func EncodeGGA(talker string, f fix.Fix, sats int) string {
	lat, ns := FormatLatLon(f.Lat, true)
	lon, ew := FormatLatLon(f.Lon, false)
	quality := 1
	if !f.Valid {
		quality = 0
	}
	payload := fmt.Sprintf("%sGGA,%s,%s,%s,%s,%s,%d,%02d,%.1f,%.1f,M,0.0,M,,",
		talker, f.Time().Format("150405.00"), lat, ns, lon, ew, quality, sats, f.HDOP, f.Altitude)
	return AppendChecksum(payload)
}

// EncodeCustom builds a PTRKF record for a platform fix. Speed is written in
// m/s as platform providers report it.
func EncodeCustom(f fix.Fix) string {
	payload := fmt.Sprintf("%s,%d,%.6f,%.6f,%.1f,%.1f,,%.2f,,%.1f,%s",
		CustomType, f.Timestamp, f.Lat, f.Lon, f.Accuracy, f.Altitude, f.Speed/3.6, f.Heading, f.Provider)
	return AppendChecksum(payload)
}
