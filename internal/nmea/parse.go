package nmea

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fleettrack/internal/fix"
)

// KnotsToKPH converts knots to km/h.
const KnotsToKPH = 1.852

// CustomType is the sentence type of the compact platform record.
const CustomType = "PTRKF"

const (
	secondsPerDay  = 24 * 60 * 60
	halfDaySeconds = 12 * 60 * 60
)

type Kind int

const (
	KindNone Kind = iota
	KindRMC
	KindGGA
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindRMC:
		return "RMC"
	case KindGGA:
		return "GGA"
	case KindCustom:
		return CustomType
	default:
		return "none"
	}
}

// Record is one decoded sentence.
type Record struct {
	Kind  Kind
	Valid bool

	// Timestamp is UTC seconds; 0 when the record is not valid.
	Timestamp int64

	Lat float64
	Lon float64

	// Speed is km/h.
	Speed    float64
	Heading  float64
	Altitude float64
	HDOP     float64
	Accuracy float64

	FixQuality int
	Satellites int

	Provider string
}

// Fix converts the record to a fix value tagged with provider when the
// record does not name one.
func (r Record) Fix(provider string) fix.Fix {
	f := fix.New()
	f.Valid = r.Valid
	f.Timestamp = r.Timestamp
	f.Lat = r.Lat
	f.Lon = r.Lon
	f.Speed = r.Speed
	f.Heading = r.Heading
	f.Altitude = r.Altitude
	f.HDOP = r.HDOP
	f.Accuracy = r.Accuracy
	f.Provider = r.Provider
	if f.Provider == "" {
		f.Provider = provider
	}
	return f
}

func newRecord(k Kind) Record {
	return Record{Kind: k, Heading: fix.Unknown, Accuracy: fix.Unknown}
}

// Parse decodes one line. now is the wall clock used to infer the date of
// sentences that carry only a time of day.
//
// Sentences that are not position fixes return a KindNone record and a nil
// error. A bad checksum returns an invalid record together with a
// *ParseError wrapping ErrChecksum.
func Parse(line string, now time.Time) (Record, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Record{}, parseErr("", ErrNoStart, "")
	}

	payload, ck, hasCk := splitChecksum(line[1:])
	fields := strings.Split(payload, ",")
	if len(fields) < 2 {
		return Record{}, parseErr("", ErrShort, "")
	}
	typ := strings.ToUpper(strings.TrimSpace(fields[0]))

	switch {
	case typ == CustomType:
		if hasCk && !checksumMatches(payload, ck) {
			return newRecord(KindCustom), parseErr(typ, ErrChecksum, "")
		}
		return parseCustom(fields)
	case isTalker(typ, "RMC"), isTalker(typ, "GGA"):
		kind := KindRMC
		if strings.HasSuffix(typ, "GGA") {
			kind = KindGGA
		}
		if !hasCk {
			return newRecord(kind), parseErr(typ, ErrChecksum, "missing checksum")
		}
		if !checksumMatches(payload, ck) {
			return newRecord(kind), parseErr(typ, ErrChecksum, fmt.Sprintf("want %02X got %q", Checksum(payload), ck))
		}
		if kind == KindRMC {
			return parseRMC(fields, now)
		}
		return parseGGA(fields, now)
	default:
		return Record{Kind: KindNone}, nil
	}
}

// isTalker matches "GPRMC", "GNRMC" etc. Proprietary sentences start with P.
func isTalker(typ, suffix string) bool {
	return len(typ) == 5 && typ[0] != 'P' && strings.HasSuffix(typ, suffix)
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	0: talker+type
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3: latitude (ddmm.mmmm)
//	4: N/S
//	5: longitude (dddmm.mmmm)
//	6: E/W
//	7: speed over ground (knots)
//	8: course over ground (deg)
//	9: date (ddmmyy)
func parseRMC(f []string, now time.Time) (Record, error) {
	rec := newRecord(KindRMC)
	if len(f) < 10 {
		return rec, parseErr("RMC", ErrShort, fmt.Sprintf("%d fields", len(f)))
	}

	ts, tsOK := utcSeconds(f[1], f[9], now)
	lat, latOK := parseLatLon(f[3], f[4], 90)
	lon, lonOK := parseLatLon(f[5], f[6], 180)
	rec.Lat, rec.Lon = lat, lon

	if kn, ok := parseFloat(f[7]); ok {
		rec.Speed = kn * KnotsToKPH
	}
	if trk, ok := parseFloat(f[8]); ok {
		rec.Heading = normalizeHeading(trk)
	}

	if strings.TrimSpace(f[2]) == "A" && tsOK && latOK && lonOK {
		rec.Valid = true
		rec.Timestamp = ts
	}
	return rec, nil
}

// GGA: Global Positioning System Fix Data
//
//	0: talker+type
//	1: time
//	2: latitude
//	3: N/S
//	4: longitude
//	5: E/W
//	6: fix quality (0=invalid)
//	7: number of satellites
//	8: HDOP
//	9: altitude (meters)
func parseGGA(f []string, now time.Time) (Record, error) {
	rec := newRecord(KindGGA)
	if len(f) < 10 {
		return rec, parseErr("GGA", ErrShort, fmt.Sprintf("%d fields", len(f)))
	}

	ts, tsOK := utcSeconds(f[1], "", now)
	lat, latOK := parseLatLon(f[2], f[3], 90)
	lon, lonOK := parseLatLon(f[4], f[5], 180)
	rec.Lat, rec.Lon = lat, lon

	if q, err := strconv.Atoi(strings.TrimSpace(f[6])); err == nil {
		rec.FixQuality = q
	}
	if sats, err := strconv.Atoi(strings.TrimSpace(f[7])); err == nil {
		rec.Satellites = sats
	}
	if hdop, ok := parseFloat(f[8]); ok {
		rec.HDOP = hdop
	}
	if alt, ok := parseFloat(f[9]); ok {
		rec.Altitude = alt
	}

	if rec.FixQuality > 0 && tsOK && latOK && lonOK {
		rec.Valid = true
		rec.Timestamp = ts
	}
	return rec, nil
}

// PTRKF: compact platform record
//
//	0: PTRKF
//	1: timestamp (unix seconds)
//	2: latitude (deg)
//	3: longitude (deg)
//	4: accuracy (m)
//	5: altitude (m)
//	6: altitude uncertainty (m)
//	7: speed (m/s)
//	8: speed uncertainty (m/s)
//	9: heading (deg)
//	10: provider
func parseCustom(f []string) (Record, error) {
	rec := newRecord(KindCustom)
	if len(f) < 4 {
		return rec, parseErr(CustomType, ErrShort, fmt.Sprintf("%d fields", len(f)))
	}
	field := func(i int) string {
		if i < len(f) {
			return f[i]
		}
		return ""
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(f[1]), 10, 64)
	if err != nil {
		return rec, parseErr(CustomType, ErrField, "timestamp")
	}
	lat, latOK := parseFloat(f[2])
	lon, lonOK := parseFloat(f[3])
	if !latOK || !lonOK {
		return rec, parseErr(CustomType, ErrField, "lat/lon")
	}
	rec.Lat, rec.Lon = lat, lon

	if v, ok := parseFloat(field(4)); ok && v >= 0 {
		rec.Accuracy = v
	}
	if v, ok := parseFloat(field(5)); ok {
		rec.Altitude = v
	}
	if v, ok := parseFloat(field(7)); ok && v >= 0 {
		rec.Speed = v * 3.6
	}
	if v, ok := parseFloat(field(9)); ok && v >= 0 {
		rec.Heading = normalizeHeading(v)
	}
	rec.Provider = strings.TrimSpace(field(10))

	inRange := lat > -90 && lat < 90 && lon > -180 && lon < 180
	if ts > 0 && inRange {
		rec.Valid = true
		rec.Timestamp = ts
	}
	return rec, nil
}

func normalizeHeading(deg float64) float64 {
	if deg >= 0 && deg < 360 {
		return deg
	}
	return math.Mod(math.Mod(deg, 360.0)+360.0, 360.0)
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseLatLon parses ddmm.mmmm (maxDeg 90) or dddmm.mmmm (maxDeg 180) plus a
// hemisphere letter. The whole degrees and the minutes are converted
// separately so the minutes keep their full precision.
//
// Values whose degrees reach maxDeg (including the 99999 "no fix" filler)
// return +/-maxDeg and false.
func parseLatLon(v string, hemi string, maxDeg int) (float64, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" {
		return 0, false
	}
	neg := false
	switch hemi {
	case "N", "E":
	case "S", "W":
		neg = true
	default:
		return 0, false
	}

	dot := strings.IndexByte(v, '.')
	intPart := v
	if dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return 0, false
	}

	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil || deg < 0 {
		return 0, false
	}
	if deg >= maxDeg {
		out := float64(maxDeg)
		if neg {
			out = -out
		}
		return out, false
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil || mins < 0 || mins >= 60 {
		return 0, false
	}

	dec := float64(deg) + mins/60.0
	if neg {
		dec = -dec
	}
	return dec, true
}

// parseTimeOfDay parses hhmmss[.sss] into seconds since midnight.
func parseTimeOfDay(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return 0, false
	}
	hh, err1 := strconv.Atoi(s[0:2])
	mm, err2 := strconv.Atoi(s[2:4])
	ss, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	if hh > 23 || mm > 59 || ss > 59 {
		return 0, false
	}
	return int64(hh*3600 + mm*60 + ss), true
}

// parseDate parses ddmmyy into the UTC midnight of that day.
func parseDate(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return 0, false
	}
	dd, err1 := strconv.Atoi(s[0:2])
	mm, err2 := strconv.Atoi(s[2:4])
	yy, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	if dd < 1 || dd > 31 || mm < 1 || mm > 12 {
		return 0, false
	}
	return time.Date(2000+yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC).Unix(), true
}

// utcSeconds combines a time of day with an optional date. Without a date
// the day is inferred from now; see InferDayStart.
func utcSeconds(hms, dmy string, now time.Time) (int64, bool) {
	tod, ok := parseTimeOfDay(hms)
	if !ok {
		return 0, false
	}
	if strings.TrimSpace(dmy) != "" {
		day, ok := parseDate(dmy)
		if !ok {
			return 0, false
		}
		return day + tod, true
	}
	return InferDayStart(tod, now) + tod, true
}

// InferDayStart returns the UTC midnight (unix seconds) a time of day
// belongs to, given the wall clock now.
//
// When the wall clock is more than 12h past the fix time of day, the fix has
// already rolled into the next day. In every other case the fix keeps the
// wall-clock day. It never moves a fix back to the previous day: a fix time
// of day ahead of the wall clock is read as clock skew within day D, not as
// yesterday's fix.
func InferDayStart(tod int64, now time.Time) int64 {
	n := now.UTC().Unix()
	wallTOD := n % secondsPerDay
	if wallTOD < 0 {
		wallTOD += secondsPerDay
	}
	dayStart := n - wallTOD
	if wallTOD-tod > halfDaySeconds {
		dayStart += secondsPerDay
	}
	return dayStart
}
