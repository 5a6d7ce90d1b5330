package nmea

import (
	gonmea "github.com/adrianmo/go-nmea"
)

// SatellitesInView extracts the satellites-in-view count from a GSV
// sentence. Any other sentence returns false.
func SatellitesInView(line string) (int, bool) {
	s, err := gonmea.Parse(line)
	if err != nil {
		return 0, false
	}
	gsv, ok := s.(gonmea.GSV)
	if !ok {
		return 0, false
	}
	return int(gsv.NumberSVsInView), true
}
