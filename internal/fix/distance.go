package fix

import (
	geo "github.com/kellydunn/golang-geo"
)

// Distance returns the great-circle distance between two fixes in meters.
func Distance(a, b Fix) float64 {
	return DistanceLatLon(a.Lat, a.Lon, b.Lat, b.Lon)
}

// DistanceLatLon returns the great-circle distance in meters.
func DistanceLatLon(lat1, lon1, lat2, lon2 float64) float64 {
	p := geo.NewPoint(lat1, lon1)
	// golang-geo reports kilometers.
	return p.GreatCircleDistance(geo.NewPoint(lat2, lon2)) * 1000
}

// Offset returns the point meters away from (lat, lon) along bearing degrees.
func Offset(lat, lon, meters, bearing float64) (float64, float64) {
	p := geo.NewPoint(lat, lon).PointAtDistanceAndBearing(meters/1000, bearing)
	return p.Lat(), p.Lng()
}
