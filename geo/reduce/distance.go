package reduce

import (
	"github.com/itrek/trekd/types/geopoint"
	"github.com/paulmach/orb"
	"github.com/tidwall/geodesic"
)

// Distance returns the geodesic distance in meters between two points
// on the WGS84 ellipsoid.
func Distance(a, b geopoint.GeoPoint) float64 {
	return distanceLatLng(a.Lat, a.Lng, b.Lat, b.Lng)
}

// DistanceOrb is Distance for orb (x,y::lng,lat) points.
func DistanceOrb(a, b orb.Point) float64 {
	return distanceLatLng(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

func distanceLatLng(lat1, lng1, lat2, lng2 float64) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(lat1, lng1, lat2, lng2, &s12, nil, nil)
	return s12
}

// Length returns the geodesic length in meters of the path through the points, in slice order.
func Length(points geopoint.Points) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}
