package reduce

import (
	"math"
	"testing"

	"github.com/itrek/trekd/types/geopoint"
)

// sixPoints is a stationary trace recorded in Santiago: six fixes within a few meters,
// consecutive orders.
func sixPoints() geopoint.Points {
	return geopoint.Points{
		{Lat: -33.4564725, Lng: -70.5733309, Order: 1},
		{Lat: -33.4564781, Lng: -70.5733255, Order: 2},
		{Lat: -33.4564987, Lng: -70.5733334, Order: 3},
		{Lat: -33.4564860, Lng: -70.5733250, Order: 4},
		{Lat: -33.4564724, Lng: -70.5733308, Order: 5},
		{Lat: -33.4564725, Lng: -70.5733309, Order: 6},
	}
}

// cerroSanCristobal is a coarse trace up the Cerro San Cristóbal; points are tens to hundreds of meters apart.
func cerroSanCristobal() geopoint.Points {
	return geopoint.Points{
		{Lat: -33.41528, Lng: -70.61755, Order: 1},
		{Lat: -33.41631, Lng: -70.61934, Order: 2},
		{Lat: -33.41403, Lng: -70.61795, Order: 3},
		{Lat: -33.41321, Lng: -70.61636, Order: 4},
		{Lat: -33.41367, Lng: -70.61463, Order: 5},
		{Lat: -33.41298, Lng: -70.61577, Order: 6},
		{Lat: -33.41398, Lng: -70.62140, Order: 7},
		{Lat: -33.41528, Lng: -70.62093, Order: 8},
		{Lat: -33.41617, Lng: -70.62295, Order: 9},
		{Lat: -33.41746, Lng: -70.62552, Order: 10},
	}
}

func meanLatLng(ps geopoint.Points) (lat, lng float64) {
	for _, p := range ps {
		lat += p.Lat
		lng += p.Lng
	}
	return lat / float64(len(ps)), lng / float64(len(ps))
}

func assertNear(t *testing.T, name string, want, got, tol float64) {
	t.Helper()
	if math.Abs(want-got) > tol {
		t.Errorf("%s: want %.10f, got %.10f (tol %v)", name, want, got, tol)
	}
}

func assertSortedByOrder(t *testing.T, ps geopoint.Points) {
	t.Helper()
	for i := 1; i < len(ps); i++ {
		if ps[i].Order < ps[i-1].Order {
			t.Fatalf("orders not sorted at %d: %d < %d", i, ps[i].Order, ps[i-1].Order)
		}
	}
}
