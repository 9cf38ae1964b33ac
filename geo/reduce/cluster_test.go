package reduce

import (
	"reflect"
	"testing"

	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/geopoint"
)

func clusterDefaults(ps geopoint.Points) geopoint.Points {
	return ClusterWithOrder(ps, params.DefaultClusterEpsMeters, params.DefaultClusterOrderWeight, params.DefaultMetersPerDegree)
}

func TestClusterWithOrder_Empty(t *testing.T) {
	for _, in := range []geopoint.Points{nil, {}} {
		out := clusterDefaults(in)
		if out == nil || len(out) != 0 {
			t.Errorf("expected empty non-nil output, got %#v", out)
		}
	}
}

func TestClusterWithOrder_SinglePoint(t *testing.T) {
	for _, in := range []geopoint.Points{
		{{Lat: -33.41528, Lng: -70.61755, Order: 3}},
		{{Lat: -33.41528, Lng: -70.61755, Order: 3, Interest: &geopoint.PointOfInterest{Description: "puente"}}},
	} {
		out := clusterDefaults(in)
		if !reflect.DeepEqual(in, out) {
			t.Errorf("expected passthrough, got %v", out)
		}
	}
}

// With the default weights, consecutive integer orders sit 10 units apart in the
// order dimension, twice the 5m radius, so a trace sampled once per order
// step is left as it is.
func TestClusterWithOrder_DefaultsKeepSequenceApart(t *testing.T) {
	in := sixPoints()
	out := clusterDefaults(in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("expected all six points as singletons, got %v", out)
	}
}

func TestClusterWithOrder_SixPointsCollapse(t *testing.T) {
	in := sixPoints()
	out := ClusterWithOrder(in, 5, 1, params.DefaultMetersPerDegree)
	if len(out) != 1 {
		t.Fatalf("expected one centroid, got %d: %v", len(out), out)
	}
	lat, lng := meanLatLng(in)
	assertNear(t, "lat", lat, out[0].Lat, 1e-12)
	assertNear(t, "lng", lng, out[0].Lng, 1e-12)
	if out[0].Order != 1 {
		t.Errorf("expected order 1, got %d", out[0].Order)
	}
	if out[0].Interest != nil {
		t.Errorf("centroid should not carry interest: %v", out[0].Interest)
	}
}

func TestClusterWithOrder_InterestPreserved(t *testing.T) {
	in := sixPoints()
	poi := &geopoint.PointOfInterest{Description: "banca con vista", Image: "images/banca.jpg"}
	in[2].Interest = poi
	out := ClusterWithOrder(in, 5, 1, params.DefaultMetersPerDegree)
	if len(out) != 2 {
		t.Fatalf("expected centroid + interest point, got %d: %v", len(out), out)
	}
	assertSortedByOrder(t, out)

	if out[0].Order != 1 || out[0].Interest != nil {
		t.Errorf("expected centroid at order 1, got %v", out[0])
	}
	rest := geopoint.Points{in[0], in[1], in[3], in[4], in[5]}
	lat, lng := meanLatLng(rest)
	assertNear(t, "lat", lat, out[0].Lat, 1e-12)
	assertNear(t, "lng", lng, out[0].Lng, 1e-12)

	if !reflect.DeepEqual(out[1], in[2]) {
		t.Errorf("interest point changed: %v", out[1])
	}
	if out[1].Interest != poi {
		t.Error("interest payload not carried through")
	}
}

func TestClusterWithOrder_EmptyInterestIsClustered(t *testing.T) {
	in := sixPoints()
	in[0].Interest = &geopoint.PointOfInterest{}
	out := ClusterWithOrder(in, 5, 1, params.DefaultMetersPerDegree)
	if len(out) != 1 {
		t.Fatalf("expected empty interest to be clustered, got %v", out)
	}
}

func TestClusterWithOrder_AllInterest(t *testing.T) {
	in := geopoint.Points{
		{Lat: 1, Lng: 1, Order: 3, Interest: &geopoint.PointOfInterest{Description: "c"}},
		{Lat: 1, Lng: 1, Order: 1, Interest: &geopoint.PointOfInterest{Description: "a"}},
		{Lat: 1, Lng: 1, Order: 2, Interest: &geopoint.PointOfInterest{Description: "b"}},
	}
	out := clusterDefaults(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 points, got %d", len(out))
	}
	for i, want := range []string{"a", "b", "c"} {
		if out[i].Interest.Description != want {
			t.Errorf("index %d: expected %q, got %q", i, want, out[i].Interest.Description)
		}
	}
}

// An out-and-back hike passes the same spot twice; the order weight keeps the
// two passes apart while nearby samples of each pass merge.
func TestClusterWithOrder_OutAndBack(t *testing.T) {
	in := geopoint.Points{
		{Lat: -33.4200000, Lng: -70.6300000, Order: 1},
		{Lat: -33.4200050, Lng: -70.6300050, Order: 2},
		{Lat: -33.4300000, Lng: -70.6400000, Order: 50}, // turnaround, ~1.4km away
		{Lat: -33.4200010, Lng: -70.6300010, Order: 98},
		{Lat: -33.4200040, Lng: -70.6300040, Order: 99},
	}
	out := ClusterWithOrder(in, 5, 2, params.DefaultMetersPerDegree)
	if len(out) != 3 {
		t.Fatalf("expected 3 points, got %d: %v", len(out), out)
	}
	for i, want := range []int{1, 50, 98} {
		if out[i].Order != want {
			t.Errorf("index %d: expected order %d, got %d", i, want, out[i].Order)
		}
	}

	// Ignoring order altogether folds the return pass into the outbound one.
	out = ClusterWithOrder(in, 5, 0, params.DefaultMetersPerDegree)
	if len(out) != 2 {
		t.Fatalf("expected 2 points without order weight, got %d: %v", len(out), out)
	}
}

func TestClusterWithOrder_Properties(t *testing.T) {
	withPOI := cerroSanCristobal()
	withPOI[4].Interest = &geopoint.PointOfInterest{Description: "cumbre"}
	inputs := []geopoint.Points{sixPoints(), cerroSanCristobal(), withPOI}
	for _, w := range []float64{0, 1, 10} {
		for i, in := range inputs {
			out := ClusterWithOrder(in, 5, w, params.DefaultMetersPerDegree)
			if len(out) > len(in) {
				t.Errorf("w=%v input %d: output larger than input", w, i)
			}
			assertSortedByOrder(t, out)
			for _, p := range in.Interests() {
				found := false
				for _, q := range out {
					if reflect.DeepEqual(p, q) {
						found = true
					}
				}
				if !found {
					t.Errorf("w=%v input %d: lost interest point %v", w, i, p)
				}
			}
		}
	}
}

func TestDBSCAN_DeterministicLabels(t *testing.T) {
	features := [][]float64{
		{0, 0, 0},
		{100, 0, 0},
		{1, 0, 0},
		{101, 0, 0},
		{2, 0, 0},
	}
	got := dbscan(features, 1)
	want := [][]int{{0, 2, 4}, {1, 3}}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
	if got := dbscan(features, 0); len(got) != 5 {
		t.Errorf("expected singletons with eps=0, got %v", got)
	}
}
