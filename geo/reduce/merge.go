package reduce

import (
	"github.com/itrek/trekd/types/geopoint"
	"github.com/montanaflynn/stats"
)

// MergeClose walks the points once, in order, merging runs of consecutive
// points into one averaged point.
// A point joins the current run when it is within threshold meters of the
// last point added to that run (not the run's centroid).
// A merged point takes the first member's Order and the first point of interest
// found among the members.
// Threshold is not validated; callers should pass a non-negative distance.
func MergeClose(points geopoint.Points, threshold float64) geopoint.Points {
	out := geopoint.Points{}
	if len(points) == 0 {
		return out
	}
	m := &merger{threshold: threshold}
	for _, p := range points {
		if flushed, ok := m.add(p); ok {
			out = append(out, flushed)
		}
	}
	return append(out, m.flush())
}

type merger struct {
	threshold float64
	group     geopoint.Points
}

// add appends p to the current group, or, if p is too far from the group's
// last point, flushes the group and starts a new one with p.
func (m *merger) add(p geopoint.GeoPoint) (flushed geopoint.GeoPoint, ok bool) {
	if m.isDiscontinuous(p) {
		flushed, ok = m.flush(), true
	}
	m.group = append(m.group, p)
	return flushed, ok
}

func (m *merger) isDiscontinuous(p geopoint.GeoPoint) bool {
	if len(m.group) == 0 {
		return false
	}
	return Distance(m.group[len(m.group)-1], p) > m.threshold
}

func (m *merger) flush() geopoint.GeoPoint {
	defer func() {
		m.group = geopoint.Points{}
	}()
	if len(m.group) == 1 {
		return m.group[0]
	}
	merged := centroid(m.group)
	merged.Interest = firstInterest(m.group)
	return merged
}

// firstInterest returns the first non-empty point of interest in the group.
// Failing that, an empty payload is still passed on, since the client sent one.
// An empty payload never shadows a later described one.
func firstInterest(group geopoint.Points) *geopoint.PointOfInterest {
	var empty *geopoint.PointOfInterest
	for _, p := range group {
		if p.HasInterest() {
			return p.Interest
		}
		if p.Interest != nil && empty == nil {
			empty = p.Interest
		}
	}
	return empty
}

// centroid averages the latitudes and longitudes of a non-empty group.
// It carries the first member's Order and no point of interest.
func centroid(group geopoint.Points) geopoint.GeoPoint {
	lats := make(stats.Float64Data, len(group))
	lngs := make(stats.Float64Data, len(group))
	for i, p := range group {
		lats[i] = p.Lat
		lngs[i] = p.Lng
	}
	lat, _ := stats.Mean(lats)
	lng, _ := stats.Mean(lngs)
	return geopoint.GeoPoint{
		Lat:   lat,
		Lng:   lng,
		Order: group[0].Order,
	}
}
