package geopoint

import (
	"fmt"
	"math"
	"sort"

	"github.com/itrek/trekd/common"
	"github.com/paulmach/orb"
)

// GeoPoint is one sample of a route: a latitude/longitude pair with a sequence index,
// and maybe a point of interest the hiker attached to it.
// Order defines traversal order. It is unique within a route but need not be contiguous.
type GeoPoint struct {
	Lat      float64          `json:"latitude" validate:"gte=-90,lte=90"`
	Lng      float64          `json:"longitude" validate:"gte=-180,lte=180"`
	Order    int              `json:"order"`
	Interest *PointOfInterest `json:"interest,omitempty"`
}

// PointOfInterest is the descriptive payload (text and image) attached to a single GeoPoint.
// Image is a reference: an URL, an S3 key, or a path under the data directory.
type PointOfInterest struct {
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// IsEmpty is true for nil and for the zero payload `{}`.
func (p *PointOfInterest) IsEmpty() bool {
	return p == nil || (p.Description == "" && p.Image == "")
}

func (p *PointOfInterest) Equal(other *PointOfInterest) bool {
	if p == nil || other == nil {
		return p == other
	}
	return *p == *other
}

// Point returns the orb (x,y::lng,lat) point.
func (gp GeoPoint) Point() orb.Point {
	return orb.Point{gp.Lng, gp.Lat}
}

// HasInterest reports whether the point carries a non-empty point of interest.
// An empty payload does not count; such points are free to be merged.
func (gp GeoPoint) HasInterest() bool {
	return !gp.Interest.IsEmpty()
}

func (gp GeoPoint) String() string {
	if gp.HasInterest() {
		return fmt.Sprintf("#%d (%.7f,%.7f) poi=%q", gp.Order, gp.Lat, gp.Lng, gp.Interest.Description)
	}
	return fmt.Sprintf("#%d (%.7f,%.7f)", gp.Order, gp.Lat, gp.Lng)
}

// Validate checks that the coordinates are finite and in range.
// The reducers never call this; it is the guard for whoever hands them points.
func (gp GeoPoint) Validate() error {
	if math.IsNaN(gp.Lat) || math.IsInf(gp.Lat, 0) {
		return fmt.Errorf("invalid coordinate: lat=%v", gp.Lat)
	}
	if math.IsNaN(gp.Lng) || math.IsInf(gp.Lng, 0) {
		return fmt.Errorf("invalid coordinate: lng=%v", gp.Lng)
	}
	if err := common.Validator().Struct(gp); err != nil {
		return fmt.Errorf("invalid coordinate: lat=%.14f lng=%.14f: %w", gp.Lat, gp.Lng, err)
	}
	return nil
}

// Points is an ordered route trace.
type Points []GeoPoint

// Validate validates each point and asserts that order values are unique.
func (ps Points) Validate() error {
	seen := make(map[int]struct{}, len(ps))
	for i, p := range ps {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
		if _, ok := seen[p.Order]; ok {
			return fmt.Errorf("point %d: duplicate order %d", i, p.Order)
		}
		seen[p.Order] = struct{}{}
	}
	return nil
}

// SortByOrder sorts the points by Order, ascending, in place.
// Equal orders keep their relative position.
func (ps Points) SortByOrder() {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].Order < ps[j].Order
	})
}

func (ps Points) IsSortedByOrder() bool {
	return sort.SliceIsSorted(ps, func(i, j int) bool {
		return ps[i].Order < ps[j].Order
	})
}

// Interests returns the points carrying a point of interest.
func (ps Points) Interests() Points {
	out := Points{}
	for _, p := range ps {
		if p.HasInterest() {
			out = append(out, p)
		}
	}
	return out
}

func (ps Points) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(ps))
	for _, p := range ps {
		ls = append(ls, p.Point())
	}
	return ls
}

func (ps Points) Bound() orb.Bound {
	return ps.LineString().Bound()
}

// Clone returns a deep copy, interests included.
func (ps Points) Clone() Points {
	if ps == nil {
		return nil
	}
	out := make(Points, len(ps))
	for i, p := range ps {
		out[i] = p
		if p.Interest != nil {
			cp := *p.Interest
			out[i].Interest = &cp
		}
	}
	return out
}
