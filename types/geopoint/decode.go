package geopoint

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

var ErrDecodePoints = errors.New("could not decode as points, {points} object or geojson")

// DecodePoints reads a trace in any of the shapes clients send:
//   - a JSON array of points
//   - an object with a "points" array
//   - a GeoJSON FeatureCollection or Feature, as written by route.FeatureCollection
//
// GeoJSON line coordinates take their orders from the line's "orders" property
// if it fits, and are numbered from 1 otherwise.
// Point features with a "description" or "image" become points of interest.
func DecodePoints(data []byte) (Points, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrDecodePoints)
	}
	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.IsArray():
		return decodePointArray(parsed)
	case !parsed.IsObject():
		return nil, fmt.Errorf("%w: unexpected %s", ErrDecodePoints, parsed.Type)
	}

	if pts := parsed.Get("points"); pts.Exists() {
		if !pts.IsArray() {
			return nil, fmt.Errorf("%w: points is not an array", ErrDecodePoints)
		}
		return decodePointArray(pts)
	}

	switch parsed.Get("type").String() {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		return featuresToPoints(fc.Features)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		return featuresToPoints([]*geojson.Feature{f})
	}
	return nil, ErrDecodePoints
}

// decodePointArray decodes an array whose elements are either points or GeoJSON features.
func decodePointArray(arr gjson.Result) (Points, error) {
	out := Points{}
	var feats []*geojson.Feature
	for i, el := range arr.Array() {
		if !el.IsObject() {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrDecodePoints, i)
		}
		if el.Get("type").String() == "Feature" {
			f, err := geojson.UnmarshalFeature([]byte(el.Raw))
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			feats = append(feats, f)
			continue
		}
		p := GeoPoint{}
		if err := json.Unmarshal([]byte(el.Raw), &p); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, p)
	}
	if len(feats) == 0 {
		return out, nil
	}
	if len(out) > 0 {
		return nil, fmt.Errorf("%w: mixed points and features", ErrDecodePoints)
	}
	return featuresToPoints(feats)
}

func featuresToPoints(feats []*geojson.Feature) (Points, error) {
	out := Points{}
	var pois []*geojson.Feature
	for _, f := range feats {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			orders := propertyOrders(f, len(g))
			base := len(out)
			for i, pt := range g {
				order := base + i + 1
				if orders != nil {
					order = orders[i]
				}
				out = append(out, GeoPoint{Lat: pt.Lat(), Lng: pt.Lon(), Order: order})
			}
		case orb.MultiLineString:
			for _, ls := range g {
				base := len(out)
				for i, pt := range ls {
					out = append(out, GeoPoint{Lat: pt.Lat(), Lng: pt.Lon(), Order: base + i + 1})
				}
			}
		case orb.Point:
			pois = append(pois, f)
		case nil:
		default:
			return nil, fmt.Errorf("%w: unsupported geometry %s", ErrDecodePoints, f.Geometry.GeoJSONType())
		}
	}
	for _, f := range pois {
		attachFeature(&out, f)
	}
	return out, nil
}

// attachFeature puts a Point feature's interest on the point with the same order,
// or appends it as a new point if there is none.
func attachFeature(ps *Points, f *geojson.Feature) {
	pt := f.Geometry.(orb.Point)
	var poi *PointOfInterest
	desc, image := f.Properties.MustString("description", ""), f.Properties.MustString("image", "")
	if desc != "" || image != "" {
		poi = &PointOfInterest{Description: desc, Image: image}
	}
	if order, ok := propertyInt(f, "order"); ok {
		for i := range *ps {
			if (*ps)[i].Order == order {
				if poi != nil {
					(*ps)[i].Interest = poi
				}
				return
			}
		}
		*ps = append(*ps, GeoPoint{Lat: pt.Lat(), Lng: pt.Lon(), Order: order, Interest: poi})
		return
	}
	last := 0
	for _, p := range *ps {
		if p.Order > last {
			last = p.Order
		}
	}
	*ps = append(*ps, GeoPoint{Lat: pt.Lat(), Lng: pt.Lon(), Order: last + 1, Interest: poi})
}

// propertyOrders returns the "orders" property if it has one integer per coordinate.
func propertyOrders(f *geojson.Feature, n int) []int {
	raw, ok := f.Properties["orders"].([]any)
	if !ok || len(raw) != n {
		return nil
	}
	orders := make([]int, n)
	for i, v := range raw {
		fl, ok := v.(float64)
		if !ok || fl != float64(int(fl)) {
			return nil
		}
		orders[i] = int(fl)
	}
	return orders
}

func propertyInt(f *geojson.Feature, key string) (int, bool) {
	switch v := f.Properties[key].(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case int:
		return v, true
	}
	return 0, false
}
