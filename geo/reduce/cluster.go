package reduce

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/itrek/trekd/types/geopoint"
	"gonum.org/v1/gonum/floats"
)

// ClusterWithOrder reduces points by density-based clustering (DBSCAN, minPts=1)
// in a 3-D feature space of (lat·metersPerDegree, lng·metersPerDegree, order·orderWeight).
// Each cluster of two or more points is replaced by its centroid, which takes the Order of
// the cluster's first member (in input order) and no point of interest.
// Points carrying a point of interest never take part in clustering; they are passed
// through unchanged. The result is sorted by Order.
func ClusterWithOrder(points geopoint.Points, epsMeters, orderWeight, metersPerDegree float64) geopoint.Points {
	withPOI := geopoint.Points{}
	withoutPOI := geopoint.Points{}
	for _, p := range points {
		if p.HasInterest() {
			withPOI = append(withPOI, p)
		} else {
			withoutPOI = append(withoutPOI, p)
		}
	}

	out := make(geopoint.Points, 0, len(points))
	if len(withoutPOI) > 0 {
		features := make([][]float64, len(withoutPOI))
		for i, p := range withoutPOI {
			features[i] = featureVector(p, orderWeight, metersPerDegree)
		}
		for _, members := range dbscan(features, epsMeters) {
			if len(members) == 1 {
				out = append(out, withoutPOI[members[0]])
				continue
			}
			group := make(geopoint.Points, len(members))
			for i, idx := range members {
				group[i] = withoutPOI[idx]
			}
			out = append(out, centroid(group))
		}
	}
	out = append(out, withPOI...)
	out.SortByOrder()
	return out
}

func featureVector(p geopoint.GeoPoint, orderWeight, metersPerDegree float64) []float64 {
	return []float64{
		p.Lat * metersPerDegree,
		p.Lng * metersPerDegree,
		float64(p.Order) * orderWeight,
	}
}

type featureItem struct {
	rect  rtreego.Rect
	index int
}

func (f featureItem) Bounds() rtreego.Rect {
	return f.rect
}

// dbscan labels features with minPts=1, which makes every point a core point
// and every cluster a connected component of the eps-neighbourhood graph
// (neighbours at distance <= eps, Euclidean).
// Clusters are seeded in input order, and a point belongs to the first cluster that reaches it.
// Each returned cluster lists its member indexes in ascending input order,
// and clusters are ordered by their lowest member index.
func dbscan(features [][]float64, eps float64) [][]int {
	tree := rtreego.NewTree(3, 25, 50)
	for i, f := range features {
		tree.Insert(featureItem{rect: rtreego.Point(f).ToRect(searchTolerance(eps)), index: i})
	}

	labels := make([]int, len(features))
	for i := range labels {
		labels[i] = -1
	}
	clusters := [][]int{}
	for i := range features {
		if labels[i] >= 0 {
			continue
		}
		label := len(clusters)
		labels[i] = label
		members := []int{i}
		for queue := []int{i}; len(queue) > 0; queue = queue[1:] {
			for _, n := range regionQuery(tree, features, queue[0], eps) {
				if labels[n] >= 0 {
					continue
				}
				labels[n] = label
				members = append(members, n)
				queue = append(queue, n)
			}
		}
		sort.Ints(members)
		clusters = append(clusters, members)
	}
	return clusters
}

// searchTolerance pads the index boxes so that rects never degenerate to zero size;
// rtreego does not count touching rects as intersecting.
func searchTolerance(eps float64) float64 {
	return math.Max(eps, 0) + 1e-6
}

// regionQuery returns the indexes of the features within eps of features[idx],
// in ascending index order.
func regionQuery(tree *rtreego.Rtree, features [][]float64, idx int, eps float64) []int {
	candidates := tree.SearchIntersect(rtreego.Point(features[idx]).ToRect(searchTolerance(eps)))
	neighbors := make([]int, 0, len(candidates))
	for _, c := range candidates {
		item := c.(featureItem)
		if floats.Distance(features[idx], features[item.index], 2) <= eps {
			neighbors = append(neighbors, item.index)
		}
	}
	sort.Ints(neighbors)
	return neighbors
}
