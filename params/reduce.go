package params

const (
	ReducerNone    = "none"
	ReducerMerge   = "merge"
	ReducerCluster = "cluster"
)

// ReduceConfig configures the point reducers used to compress raw GPS traces
// into stored routes.
type ReduceConfig struct {
	// Strategy names the reducer applied on route creation when the client does not ask for one.
	// One of ReducerNone, ReducerMerge, ReducerCluster.
	Strategy string

	// MergeThreshold is the sequential merger's distance threshold, in meters.
	// Consecutive points closer than this are averaged into one.
	MergeThreshold float64

	// ClusterEpsMeters is the density clusterer's neighbourhood radius,
	// in the scaled (approximately meters) feature space.
	ClusterEpsMeters float64

	// ClusterOrderWeight scales the order index in the feature space.
	// Higher values keep geographically close but sequence-distant points apart,
	// e.g. the two passes of an out-and-back trail.
	ClusterOrderWeight float64

	// MetersPerDegree converts degrees to (approximate) meters in the clusterer's feature space.
	// 111_000 is right for latitude everywhere, and for longitude only near the equator.
	MetersPerDegree float64

	// MaxPoints bounds the length of a trace accepted for reduction and storage.
	MaxPoints int
}

const (
	DefaultMergeThreshold     = 10.0
	DefaultClusterEpsMeters   = 5.0
	DefaultClusterOrderWeight = 10.0
	DefaultMetersPerDegree    = 111_000.0
	DefaultMaxPoints          = 10_000
)

func DefaultReduceConfig() *ReduceConfig {
	return &ReduceConfig{
		Strategy:           ReducerNone,
		MergeThreshold:     DefaultMergeThreshold,
		ClusterEpsMeters:   DefaultClusterEpsMeters,
		ClusterOrderWeight: DefaultClusterOrderWeight,
		MetersPerDegree:    DefaultMetersPerDegree,
		MaxPoints:          DefaultMaxPoints,
	}
}
