package reduce

import (
	"errors"
	"fmt"

	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/geopoint"
)

// Reducer compresses a point sequence into a shorter, order-sorted one.
// The merger and the clusterer encode different policies and are not
// expected to agree on the same input.
type Reducer interface {
	Name() string
	Reduce(points geopoint.Points) geopoint.Points
}

var ErrUnknownReducer = errors.New("unknown reducer")

// SequentialMerger merges runs of consecutive close points. See MergeClose.
type SequentialMerger struct {
	Threshold float64
}

func (SequentialMerger) Name() string { return params.ReducerMerge }

func (m SequentialMerger) Reduce(points geopoint.Points) geopoint.Points {
	return MergeClose(points, m.Threshold)
}

// DensityClusterer clusters points in geographic+sequence space. See ClusterWithOrder.
type DensityClusterer struct {
	EpsMeters       float64
	OrderWeight     float64
	MetersPerDegree float64
}

func (DensityClusterer) Name() string { return params.ReducerCluster }

func (c DensityClusterer) Reduce(points geopoint.Points) geopoint.Points {
	mpd := c.MetersPerDegree
	if mpd == 0 {
		mpd = params.DefaultMetersPerDegree
	}
	return ClusterWithOrder(points, c.EpsMeters, c.OrderWeight, mpd)
}

// Passthrough returns a sorted copy of its input.
type Passthrough struct{}

func (Passthrough) Name() string { return params.ReducerNone }

func (Passthrough) Reduce(points geopoint.Points) geopoint.Points {
	out := points.Clone()
	if out == nil {
		out = geopoint.Points{}
	}
	out.SortByOrder()
	return out
}

// NewReducer returns the reducer registered under name, configured from config.
// An empty name selects config.Strategy.
func NewReducer(name string, config *params.ReduceConfig) (Reducer, error) {
	if config == nil {
		config = params.DefaultReduceConfig()
	}
	if name == "" {
		name = config.Strategy
	}
	switch name {
	case params.ReducerNone, "":
		return Passthrough{}, nil
	case params.ReducerMerge:
		return SequentialMerger{Threshold: config.MergeThreshold}, nil
	case params.ReducerCluster:
		return DensityClusterer{
			EpsMeters:       config.ClusterEpsMeters,
			OrderWeight:     config.ClusterOrderWeight,
			MetersPerDegree: config.MetersPerDegree,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReducer, name)
}
