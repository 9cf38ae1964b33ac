package api

import (
	"time"

	"github.com/itrek/trekd/geo/reduce"
	"github.com/itrek/trekd/metrics"
	"github.com/itrek/trekd/types/geopoint"
)

// checkPoints validates a client trace before it is reduced or stored.
func (a *App) checkPoints(points geopoint.Points) error {
	if max := a.Config.Reduce.MaxPoints; max > 0 && len(points) > max {
		return invalidf("too many points: %d > %d", len(points), max)
	}
	if err := points.Validate(); err != nil {
		return invalidf("%v", err)
	}
	return nil
}

// Reduce validates points and reduces them with the named strategy,
// or the configured default for an empty name.
// Input is left untouched. Output is sorted by order.
func (a *App) Reduce(strategy string, points geopoint.Points) (geopoint.Points, string, error) {
	if err := a.checkPoints(points); err != nil {
		return nil, "", err
	}
	r, err := reduce.NewReducer(strategy, a.Config.Reduce)
	if err != nil {
		return nil, "", invalidf("%v", err)
	}
	sorted := points.Clone()
	sorted.SortByOrder()

	start := time.Now()
	out := r.Reduce(sorted)
	elapsed := time.Since(start)
	metrics.ObserveReduce(r.Name(), len(points), len(out), elapsed)
	a.logger.Debug("Reduced points", "strategy", r.Name(),
		"in", len(points), "out", len(out), "elapsed", elapsed)
	return out, r.Name(), nil
}
