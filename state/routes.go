package state

import (
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/route"
	"go.etcd.io/bbolt"
)

func cloneRoute(r *route.Route) *route.Route {
	cp := *r
	cp.Points = r.Points.Clone()
	return &cp
}

// PutRoute inserts or updates a route. A zero ID gets the next id from the routes sequence.
// Use UpdateRoute to change a route that others may be writing too.
func (s *Store) PutRoute(r *route.Route) error {
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		if r.ID == 0 {
			id, err := tx.Bucket(params.BucketRoutes).NextSequence()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if err := putJSON(tx, params.BucketRoutes, itob(r.ID), r); err != nil {
			return err
		}
		// Writers hold the bolt lock, so the cache sees writes in commit order.
		s.routes.Add(r.ID, cloneRoute(r))
		return nil
	})
	if err != nil {
		s.routes.Remove(r.ID)
	}
	return err
}

// UpdateRoute reads the route, applies fn and writes it back in a single transaction.
// An error from fn aborts the update. The updated route is returned.
func (s *Store) UpdateRoute(id uint64, fn func(r *route.Route) error) (*route.Route, error) {
	return s.updateRoute(id, func(_ *bbolt.Tx, r *route.Route) error {
		return fn(r)
	})
}

// RerateRoute sets the rating of the route to rate(its ratings), reading the ratings
// in the same transaction that writes the route.
func (s *Store) RerateRoute(id uint64, rate func(ratings []*route.Rating) float64) (*route.Route, error) {
	return s.updateRoute(id, func(tx *bbolt.Tx, r *route.Route) error {
		ratings := []*route.Rating{}
		err := scanJSON(tx, params.BucketRatings, itob(id), func(rt *route.Rating) error {
			ratings = append(ratings, rt)
			return nil
		})
		if err != nil {
			return err
		}
		r.Rating = rate(ratings)
		return nil
	})
}

func (s *Store) updateRoute(id uint64, fn func(tx *bbolt.Tx, r *route.Route) error) (*route.Route, error) {
	r := &route.Route{}
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		if err := getJSON(tx, params.BucketRoutes, itob(id), r); err != nil {
			return err
		}
		if err := fn(tx, r); err != nil {
			return err
		}
		r.ID = id
		if err := putJSON(tx, params.BucketRoutes, itob(id), r); err != nil {
			return err
		}
		s.routes.Add(id, cloneRoute(r))
		return nil
	})
	if err != nil {
		s.routes.Remove(id)
		return nil, err
	}
	return r, nil
}

// GetRoute returns a copy of the route; callers may modify it freely.
func (s *Store) GetRoute(id uint64) (*route.Route, error) {
	if r, ok := s.routes.Get(id); ok {
		return cloneRoute(r), nil
	}
	r := &route.Route{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return getJSON(tx, params.BucketRoutes, itob(id), r)
	})
	if err != nil {
		return nil, err
	}
	// A writer may have cached a newer version since the read.
	s.routes.ContainsOrAdd(id, cloneRoute(r))
	return r, nil
}

// DeleteRoute removes the route along with its shares, ratings and comments.
func (s *Store) DeleteRoute(id uint64) error {
	s.routes.Remove(id)
	defer s.routes.Remove(id)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(params.BucketRoutes).Get(itob(id)) == nil {
			return ErrNotFound
		}
		if err := deletePrefix(tx.Bucket(params.BucketShares), itob(id)); err != nil {
			return err
		}
		if err := deletePrefix(tx.Bucket(params.BucketRatings), itob(id)); err != nil {
			return err
		}
		var comments [][]byte
		err := scanJSON(tx, params.BucketComments, nil, func(c *route.Comment) error {
			if c.RouteID == id {
				comments = append(comments, itob(c.ID))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range comments {
			if err := tx.Bucket(params.BucketComments).Delete(k); err != nil {
				return err
			}
		}
		return tx.Bucket(params.BucketRoutes).Delete(itob(id))
	})
}

// ListRoutes returns the routes accepted by keep, in id order, points included.
// A nil keep accepts everything.
func (s *Store) ListRoutes(keep func(r *route.Route) bool) ([]*route.Route, error) {
	out := []*route.Route{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return scanJSON(tx, params.BucketRoutes, nil, func(r *route.Route) error {
			if keep == nil || keep(r) {
				out = append(out, r)
			}
			return nil
		})
	})
	return out, err
}

func deletePrefix(b *bbolt.Bucket, prefix []byte) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
