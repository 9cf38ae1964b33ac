package state

import (
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/route"
	"go.etcd.io/bbolt"
)

// Shares are keyed routeID|userID with the JSON share as value.

// AddShare records a share. It reports false if the share already existed.
func (s *Store) AddShare(routeID, userID uint64) (added bool, err error) {
	err = s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.BucketShares)
		key := pairKey(routeID, userID)
		if b.Get(key) != nil {
			return nil
		}
		added = true
		return putJSON(tx, params.BucketShares, key, &route.Share{RouteID: routeID, UserID: userID})
	})
	return added, err
}

// RemoveShare deletes a share. It reports false if there was none.
func (s *Store) RemoveShare(routeID, userID uint64) (removed bool, err error) {
	err = s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.BucketShares)
		key := pairKey(routeID, userID)
		if b.Get(key) == nil {
			return nil
		}
		removed = true
		return b.Delete(key)
	})
	return removed, err
}

func (s *Store) IsShared(routeID, userID uint64) (shared bool, err error) {
	err = s.DB.View(func(tx *bbolt.Tx) error {
		shared = tx.Bucket(params.BucketShares).Get(pairKey(routeID, userID)) != nil
		return nil
	})
	return shared, err
}

// SharesForRoute returns the ids of the users the route is shared with.
func (s *Store) SharesForRoute(routeID uint64) ([]uint64, error) {
	out := []uint64{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return scanJSON(tx, params.BucketShares, itob(routeID), func(sh *route.Share) error {
			out = append(out, sh.UserID)
			return nil
		})
	})
	return out, err
}

// SharedWith returns the ids of the routes shared with the user.
func (s *Store) SharedWith(userID uint64) ([]uint64, error) {
	out := []uint64{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return scanJSON(tx, params.BucketShares, nil, func(sh *route.Share) error {
			if sh.UserID == userID {
				out = append(out, sh.RouteID)
			}
			return nil
		})
	})
	return out, err
}

// DeleteSharesFor drops every share granted to the user.
func (s *Store) DeleteSharesFor(userID uint64) error {
	routeIDs, err := s.SharedWith(userID)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		for _, id := range routeIDs {
			if err := tx.Bucket(params.BucketShares).Delete(pairKey(id, userID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Ratings are keyed routeID|userID, so a user has at most one rating per route.

// PutRating inserts or replaces the user's rating of the route.
// A new rating gets the next id of the ratings sequence; a replaced one keeps its id.
func (s *Store) PutRating(r *route.Rating) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.BucketRatings)
		key := pairKey(r.RouteID, r.UserID)
		old := &route.Rating{}
		if err := getJSON(tx, params.BucketRatings, key, old); err == nil {
			r.ID = old.ID
		} else if r.ID == 0 {
			id, err := b.NextSequence()
			if err != nil {
				return err
			}
			r.ID = id
		}
		return putJSON(tx, params.BucketRatings, key, r)
	})
}

func (s *Store) GetRating(routeID, userID uint64) (*route.Rating, error) {
	r := &route.Rating{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return getJSON(tx, params.BucketRatings, pairKey(routeID, userID), r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) DeleteRating(routeID, userID uint64) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.BucketRatings)
		key := pairKey(routeID, userID)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}

func (s *Store) RatingsForRoute(routeID uint64) ([]*route.Rating, error) {
	out := []*route.Rating{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return scanJSON(tx, params.BucketRatings, itob(routeID), func(r *route.Rating) error {
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

func (s *Store) RatingsByUser(userID uint64) ([]*route.Rating, error) {
	out := []*route.Rating{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return scanJSON(tx, params.BucketRatings, nil, func(r *route.Rating) error {
			if r.UserID == userID {
				out = append(out, r)
			}
			return nil
		})
	})
	return out, err
}

// AddComment stores a new comment, assigning its id.
func (s *Store) AddComment(c *route.Comment) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		id, err := tx.Bucket(params.BucketComments).NextSequence()
		if err != nil {
			return err
		}
		c.ID = id
		return putJSON(tx, params.BucketComments, itob(id), c)
	})
}

func (s *Store) GetComment(id uint64) (*route.Comment, error) {
	c := &route.Comment{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return getJSON(tx, params.BucketComments, itob(id), c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) DeleteComment(id uint64) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.BucketComments)
		if b.Get(itob(id)) == nil {
			return ErrNotFound
		}
		return b.Delete(itob(id))
	})
}

// Comments returns the comments accepted by keep, oldest first.
func (s *Store) Comments(keep func(c *route.Comment) bool) ([]*route.Comment, error) {
	out := []*route.Comment{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return scanJSON(tx, params.BucketComments, nil, func(c *route.Comment) error {
			if keep == nil || keep(c) {
				out = append(out, c)
			}
			return nil
		})
	})
	return out, err
}
