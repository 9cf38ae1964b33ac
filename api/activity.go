package api

import (
	"errors"
	"fmt"

	"github.com/itrek/trekd/state"
	"github.com/itrek/trekd/types/route"
)

const (
	ActivityCreated  = "created"
	ActivityShared   = "shared"
	ActivityComments = "comments"
	ActivityRatings  = "ratings"
)

type Activity struct {
	Created  []*RouteView     `json:"created"`
	Shared   []*RouteView     `json:"shared"`
	Comments []*route.Comment `json:"comments"`
	Ratings  []*route.Rating  `json:"ratings"`
}

// Activity lists the hiker's routes, the routes shared with them, and their comments and ratings.
func (h *Hiker) Activity() (*Activity, error) {
	st := h.app.Store
	act := &Activity{
		Created: []*RouteView{},
		Shared:  []*RouteView{},
	}
	mine, err := st.ListRoutes(func(r *route.Route) bool { return r.OwnerID == h.ID() })
	if err != nil {
		return nil, err
	}
	for _, r := range mine {
		v, err := h.view(r)
		if err != nil {
			return nil, err
		}
		act.Created = append(act.Created, v)
	}
	shared, err := st.SharedWith(h.ID())
	if err != nil {
		return nil, err
	}
	for _, id := range shared {
		r, err := st.GetRoute(id)
		if errors.Is(err, state.ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		v, err := h.view(r)
		if err != nil {
			return nil, err
		}
		act.Shared = append(act.Shared, v)
	}
	if act.Comments, err = st.Comments(func(c *route.Comment) bool { return c.UserID == h.ID() }); err != nil {
		return nil, err
	}
	if act.Ratings, err = st.RatingsByUser(h.ID()); err != nil {
		return nil, err
	}
	return act, nil
}

// DeleteActivity undoes one piece of activity:
//   - created: unshare my route id from otherUserID
//   - shared: drop route id from the routes shared with me
//   - comments: delete my comment id
//   - ratings: delete my rating id
func (h *Hiker) DeleteActivity(kind string, id, otherUserID uint64) (*Activity, error) {
	st := h.app.Store
	switch kind {
	case ActivityCreated:
		if otherUserID == 0 {
			return nil, invalidf("user_id is required")
		}
		if err := h.Unshare(id, otherUserID); err != nil {
			return nil, err
		}
	case ActivityShared:
		if _, err := st.RemoveShare(id, h.ID()); err != nil {
			return nil, err
		}
	case ActivityComments:
		c, err := st.GetComment(id)
		if err != nil {
			return nil, storeErr(err, "comment", id)
		}
		if c.UserID != h.ID() {
			return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
		}
		if err := st.DeleteComment(id); err != nil {
			return nil, err
		}
	case ActivityRatings:
		ratings, err := st.RatingsByUser(h.ID())
		if err != nil {
			return nil, err
		}
		var found *route.Rating
		for _, r := range ratings {
			if r.ID == id {
				found = r
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("rating %d: %w", id, ErrNotFound)
		}
		if err := st.DeleteRating(found.RouteID, h.ID()); err != nil {
			return nil, err
		}
		if _, err := h.app.updateRouteRating(found.RouteID); err != nil {
			return nil, err
		}
	default:
		return nil, invalidf("unknown activity kind %q", kind)
	}
	return h.Activity()
}
