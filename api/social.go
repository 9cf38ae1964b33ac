package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/itrek/trekd/events"
	"github.com/itrek/trekd/state"
	"github.com/itrek/trekd/types/route"
	"github.com/shopspring/decimal"
)

// Share lets another user see a route the hiker owns.
func (h *Hiker) Share(routeID, userID uint64) error {
	if _, err := h.ownedRoute(routeID); err != nil {
		return err
	}
	if _, err := h.app.Store.GetUser(userID); err != nil {
		return storeErr(err, "user", userID)
	}
	if userID == h.ID() {
		return invalidf("cannot share a route with yourself")
	}
	added, err := h.app.Store.AddShare(routeID, userID)
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("%w: route %d already shared with user %d", ErrConflict, routeID, userID)
	}
	h.logger.Info("Shared route", "route", routeID, "with", userID)
	return nil
}

// Unshare revokes a share.
func (h *Hiker) Unshare(routeID, userID uint64) error {
	if _, err := h.ownedRoute(routeID); err != nil {
		return err
	}
	if _, err := h.app.Store.GetUser(userID); err != nil {
		return storeErr(err, "user", userID)
	}
	removed, err := h.app.Store.RemoveShare(routeID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return invalidf("route %d is not shared with user %d", routeID, userID)
	}
	h.logger.Info("Unshared route", "route", routeID, "with", userID)
	return nil
}

type RateResult struct {
	MyRating *int    `json:"my_rating"`
	Rating   float64 `json:"rating"`
}

// Rate sets the hiker's 1-5 score of a visible route. A nil score removes it.
// The route's rating is then recomputed as the mean of all scores.
func (h *Hiker) Rate(routeID uint64, score *int) (*RateResult, error) {
	if _, err := h.visibleRoute(routeID); err != nil {
		return nil, err
	}
	if score == nil {
		err := h.app.Store.DeleteRating(routeID, h.ID())
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			return nil, err
		}
	} else {
		if *score < 1 || *score > 5 {
			return nil, invalidf("score must be between 1 and 5")
		}
		err := h.app.Store.PutRating(&route.Rating{RouteID: routeID, UserID: h.ID(), Score: *score})
		if err != nil {
			return nil, err
		}
	}
	rating, err := h.app.updateRouteRating(routeID)
	if err != nil {
		return nil, err
	}
	return &RateResult{MyRating: score, Rating: rating}, nil
}

// updateRouteRating stores the mean score of the route, rounded to one decimal.
// A route without scores is rated 0.
func (a *App) updateRouteRating(routeID uint64) (float64, error) {
	r, err := a.Store.RerateRoute(routeID, meanScore)
	if err != nil {
		return 0, storeErr(err, "route", routeID)
	}
	if r.Public {
		events.PublicRouteFeed.Send(events.RouteEvent{Action: events.RouteRated, Route: r.Summary()})
	}
	return r.Rating, nil
}

func meanScore(ratings []*route.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r.Score)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(ratings)))).Round(1).InexactFloat64()
}

// Comment adds a comment to a visible route and returns all of the hiker's comments on it.
func (h *Hiker) Comment(routeID uint64, text string) ([]*route.Comment, error) {
	if _, err := h.visibleRoute(routeID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidf("empty comment")
	}
	c := &route.Comment{
		RouteID:   routeID,
		UserID:    h.ID(),
		Text:      text,
		CreatedAt: h.app.now(),
	}
	if err := h.app.Store.AddComment(c); err != nil {
		return nil, err
	}
	return h.app.Store.Comments(func(c *route.Comment) bool {
		return c.RouteID == routeID && c.UserID == h.ID()
	})
}

// RouteComments returns everyone's comments on a visible route.
func (h *Hiker) RouteComments(routeID uint64) ([]*route.Comment, error) {
	if _, err := h.visibleRoute(routeID); err != nil {
		return nil, err
	}
	return h.app.Store.Comments(func(c *route.Comment) bool {
		return c.RouteID == routeID
	})
}
