package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/itrek/trekd/common"
	"github.com/itrek/trekd/events"
	"github.com/itrek/trekd/geo/reduce"
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/state"
	"github.com/itrek/trekd/types/geopoint"
	"github.com/itrek/trekd/types/route"
	"github.com/itrek/trekd/types/user"
)

// RouteRequest creates or patches a route. Nil fields are left alone on update
// and get defaults on create. Non-nil Points replace all points.
type RouteRequest struct {
	Name             *string         `json:"name,omitempty" validate:"omitempty,max=255"`
	Description      *string         `json:"description,omitempty" validate:"omitempty,max=5000"`
	Difficulty       *string         `json:"difficulty,omitempty"`
	DistanceKm       *float64        `json:"distance_km,omitempty" validate:"omitempty,gte=0"`
	EstimatedMinutes *int            `json:"estimated_minutes,omitempty" validate:"omitempty,gte=0"`
	Public           *bool           `json:"public,omitempty"`
	Points           geopoint.Points `json:"points,omitempty"`
}

// RouteView is a route as shown to a particular hiker.
type RouteView struct {
	*route.Route
	Owner      user.Public `json:"owner"`
	MyRating   *int        `json:"my_rating,omitempty"`
	SharedWith []uint64    `json:"shared_with,omitempty"`
}

func (h *Hiker) view(r *route.Route) (*RouteView, error) {
	v := &RouteView{Route: r}
	if r.OwnerID == h.ID() {
		v.Owner = h.User.Public()
		shares, err := h.app.Store.SharesForRoute(r.ID)
		if err != nil {
			return nil, err
		}
		if len(shares) > 0 {
			v.SharedWith = shares
		}
	} else if owner, err := h.app.Store.GetUser(r.OwnerID); err == nil {
		v.Owner = owner.Public()
	} else if !errors.Is(err, state.ErrNotFound) {
		return nil, err
	}
	if rating, err := h.app.Store.GetRating(r.ID, h.ID()); err == nil {
		v.MyRating = &rating.Score
	}
	return v, nil
}

// canSee is the visibility rule: own, shared with me, or public.
func (h *Hiker) canSee(r *route.Route) (bool, error) {
	if r.OwnerID == h.ID() || r.Public {
		return true, nil
	}
	return h.app.Store.IsShared(r.ID, h.ID())
}

// visibleRoute returns the route if the hiker may see it.
// Invisible routes are reported as not found.
func (h *Hiker) visibleRoute(id uint64) (*route.Route, error) {
	r, err := h.app.Store.GetRoute(id)
	if err != nil {
		return nil, storeErr(err, "route", id)
	}
	ok, err := h.canSee(r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("route %d: %w", id, ErrNotFound)
	}
	return r, nil
}

func (h *Hiker) ownedRoute(id uint64) (*route.Route, error) {
	r, err := h.visibleRoute(id)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != h.ID() {
		return nil, fmt.Errorf("%w: route %d belongs to someone else", ErrForbidden, id)
	}
	return r, nil
}

// preparePoints validates, reduces and stores the images of a new point set.
// Uploaded holds the references of the images it stored, for cleanup if the route is not saved.
func (h *Hiker) preparePoints(ctx context.Context, strategy string, points geopoint.Points) (reduced geopoint.Points, name string, km float64, uploaded []string, err error) {
	reduced, name, err = h.app.Reduce(strategy, points)
	if err != nil {
		return nil, "", 0, nil, err
	}
	for i := range reduced {
		poi := reduced[i].Interest
		if poi == nil || poi.Image == "" {
			continue
		}
		ref, err := h.app.storeImage(ctx, fmt.Sprintf("points/%d", h.ID()), poi.Image)
		if err != nil {
			h.app.dropImages(uploaded)
			return nil, "", 0, nil, err
		}
		if ref != poi.Image {
			uploaded = append(uploaded, ref)
		}
		poi.Image = ref
	}
	// Distance is measured on the raw trace; reduction only loses detail.
	sorted := points.Clone()
	sorted.SortByOrder()
	km = common.DecimalToFixed(reduce.Length(sorted)/1000, 3)
	return reduced, name, km, uploaded, nil
}

func (a *App) defaultRouteName() (string, error) {
	all, err := a.Store.ListRoutes(nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Unnamed route %d", len(all)+1), nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// CreateRoute validates, reduces and stores a new route owned by the hiker.
// Strategy names the reducer; empty means the configured default.
func (h *Hiker) CreateRoute(ctx context.Context, req *RouteRequest, strategy string) (*RouteView, error) {
	if err := common.Validator().Struct(req); err != nil {
		return nil, invalidf("%v", err)
	}
	difficulty := route.DifficultyEasy
	if !blank(req.Difficulty) {
		d, err := route.ParseDifficulty(*req.Difficulty)
		if err != nil {
			return nil, invalidf("%v", err)
		}
		difficulty = d
	}
	points, reducer, km, uploaded, err := h.preparePoints(ctx, strategy, req.Points)
	if err != nil {
		return nil, err
	}

	now := h.app.now()
	r := &route.Route{
		OwnerID:          h.ID(),
		Description:      params.DefaultRouteDescription,
		Difficulty:       difficulty,
		DistanceKm:       params.DefaultRouteDistanceKm,
		EstimatedMinutes: params.DefaultRouteEstimatedMinutes,
		Public:           true,
		Reducer:          reducer,
		Points:           points,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if blank(req.Name) {
		if r.Name, err = h.app.defaultRouteName(); err != nil {
			h.app.dropImages(uploaded)
			return nil, err
		}
	} else {
		r.Name = strings.TrimSpace(*req.Name)
	}
	if !blank(req.Description) {
		r.Description = strings.TrimSpace(*req.Description)
	}
	if req.DistanceKm != nil {
		r.DistanceKm = *req.DistanceKm
	} else if km > 0 {
		r.DistanceKm = km
	}
	if req.EstimatedMinutes != nil {
		r.EstimatedMinutes = *req.EstimatedMinutes
	}
	if req.Public != nil {
		r.Public = *req.Public
	}

	if err := h.app.Store.PutRoute(r); err != nil {
		h.app.dropImages(uploaded)
		return nil, err
	}
	h.logger.Info("Created route", "route", r.ID, "name", r.Name,
		"points_in", len(req.Points), "points", len(r.Points), "reducer", reducer)
	if r.Public {
		events.PublicRouteFeed.Send(events.RouteEvent{Action: events.RoutePublished, Route: r.Summary()})
	}
	return h.view(r)
}

// UpdateRoute patches a route the hiker owns.
// The patch is applied to the stored route in one write, so concurrent ratings survive it.
func (h *Hiker) UpdateRoute(ctx context.Context, id uint64, req *RouteRequest, strategy string) (*RouteView, error) {
	if err := common.Validator().Struct(req); err != nil {
		return nil, invalidf("%v", err)
	}
	if _, err := h.ownedRoute(id); err != nil {
		return nil, err
	}
	var difficulty route.Difficulty
	if !blank(req.Difficulty) {
		d, err := route.ParseDifficulty(*req.Difficulty)
		if err != nil {
			return nil, invalidf("%v", err)
		}
		difficulty = d
	}
	var (
		points   geopoint.Points
		reducer  string
		km       float64
		uploaded []string
	)
	if req.Points != nil {
		var err error
		if points, reducer, km, uploaded, err = h.preparePoints(ctx, strategy, req.Points); err != nil {
			return nil, err
		}
	}

	var wasPublic bool
	r, err := h.app.Store.UpdateRoute(id, func(r *route.Route) error {
		wasPublic = r.Public
		if !blank(req.Name) {
			r.Name = strings.TrimSpace(*req.Name)
		}
		if !blank(req.Description) {
			r.Description = strings.TrimSpace(*req.Description)
		}
		if difficulty != "" {
			r.Difficulty = difficulty
		}
		if req.EstimatedMinutes != nil {
			r.EstimatedMinutes = *req.EstimatedMinutes
		}
		if req.Public != nil {
			r.Public = *req.Public
		}
		if req.Points != nil {
			r.Points = points
			r.Reducer = reducer
			if km > 0 {
				r.DistanceKm = km
			}
		}
		if req.DistanceKm != nil {
			r.DistanceKm = *req.DistanceKm
		}
		r.UpdatedAt = h.app.now()
		return nil
	})
	if err != nil {
		h.app.dropImages(uploaded)
		return nil, storeErr(err, "route", id)
	}
	h.logger.Info("Updated route", "route", r.ID)
	switch {
	case r.Public && !wasPublic:
		events.PublicRouteFeed.Send(events.RouteEvent{Action: events.RoutePublished, Route: r.Summary()})
	case r.Public:
		events.PublicRouteFeed.Send(events.RouteEvent{Action: events.RouteUpdated, Route: r.Summary()})
	case wasPublic:
		events.PublicRouteFeed.Send(events.RouteEvent{Action: events.RouteRemoved, Route: r.Summary()})
	}
	return h.view(r)
}

// DeleteRoute deletes a route the hiker owns, with its shares, ratings and comments.
func (h *Hiker) DeleteRoute(id uint64) error {
	r, err := h.ownedRoute(id)
	if err != nil {
		return err
	}
	if err := h.app.Store.DeleteRoute(id); err != nil {
		return storeErr(err, "route", id)
	}
	h.logger.Info("Deleted route", "route", id)
	if r.Public {
		events.PublicRouteFeed.Send(events.RouteEvent{Action: events.RouteRemoved, Route: r.Summary()})
	}
	return nil
}

// GetRoute returns a visible route with its points.
func (h *Hiker) GetRoute(id uint64) (*RouteView, error) {
	r, err := h.visibleRoute(id)
	if err != nil {
		return nil, err
	}
	return h.view(r)
}

// ListRoutes lists the routes visible to the hiker, newest first, without points.
// A non-empty query keeps routes whose name contains it, ignoring case.
func (h *Hiker) ListRoutes(query string) ([]*RouteView, error) {
	shared, err := h.app.Store.SharedWith(h.ID())
	if err != nil {
		return nil, err
	}
	sharedSet := make(map[uint64]bool, len(shared))
	for _, id := range shared {
		sharedSet[id] = true
	}
	query = strings.ToLower(strings.TrimSpace(query))
	routes, err := h.app.Store.ListRoutes(func(r *route.Route) bool {
		if r.OwnerID != h.ID() && !r.Public && !sharedSet[r.ID] {
			return false
		}
		return query == "" || strings.Contains(strings.ToLower(r.Name), query)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].ID > routes[j].ID
	})
	out := make([]*RouteView, 0, len(routes))
	for _, r := range routes {
		v, err := h.view(r.Summary())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
