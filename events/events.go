package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/itrek/trekd/types/route"
)

type RouteAction string

const (
	RoutePublished RouteAction = "published"
	RouteUpdated   RouteAction = "updated"
	RouteRemoved   RouteAction = "removed"
	RouteRated     RouteAction = "rated"
)

// RouteEvent is sent for changes to public routes.
// Route is a summary, without points.
type RouteEvent struct {
	Action RouteAction  `json:"action"`
	Route  *route.Route `json:"route"`
}

// PublicRouteFeed carries RouteEvents to whoever listens, e.g. websocket clients.
// A route going private is reported as removed.
var PublicRouteFeed = event.FeedOf[RouteEvent]{}
