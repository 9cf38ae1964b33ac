package route

import (
	"fmt"
	"strings"
	"time"

	"github.com/itrek/trekd/types/geopoint"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
)

// ParseDifficulty accepts the canonical names and the Spanish ones older clients send.
// Blank input is not an error; it yields the empty difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "easy", "facil", "fácil":
		return DifficultyEasy, nil
	case "moderate", "moderada":
		return DifficultyModerate, nil
	case "hard", "dificil", "difícil":
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Route is a named, ordered sequence of points belonging to a user.
type Route struct {
	ID               uint64          `json:"id"`
	OwnerID          uint64          `json:"owner_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Difficulty       Difficulty      `json:"difficulty"`
	DistanceKm       float64         `json:"distance_km"`
	EstimatedMinutes int             `json:"estimated_minutes"`
	Public           bool            `json:"public"`
	Rating           float64         `json:"rating"`
	Reducer          string          `json:"reducer,omitempty"`
	Points           geopoint.Points `json:"points,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Summary is the route without its points, as listed.
func (r *Route) Summary() *Route {
	cp := *r
	cp.Points = nil
	return &cp
}

// FeatureCollection returns the route as a GeoJSON LineString feature,
// followed by one Point feature per point of interest.
// The line's "orders" property keeps the point orders, so geopoint.DecodePoints can read it back.
func (r *Route) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	line := geojson.NewFeature(r.Points.LineString())
	line.ID = r.ID
	line.Properties["name"] = r.Name
	line.Properties["description"] = r.Description
	line.Properties["difficulty"] = string(r.Difficulty)
	line.Properties["distance_km"] = r.DistanceKm
	line.Properties["estimated_minutes"] = r.EstimatedMinutes
	line.Properties["rating"] = r.Rating
	orders := make([]int, len(r.Points))
	for i, p := range r.Points {
		orders[i] = p.Order
	}
	line.Properties["orders"] = orders
	fc.Append(line)
	for _, p := range r.Points.Interests() {
		f := geojson.NewFeature(orb.Point(p.Point()))
		f.Properties["order"] = p.Order
		f.Properties["description"] = p.Interest.Description
		if p.Interest.Image != "" {
			f.Properties["image"] = p.Interest.Image
		}
		fc.Append(f)
	}
	return fc
}

// Comment is a note a user leaves on a route.
type Comment struct {
	ID        uint64    `json:"id"`
	RouteID   uint64    `json:"route_id"`
	UserID    uint64    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Rating is one user's 1-5 star score of a route. There is at most one per user and route.
type Rating struct {
	ID      uint64 `json:"id"`
	RouteID uint64 `json:"route_id"`
	UserID  uint64 `json:"user_id"`
	Score   int    `json:"score"`
}

// Share grants a user read access to somebody else's private route.
type Share struct {
	RouteID uint64 `json:"route_id"`
	UserID  uint64 `json:"user_id"`
}
