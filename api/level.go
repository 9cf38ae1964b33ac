package api

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/itrek/trekd/types/route"
)

// Level is a hiker's experience score and the rank it earns.
type Level struct {
	Points      int    `json:"points"`
	Level       int    `json:"level"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Remaining   int    `json:"remaining"`
}

// starPoints rewards well-rated routes and penalizes badly rated ones.
// Only whole ratings count; a 3.5 is worth nothing.
func starPoints(rating float64) float64 {
	switch rating {
	case 1:
		return -1
	case 3, 4:
		return 1
	case 5:
		return 2
	}
	return 0
}

// Score is one point per day since joining, ten per kilometer and one per
// estimated minute of the hiker's routes, plus their star points, rounded.
func (h *Hiker) Score() (int, error) {
	routes, err := h.app.Store.ListRoutes(func(r *route.Route) bool {
		return r.OwnerID == h.ID()
	})
	if err != nil {
		return 0, err
	}
	days := math.Floor(h.app.now().Sub(h.User.JoinedAt).Hours() / 24)
	score := days
	for _, r := range routes {
		score += 10*r.DistanceKm + float64(r.EstimatedMinutes) + starPoints(r.Rating)
	}
	return int(math.Round(score)), nil
}

// Level looks up the hiker's score in the level table.
func (h *Hiker) Level() (*Level, error) {
	points, err := h.Score()
	if err != nil {
		return nil, err
	}
	table := h.app.Config.Levels
	n := table.Lookup(points)
	l := table[n-1]
	remaining := table.Remaining(n, points)
	desc := l.Description
	if strings.Contains(desc, "%s") {
		desc = fmt.Sprintf(desc, humanize.Comma(int64(remaining)))
	}
	return &Level{
		Points:      points,
		Level:       n,
		Name:        l.Name,
		Description: desc,
		Remaining:   remaining,
	}, nil
}
