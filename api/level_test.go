package api

import (
	"strings"
	"testing"
	"time"

	"github.com/itrek/trekd/types/route"
)

func TestStarPoints(t *testing.T) {
	for rating, want := range map[float64]float64{0: 0, 1: -1, 2: 0, 3: 1, 3.5: 0, 4: 1, 5: 2} {
		if got := starPoints(rating); got != want {
			t.Errorf("rating %v: expected %v, got %v", rating, want, got)
		}
	}
}

func TestLevel(t *testing.T) {
	app, sender := newTestApp(t)
	h := newTestHiker(t, app, sender, "rico")

	l, err := h.Level()
	if err != nil {
		t.Fatal(err)
	}
	if l.Points != 0 || l.Level != 1 || l.Remaining != 1 {
		t.Errorf("new hiker: unexpected %+v", l)
	}

	// Joined ten days ago, one route of 12.5 km and 90 minutes, rated 5.
	h.User.JoinedAt = time.Now().Add(-10*24*time.Hour - time.Hour)
	r := &route.Route{OwnerID: h.ID(), DistanceKm: 12.5, EstimatedMinutes: 90, Rating: 5}
	if err := app.Store.PutRoute(r); err != nil {
		t.Fatal(err)
	}
	l, err = h.Level()
	if err != nil {
		t.Fatal(err)
	}
	// 10 + 125 + 90 + 2
	if l.Points != 227 {
		t.Errorf("expected 227 points, got %d", l.Points)
	}
	if l.Level != 2 || l.Remaining != 273 {
		t.Errorf("unexpected level %+v", l)
	}
	if !strings.Contains(l.Description, "273") {
		t.Errorf("description should mention remaining points: %q", l.Description)
	}

	r.DistanceKm = 200
	app.Store.PutRoute(r)
	l, _ = h.Level()
	if l.Level != 5 || l.Remaining != 0 || strings.Contains(l.Description, "%") {
		t.Errorf("unexpected top level %+v", l)
	}
	t.Logf("%s: %s", l.Name, l.Description)
}
