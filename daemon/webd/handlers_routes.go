package webd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/itrek/trekd/api"
	"github.com/mitchellh/hashstructure/v2"
)

func handleListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := hikerFrom(r).ListRoutes(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

// handleCreateRoute stores a new route. The reducer is picked with ?reduce=,
// falling back to the configured default.
func handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	req := &api.RouteRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := hikerFrom(r).CreateRoute(r.Context(), req, r.URL.Query().Get("reduce"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// routeETag hashes the view as the hiker sees it, so my_rating and shares count too.
func routeETag(view *api.RouteView) (string, error) {
	h, err := hashstructure.Hash(view, hashstructure.FormatV2, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`"%x"`, h), nil
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func handleGetRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := hikerFrom(r).GetRoute(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	etag, err := routeETag(view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag)
	if inm := r.Header.Get("If-None-Match"); inm != "" && etagMatches(inm, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func handleUpdateRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := &api.RouteRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := hikerFrom(r).UpdateRoute(r.Context(), id, req, r.URL.Query().Get("reduce"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := hikerFrom(r).DeleteRoute(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := hikerFrom(r).GetRoute(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(view.Route.FeatureCollection()); err != nil {
		slog.Error("Failed to encode geojson", "route", id, "error", err)
	}
}

// handleShare shares (POST) or unshares (DELETE) a route with another user.
func handleShare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	other, err := pathID(r, "user")
	if err != nil {
		writeError(w, r, err)
		return
	}
	hiker := hikerFrom(r)
	if r.Method == http.MethodDelete {
		err = hiker.Unshare(id, other)
	} else {
		err = hiker.Share(id, other)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := hiker.GetRoute(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleRate expects {"score": n}; a null score removes the hiker's rating.
func handleRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	body := map[string]json.RawMessage{}
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	raw, ok := body["score"]
	if !ok {
		writeError(w, r, fmt.Errorf("%w: score is required", api.ErrInvalid))
		return
	}
	var score *int
	if err := json.Unmarshal(raw, &score); err != nil {
		writeError(w, r, errors.Join(api.ErrInvalid, err))
		return
	}
	res, err := hikerFrom(r).Rate(id, score)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type commentRequest struct {
	Text string `json:"text"`
}

// handleComment adds a comment and returns the hiker's comments on the route.
func handleComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := &commentRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	comments, err := hikerFrom(r).Comment(id, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comments)
}

func handleRouteComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	comments, err := hikerFrom(r).RouteComments(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}
