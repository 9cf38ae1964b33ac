package webd

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/itrek/trekd/api"
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/geopoint"
)

// maxBodyBytes bounds request bodies. Inline base64 images make them large.
const maxBodyBytes = 32 << 20

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time            `json:"started_at"`
	Uptime    string               `json:"uptime"`
	Reduce    *params.ReduceConfig `json:"reduce"`
	WSConns   int                  `json:"ws_conns"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Reduce:    s.Config.Reduce,
		WSConns:   s.melodyInstance.Len(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps api sentinel errors to HTTP statuses.
// Anything unrecognized is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, api.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, api.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, api.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, api.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, api.ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "url", r.URL, "error", err)
		writeJSON(w, status, &errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, status, &errorResponse{Error: err.Error()})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Join(api.ErrInvalid, err)
	}
	return nil
}

// pathID parses the named mux variable as an id.
func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, errors.Join(api.ErrInvalid, err)
	}
	return id, nil
}

type reduceResponse struct {
	Strategy  string          `json:"strategy"`
	PointsIn  int             `json:"points_in"`
	PointsOut int             `json:"points_out"`
	Points    geopoint.Points `json:"points"`
}

// handleReduce reduces a posted trace without storing anything.
// The body is anything geopoint.DecodePoints reads: a point array, a {"points": [...]} object, or GeoJSON.
func (s *WebDaemon) handleReduce(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, errors.Join(api.ErrInvalid, err))
		return
	}
	points, err := geopoint.DecodePoints(raw)
	if err != nil {
		writeError(w, r, errors.Join(api.ErrInvalid, err))
		return
	}
	out, name, err := s.app.Reduce(r.URL.Query().Get("strategy"), points)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = geopoint.Points{}
	}
	writeJSON(w, http.StatusOK, &reduceResponse{
		Strategy:  name,
		PointsIn:  len(points),
		PointsOut: len(out),
		Points:    out,
	})
}
