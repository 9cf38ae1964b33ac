package webd

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/itrek/trekd/mail"
)

// cerroPoints is two tight clusters about 140m apart; the second carries a point of interest.
var cerroPoints = []map[string]any{
	{"latitude": -33.44000, "longitude": -70.65000, "order": 1},
	{"latitude": -33.44001, "longitude": -70.65001, "order": 2},
	{"latitude": -33.44002, "longitude": -70.65000, "order": 3},
	{"latitude": -33.44100, "longitude": -70.65100, "order": 4},
	{"latitude": -33.44101, "longitude": -70.65101, "order": 5, "interest": map[string]string{"description": "mirador"}},
}

func TestWebDaemon_ping(t *testing.T) {
	d := newTestWebDaemon(t)
	w := d.do(t, http.MethodGet, "/ping", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "pong" {
		t.Errorf("expected pong, got %q", w.Body.String())
	}
}

func TestWebDaemon_status(t *testing.T) {
	d := newTestWebDaemon(t)
	res := expectStatus(t, d.do(t, http.MethodGet, "/status", "", nil), http.StatusOK)
	if res.Get("ws_conns").Int() != 0 {
		t.Errorf("unexpected ws_conns: %s", res.Raw)
	}
	if res.Get("reduce.Strategy").String() != "none" {
		t.Errorf("unexpected reduce config: %s", res.Get("reduce").Raw)
	}
	if strings.Contains(res.Raw, "test-secret") {
		t.Error("status leaks the token secret")
	}
}

func TestWebDaemon_cors(t *testing.T) {
	d := newTestWebDaemon(t)
	w := d.do(t, http.MethodOptions, "/api/routes/", "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("unexpected allow-origin %q", got)
	}
}

func TestWebDaemon_unauthorized(t *testing.T) {
	d := newTestWebDaemon(t)
	res := expectStatus(t, d.do(t, http.MethodGet, "/api/routes/", "", nil), http.StatusUnauthorized)
	if res.Get("error").String() == "" {
		t.Errorf("expected an error message, got %s", res.Raw)
	}
	expectStatus(t, d.do(t, http.MethodGet, "/api/routes/", "nope", nil), http.StatusUnauthorized)
}

func TestWebDaemon_reduce(t *testing.T) {
	d := newTestWebDaemon(t)
	res := expectStatus(t, d.do(t, http.MethodPost, "/api/reduce?strategy=merge", "", cerroPoints), http.StatusOK)
	t.Log(res.Raw)
	if res.Get("strategy").String() != "merge" {
		t.Errorf("unexpected strategy %s", res.Get("strategy"))
	}
	if res.Get("points_in").Int() != 5 || res.Get("points_out").Int() != 2 {
		t.Fatalf("expected 5 -> 2 points, got %d -> %d", res.Get("points_in").Int(), res.Get("points_out").Int())
	}
	if res.Get("points.1.interest.description").String() != "mirador" {
		t.Errorf("point of interest lost: %s", res.Get("points").Raw)
	}

	// Wrapped form, default strategy.
	res = expectStatus(t, d.do(t, http.MethodPost, "/api/reduce", "", map[string]any{"points": cerroPoints}), http.StatusOK)
	if res.Get("points_out").Int() != 5 {
		t.Errorf("passthrough changed the point count: %s", res.Raw)
	}

	expectStatus(t, d.do(t, http.MethodPost, "/api/reduce?strategy=magic", "", cerroPoints), http.StatusBadRequest)
	expectStatus(t, d.do(t, http.MethodPost, "/api/reduce", "", `[{"latitude": 91, "longitude": 0, "order": 1}]`), http.StatusBadRequest)
	expectStatus(t, d.do(t, http.MethodPost, "/api/reduce", "", `{"points": 7}`), http.StatusBadRequest)
}

func TestWebDaemon_routes(t *testing.T) {
	d := newTestWebDaemon(t)
	_, ana := d.signup(t, "ana")
	beaID, bea := d.signup(t, "bea")

	res := expectStatus(t, d.do(t, http.MethodPost, "/api/routes/?reduce=merge", ana, map[string]any{
		"name":   "Cerro Santa Lucía",
		"public": false,
		"points": cerroPoints,
	}), http.StatusCreated)
	id := res.Get("id").Uint()
	if res.Get("points.#").Int() != 2 {
		t.Errorf("expected 2 reduced points, got %s", res.Get("points").Raw)
	}
	if res.Get("reducer").String() != "merge" {
		t.Errorf("unexpected reducer %s", res.Get("reducer"))
	}
	if res.Get("distance_km").Float() <= 0.1 {
		t.Errorf("expected a computed distance, got %s", res.Get("distance_km"))
	}
	if res.Get("owner.username").String() != "ana" {
		t.Errorf("unexpected owner %s", res.Get("owner").Raw)
	}
	routePath := fmt.Sprintf("/api/routes/%d", id)

	w := d.do(t, http.MethodGet, routePath, ana, nil)
	expectStatus(t, w, http.StatusOK)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag")
	}
	if again := d.do(t, http.MethodGet, routePath, ana, nil); again.Header().Get("ETag") != etag {
		t.Errorf("ETag changed without a change: %s != %s", again.Header().Get("ETag"), etag)
	}

	// Conditional get.
	cond := d.request(t, http.MethodGet, routePath, ana, map[string]string{"If-None-Match": etag})
	if cond.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", cond.Code)
	}

	w = d.do(t, http.MethodGet, routePath+"/geojson", ana, nil)
	geo := expectStatus(t, w, http.StatusOK)
	if geo.Get("type").String() != "FeatureCollection" || geo.Get("features.#").Int() != 2 {
		t.Errorf("unexpected geojson %s", geo.Raw)
	}
	// The export reads back in.
	back := expectStatus(t, d.do(t, http.MethodPost, "/api/reduce", "", geo.Raw), http.StatusOK)
	if back.Get("points_in").Int() != 2 || back.Get("points.1.order").Int() != 4 ||
		back.Get("points.1.interest.description").String() != "mirador" {
		t.Errorf("geojson round trip lost something: %s", back.Raw)
	}

	// Private, so bea can't see it or find it.
	expectStatus(t, d.do(t, http.MethodGet, routePath, bea, nil), http.StatusNotFound)
	if n := expectStatus(t, d.do(t, http.MethodGet, "/api/routes/", bea, nil), http.StatusOK).Get("#").Int(); n != 0 {
		t.Errorf("bea sees %d routes", n)
	}
	expectStatus(t, d.do(t, http.MethodPatch, routePath, bea, map[string]string{"name": "mine"}), http.StatusNotFound)

	sharePath := fmt.Sprintf("%s/share/%d", routePath, beaID)
	res = expectStatus(t, d.do(t, http.MethodPost, sharePath, ana, nil), http.StatusOK)
	if res.Get("shared_with.0").Uint() != beaID {
		t.Errorf("expected shared_with [%d], got %s", beaID, res.Get("shared_with").Raw)
	}
	expectStatus(t, d.do(t, http.MethodPost, sharePath, ana, nil), http.StatusConflict)

	// Now bea sees it, can't edit it, and can rate it.
	expectStatus(t, d.do(t, http.MethodGet, routePath, bea, nil), http.StatusOK)
	expectStatus(t, d.do(t, http.MethodPatch, routePath, bea, map[string]string{"name": "mine"}), http.StatusForbidden)
	expectStatus(t, d.do(t, http.MethodPost, routePath+"/rate", bea, map[string]any{}), http.StatusBadRequest)
	expectStatus(t, d.do(t, http.MethodPost, routePath+"/rate", bea, map[string]any{"score": 9}), http.StatusBadRequest)
	res = expectStatus(t, d.do(t, http.MethodPost, routePath+"/rate", bea, map[string]any{"score": 4}), http.StatusOK)
	if res.Get("my_rating").Int() != 4 || res.Get("rating").Float() != 4 {
		t.Errorf("unexpected rate result %s", res.Raw)
	}

	// The rating changes what ana sees.
	cond = d.request(t, http.MethodGet, routePath, ana, map[string]string{"If-None-Match": etag})
	if cond.Code != http.StatusOK {
		t.Errorf("expected 200 after a rating, got %d", cond.Code)
	}

	res = expectStatus(t, d.do(t, http.MethodPost, routePath+"/comment", bea, map[string]string{"text": "precioso"}), http.StatusCreated)
	if res.Get("#").Int() != 1 || res.Get("0.text").String() != "precioso" {
		t.Errorf("unexpected comments %s", res.Raw)
	}
	res = expectStatus(t, d.do(t, http.MethodGet, routePath+"/comments", ana, nil), http.StatusOK)
	if res.Get("#").Int() != 1 {
		t.Errorf("unexpected comments %s", res.Raw)
	}

	res = expectStatus(t, d.do(t, http.MethodPatch, routePath, ana, map[string]any{"name": "Santa Lucía", "difficulty": "hard"}), http.StatusOK)
	if res.Get("name").String() != "Santa Lucía" || res.Get("difficulty").String() != "hard" {
		t.Errorf("patch not applied: %s", res.Raw)
	}
	if res.Get("points.#").Int() != 2 {
		t.Errorf("patch without points changed points: %s", res.Get("points").Raw)
	}

	res = expectStatus(t, d.do(t, http.MethodGet, "/api/routes/?q=lucía", bea, nil), http.StatusOK)
	if res.Get("#").Int() != 1 || res.Get("0.points").Exists() {
		t.Errorf("expected one summary, got %s", res.Raw)
	}

	expectStatus(t, d.do(t, http.MethodDelete, sharePath, ana, nil), http.StatusOK)
	expectStatus(t, d.do(t, http.MethodGet, routePath, bea, nil), http.StatusNotFound)

	expectStatus(t, d.do(t, http.MethodDelete, routePath, bea, nil), http.StatusNotFound)
	if w := d.do(t, http.MethodDelete, routePath, ana, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	expectStatus(t, d.do(t, http.MethodGet, routePath, ana, nil), http.StatusNotFound)
}

func TestWebDaemon_users(t *testing.T) {
	d := newTestWebDaemon(t)
	anaID, ana := d.signup(t, "ana")
	beaID, bea := d.signup(t, "bea")

	expectStatus(t, d.do(t, http.MethodPost, "/api/users/create", "", map[string]string{
		"username": "ana", "email": "other@example.com", "password": "correct horse",
	}), http.StatusConflict)

	expectStatus(t, d.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ana", "password": "wrong horse",
	}), http.StatusUnauthorized)
	res := expectStatus(t, d.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ana@example.com", "password": "correct horse",
	}), http.StatusOK)
	if res.Get("token").String() != ana {
		t.Errorf("expected the existing token back, got %s", res.Get("token"))
	}

	res = expectStatus(t, d.do(t, http.MethodGet, "/api/auth/check-login", ana, nil), http.StatusOK)
	if res.Get("id").Uint() != anaID || res.Get("password_hash").Exists() {
		t.Errorf("unexpected check-login %s", res.Raw)
	}

	res = expectStatus(t, d.do(t, http.MethodPut, "/api/users/update-profile", bea, map[string]string{
		"last_name": "Beatriz", "bio": "cerros",
	}), http.StatusOK)
	if res.Get("last_name").String() != "Beatriz" {
		t.Errorf("profile not updated: %s", res.Raw)
	}

	res = expectStatus(t, d.do(t, http.MethodGet, "/api/users/search?q=bea", ana, nil), http.StatusOK)
	if res.Get("#").Int() != 1 || res.Get("0.id").Uint() != beaID || res.Get("0.email").Exists() {
		t.Errorf("unexpected search result %s", res.Raw)
	}
	expectStatus(t, d.do(t, http.MethodGet, "/api/users/search?q=a", ana, nil), http.StatusBadRequest)
	res = expectStatus(t, d.do(t, http.MethodGet, fmt.Sprintf("/api/users/search?id=%d", beaID), ana, nil), http.StatusOK)
	if res.Get("0.fullname").String() != "bea Beatriz" {
		t.Errorf("unexpected lookup %s", res.Raw)
	}
	expectStatus(t, d.do(t, http.MethodGet, "/api/users/search?id=999", ana, nil), http.StatusNotFound)

	routeRes := expectStatus(t, d.do(t, http.MethodPost, "/api/routes/", ana, map[string]any{
		"name": "Cerro", "points": cerroPoints,
	}), http.StatusCreated)
	routeID := routeRes.Get("id").Uint()
	expectStatus(t, d.do(t, http.MethodPost, fmt.Sprintf("/api/routes/%d/share/%d", routeID, beaID), ana, nil), http.StatusOK)
	expectStatus(t, d.do(t, http.MethodPost, fmt.Sprintf("/api/routes/%d/rate", routeID), bea, map[string]int{"score": 4}), http.StatusOK)

	res = expectStatus(t, d.do(t, http.MethodGet, "/api/users/level", ana, nil), http.StatusOK)
	t.Log(res.Raw)
	if res.Get("level").Int() != 2 || res.Get("points").Int() < 60 {
		t.Errorf("unexpected level %s", res.Raw)
	}

	res = expectStatus(t, d.do(t, http.MethodGet, "/api/users/activity", bea, nil), http.StatusOK)
	if res.Get("shared.#").Int() != 1 || res.Get("ratings.#").Int() != 1 {
		t.Fatalf("unexpected activity %s", res.Raw)
	}
	ratingID := res.Get("ratings.0.id").Uint()
	res = expectStatus(t, d.do(t, http.MethodDelete, fmt.Sprintf("/api/users/activity/ratings/%d", ratingID), bea, nil), http.StatusOK)
	if res.Get("ratings.#").Int() != 0 {
		t.Errorf("rating not removed: %s", res.Raw)
	}

	// Unsharing from the owner's side needs the other user.
	createdPath := fmt.Sprintf("/api/users/activity/created/%d", routeID)
	expectStatus(t, d.do(t, http.MethodDelete, createdPath, ana, nil), http.StatusBadRequest)
	expectStatus(t, d.do(t, http.MethodDelete, fmt.Sprintf("%s?user_id=%d", createdPath, beaID), ana, nil), http.StatusOK)
	res = expectStatus(t, d.do(t, http.MethodGet, "/api/users/activity", bea, nil), http.StatusOK)
	if res.Get("shared.#").Int() != 0 {
		t.Errorf("share not removed: %s", res.Raw)
	}

	expectStatus(t, d.do(t, http.MethodPut, "/api/users/change-password", bea, map[string]string{
		"current_password": "wrong horse", "new_password": "battery staple",
	}), http.StatusBadRequest)
	if w := d.do(t, http.MethodPut, "/api/users/change-password", bea, map[string]string{
		"current_password": "correct horse", "new_password": "battery staple",
	}); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	if w := d.do(t, http.MethodPost, "/api/auth/logout", bea, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	expectStatus(t, d.do(t, http.MethodGet, "/api/auth/check-login", bea, nil), http.StatusUnauthorized)
	res = expectStatus(t, d.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "bea", "password": "battery staple",
	}), http.StatusOK)
	bea = res.Get("token").String()

	if w := d.do(t, http.MethodDelete, "/api/users/delete-account", bea, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	expectStatus(t, d.do(t, http.MethodGet, "/api/auth/check-login", bea, nil), http.StatusUnauthorized)
}

func TestWebDaemon_passwordReset(t *testing.T) {
	d := newTestWebDaemon(t)
	d.signup(t, "ana")

	expectStatus(t, d.do(t, http.MethodPost, "/api/users/password-reset", "", map[string]string{"email": "nobody@example.com"}), http.StatusAccepted)
	expectStatus(t, d.do(t, http.MethodPost, "/api/users/password-reset", "", map[string]string{"email": "ana@example.com"}), http.StatusAccepted)

	msg := d.waitMail(t, mail.KindPasswordReset, "ana@example.com")
	m := resetLinkRe.FindStringSubmatch(msg.HTML)
	if m == nil {
		t.Fatalf("no reset link in mail:\n%s", msg.HTML)
	}
	path := "/api/users/reset-password/" + m[1]
	if w := d.do(t, http.MethodPost, path, "", map[string]string{"password": "battery staple"}); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	expectStatus(t, d.do(t, http.MethodPost, path, "", map[string]string{"password": "another horse"}), http.StatusBadRequest)
	expectStatus(t, d.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ana", "password": "battery staple",
	}), http.StatusOK)
}

func TestWebDaemon_metrics(t *testing.T) {
	d := newTestWebDaemon(t)
	d.do(t, http.MethodGet, "/ping", "", nil)
	w := d.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `trekd_http_requests_total{`) {
		t.Error("no http request counter in metrics")
	}
}
