package webd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

func TestWebDaemon_feed(t *testing.T) {
	d := newTestWebDaemon(t)
	_, ana := d.signup(t, "ana")

	server := httptest.NewServer(d.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/feed", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Wait for the connection to register before publishing.
	deadline := time.Now().Add(5 * time.Second)
	for d.melodyInstance.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	res := expectStatus(t, d.do(t, http.MethodPost, "/api/routes/", ana, map[string]any{
		"name":   "Cerro público",
		"points": cerroPoints,
	}), http.StatusCreated)
	id := res.Get("id").Uint()

	expectEvent := func(action string) gjson.Result {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		ev := gjson.ParseBytes(msg)
		t.Log(ev.Raw)
		if ev.Get("action").String() != action || ev.Get("route.id").Uint() != id {
			t.Fatalf("expected %s of route %d, got %s", action, id, ev.Raw)
		}
		return ev
	}
	ev := expectEvent("published")
	if ev.Get("route.points").Exists() {
		t.Error("feed events should not carry points")
	}

	expectStatus(t, d.do(t, http.MethodPatch, "/api/routes/"+res.Get("id").String(), ana, map[string]any{"public": false}), http.StatusOK)
	expectEvent("removed")
}
