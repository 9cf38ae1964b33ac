package webd

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/itrek/trekd/api"
	"github.com/itrek/trekd/common"
	"github.com/itrek/trekd/mail"
	"github.com/itrek/trekd/params"
	"github.com/tidwall/gjson"
)

type testDaemon struct {
	*WebDaemon
	router *mux.Router
	sender *mail.LogSender
}

func newTestWebDaemon(t *testing.T) *testDaemon {
	t.Helper()
	reset := common.SlogResetLevel(slog.LevelWarn)
	accessLog = io.Discard

	config := params.DefaultTestWebDaemonConfig()
	config.DataDir = t.TempDir()
	config.Image.Dir = filepath.Join(config.DataDir, params.ImagesSubdir)
	sender := &mail.LogSender{}
	app, err := api.NewApp(config, sender)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewWebDaemon(config, app)
	if err != nil {
		t.Fatal(err)
	}
	d := &testDaemon{WebDaemon: s, router: s.NewRouter(), sender: sender}
	t.Cleanup(func() {
		s.Close()
		app.Close()
		reset()
	})
	return d
}

// do serves one request. Body may be nil, a string, or anything json-encodable.
func (d *testDaemon) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	return w
}

// request serves a bodyless request with extra headers.
func (d *testDaemon) request(t *testing.T, method, path, token string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) gjson.Result {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	return gjson.ParseBytes(w.Body.Bytes())
}

var (
	confirmLinkRe = regexp.MustCompile(`/api/users/confirm-email/([A-Za-z0-9_.-]+)`)
	resetLinkRe   = regexp.MustCompile(`/api/users/reset-password/([A-Za-z0-9_.-]+)`)
)

// waitMail polls the log sender for the newest mail of kind to addr.
func (d *testDaemon) waitMail(t *testing.T, kind mail.Kind, addr string) *mail.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sent := d.sender.Sent()
		for i := len(sent) - 1; i >= 0; i-- {
			if sent[i].Kind == kind && sent[i].To == addr {
				return sent[i]
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s mail to %s", kind, addr)
	return nil
}

// signup registers and confirms a user over HTTP, returning its id and auth token.
func (d *testDaemon) signup(t *testing.T, username string) (uint64, string) {
	t.Helper()
	email := username + "@example.com"
	w := d.do(t, http.MethodPost, "/api/users/create", "", map[string]string{
		"username":   username,
		"email":      email,
		"password":   "correct horse",
		"first_name": username,
	})
	expectStatus(t, w, http.StatusCreated)

	msg := d.waitMail(t, mail.KindConfirmEmail, email)
	m := confirmLinkRe.FindStringSubmatch(msg.HTML)
	if m == nil {
		t.Fatalf("no confirmation link in mail:\n%s", msg.HTML)
	}
	res := expectStatus(t, d.do(t, http.MethodGet, "/api/users/confirm-email/"+m[1], "", nil), http.StatusOK)
	token := res.Get("token").String()
	if token == "" {
		t.Fatalf("no token in %s", res.Raw)
	}
	return res.Get("id").Uint(), token
}
