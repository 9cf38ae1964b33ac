package api

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/itrek/trekd/common"
	"github.com/itrek/trekd/mail"
	"github.com/itrek/trekd/params"
)

// testSender hands sent mail to the test.
type testSender struct {
	sent chan *mail.Message
}

func (s *testSender) Send(ctx context.Context, msg *mail.Message) error {
	s.sent <- msg
	return nil
}

func (s *testSender) next(t *testing.T, kind mail.Kind) *mail.Message {
	t.Helper()
	for {
		select {
		case msg := <-s.sent:
			if msg.Kind == kind {
				return msg
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s mail", kind)
		}
	}
}

func newTestApp(t *testing.T) (*App, *testSender) {
	t.Helper()
	reset := common.SlogResetLevel(slog.LevelWarn)
	config := params.DefaultTestWebDaemonConfig()
	config.DataDir = t.TempDir()
	config.Image.Dir = filepath.Join(config.DataDir, params.ImagesSubdir)
	sender := &testSender{sent: make(chan *mail.Message, 64)}
	app, err := NewApp(config, sender)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		app.Close()
		reset()
	})
	return app, sender
}

var confirmLinkRe = regexp.MustCompile(`/api/users/confirm-email/([A-Za-z0-9_.-]+)`)

// newTestHiker registers and confirms a user, returning it logged in.
func newTestHiker(t *testing.T, app *App, sender *testSender, username string) *Hiker {
	t.Helper()
	_, err := app.Register(&RegisterRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "correct horse",
		FirstName: username,
	})
	if err != nil {
		t.Fatal(err)
	}
	msg := sender.next(t, mail.KindConfirmEmail)
	m := confirmLinkRe.FindStringSubmatch(msg.HTML)
	if m == nil {
		t.Fatalf("no confirmation link in mail:\n%s", msg.HTML)
	}
	sess, err := app.ConfirmEmail(m[1])
	if err != nil {
		t.Fatal(err)
	}
	h, err := app.Authenticate(sess.Token)
	if err != nil {
		t.Fatal(err)
	}
	return h
}
