package mail

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itrek/trekd/common"
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/user"
)

func TestCompose(t *testing.T) {
	u := &user.User{ID: 42, Username: "rico", Email: "rico@example.com", FirstName: "Rico"}
	msg, err := Compose(KindConfirmEmail, u, "http://localhost:8000/", map[string]any{
		"ConfirmURL": "/api/users/confirm-email/abc",
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Headers["Message-ID"] != "<42-confirm_email@itrek>" {
		t.Errorf("unexpected message id %q", msg.Headers["Message-ID"])
	}
	if !strings.Contains(msg.HTML, "http://localhost:8000/api/users/confirm-email/abc") {
		t.Errorf("confirm link missing from body:\n%s", msg.HTML)
	}
	t.Log(msg.HTML)

	welcome, err := Compose(KindWelcome, u, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(welcome.HTML, "Rico") {
		t.Errorf("expected first name in welcome mail:\n%s", welcome.HTML)
	}

	if _, err := Compose(Kind("nope"), u, "", nil); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := Compose(KindWelcome, &user.User{ID: 1}, "", nil); err == nil {
		t.Error("expected error for user without email")
	}
}

func TestSMTPSender_build(t *testing.T) {
	s := &SMTPSender{Config: &params.MailConfig{From: "iTrek <no-reply@itrek.app>"}}
	msg := &Message{To: "a@b.c", Subject: "hi", HTML: "<p>x</p>", Headers: map[string]string{"Message-ID": "<1-welcome@itrek>"}}
	raw := string(s.build(msg))
	for _, want := range []string{"To: a@b.c\r\n", "Message-ID: <1-welcome@itrek>\r\n", "\r\n\r\n<p>x</p>"} {
		if !strings.Contains(raw, want) {
			t.Errorf("missing %q in\n%s", want, raw)
		}
	}
	if got := envelopeFrom(s.Config.From); got != "no-reply@itrek.app" {
		t.Errorf("unexpected envelope from %q", got)
	}
}

type slowSender struct {
	mu       sync.Mutex
	inFlight int32
	maxSeen  int32
	sent     []string
}

func (s *slowSender) Send(ctx context.Context, msg *Message) error {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	s.mu.Lock()
	if n > s.maxSeen {
		s.maxSeen = n
	}
	s.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	s.mu.Lock()
	s.sent = append(s.sent, msg.To)
	s.mu.Unlock()
	return nil
}

func TestDispatcher_Bounded(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn)()

	sender := &slowSender{}
	d := NewDispatcher(sender, 2)
	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := d.Enqueue(&Message{To: "x@example.com"}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 15*time.Millisecond {
		t.Errorf("Enqueue should not wait on sending, took %v", elapsed)
	}
	d.Close()
	if len(sender.sent) != 10 {
		t.Errorf("expected 10 sent, got %d", len(sender.sent))
	}
	if sender.maxSeen > 2 {
		t.Errorf("expected at most 2 concurrent sends, saw %d", sender.maxSeen)
	}
	t.Logf("max concurrent sends: %d", sender.maxSeen)

	if err := d.Enqueue(&Message{To: "late@example.com"}); err == nil {
		t.Error("expected error enqueueing on a closed dispatcher")
	}
}

func TestNewSender_NoHost(t *testing.T) {
	s := NewSender(params.DefaultMailConfig())
	ls, ok := s.(*LogSender)
	if !ok {
		t.Fatalf("expected LogSender, got %T", s)
	}
	if err := ls.Send(context.Background(), &Message{To: "a@b.c", Headers: map[string]string{}}); err != nil {
		t.Fatal(err)
	}
	if len(ls.Sent()) != 1 {
		t.Error("expected message to be kept")
	}
}
