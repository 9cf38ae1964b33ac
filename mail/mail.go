package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/user"
)

type Kind string

const (
	KindConfirmEmail  Kind = "confirm_email"
	KindWelcome       Kind = "welcome"
	KindPasswordReset Kind = "password_reset"
)

var subjects = map[Kind]string{
	KindConfirmEmail:  "Confirm your email address for iTrek",
	KindWelcome:       "Welcome to iTrek",
	KindPasswordReset: "Password reset",
}

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type Message struct {
	Kind    Kind
	To      string
	Subject string
	HTML    string
	Headers map[string]string
}

// MessageID identifies a message kind per user, so that clients thread
// repeated confirmations together.
func MessageID(userID uint64, kind Kind) string {
	return fmt.Sprintf("<%d-%s@itrek>", userID, kind)
}

// Compose renders the template for kind, addressed to u.
// BaseURL and anything in data are available to the template, along with the user as .User.
func Compose(kind Kind, u *user.User, baseURL string, data map[string]any) (*Message, error) {
	subject, ok := subjects[kind]
	if !ok {
		return nil, fmt.Errorf("unknown mail kind %q", kind)
	}
	if u.Email == "" {
		return nil, fmt.Errorf("user %d has no email", u.ID)
	}
	c := map[string]any{
		"User":    u,
		"BaseURL": strings.TrimRight(baseURL, "/"),
	}
	for k, v := range data {
		c[k] = v
	}
	buf := &bytes.Buffer{}
	if err := templates.ExecuteTemplate(buf, string(kind)+".html", c); err != nil {
		return nil, err
	}
	id := MessageID(u.ID, kind)
	return &Message{
		Kind:    kind,
		To:      u.Email,
		Subject: subject,
		HTML:    buf.String(),
		Headers: map[string]string{
			"Message-ID": id,
			"References": id,
		},
	}, nil
}

type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// NewSender returns an SMTP sender, or a LogSender when no host is configured.
func NewSender(config *params.MailConfig) Sender {
	if config.Host == "" {
		return &LogSender{logger: slog.With("d", "mail")}
	}
	return &SMTPSender{Config: config, Timeout: 30 * time.Second}
}

// LogSender logs messages instead of sending them. It keeps the last messages for inspection.
type LogSender struct {
	logger *slog.Logger
	mu     sync.Mutex
	sent   []*Message
}

func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Mail (not sent, no SMTP host)", "to", msg.To, "subject", msg.Subject,
		"message_id", msg.Headers["Message-ID"])
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	if len(s.sent) > 100 {
		s.sent = s.sent[1:]
	}
	s.mu.Unlock()
	return nil
}

func (s *LogSender) Sent() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.sent...)
}

type SMTPSender struct {
	Config  *params.MailConfig
	Timeout time.Duration
}

func (s *SMTPSender) build(msg *Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.Config.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	for k, v := range msg.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

// envelopeFrom strips a display name, "Name <addr>" -> "addr".
func envelopeFrom(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return from
}

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	addr := net.JoinHostPort(s.Config.Host, fmt.Sprint(s.Config.Port))
	dialer := &net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp connect: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.Config.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.Config.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.Config.User != "" {
		auth := smtp.PlainAuth("", s.Config.User, s.Config.Password, s.Config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(envelopeFrom(s.Config.From)); err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp recipient: %w", err)
	}
	wr, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wr.Write(s.build(msg)); err != nil {
		return err
	}
	if err := wr.Close(); err != nil {
		return err
	}
	return client.Quit()
}
