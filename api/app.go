package api

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/itrek/trekd/mail"
	"github.com/itrek/trekd/metrics"
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/state"
	"github.com/itrek/trekd/types/user"
)

// App holds what every operation shares: config, store, mail and images.
// Operations on behalf of a logged-in user go through a Hiker.
type App struct {
	Config *params.WebDaemonConfig
	Store  *state.Store
	Mail   *mail.Dispatcher
	Images ImageStore

	signer *signer
	now    func() time.Time
	logger *slog.Logger
}

// NewApp opens the store and starts the mail dispatcher.
// Sender may be nil, in which case one is built from config.Mail.
func NewApp(config *params.WebDaemonConfig, sender mail.Sender) (*App, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	storeConfig := *config.Store
	if storeConfig.DataDir == "" {
		storeConfig.DataDir = config.DataDir
	}
	st, err := state.Open(&storeConfig)
	if err != nil {
		return nil, err
	}
	images, err := NewImageStore(config.Image)
	if err != nil {
		st.Close()
		return nil, err
	}
	if sender == nil {
		sender = mail.NewSender(config.Mail)
	}
	secret := config.TokenSecret
	if secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			st.Close()
			return nil, err
		}
		secret = hex.EncodeToString(b)
		slog.Warn("No token secret configured, confirmation links will not survive a restart")
	}
	return &App{
		Config: config,
		Store:  st,
		Mail:   mail.NewDispatcher(sender, config.Mail.Workers),
		Images: images,
		signer: newSigner(secret),
		now:    time.Now,
		logger: slog.With("api", "app"),
	}, nil
}

// Close waits for pending mail and closes the store.
func (a *App) Close() error {
	a.Mail.Close()
	return a.Store.Close()
}

// sendMail composes and enqueues a message. Failures are logged, never returned:
// a request must not fail because mail is down.
func (a *App) sendMail(kind mail.Kind, rec *user.Record, data map[string]any) {
	msg, err := mail.Compose(kind, &rec.User, a.Config.PublicURL, data)
	if err != nil {
		a.logger.Error("Failed to compose mail", "kind", kind, "user", rec.ID, "error", err)
		metrics.MailEnqueued.WithLabelValues(string(kind), "error").Inc()
		return
	}
	if err := a.Mail.Enqueue(msg); err != nil {
		metrics.MailEnqueued.WithLabelValues(string(kind), "dropped").Inc()
		return
	}
	metrics.MailEnqueued.WithLabelValues(string(kind), "ok").Inc()
}
