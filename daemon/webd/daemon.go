package webd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/itrek/trekd/api"
	"github.com/itrek/trekd/params"
	"github.com/olahol/melody"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig
	app    *api.App
	ownApp bool

	logger         *slog.Logger
	melodyInstance *melody.Melody
	started        time.Time
}

// NewWebDaemon builds the daemon around app, or around a new App opened from config if app is nil.
// A daemon that opened its own App closes it in Close.
func NewWebDaemon(config *params.WebDaemonConfig, app *api.App) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	ownApp := false
	if app == nil {
		var err error
		app, err = api.NewApp(config, nil)
		if err != nil {
			return nil, err
		}
		ownApp = true
	}
	return &WebDaemon{
		Config:  config,
		app:     app,
		ownApp:  ownApp,
		logger:  slog.With("d", "web"),
		started: time.Now(),
	}, nil
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *WebDaemon) Run(ctx context.Context) error {
	router := s.NewRouter()
	listener, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	if s.Config.Network == "unix" {
		defer os.Remove(s.Config.Address)
	}
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", s.Config.Address)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve(listener)
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down web daemon")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.ShutdownTimeout)
	defer cancel()
	if !s.melodyInstance.IsClosed() {
		if err := s.melodyInstance.Close(); err != nil {
			s.logger.Warn("Failed to close websockets", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close disconnects websocket clients and releases the App if the daemon owns it.
func (s *WebDaemon) Close() error {
	if s.melodyInstance != nil && !s.melodyInstance.IsClosed() {
		_ = s.melodyInstance.Close()
	}
	if s.ownApp {
		return s.app.Close()
	}
	return nil
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)
	router.Use(metricsMiddleware)
	router.Use(s.corsMiddleware)

	// Preflight requests are answered by the CORS middleware.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	router.Path("/ping").HandlerFunc(pingPong)
	router.Path("/metrics").Handler(promhttp.Handler())
	router.Path("/feed").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})
	if s.Config.Image.S3Bucket == "" {
		router.PathPrefix("/images/").Handler(
			http.StripPrefix("/images/", http.FileServer(http.Dir(s.Config.Image.Dir))))
	}

	apiJSONRoutes := router.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/api/reduce").HandlerFunc(s.handleReduce).Methods(http.MethodPost)
	apiJSONRoutes.Path("/api/auth/login").HandlerFunc(s.handleLogin).Methods(http.MethodPost)
	apiJSONRoutes.Path("/api/users/create").HandlerFunc(s.handleRegister).Methods(http.MethodPost)
	apiJSONRoutes.Path("/api/users/confirm-email/{token}").HandlerFunc(s.handleConfirmEmail).Methods(http.MethodGet)
	apiJSONRoutes.Path("/api/users/password-reset").HandlerFunc(s.handlePasswordReset).Methods(http.MethodPost)
	apiJSONRoutes.Path("/api/users/reset-password/{token}").HandlerFunc(s.handleResetPassword).Methods(http.MethodPost)

	authenticated := apiJSONRoutes.NewRoute().Subrouter()
	authenticated.Use(s.tokenAuthenticationMiddleware)

	authenticated.Path("/api/auth/logout").HandlerFunc(handleLogout).Methods(http.MethodPost)
	authenticated.Path("/api/auth/check-login").HandlerFunc(handleCheckLogin).Methods(http.MethodGet)

	users := authenticated.PathPrefix("/api/users").Subrouter()
	users.Path("/update-profile").HandlerFunc(handleUpdateProfile).Methods(http.MethodPut, http.MethodPatch)
	users.Path("/change-password").HandlerFunc(handleChangePassword).Methods(http.MethodPut)
	users.Path("/delete-account").HandlerFunc(handleDeleteAccount).Methods(http.MethodDelete)
	users.Path("/search").HandlerFunc(handleSearchUsers).Methods(http.MethodGet)
	users.Path("/activity").HandlerFunc(handleActivity).Methods(http.MethodGet)
	users.Path("/activity/{kind}/{id:[0-9]+}").HandlerFunc(handleDeleteActivity).Methods(http.MethodDelete)
	users.Path("/level").HandlerFunc(handleLevel).Methods(http.MethodGet)

	routes := authenticated.PathPrefix("/api/routes").Subrouter()
	routes.Path("/").HandlerFunc(handleListRoutes).Methods(http.MethodGet)
	routes.Path("").HandlerFunc(handleListRoutes).Methods(http.MethodGet)
	routes.Path("/").HandlerFunc(handleCreateRoute).Methods(http.MethodPost)
	routes.Path("").HandlerFunc(handleCreateRoute).Methods(http.MethodPost)
	routes.Path("/{id:[0-9]+}").HandlerFunc(handleGetRoute).Methods(http.MethodGet)
	routes.Path("/{id:[0-9]+}").HandlerFunc(handleUpdateRoute).Methods(http.MethodPatch, http.MethodPut)
	routes.Path("/{id:[0-9]+}").HandlerFunc(handleDeleteRoute).Methods(http.MethodDelete)
	routes.Path("/{id:[0-9]+}/geojson").HandlerFunc(handleRouteGeoJSON).Methods(http.MethodGet)
	routes.Path("/{id:[0-9]+}/share/{user:[0-9]+}").HandlerFunc(handleShare).Methods(http.MethodPost, http.MethodDelete)
	routes.Path("/{id:[0-9]+}/rate").HandlerFunc(handleRate).Methods(http.MethodPost)
	routes.Path("/{id:[0-9]+}/comment").HandlerFunc(handleComment).Methods(http.MethodPost)
	routes.Path("/{id:[0-9]+}/comments").HandlerFunc(handleRouteComments).Methods(http.MethodGet)

	return router
}
