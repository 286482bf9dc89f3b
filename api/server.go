package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"cityfix/config"
	"cityfix/core/accounts"
	"cityfix/core/auth"
	"cityfix/core/messaging"
	"cityfix/core/metrics"
	"cityfix/core/notes"
	"cityfix/core/rbac"
	"cityfix/core/reports"
	"cityfix/core/store"
	"cityfix/core/utils"
	"github.com/go-chi/chi/v5"
)

// BackgroundWorker is anything composeRuntime starts next to the HTTP server.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context) error
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Users     store.UsersStore
	Sessions  *auth.SessionManager
	Policy    *rbac.Policy
	Metrics   *metrics.Metrics
	Accounts  *accounts.Service
	Reports   *reports.Service
	Messaging *messaging.Service
	Notes     *notes.Service
	DBStats   func() sql.DBStats
}

type Server struct {
	cfg             *config.AppConfig
	logger          *utils.Logger
	users           store.UsersStore
	sessionManager  *auth.SessionManager
	policy          *rbac.Policy
	metrics         *metrics.Metrics
	accountsSvc     *accounts.Service
	reportsSvc      *reports.Service
	messagingSvc    *messaging.Service
	notesSvc        *notes.Service
	dbStats         func() sql.DBStats
	activityTracker *sessionActivity
	loginLimiter    *requestLimiter
	router          chi.Router
	httpServer      *http.Server
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	s := &Server{
		cfg:             cfg,
		logger:          logger,
		users:           deps.Users,
		sessionManager:  deps.Sessions,
		policy:          deps.Policy,
		metrics:         deps.Metrics,
		accountsSvc:     deps.Accounts,
		reportsSvc:      deps.Reports,
		messagingSvc:    deps.Messaging,
		notesSvc:        deps.Notes,
		dbStats:         deps.DBStats,
		activityTracker: newSessionActivity(),
		loginLimiter:    newLimiter(5, time.Minute),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Printf("listening on %s", s.cfg.ListenAddr)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
