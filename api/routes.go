package api

import (
	"net/http"

	"cityfix/api/routegroups"
	"cityfix/core/rbac"
	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.securityHeadersMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method("GET", "/metrics", s.metrics.Handler(s.dbStats))

	h := s.newRouteHandlers()
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(s.jsonMiddleware)
		s.registerAuthRoutes(apiRouter, h)
		s.registerReportsRoutes(apiRouter, h)
		s.registerAdminRoutes(apiRouter, h)
	})
	return r
}

func (s *Server) guards() routegroups.Guards {
	return routegroups.Guards{
		WithSession:       s.withSession,
		RequirePermission: func(p string) func(http.HandlerFunc) http.HandlerFunc { return s.requirePermission(rbac.Permission(p)) },
	}
}

func (s *Server) registerAuthRoutes(apiRouter chi.Router, h routeHandlers) {
	apiRouter.Route("/auth", func(authRouter chi.Router) {
		authRouter.Post("/register", s.rateLimitMiddleware(h.auth.Register))
		authRouter.Post("/login", s.rateLimitMiddleware(h.auth.Login))
		authRouter.Post("/logout", s.withSession(h.auth.Logout))
		authRouter.Get("/me", s.withSession(h.auth.Me))
	})
}

func (s *Server) registerReportsRoutes(apiRouter chi.Router, h routeHandlers) {
	routegroups.RegisterReports(apiRouter, s.guards(), h.reports, h.threads)
}

func (s *Server) registerAdminRoutes(apiRouter chi.Router, h routeHandlers) {
	routegroups.RegisterAdmin(apiRouter, s.guards(), h.admin)
}
