package api

import "cityfix/api/handlers"

type routeHandlers struct {
	auth    *handlers.AuthHandler
	reports *handlers.ReportsHandler
	threads *handlers.ThreadsHandler
	admin   *handlers.AdminHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:    handlers.NewAuthHandler(s.accountsSvc, s.users, s.policy, s.clientIP, s.logger),
		reports: handlers.NewReportsHandler(s.reportsSvc, s.logger),
		threads: handlers.NewThreadsHandler(s.messagingSvc, s.notesSvc, s.logger),
		admin:   handlers.NewAdminHandler(s.accountsSvc, s.logger),
	}
}
