package routegroups

import (
	"cityfix/api/handlers"
	"github.com/go-chi/chi/v5"
)

func RegisterReports(apiRouter chi.Router, g Guards, reports *handlers.ReportsHandler, threads *handlers.ThreadsHandler) {
	apiRouter.Route("/reports", func(reportsRouter chi.Router) {
		reportsRouter.MethodFunc("GET", "/", g.SessionPerm("reports.view", reports.List))
		reportsRouter.MethodFunc("POST", "/", g.SessionPerm("reports.create", reports.Create))
		reportsRouter.MethodFunc("GET", "/{id:[0-9]+}", g.SessionPerm("reports.view", reports.Get))
		reportsRouter.MethodFunc("GET", "/{id:[0-9]+}/events", g.SessionPerm("reports.view", reports.Events))
		reportsRouter.MethodFunc("POST", "/{id:[0-9]+}/approve", g.SessionPerm("reports.approve", reports.Approve))
		reportsRouter.MethodFunc("POST", "/{id:[0-9]+}/reject", g.SessionPerm("reports.approve", reports.Reject))
		reportsRouter.MethodFunc("POST", "/{id:[0-9]+}/external", g.SessionPerm("reports.assign_external", reports.AssignExternal))
		reportsRouter.MethodFunc("PUT", "/{id:[0-9]+}/status", g.SessionPerm("reports.status", reports.UpdateStatus))
		reportsRouter.MethodFunc("GET", "/{id:[0-9]+}/assignable/technicals", g.SessionPerm("reports.approve", reports.AssignableTechnicals))
		reportsRouter.MethodFunc("GET", "/{id:[0-9]+}/assignable/externals", g.SessionPerm("reports.assign_external", reports.AssignableExternals))
		reportsRouter.MethodFunc("GET", "/{id:[0-9]+}/messages", g.SessionPerm("messages.use", threads.ListMessages))
		reportsRouter.MethodFunc("POST", "/{id:[0-9]+}/messages", g.SessionPerm("messages.use", threads.PostMessage))
		reportsRouter.MethodFunc("GET", "/{id:[0-9]+}/notes", g.SessionPerm("notes.use", threads.ListNotes))
		reportsRouter.MethodFunc("POST", "/{id:[0-9]+}/notes", g.SessionPerm("notes.use", threads.AddNote))
	})
}
