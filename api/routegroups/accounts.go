package routegroups

import (
	"cityfix/api/handlers"
	"github.com/go-chi/chi/v5"
)

func RegisterAdmin(apiRouter chi.Router, g Guards, admin *handlers.AdminHandler) {
	apiRouter.Route("/admin", func(adminRouter chi.Router) {
		adminRouter.MethodFunc("GET", "/companies", g.SessionPerm("companies.manage", admin.ListCompanies))
		adminRouter.MethodFunc("POST", "/companies", g.SessionPerm("companies.manage", admin.CreateCompany))
		adminRouter.MethodFunc("PUT", "/companies/{id:[0-9]+}", g.SessionPerm("companies.manage", admin.UpdateCompany))
		adminRouter.MethodFunc("POST", "/users", g.SessionPerm("users.manage", admin.CreateUser))
	})
}
