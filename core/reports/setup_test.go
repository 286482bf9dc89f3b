package reports

import (
	"context"
	"path/filepath"
	"testing"

	"cityfix/config"
	"cityfix/core/apperr"
	"cityfix/core/assignment"
	"cityfix/core/metrics"
	"cityfix/core/roles"
	"cityfix/core/store"
	"cityfix/core/utils"
)

type engineEnv struct {
	ctx       context.Context
	users     store.UsersStore
	companies store.CompaniesStore
	reports   store.ReportsStore
	audits    store.AuditStore
	svc       *Service
	citizen   *roles.Actor
	neighbour *roles.Actor
	pr        *roles.Actor
	tech      *roles.Actor
	wasteTech *roles.Actor
	admin     *roles.Actor
}

func setupEngine(t *testing.T) *engineEnv {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "engine.db"),
		Reports:  config.ReportsConfig{MinPhotos: 1, MaxPhotos: 3, MessageMaxLength: 200, ListLimit: 100},
	}
	logger := utils.NewDiscardLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	e := &engineEnv{
		ctx:       context.Background(),
		users:     store.NewUsersStore(db),
		companies: store.NewCompaniesStore(db),
		reports:   store.NewReportsStore(db),
		audits:    store.NewAuditStore(db),
	}
	resolver := assignment.NewResolver(e.users, e.companies)
	e.svc = NewService(cfg, e.reports, resolver, e.audits, metrics.New(), logger)
	e.citizen = e.actor(t, "carla", "CITIZEN", nil)
	e.neighbour = e.actor(t, "nina", "CITIZEN", nil)
	e.pr = e.actor(t, "paula", "PUBLIC_RELATIONS", nil)
	e.tech = e.actor(t, "tom", string(roles.DeptPublicLighting), nil)
	e.wasteTech = e.actor(t, "walt", string(roles.DeptWasteManagement), nil)
	e.admin = e.actor(t, "root", "ADMINISTRATOR", nil)
	return e
}

func (e *engineEnv) actor(t *testing.T, username, role string, companyID *int64) *roles.Actor {
	t.Helper()
	u := &store.User{Username: username, FullName: username, PasswordHash: "x", Role: role, CompanyID: companyID, Active: true}
	if _, err := e.users.Create(e.ctx, u); err != nil {
		t.Fatalf("user %s: %v", username, err)
	}
	a, err := roles.ActorFromUser(u)
	if err != nil {
		t.Fatalf("actor %s: %v", username, err)
	}
	return a
}

func (e *engineEnv) company(t *testing.T, name string, platform bool, cats ...store.Category) *store.ExternalCompany {
	t.Helper()
	c := &store.ExternalCompany{Name: name, Categories: cats, PlatformAccess: platform}
	if _, err := e.companies.CreateCompany(e.ctx, c); err != nil {
		t.Fatalf("company %s: %v", name, err)
	}
	return c
}

func (e *engineEnv) file(t *testing.T, by *roles.Actor, category store.Category, anonymous bool) *ReportView {
	t.Helper()
	r, err := e.svc.CreateReport(e.ctx, by, CreateInput{
		Title:       "Broken lamp",
		Description: "Dark street",
		Category:    string(category),
		Latitude:    45.46,
		Longitude:   9.19,
		IsAnonymous: anonymous,
		Photos:      []PhotoInput{{URL: "https://cdn.example/p/1.jpg"}},
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	return r
}

// assigned files a PUBLIC_LIGHTING report and approves it for e.tech.
func (e *engineEnv) assigned(t *testing.T) *ReportView {
	t.Helper()
	r := e.file(t, e.citizen, store.CategoryPublicLighting, false)
	updated, err := e.svc.Approve(e.ctx, e.pr, r.ID, e.tech.UserID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return updated
}

func expectKind(t *testing.T, err error, want *apperr.Error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want.Kind)
	}
	if kind, _ := apperr.KindOf(err); kind != want.Kind {
		t.Fatalf("expected %s error, got %v", want.Kind, err)
	}
}
