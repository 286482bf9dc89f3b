package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cityfix/config"
	"cityfix/core/utils"
)

func setupStoreDB(t *testing.T) *DB {
	t.Helper()
	cfg := &config.AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "store.db")}
	logger := utils.NewDiscardLogger()
	db, err := NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}

func mustUser(t *testing.T, users UsersStore, username, role string, companyID *int64) *User {
	t.Helper()
	u := &User{Username: username, FullName: username, PasswordHash: "x", Role: role, CompanyID: companyID, Active: true}
	if _, err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func newPendingReport(t *testing.T, reports ReportsStore, creator int64, category Category) *Report {
	t.Helper()
	r := &Report{Title: "lamp", Description: "broken", Category: category, Latitude: 45.1, Longitude: 9.2, CreatedBy: creator}
	photos := []ReportPhoto{{URL: "https://img/1.jpg", Filename: "1.jpg"}}
	if _, err := reports.CreateReport(context.Background(), r, photos, ReportEvent{EventType: "created", ToStatus: StatusPendingApproval, ActorID: creator, ActorRole: "CITIZEN"}); err != nil {
		t.Fatalf("create report: %v", err)
	}
	return r
}

func TestRebindPostgres(t *testing.T) {
	got := rebind(DialectPostgres, "SELECT * FROM t WHERE a=? AND b='?' AND c IN (?,?)")
	want := "SELECT * FROM t WHERE a=$1 AND b='?' AND c IN ($2,$3)"
	if got != want {
		t.Fatalf("rebind: got %q want %q", got, want)
	}
	if rebind(DialectSQLite, "a=?") != "a=?" {
		t.Fatalf("sqlite queries must stay untouched")
	}
}

func TestUsersUniqueUsername(t *testing.T) {
	db := setupStoreDB(t)
	users := NewUsersStore(db)
	mustUser(t, users, "Alice", "CITIZEN", nil)
	_, err := users.Create(context.Background(), &User{Username: "alice", PasswordHash: "x", Role: "CITIZEN", Active: true})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	u, err := users.FindByUsername(context.Background(), "ALICE")
	if err != nil || u == nil {
		t.Fatalf("find: %v %v", u, err)
	}
	missing, err := users.Get(context.Background(), 999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown user, got %v %v", missing, err)
	}
}

func TestListByRolesSkipsInactive(t *testing.T) {
	db := setupStoreDB(t)
	users := NewUsersStore(db)
	a := mustUser(t, users, "tech-a", "PUBLIC_LIGHTING_TECHNICIAN", nil)
	b := mustUser(t, users, "tech-b", "PUBLIC_LIGHTING_TECHNICIAN", nil)
	mustUser(t, users, "other", "WASTE_MANAGEMENT_TECHNICIAN", nil)
	if err := users.SetActive(context.Background(), b.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	list, err := users.ListByRoles(context.Background(), []string{"PUBLIC_LIGHTING_TECHNICIAN"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("unexpected users: %+v", list)
	}
}

func TestCompaniesCategoriesRoundTrip(t *testing.T) {
	db := setupStoreDB(t)
	companies := NewCompaniesStore(db)
	c := &ExternalCompany{Name: "Lux", Categories: []Category{CategoryPublicLighting, "bogus", CategoryPublicLighting}, PlatformAccess: true}
	if _, err := companies.CreateCompany(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := companies.GetCompany(context.Background(), c.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Categories) != 1 || !got.Handles(CategoryPublicLighting) || !got.PlatformAccess {
		t.Fatalf("unexpected company: %+v", got)
	}
	if _, err := companies.CreateCompany(context.Background(), &ExternalCompany{Name: "Lux"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate name, got %v", err)
	}
}

func TestTransitionReportCAS(t *testing.T) {
	db := setupStoreDB(t)
	ctx := context.Background()
	users := NewUsersStore(db)
	reports := NewReportsStore(db)
	citizen := mustUser(t, users, "carla", "CITIZEN", nil)
	tech := mustUser(t, users, "tom", "PUBLIC_LIGHTING_TECHNICIAN", nil)
	r := newPendingReport(t, reports, citizen.ID, CategoryPublicLighting)
	if r.Version != 1 || len(r.Photos) != 1 {
		t.Fatalf("unexpected created report: %+v", r)
	}

	tr := ReportTransition{
		ReportID:        r.ID,
		ExpectedStatus:  StatusPendingApproval,
		ExpectedVersion: 1,
		NewStatus:       StatusAssigned,
		Assignment:      ToTechnician(tech.ID),
		Event:           ReportEvent{EventType: "approved", ActorID: 1, ActorRole: "PUBLIC_RELATIONS"},
	}
	updated, err := reports.TransitionReport(ctx, tr)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if id, ok := updated.Assignment.TechnicianID(); !ok || id != tech.ID || updated.Version != 2 {
		t.Fatalf("unexpected report after transition: %+v", updated)
	}
	if _, err := reports.TransitionReport(ctx, tr); !errors.Is(err, ErrConflict) {
		t.Fatalf("replay must conflict, got %v", err)
	}
	events, err := reports.ListReportEvents(ctx, r.ID)
	if err != nil || len(events) != 2 {
		t.Fatalf("expected 2 events, got %d (%v)", len(events), err)
	}
	if events[1].FromStatus != StatusPendingApproval || events[1].ToStatus != StatusAssigned {
		t.Fatalf("unexpected event: %+v", events[1])
	}
}

func TestRejectedReportRequiresReason(t *testing.T) {
	db := setupStoreDB(t)
	users := NewUsersStore(db)
	reports := NewReportsStore(db)
	citizen := mustUser(t, users, "carla", "CITIZEN", nil)
	r := newPendingReport(t, reports, citizen.ID, CategoryWaste)
	_, err := reports.TransitionReport(context.Background(), ReportTransition{
		ReportID: r.ID, ExpectedStatus: StatusPendingApproval, ExpectedVersion: 1, NewStatus: StatusRejected,
		Event: ReportEvent{EventType: "rejected"},
	})
	if err == nil {
		t.Fatalf("check constraint must refuse a rejection without reason")
	}
}

func TestListReportsFilters(t *testing.T) {
	db := setupStoreDB(t)
	ctx := context.Background()
	users := NewUsersStore(db)
	companies := NewCompaniesStore(db)
	reports := NewReportsStore(db)
	alice := mustUser(t, users, "alice", "CITIZEN", nil)
	bob := mustUser(t, users, "bob", "CITIZEN", nil)
	tech := mustUser(t, users, "tom", "PUBLIC_LIGHTING_TECHNICIAN", nil)
	company := &ExternalCompany{Name: "Lux", Categories: []Category{CategoryPublicLighting}, PlatformAccess: true}
	if _, err := companies.CreateCompany(ctx, company); err != nil {
		t.Fatalf("company: %v", err)
	}
	maint := mustUser(t, users, "mario", "EXTERNAL_MAINTAINER", &company.ID)

	own := newPendingReport(t, reports, alice.ID, CategoryPublicLighting)
	foreignPending := newPendingReport(t, reports, bob.ID, CategoryPublicLighting)
	routed := newPendingReport(t, reports, bob.ID, CategoryPublicLighting)
	_ = foreignPending
	if _, err := reports.TransitionReport(ctx, ReportTransition{
		ReportID: routed.ID, ExpectedStatus: StatusPendingApproval, ExpectedVersion: 1, NewStatus: StatusAssigned,
		Assignment: ToTechnician(tech.ID), Event: ReportEvent{EventType: "approved"},
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := reports.TransitionReport(ctx, ReportTransition{
		ReportID: routed.ID, ExpectedStatus: StatusAssigned, ExpectedVersion: 2, NewStatus: StatusExternalAssigned,
		Assignment: ToCompany(company.ID), ExternalAssignedBy: &tech.ID, Event: ReportEvent{EventType: "assigned_external"},
	}); err != nil {
		t.Fatalf("external: %v", err)
	}

	visible, err := reports.ListReports(ctx, ReportFilter{VisibleToUserID: alice.ID})
	if err != nil {
		t.Fatalf("citizen list: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("citizen should see own pending plus non-pending, got %d", len(visible))
	}
	for _, r := range visible {
		if r.ID != own.ID && r.ID != routed.ID {
			t.Fatalf("citizen sees foreign pending report %d", r.ID)
		}
	}

	techList, err := reports.ListReports(ctx, ReportFilter{TechnicianID: tech.ID})
	if err != nil || len(techList) != 1 || techList[0].ID != routed.ID {
		t.Fatalf("technician list: %+v %v", techList, err)
	}

	maintList, err := reports.ListReports(ctx, ReportFilter{MaintainerID: maint.ID, MaintainerOrg: company.ID})
	if err != nil || len(maintList) != 1 {
		t.Fatalf("maintainer list: %+v %v", maintList, err)
	}
	company.PlatformAccess = false
	if err := companies.UpdateCompany(ctx, company); err != nil {
		t.Fatalf("update company: %v", err)
	}
	maintList, err = reports.ListReports(ctx, ReportFilter{MaintainerID: maint.ID, MaintainerOrg: company.ID})
	if err != nil || len(maintList) != 0 {
		t.Fatalf("maintainer must lose company-level reports without platform access: %+v %v", maintList, err)
	}
}

func TestThreadsAreDisjointAndIncremental(t *testing.T) {
	db := setupStoreDB(t)
	ctx := context.Background()
	users := NewUsersStore(db)
	reports := NewReportsStore(db)
	messages := NewMessagesStore(db)
	notes := NewNotesStore(db)
	citizen := mustUser(t, users, "carla", "CITIZEN", nil)
	r := newPendingReport(t, reports, citizen.ID, CategoryOther)

	first := &Message{ReportID: r.ID, SenderID: citizen.ID, SenderRole: "CITIZEN", Content: "  hello "}
	if err := messages.AppendMessage(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.Content != "hello" || first.ID == 0 {
		t.Fatalf("unexpected message: %+v", first)
	}
	if err := messages.AppendMessage(ctx, &Message{ReportID: r.ID, SenderID: citizen.ID, SenderRole: "CITIZEN", Content: "again"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	all, _ := messages.ListMessages(ctx, r.ID, 0)
	newer, _ := messages.ListMessages(ctx, r.ID, first.ID)
	if len(all) != 2 || len(newer) != 1 || newer[0].Content != "again" {
		t.Fatalf("unexpected lists: all=%+v newer=%+v", all, newer)
	}
	noteList, err := notes.ListNotes(ctx, r.ID, 0)
	if err != nil || len(noteList) != 0 {
		t.Fatalf("notes must not see messages: %+v %v", noteList, err)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	db := setupStoreDB(t)
	ctx := context.Background()
	users := NewUsersStore(db)
	sessions := NewSessionsStore(db)
	u := mustUser(t, users, "alice", "CITIZEN", nil)
	now := utils.NowUTC()
	if err := sessions.SaveSession(ctx, &SessionRecord{ID: "old", UserID: u.ID, Username: u.Username, CreatedAt: now, LastSeenAt: now, ExpiresAt: now.Add(-time.Second)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sessions.SaveSession(ctx, &SessionRecord{ID: "fresh", UserID: u.ID, Username: u.Username, CreatedAt: now, LastSeenAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s, _ := sessions.GetSession(ctx, "old"); s != nil {
		t.Fatalf("expired session must not load")
	}
	n, err := sessions.PurgeExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if s, _ := sessions.GetSession(ctx, "fresh"); s == nil {
		t.Fatalf("fresh session lost")
	}
}
