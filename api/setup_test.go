package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"cityfix/config"
	"cityfix/core/accounts"
	"cityfix/core/assignment"
	"cityfix/core/auth"
	"cityfix/core/messaging"
	"cityfix/core/metrics"
	"cityfix/core/notes"
	"cityfix/core/rbac"
	"cityfix/core/reports"
	"cityfix/core/roles"
	"cityfix/core/store"
	"cityfix/core/utils"
)

type apiEnv struct {
	t        *testing.T
	srv      *Server
	handler  http.Handler
	accounts *accounts.Service
	admin    *roles.Actor
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(t.TempDir(), "api.db"),
		ListenAddr: "127.0.0.1:0",
		Reports:    config.ReportsConfig{MinPhotos: 1, MaxPhotos: 3, MessageMaxLength: 500, ListLimit: 100},
		Companies:  config.CompaniesConfig{MaxCategories: 2},
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
	users := store.NewUsersStore(db)
	companies := store.NewCompaniesStore(db)
	audits := store.NewAuditStore(db)
	policy, err := rbac.NewDefaultPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	m := metrics.New()
	sessions := auth.NewSessionManager(store.NewSessionsStore(db), cfg, logger)
	accountsSvc := accounts.NewService(cfg, users, companies, sessions, audits, logger)
	engine := reports.NewService(cfg, store.NewReportsStore(db), assignment.NewResolver(users, companies), audits, m, logger)
	srv := NewServer(cfg, ServerDeps{
		Users:     users,
		Sessions:  sessions,
		Policy:    policy,
		Metrics:   m,
		Accounts:  accountsSvc,
		Reports:   engine,
		Messaging: messaging.NewService(cfg, engine, store.NewMessagesStore(db), m, logger),
		Notes:     notes.NewService(cfg, engine, store.NewNotesStore(db), m, logger),
		DBStats:   db.Stats,
	}, logger)
	srv.loginLimiter = newLimiter(1000, time.Minute)
	return &apiEnv{
		t:        t,
		srv:      srv,
		handler:  srv.Handler(),
		accounts: accountsSvc,
		admin:    &roles.Actor{UserID: 0, Username: "setup", Role: roles.Administrator{}},
	}
}

// staff creates a user through the admin path and returns a bearer token for it.
func (e *apiEnv) staff(username, role string, companyID *int64) string {
	e.t.Helper()
	if _, err := e.accounts.CreateUser(context.Background(), e.admin, accounts.UserInput{
		Username:  username,
		Password:  "password-" + username,
		FullName:  username,
		Role:      role,
		CompanyID: companyID,
	}); err != nil {
		e.t.Fatalf("create %s: %v", username, err)
	}
	return e.login(username, "password-"+username)
}

func (e *apiEnv) login(username, password string) string {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	if rr.Code != http.StatusOK {
		e.t.Fatalf("login %s: %d %s", username, rr.Code, rr.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	decodeBody(e.t, rr, &out)
	return out.Token
}

func (e *apiEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		I18nKey string `json:"i18n_key"`
		Message string `json:"message"`
	} `json:"error"`
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) apiError {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	var out apiError
	decodeBody(t, rr, &out)
	if out.Error.Code != code {
		t.Fatalf("expected error code %q, got %+v", code, out.Error)
	}
	return out
}
