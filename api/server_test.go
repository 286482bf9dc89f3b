package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cityfix/core/roles"
)

type reportBody struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	CreatedBy  *int64 `json:"created_by"`
	Assignment struct {
		Kind         string `json:"kind"`
		TechnicianID *int64 `json:"technician_id"`
		CompanyID    *int64 `json:"company_id"`
	} `json:"assignment"`
	RejectionReason string `json:"rejection_reason"`
}

func lightingReport(anonymous bool) map[string]any {
	return map[string]any{
		"title":        "Streetlight out",
		"description":  "Dark corner near the school",
		"category":     "PUBLIC_LIGHTING",
		"latitude":     45.07,
		"longitude":    7.68,
		"is_anonymous": anonymous,
		"photos":       []map[string]string{{"url": "https://cdn.example.org/p/lamp.jpg"}},
	}
}

func (e *apiEnv) createReport(token string, body map[string]any) reportBody {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/reports", token, body)
	if rr.Code != http.StatusCreated {
		e.t.Fatalf("create report: %d %s", rr.Code, rr.Body.String())
	}
	var out reportBody
	decodeBody(e.t, rr, &out)
	return out
}

func (e *apiEnv) register(username string) string {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{"username": username, "password": "password-" + username})
	if rr.Code != http.StatusCreated {
		e.t.Fatalf("register %s: %d %s", username, rr.Code, rr.Body.String())
	}
	return e.login(username, "password-"+username)
}

func techID(t *testing.T, e *apiEnv, token string) int64 {
	t.Helper()
	rr := e.do(http.MethodGet, "/api/auth/me", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rr.Code, rr.Body.String())
	}
	var out struct {
		User struct {
			ID          int64    `json:"id"`
			Tier        string   `json:"tier"`
			Permissions []string `json:"permissions"`
		} `json:"user"`
	}
	decodeBody(t, rr, &out)
	return out.User.ID
}

func TestLifecycleOverHTTP(t *testing.T) {
	e := setupAPI(t)
	citizen := e.register("carla")
	pr := e.staff("paula", "PUBLIC_RELATIONS", nil)
	tech := e.staff("tom", string(roles.DeptPublicLighting), nil)
	tomID := techID(t, e, tech)

	created := e.createReport(citizen, lightingReport(false))
	if created.Status != "PENDING_APPROVAL" || created.Assignment.Kind != "none" {
		t.Fatalf("unexpected new report %+v", created)
	}
	path := fmt.Sprintf("/api/reports/%d", created.ID)

	rr := e.do(http.MethodGet, path+"/assignable/technicals", pr, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"tom"`) {
		t.Fatalf("assignable technicals: %d %s", rr.Code, rr.Body.String())
	}

	rr = e.do(http.MethodPost, path+"/approve", pr, map[string]int64{"technician_id": tomID})
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rr.Code, rr.Body.String())
	}
	var approved reportBody
	decodeBody(t, rr, &approved)
	if approved.Status != "ASSIGNED" || approved.Assignment.TechnicianID == nil || *approved.Assignment.TechnicianID != tomID {
		t.Fatalf("unexpected approved report %+v", approved)
	}

	rr = e.do(http.MethodPost, path+"/approve", pr, map[string]int64{"technician_id": tomID})
	expectError(t, rr, http.StatusConflict, "invalid_transition")

	for _, status := range []string{"IN_PROGRESS", "SUSPENDED", "IN_PROGRESS", "RESOLVED"} {
		rr = e.do(http.MethodPut, path+"/status", tech, map[string]string{"status": status})
		if rr.Code != http.StatusOK {
			t.Fatalf("status %s: %d %s", status, rr.Code, rr.Body.String())
		}
	}
	rr = e.do(http.MethodPut, path+"/status", tech, map[string]string{"status": "IN_PROGRESS"})
	expectError(t, rr, http.StatusConflict, "invalid_transition")

	rr = e.do(http.MethodGet, path+"/events", citizen, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("events: %d %s", rr.Code, rr.Body.String())
	}
	var timeline struct {
		Events []struct {
			EventType string `json:"event_type"`
			ToStatus  string `json:"to_status"`
		} `json:"events"`
	}
	decodeBody(t, rr, &timeline)
	if len(timeline.Events) != 6 || timeline.Events[5].ToStatus != "RESOLVED" {
		t.Fatalf("unexpected timeline %+v", timeline.Events)
	}
}

func TestRejectOverHTTP(t *testing.T) {
	e := setupAPI(t)
	citizen := e.register("carla")
	pr := e.staff("paula", "PUBLIC_RELATIONS", nil)
	created := e.createReport(citizen, lightingReport(false))
	path := fmt.Sprintf("/api/reports/%d/reject", created.ID)

	rr := e.do(http.MethodPost, path, pr, map[string]string{"reason": "   "})
	out := expectError(t, rr, http.StatusBadRequest, "validation")
	if out.Error.I18nKey != "reports.rejectReasonRequired" {
		t.Fatalf("unexpected i18n key %q", out.Error.I18nKey)
	}
	rr = e.do(http.MethodPost, path, pr, map[string]string{"reason": "Duplicate of an existing report"})
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: %d %s", rr.Code, rr.Body.String())
	}
	var rejected reportBody
	decodeBody(t, rr, &rejected)
	if rejected.Status != "REJECTED" || rejected.RejectionReason == "" {
		t.Fatalf("unexpected rejected report %+v", rejected)
	}
}

func TestThreadsOverHTTP(t *testing.T) {
	e := setupAPI(t)
	citizen := e.register("carla")
	pr := e.staff("paula", "PUBLIC_RELATIONS", nil)
	tech := e.staff("tom", string(roles.DeptPublicLighting), nil)
	tomID := techID(t, e, tech)
	created := e.createReport(citizen, lightingReport(false))
	base := fmt.Sprintf("/api/reports/%d", created.ID)
	if rr := e.do(http.MethodPost, base+"/approve", pr, map[string]int64{"technician_id": tomID}); rr.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rr.Code, rr.Body.String())
	}

	if rr := e.do(http.MethodPost, base+"/messages", citizen, map[string]string{"content": "Any news?"}); rr.Code != http.StatusCreated {
		t.Fatalf("citizen message: %d %s", rr.Code, rr.Body.String())
	}
	if rr := e.do(http.MethodPost, base+"/messages", tech, map[string]string{"content": "On it tomorrow"}); rr.Code != http.StatusCreated {
		t.Fatalf("tech message: %d %s", rr.Code, rr.Body.String())
	}
	rr := e.do(http.MethodPost, base+"/messages", pr, map[string]string{"content": "hello"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("public relations should not post messages, got %d", rr.Code)
	}

	rr = e.do(http.MethodGet, base+"/messages", citizen, nil)
	var thread struct {
		Messages []struct {
			ID      int64  `json:"id"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	decodeBody(t, rr, &thread)
	if len(thread.Messages) != 2 || thread.Messages[0].Content != "Any news?" {
		t.Fatalf("unexpected thread %+v", thread.Messages)
	}
	rr = e.do(http.MethodGet, fmt.Sprintf("%s/messages?after=%d", base, thread.Messages[0].ID), citizen, nil)
	decodeBody(t, rr, &thread)
	if len(thread.Messages) != 1 || thread.Messages[0].Content != "On it tomorrow" {
		t.Fatalf("incremental poll returned %+v", thread.Messages)
	}
	rr = e.do(http.MethodGet, base+"/messages?after=abc", citizen, nil)
	expectError(t, rr, http.StatusBadRequest, "validation")

	if rr := e.do(http.MethodPost, base+"/notes", pr, map[string]string{"content": "Check the transformer"}); rr.Code != http.StatusCreated {
		t.Fatalf("pr note: %d %s", rr.Code, rr.Body.String())
	}
	if rr := e.do(http.MethodGet, base+"/notes", tech, nil); rr.Code != http.StatusOK {
		t.Fatalf("tech notes: %d %s", rr.Code, rr.Body.String())
	}
	expectError(t, e.do(http.MethodGet, base+"/notes", citizen, nil), http.StatusForbidden, "authorization")
	expectError(t, e.do(http.MethodPost, base+"/notes", citizen, map[string]string{"content": "let me in"}), http.StatusForbidden, "authorization")
}

func TestExternalRoutingOverHTTP(t *testing.T) {
	e := setupAPI(t)
	admin := e.staff("root", "ADMINISTRATOR", nil)
	citizen := e.register("carla")
	pr := e.staff("paula", "PUBLIC_RELATIONS", nil)
	tech := e.staff("tom", string(roles.DeptPublicLighting), nil)
	tomID := techID(t, e, tech)

	rr := e.do(http.MethodPost, "/api/admin/companies", admin, map[string]any{"name": "Lumen", "categories": []string{"PUBLIC_LIGHTING"}, "platform_access": true})
	if rr.Code != http.StatusCreated {
		t.Fatalf("company: %d %s", rr.Code, rr.Body.String())
	}
	var company struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rr, &company)
	maint := e.staff("mario", "EXTERNAL_MAINTAINER", &company.ID)

	created := e.createReport(citizen, lightingReport(true))
	base := fmt.Sprintf("/api/reports/%d", created.ID)
	if rr := e.do(http.MethodPost, base+"/approve", pr, map[string]int64{"technician_id": tomID}); rr.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rr.Code, rr.Body.String())
	}
	rr = e.do(http.MethodGet, base+"/assignable/externals", tech, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"mario"`) {
		t.Fatalf("externals: %d %s", rr.Code, rr.Body.String())
	}
	rr = e.do(http.MethodPost, base+"/external", tech, map[string]int64{"company_id": company.ID})
	if rr.Code != http.StatusOK {
		t.Fatalf("external: %d %s", rr.Code, rr.Body.String())
	}
	var routed reportBody
	decodeBody(t, rr, &routed)
	if routed.Status != "EXTERNAL_ASSIGNED" || routed.Assignment.Kind != "company" {
		t.Fatalf("unexpected routed report %+v", routed)
	}
	rr = e.do(http.MethodPost, base+"/external", tech, map[string]int64{"company_id": company.ID})
	expectError(t, rr, http.StatusConflict, "invalid_transition")

	rr = e.do(http.MethodGet, "/api/reports", maint, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), fmt.Sprintf(`"id":%d`, created.ID)) {
		t.Fatalf("maintainer list: %d %s", rr.Code, rr.Body.String())
	}
	rr = e.do(http.MethodGet, base, maint, nil)
	var seen reportBody
	decodeBody(t, rr, &seen)
	if seen.CreatedBy != nil {
		t.Fatalf("anonymous creator leaked to maintainer: %d", *seen.CreatedBy)
	}
	if rr := e.do(http.MethodPut, base+"/status", maint, map[string]string{"status": "IN_PROGRESS"}); rr.Code != http.StatusOK {
		t.Fatalf("maintainer status: %d %s", rr.Code, rr.Body.String())
	}

	rr = e.do(http.MethodPut, fmt.Sprintf("/api/admin/companies/%d", company.ID), admin, map[string]any{"name": "Lumen", "categories": []string{"PUBLIC_LIGHTING"}, "platform_access": false})
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke: %d %s", rr.Code, rr.Body.String())
	}
	expectError(t, e.do(http.MethodPut, base+"/status", maint, map[string]string{"status": "RESOLVED"}), http.StatusForbidden, "authorization")
}

func TestAnonymousCreatorHiddenInTransitionResponses(t *testing.T) {
	e := setupAPI(t)
	admin := e.staff("root", "ADMINISTRATOR", nil)
	citizen := e.register("carla")
	pr := e.staff("paula", "PUBLIC_RELATIONS", nil)
	tech := e.staff("tom", string(roles.DeptPublicLighting), nil)
	tomID := techID(t, e, tech)

	rr := e.do(http.MethodPost, "/api/admin/companies", admin, map[string]any{"name": "Lumen", "categories": []string{"PUBLIC_LIGHTING"}, "platform_access": true})
	if rr.Code != http.StatusCreated {
		t.Fatalf("company: %d %s", rr.Code, rr.Body.String())
	}
	var company struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rr, &company)
	maint := e.staff("mario", "EXTERNAL_MAINTAINER", &company.ID)

	created := e.createReport(citizen, lightingReport(true))
	if created.CreatedBy == nil {
		t.Fatalf("creator must see themselves on the create response")
	}
	base := fmt.Sprintf("/api/reports/%d", created.ID)
	hidden := func(step string, rr *httptest.ResponseRecorder) {
		t.Helper()
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", step, rr.Code, rr.Body.String())
		}
		var out reportBody
		decodeBody(t, rr, &out)
		if out.CreatedBy != nil {
			t.Fatalf("%s: anonymous creator %d exposed", step, *out.CreatedBy)
		}
	}
	hidden("approve", e.do(http.MethodPost, base+"/approve", pr, map[string]int64{"technician_id": tomID}))
	hidden("external", e.do(http.MethodPost, base+"/external", tech, map[string]int64{"company_id": company.ID}))
	hidden("maintainer status", e.do(http.MethodPut, base+"/status", maint, map[string]string{"status": "IN_PROGRESS"}))
	hidden("assigning officer status", e.do(http.MethodPut, base+"/status", tech, map[string]string{"status": "SUSPENDED"}))

	direct := e.createReport(citizen, lightingReport(true))
	if rr := e.do(http.MethodPost, fmt.Sprintf("/api/reports/%d/approve", direct.ID), pr, map[string]int64{"technician_id": tomID}); rr.Code != http.StatusOK {
		t.Fatalf("approve direct: %d %s", rr.Code, rr.Body.String())
	}
	hidden("technician status", e.do(http.MethodPut, fmt.Sprintf("/api/reports/%d/status", direct.ID), tech, map[string]string{"status": "IN_PROGRESS"}))

	other := e.createReport(citizen, lightingReport(true))
	hidden("reject", e.do(http.MethodPost, fmt.Sprintf("/api/reports/%d/reject", other.ID), pr, map[string]string{"reason": "duplicate"}))
}

func TestPermissionAndAuthFailures(t *testing.T) {
	e := setupAPI(t)
	citizen := e.register("carla")
	admin := e.staff("root", "ADMINISTRATOR", nil)

	rr := e.do(http.MethodGet, "/api/reports", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	rr = e.do(http.MethodGet, "/api/reports", "not-a-uuid", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
	expectError(t, e.do(http.MethodGet, "/api/reports", admin, nil), http.StatusForbidden, "authorization")
	expectError(t, e.do(http.MethodGet, "/api/admin/companies", citizen, nil), http.StatusForbidden, "authorization")
	expectError(t, e.do(http.MethodGet, "/api/reports/999", citizen, nil), http.StatusNotFound, "not_found")

	bad := lightingReport(false)
	bad["photos"] = []map[string]string{}
	expectError(t, e.do(http.MethodPost, "/api/reports", citizen, bad), http.StatusBadRequest, "validation")
	bad = lightingReport(false)
	bad["category"] = "VOLCANO"
	expectError(t, e.do(http.MethodPost, "/api/reports", citizen, bad), http.StatusBadRequest, "validation")

	if rr := e.do(http.MethodPost, "/api/auth/logout", citizen, nil); rr.Code != http.StatusOK {
		t.Fatalf("logout: %d", rr.Code)
	}
	if rr := e.do(http.MethodGet, "/api/reports", citizen, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
	rr = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "carla", "password": "nope-nope"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rr.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := setupAPI(t)
	if rr := e.do(http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	rr := e.do(http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "cityfix_http_requests_total") || !strings.Contains(body, `route="/healthz"`) {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
}
