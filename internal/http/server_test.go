package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"

	"portfolio/api/internal/analytics"
	"portfolio/api/internal/auth"
	"portfolio/api/internal/config"
	"portfolio/api/internal/contact"
	"portfolio/api/internal/db"
	"portfolio/api/internal/github"
	plog "portfolio/api/internal/log"
	"portfolio/api/internal/portfolio"
	"portfolio/api/internal/validation"
)

const adminToken = "admin-token"

func TestListCompaniesIsPublic(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})
	rec := doRequest(t, srv, "POST", "/api/v1/companies", adminToken, map[string]any{"name": "Acme", "role": "Engineer"})
	if rec.Code != 201 {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, "GET", "/api/v1/companies", "", nil)
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Items []portfolio.Company `json:"items"`
		Total int64               `json:"total"`
		Limit int                 `json:"limit"`
	}
	decode(t, rec, &body)
	if body.Total != 1 || len(body.Items) != 1 || body.Items[0].Name != "Acme" {
		t.Fatalf("unexpected listing: %+v", body)
	}
	if body.Limit != defaultPageLimit {
		t.Fatalf("expected default limit %d, got %d", defaultPageLimit, body.Limit)
	}

	rec = doRequest(t, srv, "GET", "/api/v1/companies/"+body.Items[0].ID, "", nil)
	if rec.Code != 200 {
		t.Fatalf("expected status 200 fetching company, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	rec := doRequest(t, srv, "POST", "/api/v1/skills", "", map[string]any{"name": "Go", "category": "language"})
	if rec.Code != 401 {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}

	rec = doRequest(t, srv, "DELETE", "/api/v1/skills/unknown", "not-a-valid-token", nil)
	if rec.Code != 401 {
		t.Fatalf("expected status 401 for invalid token, got %d", rec.Code)
	}
}

func TestAdminRoutesUnavailableWithoutLogin(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{authDisabled: true})

	rec := doRequest(t, srv, "GET", "/api/v1/contacts", adminToken, nil)
	if rec.Code != 503 {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestCreateValidationFailure(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	rec := doRequest(t, srv, "POST", "/api/v1/companies", adminToken, map[string]any{"name": "   "})
	if rec.Code != 422 {
		t.Fatalf("expected status 422, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Errors []struct {
			Location string `json:"location"`
			Message  string `json:"message"`
		} `json:"errors"`
	}
	decode(t, rec, &body)
	if len(body.Errors) == 0 || body.Errors[0].Location != "body.name" {
		t.Fatalf("expected error on body.name, got %+v", body.Errors)
	}
}

func TestUnknownRecordReturns404(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	rec := doRequest(t, srv, "GET", "/api/v1/projects/does-not-exist", "", nil)
	if rec.Code != 404 {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestPrivateDocumentsHiddenFromVisitors(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	public := createDocument(t, srv, "CV", true)
	private := createDocument(t, srv, "Payslip", false)

	var listing struct {
		Items []portfolio.Document `json:"items"`
		Total int64                `json:"total"`
	}
	decode(t, doRequest(t, srv, "GET", "/api/v1/documents", "", nil), &listing)
	if listing.Total != 1 || len(listing.Items) != 1 || listing.Items[0].ID != public {
		t.Fatalf("expected only the public document, got %+v", listing)
	}

	decode(t, doRequest(t, srv, "GET", "/api/v1/documents", adminToken, nil), &listing)
	if listing.Total != 2 {
		t.Fatalf("expected admins to see both documents, got %d", listing.Total)
	}

	if rec := doRequest(t, srv, "GET", "/api/v1/documents/"+private, "", nil); rec.Code != 404 {
		t.Fatalf("expected status 404 for private document, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, "GET", "/api/v1/documents/"+private, adminToken, nil); rec.Code != 200 {
		t.Fatalf("expected status 200 for admin, got %d", rec.Code)
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	rec := doRequest(t, srv, "POST", "/api/v1/companies", adminToken, map[string]any{"name": "Acme"})
	if rec.Code != 201 {
		t.Fatalf("expected status 201 creating company, got %d: %s", rec.Code, rec.Body.String())
	}
	var company portfolio.Company
	decode(t, rec, &company)

	creates := []struct {
		path    string
		payload map[string]any
	}{
		{"/api/v1/skills", map[string]any{"name": "Go", "category": "language"}},
		{"/api/v1/skills", map[string]any{"name": "Rust", "category": "language"}},
		{"/api/v1/skills", map[string]any{"name": "Postgres", "category": "database"}},
		{"/api/v1/projects", map[string]any{"title": "Portfolio", "featured": true, "company_id": company.ID}},
		{"/api/v1/projects", map[string]any{"title": "Scratchpad"}},
		{"/api/v1/documents", map[string]any{"title": "CV", "kind": "resume", "url": "https://example.com/cv.pdf"}},
		{"/api/v1/documents", map[string]any{"title": "Talk", "kind": "publication", "url": "https://example.com/talk.pdf"}},
		{"/api/v1/documents", map[string]any{"title": "Old CV", "kind": "resume", "url": "https://example.com/old.pdf", "is_public": false}},
	}
	for _, c := range creates {
		if rec := doRequest(t, srv, "POST", c.path, adminToken, c.payload); rec.Code != 201 {
			t.Fatalf("expected status 201 creating %v, got %d: %s", c.payload, rec.Code, rec.Body.String())
		}
	}

	tests := []struct {
		name  string
		path  string
		token string
		total int64
		code  int
	}{
		{name: "skills by category", path: "/api/v1/skills?category=language", total: 2, code: 200},
		{name: "skills unknown category", path: "/api/v1/skills?category=framework", total: 0, code: 200},
		{name: "featured projects", path: "/api/v1/projects?featured=true", total: 1, code: 200},
		{name: "unfeatured projects", path: "/api/v1/projects?featured=false", total: 1, code: 200},
		{name: "projects by company", path: "/api/v1/projects?company_id=" + company.ID, total: 1, code: 200},
		{name: "documents by kind", path: "/api/v1/documents?kind=resume", total: 1, code: 200},
		{name: "documents by kind as admin", path: "/api/v1/documents?kind=resume", token: adminToken, total: 2, code: 200},
		{name: "private documents as visitor", path: "/api/v1/documents?is_public=false", total: 0, code: 200},
		{name: "private documents as admin", path: "/api/v1/documents?is_public=false", token: adminToken, total: 1, code: 200},
		{name: "invalid document kind", path: "/api/v1/documents?kind=diary", code: 422},
		{name: "invalid featured value", path: "/api/v1/projects?featured=maybe", code: 422},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, "GET", tc.path, tc.token, nil)
			if rec.Code != tc.code {
				t.Fatalf("expected status %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			if tc.code != 200 {
				return
			}

			var body struct {
				Items []json.RawMessage `json:"items"`
				Total int64             `json:"total"`
			}
			decode(t, rec, &body)
			if body.Total != tc.total || int64(len(body.Items)) != tc.total {
				t.Fatalf("expected %d items, got total=%d items=%d", tc.total, body.Total, len(body.Items))
			}
		})
	}
}

func TestReorderRoute(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	var ids []string
	for _, name := range []string{"Go", "Rust", "Zig"} {
		rec := doRequest(t, srv, "POST", "/api/v1/skills", adminToken, map[string]any{"name": name})
		if rec.Code != 201 {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var skill portfolio.Skill
		decode(t, rec, &skill)
		ids = append(ids, skill.ID)
	}

	tests := []struct {
		name  string
		token string
		ids   []string
		code  int
	}{
		{name: "anonymous", ids: []string{ids[2], ids[0], ids[1]}, code: 401},
		{name: "empty list", token: adminToken, ids: []string{}, code: 422},
		{name: "duplicates", token: adminToken, ids: []string{ids[0], ids[0]}, code: 422},
		{name: "unknown id", token: adminToken, ids: []string{ids[0], "missing"}, code: 404},
		{name: "reordered", token: adminToken, ids: []string{ids[2], ids[0], ids[1]}, code: 204},
	}
	for _, tc := range tests {
		rec := doRequest(t, srv, "PUT", "/api/v1/skills/order", tc.token, map[string]any{"ids": tc.ids})
		if rec.Code != tc.code {
			t.Fatalf("%s: expected status %d, got %d: %s", tc.name, tc.code, rec.Code, rec.Body.String())
		}
	}

	var listing struct {
		Items []portfolio.Skill `json:"items"`
	}
	decode(t, doRequest(t, srv, "GET", "/api/v1/skills", "", nil), &listing)
	if len(listing.Items) != 3 {
		t.Fatalf("expected three skills, got %d", len(listing.Items))
	}
	for i, want := range []string{"Zig", "Go", "Rust"} {
		if listing.Items[i].Name != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, listing.Items[i].Name)
		}
	}

	// a record update still routes to the {id} operation
	rec := doRequest(t, srv, "PUT", "/api/v1/skills/"+ids[0], adminToken, map[string]any{"name": "Golang"})
	if rec.Code != 200 {
		t.Fatalf("expected status 200 updating skill, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated portfolio.Skill
	decode(t, rec, &updated)
	if updated.Name != "Golang" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}
}

func TestRateLimitKeysOnForwardedClientBehindTrustedProxy(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{
		rateLimit:      RateLimitSettings{Requests: 1, Window: time.Hour},
		trustedProxies: []string{"192.0.2.0/24"},
	})

	send := func(forwardedFor string) int {
		req := httptest.NewRequest("GET", "/api/v1/skills", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec.Code
	}

	steps := []struct {
		forwardedFor string
		code         int
	}{
		{"203.0.113.10", 200},
		{"203.0.113.11", 200},
		{"203.0.113.10", 429},
		{"198.51.100.7, 192.0.2.50", 200},
		{"198.51.100.7", 429},
		{"", 200},
		{"", 429},
	}
	for i, step := range steps {
		if code := send(step.forwardedFor); code != step.code {
			t.Fatalf("step %d (%q): expected status %d, got %d", i, step.forwardedFor, step.code, code)
		}
	}
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{rateLimit: RateLimitSettings{Requests: 2, Window: time.Hour}})

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, srv, "GET", "/api/v1/skills", "", nil); rec.Code != 200 {
			t.Fatalf("request %d: expected status 200, got %d", i, rec.Code)
		}
	}

	rec := doRequest(t, srv, "GET", "/api/v1/skills", "", nil)
	if rec.Code != 429 {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}

	seconds, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || seconds < 1 {
		t.Fatalf("expected positive Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestContactSubmissionAndInbox(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{contactLimit: RateLimitSettings{Requests: 1, Window: time.Hour}})

	payload := map[string]any{
		"name":    "Ada",
		"email":   "Ada@Example.com",
		"message": "<b>Hello</b> there, let's build something.",
	}
	rec := doRequest(t, srv, "POST", "/api/v1/contact", "", payload)
	if rec.Code != 201 {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, "POST", "/api/v1/contact", "", payload)
	if rec.Code != 429 {
		t.Fatalf("expected contact limiter to reject second message, got %d", rec.Code)
	}

	// the general limiter is unaffected
	if rec := doRequest(t, srv, "GET", "/api/v1/skills", "", nil); rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var inbox struct {
		Items []contact.Message `json:"items"`
	}
	decode(t, doRequest(t, srv, "GET", "/api/v1/contacts?unread=true", adminToken, nil), &inbox)
	if len(inbox.Items) != 1 {
		t.Fatalf("expected one unread message, got %d", len(inbox.Items))
	}
	msg := inbox.Items[0]
	if msg.Email != "ada@example.com" || msg.Body != "Hello there, let's build something." {
		t.Fatalf("expected sanitised message, got %+v", msg)
	}

	rec = doRequest(t, srv, "PATCH", "/api/v1/contacts/"+msg.ID, adminToken, map[string]any{"is_read": true})
	if rec.Code != 200 {
		t.Fatalf("expected status 200 marking read, got %d", rec.Code)
	}

	decode(t, doRequest(t, srv, "GET", "/api/v1/contacts?unread=true", adminToken, nil), &inbox)
	if len(inbox.Items) != 0 {
		t.Fatalf("expected no unread messages, got %d", len(inbox.Items))
	}

	if rec := doRequest(t, srv, "DELETE", "/api/v1/contacts/"+msg.ID, adminToken, nil); rec.Code != 204 {
		t.Fatalf("expected status 204 deleting, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, "DELETE", "/api/v1/contacts/"+msg.ID, adminToken, nil); rec.Code != 404 {
		t.Fatalf("expected status 404 deleting twice, got %d", rec.Code)
	}
}

func TestContactValidationFailure(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	rec := doRequest(t, srv, "POST", "/api/v1/contact", "", map[string]any{
		"name":    "Ada",
		"email":   "not-an-email",
		"message": "short",
	})
	if rec.Code != 422 {
		t.Fatalf("expected status 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPageViewAndSummary(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	rec := doRequest(t, srv, "POST", "/api/v1/analytics/pageview", "", map[string]any{"path": "/projects"})
	if rec.Code != 202 {
		t.Fatalf("expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var view struct {
		SessionID string `json:"session_id"`
	}
	decode(t, rec, &view)
	if view.SessionID == "" {
		t.Fatal("expected a session id")
	}

	rec = doRequest(t, srv, "POST", "/api/v1/analytics/pageview", "", map[string]any{"path": "/", "session_id": view.SessionID})
	if rec.Code != 202 {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}

	if rec := doRequest(t, srv, "GET", "/api/v1/analytics/summary", "", nil); rec.Code != 401 {
		t.Fatalf("expected status 401 for anonymous summary, got %d", rec.Code)
	}

	var summary analytics.Summary
	decode(t, doRequest(t, srv, "GET", "/api/v1/analytics/summary?days=7", adminToken, nil), &summary)
	if summary.TotalViews != 2 || summary.UniqueSessions != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestGitHubStatsUnavailable(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{stats: &stubStats{err: eris.Wrap(github.ErrUnavailable, "no snapshot")}})

	rec := doRequest(t, srv, "GET", "/api/v1/github/stats", "", nil)
	if rec.Code != 503 {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}

	var overview struct {
		GitHub struct {
			Available bool `json:"available"`
		} `json:"github"`
	}
	rec = doRequest(t, srv, "GET", "/api/v1/overview", "", nil)
	if rec.Code != 200 {
		t.Fatalf("expected overview to succeed without github, got %d", rec.Code)
	}
	decode(t, rec, &overview)
	if overview.GitHub.Available {
		t.Fatal("expected github to be reported unavailable")
	}
}

func TestGitHubStatsServed(t *testing.T) {
	t.Parallel()

	stats := &stubStats{stats: &github.Stats{
		Profile:   github.Profile{Login: "octocat"},
		FetchedAt: time.Now().UTC(),
		Stale:     true,
	}}
	srv, _ := newTestServer(t, testServerOptions{stats: stats})

	var body github.Stats
	decode(t, doRequest(t, srv, "GET", "/api/v1/github/stats", "", nil), &body)
	if body.Profile.Login != "octocat" || !body.Stale {
		t.Fatalf("unexpected stats: %+v", body)
	}

	if rec := doRequest(t, srv, "POST", "/api/v1/github/stats/refresh", "", nil); rec.Code != 401 {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, "POST", "/api/v1/github/stats/refresh", adminToken, nil); rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if stats.refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", stats.refreshes)
	}
}

func TestGitHubRefreshReturnsStaleSnapshot(t *testing.T) {
	t.Parallel()

	fetchedAt := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	stats := &stubStats{stats: &github.Stats{
		Profile:   github.Profile{Login: "octocat"},
		FetchedAt: fetchedAt,
		Stale:     true,
	}}
	srv, _ := newTestServer(t, testServerOptions{stats: stats})

	rec := doRequest(t, srv, "POST", "/api/v1/github/stats/refresh", adminToken, nil)
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body github.Stats
	decode(t, rec, &body)
	if !body.Stale || !body.FetchedAt.Equal(fetchedAt) || body.Profile.Login != "octocat" {
		t.Fatalf("expected the stale snapshot, got %+v", body)
	}

	stats.stats = nil
	stats.err = eris.Wrap(github.ErrUnavailable, "no snapshot")
	if rec := doRequest(t, srv, "POST", "/api/v1/github/stats/refresh", adminToken, nil); rec.Code != 503 {
		t.Fatalf("expected status 503 without any snapshot, got %d", rec.Code)
	}
}

func TestAuthRoutes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	var login struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
	decode(t, doRequest(t, srv, "GET", "/api/v1/auth/github/login", "", nil), &login)
	if login.URL == "" || login.State == "" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	rec := doRequest(t, srv, "POST", "/api/v1/auth/github/callback", "", map[string]any{"code": "bad", "state": login.State})
	if rec.Code != 401 {
		t.Fatalf("expected status 401 for bad code, got %d", rec.Code)
	}

	var callback struct {
		Token string     `json:"token"`
		User  *auth.User `json:"user"`
	}
	rec = doRequest(t, srv, "POST", "/api/v1/auth/github/callback", "", map[string]any{"code": "good", "state": login.State})
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &callback)
	if callback.Token != adminToken || callback.User == nil || callback.User.Login != "octocat" {
		t.Fatalf("unexpected callback response: %+v", callback)
	}

	var me auth.User
	decode(t, doRequest(t, srv, "GET", "/api/v1/auth/me", adminToken, nil), &me)
	if me.ID != "user-1" {
		t.Fatalf("expected current user, got %+v", me)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, gormDB := newTestServer(t, testServerOptions{})

	rec := doRequest(t, srv, "GET", "/healthz", "", nil)
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}

	if err := db.Close(gormDB); err != nil {
		t.Fatalf("closing database: %v", err)
	}

	rec = doRequest(t, srv, "GET", "/healthz", "", nil)
	if rec.Code != 503 {
		t.Fatalf("expected status 503 after closing database, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	req := httptest.NewRequest("OPTIONS", "/api/v1/contact", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("expected allowed origin, got %q", got)
	}

	req = httptest.NewRequest("OPTIONS", "/api/v1/contact", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allowed origin, got %q", got)
	}
}

type testServerOptions struct {
	stats          StatsProvider
	authDisabled   bool
	rateLimit      RateLimitSettings
	contactLimit   RateLimitSettings
	trustedProxies []string
}

func newTestServer(t *testing.T, opts testServerOptions) (*Server, *gorm.DB) {
	t.Helper()

	gormDB, err := db.Open(db.Options{Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gormDB) })

	logger := plog.Discard()
	ctx := context.Background()
	if err := portfolio.Migrate(ctx, gormDB, logger); err != nil {
		t.Fatalf("portfolio.Migrate returned error: %v", err)
	}
	if err := contact.Migrate(ctx, gormDB, logger); err != nil {
		t.Fatalf("contact.Migrate returned error: %v", err)
	}
	if err := analytics.Migrate(ctx, gormDB, logger); err != nil {
		t.Fatalf("analytics.Migrate returned error: %v", err)
	}

	portfolioSvc, err := portfolio.NewService(gormDB, logger, nil)
	if err != nil {
		t.Fatalf("portfolio.NewService returned error: %v", err)
	}
	validator := validation.New()
	contactSvc, err := contact.NewService(gormDB, validator, logger, nil)
	if err != nil {
		t.Fatalf("contact.NewService returned error: %v", err)
	}
	analyticsSvc, err := analytics.NewService(gormDB, validator, logger, nil)
	if err != nil {
		t.Fatalf("analytics.NewService returned error: %v", err)
	}

	stats := opts.stats
	if stats == nil {
		stats = &stubStats{err: github.ErrUnavailable}
	}
	rateLimit := opts.rateLimit
	if rateLimit.Requests == 0 {
		rateLimit = RateLimitSettings{Requests: 1000, Window: time.Minute}
	}
	contactLimit := opts.contactLimit
	if contactLimit.Requests == 0 {
		contactLimit = RateLimitSettings{Requests: 1000, Window: time.Minute}
	}

	trusted, err := config.ParseCIDRs(opts.trustedProxies)
	if err != nil {
		t.Fatalf("config.ParseCIDRs returned error: %v", err)
	}

	srv, err := NewServer(Options{
		Portfolio:        portfolioSvc,
		Contacts:         contactSvc,
		Analytics:        analyticsSvc,
		GitHub:           stats,
		Auth:             &stubAuth{disabled: opts.authDisabled},
		Database:         gormDB,
		Logger:           logger,
		CORSOrigins:      []string{"https://example.com"},
		IPHashSalt:       "salt",
		TrustedProxies:   trusted,
		RateLimit:        rateLimit,
		ContactRateLimit: contactLimit,
	})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}

	return srv, gormDB
}

func doRequest(t *testing.T, srv *Server, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encoding payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func createDocument(t *testing.T, srv *Server, title string, public bool) string {
	t.Helper()

	rec := doRequest(t, srv, "POST", "/api/v1/documents", adminToken, map[string]any{
		"title":     title,
		"kind":      "other",
		"url":       "https://example.com/" + title,
		"is_public": public,
	})
	if rec.Code != 201 {
		t.Fatalf("expected status 201 creating document, got %d: %s", rec.Code, rec.Body.String())
	}

	var doc portfolio.Document
	decode(t, rec, &doc)
	return doc.ID
}

// stubs

type stubStats struct {
	stats     *github.Stats
	err       error
	refreshes int
}

func (s *stubStats) Stats(context.Context) (*github.Stats, error) {
	return s.stats, s.err
}

func (s *stubStats) Refresh(context.Context) (*github.Stats, error) {
	s.refreshes++
	return s.stats, s.err
}

type stubAuth struct {
	disabled bool
}

func (a *stubAuth) Configured() bool { return !a.disabled }

func (a *stubAuth) LoginURL(context.Context) (string, string, error) {
	return "https://github.com/login/oauth/authorize?state=abc", "abc", nil
}

func (a *stubAuth) Complete(_ context.Context, code, state string) (string, *auth.User, error) {
	if state != "abc" {
		return "", nil, auth.ErrInvalidState
	}
	if code != "good" {
		return "", nil, eris.Wrap(auth.ErrUnauthorized, "exchanging code")
	}
	return adminToken, &auth.User{ID: "user-1", Login: "octocat", IsAdmin: true}, nil
}

func (a *stubAuth) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	if token != adminToken {
		return nil, auth.ErrUnauthorized
	}
	claims := &auth.Claims{Login: "octocat"}
	claims.Subject = "user-1"
	return claims, nil
}

func (a *stubAuth) Me(_ context.Context, userID string) (*auth.User, error) {
	if userID != "user-1" {
		return nil, auth.ErrUnauthorized
	}
	return &auth.User{ID: userID, Login: "octocat", IsAdmin: true}, nil
}
