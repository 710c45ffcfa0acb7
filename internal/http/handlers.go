package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"portfolio/api/internal/analytics"
	"portfolio/api/internal/auth"
	"portfolio/api/internal/contact"
	"portfolio/api/internal/db"
	"portfolio/api/internal/github"
	"portfolio/api/internal/portfolio"
)

const (
	defaultSummaryDays = 30
	overviewGitHubWait = 3 * time.Second
)

type userAgentInput struct {
	UserAgent string `header:"User-Agent"`
}

type overviewResponse struct {
	Body struct {
		Counts portfolio.Counts `json:"counts"`
		GitHub struct {
			Available bool       `json:"available"`
			Stale     bool       `json:"stale"`
			FetchedAt *time.Time `json:"fetched_at,omitempty"`
		} `json:"github"`
	}
}

type statsResponse struct {
	Body *github.Stats
}

type contactInput struct {
	userAgentInput
	Body contact.Input
}

type contactCreatedResponse struct {
	Body struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
}

type contactListInput struct {
	Unread bool `query:"unread" doc:"Only return unread messages."`
	Limit  int  `query:"limit" minimum:"0" maximum:"200"`
	Offset int  `query:"offset" minimum:"0"`
}

type contactListResponse struct {
	Body struct {
		Items []contact.Message `json:"items"`
	}
}

type contactUpdateInput struct {
	ID   string `path:"id" maxLength:"36"`
	Body struct {
		IsRead bool `json:"is_read"`
	}
}

type contactResponse struct {
	Body *contact.Message
}

type pageViewInput struct {
	userAgentInput
	Body analytics.PageViewInput
}

type pageViewResponse struct {
	Body struct {
		SessionID string `json:"session_id"`
	}
}

type summaryInput struct {
	Days int `query:"days" minimum:"1" maximum:"365" doc:"Size of the reporting window in days (default 30)."`
}

type summaryResponse struct {
	Body *analytics.Summary
}

type loginResponse struct {
	Body struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
}

type callbackInput struct {
	Body struct {
		Code  string `json:"code" minLength:"1"`
		State string `json:"state" minLength:"1"`
	}
}

type callbackResponse struct {
	Body struct {
		Token string     `json:"token"`
		User  *auth.User `json:"user"`
	}
}

type userResponse struct {
	Body *auth.User
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerOverviewRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-overview",
		Method:      stdhttp.MethodGet,
		Path:        apiPrefix + "/overview",
		Summary:     "Record counts per resource and GitHub availability",
		Tags:        []string{"Overview"},
	}, s.overviewHandler)
}

func (s *Server) registerGitHubRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-github-stats",
		Method:      stdhttp.MethodGet,
		Path:        apiPrefix + "/github/stats",
		Summary:     "GitHub profile, repository and language statistics",
		Tags:        []string{"GitHub"},
		Errors:      []int{stdhttp.StatusServiceUnavailable},
	}, s.githubStatsHandler)

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID: "refresh-github-stats",
		Method:      stdhttp.MethodPost,
		Path:        apiPrefix + "/github/stats/refresh",
		Summary:     "Refetch GitHub statistics",
		Tags:        []string{"GitHub"},
		Errors:      []int{stdhttp.StatusServiceUnavailable},
	}), s.githubRefreshHandler)
}

func (s *Server) registerContactRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "submit-contact",
		Method:        stdhttp.MethodPost,
		Path:          apiPrefix + "/contact",
		Summary:       "Submit the contact form",
		Tags:          []string{"Contact"},
		DefaultStatus: stdhttp.StatusCreated,
		Errors:        []int{stdhttp.StatusUnprocessableEntity, stdhttp.StatusTooManyRequests},
		Middlewares:   huma.Middlewares{s.contactRateLimit()},
	}, s.submitContactHandler)

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID: "list-contacts",
		Method:      stdhttp.MethodGet,
		Path:        apiPrefix + "/contacts",
		Summary:     "List contact messages, newest first",
		Tags:        []string{"Contact"},
	}), s.listContactsHandler)

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID: "update-contact",
		Method:      stdhttp.MethodPatch,
		Path:        apiPrefix + "/contacts/{id}",
		Summary:     "Mark a contact message read or unread",
		Tags:        []string{"Contact"},
		Errors:      []int{stdhttp.StatusNotFound},
	}), s.updateContactHandler)

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID:   "delete-contact",
		Method:        stdhttp.MethodDelete,
		Path:          apiPrefix + "/contacts/{id}",
		Summary:       "Delete a contact message",
		Tags:          []string{"Contact"},
		DefaultStatus: stdhttp.StatusNoContent,
		Errors:        []int{stdhttp.StatusNotFound},
	}), s.deleteContactHandler)
}

func (s *Server) registerAnalyticsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "record-pageview",
		Method:        stdhttp.MethodPost,
		Path:          apiPrefix + "/analytics/pageview",
		Summary:       "Record a page view",
		Tags:          []string{"Analytics"},
		DefaultStatus: stdhttp.StatusAccepted,
		Errors:        []int{stdhttp.StatusUnprocessableEntity},
	}, s.pageViewHandler)

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID: "get-analytics-summary",
		Method:      stdhttp.MethodGet,
		Path:        apiPrefix + "/analytics/summary",
		Summary:     "Traffic summary",
		Tags:        []string{"Analytics"},
	}), s.analyticsSummaryHandler)
}

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "github-login",
		Method:      stdhttp.MethodGet,
		Path:        apiPrefix + "/auth/github/login",
		Summary:     "Start GitHub OAuth login",
		Tags:        []string{"Auth"},
		Errors:      []int{stdhttp.StatusServiceUnavailable},
	}, s.loginHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "github-callback",
		Method:      stdhttp.MethodPost,
		Path:        apiPrefix + "/auth/github/callback",
		Summary:     "Complete GitHub OAuth login",
		Tags:        []string{"Auth"},
		Errors: []int{
			stdhttp.StatusBadRequest, stdhttp.StatusUnauthorized,
			stdhttp.StatusForbidden, stdhttp.StatusServiceUnavailable,
		},
	}, s.callbackHandler)

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID: "get-me",
		Method:      stdhttp.MethodGet,
		Path:        apiPrefix + "/auth/me",
		Summary:     "Current administrator",
		Tags:        []string{"Auth"},
	}), s.meHandler)
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
		op.Tags = []string{"Health"}
	})
}

func (s *Server) overviewHandler(ctx context.Context, _ *struct{}) (*overviewResponse, error) {
	counts, err := s.portfolio.Counts(ctx, isAdmin(ctx))
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "counting resources", nil)
	}

	resp := &overviewResponse{}
	resp.Body.Counts = counts

	statsCtx, cancel := context.WithTimeout(ctx, overviewGitHubWait)
	defer cancel()
	if stats, err := s.github.Stats(statsCtx); err == nil {
		resp.Body.GitHub.Available = true
		resp.Body.GitHub.Stale = stats.Stale
		fetchedAt := stats.FetchedAt
		resp.Body.GitHub.FetchedAt = &fetchedAt
	}

	return resp, nil
}

func (s *Server) githubStatsHandler(ctx context.Context, _ *struct{}) (*statsResponse, error) {
	stats, err := s.github.Stats(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "loading github stats", nil)
	}
	return &statsResponse{Body: stats}, nil
}

func (s *Server) githubRefreshHandler(ctx context.Context, _ *struct{}) (*statsResponse, error) {
	stats, err := s.github.Refresh(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "refreshing github stats", nil)
	}
	return &statsResponse{Body: stats}, nil
}

func (s *Server) submitContactHandler(ctx context.Context, input *contactInput) (*contactCreatedResponse, error) {
	message, err := s.contacts.Submit(ctx, input.Body, contact.Meta{
		IPHash:    analytics.HashIP(s.ipHashSalt, ClientIPFromContext(ctx)),
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "submitting contact message", nil)
	}

	resp := &contactCreatedResponse{}
	resp.Body.ID = message.ID
	resp.Body.Message = "Thanks for reaching out!"
	return resp, nil
}

func (s *Server) listContactsHandler(ctx context.Context, input *contactListInput) (*contactListResponse, error) {
	messages, err := s.contacts.List(ctx, contact.ListOptions{
		UnreadOnly: input.Unread,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing contact messages", nil)
	}

	resp := &contactListResponse{}
	resp.Body.Items = messages
	if resp.Body.Items == nil {
		resp.Body.Items = []contact.Message{}
	}
	return resp, nil
}

func (s *Server) updateContactHandler(ctx context.Context, input *contactUpdateInput) (*contactResponse, error) {
	message, err := s.contacts.MarkRead(ctx, input.ID, input.Body.IsRead)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating contact message", logrus.Fields{"id": input.ID})
	}
	return &contactResponse{Body: message}, nil
}

func (s *Server) deleteContactHandler(ctx context.Context, input *idInput) (*struct{}, error) {
	if err := s.contacts.Delete(ctx, input.ID); err != nil {
		return nil, s.toHTTPError(ctx, err, "deleting contact message", logrus.Fields{"id": input.ID})
	}
	return nil, nil
}

func (s *Server) pageViewHandler(ctx context.Context, input *pageViewInput) (*pageViewResponse, error) {
	sessionID, err := s.analytics.RecordPageView(ctx, input.Body, analytics.Meta{
		IPHash:    analytics.HashIP(s.ipHashSalt, ClientIPFromContext(ctx)),
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "recording page view", logrus.Fields{"path": input.Body.Path})
	}

	resp := &pageViewResponse{}
	resp.Body.SessionID = sessionID
	return resp, nil
}

func (s *Server) analyticsSummaryHandler(ctx context.Context, input *summaryInput) (*summaryResponse, error) {
	days := input.Days
	if days == 0 {
		days = defaultSummaryDays
	}

	since := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	summary, err := s.analytics.Summary(ctx, since)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "summarising analytics", nil)
	}
	return &summaryResponse{Body: summary}, nil
}

func (s *Server) loginHandler(ctx context.Context, _ *struct{}) (*loginResponse, error) {
	url, state, err := s.auth.LoginURL(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "building login url", nil)
	}

	resp := &loginResponse{}
	resp.Body.URL = url
	resp.Body.State = state
	return resp, nil
}

func (s *Server) callbackHandler(ctx context.Context, input *callbackInput) (*callbackResponse, error) {
	token, user, err := s.auth.Complete(ctx, input.Body.Code, input.Body.State)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "completing login", nil)
	}

	resp := &callbackResponse{}
	resp.Body.Token = token
	resp.Body.User = user
	return resp, nil
}

func (s *Server) meHandler(ctx context.Context, _ *struct{}) (*userResponse, error) {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}

	user, err := s.auth.Me(ctx, claims.UserID())
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "loading current user", nil)
	}
	return &userResponse{Body: user}, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	if err := db.Ping(ctx, s.db); err != nil {
		s.recordError(ctx, eris.Wrap(err, "health check"), "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	return resp, nil
}
