package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolio/api/internal/analytics"
	"portfolio/api/internal/auth"
	"portfolio/api/internal/contact"
	"portfolio/api/internal/github"
	"portfolio/api/internal/portfolio"
)

const apiPrefix = "/api/v1"

// StatsProvider serves GitHub statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (*github.Stats, error)
	Refresh(ctx context.Context) (*github.Stats, error)
}

// Authenticator implements admin login and session checks.
type Authenticator interface {
	Configured() bool
	LoginURL(ctx context.Context) (string, string, error)
	Complete(ctx context.Context, code, state string) (string, *auth.User, error)
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
	Me(ctx context.Context, userID string) (*auth.User, error)
}

var (
	_ StatsProvider = (*github.StatsService)(nil)
	_ Authenticator = (*auth.Service)(nil)
)

// Options configures the HTTP server wiring.
type Options struct {
	Portfolio *portfolio.Service
	Contacts  contact.Service
	Analytics analytics.Service
	GitHub    StatsProvider
	Auth      Authenticator
	Database  *gorm.DB
	Logger    *logrus.Logger
	SentryHub *sentry.Hub

	TrustedProxies   []*net.IPNet
	CORSOrigins      []string
	IPHashSalt       string
	RateLimit        RateLimitSettings
	ContactRateLimit RateLimitSettings
}

// RateLimitSettings configures a fixed-window limiter.
type RateLimitSettings struct {
	Requests int
	Window   time.Duration
}

// Server wires the JSON API via Huma.
type Server struct {
	api       huma.API
	mux       *stdhttp.ServeMux
	handler   stdhttp.Handler
	portfolio *portfolio.Service
	contacts  contact.Service
	analytics analytics.Service
	github    StatsProvider
	auth      Authenticator
	logger    *logrus.Logger
	sentry    *sentry.Hub
	db        *gorm.DB

	trustedProxies     []*net.IPNet
	ipHashSalt         string
	rateLimiter        *RateLimiter
	contactRateLimiter *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Portfolio == nil {
		return nil, eris.New("portfolio service is required")
	}
	if opts.Contacts == nil {
		return nil, eris.New("contact service is required")
	}
	if opts.Analytics == nil {
		return nil, eris.New("analytics service is required")
	}
	if opts.GitHub == nil {
		return nil, eris.New("github stats provider is required")
	}
	if opts.Auth == nil {
		return nil, eris.New("authenticator is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	for name, settings := range map[string]RateLimitSettings{"rate limiter": opts.RateLimit, "contact rate limiter": opts.ContactRateLimit} {
		if settings.Requests <= 0 {
			return nil, eris.Errorf("%s requests must be greater than zero", name)
		}
		if settings.Window <= 0 {
			return nil, eris.Errorf("%s window must be greater than zero", name)
		}
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Portfolio API", "1.0.0")
	config.Info.Description = "Content API for a personal portfolio."
	if config.Components.SecuritySchemes == nil {
		config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	config.Components.SecuritySchemes[bearerScheme] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}

	api := humago.New(mux, config)

	srv := &Server{
		api:                api,
		mux:                mux,
		portfolio:          opts.Portfolio,
		contacts:           opts.Contacts,
		analytics:          opts.Analytics,
		github:             opts.GitHub,
		auth:               opts.Auth,
		logger:             opts.Logger,
		sentry:             opts.SentryHub,
		db:                 opts.Database,
		trustedProxies:     opts.TrustedProxies,
		ipHashSalt:         opts.IPHashSalt,
		rateLimiter:        NewRateLimiter(opts.RateLimit.Requests, opts.RateLimit.Window),
		contactRateLimiter: NewRateLimiter(opts.ContactRateLimit.Requests, opts.ContactRateLimit.Window),
	}

	srv.registerMiddlewares()
	srv.registerRoutes()
	srv.handler = corsHandler(opts.CORSOrigins, mux)

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.handler
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.clientIPMiddleware(),
		s.rateLimitMiddleware(),
		s.authMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	registerResource[portfolio.Company, portfolio.CompanyInput, listInput](s, s.portfolio.Companies, resourceOptions[portfolio.Company]{
		tag: "Companies", singular: "company",
	})
	registerResource[portfolio.Project, portfolio.ProjectInput, projectListInput](s, s.portfolio.Projects, resourceOptions[portfolio.Project]{
		tag: "Projects", singular: "project",
	})
	registerResource[portfolio.Skill, portfolio.SkillInput, skillListInput](s, s.portfolio.Skills, resourceOptions[portfolio.Skill]{
		tag: "Skills", singular: "skill",
	})
	registerResource[portfolio.Education, portfolio.EducationInput, listInput](s, s.portfolio.Education, resourceOptions[portfolio.Education]{
		tag: "Education", singular: "education-entry",
	})
	registerResource[portfolio.Document, portfolio.DocumentInput, documentListInput](s, s.portfolio.Documents, resourceOptions[portfolio.Document]{
		tag:           "Documents",
		singular:      "document",
		publicFilters: map[string]any{"is_public": true},
		visible:       func(d *portfolio.Document) bool { return d.IsPublic },
	})

	s.registerOverviewRoute()
	s.registerGitHubRoutes()
	s.registerContactRoutes()
	s.registerAnalyticsRoutes()
	s.registerAuthRoutes()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.handler.ServeHTTP(w, r)
}
