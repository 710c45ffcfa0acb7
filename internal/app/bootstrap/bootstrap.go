package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolio/api/internal/analytics"
	"portfolio/api/internal/auth"
	"portfolio/api/internal/config"
	"portfolio/api/internal/contact"
	"portfolio/api/internal/db"
	"portfolio/api/internal/github"
	apphttp "portfolio/api/internal/http"
	"portfolio/api/internal/portfolio"
	"portfolio/api/internal/validation"
)

type Dependencies struct {
	Config    *config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	Portfolio  *portfolio.Service
	GitHub     *github.StatsService
	HTTPServer *apphttp.Server
	Database   *gorm.DB
	Cleanup    func() error
}

// OpenDatabase connects to the database selected by the configuration.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	conn, err := db.Open(db.Options{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		DSN:    cfg.DatabaseURL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "opening database")
	}
	return conn, nil
}

// Migrate creates or updates every table the API owns.
func Migrate(ctx context.Context, conn *gorm.DB, logger *logrus.Logger) error {
	steps := []struct {
		name string
		run  func(context.Context, *gorm.DB, *logrus.Logger) error
	}{
		{"portfolio", portfolio.Migrate},
		{"contact", contact.Migrate},
		{"analytics", analytics.Migrate},
		{"auth", auth.Migrate},
	}

	for _, step := range steps {
		if err := step.run(ctx, conn, logger); err != nil {
			return eris.Wrapf(err, "running %s migrations", step.name)
		}
	}
	return nil
}

// NewGitHubStats builds the GitHub client and the caching stats service on top of it.
func NewGitHubStats(cfg *config.Config, logger *logrus.Logger) (*github.StatsService, *github.Client, error) {
	client := github.NewClient(github.Options{
		Token:       cfg.GitHub.Token,
		BaseURL:     cfg.GitHub.APIURL,
		Timeout:     cfg.GitHub.Timeout,
		MaxRetries:  cfg.GitHub.MaxRetries,
		BackoffBase: cfg.GitHub.BackoffBase,
		Logger:      logger,
	})

	stats, err := github.NewStatsService(client, github.StatsOptions{
		Username: cfg.GitHub.Username,
		MaxRepos: cfg.GitHub.MaxRepos,
		TTL:      cfg.GitHub.StatsTTL,
		Logger:   logger,
	})
	if err != nil {
		client.Close()
		return nil, nil, eris.Wrap(err, "creating github stats service")
	}

	return stats, client, nil
}

// Build composes the application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	if deps.Config == nil {
		return Result{}, eris.New("configuration is required")
	}
	cfg := deps.Config

	conn, err := OpenDatabase(cfg)
	if err != nil {
		return Result{}, err
	}

	var ghClient *github.Client
	closeOnError := func(wrapper error) (Result, error) {
		if ghClient != nil {
			ghClient.Close()
		}
		if closeErr := db.Close(conn); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := Migrate(ctx, conn, deps.Logger); err != nil {
		return closeOnError(err)
	}

	portfolioService, err := portfolio.NewService(conn, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating portfolio service"))
	}

	validator := validation.New()
	contactService, err := contact.NewService(conn, validator, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating contact service"))
	}

	analyticsService, err := analytics.NewService(conn, validator, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating analytics service"))
	}

	statsService, client, err := NewGitHubStats(cfg, deps.Logger)
	if err != nil {
		return closeOnError(err)
	}
	ghClient = client

	authService, err := auth.NewService(conn, auth.Options{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.RedirectURL,
		JWTSecret:    cfg.OAuth.JWTSecret,
		SessionTTL:   cfg.OAuth.JWTTTL,
		AdminLogins:  cfg.OAuth.AdminLogins,
	}, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating auth service"))
	}
	if !authService.Configured() && deps.Logger != nil {
		deps.Logger.Warn("github oauth is not configured; admin routes will answer 503")
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Portfolio:      portfolioService,
		Contacts:       contactService,
		Analytics:      analyticsService,
		GitHub:         statsService,
		Auth:           authService,
		Database:       conn,
		Logger:         deps.Logger,
		SentryHub:      deps.SentryHub,
		TrustedProxies: cfg.TrustedProxies,
		CORSOrigins:    cfg.CORSOrigins,
		IPHashSalt:     cfg.IPHashSalt,
		RateLimit: apphttp.RateLimitSettings{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
		ContactRateLimit: apphttp.RateLimitSettings{
			Requests: cfg.ContactRateLimit.Requests,
			Window:   cfg.ContactRateLimit.Window,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		ghClient.Close()
		return db.Close(conn)
	}

	return Result{
		Portfolio:  portfolioService,
		GitHub:     statsService,
		HTTPServer: httpServer,
		Database:   conn,
		Cleanup:    cleanup,
	}, nil
}
