package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v80/github"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
	"gorm.io/gorm"

	"portfolio/api/internal/portfolio"
)

var (
	// ErrNotConfigured means OAuth credentials or the JWT secret are missing.
	ErrNotConfigured = eris.New("admin login is not configured")
	// ErrInvalidState means the OAuth state parameter is missing, forged or expired.
	ErrInvalidState = eris.New("invalid oauth state")
	// ErrUnauthorized means the bearer token or OAuth code was rejected.
	ErrUnauthorized = eris.New("unauthorized")
	// ErrForbidden means the GitHub account is not an administrator.
	ErrForbidden = eris.New("account is not allowed to administer this site")
)

const defaultSessionTTL = 24 * time.Hour

var oauthScopes = []string{"read:user", "user:email"}

// Options configures the auth service.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	JWTSecret    string
	SessionTTL   time.Duration
	AdminLogins  []string
	// Endpoint and APIBaseURL override GitHub's OAuth and REST endpoints.
	Endpoint   *oauth2.Endpoint
	APIBaseURL string
}

// Service implements GitHub OAuth login for administrators and session token checks.
type Service struct {
	db         *gorm.DB
	oauth      *oauth2.Config
	signer     signer
	sessionTTL time.Duration
	admins     map[string]struct{}
	apiBaseURL string
	configured bool
	logger     *logrus.Logger
	sentryHub  *sentry.Hub
	now        func() time.Time
}

// NewService wires the auth service. Missing credentials do not fail construction; every
// operation then returns ErrNotConfigured.
func NewService(db *gorm.DB, opts Options, logger *logrus.Logger, hub *sentry.Hub) (*Service, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	endpoint := oauthgithub.Endpoint
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}

	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}

	admins := make(map[string]struct{}, len(opts.AdminLogins))
	for _, login := range opts.AdminLogins {
		if trimmed := strings.ToLower(strings.TrimSpace(login)); trimmed != "" {
			admins[trimmed] = struct{}{}
		}
	}

	s := &Service{
		db: db,
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       oauthScopes,
			Endpoint:     endpoint,
		},
		sessionTTL: opts.SessionTTL,
		admins:     admins,
		apiBaseURL: opts.APIBaseURL,
		configured: opts.ClientID != "" && opts.ClientSecret != "" && opts.JWTSecret != "",
		logger:     logger,
		sentryHub:  hub,
		now:        time.Now,
	}
	s.signer = signer{secret: []byte(opts.JWTSecret), now: func() time.Time { return s.now() }}

	return s, nil
}

// Migrate creates the users table.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	return portfolio.AutoMigrate(ctx, db, logger, "auth", &User{})
}

// Configured reports whether admin login is available.
func (s *Service) Configured() bool {
	return s.configured
}

// LoginURL returns the GitHub authorization URL and the signed state embedded in it.
func (s *Service) LoginURL(_ context.Context) (string, string, error) {
	if !s.configured {
		return "", "", ErrNotConfigured
	}

	state, err := s.signer.sign(s.signer.registered("", audienceState, stateTTL))
	if err != nil {
		return "", "", err
	}

	return s.oauth.AuthCodeURL(state), state, nil
}

// Complete finishes the OAuth flow: it checks state, exchanges code, verifies the GitHub
// account is an administrator, records the user and returns a session token.
func (s *Service) Complete(ctx context.Context, code, state string) (string, *User, error) {
	if !s.configured {
		return "", nil, ErrNotConfigured
	}

	if err := s.signer.parse(state, audienceState, &jwt.RegisteredClaims{}); err != nil {
		return "", nil, eris.Wrap(ErrInvalidState, err.Error())
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil, eris.Wrap(ErrUnauthorized, "authorization code is required")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log(logrus.WarnLevel, logrus.Fields{"error": err.Error()}, "oauth code exchange failed")
		return "", nil, eris.Wrap(ErrUnauthorized, "exchanging authorization code")
	}

	account, err := s.fetchAccount(ctx, token)
	if err != nil {
		return "", nil, err
	}

	if !s.isAdmin(account.GetLogin()) {
		s.log(logrus.WarnLevel, logrus.Fields{"login": account.GetLogin()}, "rejected non-admin login")
		return "", nil, eris.Wrapf(ErrForbidden, "login %s", account.GetLogin())
	}

	user, err := s.upsertUser(ctx, account)
	if err != nil {
		return "", nil, err
	}

	claims := &Claims{
		Login:            user.Login,
		RegisteredClaims: s.signer.registered(user.ID, audienceSession, s.sessionTTL),
	}
	session, err := s.signer.sign(claims)
	if err != nil {
		s.recordError(err, "signing session token")
		return "", nil, err
	}

	s.log(logrus.InfoLevel, logrus.Fields{"login": user.Login, "user_id": user.ID}, "admin signed in")
	return session, user, nil
}

// Authenticate validates a session token and returns its claims. Tokens whose login has
// since been removed from the admin list are rejected.
func (s *Service) Authenticate(_ context.Context, token string) (*Claims, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	claims := &Claims{}
	if err := s.signer.parse(token, audienceSession, claims); err != nil {
		return nil, eris.Wrap(ErrUnauthorized, err.Error())
	}
	if claims.Subject == "" {
		return nil, eris.Wrap(ErrUnauthorized, "token has no subject")
	}
	if !s.isAdmin(claims.Login) {
		return nil, eris.Wrapf(ErrForbidden, "login %s", claims.Login)
	}
	return claims, nil
}

func (s *Service) isAdmin(login string) bool {
	_, ok := s.admins[strings.ToLower(strings.TrimSpace(login))]
	return ok
}

// Me loads the signed-in user.
func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, eris.Wrapf(ErrUnauthorized, "user %s no longer exists", userID)
	}
	if err != nil {
		s.recordError(err, "loading user")
		return nil, eris.Wrapf(err, "loading user: %s", userID)
	}
	return &user, nil
}

func (s *Service) fetchAccount(ctx context.Context, token *oauth2.Token) (*gh.User, error) {
	client := gh.NewClient(s.oauth.Client(ctx, token))
	if s.apiBaseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(s.apiBaseURL, "/") + "/")
		if err != nil {
			return nil, eris.Wrapf(err, "parsing github base URL: %s", s.apiBaseURL)
		}
		client.BaseURL = baseURL
	}

	account, _, err := client.Users.Get(ctx, "")
	if err != nil {
		s.log(logrus.WarnLevel, logrus.Fields{"error": err.Error()}, "fetching github account failed")
		return nil, eris.Wrap(ErrUnauthorized, "fetching github account")
	}
	if account.GetLogin() == "" || account.GetID() == 0 {
		return nil, eris.Wrap(ErrUnauthorized, "github account is incomplete")
	}
	return account, nil
}

func (s *Service) upsertUser(ctx context.Context, account *gh.User) (*User, error) {
	now := s.now().UTC()
	var user User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("github_id = ?", account.GetID()).First(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return eris.Wrap(err, "looking up user")
		}

		user.GitHubID = account.GetID()
		user.Login = account.GetLogin()
		user.Name = account.GetName()
		user.Email = account.GetEmail()
		user.AvatarURL = account.GetAvatarURL()
		user.IsAdmin = true
		user.LastLoginAt = &now

		if err := tx.Save(&user).Error; err != nil {
			return eris.Wrap(err, "saving user")
		}
		return nil
	})
	if err != nil {
		s.recordError(err, "upserting user")
		return nil, err
	}

	return &user, nil
}

func (s *Service) log(level logrus.Level, fields logrus.Fields, message string) {
	if s.logger == nil {
		return
	}
	s.logger.WithField("component", "auth").WithFields(fields).Log(level, message)
}

func (s *Service) recordError(err error, message string) {
	s.log(logrus.ErrorLevel, logrus.Fields{"error": err.Error()}, message)
	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
