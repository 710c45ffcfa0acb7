package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the portfolio API.
type Config struct {
	DBDriver      string
	DBPath        string
	DatabaseURL   string
	ServerPort    int
	LogLevel      string
	LogFile       string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration
	CORSOrigins   []string
	IPHashSalt    string

	TrustedProxies []*net.IPNet

	RateLimit        RateLimit
	ContactRateLimit RateLimit

	GitHub GitHub
	OAuth  OAuth
}

// RateLimit describes a fixed-window request budget.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// GitHub configures the statistics client.
type GitHub struct {
	Username    string
	Token       string
	APIURL      string
	MaxRepos    int
	StatsTTL    time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	Timeout     time.Duration
}

// OAuth configures the GitHub admin login.
type OAuth struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AdminLogins  []string
	JWTSecret    string
	JWTTTL       time.Duration
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const (
	defaultDBDriver      = DriverSQLite
	defaultDBPath        = "./data/portfolio.db"
	defaultServerPort    = 8080
	defaultLogLevel      = "info"
	defaultEnvironment   = "development"
	defaultShutdownGrace = 10 * time.Second

	defaultRateLimitRequests        = 120
	defaultRateLimitWindow          = time.Minute
	defaultContactRateLimitRequests = 5
	defaultContactRateLimitWindow   = time.Hour

	defaultGitHubMaxRepos    = 100
	defaultGitHubStatsTTL    = time.Hour
	defaultGitHubMaxRetries  = 3
	defaultGitHubBackoffBase = time.Second
	defaultGitHubTimeout     = 10 * time.Second

	defaultJWTTTL = 24 * time.Hour
)

// DefaultTrustedProxies covers loopback and private network ranges.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
}

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", defaultDBDriver)),
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LogFile:       os.Getenv("LOG_FILE"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		ShutdownGrace: defaultShutdownGrace,
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		IPHashSalt:    os.Getenv("IP_HASH_SALT"),
		GitHub: GitHub{
			Username: os.Getenv("GITHUB_USERNAME"),
			Token:    os.Getenv("GITHUB_TOKEN"),
			APIURL:   os.Getenv("GITHUB_API_URL"),
		},
		OAuth: OAuth{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
			AdminLogins:  splitList(os.Getenv("ADMIN_GITHUB_LOGINS")),
			JWTSecret:    os.Getenv("JWT_SECRET"),
		},
	}

	var err error

	if cfg.ServerPort, err = intEnv("SERVER_PORT", defaultServerPort); err != nil {
		return nil, err
	}

	if cfg.RateLimit.Requests, err = intEnv("RATE_LIMIT_REQUESTS", defaultRateLimitRequests); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Window, err = durationEnv("RATE_LIMIT_WINDOW", defaultRateLimitWindow); err != nil {
		return nil, err
	}
	if cfg.ContactRateLimit.Requests, err = intEnv("CONTACT_RATE_LIMIT_REQUESTS", defaultContactRateLimitRequests); err != nil {
		return nil, err
	}
	if cfg.ContactRateLimit.Window, err = durationEnv("CONTACT_RATE_LIMIT_WINDOW", defaultContactRateLimitWindow); err != nil {
		return nil, err
	}

	if cfg.GitHub.MaxRepos, err = intEnv("GITHUB_MAX_REPOS", defaultGitHubMaxRepos); err != nil {
		return nil, err
	}
	if cfg.GitHub.StatsTTL, err = durationEnv("GITHUB_STATS_TTL", defaultGitHubStatsTTL); err != nil {
		return nil, err
	}
	if cfg.GitHub.MaxRetries, err = intEnv("GITHUB_MAX_RETRIES", defaultGitHubMaxRetries); err != nil {
		return nil, err
	}
	if cfg.GitHub.BackoffBase, err = durationEnv("GITHUB_BACKOFF_BASE", defaultGitHubBackoffBase); err != nil {
		return nil, err
	}
	if cfg.GitHub.Timeout, err = durationEnv("GITHUB_TIMEOUT", defaultGitHubTimeout); err != nil {
		return nil, err
	}

	if cfg.OAuth.JWTTTL, err = durationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}

	proxies := DefaultTrustedProxies
	if raw := os.Getenv("TRUSTED_PROXIES"); raw != "" {
		proxies = splitList(raw)
	}
	if cfg.TrustedProxies, err = ParseCIDRs(proxies); err != nil {
		return nil, eris.Wrap(err, "parsing TRUSTED_PROXIES")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that individual parsers cannot.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return eris.New("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres, DriverMySQL:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return eris.Errorf("DATABASE_URL is required for the %s driver", c.DBDriver)
		}
	default:
		return eris.Errorf("unsupported DB_DRIVER value: %s", c.DBDriver)
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return eris.New("rate limit requests and window must be greater than zero")
	}
	if c.ContactRateLimit.Requests <= 0 || c.ContactRateLimit.Window <= 0 {
		return eris.New("contact rate limit requests and window must be greater than zero")
	}

	return nil
}

// OAuthConfigured reports whether admin login can be offered.
func (c *Config) OAuthConfigured() bool {
	return c.OAuth.ClientID != "" && c.OAuth.ClientSecret != "" && c.OAuth.JWTSecret != ""
}

// ParseCIDRs parses a list of CIDR blocks; bare addresses are treated as single-host networks.
func ParseCIDRs(values []string) ([]*net.IPNet, error) {
	networks := make([]*net.IPNet, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		if !strings.Contains(value, "/") {
			ip := net.ParseIP(value)
			if ip == nil {
				return nil, eris.Errorf("invalid proxy address: %s", value)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			networks = append(networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}

		_, network, err := net.ParseCIDR(value)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid CIDR value: %s", value)
		}
		networks = append(networks, network)
	}
	return networks, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	value := getEnv(key, strconv.Itoa(fallback))
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	return parsed, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	return parsed, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
