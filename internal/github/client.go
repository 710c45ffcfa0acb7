package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultBackoffBase = time.Second
	defaultMaxRepos    = 100
	maxPerPage         = 100
	languageWorkers    = 4
)

// Options configures a Client.
type Options struct {
	Token string
	// BaseURL overrides https://api.github.com/, mainly for tests.
	BaseURL string
	// Timeout bounds each individual request attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt; zero disables retrying.
	MaxRetries        int
	BackoffBase       time.Duration
	RequestsPerSecond float64
	Logger            *logrus.Logger
}

// Client is a retrying GitHub API client. It is safe for concurrent use.
type Client struct {
	opts    Options
	limiter *RateLimiter
	logger  *logrus.Entry
	sleep   func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	gh        *gh.Client
	transport *http.Transport
	closed    bool
}

// NewClient builds a Client. The underlying HTTP client is created on first use.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}

	return &Client{
		opts:    opts,
		limiter: NewRateLimiter(opts.RequestsPerSecond),
		logger:  logger.WithField("component", "github"),
		sleep:   sleepContext,
	}
}

// Close releases idle connections. A later call transparently creates a new client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	c.closed = true
}

// RateLimiter exposes the quota tracker.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

func (c *Client) ensureClient() (*gh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gh != nil && !c.closed {
		return c.gh, nil
	}

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, eris.New("default transport is not an *http.Transport")
	}
	transport := base.Clone()

	var roundTripper http.RoundTripper = transport
	if token := strings.TrimSpace(c.opts.Token); token != "" {
		roundTripper = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   transport,
		}
	}

	client := gh.NewClient(&http.Client{Transport: roundTripper})
	if c.opts.BaseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(c.opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, eris.Wrapf(err, "parsing github base URL: %s", c.opts.BaseURL)
		}
		client.BaseURL = baseURL
	}

	c.gh = client
	c.transport = transport
	c.closed = false

	return client, nil
}

// do runs fn with retries. It returns ok=false when the call failed terminally, exhausted its
// retries, or the parent context was cancelled.
func do[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context, client *gh.Client) (T, *gh.Response, error)) (T, bool) {
	var zero T

	client, err := c.ensureClient()
	if err != nil {
		c.logger.WithField("operation", op).WithField("error", err.Error()).Error("creating github client failed")
		return zero, false
	}

	// Retries are owned here; go-github must not short-circuit on its cached rate state.
	ctx = context.WithValue(ctx, gh.BypassRateLimitCheck, true)

	serverRequested := false
	for attempt := 0; ; attempt++ {
		var err error
		if serverRequested {
			err = c.limiter.Throttle(ctx)
		} else {
			err = c.limiter.Wait(ctx)
		}
		if err == nil {
			reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
			value, resp, callErr := fn(reqCtx, client)
			cancel()

			if resp != nil {
				c.limiter.UpdateFromResponse(resp.Response)
			}
			if callErr == nil {
				return value, true
			}
			err = callErr
		}

		kind := classify(ctx, err)
		fields := logrus.Fields{"operation": op, "attempt": attempt + 1, "failure": kind.String(), "error": err.Error()}

		if kind == failureTerminal {
			c.logger.WithFields(fields).Warn("github request failed")
			return zero, false
		}
		if attempt >= c.opts.MaxRetries {
			c.logger.WithFields(fields).Warn("github request retries exhausted")
			return zero, false
		}

		var delay time.Duration
		delay, serverRequested = retryDelay(err, attempt, c.opts.BackoffBase)
		c.logger.WithFields(fields).WithField("delay", delay.String()).Debug("retrying github request")

		if err := c.sleep(ctx, delay); err != nil {
			c.logger.WithFields(fields).Debug("github retry aborted")
			return zero, false
		}
	}
}

// FetchProfile loads a user's public profile.
func (c *Client) FetchProfile(ctx context.Context, username string) (Profile, bool) {
	user, ok := do(ctx, c, "get user", func(ctx context.Context, client *gh.Client) (*gh.User, *gh.Response, error) {
		return client.Users.Get(ctx, username)
	})
	if !ok || user == nil {
		return Profile{}, false
	}

	return Profile{
		Login:       user.GetLogin(),
		Name:        user.GetName(),
		Bio:         user.GetBio(),
		AvatarURL:   user.GetAvatarURL(),
		HTMLURL:     user.GetHTMLURL(),
		Location:    user.GetLocation(),
		PublicRepos: user.GetPublicRepos(),
		Followers:   user.GetFollowers(),
		Following:   user.GetFollowing(),
		CreatedAt:   user.GetCreatedAt().Time,
	}, true
}

type repositoryPage struct {
	repos    []*gh.Repository
	nextPage int
}

// FetchRepositories pages through a user's owned repositories until GitHub reports no next
// page or max repositories were collected. Forks are included.
func (c *Client) FetchRepositories(ctx context.Context, username string, max int) ([]Repository, bool) {
	if max <= 0 {
		max = defaultMaxRepos
	}

	opts := &gh.RepositoryListByUserOptions{
		Type:        "owner",
		Sort:        "pushed",
		ListOptions: gh.ListOptions{PerPage: min(maxPerPage, max)},
	}

	repos := make([]Repository, 0, min(max, maxPerPage))
	for {
		page, ok := do(ctx, c, "list repositories", func(ctx context.Context, client *gh.Client) (repositoryPage, *gh.Response, error) {
			list, resp, err := client.Repositories.ListByUser(ctx, username, opts)
			if err != nil {
				return repositoryPage{}, resp, err
			}
			return repositoryPage{repos: list, nextPage: resp.NextPage}, resp, nil
		})
		if !ok {
			return nil, false
		}

		for _, repo := range page.repos {
			if len(repos) >= max {
				break
			}
			repos = append(repos, convertRepository(repo))
		}

		if page.nextPage == 0 || len(repos) >= max {
			return repos, true
		}
		opts.Page = page.nextPage
	}
}

// FetchLanguages sums language byte counts across repos owned by owner. Repositories whose
// languages cannot be fetched are skipped.
func (c *Client) FetchLanguages(ctx context.Context, owner string, repos []string) map[string]int64 {
	totals := make(map[string]int64)
	var mu sync.Mutex

	var group errgroup.Group
	group.SetLimit(languageWorkers)

	for _, name := range repos {
		group.Go(func() error {
			languages, ok := do(ctx, c, "list languages", func(ctx context.Context, client *gh.Client) (map[string]int, *gh.Response, error) {
				return client.Repositories.ListLanguages(ctx, owner, name)
			})
			if !ok {
				c.logger.WithField("repository", name).Warn("skipping repository languages")
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for language, size := range languages {
				totals[language] += int64(size)
			}
			return nil
		})
	}

	_ = group.Wait()
	return totals
}

func convertRepository(repo *gh.Repository) Repository {
	return Repository{
		Name:        repo.GetName(),
		FullName:    repo.GetFullName(),
		Description: repo.GetDescription(),
		HTMLURL:     repo.GetHTMLURL(),
		Homepage:    repo.GetHomepage(),
		Language:    repo.GetLanguage(),
		Topics:      repo.Topics,
		Stars:       repo.GetStargazersCount(),
		Forks:       repo.GetForksCount(),
		Fork:        repo.GetFork(),
		Archived:    repo.GetArchived(),
		PushedAt:    repo.GetPushedAt().Time,
		UpdatedAt:   repo.GetUpdatedAt().Time,
	}
}
