package github

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable means no statistics could be fetched and none are cached.
var ErrUnavailable = eris.New("github data unavailable")

const defaultRefreshTimeout = 2 * time.Minute

// Fetcher is the subset of Client used to build statistics.
type Fetcher interface {
	FetchProfile(ctx context.Context, username string) (Profile, bool)
	FetchRepositories(ctx context.Context, username string, max int) ([]Repository, bool)
	FetchLanguages(ctx context.Context, owner string, repos []string) map[string]int64
}

var _ Fetcher = (*Client)(nil)

// StatsService serves cached statistics for one GitHub user.
type StatsService struct {
	fetcher  Fetcher
	username string
	maxRepos int
	ttl      time.Duration
	timeout  time.Duration
	logger   *logrus.Entry
	now      func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	snapshot *Stats
}

// StatsOptions configures a StatsService.
type StatsOptions struct {
	Username string
	MaxRepos int
	TTL      time.Duration
	// RefreshTimeout bounds a shared refresh, which runs detached from any caller's context.
	RefreshTimeout time.Duration
	Logger         *logrus.Logger
}

// NewStatsService wires a statistics service on top of fetcher.
func NewStatsService(fetcher Fetcher, opts StatsOptions) (*StatsService, error) {
	if fetcher == nil {
		return nil, eris.New("github fetcher is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}

	if opts.MaxRepos <= 0 {
		opts.MaxRepos = defaultMaxRepos
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}

	return &StatsService{
		fetcher:  fetcher,
		username: strings.TrimSpace(opts.Username),
		maxRepos: opts.MaxRepos,
		ttl:      opts.TTL,
		timeout:  opts.RefreshTimeout,
		logger:   logger.WithField("component", "github.stats"),
		now:      time.Now,
	}, nil
}

// Username returns the GitHub account the statistics describe.
func (s *StatsService) Username() string {
	return s.username
}

// Stats returns the cached snapshot while it is fresh, refreshing it otherwise. Concurrent
// callers share a single refresh. A failed refresh falls back to the previous snapshot marked
// stale; without one ErrUnavailable is returned.
func (s *StatsService) Stats(ctx context.Context) (*Stats, error) {
	if cached := s.fresh(); cached != nil {
		return cached, nil
	}
	return s.refresh(ctx)
}

// Refresh refetches statistics regardless of the cache age.
func (s *StatsService) Refresh(ctx context.Context) (*Stats, error) {
	return s.refresh(ctx)
}

// Cached returns the last snapshot without fetching, or nil.
func (s *StatsService) Cached() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil
	}
	copied := *s.snapshot
	return &copied
}

func (s *StatsService) fresh() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil || s.ttl <= 0 || s.now().Sub(s.snapshot.FetchedAt) >= s.ttl {
		return nil
	}
	copied := *s.snapshot
	return &copied
}

func (s *StatsService) refresh(ctx context.Context) (*Stats, error) {
	results := s.group.DoChan("stats", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		stats, ok := s.build(fetchCtx)
		if !ok {
			return nil, ErrUnavailable
		}

		s.mu.Lock()
		s.snapshot = stats
		s.mu.Unlock()
		return stats, nil
	})

	var (
		result any
		err    error
	)
	select {
	case res := <-results:
		result, err = res.Val, res.Err
	case <-ctx.Done():
		// The refresh keeps running for the other callers and fills the cache.
		s.logger.WithField("error", ctx.Err().Error()).Debug("stopped waiting for github stats refresh")
		err = ErrUnavailable
	}

	if err != nil {
		if stale := s.Cached(); stale != nil {
			stale.Stale = true
			s.logger.WithField("fetched_at", stale.FetchedAt).Warn("serving stale github stats")
			return stale, nil
		}
		return nil, eris.Wrapf(err, "fetching stats for %q", s.username)
	}

	copied := *result.(*Stats)
	return &copied, nil
}

func (s *StatsService) build(ctx context.Context) (*Stats, bool) {
	if s.username == "" {
		s.logger.Warn("github username not configured")
		return nil, false
	}

	profile, ok := s.fetcher.FetchProfile(ctx, s.username)
	if !ok {
		return nil, false
	}

	repos, ok := s.fetcher.FetchRepositories(ctx, s.username, s.maxRepos)
	if !ok {
		return nil, false
	}

	owned := make([]Repository, 0, len(repos))
	names := make([]string, 0, len(repos))
	totals := Totals{PublicRepos: profile.PublicRepos, Followers: profile.Followers}
	for _, repo := range repos {
		if repo.Fork {
			continue
		}
		owned = append(owned, repo)
		names = append(names, repo.Name)
		totals.Stars += repo.Stars
		totals.Forks += repo.Forks
	}

	sort.SliceStable(owned, func(i, j int) bool {
		if owned[i].Stars != owned[j].Stars {
			return owned[i].Stars > owned[j].Stars
		}
		return owned[i].Name < owned[j].Name
	})

	languages := s.fetcher.FetchLanguages(ctx, s.username, names)

	stats := &Stats{
		Profile:      profile,
		Repositories: owned,
		Languages:    languageShares(languages),
		Totals:       totals,
		FetchedAt:    s.now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"repositories": len(owned),
		"languages":    len(stats.Languages),
	}).Info("github stats refreshed")

	return stats, true
}

// languageShares converts byte totals to shares sorted by size, percentages rounded to 0.01.
func languageShares(totals map[string]int64) []LanguageShare {
	var sum int64
	for _, size := range totals {
		sum += size
	}

	shares := make([]LanguageShare, 0, len(totals))
	for name, size := range totals {
		share := LanguageShare{Name: name, Bytes: size}
		if sum > 0 {
			share.Percentage = math.Round(float64(size)/float64(sum)*10000) / 100
		}
		shares = append(shares, share)
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Bytes != shares[j].Bytes {
			return shares[i].Bytes > shares[j].Bytes
		}
		return shares[i].Name < shares[j].Name
	})
	return shares
}
