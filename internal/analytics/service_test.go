package analytics

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/api/internal/db"
	plog "portfolio/api/internal/log"
	"portfolio/api/internal/validation"
)

type clock struct {
	current time.Time
}

func (c *clock) now() time.Time { return c.current }

func (c *clock) advance(d time.Duration) { c.current = c.current.Add(d) }

func setupService(t *testing.T) (*service, *clock) {
	t.Helper()

	gormDB, err := db.Open(db.Options{Path: filepath.Join(t.TempDir(), "analytics.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })

	logger := plog.Discard()
	require.NoError(t, Migrate(context.Background(), gormDB, logger))

	c := &clock{current: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc, err := newService(gormDB, nil, logger, nil, c.now)
	require.NoError(t, err)
	return svc, c
}

func TestRecordPageViewCreatesAndContinuesSession(t *testing.T) {
	t.Parallel()

	svc, c := setupService(t)
	ctx := context.Background()
	meta := Meta{IPHash: HashIP("salt", "203.0.113.1"), UserAgent: "agent"}

	first, err := svc.RecordPageView(ctx, PageViewInput{Path: "/"}, meta)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	c.advance(10 * time.Minute)
	second, err := svc.RecordPageView(ctx, PageViewInput{Path: "/projects", SessionID: first}, meta)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var session VisitorSession
	require.NoError(t, svc.db.First(&session, "id = ?", first).Error)
	assert.Equal(t, 2, session.PageViews)
	assert.True(t, session.LastSeen.Equal(c.now()), "last_seen not updated: %s", session.LastSeen)
}

func TestRecordPageViewRotatesIdleSession(t *testing.T) {
	t.Parallel()

	svc, c := setupService(t)
	ctx := context.Background()

	first, err := svc.RecordPageView(ctx, PageViewInput{Path: "/"}, Meta{})
	require.NoError(t, err)

	c.advance(SessionIdleTimeout + time.Second)
	second, err := svc.RecordPageView(ctx, PageViewInput{Path: "/", SessionID: first}, Meta{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestRecordPageViewUnknownSessionStartsFresh(t *testing.T) {
	t.Parallel()

	svc, _ := setupService(t)

	id, err := svc.RecordPageView(context.Background(), PageViewInput{Path: "/", SessionID: "does-not-exist"}, Meta{})
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", id)
}

func TestRecordPageViewValidatesPath(t *testing.T) {
	t.Parallel()

	svc, _ := setupService(t)

	for _, path := range []string{"", "projects", "   "} {
		_, err := svc.RecordPageView(context.Background(), PageViewInput{Path: path}, Meta{})
		var verr *validation.Error
		require.True(t, errors.As(err, &verr), "path %q: expected validation error, got %v", path, err)
		assert.Contains(t, verr.Fields, "path")
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	svc, c := setupService(t)
	ctx := context.Background()
	start := c.now()

	a, err := svc.RecordPageView(ctx, PageViewInput{Path: "/"}, Meta{})
	require.NoError(t, err)
	_, err = svc.RecordPageView(ctx, PageViewInput{Path: "/projects", SessionID: a}, Meta{})
	require.NoError(t, err)

	c.advance(24 * time.Hour)
	_, err = svc.RecordPageView(ctx, PageViewInput{Path: "/projects"}, Meta{})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, start.Add(-time.Hour))
	require.NoError(t, err)

	assert.EqualValues(t, 3, summary.TotalViews)
	assert.EqualValues(t, 2, summary.UniqueSessions)
	require.Len(t, summary.TopPaths, 2)
	assert.Equal(t, PathCount{Path: "/projects", Views: 2}, summary.TopPaths[0])
	assert.Equal(t, []DayCount{{Day: "2024-03-01", Views: 2}, {Day: "2024-03-02", Views: 1}}, summary.ViewsPerDay)

	later, err := svc.Summary(ctx, c.now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, later.TotalViews)
	assert.Empty(t, later.TopPaths)
}

func TestHashIP(t *testing.T) {
	t.Parallel()

	hashed := HashIP("pepper", "198.51.100.4")
	assert.Len(t, hashed, 64)
	assert.Equal(t, hashed, HashIP("pepper", "198.51.100.4"))
	assert.NotEqual(t, hashed, HashIP("salt", "198.51.100.4"))
	assert.Empty(t, HashIP("pepper", ""))
}

func TestRecordPageViewTruncatesUserAgentOnRuneBoundary(t *testing.T) {
	t.Parallel()

	svc, _ := setupService(t)
	meta := Meta{UserAgent: "a" + strings.Repeat("é", 300)}

	sessionID, err := svc.RecordPageView(context.Background(), PageViewInput{Path: "/"}, meta)
	require.NoError(t, err)

	var view PageView
	require.NoError(t, svc.db.First(&view, "session_id = ?", sessionID).Error)
	assert.True(t, utf8.ValidString(view.UserAgent))
	assert.LessOrEqual(t, len(view.UserAgent), maxUserAgentLen)

	var session VisitorSession
	require.NoError(t, svc.db.First(&session, "id = ?", sessionID).Error)
	assert.Equal(t, view.UserAgent, session.UserAgent)
}
