package analytics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portfolio/api/internal/portfolio"
	"portfolio/api/internal/validation"
)

const (
	// SessionIdleTimeout is how long a session may be inactive before a new one is started.
	SessionIdleTimeout = 30 * time.Minute

	topPathsLimit   = 10
	maxUserAgentLen = 500
)

// Service records page views and reports aggregate traffic.
type Service interface {
	RecordPageView(ctx context.Context, input PageViewInput, meta Meta) (string, error)
	Summary(ctx context.Context, since time.Time) (*Summary, error)
}

type service struct {
	db        *gorm.DB
	validator *validation.Validator
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	now       func() time.Time
}

var _ Service = (*service)(nil)

// NewService wires the analytics service.
func NewService(db *gorm.DB, v *validation.Validator, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	return newService(db, v, logger, hub, time.Now)
}

func newService(db *gorm.DB, v *validation.Validator, logger *logrus.Logger, hub *sentry.Hub, now func() time.Time) (*service, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	if v == nil {
		v = validation.New()
	}
	if now == nil {
		now = time.Now
	}

	return &service{db: db, validator: v, logger: logger, sentryHub: hub, now: now}, nil
}

// Migrate creates the session and page view tables.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	return portfolio.AutoMigrate(ctx, db, logger, "analytics", &VisitorSession{}, &PageView{})
}

func (s *service) RecordPageView(ctx context.Context, input PageViewInput, meta Meta) (string, error) {
	input.Path = strings.TrimSpace(input.Path)
	input.Referrer = strings.TrimSpace(input.Referrer)
	input.SessionID = strings.TrimSpace(input.SessionID)

	if verr := s.validator.Struct(input); verr != nil {
		return "", verr
	}

	userAgent := validation.Truncate(strings.TrimSpace(meta.UserAgent), maxUserAgentLen)
	now := s.now().UTC()

	var sessionID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := s.resolveSession(tx, input.SessionID, meta.IPHash, userAgent, now)
		if err != nil {
			return err
		}
		sessionID = session.ID

		view := &PageView{
			SessionID: session.ID,
			Path:      input.Path,
			Referrer:  input.Referrer,
			IPHash:    meta.IPHash,
			UserAgent: userAgent,
			CreatedAt: now,
		}
		if err := tx.Omit(clause.Associations).Create(view).Error; err != nil {
			return eris.Wrap(err, "storing page view")
		}
		return nil
	})
	if err != nil {
		s.recordError(logrus.Fields{"path": input.Path}, err, "recording page view")
		return "", err
	}

	return sessionID, nil
}

// resolveSession continues an active session or starts a new one. Unknown ids and sessions idle
// longer than SessionIdleTimeout both yield a fresh session.
func (s *service) resolveSession(tx *gorm.DB, id, ipHash, userAgent string, now time.Time) (*VisitorSession, error) {
	if id != "" {
		var session VisitorSession
		err := tx.First(&session, "id = ?", id).Error
		switch {
		case err == nil:
			if now.Sub(session.LastSeen) <= SessionIdleTimeout {
				updates := map[string]any{
					"last_seen":  now,
					"page_views": gorm.Expr("page_views + ?", 1),
				}
				if err := tx.Model(&session).Updates(updates).Error; err != nil {
					return nil, eris.Wrapf(err, "updating session: %s", id)
				}
				session.LastSeen = now
				session.PageViews++
				return &session, nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, eris.Wrapf(err, "loading session: %s", id)
		}
	}

	session := &VisitorSession{
		IPHash:    ipHash,
		UserAgent: userAgent,
		FirstSeen: now,
		LastSeen:  now,
		PageViews: 1,
	}
	if err := tx.Create(session).Error; err != nil {
		return nil, eris.Wrap(err, "creating session")
	}
	return session, nil
}

func (s *service) Summary(ctx context.Context, since time.Time) (*Summary, error) {
	since = since.UTC()
	db := s.db.WithContext(ctx)
	views := db.Model(&PageView{}).Where("created_at >= ?", since)

	summary := &Summary{Since: since, TopPaths: []PathCount{}, ViewsPerDay: []DayCount{}}

	if err := views.Session(&gorm.Session{}).Count(&summary.TotalViews).Error; err != nil {
		return nil, s.summaryError(err, "counting page views")
	}

	if err := views.Session(&gorm.Session{}).Distinct("session_id").Count(&summary.UniqueSessions).Error; err != nil {
		return nil, s.summaryError(err, "counting sessions")
	}

	if err := views.Session(&gorm.Session{}).
		Select("path, COUNT(*) AS views").
		Group("path").
		Order("views DESC, path ASC").
		Limit(topPathsLimit).
		Scan(&summary.TopPaths).Error; err != nil {
		return nil, s.summaryError(err, "ranking paths")
	}

	// Day bucketing is done here so the query stays portable across drivers.
	var timestamps []time.Time
	if err := views.Session(&gorm.Session{}).Pluck("created_at", &timestamps).Error; err != nil {
		return nil, s.summaryError(err, "loading view timestamps")
	}
	summary.ViewsPerDay = bucketByDay(timestamps)

	return summary, nil
}

func bucketByDay(timestamps []time.Time) []DayCount {
	counts := make(map[string]int64)
	for _, ts := range timestamps {
		counts[ts.UTC().Format(time.DateOnly)]++
	}

	days := make([]DayCount, 0, len(counts))
	for day, views := range counts {
		days = append(days, DayCount{Day: day, Views: views})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days
}

func (s *service) summaryError(err error, message string) error {
	s.recordError(nil, err, message)
	return eris.Wrap(err, message)
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error()).WithField("component", "analytics")
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
