package contact

import (
	"context"
	"errors"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolio/api/internal/portfolio"
	"portfolio/api/internal/validation"
)

// ErrNotFound indicates the requested message does not exist.
var ErrNotFound = eris.New("contact message not found")

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxUserAgentLen  = 500
)

// Service manages contact form submissions.
type Service interface {
	Submit(ctx context.Context, input Input, meta Meta) (*Message, error)
	List(ctx context.Context, opts ListOptions) ([]Message, error)
	MarkRead(ctx context.Context, id string, read bool) (*Message, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	db        *gorm.DB
	validator *validation.Validator
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the contact service.
func NewService(db *gorm.DB, v *validation.Validator, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	if v == nil {
		v = validation.New()
	}

	return &service{db: db, validator: v, logger: logger, sentryHub: hub}, nil
}

// Migrate creates the contacts table.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	return portfolio.AutoMigrate(ctx, db, logger, "contact", &Message{})
}

func (s *service) Submit(ctx context.Context, input Input, meta Meta) (*Message, error) {
	input = sanitize(input)

	if verr := s.validator.Struct(input); verr != nil {
		return nil, verr
	}

	userAgent := validation.Truncate(strings.TrimSpace(meta.UserAgent), maxUserAgentLen)

	message := &Message{
		Name:      input.Name,
		Email:     strings.ToLower(input.Email),
		Subject:   input.Subject,
		Body:      input.Message,
		IPHash:    meta.IPHash,
		UserAgent: userAgent,
	}

	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		s.recordError(nil, err, "storing contact message")
		return nil, eris.Wrap(err, "storing contact message")
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"component": "contact", "id": message.ID}).Info("contact message received")
	}

	return message, nil
}

func (s *service) List(ctx context.Context, opts ListOptions) ([]Message, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if opts.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var messages []Message
	if err := query.Find(&messages).Error; err != nil {
		s.recordError(nil, err, "listing contact messages")
		return nil, eris.Wrap(err, "listing contact messages")
	}

	return messages, nil
}

func (s *service) MarkRead(ctx context.Context, id string, read bool) (*Message, error) {
	message, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(message).Update("is_read", read).Error; err != nil {
		s.recordError(logrus.Fields{"id": id}, err, "updating contact message")
		return nil, eris.Wrapf(err, "updating contact message: %s", id)
	}
	message.IsRead = read

	return message, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Message{}, "id = ?", id)
	if result.Error != nil {
		s.recordError(logrus.Fields{"id": id}, result.Error, "deleting contact message")
		return eris.Wrapf(result.Error, "deleting contact message: %s", id)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrNotFound, "contact message: %s", id)
	}
	return nil
}

func (s *service) get(ctx context.Context, id string) (*Message, error) {
	var message Message
	err := s.db.WithContext(ctx).First(&message, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "contact message: %s", id)
	}
	if err != nil {
		s.recordError(logrus.Fields{"id": id}, err, "loading contact message")
		return nil, eris.Wrapf(err, "loading contact message: %s", id)
	}
	return &message, nil
}

func sanitize(input Input) Input {
	return Input{
		Name:    StripHTML(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Subject: StripHTML(input.Subject),
		Message: StripHTML(input.Message),
	}
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error()).WithField("component", "contact")
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
