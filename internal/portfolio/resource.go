package portfolio

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"portfolio/api/internal/validation"
)

// ResourceService defines the validated CRUD operations exposed for one entity type.
type ResourceService[T any, I Input[T]] interface {
	Name() string
	List(ctx context.Context, opts ListOptions) ([]T, error)
	Count(ctx context.Context, filters map[string]any) (int64, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, input I) (*T, error)
	Update(ctx context.Context, id string, input I) (*T, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
}

// Resource implements ResourceService on top of a Repository.
type Resource[T any, I Input[T]] struct {
	name      string
	repo      Repository[T]
	validator *validation.Validator
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	// beforeSave runs after validation and Apply, before the row is written.
	beforeSave func(ctx context.Context, item *T) error
}

var _ ResourceService[Skill, SkillInput] = (*Resource[Skill, SkillInput])(nil)

// NewResource wires a resource service.
func NewResource[T any, I Input[T]](name string, repo Repository[T], v *validation.Validator, logger *logrus.Logger, hub *sentry.Hub) (*Resource[T, I], error) {
	if repo == nil {
		return nil, eris.Errorf("%s repository is required", name)
	}
	if v == nil {
		v = validation.New()
	}

	return &Resource[T, I]{
		name:      name,
		repo:      repo,
		validator: v,
		logger:    logger,
		sentryHub: hub,
	}, nil
}

// Name returns the resource's plural name.
func (s *Resource[T, I]) Name() string {
	return s.name
}

func (s *Resource[T, I]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	items, err := s.repo.List(ctx, opts)
	if err != nil {
		s.recordError(nil, err, "listing records")
		return nil, err
	}
	return items, nil
}

func (s *Resource[T, I]) Count(ctx context.Context, filters map[string]any) (int64, error) {
	return s.repo.Count(ctx, filters)
}

func (s *Resource[T, I]) Get(ctx context.Context, id string) (*T, error) {
	return s.repo.Get(ctx, id)
}

func (s *Resource[T, I]) Create(ctx context.Context, input I) (*T, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	item := new(T)
	input.Apply(item)

	if err := s.runBeforeSave(ctx, item); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, item); err != nil {
		s.recordError(nil, err, "creating record")
		return nil, err
	}

	// Re-read so preloaded associations are populated.
	return s.reload(ctx, item)
}

func (s *Resource[T, I]) Update(ctx context.Context, id string, input I) (*T, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	input.Apply(item)

	if err := s.runBeforeSave(ctx, item); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, item); err != nil {
		s.recordError(logrus.Fields{"id": id}, err, "updating record")
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

func (s *Resource[T, I]) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.recordError(logrus.Fields{"id": id}, err, "deleting record")
		return err
	}
	return nil
}

func (s *Resource[T, I]) Reorder(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return validation.Field("ids", "is required")
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return validation.Field("ids", "must not contain empty values")
		}
		if _, dup := seen[trimmed]; dup {
			return validation.Field("ids", "must not contain duplicates")
		}
		seen[trimmed] = struct{}{}
	}

	if err := s.repo.Reorder(ctx, ids); err != nil {
		s.recordError(nil, err, "reordering records")
		return err
	}
	return nil
}

func (s *Resource[T, I]) validate(input I) error {
	verr := s.validator.Struct(input)
	if c, ok := any(input).(checker); ok {
		verr = verr.Merge(c.Check())
	}
	return verr.AsError()
}

func (s *Resource[T, I]) runBeforeSave(ctx context.Context, item *T) error {
	if s.beforeSave == nil {
		return nil
	}
	return s.beforeSave(ctx, item)
}

func (s *Resource[T, I]) reload(ctx context.Context, item *T) (*T, error) {
	id := recordID(item)
	if id == "" {
		return item, nil
	}
	return s.repo.Get(ctx, id)
}

// recordID extracts the primary key from any entity embedding Record.
func recordID(item any) string {
	if identified, ok := item.(interface{ GetID() string }); ok {
		return identified.GetID()
	}
	return ""
}

// GetID returns the record's primary key.
func (r *Record) GetID() string {
	return r.ID
}

func (s *Resource[T, I]) recordError(fields logrus.Fields, err error, message string) {
	if err == nil || isExpected(err) {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error()).WithField("resource", s.name)
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}

func isExpected(err error) bool {
	return eris.Is(err, ErrNotFound) || eris.Is(err, ErrConflict)
}
