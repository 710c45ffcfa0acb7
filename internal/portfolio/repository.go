package portfolio

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultOrder = "order_index ASC, created_at ASC"

// ListOptions narrows and pages a listing. Filters are column equality matches.
type ListOptions struct {
	Filters map[string]any
	Limit   int
	Offset  int
}

// Repository defines persistence operations for one portfolio entity type.
type Repository[T any] interface {
	List(ctx context.Context, opts ListOptions) ([]T, error)
	Count(ctx context.Context, filters map[string]any) (int64, error)
	Get(ctx context.Context, id string) (*T, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, item *T) error
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
}

// GormRepository persists entities using a Gorm database connection.
type GormRepository[T any] struct {
	db      *gorm.DB
	logger  *logrus.Logger
	name    string
	preload []string
}

// NewRepository constructs a Gorm-backed repository. Preloads are applied to reads.
func NewRepository[T any](db *gorm.DB, logger *logrus.Logger, name string, preload ...string) (*GormRepository[T], error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository[T]{db: db, logger: logger, name: name, preload: preload}, nil
}

var _ Repository[Company] = (*GormRepository[Company])(nil)

func (r *GormRepository[T]) query(ctx context.Context) *gorm.DB {
	tx := r.db.WithContext(ctx)
	for _, association := range r.preload {
		tx = tx.Preload(association)
	}
	return tx
}

// List returns entities in display order.
func (r *GormRepository[T]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	items := make([]T, 0)

	tx := r.query(ctx).Order(defaultOrder)
	if len(opts.Filters) > 0 {
		tx = tx.Where(opts.Filters)
	}
	if opts.Limit > 0 {
		tx = tx.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		tx = tx.Offset(opts.Offset)
	}

	if err := tx.Find(&items).Error; err != nil {
		r.logError(logrus.Fields{"filters": opts.Filters}, err, "listing records")
		return nil, eris.Wrapf(err, "listing %s", r.name)
	}

	return items, nil
}

// Count returns the number of entities matching filters.
func (r *GormRepository[T]) Count(ctx context.Context, filters map[string]any) (int64, error) {
	var count int64

	tx := r.db.WithContext(ctx).Model(new(T))
	if len(filters) > 0 {
		tx = tx.Where(filters)
	}
	if err := tx.Count(&count).Error; err != nil {
		r.logError(nil, err, "counting records")
		return 0, eris.Wrapf(err, "counting %s", r.name)
	}

	return count, nil
}

// Get returns the entity with the given id or ErrNotFound.
func (r *GormRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, eris.Wrapf(ErrNotFound, "%s id is empty", r.name)
	}

	var item T
	if err := r.query(ctx).First(&item, "id = ?", trimmed).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "%s %s", r.name, trimmed)
		}
		r.logError(logrus.Fields{"id": trimmed}, err, "fetching record")
		return nil, eris.Wrapf(err, "fetching %s %s", r.name, trimmed)
	}

	return &item, nil
}

// Exists reports whether a row with the given id is present.
func (r *GormRepository[T]) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", strings.TrimSpace(id)).Count(&count).Error; err != nil {
		r.logError(logrus.Fields{"id": id}, err, "checking record existence")
		return false, eris.Wrapf(err, "checking %s %s", r.name, id)
	}
	return count > 0, nil
}

// Create inserts a new entity.
func (r *GormRepository[T]) Create(ctx context.Context, item *T) error {
	if item == nil {
		return eris.Errorf("%s is nil", r.name)
	}

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error; err != nil {
		return r.translateWriteError(err, "creating")
	}

	return nil
}

// Update persists every column of an existing entity.
func (r *GormRepository[T]) Update(ctx context.Context, item *T) error {
	if item == nil {
		return eris.Errorf("%s is nil", r.name)
	}

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error; err != nil {
		return r.translateWriteError(err, "updating")
	}

	return nil
}

// Delete removes the entity with the given id or returns ErrNotFound.
func (r *GormRepository[T]) Delete(ctx context.Context, id string) error {
	trimmed := strings.TrimSpace(id)

	result := r.db.WithContext(ctx).Delete(new(T), "id = ?", trimmed)
	if result.Error != nil {
		r.logError(logrus.Fields{"id": trimmed}, result.Error, "deleting record")
		return eris.Wrapf(result.Error, "deleting %s %s", r.name, trimmed)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", r.name, trimmed)
	}

	return nil
}

// Reorder assigns order_index by position in ids inside one transaction.
// Any unknown id aborts the whole operation with ErrNotFound.
func (r *GormRepository[T]) Reorder(ctx context.Context, ids []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for position, id := range ids {
			result := tx.Model(new(T)).Where("id = ?", strings.TrimSpace(id)).Update("order_index", position)
			if result.Error != nil {
				r.logError(logrus.Fields{"id": id}, result.Error, "reordering record")
				return eris.Wrapf(result.Error, "reordering %s %s", r.name, id)
			}
			if result.RowsAffected == 0 {
				return eris.Wrapf(ErrNotFound, "%s %s", r.name, id)
			}
		}
		return nil
	})
}

func (r *GormRepository[T]) translateWriteError(err error, action string) error {
	if eris.Is(err, gorm.ErrDuplicatedKey) {
		return eris.Wrapf(ErrConflict, "%s %s", action, r.name)
	}
	if eris.Is(err, gorm.ErrForeignKeyViolated) {
		return eris.Wrapf(ErrNotFound, "%s %s: referenced record", action, r.name)
	}
	r.logError(nil, err, action+" record")
	return eris.Wrapf(err, "%s %s", action, r.name)
}

func (r *GormRepository[T]) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error()).WithField("resource", r.name)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
