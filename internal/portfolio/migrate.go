package portfolio

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the portfolio schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	return AutoMigrate(ctx, db, logger, "portfolio", Models()...)
}

// AutoMigrate migrates models under a named component, logging start, failure and completion.
func AutoMigrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger, component string, models ...any) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": component + ".migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("schema migration failed")
		}
		return eris.Wrapf(err, "auto migrating %s schema", component)
	}

	if logger != nil {
		logger.WithFields(logFields).Info("schema migration complete")
	}

	return nil
}
