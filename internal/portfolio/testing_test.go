package portfolio

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolio/api/internal/db"
)

func setupDB(t *testing.T) (*gorm.DB, *logrus.Logger) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "portfolio.db")
	gormDB, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := db.Close(gormDB); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if err := Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	return gormDB, logger
}

func setupService(t *testing.T) *Service {
	t.Helper()

	gormDB, logger := setupDB(t)
	svc, err := NewService(gormDB, logger, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}
