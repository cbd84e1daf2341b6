package services

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/shelby-app/shelby/internal/db"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"), time.Second)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
