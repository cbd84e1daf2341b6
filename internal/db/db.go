// Package db owns the embedded store: opening the SQLite file, schema
// migration, and the transaction wrapper every multi-step mutation runs in.
package db

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shelby-app/shelby/internal/models"
)

// ErrBusy is returned when the store stayed locked through all bounded
// retries. Callers may retry the whole operation.
var ErrBusy = errors.New("store busy")

// Writer retry bounds for Transact.
const (
	txRetries      = 3
	txRetryBackoff = 25 * time.Millisecond
)

// Open opens (creating if needed) the SQLite file at path. Foreign keys and
// WAL are enabled; busyTimeout bounds how long a statement waits on a locked
// database before failing.
func Open(path string, busyTimeout time.Duration) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", busyTimeout.Milliseconds()))
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	dsn := fmt.Sprintf("file:%s?%s", path, q.Encode())

	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return conn, nil
}

// Migrate applies the schema for all entities.
func Migrate(conn *gorm.DB) error {
	entities := []any{
		&models.Person{},
		&models.Group{},
		&models.Membership{},
		&models.Document{},
		&models.CostCenter{},
		&models.Category{},
		&models.Account{},
		&models.Entry{},
		&models.User{},
	}
	for _, m := range entities {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// Transact runs fn inside a transaction. SQLite serializes writers, so a
// concurrent writer can surface as SQLITE_BUSY despite the busy_timeout; we
// retry the whole transaction a bounded number of times before giving up
// with ErrBusy. Any other error rolls back and is returned unchanged.
func Transact(conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < txRetries; attempt++ {
		err = conn.Transaction(fn)
		if err == nil || !IsBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * txRetryBackoff)
	}
	return fmt.Errorf("%w: %v", ErrBusy, err)
}

// IsBusy reports whether err is SQLite's locked/busy signal.
func IsBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsConstraintViolation reports whether err is a uniqueness or foreign-key
// constraint failure.
func IsConstraintViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
