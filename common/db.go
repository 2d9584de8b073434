package common

import (
	"fmt"
	"os"
	"path/filepath"

	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"agentsite/logging"
)

// ConnectDb opens the subscriber database at dbFile, creating its parent
// directory when needed. ":memory:" is accepted for tests.
func ConnectDb(dbFile string, l *logging.ContextLogger) (*gorm.DB, error) {
	if dbFile == "" {
		return nil, fmt.Errorf("sqlite database path not set")
	}

	if dbFile != ":memory:" {
		if dir := filepath.Dir(dbFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dbFile), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db %s: %w", dbFile, err)
	}

	l.WithField("path", dbFile).Info("opened sqlite db")
	return db, nil
}

// gormConfig turns on error translation so a UNIQUE violation comes back
// as gorm.ErrDuplicatedKey. Timestamps are stored as text, so they are
// stamped in UTC to keep ORDER BY created_at chronological.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:                                  utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// OpenMemoryDb returns a migrated-ready in-memory database. Every call gets
// its own database.
func OpenMemoryDb() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// each pooled connection to :memory: would see a different database
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
