package database

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/teamclock/teamclock/internal/models"
)

const (
	defaultDBName = "teamclock.db"
	defaultDBDir  = ".config/teamclock"
)

// openEntryIndex makes "at most one open entry per user" a store-level
// guarantee: a second open insert fails with a unique violation.
const openEntryIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_open
	ON time_entries(user_id) WHERE end_time IS NULL`

type DB struct {
	*gorm.DB
}

func GetDefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}

	dbDir := filepath.Join(homeDir, defaultDBDir)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create database directory")
	}

	return filepath.Join(dbDir, defaultDBName), nil
}

func Connect(dbPath string) (*DB, error) {
	if dbPath == "" {
		var err error
		dbPath, err = GetDefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// sqlite allows one writer; a single connection serializes everything
	// and keeps shared in-memory databases alive.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)

	return &DB{db}, nil
}

func (db *DB) Initialize() error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.TimeEntry{},
		&models.ActivityData{},
		&models.Screenshot{},
		&models.Integration{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to initialize database schema")
	}

	if err := db.Exec(openEntryIndex).Error; err != nil {
		return errors.Wrap(err, "failed to create open entry index")
	}

	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
