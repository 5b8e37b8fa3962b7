package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"habit-tracker/internal/model"
)

// schemaVersion is the current version of the tasks schema.
const schemaVersion = 3

// schemaInfo is a single-row table (id=1) tracking the applied version.
type schemaInfo struct {
	ID      uint `gorm:"primaryKey"`
	Version int
}

func (schemaInfo) TableName() string { return "schema_info" }

// Open opens the SQLite database at dsn and brings the schema up to the
// current version.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "habit_tracker.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate brings the tasks schema up to schemaVersion. A fresh database
// gets the full current schema in one step; an older database gets
// additive migrations applied in version order. Steps only ever add
// columns with explicit defaults, never alter or drop existing ones,
// and are idempotent (a column is added only if missing).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schemaInfo{}); err != nil {
		return fmt.Errorf("migrate schema_info: %w", err)
	}

	var info schemaInfo
	err := db.First(&info, 1).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		info = schemaInfo{ID: 1}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	}

	if !db.Migrator().HasTable(&model.Task{}) {
		if err := db.AutoMigrate(&model.Task{}); err != nil {
			return fmt.Errorf("create tasks table: %w", err)
		}
		return saveVersion(db, &info, schemaVersion)
	}

	// A tasks table with no recorded version is a version 1 database.
	if info.Version == 0 {
		info.Version = 1
	}

	for v := info.Version; v < schemaVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration from schema version %d", v)
		}
		if err := step(db); err != nil {
			return fmt.Errorf("migrate tasks v%d to v%d: %w", v, v+1, err)
		}
		if err := saveVersion(db, &info, v+1); err != nil {
			return err
		}
	}

	return nil
}

// migrations[v] upgrades the tasks table from version v to v+1.
var migrations = map[int]func(*gorm.DB) error{
	1: func(db *gorm.DB) error {
		return addColumns(db,
			column{"status", "TEXT NOT NULL DEFAULT 'inProgress'"},
			column{"created_at", "INTEGER NOT NULL DEFAULT 0"},
		)
	},
	2: func(db *gorm.DB) error {
		return addColumns(db,
			column{"category", "TEXT NOT NULL DEFAULT 'other'"},
			column{"goal_days", "INTEGER NOT NULL DEFAULT 30"},
			column{"current_progress", "INTEGER NOT NULL DEFAULT 0"},
			column{"last_progress_date", "INTEGER"},
			column{"streak", "INTEGER NOT NULL DEFAULT 0"},
		)
	},
}

type column struct {
	name string
	ddl  string
}

func addColumns(db *gorm.DB, cols ...column) error {
	for _, c := range cols {
		if db.Migrator().HasColumn(&model.Task{}, c.name) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE tasks ADD COLUMN %s %s", c.name, c.ddl)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("add column %s: %w", c.name, err)
		}
	}
	return nil
}

func saveVersion(db *gorm.DB, info *schemaInfo, version int) error {
	info.Version = version
	err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(info).Error
	if err != nil {
		return fmt.Errorf("save schema version %d: %w", version, err)
	}
	return nil
}

// ensureDirForSQLite creates the parent dir for the SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	// Ignore DSNs with explicit mode=memory or network.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	// Strip file: prefix if present.
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
