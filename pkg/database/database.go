package database

import (
	"fmt"
	"strings"

	"invoice-backend/pkg/config"
	"invoice-backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens Postgres when DATABASE_URL is set and falls back to a local SQLite file.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	var dialector gorm.Dialector

	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	case dsn != "":
		dialector = postgres.Open(dsn)
	default:
		dsn = cfg.SQLitePath
		dialector = sqlite.Open(dsn)
	}

	db, err := Open(dialector)
	if err != nil {
		return nil, err
	}
	logger.Named("database").Info("connected", zap.String("driver", dialector.Name()))
	return db, nil
}

// Open wraps gorm.Open with the logger settings shared by the server and tools.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// OpenMemory returns an isolated in-memory SQLite database, used by tests.
func OpenMemory(models ...interface{}) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// a single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	return db, nil
}

// Reset drops and recreates the given tables.
func Reset(db *gorm.DB, models ...interface{}) error {
	if err := db.Migrator().DropTable(models...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	return nil
}
