package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/photoreview/internal/journal"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite opens the journal database and migrates its schema.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&journal.Entry{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
