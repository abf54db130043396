package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/storagekit/storagekit/internal/config"
	"github.com/storagekit/storagekit/internal/logging"
	"github.com/storagekit/storagekit/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// MaxRecent caps the number of audit rows returned by Recent.
const MaxRecent = 500

var ErrDSNRequired = errors.New("postgres audit log requires DATABASE_URL or DB_DSN")

// AuditLog persists one row per mutating gateway request.
type AuditLog struct {
	db     *gorm.DB
	logger logging.Logger
}

// Open connects the audit database selected by cfg.DBDriver and migrates
// its schema. It returns nil, nil when the audit log is disabled.
func Open(cfg *config.Config, logger logging.Logger) (*AuditLog, error) {
	if !cfg.AuditEnabled() {
		return nil, nil
	}
	var gormLevel gormlogger.LogLevel
	switch logging.GetLevel(logger) {
	case "debug":
		gormLevel = gormlogger.Info
	case "error", "fatal":
		gormLevel = gormlogger.Error
	default:
		gormLevel = gormlogger.Warn
	}

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case "postgres", "postgresql":
		if cfg.DBDsn == "" {
			return nil, ErrDSNRequired
		}
		dialector = postgres.Open(cfg.DBDsn)
		logger.Info("db connect", "driver", "postgres")
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DBPath)
		logger.Info("db connect", "driver", "sqlite", "path", cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger, gormLevel)})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&models.AuditEntry{}); err != nil {
		return nil, err
	}
	return &AuditLog{db: gdb, logger: logger}, nil
}

// Record inserts e. Failures are returned; callers log and move on.
func (a *AuditLog) Record(ctx context.Context, e *models.AuditEntry) error {
	return a.db.WithContext(ctx).Create(e).Error
}

// Recent returns up to limit entries, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	var out []models.AuditEntry
	err := a.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "time"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Limit(limit).Find(&out).Error
	return out, err
}

func (a *AuditLog) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
