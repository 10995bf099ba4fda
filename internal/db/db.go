package db

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
	"github.com/Riley94/multi-cloud-manager/internal/config"
	"github.com/Riley94/multi-cloud-manager/internal/logging"
	"github.com/Riley94/multi-cloud-manager/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the database (sqlite by default, postgres via DATABASE_URL),
// migrates the telemetry tables, and hooks log and audit persistence.
func Init(cfg *config.Config, logger logging.Logger) error {
	var gormLevel gormlogger.LogLevel
	switch strings.ToLower(logging.GetLevel()) {
	case "debug":
		gormLevel = gormlogger.Info
	case "error", "fatal":
		gormLevel = gormlogger.Error
	default:
		gormLevel = gormlogger.Warn
	}
	gl := newGormLogger(logger, gormLevel)

	var dialector gorm.Dialector
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "postgres" || driver == "postgresql" {
		if cfg.DBDsn == "" {
			return &os.PathError{Op: "open", Path: "DATABASE_URL/DB_DSN", Err: os.ErrInvalid}
		}
		dialector = postgres.Open(cfg.DBDsn)
		logger.Info("db connect", "driver", "postgres")
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return err
		}
		dialector = sqlite.Open(cfg.DBPath)
		logger.Info("db connect", "driver", "sqlite", "path", cfg.DBPath)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gl})
	if err != nil {
		return err
	}
	if err := gdb.AutoMigrate(&models.Operation{}, &models.LogEntry{}, &models.TraceRow{}, &models.TraceEventRow{}); err != nil {
		return err
	}
	DB = gdb

	// Persist structured log entries (non-blocking, see logging.SetPersist).
	logging.SetPersist(func(e *logging.Entry) error {
		fields, _ := json.Marshal(e.Fields)
		le := models.LogEntry{Time: e.Time, Level: e.Level, Msg: e.Msg, Fields: string(fields)}
		return DB.Create(&le).Error
	})

	// Persist one audit row per dispatched cloud operation.
	cloud.SetAudit(func(rec cloud.AuditRecord) {
		row := models.Operation{
			Time:     rec.Time,
			Provider: string(rec.Provider),
			Action:   string(rec.Action),
			Region:   rec.Region,
			Target:   rec.Target,
			Success:  rec.Success,
			Code:     string(rec.Code),
			Message:  rec.Message,
		}
		if err := DB.Create(&row).Error; err != nil {
			logger.Error("audit persist failed", "error", err)
		}
	})
	return nil
}

// RecentOperations returns the newest audit rows, most recent first. Before
// Init runs there is no audit trail, so the result is empty.
func RecentOperations(limit int) ([]models.Operation, error) {
	if DB == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var rows []models.Operation
	err := DB.Order("time desc").Limit(limit).Find(&rows).Error
	return rows, err
}
