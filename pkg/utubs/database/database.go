package database

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the SQLite database at dsn and migrates it. Slow queries and
// errors are reported through l when it is non-nil.
func Connect(dsn string, l *log.Logger) error {
	cfg := &gorm.Config{}
	if l != nil {
		cfg.Logger = gormlogger.New(l.With("component", "gorm"), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return err
	}
	if err := models.AutoMigrate(db); err != nil {
		return err
	}
	DB = db
	return nil
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}
