// Package db opens the postgres connection used by the run archive.
package db

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrEmptyDSN = errors.New("db: DATABASE_URL is empty")

// Open connects to postgres and configures the pool. SQL is logged through
// l at warn level, slow queries included.
func Open(dsn string, l *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, ErrEmptyDSN
	}
	if l == nil {
		l = zap.NewNop()
	}

	lg := logger.New(
		zap.NewStdLog(l.Named("gorm")),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	d, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: lg,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		return nil, fmt.Errorf("db: sql.DB: %w", err)
	}

	// One refresh run at a time; the status server reads a few rows.
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	l.Info("connected to database")
	return d, nil
}

// Close releases the pool behind d.
func Close(d *gorm.DB) error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
