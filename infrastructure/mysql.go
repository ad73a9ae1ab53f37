package infrastructure

import (
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gigflow/domain"
)

// NewMySQLConnection opens the gorm pool for cfg.DBDSN.
//
// The DSN is forced to report matched rather than changed rows, because the
// store relies on RowsAffected of conditional updates to detect lost races.
func NewMySQLConnection(cfg Config) (*gorm.DB, error) {
	dsn, err := prepareDSN(cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate creates or updates the jobs and bids tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Job{}, &domain.Bid{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

func prepareDSN(raw string) (string, error) {
	c, err := mysqldriver.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse DB_DSN: %w", err)
	}
	c.ParseTime = true
	c.ClientFoundRows = true
	if c.Loc == nil {
		c.Loc = time.UTC
	}
	return c.FormatDSN(), nil
}
