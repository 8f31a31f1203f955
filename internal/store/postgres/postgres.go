package postgres

import (
	"fmt"
	"io"
	stdlog "log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/odpf/hpcjob/config"
)

const slowQueryThreshold = time.Second

// Connect connect to the DB with custom configuration.
func Connect(conf config.DBConfig, writer io.Writer) (*gorm.DB, error) {
	dbLogger := logger.New(
		stdlog.New(writer, "\r\n", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold: slowQueryThreshold,
			LogLevel:      logger.Warn,
		},
	)

	db, err := gorm.Open(postgres.Open(conf.DSN), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(conf.MaxIdleConnection)
	sqlDB.SetMaxOpenConns(conf.MaxOpenConnection)
	return db, nil
}
