package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the connection pool and stores it in DB.
func Connect(cfg config.Database) {
	d, err := Open(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	DB = d
	log.Println("Connected to database")
}

// Open builds a gorm handle on top of a pgx-backed pool.
func Open(cfg config.Database) (*gorm.DB, error) {
	connConfig, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		// The parse error can echo the DSN, which may hold a password.
		return nil, fmt.Errorf("parse database config for host %q: invalid connection settings", cfg.Host)
	}

	sqlDB := stdlib.OpenDB(*connConfig)
	sqlDB.SetMaxOpenConns(cfg.PoolSize)
	sqlDB.SetMaxIdleConns(cfg.PoolSize)
	sqlDB.SetConnMaxIdleTime(cfg.IdleTimeout)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	// Surface slow queries; per-statement SQL is logged on failure by the callers.
	lg := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	d, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: lg,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return d, nil
}
