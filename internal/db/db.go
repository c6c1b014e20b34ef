package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// MemoryDSN is a private in-memory SQLite database with foreign keys on.
const MemoryDSN = "file::memory:?_foreign_keys=on"

type Config struct {
	Driver   string
	URL      string
	Debug    bool
	MaxConns int
	MinConns int
}

// Open connects to the configured database. The returned func releases the
// connection pool.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*gorm.DB, func() error, error) {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.MinConns < 0 || cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = 0
	}
	gcfg := &gorm.Config{Logger: newLogger(log, cfg.Debug)}

	switch cfg.Driver {
	case DriverPostgres, "":
		return openPostgres(ctx, cfg, gcfg)
	case DriverMySQL:
		return openMySQL(ctx, cfg, gcfg)
	case DriverSQLite:
		return openSQLite(ctx, cfg, gcfg)
	}
	return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
}

func openMySQL(ctx context.Context, cfg Config, gcfg *gorm.Config) (*gorm.DB, func() error, error) {
	gdb, err := gorm.Open(mysql.Open(cfg.URL), gcfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(max(cfg.MinConns, 1))
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return gdb, sqlDB.Close, nil
}

// SQLite gets a single connection: an in-memory database lives and dies
// with its connection, and writers serialize anyway.
func openSQLite(ctx context.Context, cfg Config, gcfg *gorm.Config) (*gorm.DB, func() error, error) {
	dsn := cfg.URL
	if dsn == "" {
		dsn = MemoryDSN
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := gdb.WithContext(ctx).Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return gdb, sqlDB.Close, nil
}

func newLogger(log *slog.Logger, debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	if log == nil {
		return logger.Discard
	}
	return logger.New(slog.NewLogLogger(log.Handler(), slog.LevelInfo), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
