package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// PostgresConfig controls the connection pool backing the repositories.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPostgresConfig returns pool settings suitable for a single
// service instance.
func DefaultPostgresConfig(url string) PostgresConfig {
	return PostgresConfig{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

func (c PostgresConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("sqlstore: postgres url is required")
	}
	return nil
}

// OpenPostgres opens a pooled postgres connection and wraps it for bun.
// The returned db pairs with NewRepositoryFactoryFromDB.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: ping postgres: %w", err)
	}

	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

// NewRepositoryFactoryFromPostgres opens a postgres connection and
// builds the connector, credential, and mapping stores on top of it.
func NewRepositoryFactoryFromPostgres(ctx context.Context, cfg PostgresConfig) (*RepositoryFactory, error) {
	db, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	factory, err := NewRepositoryFactoryFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return factory, nil
}
