package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"cryptofolio/src/config"
)

// DSN builds the postgres connection string, preferring an explicit
// connection_string setting over the per-field form.
func DSN(cfg *config.Config) string {
	if cfg.Databases.SQL.ConnectionString != "" {
		return cfg.Databases.SQL.ConnectionString
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Databases.SQL.Host,
		cfg.Databases.SQL.Username,
		cfg.Databases.SQL.Password,
		cfg.Databases.SQL.Database,
		cfg.Databases.SQL.Port)
}

func SetupDB(cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
