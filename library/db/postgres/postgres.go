// Package postgres opens pgx connection pools.
package postgres

import (
	"context"
	"fmt"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DialInfo postgres dial info
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
	Port int
}

// BuildDSN builds a PostgreSQL DSN for shared database clients.
func BuildDSN(dialInfo DialInfo) string {
	port := dialInfo.Port
	if port == 0 {
		port = 5432
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		dialInfo.Addr, dialInfo.User, dialInfo.Pwd, dialInfo.DBName, port)
}

// NewPool create a new postgres pool from a DSN or URL
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}

	cfg.MaxConns = 50
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return pool, nil
}
