package storage

import (
	"context"
	"regexp"

	"github.com/Laisky/errors/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	_ Backend       = (*Postgres)(nil)
	_ AtomicUpdater = (*Postgres)(nil)

	regexpPgTable = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)
)

// PgxPool is the subset of *pgxpool.Pool used by Postgres
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres stores keys in a table through pgx.
type Postgres struct {
	pool  PgxPool
	table string
}

// NewPostgres wraps pool and creates the kv table when missing
func NewPostgres(ctx context.Context, pool PgxPool, table string) (*Postgres, error) {
	if table == "" {
		table = "kv"
	}
	if !regexpPgTable.MatchString(table) {
		return nil, errors.Errorf("invalid table name: %s", table)
	}

	p := &Postgres{pool: pool, table: table}
	if _, err := pool.Exec(ctx, p.createStmt()); err != nil {
		return nil, errors.Wrap(err, "create kv table")
	}

	return p, nil
}

func (p *Postgres) createStmt() string {
	return `CREATE TABLE IF NOT EXISTS ` + p.table + ` (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
}

func (p *Postgres) selectStmt(forUpdate bool) string {
	stmt := `SELECT value FROM ` + p.table + ` WHERE key = $1`
	if forUpdate {
		stmt += ` FOR UPDATE`
	}
	return stmt
}

func (p *Postgres) upsertStmt() string {
	return `INSERT INTO ` + p.table + ` (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
}

// Name implements Backend
func (p *Postgres) Name() string { return "postgres" }

// Get implements Backend
func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := p.pool.QueryRow(ctx, p.selectStmt(false), key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errors.Wrapf(ErrNotFound, "key %s", key)
		}
		return "", errors.Wrapf(err, "select %s", key)
	}

	return value, nil
}

// Set implements Backend
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	if _, err := p.pool.Exec(ctx, p.upsertStmt(), key, value); err != nil {
		return errors.Wrapf(err, "upsert %s", key)
	}

	return nil
}

// Update implements AtomicUpdater with SELECT ... FOR UPDATE in a transaction.
//
// A key that does not exist yet has no row to lock, two first writers
// can still race; the later upsert wins.
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		current string
		exists  = true
	)
	err = tx.QueryRow(ctx, p.selectStmt(true), key).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		exists = false
	case err != nil:
		return errors.Wrapf(err, "select %s", key)
	}

	next, err := fn(current, exists)
	if err != nil {
		return errors.WithStack(err)
	}

	if _, err = tx.Exec(ctx, p.upsertStmt(), key, next); err != nil {
		return errors.Wrapf(err, "upsert %s", key)
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}

	return nil
}
