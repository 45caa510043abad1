// Package kv is a key-value table on top of database/sql.
//
// The statements use `$n` placeholders and `ON CONFLICT` upserts, so the same
// code runs on sqlite3 and postgres drivers.
package kv

import (
	"context"
	"database/sql"
	"regexp"
	"time"

	errors "github.com/Laisky/errors/v2"
)

var (
	_ Interface = new(Kv)

	regexpKey       = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)
	regexpTableName = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)

	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
)

// KvItem is a kv doc
type KvItem struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateFunc receives the current value (exists=false when absent)
// and returns the value to write back.
type UpdateFunc func(current string, exists bool) (string, error)

// Interface is a kv interface
type Interface interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (*KvItem, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Kv is a key-value store for sqlite/postgres
type Kv struct {
	opt *option
	db  *sql.DB
}

type option struct {
	tableName string
}

// Option is a function that configures the kv
type Option func(*option) error

func applyOpts(opts ...Option) (*option, error) {
	// fill default
	o := &option{
		tableName: "kv",
	}

	// apply opts
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return o, nil
}

// WithDBName is a option to set table name
func WithDBName(tableName string) Option {
	return func(o *option) error {
		if !regexpTableName.MatchString(tableName) {
			return errors.Errorf("invalid table name: %s", tableName)
		}
		o.tableName = tableName
		return nil
	}
}

// NewKv create a new kv
func NewKv(db *sql.DB, opts ...Option) (*Kv, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}

	opt, err := applyOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "apply opts")
	}

	kv := &Kv{
		opt: opt,
		db:  db,
	}

	if err := kv.setup(); err != nil {
		return nil, errors.Wrap(err, "setup kv")
	}

	return kv, nil
}

func (kv *Kv) setup() error {
	stmt := `
CREATE TABLE IF NOT EXISTS ` + kv.opt.tableName + ` (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`

	if _, err := kv.db.Exec(stmt); err != nil {
		return errors.Wrap(err, "create kv table")
	}

	return nil
}

func (kv *Kv) validKey(key string) error {
	if !regexpKey.MatchString(key) {
		return errors.Errorf("invalid key: %s", key)
	}

	return nil
}

func (kv *Kv) upsertStmt() string {
	return `
INSERT INTO ` + kv.opt.tableName + ` (key, value, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT(key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
}

func (kv *Kv) selectStmt() string {
	return `SELECT key, value, created_at, updated_at FROM ` + kv.opt.tableName + ` WHERE key = $1 LIMIT 1`
}

// Set stores the value under key, replacing any previous value.
func (kv *Kv) Set(ctx context.Context, key, value string) error {
	if err := kv.validKey(key); err != nil {
		return errors.WithStack(err)
	}

	if _, err := kv.db.ExecContext(ctx, kv.upsertStmt(), key, value, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "upsert kv item")
	}

	return nil
}

// Get retrieves the key's document.
func (kv *Kv) Get(ctx context.Context, key string) (*KvItem, error) {
	var doc KvItem
	err := kv.db.QueryRowContext(ctx, kv.selectStmt(), key).
		Scan(&doc.Key, &doc.Value, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrKeyNotFound, "key %s", key)
		}
		return nil, errors.Wrap(err, "failed to get key")
	}

	return &doc, nil
}

// Exists checks whether a key exists.
func (kv *Kv) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := kv.Get(ctx, key); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to check existence")
	}

	return true, nil
}

// Del removes the key from the store.
func (kv *Kv) Del(ctx context.Context, key string) error {
	stmt := `DELETE FROM ` + kv.opt.tableName + ` WHERE key = $1`
	if _, err := kv.db.ExecContext(ctx, stmt, key); err != nil {
		return errors.Wrap(err, "failed to delete key")
	}
	return nil
}

// Update runs a read-modify-write of key inside one transaction.
// When fn returns an error nothing is written.
func (kv *Kv) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	if err = kv.validKey(key); err != nil {
		return errors.WithStack(err)
	}

	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		current string
		exists  = true
		doc     KvItem
	)
	err = tx.QueryRowContext(ctx, kv.selectStmt(), key).
		Scan(&doc.Key, &doc.Value, &doc.CreatedAt, &doc.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
	case err != nil:
		return errors.Wrap(err, "load current value")
	default:
		current = doc.Value
	}

	next, err := fn(current, exists)
	if err != nil {
		return errors.WithStack(err)
	}

	if _, err = tx.ExecContext(ctx, kv.upsertStmt(), key, next, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "upsert kv item")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}

	return nil
}
