package storage

import (
	"context"
	"database/sql"

	"github.com/Laisky/errors/v2"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/Laisky/sparkboard/library/db/sql/kv"
)

var (
	_ Backend       = (*SQL)(nil)
	_ AtomicUpdater = (*SQL)(nil)
)

// SQL stores keys in a database/sql kv table (sqlite by default).
type SQL struct {
	db *sql.DB
	kv kv.Interface
}

// OpenSQLite opens (creating when needed) a sqlite database at dsn
// and prepares the kv table.
func OpenSQLite(dsn, table string) (*SQL, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	// sqlite serializes writers anyway, one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s, err := NewSQL(db, table)
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}

	return s, nil
}

// NewSQL wraps an opened *sql.DB
func NewSQL(db *sql.DB, table string) (*SQL, error) {
	var opts []kv.Option
	if table != "" {
		opts = append(opts, kv.WithDBName(table))
	}

	store, err := kv.NewKv(db, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "new kv")
	}

	return &SQL{db: db, kv: store}, nil
}

// Name implements Backend
func (s *SQL) Name() string { return "sql" }

// Get implements Backend
func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	item, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return "", errors.Wrapf(ErrNotFound, "key %s", key)
		}
		return "", errors.WithStack(err)
	}

	return item.Value, nil
}

// Set implements Backend
func (s *SQL) Set(ctx context.Context, key, value string) error {
	return errors.WithStack(s.kv.Set(ctx, key, value))
}

// Update implements AtomicUpdater with a sql transaction
func (s *SQL) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return errors.WithStack(s.kv.Update(ctx, key, kv.UpdateFunc(fn)))
}

// Close closes the database
func (s *SQL) Close() error {
	return s.db.Close()
}
