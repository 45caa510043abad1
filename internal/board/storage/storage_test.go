package storage

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	"github.com/Laisky/errors/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	rlib "github.com/Laisky/sparkboard/library/db/redis"
)

// plainBackend hides the AtomicUpdater of the wrapped backend.
type plainBackend struct {
	Backend
}

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "missing_key")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	require.NoError(t, b.Set(ctx, "posts", `[]`))
	v, err := b.Get(ctx, "posts")
	require.NoError(t, err)
	require.Equal(t, `[]`, v)

	require.NoError(t, b.Set(ctx, "posts", `[{"id":"a"}]`))
	v, err = b.Get(ctx, "posts")
	require.NoError(t, err)
	require.Equal(t, `[{"id":"a"}]`, v)

	err = Update(ctx, b, "counter", func(current string, exists bool) (string, error) {
		require.False(t, exists)
		return "1", nil
	})
	require.NoError(t, err)

	err = Update(ctx, b, "counter", func(current string, exists bool) (string, error) {
		require.True(t, exists)
		return current + "1", nil
	})
	require.NoError(t, err)

	err = Update(ctx, b, "counter", func(string, bool) (string, error) {
		return "", errors.New("abort")
	})
	require.Error(t, err)

	v, err = b.Get(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, "11", v)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestMemoryFailWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.FailWrites(errors.New("quota exceeded"))

	require.Error(t, m.Set(ctx, "k", "v"))
	require.Error(t, m.Update(ctx, "k", func(string, bool) (string, error) { return "v", nil }))

	_, err := m.Get(ctx, "k")
	require.True(t, errors.Is(err, ErrNotFound))

	m.FailWrites(nil)
	require.NoError(t, m.Set(ctx, "k", "v"))
}

func TestUpdateWithoutAtomicSupport(t *testing.T) {
	exerciseBackend(t, plainBackend{Backend: NewMemory()})
}

func TestSQLBackend(t *testing.T) {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b, err := NewSQL(db, "storage_test_kv")
	require.NoError(t, err)
	require.Equal(t, "sql", b.Name())

	exerciseBackend(t, b)
}

func TestSQLBackendConcurrentUpdates(t *testing.T) {
	b, err := OpenSQLite("file:"+t.TempDir()+"/board.db?_busy_timeout=5000", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Update(ctx, "counter", func(current string, _ bool) (string, error) {
				return current + "x", nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	v, err := b.Get(ctx, "counter")
	require.NoError(t, err)
	require.Len(t, v, 20)
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	db := rlib.NewDB(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping(context.Background()))

	prefix := "sparkboard/test/" + t.Name() + "/"
	t.Cleanup(func() {
		ctx := context.Background()
		_ = db.Client().Del(ctx, prefix+"posts", prefix+"counter").Err()
	})

	exerciseBackend(t, NewRedis(db, prefix))
}
