package kv

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	errors "github.com/Laisky/errors/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func setupTestKv(t *testing.T, table string) *Kv {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err, "failed to connect to in-memory db")
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	// Create a new Kv instance with the test table name.
	kvInstance, err := NewKv(db, WithDBName(table))
	require.NoError(t, err, "failed to create kv instance")
	return kvInstance
}

func TestSetAndGet(t *testing.T) {
	kvInstance := setupTestKv(t, "test_kv_set_get")
	ctx := context.Background()

	key, value := "testkey", "testvalue"
	require.NoError(t, kvInstance.Set(ctx, key, value), "Set should not error")

	item, err := kvInstance.Get(ctx, key)
	require.NoError(t, err, "Get should not error")
	require.Equal(t, key, item.Key)
	require.Equal(t, value, item.Value)

	require.NoError(t, kvInstance.Set(ctx, key, "overwritten"))
	item, err = kvInstance.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "overwritten", item.Value)
}

func TestGetMissingKey(t *testing.T) {
	kvInstance := setupTestKv(t, "test_kv_missing")

	_, err := kvInstance.Get(context.Background(), "nokey")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestInvalidKey(t *testing.T) {
	kvInstance := setupTestKv(t, "test_kv_invalid")

	err := kvInstance.Set(context.Background(), "bad key!", "v")
	require.Error(t, err)
}

func TestExistsAndDel(t *testing.T) {
	kvInstance := setupTestKv(t, "test_kv_exists")
	ctx := context.Background()

	key, value := "existkey", "existvalue"
	require.NoError(t, kvInstance.Set(ctx, key, value), "Set should not error")

	exists, err := kvInstance.Exists(ctx, key)
	require.NoError(t, err, "Exists should not error")
	require.True(t, exists, "key should exist")

	err = kvInstance.Del(ctx, key)
	require.NoError(t, err, "Del should not error")

	exists, err = kvInstance.Exists(ctx, key)
	require.NoError(t, err, "Exists after deletion should not error")
	require.False(t, exists, "key should not exist after deletion")
}

func TestUpdate(t *testing.T) {
	kvInstance := setupTestKv(t, "test_kv_update")
	ctx := context.Background()

	err := kvInstance.Update(ctx, "counter", func(current string, exists bool) (string, error) {
		require.False(t, exists)
		require.Empty(t, current)
		return "1", nil
	})
	require.NoError(t, err)

	err = kvInstance.Update(ctx, "counter", func(current string, exists bool) (string, error) {
		require.True(t, exists)
		require.Equal(t, "1", current)
		return current + "2", nil
	})
	require.NoError(t, err)

	item, err := kvInstance.Get(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, "12", item.Value)

	// a failing callback must not write anything
	err = kvInstance.Update(ctx, "counter", func(string, bool) (string, error) {
		return "", errors.New("abort")
	})
	require.Error(t, err)

	item, err = kvInstance.Get(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, "12", item.Value)
}

func TestSetWriteRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS kv")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv")).
		WithArgs("posts", "[]", sqlmock.AnyArg()).
		WillReturnError(errors.New("database or disk is full"))

	kvInstance, err := NewKv(db)
	require.NoError(t, err)

	err = kvInstance.Set(context.Background(), "posts", "[]")
	require.Error(t, err)
	require.Contains(t, err.Error(), "database or disk is full")
	require.NoError(t, mock.ExpectationsWereMet())
}
