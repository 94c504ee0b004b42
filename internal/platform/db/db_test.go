package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempConn(t *testing.T) *Conn {
	t.Helper()
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := tempConn(t)

	done, err := Migrate(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_genres.sql"}, done)

	done, err = Migrate(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, done)

	for _, table := range []string{"users", "books", "borrow_requests", "borrows", "book_events", "genres"} {
		var n int
		err := c.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
		require.NoError(t, err, table)
	}
}

func TestIsDuplicate(t *testing.T) {
	ctx := context.Background()
	c := tempConn(t)
	_, err := Migrate(ctx, c)
	require.NoError(t, err)

	const q = `INSERT INTO users (name, email, password_hash, role, created_at) VALUES ('a', 'a@example.com', 'x', 'member', CURRENT_TIMESTAMP)`
	_, err = c.ExecContext(ctx, q)
	require.NoError(t, err)
	_, err = c.ExecContext(ctx, q)
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	assert.False(t, IsDuplicate(errors.New("boom")))
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	c := tempConn(t)
	_, err := Migrate(ctx, c)
	require.NoError(t, err)

	sentinel := errors.New("abort")
	err = RunInTx(ctx, c.DB, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO book_events (book_id, title, kind, created_at) VALUES (1, 't', 'added', CURRENT_TIMESTAMP)`)
		require.NoError(t, err)
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	var n int
	require.NoError(t, c.QueryRowContext(ctx, `SELECT COUNT(*) FROM book_events`).Scan(&n))
	assert.Zero(t, n)
}

func TestReadOnlyReadsAndPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	c := tempConn(t)
	_, err := Migrate(ctx, c)
	require.NoError(t, err)

	var n int
	err = c.ReadOnly(ctx, func(ctx context.Context, tx DBTX) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM genres`).Scan(&n)
	})
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	sentinel := errors.New("stop")
	err = c.ReadOnly(ctx, func(ctx context.Context, tx DBTX) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)

	// Tx は閉じている（SQLite は接続1本なので、残っていれば次が詰まる）
	require.NoError(t, c.QueryRowContext(ctx, `SELECT COUNT(*) FROM genres`).Scan(&n))
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
	assert.Equal(t, " FOR UPDATE", (&Conn{Driver: "mysql"}).ForUpdate())
	assert.Empty(t, (&Conn{Driver: "sqlite3"}).ForUpdate())
}
