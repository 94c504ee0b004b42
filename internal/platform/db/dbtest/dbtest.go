// Package dbtest はテスト用に t.TempDir() 上の SQLite を用意する。
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"LIBRIS-backend/internal/platform/db"
)

// New はマイグレーション済みの接続を返す。後始末は t.Cleanup で行う。
func New(t testing.TB) *db.Conn {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "libris.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := db.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
