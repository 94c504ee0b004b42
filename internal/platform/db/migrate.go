package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"LIBRIS-backend/internal/platform/config"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Migrate は未適用のマイグレーションを昇順に流す。適用済みは schema_migrations に記録。
// 戻り値は今回適用したファイル名。
func Migrate(ctx context.Context, c *Conn) ([]string, error) {
	dir := "migrations/sqlite"
	if c.Driver == config.DriverMySQL {
		dir = "migrations/mysql"
	}

	if _, err := c.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    VARCHAR(255) NOT NULL PRIMARY KEY,
		applied_at DATETIME     NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, c)
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var done []string
	for _, name := range names {
		if applied[name] {
			continue
		}
		buf, err := migrationFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return done, err
		}
		err = RunInTx(ctx, c.DB, nil, func(ctx context.Context, tx DBTX) error {
			for _, stmt := range splitStatements(string(buf)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				name, time.Now().UTC().Truncate(time.Second))
			return err
		})
		if err != nil {
			return done, err
		}
		done = append(done, name)
	}
	return done, nil
}

func appliedVersions(ctx context.Context, c *Conn) (map[string]bool, error) {
	rows, err := c.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

// 文字列リテラル中の ';' は想定しない（マイグレーション側で使わないこと）
func splitStatements(src string) []string {
	var out []string
	for _, part := range strings.Split(src, ";") {
		stmt := strings.TrimSpace(stripComments(part))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func stripComments(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "--") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}
