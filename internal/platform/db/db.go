package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"LIBRIS-backend/internal/platform/config"
)

// Conn は *sql.DB にドライバ名を添えたもの。
// Store 側で方言の差（FOR UPDATE など）を吸収するのに使う。
type Conn struct {
	*sql.DB
	Driver string
}

func Connect(c config.DatabaseConfig) (*Conn, error) {
	switch c.Driver {
	case config.DriverMySQL:
		return connectMySQL(c)
	case config.DriverSQLite:
		return OpenSQLite(c.Path)
	default:
		return nil, fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

func connectMySQL(c config.DatabaseConfig) (*Conn, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(config.DriverMySQL, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	db.SetMaxOpenConns(80)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Conn{DB: db, Driver: config.DriverMySQL}, nil
}

// OpenSQLite は開発・テスト用。書き込みは1本に直列化する。
func OpenSQLite(path string) (*Conn, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_loc=UTC", path)
	db, err := sql.Open(config.DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Conn{DB: db, Driver: config.DriverSQLite}, nil
}
