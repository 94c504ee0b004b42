package db

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"LIBRIS-backend/internal/platform/config"
)

const mysqlErrDuplicateEntry = 1062

// ForUpdate は行ロック句を返す。SQLite は DB 単位ロックなので空。
func (c *Conn) ForUpdate() string {
	if c.Driver == config.DriverMySQL {
		return " FOR UPDATE"
	}
	return ""
}

// IsDuplicate: UNIQUE 制約違反かどうか（MySQL 1062 / SQLite constraint unique）
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDuplicateEntry
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint &&
			(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}
