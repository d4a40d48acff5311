package db

import (
	"database/sql"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// sqliteDriverName is go-sqlite3 with a Unicode-aware fold registered on every
// connection. SQLite's built-in LOWER only folds ASCII.
const sqliteDriverName = "sqlite3_nodeverify"

// sqliteFoldFunc lowercases with Go's Unicode case mapping.
const sqliteFoldFunc = "nv_lower"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(sqliteFoldFunc, strings.ToLower, true)
		},
	})
}
