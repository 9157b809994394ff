package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/attendsync/attendance-monitor/internal/conf"
)

const sqliteMemory = ":memory:"

// sqliteBusyTimeoutMs makes concurrent readers wait instead of failing with SQLITE_BUSY.
const sqliteBusyTimeoutMs = 5000

func sqliteDSN(path string) string {
	if path == sqliteMemory {
		return path
	}
	return fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=on", path, sqliteBusyTimeoutMs)
}

// openSQLite opens the embedded store. SQLite allows one writer, so the pool
// is limited to a single connection; this also keeps ":memory:" databases
// from splitting across connections.
func openSQLite(settings conf.SQLiteSettings, gormLog gormlogger.Interface) (*gorm.DB, error) {
	path := settings.Path
	if path != sqliteMemory {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, dbError(err, "create_sqlite_dir", "path", dir)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open", "dialect", "sqlite")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "get_sql_db", "dialect", "sqlite")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return db, nil
}
