package datastore

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/attendsync/attendance-monitor/internal/conf"
)

const mysqlConnMaxLifetime = 5 * time.Minute

// mysqlDSN builds the connection string. Times are exchanged in UTC so DATE
// values never shift with the server or host time zone.
func mysqlDSN(settings conf.MySQLSettings) string {
	cfg := mysql.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func openMySQL(settings conf.MySQLSettings, gormLog gormlogger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(mysqlDSN(settings)), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open",
			"dialect", "mysql",
			"host", settings.Host,
			"port", settings.Port,
			"database", settings.Database)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "get_sql_db", "dialect", "mysql")
	}
	if settings.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(settings.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(mysqlConnMaxLifetime)
	return db, nil
}
