// manage.go: connection lifecycle, migration and reconnect
package datastore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/logger"
)

// connection is shared by a DataStore and its transaction-scoped copies.
type connection struct {
	mu           sync.RWMutex
	db           *gorm.DB
	open         func() (*gorm.DB, error)
	settings     conf.DatabaseSettings
	fingerprints *cache.Cache
	log          logger.Logger
}

// DataStore implements Interface on gorm with either SQLite or MySQL.
type DataStore struct {
	conn *connection
	tx   *gorm.DB // set inside Transaction
}

var _ Interface = (*DataStore)(nil)

// New opens the configured store and migrates its schema.
func New(settings conf.DatabaseSettings, log logger.Logger) (*DataStore, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}

	threshold := settings.SlowQueryThreshold
	if threshold == 0 {
		threshold = logger.DefaultSlowQueryThreshold
	}
	gormLog := logger.NewGormLoggerAdapter(log, threshold)

	dialect := strings.ToLower(settings.Type)
	var open func() (*gorm.DB, error)
	switch dialect {
	case conf.DatabaseSQLite, "":
		dialect = conf.DatabaseSQLite
		open = func() (*gorm.DB, error) { return openSQLite(settings.SQLite, gormLog) }
	case conf.DatabaseMySQL:
		open = func() (*gorm.DB, error) { return openMySQL(settings.MySQL, gormLog) }
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ttl := settings.FingerprintCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &connection{
		open:         func() (*gorm.DB, error) { return openAndMigrate(open, dialect) },
		settings:     settings,
		fingerprints: cache.New(ttl, 2*ttl),
		log:          log.With(logger.String("dialect", dialect)),
	}

	db, err := c.open()
	if err != nil {
		return nil, err
	}
	c.db = db
	c.log.Info("database connected")
	return &DataStore{conn: c}, nil
}

func openAndMigrate(open func() (*gorm.DB, error), dialect string) (*gorm.DB, error) {
	db, err := open()
	if err != nil {
		return nil, err
	}
	if err := performAutoMigration(db, dialect); err != nil {
		closeDB(db)
		return nil, err
	}
	return db, nil
}

// performAutoMigration creates or updates the attendance tables.
func performAutoMigration(db *gorm.DB, dialect string) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return dbError(fmt.Errorf("failed to auto-migrate %s database: %w", dialect, err), "auto_migrate",
			"dialect", dialect)
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// handle returns the gorm handle bound to ctx, or the open transaction.
func (ds *DataStore) handle(ctx context.Context) (*gorm.DB, error) {
	if ds.tx != nil {
		return ds.tx, nil
	}
	ds.conn.mu.RLock()
	db := ds.conn.db
	ds.conn.mu.RUnlock()
	if db == nil {
		return nil, ErrNotInitialized
	}
	return db.WithContext(ctx), nil
}

// Ping checks that the database answers.
func (ds *DataStore) Ping(ctx context.Context) error {
	db, err := ds.handle(ctx)
	if err != nil {
		return err
	}
	if err := pingDB(ctx, db); err != nil {
		return dbError(fmt.Errorf("%w: %w", ErrUnavailable, err), "ping")
	}
	return nil
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// EnsureConnected pings the database and reconnects when the ping fails.
// After the configured number of failed attempts it returns an error wrapping ErrUnavailable.
func (ds *DataStore) EnsureConnected(ctx context.Context) error {
	err := ds.Ping(ctx)
	if err == nil {
		return nil
	}
	ds.conn.log.Warn("database ping failed, reconnecting", logger.Error(err))
	return ds.reconnect(ctx)
}

func (ds *DataStore) reconnect(ctx context.Context) error {
	c := ds.conn
	attempts := max(c.settings.ReconnectAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := c.open()
		if err == nil {
			err = pingDB(ctx, db)
		}
		if err == nil {
			c.mu.Lock()
			old := c.db
			c.db = db
			c.mu.Unlock()
			closeDB(old)
			c.log.Info("database reconnected", logger.Int("attempt", attempt))
			return nil
		}

		closeDB(db)
		lastErr = err
		c.log.Warn("database reconnect attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", attempts),
			logger.Error(err))

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.settings.ReconnectDelay):
			}
		}
	}

	return dbError(fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, attempts, lastErr), "reconnect",
		"attempts", attempts)
}

// Close releases the connection pool. A later EnsureConnected reopens it.
func (ds *DataStore) Close() error {
	if ds.tx != nil {
		return nil
	}
	c := ds.conn
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.mu.Unlock()

	if db == nil {
		return ErrNotInitialized
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	c.log.Info("database connection closed")
	return nil
}
