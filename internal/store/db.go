// Package store is the persistence layer: a gorm+sqlite connection,
// schema migration, a squirrel-backed pagination helper, and one
// facade per entity family, following the teacher's
// Lens/modules/core/pkg/database layering (BaseFacade + per-entity
// facade) adapted to a single embedded sqlite file instead of a
// multi-cluster Postgres/MySQL pool.
package store

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/NREL/torc/internal/logging"
	"github.com/NREL/torc/internal/model"
)

// DB wraps the gorm handle together with the settings that every
// facade needs (the configured ceiling on a single page of results).
type DB struct {
	gorm *gorm.DB

	maxRecordTransferCount int
	defaultPageLimit       int
}

// Open establishes the sqlite connection, enables the pragmas the
// single-writer/many-reader workload needs (WAL journal mode, foreign
// keys), and runs AutoMigrate over every registered model.
func Open(path string, maxRecordTransferCount, defaultPageLimit int) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(gormLogAdapter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "store: failed to open database at %q", path)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "store: failed to obtain underlying sql.DB")
	}
	// A single-writer embedded database: one connection avoids
	// "database is locked" errors under concurrent writers; it also
	// serializes readers, which wait for that same connection.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if err := gdb.Exec(pragma).Error; err != nil {
			return nil, errors.Wrapf(err, "store: failed to apply %q", pragma)
		}
	}

	if err := gdb.AutoMigrate(model.AllModels()...); err != nil {
		return nil, errors.Wrap(err, "store: auto-migration failed")
	}

	logging.Infof("store: opened database at %s", path)

	return &DB{
		gorm:                   gdb,
		maxRecordTransferCount: maxRecordTransferCount,
		defaultPageLimit:       defaultPageLimit,
	}, nil
}

// Gorm exposes the underlying handle for facades defined elsewhere in
// this package.
func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

// WithinTransaction runs fn inside a gorm transaction, which sqlite
// begins in deferred mode: the write lock is taken on the first
// write, not up front. The BEGIN IMMEDIATE issued below is rejected
// because a transaction is already open, so it does not change the
// lock mode. Concurrent writers are serialized by the single pooled
// connection (see Open), not by the lock mode.
func (d *DB) WithinTransaction(fn func(tx *gorm.DB) error) error {
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("BEGIN IMMEDIATE").Error; err != nil {
			// sqlite driver already opened a transaction for us via
			// gorm.Transaction; BEGIN IMMEDIATE is best-effort here
			// and a failure to escalate the lock mode is not fatal.
			logging.Debugf("store: BEGIN IMMEDIATE hint rejected: %v", err)
		}
		return fn(tx)
	})
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormLogAdapter routes gorm's internal logger through our own
// leveled logging package instead of gorm's default stdlib writer.
type gormLogAdapter struct{}

func (gormLogAdapter) Printf(format string, args ...interface{}) {
	logging.Debugf(format, args...)
}
