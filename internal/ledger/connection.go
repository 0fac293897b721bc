// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ledger records task-group lifecycle events (planned,
// started, element constructed, step error, finalizer ran, drained)
// to an embedded SQL database, so an operator can inspect a run after
// the fact instead of grepping logs.
package ledger

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

// Store wraps the ledger database handle plus the driver name needed
// to pick the right migration source and query dialect.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to a ledger database and brings its schema up to
// date. driver is "sqlite3" or "mysql".
func Open(driver, dsn string) (*Store, error) {
	var db *sqlx.DB
	var err error

	switch driver {
	case "sqlite3":
		registerSQLiteHooksOnce()
		db, err = sqlx.Open("sqlite3WithLedgerHooks", fmt.Sprintf("%s?_foreign_keys=on", dsn))
		if err != nil {
			return nil, fmt.Errorf("ledger: opening sqlite3: %w", err)
		}
		// sqlite3 does not support concurrent writers; serialize through
		// a single connection rather than contending on database locks.
		db.SetMaxOpenConns(1)
	case "mysql":
		db, err = sqlx.Open("mysql", fmt.Sprintf("%s?multiStatements=true", dsn))
		if err != nil {
			return nil, fmt.Errorf("ledger: opening mysql: %w", err)
		}
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	default:
		return nil, fmt.Errorf("ledger: unsupported driver %q", driver)
	}

	if err := migrate(driver, db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, driver: driver}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var registerHooksOnce sync.Once

func registerSQLiteHooksOnce() {
	registerHooksOnce.Do(func() {
		sql.Register("sqlite3WithLedgerHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryHooks{}))
	})
}
