// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ledger

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*
var migrationFiles embed.FS

func migrate(driver string, db *sql.DB) error {
	var dbDriver interface {
		Close() error
	}
	var m *migrate.Migrate

	switch driver {
	case "sqlite3":
		d, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("ledger: sqlite3 migration driver: %w", err)
		}
		src, err := iofs.New(migrationFiles, "migrations/sqlite3")
		if err != nil {
			return fmt.Errorf("ledger: loading embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", d)
		if err != nil {
			return fmt.Errorf("ledger: building migrator: %w", err)
		}
		dbDriver = d
	case "mysql":
		d, err := mysql.WithInstance(db, &mysql.Config{})
		if err != nil {
			return fmt.Errorf("ledger: mysql migration driver: %w", err)
		}
		src, err := iofs.New(migrationFiles, "migrations/mysql")
		if err != nil {
			return fmt.Errorf("ledger: loading embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "mysql", d)
		if err != nil {
			return fmt.Errorf("ledger: building migrator: %w", err)
		}
		dbDriver = d
	default:
		return fmt.Errorf("ledger: unsupported driver %q", driver)
	}
	defer dbDriver.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("ledger: applying migrations: %w", err)
	}
	return nil
}
