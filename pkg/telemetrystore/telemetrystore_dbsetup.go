// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetrystore

// setup for the telemetry db
// includes migration support and txwrap setup

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sawka/txwrap"

	sqlite3migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	dbfs "github.com/wavetermdev/shadowtree/db"
)

const TelemetryDBName = "telemetry.db"
const InMemoryDBName = ":memory:"

type TxWrap = txwrap.TxWrap

func makeDB(ctx context.Context, dbName string) (*sqlx.DB, error) {
	var rtn *sqlx.DB
	var err error
	if dbName == "" || dbName == InMemoryDBName {
		log.Printf("[db] using in-memory db\n")
		rtn, err = sqlx.Open("sqlite3", InMemoryDBName)
	} else {
		log.Printf("[db] opening db %s\n", dbName)
		rtn, err = sqlx.Open("sqlite3", fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_busy_timeout=5000", dbName))
	}
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	// the in-memory db only exists on its one connection
	rtn.DB.SetMaxOpenConns(1)
	if err := rtn.PingContext(ctx); err != nil {
		rtn.Close()
		return nil, fmt.Errorf("opening db: %w", err)
	}
	return rtn, nil
}

func migrateVersion(m *migrate.Migrate) (uint, bool, error) {
	curVersion, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		return 0, false, nil
	}
	return curVersion, dirty, err
}

func makeMigrate(db *sql.DB, migrationFS fs.FS, migrationsName string) (*migrate.Migrate, error) {
	fsVar, err := iofs.New(migrationFS, migrationsName)
	if err != nil {
		return nil, fmt.Errorf("opening fs: %w", err)
	}
	mdriver, err := sqlite3migrate.WithInstance(db, &sqlite3migrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("making telemetry migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", fsVar, "sqlite3", mdriver)
	if err != nil {
		return nil, fmt.Errorf("making telemetry migration: %w", err)
	}
	return m, nil
}

// migrateUp brings the schema to the latest embedded version.
func migrateUp(db *sql.DB) (uint, error) {
	m, err := makeMigrate(db, dbfs.TelemetryMigrationFS, "migrations-telemetry")
	if err != nil {
		return 0, err
	}
	curVersion, dirty, err := migrateVersion(m)
	if dirty {
		return 0, fmt.Errorf("telemetry, migrate up, database is dirty")
	}
	if err != nil {
		return 0, fmt.Errorf("telemetry, cannot get current migration version: %v", err)
	}
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return 0, fmt.Errorf("migrating telemetry: %w", err)
	}
	newVersion, _, err := migrateVersion(m)
	if err != nil {
		return 0, fmt.Errorf("telemetry, cannot get new migration version: %v", err)
	}
	if newVersion != curVersion {
		log.Printf("[db] telemetry migration done, version %d -> %d\n", curVersion, newVersion)
	}
	return newVersion, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx *TxWrap) error) error {
	return txwrap.WithTx(ctx, s.db, fn)
}

func WithTxRtn[RT any](ctx context.Context, s *Store, fn func(tx *TxWrap) (RT, error)) (RT, error) {
	return txwrap.WithTxRtn(ctx, s.db, fn)
}
