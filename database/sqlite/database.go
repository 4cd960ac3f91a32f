package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/pagehaven"

	_ "modernc.org/sqlite" // SQLite driver
)

// database provides SQLite database operations.
type database struct {
	db     *sql.DB
	tables pagehaven.Tables
}

// Connect establishes a connection to SQLite.
// Tables should be validated before calling Connect.
//
// The pool is limited to a single connection: SQLite serializes writers
// anyway, and an in-memory DSN is private to the connection that opened it.
func Connect(ctx context.Context, dsn string, tables pagehaven.Tables) (*database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: enable foreign keys: %w", err)
	}

	return &database{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the required tables if they do not exist.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// SiteRepo returns the repository for sites, members and invites.
func (d *database) SiteRepo() pagehaven.SiteRepo {
	return &siteRepo{db: d.db, tables: d.tables}
}

// ObjectRepo returns the repository for object metadata.
func (d *database) ObjectRepo() pagehaven.MetaDataRepo {
	return &repo{db: d.db, tableName: d.tables.MetaData}
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}
