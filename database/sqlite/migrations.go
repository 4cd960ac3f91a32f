package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/pagehaven"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations in dependency order.
func getTableMigrations(tables pagehaven.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Sites,
			Up:        createSitesTable(tables.Sites),
			Down:      dropTable(tables.Sites),
		},
		{
			TableName: tables.Members,
			Up:        createMembersTable(tables.Members, tables.Sites),
			Down:      dropTable(tables.Members),
		},
		{
			TableName: tables.Invites,
			Up:        createInvitesTable(tables.Invites, tables.Sites),
			Down:      dropTable(tables.Invites),
		},
		{
			TableName: tables.MetaData,
			Up:        createMetaTable(tables.MetaData),
			Down:      dropTable(tables.MetaData),
		},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables pagehaven.Tables) error {
	migrations := getTableMigrations(tables)

	for _, migration := range migrations {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables pagehaven.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func execAll(ctx context.Context, db *sql.DB, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func createSitesTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexOwner := quoteIdentifier(fmt.Sprintf("idx_%s_owner", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					subdomain TEXT NOT NULL UNIQUE,
					access_type TEXT NOT NULL,
					password_hash TEXT NOT NULL DEFAULT '',
					owner_id TEXT NOT NULL,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)
			`, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (owner_id)`, indexOwner, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create sites table: %w", err)
		}
		return nil
	}
}

func createMembersTable(tableName, sitesTable string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexUser := quoteIdentifier(fmt.Sprintf("idx_%s_user", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					site_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
					user_id TEXT NOT NULL,
					created_at TEXT NOT NULL,
					PRIMARY KEY (site_id, user_id)
				)
			`, quotedTable, quoteIdentifier(sitesTable)),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id)`, indexUser, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create members table: %w", err)
		}
		return nil
	}
}

func createInvitesTable(tableName, sitesTable string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					site_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
					user_id TEXT NOT NULL DEFAULT '',
					email TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					UNIQUE (site_id, user_id, email)
				)
			`, quotedTable, quoteIdentifier(sitesTable)),
		)
		if err != nil {
			return fmt.Errorf("create invites table: %w", err)
		}
		return nil
	}
}

func createMetaTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexDeletedAt := quoteIdentifier(fmt.Sprintf("idx_%s_deleted_at", tableName))
		indexPendingCleanup := quoteIdentifier(fmt.Sprintf("idx_%s_pending_cleanup", tableName))
		indexActiveList := quoteIdentifier(fmt.Sprintf("idx_%s_active_list", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					site_id TEXT NOT NULL,
					path TEXT NOT NULL,
					content_type TEXT NOT NULL,
					cache_control TEXT NOT NULL DEFAULT '',
					etag TEXT NOT NULL,
					file_size_bytes INTEGER NOT NULL,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					deleted_at TEXT,
					cleaned_up_at TEXT,
					UNIQUE (site_id, path)
				)
			`, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (deleted_at)`, indexDeletedAt, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (deleted_at, cleaned_up_at)`, indexPendingCleanup, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (site_id, created_at, path)`, indexActiveList, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create meta table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
