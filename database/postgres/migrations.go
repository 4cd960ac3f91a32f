package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/pagehaven"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
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

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables pagehaven.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables pagehaven.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createSitesTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexOwner := pgx.Identifier{fmt.Sprintf("idx_%s_owner", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				subdomain TEXT NOT NULL UNIQUE,
				access_type TEXT NOT NULL,
				password_hash TEXT NOT NULL DEFAULT '',
				owner_id TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (owner_id);
		`, quotedTable, indexOwner, quotedTable)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create sites table: %w", err)
		}
		return nil
	}
}

func createMembersTable(tableName, sitesTable string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexUser := pgx.Identifier{fmt.Sprintf("idx_%s_user", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				site_id UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				user_id TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (site_id, user_id)
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (user_id);
		`, quotedTable, pgx.Identifier{sitesTable}.Sanitize(), indexUser, quotedTable)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create members table: %w", err)
		}
		return nil
	}
}

func createInvitesTable(tableName, sitesTable string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				site_id UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				user_id TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (site_id, user_id, email)
			);
		`, quotedTable, pgx.Identifier{sitesTable}.Sanitize())

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create invites table: %w", err)
		}
		return nil
	}
}

func createMetaTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexDeletedAt := pgx.Identifier{fmt.Sprintf("idx_%s_deleted_at", tableName)}.Sanitize()
		indexPendingCleanup := pgx.Identifier{fmt.Sprintf("idx_%s_pending_cleanup", tableName)}.Sanitize()
		indexActiveList := pgx.Identifier{fmt.Sprintf("idx_%s_active_list", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				site_id UUID NOT NULL,
				path TEXT NOT NULL,
				content_type TEXT NOT NULL,
				cache_control TEXT NOT NULL DEFAULT '',
				etag TEXT NOT NULL,
				file_size_bytes BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMPTZ,
				cleaned_up_at TIMESTAMPTZ,
				UNIQUE (site_id, path)
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (deleted_at)
			WHERE (deleted_at IS NOT NULL);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (deleted_at, cleaned_up_at)
			WHERE (deleted_at IS NOT NULL AND cleaned_up_at IS NULL);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (site_id, created_at, path)
			WHERE (deleted_at IS NULL);
		`,
			quotedTable,
			indexDeletedAt, quotedTable,
			indexPendingCleanup, quotedTable,
			indexActiveList, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create meta table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tableName}.Sanitize())
		_, err := pool.Exec(ctx, sql)
		return err
	}
}
