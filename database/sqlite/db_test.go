package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sagarc03/pagehaven/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "failed to open sqlite database")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestValidateSchema(t *testing.T) {
	t.Run("success - all tables valid", func(t *testing.T) {
		db := openRaw(t)
		ctx := context.Background()
		tables := randomTables(t)

		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		assert.NoError(t, sqlite.ValidateSchema(ctx, db, tables))
	})

	t.Run("success - migrate is idempotent", func(t *testing.T) {
		db := openRaw(t)
		ctx := context.Background()
		tables := randomTables(t)

		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		assert.NoError(t, sqlite.ValidateSchema(ctx, db, tables))
	})

	t.Run("error - tables do not exist", func(t *testing.T) {
		db := openRaw(t)

		err := sqlite.ValidateSchema(context.Background(), db, randomTables(t))
		assert.Error(t, err)
	})

	t.Run("error - objects table has incomplete schema", func(t *testing.T) {
		db := openRaw(t)
		ctx := context.Background()
		tables := randomTables(t)

		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		_, err := db.ExecContext(ctx, `DROP TABLE `+tables.MetaData)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `CREATE TABLE `+tables.MetaData+` (id TEXT NOT NULL PRIMARY KEY, path TEXT NOT NULL)`)
		require.NoError(t, err)

		err = sqlite.ValidateSchema(ctx, db, tables)
		assert.ErrorContains(t, err, "missing columns")
	})

	t.Run("error - wrong nullable constraint", func(t *testing.T) {
		db := openRaw(t)
		ctx := context.Background()
		tables := randomTables(t)

		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		_, err := db.ExecContext(ctx, `DROP TABLE `+tables.Members)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `CREATE TABLE `+tables.Members+` (site_id TEXT NOT NULL, user_id TEXT, created_at TEXT NOT NULL)`)
		require.NoError(t, err)

		err = sqlite.ValidateSchema(ctx, db, tables)
		assert.ErrorContains(t, err, "nullable")
	})

	t.Run("success - validates after migrate and drop cycle", func(t *testing.T) {
		db := openRaw(t)
		ctx := context.Background()
		tables := randomTables(t)

		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		require.NoError(t, sqlite.DropTables(ctx, db, tables))
		assert.Error(t, sqlite.ValidateSchema(ctx, db, tables))

		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		assert.NoError(t, sqlite.ValidateSchema(ctx, db, tables))
	})
}
