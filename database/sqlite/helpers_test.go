package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/database/sqlite"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// randomTables returns a distinct set of table names for test isolation.
func randomTables(t *testing.T) pagehaven.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return pagehaven.Tables{
		Sites:    "sites_" + suffix,
		Members:  "members_" + suffix,
		Invites:  "invites_" + suffix,
		MetaData: "objects_" + suffix,
	}
}

type testDB interface {
	Migrate(ctx context.Context) error
	SiteRepo() pagehaven.SiteRepo
	ObjectRepo() pagehaven.MetaDataRepo
	Close() error
}

func setupTestDatabase(t *testing.T) testDB {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx), "failed to migrate")

	return db
}

// setupTestRepo returns an object repo backed by a fresh in-memory database.
func setupTestRepo(t *testing.T) pagehaven.MetaDataRepo {
	t.Helper()
	return setupTestDatabase(t).ObjectRepo()
}

// setupTestSites returns a site repo backed by a fresh in-memory database.
func setupTestSites(t *testing.T) pagehaven.SiteRepo {
	t.Helper()
	return setupTestDatabase(t).SiteRepo()
}
