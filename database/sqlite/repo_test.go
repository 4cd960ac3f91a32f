package sqlite_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/sagarc03/pagehaven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(siteID uuid.UUID, path string) pagehaven.ObjectEntry {
	return pagehaven.ObjectEntry{
		SiteID:      siteID,
		Path:        path,
		Size:        42,
		ETag:        "etag-" + path,
		ContentType: pagehaven.ContentType(path),
	}
}

func TestRepo_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	siteID := uuid.New()

	created, inserted, err := repo.Upsert(ctx, entry(siteID, "index.html"))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, siteID, created.SiteID)
	assert.Equal(t, "text/html", created.ContentType)
	assert.Equal(t, int64(42), created.FileSizeBytes)

	updatedEntry := entry(siteID, "index.html")
	updatedEntry.Size = 7
	updatedEntry.CacheControl = "max-age=60"
	updated, inserted, err := repo.Upsert(ctx, updatedEntry)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, int64(7), updated.FileSizeBytes)
	assert.Equal(t, "max-age=60", updated.CacheControl)

	got, err := repo.Get(ctx, siteID, "index.html")
	require.NoError(t, err)
	assert.Equal(t, updated.ID, got.ID)
	assert.Equal(t, "max-age=60", got.CacheControl)
}

func TestRepo_Get(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	siteA, siteB := uuid.New(), uuid.New()

	_, _, err := repo.Upsert(ctx, entry(siteA, "index.html"))
	require.NoError(t, err)

	t.Run("error - other site", func(t *testing.T) {
		_, err := repo.Get(ctx, siteB, "index.html")
		assert.ErrorIs(t, err, pagehaven.ErrNotFound)
	})

	t.Run("error - missing path", func(t *testing.T) {
		_, err := repo.Get(ctx, siteA, "missing.html")
		assert.ErrorIs(t, err, pagehaven.ErrNotFound)
	})
}

func TestRepo_Delete(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	siteID := uuid.New()

	_, _, err := repo.Upsert(ctx, entry(siteID, "a.css"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, siteID, "a.css"))

	_, err = repo.Get(ctx, siteID, "a.css")
	assert.ErrorIs(t, err, pagehaven.ErrNotFound)

	err = repo.Delete(ctx, siteID, "a.css")
	assert.ErrorIs(t, err, pagehaven.ErrNotFound, "second delete")

	pending, err := repo.ListPendingCleanup(ctx, pagehaven.ListQuery{})
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, "a.css", pending.Items[0].Path)

	require.NoError(t, repo.MarkCleanedUp(ctx, pending.Items[0].ID))
	assert.ErrorIs(t, repo.MarkCleanedUp(ctx, pending.Items[0].ID), pagehaven.ErrNotFound)

	pending, err = repo.ListPendingCleanup(ctx, pagehaven.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, pending.Items)

	// Re-upload resurrects the row.
	_, inserted, err := repo.Upsert(ctx, entry(siteID, "a.css"))
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = repo.Get(ctx, siteID, "a.css")
	assert.NoError(t, err)
}

func TestRepo_List(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	siteID := uuid.New()

	paths := []string{"index.html", "docs/index.html", "docs/a.html", "docs_old/x.html", "img/logo.png"}
	for _, p := range paths {
		_, _, err := repo.Upsert(ctx, entry(siteID, p))
		require.NoError(t, err)
	}
	_, _, err := repo.Upsert(ctx, entry(uuid.New(), "docs/other.html"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		prefix string
		want   int
	}{
		{name: "all", prefix: "", want: 5},
		{name: "prefix", prefix: "docs/", want: 2},
		{name: "underscore is literal", prefix: "docs_", want: 1},
		{name: "no match", prefix: "zzz", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, pagehaven.ListQuery{SiteID: siteID, PathPrefix: tt.prefix})
			require.NoError(t, err)
			assert.Len(t, res.Items, tt.want)
			assert.Empty(t, res.NextCursor)
		})
	}
}

func TestRepo_ListPagination(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	siteID := uuid.New()

	for i := range 7 {
		_, _, err := repo.Upsert(ctx, entry(siteID, fmt.Sprintf("page-%d.html", i)))
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		res, err := repo.List(ctx, pagehaven.ListQuery{SiteID: siteID, Limit: 3, Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, item := range res.Items {
			assert.False(t, seen[item.Path], "duplicate %s", item.Path)
			seen[item.Path] = true
		}
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 7)

	_, err := repo.List(ctx, pagehaven.ListQuery{SiteID: siteID, Cursor: "!!"})
	assert.Error(t, err, "bad cursor")
}
