package pagehaven_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sagarc03/pagehaven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSiteID = uuid.MustParse("9d3f5b1a-7c2e-4e8f-a1b2-c3d4e5f60718")

func key(path string) string {
	return testSiteID.String() + "/" + path
}

func NewObjectService(t *testing.T) (*pagehaven.ObjectService, *SpyMetaDataRepo, *SpyFileStorage) {
	t.Helper()
	spyRepo := new(SpyMetaDataRepo)
	spyStorage := new(SpyFileStorage)
	s, err := pagehaven.NewObjectService(spyRepo, spyStorage, pagehaven.ServiceConfig{})
	require.NoError(t, err, "new object service")
	return s, spyRepo, spyStorage
}

func TestObjectService_GetObject(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		meta := pagehaven.MetaData{SiteID: testSiteID, Path: "docs/index.html", ContentType: "text/html"}
		body := io.NopCloser(strings.NewReader("hello"))

		repo.On("Get", ctx, testSiteID, "docs/index.html").Return(meta, nil)
		storage.On("Get", ctx, key("docs/index.html")).Return(body, nil)

		got, rc, err := service.GetObject(ctx, testSiteID, "docs/index.html")
		require.NoError(t, err)
		assert.Equal(t, meta, got)
		assert.Equal(t, body, rc)

		repo.AssertExpectations(t)
		storage.AssertExpectations(t)
	})

	t.Run("metadata not found", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		repo.On("Get", ctx, testSiteID, "missing.html").Return(pagehaven.MetaData{}, pagehaven.ErrNotFound)

		_, _, err := service.GetObject(ctx, testSiteID, "missing.html")
		assert.ErrorIs(t, err, pagehaven.ErrNotFound)
		storage.AssertNotCalled(t, "Get")
	})

	t.Run("blob missing is not found", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		repo.On("Get", ctx, testSiteID, "a.txt").Return(pagehaven.MetaData{SiteID: testSiteID, Path: "a.txt"}, nil)
		storage.On("Get", ctx, key("a.txt")).Return(nil, pagehaven.ErrNotFound)

		_, _, err := service.GetObject(ctx, testSiteID, "a.txt")
		assert.ErrorIs(t, err, pagehaven.ErrNotFound)
	})

	t.Run("repo failure propagates", func(t *testing.T) {
		service, repo, _ := NewObjectService(t)
		ctx := context.Background()

		dbErr := errors.New("db down")
		repo.On("Get", ctx, testSiteID, "a.txt").Return(pagehaven.MetaData{}, dbErr)

		_, _, err := service.GetObject(ctx, testSiteID, "a.txt")
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, pagehaven.ErrNotFound)
	})

	t.Run("context cancelled", func(t *testing.T) {
		service, repo, _ := NewObjectService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := service.GetObject(ctx, testSiteID, "a.txt")
		assert.ErrorIs(t, err, context.Canceled)
		repo.AssertNotCalled(t, "Get")
	})
}

func TestObjectService_Put(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		content := bytes.NewBufferString("Hello World!")
		expected := pagehaven.MetaData{SiteID: testSiteID, Path: "docs/test.txt", ContentType: "text/plain", FileSizeBytes: 12, Etag: "abc123"}

		storage.On("Write", ctx, key("docs/test.txt"), content).Return(pagehaven.SaveResult{BytesWritten: 12, Etag: "abc123"}, nil)
		repo.On("Upsert", ctx, pagehaven.ObjectEntry{
			SiteID:       testSiteID,
			Path:         "docs/test.txt",
			Size:         12,
			ETag:         "abc123",
			ContentType:  "text/plain",
			CacheControl: "no-cache",
		}).Return(expected, true, nil)

		got, err := service.Put(ctx, testSiteID, pagehaven.PutObject{
			Path:         "docs/test.txt",
			ContentType:  "text/plain",
			CacheControl: "no-cache",
		}, content)
		require.NoError(t, err)
		assert.Equal(t, expected, got)

		storage.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("content type inferred from path", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		content := bytes.NewBufferString("body{}")
		storage.On("Write", ctx, key("css/site.css"), content).Return(pagehaven.SaveResult{BytesWritten: 6, Etag: "e"}, nil)
		repo.On("Upsert", ctx, mock.MatchedBy(func(entry pagehaven.ObjectEntry) bool {
			return entry.ContentType == "text/css"
		})).Return(pagehaven.MetaData{}, true, nil)

		_, err := service.Put(ctx, testSiteID, pagehaven.PutObject{Path: "css/site.css"}, content)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	invalid := []struct {
		name   string
		siteID uuid.UUID
		path   string
	}{
		{name: "empty path", siteID: testSiteID, path: ""},
		{name: "path traversal", siteID: testSiteID, path: "../etc/passwd"},
		{name: "absolute path", siteID: testSiteID, path: "/etc/passwd"},
		{name: "directory path", siteID: testSiteID, path: "docs/"},
		{name: "nil site", siteID: uuid.Nil, path: "index.html"},
	}

	for _, tt := range invalid {
		t.Run("error - "+tt.name, func(t *testing.T) {
			service, repo, storage := NewObjectService(t)

			_, err := service.Put(context.Background(), tt.siteID, pagehaven.PutObject{Path: tt.path}, bytes.NewBufferString("x"))
			assert.ErrorIs(t, err, pagehaven.ErrInvalidInput)

			storage.AssertNotCalled(t, "Write")
			repo.AssertNotCalled(t, "Upsert")
		})
	}

	t.Run("error - storage write fails", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		content := bytes.NewBufferString("data")
		storage.On("Write", ctx, key("test.txt"), content).Return(pagehaven.SaveResult{}, errors.New("disk full"))

		_, err := service.Put(ctx, testSiteID, pagehaven.PutObject{Path: "test.txt"}, content)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Upsert")
	})

	t.Run("error - metadata upsert fails with successful cleanup", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		content := bytes.NewBufferString("data")
		upsertErr := errors.New("database error")
		storage.On("Write", ctx, key("test.txt"), content).Return(pagehaven.SaveResult{BytesWritten: 4, Etag: "xyz"}, nil)
		repo.On("Upsert", ctx, mock.Anything).Return(pagehaven.MetaData{}, false, upsertErr)
		storage.On("Delete", mock.Anything, key("test.txt")).Return(nil)

		_, err := service.Put(ctx, testSiteID, pagehaven.PutObject{Path: "test.txt"}, content)
		assert.ErrorIs(t, err, upsertErr)
		storage.AssertCalled(t, "Delete", mock.Anything, key("test.txt"))
	})

	t.Run("error - metadata upsert fails and cleanup fails", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		content := bytes.NewBufferString("data")
		upsertErr := errors.New("database error")
		cleanupErr := errors.New("storage error")
		storage.On("Write", ctx, key("test.txt"), content).Return(pagehaven.SaveResult{BytesWritten: 4, Etag: "xyz"}, nil)
		repo.On("Upsert", ctx, mock.Anything).Return(pagehaven.MetaData{}, false, upsertErr)
		storage.On("Delete", mock.Anything, key("test.txt")).Return(cleanupErr)

		_, err := service.Put(ctx, testSiteID, pagehaven.PutObject{Path: "test.txt"}, content)
		assert.ErrorIs(t, err, upsertErr)
		assert.ErrorIs(t, err, cleanupErr)
		assert.Contains(t, err.Error(), "cleanup failed")
	})

	t.Run("error - context cancelled", func(t *testing.T) {
		service, _, storage := NewObjectService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := service.Put(ctx, testSiteID, pagehaven.PutObject{Path: "a.txt"}, bytes.NewBufferString("x"))
		assert.ErrorIs(t, err, context.Canceled)
		storage.AssertNotCalled(t, "Write")
	})
}

func TestObjectService_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, repo, _ := NewObjectService(t)
		ctx := context.Background()

		repo.On("Delete", ctx, testSiteID, "a.txt").Return(nil)

		assert.NoError(t, service.Delete(ctx, testSiteID, "a.txt"))
		repo.AssertExpectations(t)
	})

	t.Run("empty path", func(t *testing.T) {
		service, repo, _ := NewObjectService(t)

		err := service.Delete(context.Background(), testSiteID, "")
		assert.ErrorIs(t, err, pagehaven.ErrInvalidInput)
		repo.AssertNotCalled(t, "Delete")
	})

	t.Run("not found", func(t *testing.T) {
		service, repo, _ := NewObjectService(t)
		ctx := context.Background()

		repo.On("Delete", ctx, testSiteID, "a.txt").Return(pagehaven.ErrNotFound)

		assert.ErrorIs(t, service.Delete(ctx, testSiteID, "a.txt"), pagehaven.ErrNotFound)
	})
}

func TestObjectService_ListAll(t *testing.T) {
	service, repo, _ := NewObjectService(t)
	ctx := context.Background()

	repo.On("List", ctx, pagehaven.ListQuery{SiteID: testSiteID, Limit: 1000}).Return(pagehaven.ListResult{
		Items:      []pagehaven.MetaData{{Path: "a"}, {Path: "b"}},
		NextCursor: "next",
	}, nil).Once()
	repo.On("List", ctx, pagehaven.ListQuery{SiteID: testSiteID, Limit: 1000, Cursor: "next"}).Return(pagehaven.ListResult{
		Items: []pagehaven.MetaData{{Path: "c"}},
	}, nil).Once()

	items, err := service.ListAll(ctx, testSiteID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, "c", items[2].Path)
	repo.AssertExpectations(t)
}

func TestObjectService_Populate(t *testing.T) {
	noPending := pagehaven.ListResult{}
	pendingQuery := pagehaven.ListQuery{Limit: 1000}

	t.Run("splits keys into site and path", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		sites := new(SpySiteRepo)
		ctx := context.Background()

		otherSite := uuid.New()
		files := []pagehaven.ObjectEntry{
			{Path: key("index.html"), ContentType: "text/html", Size: 10, ETag: "e1"},
			{Path: otherSite.String() + "/img/logo.png", ContentType: "image/png", Size: 20, ETag: "e2"},
			{Path: "stray.txt", Size: 1, ETag: "e3"},
			{Path: "not-a-site/index.html", Size: 1, ETag: "e4"},
		}

		storage.On("List", ctx).Return(files, nil)
		sites.On("List", ctx).Return([]pagehaven.Site{{ID: testSiteID}, {ID: otherSite}}, nil)
		repo.On("ListPendingCleanup", ctx, pendingQuery).Return(noPending, nil)
		repo.On("Upsert", ctx, pagehaven.ObjectEntry{SiteID: testSiteID, Path: "index.html", ContentType: "text/html", Size: 10, ETag: "e1"}).Return(pagehaven.MetaData{}, true, nil)
		repo.On("Upsert", ctx, pagehaven.ObjectEntry{SiteID: otherSite, Path: "img/logo.png", ContentType: "image/png", Size: 20, ETag: "e2"}).Return(pagehaven.MetaData{}, true, nil)

		count, err := service.Populate(ctx, sites)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		repo.AssertExpectations(t)
		repo.AssertNumberOfCalls(t, "Upsert", 2)
	})

	t.Run("skips soft-deleted objects and deleted sites", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		sites := new(SpySiteRepo)
		ctx := context.Background()

		deletedSite := uuid.New()
		files := []pagehaven.ObjectEntry{
			{Path: key("index.html"), Size: 10, ETag: "e1"},
			{Path: key("old.html"), Size: 5, ETag: "e2"},
			{Path: key("older.html"), Size: 6, ETag: "e3"},
			{Path: deletedSite.String() + "/index.html", Size: 7, ETag: "e4"},
		}

		storage.On("List", ctx).Return(files, nil)
		sites.On("List", ctx).Return([]pagehaven.Site{{ID: testSiteID}}, nil)
		repo.On("ListPendingCleanup", ctx, pendingQuery).Return(pagehaven.ListResult{
			Items:      []pagehaven.MetaData{{SiteID: testSiteID, Path: "old.html"}},
			NextCursor: "next",
		}, nil).Once()
		repo.On("ListPendingCleanup", ctx, pagehaven.ListQuery{Limit: 1000, Cursor: "next"}).Return(pagehaven.ListResult{
			Items: []pagehaven.MetaData{{SiteID: testSiteID, Path: "older.html"}},
		}, nil).Once()
		repo.On("Upsert", ctx, pagehaven.ObjectEntry{SiteID: testSiteID, Path: "index.html", Size: 10, ETag: "e1"}).Return(pagehaven.MetaData{}, false, nil)

		count, err := service.Populate(ctx, sites)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		repo.AssertExpectations(t)
		repo.AssertNumberOfCalls(t, "Upsert", 1)
	})

	t.Run("storage list error", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		storage.On("List", ctx).Return([]pagehaven.ObjectEntry{}, io.ErrUnexpectedEOF)

		_, err := service.Populate(ctx, new(SpySiteRepo))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		repo.AssertNotCalled(t, "Upsert")
	})

	t.Run("site list error", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		sites := new(SpySiteRepo)
		ctx := context.Background()

		storage.On("List", ctx).Return([]pagehaven.ObjectEntry{{Path: key("a.txt")}}, nil)
		sites.On("List", ctx).Return([]pagehaven.Site(nil), io.ErrClosedPipe)

		_, err := service.Populate(ctx, sites)
		assert.ErrorIs(t, err, io.ErrClosedPipe)
		repo.AssertNotCalled(t, "Upsert")
	})

	t.Run("pending cleanup error", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		sites := new(SpySiteRepo)
		ctx := context.Background()

		storage.On("List", ctx).Return([]pagehaven.ObjectEntry{{Path: key("a.txt")}}, nil)
		sites.On("List", ctx).Return([]pagehaven.Site{{ID: testSiteID}}, nil)
		repo.On("ListPendingCleanup", ctx, pendingQuery).Return(noPending, io.ErrClosedPipe)

		_, err := service.Populate(ctx, sites)
		assert.ErrorIs(t, err, io.ErrClosedPipe)
		repo.AssertNotCalled(t, "Upsert")
	})

	t.Run("upsert error stops", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		sites := new(SpySiteRepo)
		ctx := context.Background()

		files := []pagehaven.ObjectEntry{
			{Path: key("a.txt")},
			{Path: key("b.txt")},
		}
		storage.On("List", ctx).Return(files, nil)
		sites.On("List", ctx).Return([]pagehaven.Site{{ID: testSiteID}}, nil)
		repo.On("ListPendingCleanup", ctx, pendingQuery).Return(noPending, nil)
		repo.On("Upsert", ctx, mock.Anything).Return(pagehaven.MetaData{}, false, io.ErrClosedPipe).Once()

		count, err := service.Populate(ctx, sites)
		assert.ErrorIs(t, err, io.ErrClosedPipe)
		assert.Equal(t, 0, count)
		repo.AssertNumberOfCalls(t, "Upsert", 1)
	})

	t.Run("nil site lister", func(t *testing.T) {
		service, _, storage := NewObjectService(t)

		_, err := service.Populate(context.Background(), nil)
		assert.ErrorIs(t, err, pagehaven.ErrInvalidInput)
		storage.AssertNotCalled(t, "List")
	})

	t.Run("context cancelled before operation", func(t *testing.T) {
		service, _, storage := NewObjectService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := service.Populate(ctx, new(SpySiteRepo))
		assert.ErrorIs(t, err, context.Canceled)
		storage.AssertNotCalled(t, "List")
	})
}

func TestObjectService_Tombstone(t *testing.T) {
	t.Run("deletes blobs by object key across pages", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		query := pagehaven.ListQuery{Limit: 2}
		id1, id2, id3 := uuid.New(), uuid.New(), uuid.New()
		otherSite := uuid.New()

		page1 := pagehaven.ListResult{
			Items: []pagehaven.MetaData{
				{ID: id1, SiteID: testSiteID, Path: "a.txt"},
				{ID: id2, SiteID: otherSite, Path: "b.txt"},
			},
			NextCursor: "cursor_page2",
		}
		page2 := pagehaven.ListResult{
			Items: []pagehaven.MetaData{
				{ID: id3, SiteID: testSiteID, Path: "c/d.txt"},
			},
		}

		repo.On("ListPendingCleanup", ctx, query).Return(page1, nil).Once()
		storage.On("Delete", ctx, key("a.txt")).Return(nil)
		repo.On("MarkCleanedUp", ctx, id1).Return(nil)
		storage.On("Delete", ctx, otherSite.String()+"/b.txt").Return(nil)
		repo.On("MarkCleanedUp", ctx, id2).Return(nil)

		repo.On("ListPendingCleanup", ctx, pagehaven.ListQuery{Limit: 2, Cursor: "cursor_page2"}).Return(page2, nil).Once()
		storage.On("Delete", ctx, key("c/d.txt")).Return(nil)
		repo.On("MarkCleanedUp", ctx, id3).Return(nil)

		count, err := service.Tombstone(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		repo.AssertExpectations(t)
		storage.AssertExpectations(t)
	})

	t.Run("blob already deleted is still marked", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		query := pagehaven.ListQuery{Limit: 10}
		id1 := uuid.New()

		repo.On("ListPendingCleanup", ctx, query).Return(pagehaven.ListResult{
			Items: []pagehaven.MetaData{{ID: id1, SiteID: testSiteID, Path: "gone.txt"}},
		}, nil)
		storage.On("Delete", ctx, key("gone.txt")).Return(pagehaven.ErrNotFound)
		repo.On("MarkCleanedUp", ctx, id1).Return(nil)

		count, err := service.Tombstone(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		repo.AssertExpectations(t)
	})

	t.Run("storage failure stops", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		query := pagehaven.ListQuery{Limit: 10}
		id1 := uuid.New()

		repo.On("ListPendingCleanup", ctx, query).Return(pagehaven.ListResult{
			Items: []pagehaven.MetaData{{ID: id1, SiteID: testSiteID, Path: "a.txt"}},
		}, nil)
		storage.On("Delete", ctx, key("a.txt")).Return(errors.New("permission denied"))

		count, err := service.Tombstone(ctx, query)
		assert.Error(t, err)
		assert.Equal(t, 0, count)
		repo.AssertNotCalled(t, "MarkCleanedUp", mock.Anything, mock.Anything)
	})

	t.Run("empty list", func(t *testing.T) {
		service, repo, storage := NewObjectService(t)
		ctx := context.Background()

		query := pagehaven.ListQuery{Limit: 10}
		repo.On("ListPendingCleanup", ctx, query).Return(pagehaven.ListResult{}, nil)

		count, err := service.Tombstone(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		storage.AssertNotCalled(t, "Delete")
	})
}
