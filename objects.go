package pagehaven

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ObjectService combines the metadata repository and blob storage into the
// object operations of a site. It implements ObjectReader.
type ObjectService struct {
	repo           MetaDataRepo
	storage        FileStorage
	cleanupTimeout time.Duration
}

// ServiceConfig holds configuration options for ObjectService.
type ServiceConfig struct {
	CleanupTimeout time.Duration // Timeout for cleanup operations (default: 30s)
}

func NewObjectService(repo MetaDataRepo, storage FileStorage, cfg ServiceConfig) (*ObjectService, error) {
	if repo == nil || storage == nil {
		return nil, fmt.Errorf("new object service: %w: repo and storage are required", ErrInvalidInput)
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &ObjectService{
		repo:           repo,
		storage:        storage,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// GetObject looks up the metadata of key and opens its blob. Only live
// metadata rows are considered, so soft-deleted objects are not found.
//
// A metadata row whose blob is missing is reported as ErrNotFound.
func (s *ObjectService) GetObject(ctx context.Context, siteID uuid.UUID, key string) (MetaData, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return MetaData{}, nil, fmt.Errorf("get object: %w", err)
	}

	m, err := s.repo.Get(ctx, siteID, key)
	if err != nil {
		return MetaData{}, nil, fmt.Errorf("get object: %w", err)
	}

	f, err := s.storage.Get(ctx, ObjectKey(siteID, m.Path))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("object metadata without blob", "site_id", siteID, "path", m.Path)
		}
		return MetaData{}, nil, fmt.Errorf("get object: %w", err)
	}

	return m, f, nil
}

// Put stores content as the object at obj.Path of a site and upserts its
// metadata. An empty content type is inferred from the path.
//
// The path must pass IsValidPath, otherwise ErrInvalidInput is returned
// before anything is written. If the metadata upsert fails the blob is
// removed again using a background context bounded by the cleanup timeout,
// so cleanup completes even if ctx was cancelled.
func (s *ObjectService) Put(ctx context.Context, siteID uuid.UUID, obj PutObject, content io.Reader) (MetaData, error) {
	if err := ctx.Err(); err != nil {
		return MetaData{}, fmt.Errorf("put object: %w", err)
	}

	if siteID == uuid.Nil {
		return MetaData{}, fmt.Errorf("put object: %w: site id cannot be empty", ErrInvalidInput)
	}

	if obj.Path == "" {
		return MetaData{}, fmt.Errorf("put object: %w: path cannot be empty", ErrInvalidInput)
	}

	if !IsValidPath(obj.Path) {
		return MetaData{}, fmt.Errorf("put object %s: %w", obj.Path, ErrInvalidInput)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = ContentType(obj.Path)
	}

	key := ObjectKey(siteID, obj.Path)

	saveResult, writeErr := s.storage.Write(ctx, key, content)
	if writeErr != nil {
		return MetaData{}, fmt.Errorf("put object %s: write failed: %w", obj.Path, writeErr)
	}

	oe := ObjectEntry{
		SiteID:       siteID,
		Path:         obj.Path,
		Size:         saveResult.BytesWritten,
		ETag:         saveResult.Etag,
		ContentType:  contentType,
		CacheControl: obj.CacheControl,
	}

	metaData, _, upsertErr := s.repo.Upsert(ctx, oe)
	if upsertErr != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, key); delErr != nil {
			return MetaData{}, fmt.Errorf("put object %s: metadata upsert failed (%w) and cleanup failed: %w", obj.Path, upsertErr, delErr)
		}
		return MetaData{}, fmt.Errorf("put object %s: metadata upsert failed: %w", obj.Path, upsertErr)
	}

	return metaData, nil
}

// Delete soft-deletes an object. The blob is reclaimed later by Tombstone.
func (s *ObjectService) Delete(ctx context.Context, siteID uuid.UUID, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if path == "" {
		return fmt.Errorf("delete object: %w: path cannot be empty", ErrInvalidInput)
	}

	if err := s.repo.Delete(ctx, siteID, path); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	return nil
}

func (s *ObjectService) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list object: %w", err)
	}

	result, err := s.repo.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list object: %w", err)
	}

	return result, nil
}

// ListAll pages through every live object of a site.
func (s *ObjectService) ListAll(ctx context.Context, siteID uuid.UUID) ([]MetaData, error) {
	var all []MetaData
	q := ListQuery{SiteID: siteID, Limit: 1000}

	for {
		result, err := s.List(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, result.Items...)
		if result.NextCursor == "" {
			return all, nil
		}
		q.Cursor = result.NextCursor
	}
}

// Populate synchronizes metadata from the blobs in storage. Blob keys are
// split back into site ID and path; keys that were not produced by
// ObjectKey or whose path fails IsValidPath are skipped.
//
// Blobs of sites missing from sites, and blobs whose metadata is
// soft-deleted but not yet cleaned up, are skipped too. Upserting those
// would revive objects that were deleted on purpose.
//
// It returns the number of entries upserted and stops at the first error.
// The operation is not atomic.
func (s *ObjectService) Populate(ctx context.Context, sites SiteLister) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	if sites == nil {
		return 0, fmt.Errorf("populate: %w: site lister is required", ErrInvalidInput)
	}

	files, listErr := s.storage.List(ctx)
	if listErr != nil {
		return 0, fmt.Errorf("populate: %w", listErr)
	}

	known, err := siteIDs(ctx, sites)
	if err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	pending, err := s.pendingKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	count := 0
	for _, file := range files {
		siteID, path, ok := SplitObjectKey(file.Path)
		if !ok || !IsValidPath(path) {
			slog.Warn("populate: skipping blob with foreign key", "key", file.Path)
			continue
		}

		if _, ok := known[siteID]; !ok {
			slog.Warn("populate: skipping blob of unknown site", "key", file.Path)
			continue
		}

		if _, ok := pending[file.Path]; ok {
			slog.Debug("populate: skipping soft-deleted object", "key", file.Path)
			continue
		}

		file.SiteID = siteID
		file.Path = path

		if _, _, upsertErr := s.repo.Upsert(ctx, file); upsertErr != nil {
			return count, fmt.Errorf("populate '%s': %w", file.Path, upsertErr)
		}
		count++
	}

	return count, nil
}

func siteIDs(ctx context.Context, sites SiteLister) (map[uuid.UUID]struct{}, error) {
	list, err := sites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	ids := make(map[uuid.UUID]struct{}, len(list))
	for _, site := range list {
		ids[site.ID] = struct{}{}
	}
	return ids, nil
}

// pendingKeys returns the object keys of every soft-deleted entry that is
// still waiting for Tombstone.
func (s *ObjectService) pendingKeys(ctx context.Context) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	q := ListQuery{Limit: 1000}

	for {
		result, err := s.repo.ListPendingCleanup(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("list pending cleanup: %w", err)
		}
		for _, m := range result.Items {
			keys[ObjectKey(m.SiteID, m.Path)] = struct{}{}
		}
		if result.NextCursor == "" {
			return keys, nil
		}
		q.Cursor = result.NextCursor
	}
}

// Tombstone permanently removes the blobs of soft-deleted objects and marks
// them as cleaned up. It pages until no pending items remain.
//
// A blob that is already gone (ErrNotFound) is still marked, which covers a
// previous run that deleted the blob but failed to update the metadata.
func (s *ObjectService) Tombstone(ctx context.Context, q ListQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("tombstone: %w", err)
	}

	totalCleaned := 0
	cursor := q.Cursor

	for {
		if err := ctx.Err(); err != nil {
			return totalCleaned, fmt.Errorf("tombstone: %w", err)
		}

		query := ListQuery{
			PathPrefix: q.PathPrefix,
			Limit:      q.Limit,
			Cursor:     cursor,
		}

		result, listErr := s.repo.ListPendingCleanup(ctx, query)
		if listErr != nil {
			return totalCleaned, fmt.Errorf("tombstone: %w", listErr)
		}

		if len(result.Items) == 0 {
			break
		}

		for _, file := range result.Items {
			deleteErr := s.storage.Delete(ctx, ObjectKey(file.SiteID, file.Path))
			if deleteErr != nil && !errors.Is(deleteErr, ErrNotFound) {
				return totalCleaned, fmt.Errorf("tombstone '%s': %w", file.Path, deleteErr)
			}

			updateErr := s.repo.MarkCleanedUp(ctx, file.ID)
			if updateErr != nil {
				return totalCleaned, fmt.Errorf("tombstone '%s': %w", file.Path, updateErr)
			}

			totalCleaned++
		}

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	return totalCleaned, nil
}
