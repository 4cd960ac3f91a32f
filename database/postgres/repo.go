// Package postgres implements the pagehaven repositories using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/database/internal"
)

const metaColumns = `id, site_id, path, content_type, cache_control, etag, file_size_bytes, created_at, updated_at`

type repo struct {
	pool      *pgxpool.Pool
	tableName string
}

func scanMetaData(row pgx.Row, extra ...any) (pagehaven.MetaData, error) {
	var m pagehaven.MetaData
	dest := append([]any{
		&m.ID, &m.SiteID, &m.Path, &m.ContentType, &m.CacheControl, &m.Etag, &m.FileSizeBytes, &m.CreatedAt, &m.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return pagehaven.MetaData{}, err
	}
	return m, nil
}

func (r *repo) Get(ctx context.Context, siteID uuid.UUID, path string) (pagehaven.MetaData, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE site_id = $1 AND path = $2 AND deleted_at IS NULL
	`, metaColumns, r.tableName)

	m, err := scanMetaData(r.pool.QueryRow(ctx, query, siteID, path))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pagehaven.MetaData{}, pagehaven.ErrNotFound
		}
		return pagehaven.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry pagehaven.ObjectEntry) (pagehaven.MetaData, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (site_id, path, content_type, cache_control, etag, file_size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (site_id, path) DO UPDATE
		SET content_type = EXCLUDED.content_type,
			cache_control = EXCLUDED.cache_control,
			etag = EXCLUDED.etag,
			file_size_bytes = EXCLUDED.file_size_bytes,
			updated_at = NOW(),
			deleted_at = NULL,
			cleaned_up_at = NULL
		RETURNING %s, (xmax = 0) AS inserted
	`, r.tableName, metaColumns)

	var inserted bool
	m, err := scanMetaData(
		r.pool.QueryRow(ctx, query, entry.SiteID, entry.Path, entry.ContentType, entry.CacheControl, entry.ETag, entry.Size),
		&inserted,
	)
	if err != nil {
		return pagehaven.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	return m, inserted, nil
}

func (r *repo) Delete(ctx context.Context, siteID uuid.UUID, path string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NOW()
		WHERE site_id = $1 AND path = $2 AND deleted_at IS NULL
	`, r.tableName)

	result, err := r.pool.Exec(ctx, query, siteID, path)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete: %w", pagehaven.ErrNotFound)
	}

	return nil
}

func (r *repo) List(ctx context.Context, q pagehaven.ListQuery) (pagehaven.ListResult, error) {
	return r.listWithCondition(ctx, q, "deleted_at IS NULL AND site_id = $1", []any{q.SiteID}, "list")
}

func (r *repo) ListPendingCleanup(ctx context.Context, q pagehaven.ListQuery) (pagehaven.ListResult, error) {
	return r.listWithCondition(ctx, q, "deleted_at IS NOT NULL AND cleaned_up_at IS NULL", nil, "list pending cleanup")
}

// listWithCondition pages through rows matching whereCondition. The condition
// owns placeholders $1..$len(whereArgs); the rest are numbered after them.
func (r *repo) listWithCondition(ctx context.Context, q pagehaven.ListQuery, whereCondition string, whereArgs []any, opName string) (pagehaven.ListResult, error) {
	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return pagehaven.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}

	limit := internal.PageLimit(q.Limit)
	escapedPrefix := internal.EscapeLikePattern(q.PathPrefix)

	args := append([]any{}, whereArgs...)
	n := len(args)

	var query string
	if q.Cursor == "" {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE %s AND path LIKE $%d || '%%'
			ORDER BY created_at, path
			LIMIT $%d
		`, metaColumns, r.tableName, whereCondition, n+1, n+2)
		args = append(args, escapedPrefix, limit+1)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE %s AND path LIKE $%d || '%%' AND (created_at, path) > ($%d, $%d)
			ORDER BY created_at, path
			LIMIT $%d
		`, metaColumns, r.tableName, whereCondition, n+1, n+2, n+3, n+4)
		args = append(args, escapedPrefix, cursor.CreatedAt, cursor.Path, limit+1)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return pagehaven.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}
	defer rows.Close()

	items := make([]pagehaven.MetaData, 0, limit)
	for rows.Next() {
		m, err := scanMetaData(rows)
		if err != nil {
			return pagehaven.ListResult{}, fmt.Errorf("%s: scan: %w", opName, err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return pagehaven.ListResult{}, fmt.Errorf("%s: rows: %w", opName, err)
	}

	var nextCursor string
	if len(items) > limit {
		// Cursor points to the last item of the current page
		lastItem := items[limit-1]
		nextCursor = internal.EncodeCursor(lastItem.CreatedAt, lastItem.Path)
		items = items[:limit]
	}

	return pagehaven.ListResult{Items: items, NextCursor: nextCursor}, nil
}

func (r *repo) MarkCleanedUp(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET cleaned_up_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL AND cleaned_up_at IS NULL
	`, r.tableName)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark cleaned up: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("mark cleaned up: %w", pagehaven.ErrNotFound)
	}

	return nil
}
