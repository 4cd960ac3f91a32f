// Package sqlite implements the pagehaven repositories using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/database/internal"
)

const metaColumns = `id, site_id, path, content_type, cache_control, etag, file_size_bytes, created_at, updated_at`

type repo struct {
	db        *sql.DB
	tableName string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetaData(row rowScanner) (pagehaven.MetaData, error) {
	var m pagehaven.MetaData
	var idStr, siteIDStr, createdAt, updatedAt string

	if err := row.Scan(&idStr, &siteIDStr, &m.Path, &m.ContentType, &m.CacheControl, &m.Etag, &m.FileSizeBytes, &createdAt, &updatedAt); err != nil {
		return pagehaven.MetaData{}, err
	}

	var err error
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return pagehaven.MetaData{}, fmt.Errorf("parse uuid: %w", err)
	}
	if m.SiteID, err = uuid.Parse(siteIDStr); err != nil {
		return pagehaven.MetaData{}, fmt.Errorf("parse site uuid: %w", err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return pagehaven.MetaData{}, fmt.Errorf("parse created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return pagehaven.MetaData{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return m, nil
}

func (r *repo) Get(ctx context.Context, siteID uuid.UUID, path string) (pagehaven.MetaData, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s
		FROM %s
		WHERE site_id = ? AND path = ? AND deleted_at IS NULL`, metaColumns, r.tableName)

	m, err := scanMetaData(r.db.QueryRowContext(ctx, query, siteID.String(), path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pagehaven.MetaData{}, pagehaven.ErrNotFound
		}
		return pagehaven.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry pagehaven.ObjectEntry) (pagehaven.MetaData, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return pagehaven.MetaData{}, false, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Check if entry exists first to determine if this is an insert or update
	var existingID string
	checkQuery := fmt.Sprintf(`SELECT id FROM %s WHERE site_id = ? AND path = ?`, r.tableName) //nolint:gosec // table name is validated
	err = tx.QueryRowContext(ctx, checkQuery, entry.SiteID.String(), entry.Path).Scan(&existingID)
	isInsert := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isInsert {
		return pagehaven.MetaData{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}

	ts := now()

	if isInsert {
		insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`INSERT INTO %s (id, site_id, path, content_type, cache_control, etag, file_size_bytes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.tableName)

		_, err = tx.ExecContext(ctx, insertQuery,
			uuid.New().String(), entry.SiteID.String(), entry.Path, entry.ContentType, entry.CacheControl, entry.ETag, entry.Size, ts, ts,
		)
		if err != nil {
			return pagehaven.MetaData{}, false, fmt.Errorf("upsert: insert: %w", err)
		}
	} else {
		updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`UPDATE %s
			SET content_type = ?, cache_control = ?, etag = ?, file_size_bytes = ?, updated_at = ?,
				deleted_at = NULL, cleaned_up_at = NULL
			WHERE id = ?`, r.tableName)

		_, err = tx.ExecContext(ctx, updateQuery,
			entry.ContentType, entry.CacheControl, entry.ETag, entry.Size, ts, existingID,
		)
		if err != nil {
			return pagehaven.MetaData{}, false, fmt.Errorf("upsert: update: %w", err)
		}
	}

	selectQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE site_id = ? AND path = ?`, metaColumns, r.tableName) //nolint:gosec // table name is validated
	m, err := scanMetaData(tx.QueryRowContext(ctx, selectQuery, entry.SiteID.String(), entry.Path))
	if err != nil {
		return pagehaven.MetaData{}, false, fmt.Errorf("upsert: read back: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return pagehaven.MetaData{}, false, fmt.Errorf("upsert: commit: %w", err)
	}

	return m, isInsert, nil
}

func (r *repo) Delete(ctx context.Context, siteID uuid.UUID, path string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET deleted_at = ?
		WHERE site_id = ? AND path = ? AND deleted_at IS NULL`, r.tableName)

	result, err := r.db.ExecContext(ctx, query, now(), siteID.String(), path)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete: %w", pagehaven.ErrNotFound)
	}

	return nil
}

func (r *repo) List(ctx context.Context, q pagehaven.ListQuery) (pagehaven.ListResult, error) {
	return r.listWithCondition(ctx, q, "deleted_at IS NULL AND site_id = ?", []any{q.SiteID.String()}, "list")
}

func (r *repo) ListPendingCleanup(ctx context.Context, q pagehaven.ListQuery) (pagehaven.ListResult, error) {
	return r.listWithCondition(ctx, q, "deleted_at IS NOT NULL AND cleaned_up_at IS NULL", nil, "list pending cleanup")
}

func (r *repo) listWithCondition(ctx context.Context, q pagehaven.ListQuery, whereCondition string, whereArgs []any, opName string) (pagehaven.ListResult, error) {
	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return pagehaven.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}

	limit := internal.PageLimit(q.Limit)
	escapedPrefix := internal.EscapeLikePattern(q.PathPrefix)

	var query string
	args := append([]any{}, whereArgs...)

	if q.Cursor == "" {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE %s AND path LIKE ? || '%%' ESCAPE '\'
			ORDER BY created_at, path
			LIMIT ?
		`, metaColumns, r.tableName, whereCondition)
		args = append(args, escapedPrefix, limit+1)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE %s AND path LIKE ? || '%%' ESCAPE '\' AND (created_at, path) > (?, ?)
			ORDER BY created_at, path
			LIMIT ?
		`, metaColumns, r.tableName, whereCondition)
		args = append(args, escapedPrefix, formatTime(cursor.CreatedAt), cursor.Path, limit+1)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return pagehaven.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]pagehaven.MetaData, 0, limit)
	for rows.Next() {
		m, scanErr := scanMetaData(rows)
		if scanErr != nil {
			return pagehaven.ListResult{}, fmt.Errorf("%s: scan: %w", opName, scanErr)
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
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET cleaned_up_at = ?
		WHERE id = ? AND deleted_at IS NOT NULL AND cleaned_up_at IS NULL`, r.tableName)

	result, err := r.db.ExecContext(ctx, query, now(), id.String())
	if err != nil {
		return fmt.Errorf("mark cleaned up: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark cleaned up: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("mark cleaned up: %w", pagehaven.ErrNotFound)
	}

	return nil
}
