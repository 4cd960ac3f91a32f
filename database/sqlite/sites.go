package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/pagehaven"
)

const siteColumns = `id, subdomain, access_type, password_hash, owner_id, created_at, updated_at`

type siteRepo struct {
	db     *sql.DB
	tables pagehaven.Tables
}

func scanSite(row rowScanner) (pagehaven.Site, error) {
	var s pagehaven.Site
	var idStr, access, createdAt, updatedAt string

	if err := row.Scan(&idStr, &s.Subdomain, &access, &s.PasswordHash, &s.OwnerID, &createdAt, &updatedAt); err != nil {
		return pagehaven.Site{}, err
	}

	var err error
	if s.ID, err = uuid.Parse(idStr); err != nil {
		return pagehaven.Site{}, fmt.Errorf("parse uuid: %w", err)
	}
	s.AccessType = pagehaven.AccessType(access)
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return pagehaven.Site{}, fmt.Errorf("parse created_at: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return pagehaven.Site{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return s, nil
}

// ResolveSite reads the site row and its relations inside one transaction,
// so a concurrent AcceptInvite is seen either fully applied or not at all.
func (r *siteRepo) ResolveSite(ctx context.Context, subdomain string) (pagehaven.Site, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return pagehaven.Site{}, fmt.Errorf("resolve site: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE subdomain = ?`, siteColumns, r.tables.Sites) //nolint:gosec // table name is validated

	site, err := scanSite(tx.QueryRowContext(ctx, query, strings.ToLower(subdomain)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pagehaven.Site{}, pagehaven.ErrNotFound
		}
		return pagehaven.Site{}, fmt.Errorf("resolve site: %w", err)
	}

	if site.Members, err = r.members(ctx, tx, site.ID); err != nil {
		return pagehaven.Site{}, fmt.Errorf("resolve site: %w", err)
	}

	if site.Invites, err = r.invites(ctx, tx, site.ID); err != nil {
		return pagehaven.Site{}, fmt.Errorf("resolve site: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return pagehaven.Site{}, fmt.Errorf("resolve site: commit: %w", err)
	}

	return site, nil
}

func (r *siteRepo) members(ctx context.Context, tx *sql.Tx, siteID uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT user_id FROM %s WHERE site_id = ? ORDER BY user_id`, r.tables.Members) //nolint:gosec // table name is validated

	rows, err := tx.QueryContext(ctx, query, siteID.String())
	if err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("members: scan: %w", err)
		}
		members = append(members, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("members: rows: %w", err)
	}

	return members, nil
}

func (r *siteRepo) invites(ctx context.Context, tx *sql.Tx, siteID uuid.UUID) ([]pagehaven.Invite, error) {
	query := fmt.Sprintf(`SELECT user_id, email FROM %s WHERE site_id = ? ORDER BY created_at`, r.tables.Invites) //nolint:gosec // table name is validated

	rows, err := tx.QueryContext(ctx, query, siteID.String())
	if err != nil {
		return nil, fmt.Errorf("invites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invites []pagehaven.Invite
	for rows.Next() {
		var inv pagehaven.Invite
		if err := rows.Scan(&inv.UserID, &inv.Email); err != nil {
			return nil, fmt.Errorf("invites: scan: %w", err)
		}
		invites = append(invites, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("invites: rows: %w", err)
	}

	return invites, nil
}

func (r *siteRepo) Create(ctx context.Context, site pagehaven.NewSite) (pagehaven.Site, error) {
	ts := now()
	id := uuid.New()

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, subdomain, access_type, password_hash, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, r.tables.Sites)

	_, err := r.db.ExecContext(ctx, query,
		id.String(), site.Subdomain, string(site.AccessType), site.PasswordHash, site.OwnerID, ts, ts,
	)
	if err != nil {
		return pagehaven.Site{}, fmt.Errorf("create site: %w", mapConstraintError(err))
	}

	createdAt, _ := parseTime(ts)

	return pagehaven.Site{
		ID:           id,
		Subdomain:    site.Subdomain,
		AccessType:   site.AccessType,
		PasswordHash: site.PasswordHash,
		OwnerID:      site.OwnerID,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

func (r *siteRepo) List(ctx context.Context) ([]pagehaven.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY subdomain`, siteColumns, r.tables.Sites) //nolint:gosec // table name is validated

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sites := []pagehaven.Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("list sites: scan: %w", err)
		}
		sites = append(sites, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sites: rows: %w", err)
	}

	return sites, nil
}

func (r *siteRepo) UpdateAccess(ctx context.Context, siteID uuid.UUID, access pagehaven.AccessType, passwordHash string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET access_type = ?, password_hash = ?, updated_at = ? WHERE id = ?`, r.tables.Sites)

	return execOne(ctx, r.db, "update access", query, string(access), passwordHash, now(), siteID.String())
}

func (r *siteRepo) AddMember(ctx context.Context, siteID uuid.UUID, userID string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (site_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (site_id, user_id) DO NOTHING`, r.tables.Members)

	if _, err := r.db.ExecContext(ctx, query, siteID.String(), userID, now()); err != nil {
		return fmt.Errorf("add member: %w", mapConstraintError(err))
	}
	return nil
}

func (r *siteRepo) RemoveMember(ctx context.Context, siteID uuid.UUID, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE site_id = ? AND user_id = ?`, r.tables.Members) //nolint:gosec // table name is validated

	return execOne(ctx, r.db, "remove member", query, siteID.String(), userID)
}

func (r *siteRepo) AddInvite(ctx context.Context, siteID uuid.UUID, invite pagehaven.Invite) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, site_id, user_id, email, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (site_id, user_id, email) DO NOTHING`, r.tables.Invites)

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), siteID.String(), invite.UserID, strings.ToLower(invite.Email), now(),
	)
	if err != nil {
		return fmt.Errorf("add invite: %w", mapConstraintError(err))
	}
	return nil
}

func (r *siteRepo) AcceptInvite(ctx context.Context, siteID uuid.UUID, identity pagehaven.Identity) error {
	if identity.UserID == "" {
		return fmt.Errorf("accept invite: %w: user id cannot be empty", pagehaven.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("accept invite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s
		WHERE site_id = ? AND (user_id = ? OR (email <> '' AND email = ?))`, r.tables.Invites)

	result, err := tx.ExecContext(ctx, deleteQuery, siteID.String(), identity.UserID, strings.ToLower(identity.Email))
	if err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("accept invite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("accept invite: %w", pagehaven.ErrNotFound)
	}

	insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (site_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (site_id, user_id) DO NOTHING`, r.tables.Members)

	if _, err := tx.ExecContext(ctx, insertQuery, siteID.String(), identity.UserID, now()); err != nil {
		return fmt.Errorf("accept invite: add member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("accept invite: commit: %w", err)
	}

	return nil
}

// Delete removes the site and soft-deletes its live objects in one
// transaction. Relations are deleted explicitly as well, so the result does
// not depend on the foreign_keys pragma of the connection.
func (r *siteRepo) Delete(ctx context.Context, siteID uuid.UUID) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete site: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.tables.Sites) //nolint:gosec // table name is validated
	result, err := tx.ExecContext(ctx, query, siteID.String())
	if err != nil {
		return 0, fmt.Errorf("delete site: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete site: rows affected: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("delete site: %w", pagehaven.ErrNotFound)
	}

	for _, table := range []string{r.tables.Members, r.tables.Invites} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE site_id = ?`, table) //nolint:gosec // table name is validated
		if _, err := tx.ExecContext(ctx, query, siteID.String()); err != nil {
			return 0, fmt.Errorf("delete site: %s: %w", table, err)
		}
	}

	objectsQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET deleted_at = ?
		WHERE site_id = ? AND deleted_at IS NULL`, r.tables.MetaData)

	result, err = tx.ExecContext(ctx, objectsQuery, now(), siteID.String())
	if err != nil {
		return 0, fmt.Errorf("delete site: objects: %w", err)
	}

	marked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete site: objects: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete site: commit: %w", err)
	}

	return marked, nil
}

func execOne(ctx context.Context, db *sql.DB, op, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, pagehaven.ErrNotFound)
	}

	return nil
}
