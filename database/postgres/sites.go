package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/pagehaven"
)

const siteColumns = `id, subdomain, access_type, password_hash, owner_id, created_at, updated_at`

type siteRepo struct {
	pool   *pgxpool.Pool
	tables pagehaven.Tables
}

func scanSite(row pgx.Row) (pagehaven.Site, error) {
	var s pagehaven.Site
	var access string
	if err := row.Scan(&s.ID, &s.Subdomain, &access, &s.PasswordHash, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return pagehaven.Site{}, err
	}
	s.AccessType = pagehaven.AccessType(access)
	return s, nil
}

// ResolveSite loads the site together with its members and pending invites.
// The reads share one repeatable-read snapshot so a concurrent AcceptInvite
// is seen either fully applied or not at all.
func (r *siteRepo) ResolveSite(ctx context.Context, subdomain string) (pagehaven.Site, error) {
	var site pagehaven.Site

	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, r.pool, opts, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE subdomain = $1`, siteColumns, r.tables.Sites)

		var err error
		site, err = scanSite(tx.QueryRow(ctx, query, strings.ToLower(subdomain)))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return pagehaven.ErrNotFound
			}
			return fmt.Errorf("resolve site: %w", err)
		}

		membersQuery := fmt.Sprintf(`SELECT user_id FROM %s WHERE site_id = $1 ORDER BY user_id`, r.tables.Members)
		rows, err := tx.Query(ctx, membersQuery, site.ID)
		if err != nil {
			return fmt.Errorf("resolve site: members: %w", err)
		}
		site.Members, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("resolve site: members: %w", err)
		}

		invitesQuery := fmt.Sprintf(`SELECT user_id, email FROM %s WHERE site_id = $1 ORDER BY created_at`, r.tables.Invites)
		rows, err = tx.Query(ctx, invitesQuery, site.ID)
		if err != nil {
			return fmt.Errorf("resolve site: invites: %w", err)
		}
		site.Invites, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (pagehaven.Invite, error) {
			var inv pagehaven.Invite
			err := row.Scan(&inv.UserID, &inv.Email)
			return inv, err
		})
		if err != nil {
			return fmt.Errorf("resolve site: invites: %w", err)
		}

		return nil
	})
	if err != nil {
		return pagehaven.Site{}, err
	}

	if len(site.Members) == 0 {
		site.Members = nil
	}
	if len(site.Invites) == 0 {
		site.Invites = nil
	}

	return site, nil
}

func (r *siteRepo) Create(ctx context.Context, site pagehaven.NewSite) (pagehaven.Site, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (subdomain, access_type, password_hash, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, r.tables.Sites, siteColumns)

	created, err := scanSite(r.pool.QueryRow(ctx, query, site.Subdomain, string(site.AccessType), site.PasswordHash, site.OwnerID))
	if err != nil {
		return pagehaven.Site{}, fmt.Errorf("create site: %w", mapPgError(err))
	}

	return created, nil
}

func (r *siteRepo) List(ctx context.Context) ([]pagehaven.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY subdomain`, siteColumns, r.tables.Sites)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	sites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pagehaven.Site, error) {
		return scanSite(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	return sites, nil
}

func (r *siteRepo) UpdateAccess(ctx context.Context, siteID uuid.UUID, access pagehaven.AccessType, passwordHash string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET access_type = $1, password_hash = $2, updated_at = NOW()
		WHERE id = $3
	`, r.tables.Sites)

	result, err := r.pool.Exec(ctx, query, string(access), passwordHash, siteID)
	if err != nil {
		return fmt.Errorf("update access: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update access: %w", pagehaven.ErrNotFound)
	}

	return nil
}

func (r *siteRepo) AddMember(ctx context.Context, siteID uuid.UUID, userID string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (site_id, user_id) VALUES ($1, $2)
		ON CONFLICT (site_id, user_id) DO NOTHING
	`, r.tables.Members)

	if _, err := r.pool.Exec(ctx, query, siteID, userID); err != nil {
		return fmt.Errorf("add member: %w", mapPgError(err))
	}
	return nil
}

func (r *siteRepo) RemoveMember(ctx context.Context, siteID uuid.UUID, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE site_id = $1 AND user_id = $2`, r.tables.Members)

	result, err := r.pool.Exec(ctx, query, siteID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("remove member: %w", pagehaven.ErrNotFound)
	}

	return nil
}

func (r *siteRepo) AddInvite(ctx context.Context, siteID uuid.UUID, invite pagehaven.Invite) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (site_id, user_id, email) VALUES ($1, $2, $3)
		ON CONFLICT (site_id, user_id, email) DO NOTHING
	`, r.tables.Invites)

	if _, err := r.pool.Exec(ctx, query, siteID, invite.UserID, strings.ToLower(invite.Email)); err != nil {
		return fmt.Errorf("add invite: %w", mapPgError(err))
	}
	return nil
}

// AcceptInvite consumes every invite matching the identity and records the
// user as a member in a single transaction.
func (r *siteRepo) AcceptInvite(ctx context.Context, siteID uuid.UUID, identity pagehaven.Identity) error {
	if identity.UserID == "" {
		return fmt.Errorf("accept invite: %w: user id cannot be empty", pagehaven.ErrInvalidInput)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		deleteQuery := fmt.Sprintf(`
			DELETE FROM %s
			WHERE site_id = $1 AND (user_id = $2 OR (email <> '' AND email = $3))
		`, r.tables.Invites)

		result, err := tx.Exec(ctx, deleteQuery, siteID, identity.UserID, strings.ToLower(identity.Email))
		if err != nil {
			return fmt.Errorf("accept invite: %w", err)
		}

		if result.RowsAffected() == 0 {
			return fmt.Errorf("accept invite: %w", pagehaven.ErrNotFound)
		}

		insertQuery := fmt.Sprintf(`
			INSERT INTO %s (site_id, user_id) VALUES ($1, $2)
			ON CONFLICT (site_id, user_id) DO NOTHING
		`, r.tables.Members)

		if _, err := tx.Exec(ctx, insertQuery, siteID, identity.UserID); err != nil {
			return fmt.Errorf("accept invite: add member: %w", err)
		}

		return nil
	})
}

// Delete removes the site and soft-deletes its live objects in one
// transaction. Members and invites go with the site via ON DELETE CASCADE.
func (r *siteRepo) Delete(ctx context.Context, siteID uuid.UUID) (int64, error) {
	var marked int64

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Sites)

		result, err := tx.Exec(ctx, query, siteID)
		if err != nil {
			return fmt.Errorf("delete site: %w", err)
		}

		if result.RowsAffected() == 0 {
			return fmt.Errorf("delete site: %w", pagehaven.ErrNotFound)
		}

		objectsQuery := fmt.Sprintf(`
			UPDATE %s
			SET deleted_at = NOW()
			WHERE site_id = $1 AND deleted_at IS NULL
		`, r.tables.MetaData)

		result, err = tx.Exec(ctx, objectsQuery, siteID)
		if err != nil {
			return fmt.Errorf("delete site: objects: %w", err)
		}

		marked = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	return marked, nil
}
