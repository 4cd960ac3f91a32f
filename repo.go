package pagehaven

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// SiteResolver maps a subdomain to its site record, including the access
// relations (members and pending invites) needed to evaluate access.
type SiteResolver interface {
	// ResolveSite returns ErrNotFound when no site owns the subdomain.
	ResolveSite(ctx context.Context, subdomain string) (Site, error)
}

// SiteRepo defines persistence for sites and their access relations.
// Implementations must be safe for concurrent use.
type SiteRepo interface {
	SiteResolver

	// Create inserts a new site.
	//
	// Returns:
	//   - Site: the stored site with ID and timestamps
	//   - error: ErrConflict if the subdomain is taken, or other database errors
	Create(ctx context.Context, site NewSite) (Site, error)

	// List returns all sites ordered by subdomain, without their relations.
	List(ctx context.Context) ([]Site, error)

	// UpdateAccess replaces the access type and password hash of a site.
	//
	// Returns ErrNotFound if the site doesn't exist.
	UpdateAccess(ctx context.Context, siteID uuid.UUID, access AccessType, passwordHash string) error

	// AddMember grants standing access to userID. Adding an existing member is a no-op.
	AddMember(ctx context.Context, siteID uuid.UUID, userID string) error

	// RemoveMember returns ErrNotFound if userID is not a member.
	RemoveMember(ctx context.Context, siteID uuid.UUID, userID string) error

	// AddInvite records a pending invite.
	AddInvite(ctx context.Context, siteID uuid.UUID, invite Invite) error

	// AcceptInvite converts every invite matching the identity into a
	// membership for identity.UserID, in a single transaction.
	//
	// Returns ErrNotFound if no invite matches.
	AcceptInvite(ctx context.Context, siteID uuid.UUID, identity Identity) error

	// Delete removes the site with its members and invites and soft-deletes
	// every live object of the site, all in one transaction. It reports how
	// many objects were marked for cleanup.
	//
	// Returns ErrNotFound if the site doesn't exist; nothing is changed then.
	Delete(ctx context.Context, siteID uuid.UUID) (int64, error)
}

// SiteLister lists the sites that currently exist. SiteRepo satisfies it.
type SiteLister interface {
	List(ctx context.Context) ([]Site, error)
}

// MetaDataRepo defines the interface for managing object metadata persistence.
// Objects are scoped by site; paths are unique per site.
//
// All methods accept a context for cancellation and timeout control.
type MetaDataRepo interface {
	// Get retrieves metadata for a specific object of a site.
	//
	// Returns:
	//   - MetaData: The metadata entry if found
	//   - error: ErrNotFound if path doesn't exist, or other database errors
	Get(ctx context.Context, siteID uuid.UUID, path string) (MetaData, error)

	// Upsert creates or updates metadata for an object.
	//
	// Returns:
	//   - MetaData: The created or updated metadata entry with ID and timestamps
	//   - bool: true if a new entry was created, false if existing entry was updated
	//   - error: Any database or validation error
	Upsert(ctx context.Context, entry ObjectEntry) (MetaData, bool, error)

	// Delete soft-deletes the metadata of one object.
	//
	// Returns ErrNotFound if path doesn't exist.
	Delete(ctx context.Context, siteID uuid.UUID, path string) error

	// List retrieves a paginated list of live metadata entries of q.SiteID.
	List(ctx context.Context, q ListQuery) (ListResult, error)

	// ListPendingCleanup retrieves a paginated list of soft-deleted metadata entries
	// across all sites that have not yet been cleaned up. q.SiteID is ignored.
	ListPendingCleanup(ctx context.Context, q ListQuery) (ListResult, error)

	// MarkCleanedUp marks a soft-deleted metadata entry as cleaned up by setting cleaned_up_at.
	// This should be called after the physical file has been deleted.
	//
	// Returns ErrNotFound if entry doesn't exist or isn't pending cleanup.
	MarkCleanedUp(ctx context.Context, id uuid.UUID) error
}

// FileStorage defines the interface for physical blob storage operations.
// Keys are opaque strings produced by ObjectKey.
//
// Implementations can use local filesystem, S3, a remote stowry server or
// any other storage backend.
type FileStorage interface {
	// Get retrieves a blob for reading.
	//
	// Returns:
	//   - io.ReadCloser: Reader for blob content. Implementations backed by
	//     seekable storage should return an io.ReadSeekCloser so range
	//     requests can be served.
	//   - error: ErrNotFound if the blob doesn't exist, or other storage errors
	//
	// The caller is responsible for closing the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Write stores content at key, overwriting any existing blob.
	//
	// Returns:
	//   - SaveResult: Contains bytes written and computed ETag/hash
	//   - error: Any storage or I/O error
	Write(ctx context.Context, key string, content io.Reader) (SaveResult, error)

	// Delete removes a blob.
	//
	// Returns ErrNotFound if the blob doesn't exist and the backend can tell.
	Delete(ctx context.Context, key string) error

	// List returns all blobs currently in storage. Path holds the full key;
	// SiteID is left zero and resolved by the caller.
	List(ctx context.Context) ([]ObjectEntry, error)
}
