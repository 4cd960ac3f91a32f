package pagehaven

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// AccessType is the access policy classification of a site.
type AccessType string

const (
	AccessPublic    AccessType = "public"
	AccessPassword  AccessType = "password"
	AccessPrivate   AccessType = "private"
	AccessOwnerOnly AccessType = "owner_only"
)

func (a AccessType) IsValid() bool {
	switch a {
	case AccessPublic, AccessPassword, AccessPrivate, AccessOwnerOnly:
		return true
	default:
		return false
	}
}

func ParseAccessType(s string) (AccessType, error) {
	a := AccessType(s)
	if !a.IsValid() {
		return "", fmt.Errorf("invalid access type: %s (valid types: public, password, private, owner_only): %w", s, ErrInvalidInput)
	}
	return a, nil
}

// DenialReason explains why EvaluateAccess refused a request.
type DenialReason string

const (
	ReasonPasswordRequired DenialReason = "password_required"
	ReasonLoginRequired    DenialReason = "login_required"
	ReasonNotInvited       DenialReason = "not_invited"
	ReasonNotMember        DenialReason = "not_member"
)

// Identity is a verified visitor, as produced by the session verifier.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// Invite is a pending grant of access to a private site. Either field may
// be empty, but not both.
type Invite struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

type Site struct {
	ID           uuid.UUID  `json:"id"`
	Subdomain    string     `json:"subdomain"`
	AccessType   AccessType `json:"access_type"`
	PasswordHash string     `json:"password_hash,omitempty"`
	OwnerID      string     `json:"owner_id"`
	Members      []string   `json:"members,omitempty"`
	Invites      []Invite   `json:"invites,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type NewSite struct {
	Subdomain    string
	OwnerID      string
	AccessType   AccessType
	PasswordHash string
}

// Credentials are the access-relevant inputs presented by a single request.
type Credentials struct {
	PasswordCookie string
	Identity       *Identity
}

// AccessResult is the outcome of EvaluateAccess. Reason is empty when
// Allowed is true.
type AccessResult struct {
	Allowed bool
	Reason  DenialReason
}

func allow() AccessResult {
	return AccessResult{Allowed: true}
}

func deny(reason DenialReason) AccessResult {
	return AccessResult{Allowed: false, Reason: reason}
}

// MetaData describes a stored object of a site.
type MetaData struct {
	ID            uuid.UUID `json:"id"`
	SiteID        uuid.UUID `json:"site_id"`
	Path          string    `json:"path"`
	ContentType   string    `json:"content_type,omitempty"`
	CacheControl  string    `json:"cache_control,omitempty"`
	Etag          string    `json:"etag"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ObjectEntry struct {
	SiteID       uuid.UUID
	Path         string
	Size         int64
	ETag         string
	ContentType  string
	CacheControl string
}

type ListQuery struct {
	SiteID     uuid.UUID
	PathPrefix string
	Limit      int
	Cursor     string
}

type ListResult struct {
	Items      []MetaData `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type SaveResult struct {
	BytesWritten int64
	Etag         string
}

type PutObject struct {
	Path         string
	ContentType  string
	CacheControl string
}

// Tables holds configurable table names for site and object storage.
type Tables struct {
	Sites    string `mapstructure:"sites"`
	Members  string `mapstructure:"members"`
	Invites  string `mapstructure:"invites"`
	MetaData string `mapstructure:"meta_data"`
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Sites:    "pagehaven_sites",
		Members:  "pagehaven_site_members",
		Invites:  "pagehaven_site_invites",
		MetaData: "pagehaven_objects",
	}
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := []struct {
		label string
		value string
	}{
		{"sites", t.Sites},
		{"members", t.Members},
		{"invites", t.Invites},
		{"metadata", t.MetaData},
	}

	seen := make(map[string]string, len(names))
	for _, n := range names {
		if n.value == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", n.label)
		}
		if !IsValidTableName(n.value) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", n.label, n.value)
		}
		if other, dup := seen[n.value]; dup {
			return errors.New("validate tables: " + n.label + " and " + other + " share table name " + n.value)
		}
		seen[n.value] = n.label
	}

	return nil
}
