package pagehaven

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SiteInvalidator drops cached site records after a mutation.
type SiteInvalidator interface {
	Invalidate(ctx context.Context, subdomain string) error
}

// SiteService manages sites and their access relations. Sites are
// addressed by subdomain, which never changes after creation.
type SiteService struct {
	sites       SiteRepo
	invalidator SiteInvalidator
}

// NewSiteService creates a SiteService. invalidator may be nil when no site
// cache is configured.
func NewSiteService(sites SiteRepo, invalidator SiteInvalidator) (*SiteService, error) {
	if sites == nil {
		return nil, fmt.Errorf("new site service: %w: site repository is required", ErrInvalidInput)
	}
	return &SiteService{
		sites:       sites,
		invalidator: invalidator,
	}, nil
}

// CreateSite validates and stores a new site. An empty access type defaults
// to public.
//
// Returns ErrInvalidInput for a malformed subdomain, a missing owner, an
// unknown access type or a password site without a hash, and ErrConflict
// when the subdomain is taken.
func (s *SiteService) CreateSite(ctx context.Context, site NewSite) (Site, error) {
	if err := ctx.Err(); err != nil {
		return Site{}, fmt.Errorf("create site: %w", err)
	}

	site.Subdomain = strings.ToLower(strings.TrimSpace(site.Subdomain))
	if !IsValidSubdomain(site.Subdomain) {
		return Site{}, fmt.Errorf("create site %q: %w: subdomain must be a lowercase DNS label", site.Subdomain, ErrInvalidInput)
	}

	if site.OwnerID == "" {
		return Site{}, fmt.Errorf("create site %s: %w: owner cannot be empty", site.Subdomain, ErrInvalidInput)
	}

	if site.AccessType == "" {
		site.AccessType = AccessPublic
	}

	hash, err := accessHash(site.AccessType, site.PasswordHash)
	if err != nil {
		return Site{}, fmt.Errorf("create site %s: %w", site.Subdomain, err)
	}
	site.PasswordHash = hash

	created, err := s.sites.Create(ctx, site)
	if err != nil {
		return Site{}, fmt.Errorf("create site %s: %w", site.Subdomain, err)
	}

	s.invalidate(ctx, created.Subdomain)

	return created, nil
}

// GetSite returns the site with its members and invites.
func (s *SiteService) GetSite(ctx context.Context, subdomain string) (Site, error) {
	site, err := s.sites.ResolveSite(ctx, subdomain)
	if err != nil {
		return Site{}, fmt.Errorf("get site %s: %w", subdomain, err)
	}
	return site, nil
}

func (s *SiteService) ListSites(ctx context.Context) ([]Site, error) {
	sites, err := s.sites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

// SetAccess changes the access policy of a site. The password type requires
// a non-empty hash; every other type clears the stored hash.
func (s *SiteService) SetAccess(ctx context.Context, subdomain string, access AccessType, passwordHash string) error {
	hash, err := accessHash(access, passwordHash)
	if err != nil {
		return fmt.Errorf("set access %s: %w", subdomain, err)
	}

	site, err := s.sites.ResolveSite(ctx, subdomain)
	if err != nil {
		return fmt.Errorf("set access %s: %w", subdomain, err)
	}

	if err := s.sites.UpdateAccess(ctx, site.ID, access, hash); err != nil {
		return fmt.Errorf("set access %s: %w", subdomain, err)
	}

	s.invalidate(ctx, subdomain)
	return nil
}

func (s *SiteService) AddMember(ctx context.Context, subdomain, userID string) error {
	if userID == "" {
		return fmt.Errorf("add member %s: %w: user id cannot be empty", subdomain, ErrInvalidInput)
	}

	site, err := s.sites.ResolveSite(ctx, subdomain)
	if err != nil {
		return fmt.Errorf("add member %s: %w", subdomain, err)
	}

	if err := s.sites.AddMember(ctx, site.ID, userID); err != nil {
		return fmt.Errorf("add member %s: %w", subdomain, err)
	}

	s.invalidate(ctx, subdomain)
	return nil
}

func (s *SiteService) RemoveMember(ctx context.Context, subdomain, userID string) error {
	site, err := s.sites.ResolveSite(ctx, subdomain)
	if err != nil {
		return fmt.Errorf("remove member %s: %w", subdomain, err)
	}

	if err := s.sites.RemoveMember(ctx, site.ID, userID); err != nil {
		return fmt.Errorf("remove member %s: %w", subdomain, err)
	}

	s.invalidate(ctx, subdomain)
	return nil
}

// AddInvite records a pending invite addressed to a user ID, an email, or both.
func (s *SiteService) AddInvite(ctx context.Context, subdomain string, invite Invite) error {
	invite.Email = strings.TrimSpace(invite.Email)
	if invite.UserID == "" && invite.Email == "" {
		return fmt.Errorf("add invite %s: %w: user id or email is required", subdomain, ErrInvalidInput)
	}

	site, err := s.sites.ResolveSite(ctx, subdomain)
	if err != nil {
		return fmt.Errorf("add invite %s: %w", subdomain, err)
	}

	if err := s.sites.AddInvite(ctx, site.ID, invite); err != nil {
		return fmt.Errorf("add invite %s: %w", subdomain, err)
	}

	s.invalidate(ctx, subdomain)
	return nil
}

// AcceptInvite turns the invites matching identity into a membership.
// Returns ErrNotFound when no invite matches.
func (s *SiteService) AcceptInvite(ctx context.Context, subdomain string, identity Identity) error {
	if identity.UserID == "" {
		return fmt.Errorf("accept invite %s: %w: user id cannot be empty", subdomain, ErrInvalidInput)
	}

	site, err := s.sites.ResolveSite(ctx, subdomain)
	if err != nil {
		return fmt.Errorf("accept invite %s: %w", subdomain, err)
	}

	if !site.HasInvite(identity) {
		return fmt.Errorf("accept invite %s: %w", subdomain, ErrNotFound)
	}

	if err := s.sites.AcceptInvite(ctx, site.ID, identity); err != nil {
		return fmt.Errorf("accept invite %s: %w", subdomain, err)
	}

	s.invalidate(ctx, subdomain)
	return nil
}

// DeleteSite removes the site together with its members and invites and
// soft-deletes its objects. Either all of it happens or none of it. It
// returns how many objects were marked for cleanup.
func (s *SiteService) DeleteSite(ctx context.Context, subdomain string) (int64, error) {
	site, err := s.sites.ResolveSite(ctx, subdomain)
	if err != nil {
		return 0, fmt.Errorf("delete site %s: %w", subdomain, err)
	}

	marked, err := s.sites.Delete(ctx, site.ID)
	if err != nil {
		return 0, fmt.Errorf("delete site %s: %w", subdomain, err)
	}

	s.invalidate(ctx, subdomain)
	return marked, nil
}

func (s *SiteService) invalidate(ctx context.Context, subdomain string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, subdomain); err != nil {
		slog.Warn("failed to invalidate cached site", "subdomain", subdomain, "err", err)
	}
}

func accessHash(access AccessType, passwordHash string) (string, error) {
	if !access.IsValid() {
		return "", fmt.Errorf("%w: unknown access type %q", ErrInvalidInput, access)
	}
	if access == AccessPassword {
		if passwordHash == "" {
			return "", fmt.Errorf("%w: password access requires a password hash", ErrInvalidInput)
		}
		return passwordHash, nil
	}
	return "", nil
}
