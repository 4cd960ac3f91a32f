package pagehaven

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultPasswordCookiePrefix names the password gate cookie of a site
// together with the site ID.
const DefaultPasswordCookiePrefix = "pagehaven_pw_"

// ObjectReader fetches the stored object at key inside a site.
type ObjectReader interface {
	// GetObject returns ErrNotFound when the site has no object at key.
	// The caller closes the returned reader.
	GetObject(ctx context.Context, siteID uuid.UUID, key string) (MetaData, io.ReadCloser, error)
}

// Outcome classifies how a request was answered.
type Outcome string

const (
	OutcomeServed         Outcome = "served"
	OutcomeRedirected     Outcome = "redirected"
	OutcomeSiteNotFound   Outcome = "site_not_found"
	OutcomeObjectNotFound Outcome = "object_not_found"
	OutcomeUpstreamError  Outcome = "upstream_error"
)

// Upstream stages reported on OutcomeUpstreamError.
const (
	StageResolveSite = "resolve_site"
	StageGetObject   = "get_object"
)

// Request is the framework-independent view of an incoming request. Path is
// the decoded path used for object lookup; EscapedPath is the path as the
// visitor sent it and is what OriginalURL reports when set.
type Request struct {
	Host        string
	Path        string
	EscapedPath string
	RawQuery    string
	Cookies     map[string]string
	Identity    *Identity
}

// OriginalURL is the path and query the visitor asked for.
func (r Request) OriginalURL() string {
	p := r.EscapedPath
	if p == "" {
		p = r.Path
	}
	if r.RawQuery == "" {
		return p
	}
	return p + "?" + r.RawQuery
}

// Response is the result of dispatching a Request. Body is non-nil only for
// OutcomeServed and must be closed by the caller.
type Response struct {
	Status  int
	Header  http.Header
	Body    io.ReadCloser
	Outcome Outcome
	ModTime time.Time

	// Key is the normalized object path, set once access was granted.
	Key string
	// Reason is set for OutcomeRedirected.
	Reason DenialReason
	// Stage is set for OutcomeUpstreamError.
	Stage string
}

type DispatcherConfig struct {
	BaseDomain           string
	WebBaseURL           string
	PasswordCookiePrefix string
}

// Dispatcher answers static site requests: it resolves the site from the
// host, evaluates access and either redirects to a gate page or serves the
// stored object. It holds no per-request state.
type Dispatcher struct {
	sites   SiteResolver
	objects ObjectReader
	config  DispatcherConfig
}

func NewDispatcher(sites SiteResolver, objects ObjectReader, cfg DispatcherConfig) (*Dispatcher, error) {
	if sites == nil || objects == nil {
		return nil, fmt.Errorf("new dispatcher: %w: site resolver and object reader are required", ErrInvalidInput)
	}
	if cfg.BaseDomain == "" {
		return nil, fmt.Errorf("new dispatcher: %w: base domain cannot be empty", ErrInvalidInput)
	}
	if cfg.WebBaseURL == "" {
		return nil, fmt.Errorf("new dispatcher: %w: web base url cannot be empty", ErrInvalidInput)
	}
	if cfg.PasswordCookiePrefix == "" {
		cfg.PasswordCookiePrefix = DefaultPasswordCookiePrefix
	}

	return &Dispatcher{
		sites:   sites,
		objects: objects,
		config:  cfg,
	}, nil
}

// PasswordCookieName returns the name of the password gate cookie of a site.
func (d *Dispatcher) PasswordCookieName(siteID uuid.UUID) string {
	return d.config.PasswordCookiePrefix + siteID.String()
}

// Dispatch runs a request through site resolution, access evaluation and
// object lookup. Misses are returned as 404 responses, not errors. A non-nil
// error means an upstream failure; the returned Response then carries
// OutcomeUpstreamError and status 500.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	subdomain, ok := SubdomainFromHost(req.Host, d.config.BaseDomain)
	if !ok {
		return notFound(OutcomeSiteNotFound), nil
	}

	site, err := d.sites.ResolveSite(ctx, subdomain)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(OutcomeSiteNotFound), nil
		}
		return upstreamFailure(StageResolveSite), fmt.Errorf("dispatch %s: resolve site: %w", subdomain, err)
	}

	creds := Credentials{
		PasswordCookie: req.Cookies[d.PasswordCookieName(site.ID)],
		Identity:       req.Identity,
	}

	result := EvaluateAccess(site, creds)
	if !result.Allowed {
		location := BuildGateRedirect(result.Reason, site.ID.String(), req.OriginalURL(), d.config.WebBaseURL)
		header := http.Header{}
		header.Set("Location", location)
		header.Set("Cache-Control", "no-store")
		return Response{
			Status:  http.StatusFound,
			Header:  header,
			Outcome: OutcomeRedirected,
			Reason:  result.Reason,
		}, nil
	}

	key := NormalizePath(req.Path)

	meta, body, err := d.objects.GetObject(ctx, site.ID, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			resp := notFound(OutcomeObjectNotFound)
			resp.Key = key
			return resp, nil
		}
		resp := upstreamFailure(StageGetObject)
		resp.Key = key
		return resp, fmt.Errorf("dispatch %s/%s: get object: %w", subdomain, key, err)
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = ContentType(key)
	}

	header := http.Header{}
	header.Set("Content-Type", contentType)
	if meta.CacheControl != "" {
		header.Set("Cache-Control", meta.CacheControl)
	}
	if meta.Etag != "" {
		header.Set("ETag", `"`+meta.Etag+`"`)
	}

	return Response{
		Status:  http.StatusOK,
		Header:  header,
		Body:    body,
		Outcome: OutcomeServed,
		ModTime: meta.UpdatedAt,
		Key:     key,
	}, nil
}

func notFound(outcome Outcome) Response {
	return Response{Status: http.StatusNotFound, Header: http.Header{}, Outcome: outcome}
}

func upstreamFailure(stage string) Response {
	return Response{Status: http.StatusInternalServerError, Header: http.Header{}, Outcome: OutcomeUpstreamError, Stage: stage}
}
