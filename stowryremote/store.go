// Package stowryremote stores pagehaven blobs on a remote stowry server.
//
// Every request is authorized with a short-lived presigned URL produced by
// the stowry-go signer, so the worker never sends its secret key over the
// wire.
package stowryremote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/stowry-go"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultExpires is the default presigned URL expiry in seconds (15 minutes).
	DefaultExpires = 900

	listPageSize = 1000
)

// Config identifies the remote server and the key pair used for signing.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

var (
	ErrEndpointRequired  = errors.New("endpoint is required")
	ErrAccessKeyRequired = errors.New("access key is required")
	ErrSecretKeyRequired = errors.New("secret key is required")
)

// Store implements pagehaven.FileStorage against a stowry server.
type Store struct {
	endpoint   string
	accessKey  string
	secretKey  string
	httpClient *http.Client
	signer     *stowry.Client
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		s.httpClient = client
	}
}

// New creates a Store for the given server.
func New(cfg Config, opts ...Option) (*Store, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, ErrEndpointRequired
	case cfg.AccessKey == "":
		return nil, ErrAccessKeyRequired
	case cfg.SecretKey == "":
		return nil, ErrSecretKeyRequired
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")

	s := &Store{
		endpoint:   endpoint,
		accessKey:  cfg.AccessKey,
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		signer:     stowry.NewClient(endpoint, cfg.AccessKey, cfg.SecretKey),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// serverMetaData mirrors the JSON object metadata returned by the server.
type serverMetaData struct {
	Path          string `json:"path"`
	ContentType   string `json:"content_type"`
	ETag          string `json:"etag"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

type serverListResult struct {
	Items      []serverMetaData `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Get streams a blob. The caller must close the returned body.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	presignURL := s.signer.PresignGet(remotePath(key), DefaultExpires)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, presignURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("remote get: create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote get: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, fmt.Errorf("remote get: %w", serverError(resp))
	}

	return resp.Body, nil
}

// Write uploads content with a presigned PUT and returns the size and etag
// reported by the server.
func (s *Store) Write(ctx context.Context, key string, content io.Reader) (pagehaven.SaveResult, error) {
	presignURL := s.signer.PresignPut(remotePath(key), DefaultExpires)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignURL, content)
	if err != nil {
		return pagehaven.SaveResult{}, fmt.Errorf("remote write: create request: %w", err)
	}
	req.Header.Set("Content-Type", pagehaven.ContentType(key))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return pagehaven.SaveResult{}, fmt.Errorf("remote write: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return pagehaven.SaveResult{}, fmt.Errorf("remote write: %w", serverError(resp))
	}

	var meta serverMetaData
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return pagehaven.SaveResult{}, fmt.Errorf("remote write: parse response: %w", err)
	}

	return pagehaven.SaveResult{BytesWritten: meta.FileSizeBytes, Etag: meta.ETag}, nil
}

// Delete removes a blob. Returns pagehaven.ErrNotFound on a 404.
func (s *Store) Delete(ctx context.Context, key string) error {
	presignURL := s.signer.PresignDelete(remotePath(key), DefaultExpires)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, presignURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("remote delete: create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}

	return fmt.Errorf("remote delete: %w", serverError(resp))
}

// List pages through every object on the server.
func (s *Store) List(ctx context.Context) ([]pagehaven.ObjectEntry, error) {
	var entries []pagehaven.ObjectEntry
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := s.listPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("remote list: %w", err)
		}

		for _, item := range page.Items {
			entries = append(entries, pagehaven.ObjectEntry{
				Path:        strings.TrimPrefix(item.Path, "/"),
				Size:        item.FileSizeBytes,
				ETag:        item.ETag,
				ContentType: item.ContentType,
			})
		}

		if page.NextCursor == "" {
			return entries, nil
		}
		cursor = page.NextCursor
	}
}

func (s *Store) listPage(ctx context.Context, cursor string) (serverListResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.presignList(listPageSize, cursor, DefaultExpires), http.NoBody)
	if err != nil {
		return serverListResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return serverListResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return serverListResult{}, serverError(resp)
	}

	var result serverListResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return serverListResult{}, fmt.Errorf("parse response: %w", err)
	}

	return result, nil
}

// presignList signs a list request by hand; stowry-go only presigns
// object paths.
func (s *Store) presignList(limit int, cursor string, expires int) string {
	timestamp := time.Now().Unix()
	path := "/"
	sig := stowry.Sign(s.secretKey, http.MethodGet, path, timestamp, int64(expires))

	query := url.Values{}
	query.Set(stowry.StowryCredentialParam, s.accessKey)
	query.Set(stowry.StowryDateParam, strconv.FormatInt(timestamp, 10))
	query.Set(stowry.StowryExpiresParam, strconv.Itoa(expires))
	query.Set(stowry.StowrySignatureParam, sig)
	query.Set("limit", strconv.Itoa(limit))

	if cursor != "" {
		query.Set("cursor", cursor)
	}

	return s.endpoint + path + "?" + query.Encode()
}

func remotePath(key string) string {
	return "/" + strings.TrimPrefix(key, "/")
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// serverError reads the response body into an error. A 404 also matches
// pagehaven.ErrNotFound.
func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", pagehaven.ErrNotFound, apiErr)
	}
	return apiErr
}
