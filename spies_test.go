package pagehaven_test

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/sagarc03/pagehaven"
	"github.com/stretchr/testify/mock"
)

type SpyMetaDataRepo struct {
	mock.Mock
}

func (s *SpyMetaDataRepo) Get(ctx context.Context, siteID uuid.UUID, path string) (pagehaven.MetaData, error) {
	args := s.Called(ctx, siteID, path)
	return args.Get(0).(pagehaven.MetaData), args.Error(1)
}

func (s *SpyMetaDataRepo) Upsert(ctx context.Context, entry pagehaven.ObjectEntry) (pagehaven.MetaData, bool, error) {
	args := s.Called(ctx, entry)
	return args.Get(0).(pagehaven.MetaData), args.Bool(1), args.Error(2)
}

func (s *SpyMetaDataRepo) Delete(ctx context.Context, siteID uuid.UUID, path string) error {
	args := s.Called(ctx, siteID, path)
	return args.Error(0)
}

func (s *SpyMetaDataRepo) List(ctx context.Context, q pagehaven.ListQuery) (pagehaven.ListResult, error) {
	args := s.Called(ctx, q)
	return args.Get(0).(pagehaven.ListResult), args.Error(1)
}

func (s *SpyMetaDataRepo) ListPendingCleanup(ctx context.Context, q pagehaven.ListQuery) (pagehaven.ListResult, error) {
	args := s.Called(ctx, q)
	return args.Get(0).(pagehaven.ListResult), args.Error(1)
}

func (s *SpyMetaDataRepo) MarkCleanedUp(ctx context.Context, id uuid.UUID) error {
	args := s.Called(ctx, id)
	return args.Error(0)
}

type SpyFileStorage struct {
	mock.Mock
}

func (s *SpyFileStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := s.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (s *SpyFileStorage) Write(ctx context.Context, key string, content io.Reader) (pagehaven.SaveResult, error) {
	args := s.Called(ctx, key, content)
	return args.Get(0).(pagehaven.SaveResult), args.Error(1)
}

func (s *SpyFileStorage) Delete(ctx context.Context, key string) error {
	args := s.Called(ctx, key)
	return args.Error(0)
}

func (s *SpyFileStorage) List(ctx context.Context) ([]pagehaven.ObjectEntry, error) {
	args := s.Called(ctx)
	return args.Get(0).([]pagehaven.ObjectEntry), args.Error(1)
}

type SpySiteRepo struct {
	mock.Mock
}

func (s *SpySiteRepo) ResolveSite(ctx context.Context, subdomain string) (pagehaven.Site, error) {
	args := s.Called(ctx, subdomain)
	return args.Get(0).(pagehaven.Site), args.Error(1)
}

func (s *SpySiteRepo) Create(ctx context.Context, site pagehaven.NewSite) (pagehaven.Site, error) {
	args := s.Called(ctx, site)
	return args.Get(0).(pagehaven.Site), args.Error(1)
}

func (s *SpySiteRepo) List(ctx context.Context) ([]pagehaven.Site, error) {
	args := s.Called(ctx)
	return args.Get(0).([]pagehaven.Site), args.Error(1)
}

func (s *SpySiteRepo) UpdateAccess(ctx context.Context, siteID uuid.UUID, access pagehaven.AccessType, passwordHash string) error {
	args := s.Called(ctx, siteID, access, passwordHash)
	return args.Error(0)
}

func (s *SpySiteRepo) AddMember(ctx context.Context, siteID uuid.UUID, userID string) error {
	args := s.Called(ctx, siteID, userID)
	return args.Error(0)
}

func (s *SpySiteRepo) RemoveMember(ctx context.Context, siteID uuid.UUID, userID string) error {
	args := s.Called(ctx, siteID, userID)
	return args.Error(0)
}

func (s *SpySiteRepo) AddInvite(ctx context.Context, siteID uuid.UUID, invite pagehaven.Invite) error {
	args := s.Called(ctx, siteID, invite)
	return args.Error(0)
}

func (s *SpySiteRepo) AcceptInvite(ctx context.Context, siteID uuid.UUID, identity pagehaven.Identity) error {
	args := s.Called(ctx, siteID, identity)
	return args.Error(0)
}

func (s *SpySiteRepo) Delete(ctx context.Context, siteID uuid.UUID) (int64, error) {
	args := s.Called(ctx, siteID)
	return args.Get(0).(int64), args.Error(1)
}

type SpyObjectReader struct {
	mock.Mock
}

func (s *SpyObjectReader) GetObject(ctx context.Context, siteID uuid.UUID, key string) (pagehaven.MetaData, io.ReadCloser, error) {
	args := s.Called(ctx, siteID, key)
	rc, _ := args.Get(1).(io.ReadCloser)
	return args.Get(0).(pagehaven.MetaData), rc, args.Error(2)
}

type SpyInvalidator struct {
	mock.Mock
}

func (s *SpyInvalidator) Invalidate(ctx context.Context, subdomain string) error {
	args := s.Called(ctx, subdomain)
	return args.Error(0)
}
