package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sagarc03/pagehaven"
)

func TestHashPassword(t *testing.T) {
	hash, err := hashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong")))

	_, err = hashPassword("")
	assert.ErrorIs(t, err, pagehaven.ErrInvalidInput)
}

func TestPasswordHashFor_NonPasswordTypes(t *testing.T) {
	for _, access := range []pagehaven.AccessType{pagehaven.AccessPublic, pagehaven.AccessPrivate, pagehaven.AccessOwnerOnly} {
		t.Run(string(access), func(t *testing.T) {
			hash, err := passwordHashFor(access)
			require.NoError(t, err)
			assert.Empty(t, hash)
		})
	}
}

func TestPasswordHashFor_FromFlag(t *testing.T) {
	sitePassword = "opensesame"
	t.Cleanup(func() { sitePassword = "" })

	hash, err := passwordHashFor(pagehaven.AccessPassword)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("opensesame")))
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestWriteSiteDetail(t *testing.T) {
	site := pagehaven.Site{
		ID:         uuid.New(),
		Subdomain:  "blog",
		AccessType: pagehaven.AccessPrivate,
		OwnerID:    "owner-1",
		Members:    []string{"user-2", "user-3"},
		Invites: []pagehaven.Invite{
			{UserID: "user-4"},
			{Email: "friend@example.com"},
			{UserID: "user-5", Email: "five@example.com"},
		},
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, writeSiteDetail(&buf, site))

	out := buf.String()
	assert.Contains(t, out, "blog")
	assert.Contains(t, out, "private")
	assert.Contains(t, out, "user-2, user-3")
	assert.Contains(t, out, "user-4, <friend@example.com>, user-5 <five@example.com>")

	buf.Reset()
	require.NoError(t, writeSiteDetail(&buf, pagehaven.Site{Subdomain: "empty"}))
	assert.Contains(t, buf.String(), "(none)")
}

func TestWriteSiteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSiteTable(&buf, []pagehaven.Site{
		{Subdomain: "blog", AccessType: pagehaven.AccessPublic, OwnerID: "o1"},
		{Subdomain: "docs", AccessType: pagehaven.AccessOwnerOnly, OwnerID: "o2", Members: []string{"m"}},
	}))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "SUBDOMAIN")
	assert.Contains(t, string(lines[2]), "owner_only")
}
