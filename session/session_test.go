package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	_, err := session.NewJWTVerifier("", "")
	assert.ErrorIs(t, err, session.ErrSecretRequired)
}

func TestJWTVerifier_Verify(t *testing.T) {
	t.Parallel()

	verifier, err := session.NewJWTVerifier(testSecret, "pagehaven-auth")
	require.NoError(t, err)

	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		want    pagehaven.Identity
		wantErr bool
	}{
		{
			name:  "valid token with email",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "email": "a@example.com", "iss": "pagehaven-auth", "exp": future}),
			want:  pagehaven.Identity{UserID: "u1", Email: "a@example.com"},
		},
		{
			name:  "valid token without email",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u2", "iss": "pagehaven-auth", "exp": future}),
			want:  pagehaven.Identity{UserID: "u2"},
		},
		{
			name:    "expired",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "iss": "pagehaven-auth", "exp": past}),
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u1", "iss": "pagehaven-auth", "exp": future}),
			wantErr: true,
		},
		{
			name:    "wrong issuer",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "iss": "someone-else", "exp": future}),
			wantErr: true,
		},
		{
			name:    "wrong algorithm",
			token:   sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{"sub": "u1", "iss": "pagehaven-auth", "exp": future}),
			wantErr: true,
		},
		{
			name:    "missing subject",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"iss": "pagehaven-auth", "exp": future}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not.a.token",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := verifier.Verify(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, session.ErrInvalidToken)
				assert.Equal(t, pagehaven.Identity{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJWTVerifier_IssueRoundTrip(t *testing.T) {
	verifier, err := session.NewJWTVerifier(testSecret, "")
	require.NoError(t, err)

	token, err := verifier.Issue(pagehaven.Identity{UserID: "u9", Email: "u9@example.com"}, time.Minute)
	require.NoError(t, err)

	got, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, pagehaven.Identity{UserID: "u9", Email: "u9@example.com"}, got)

	_, err = verifier.Issue(pagehaven.Identity{}, time.Minute)
	assert.ErrorIs(t, err, pagehaven.ErrInvalidInput)
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cookieName string
		setup      func(r *http.Request)
		want       string
	}{
		{
			name:  "default cookie",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "c-token"}) },
			want:  "c-token",
		},
		{
			name:       "custom cookie",
			cookieName: "sid",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sid", Value: "c-token"}) },
			want:       "c-token",
		},
		{
			name:  "bearer header",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer h-token") },
			want:  "h-token",
		},
		{
			name: "cookie wins over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "c-token"})
				r.Header.Set("Authorization", "Bearer h-token")
			},
			want: "c-token",
		},
		{
			name:  "basic auth ignored",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") },
			want:  "",
		},
		{
			name:  "nothing",
			setup: func(*http.Request) {},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			assert.Equal(t, tt.want, session.TokenFromRequest(r, tt.cookieName))
		})
	}
}
