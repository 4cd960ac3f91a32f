// Package session verifies the session tokens minted by the pagehaven auth
// backend and turns them into a pagehaven.Identity.
//
// Tokens are HS256 JWTs. The subject claim carries the user ID and the
// optional email claim the user's address. The token is read from the
// session cookie or from an "Authorization: Bearer" header.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sagarc03/pagehaven"
)

// DefaultCookieName is the cookie the auth backend stores the token in.
const DefaultCookieName = "pagehaven_session"

var (
	ErrSecretRequired = errors.New("session secret is required")
	ErrInvalidToken   = errors.New("invalid session token")
)

// Config configures session verification.
type Config struct {
	CookieName string `mapstructure:"cookie_name"`
	Secret     string `mapstructure:"secret"`
	Issuer     string `mapstructure:"issuer"`
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 session tokens with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier. A non-empty issuer must match the
// token's iss claim.
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify parses token and returns the identity it carries. Expired,
// malformed or wrongly signed tokens and tokens without a subject return
// ErrInvalidToken.
func (v *JWTVerifier) Verify(token string) (pagehaven.Identity, error) {
	c := &claims{}

	parsed, err := v.parser.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return pagehaven.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !parsed.Valid || c.Subject == "" {
		return pagehaven.Identity{}, ErrInvalidToken
	}

	return pagehaven.Identity{UserID: c.Subject, Email: c.Email}, nil
}

// Issue signs a token for identity that expires after ttl. The auth
// backend normally mints tokens; Issue exists for tooling and tests.
func (v *JWTVerifier) Issue(identity pagehaven.Identity, ttl time.Duration) (string, error) {
	if identity.UserID == "" {
		return "", fmt.Errorf("issue token: %w: user id cannot be empty", pagehaven.ErrInvalidInput)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

// TokenFromRequest returns the session token of r, preferring the cookie
// over the Authorization header. It returns "" when neither is present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}
