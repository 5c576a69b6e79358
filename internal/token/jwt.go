package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails validation,
// whatever the underlying reason (malformed, expired, bad signature,
// revoked). Callers treat all of these the same way.
var ErrInvalidToken = errors.New("invalid or expired token")

// Kind identifies what a token is for. Each kind has its own lifetime.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindSession Kind = "session"
)

// Claims holds the custom JWT claims for all token kinds. SessionKey is
// only set on session tokens and binds the token to a server-side
// session row.
type Claims struct {
	jwt.RegisteredClaims
	Kind       Kind   `json:"kind"`
	SessionKey string `json:"session_key,omitempty"`
}

// UserID parses the subject claim as a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject: %w", err)
	}
	return id, nil
}

// Manager handles token generation, validation and revocation for all
// token kinds.
type Manager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	sessionExpiry time.Duration
	blacklist     Blacklist
}

// NewManager creates a token manager with kind-specific expiry durations.
func NewManager(secret string, accessExpiry, refreshExpiry, sessionExpiry time.Duration, blacklist Blacklist) *Manager {
	if blacklist == nil {
		blacklist = NewMemoryBlacklist()
	}
	return &Manager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		sessionExpiry: sessionExpiry,
		blacklist:     blacklist,
	}
}

func (m *Manager) expiryFor(kind Kind) (time.Duration, error) {
	switch kind {
	case KindAccess:
		return m.accessExpiry, nil
	case KindRefresh:
		return m.refreshExpiry, nil
	case KindSession:
		return m.sessionExpiry, nil
	}
	return 0, fmt.Errorf("unknown token kind: %s", kind)
}

// Issue creates a signed JWT of the given kind for the user. sessionKey
// is embedded for session tokens and ignored otherwise.
func (m *Manager) Issue(kind Kind, userID int64, sessionKey string) (string, error) {
	expiry, err := m.expiryFor(kind)
	if err != nil {
		return "", err
	}
	if kind != KindSession {
		sessionKey = ""
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
		Kind:       kind,
		SessionKey: sessionKey,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Decode parses and validates a JWT of any kind, checking the
// revocation list. Returns ErrInvalidToken on any failure.
func (m *Manager) Decode(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if m.blacklist.IsRevoked(ctx, claims.ID) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// DecodeKind validates a token and ensures it is of the expected kind.
func (m *Manager) DecodeKind(ctx context.Context, tokenString string, expected Kind) (*Claims, error) {
	claims, err := m.Decode(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != expected {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke invalidates a token for the remainder of its lifetime. The
// token must still be valid; revoking garbage is a no-op error.
func (m *Manager) Revoke(ctx context.Context, tokenString string) error {
	claims, err := m.Decode(ctx, tokenString)
	if err != nil {
		return err
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return m.blacklist.Revoke(ctx, claims.ID, ttl)
}
