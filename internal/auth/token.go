// Package auth issues and verifies the bearer tokens that resolve to a
// bookstore.Principal.
package auth

import (
	"errors"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	issuer   = "bookstore-api"
	audience = "bookstore"
)

type Claims struct {
	Role    bookstore.Role `json:"role"`
	StoreID string         `json:"storeId,omitempty"`
	Name    string         `json:"name,omitempty"`
	Email   string         `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for u.
func (m *TokenManager) Issue(u *bookstore.User) (string, error) {
	now := m.now()
	claims := Claims{
		Role:    u.Role,
		StoreID: u.StoreID,
		Name:    u.Name,
		Email:   u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature, expiry, issuer and audience and returns the
// principal the token names.
func (m *TokenManager) Verify(token string) (bookstore.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return bookstore.Principal{}, ErrExpiredToken
		}
		return bookstore.Principal{}, ErrInvalidToken
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || c.Subject == "" || !c.Role.Valid() {
		return bookstore.Principal{}, ErrInvalidToken
	}
	return bookstore.Principal{UserID: c.Subject, Role: c.Role, StoreID: c.StoreID}, nil
}
