package auth

import (
	"testing"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	m := NewTokenManager(secret, time.Hour)
	tok, err := m.Issue(&bookstore.User{ID: "o1", Role: bookstore.RoleOwner, StoreID: "s1", Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)

	p, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, bookstore.Principal{UserID: "o1", Role: bookstore.RoleOwner, StoreID: "s1"}, p)
}

func TestVerifyRejects(t *testing.T) {
	m := NewTokenManager(secret, time.Hour)
	u := &bookstore.User{ID: "u1", Role: bookstore.RoleUser}

	t.Run("expired", func(t *testing.T) {
		past := NewTokenManager(secret, time.Minute)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, err := past.Issue(u)
		require.NoError(t, err)
		_, err = m.Verify(tok)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("other secret", func(t *testing.T) {
		tok, err := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour).Issue(u)
		require.NoError(t, err)
		_, err = m.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		tok, err := m.Issue(&bookstore.User{ID: "u1", Role: "Admin"})
		require.NoError(t, err)
		_, err = m.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "u1", "role": "User", "iss": issuer, "aud": audience}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
