package util

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identityapp/internal/core/domain"
)

func TestJWTIssuer(t *testing.T) {
	issuer, err := NewJWTIssuer("s3cr3t")
	require.NoError(t, err)

	t.Run("should round trip the user id", func(t *testing.T) {
		token, err := issuer.Issue("user-42")
		require.NoError(t, err)

		userID, err := issuer.Verify(token)
		assert.NoError(t, err)
		assert.Equal(t, "user-42", userID)
	})

	t.Run("should not set an expiry", func(t *testing.T) {
		token, _ := issuer.Issue("user-42")

		claims := &Claims{}
		_, _, err := jwt.NewParser().ParseUnverified(token, claims)
		require.NoError(t, err)
		assert.Nil(t, claims.ExpiresAt)
	})

	t.Run("should issue distinct tokens for the same user", func(t *testing.T) {
		a, _ := issuer.Issue("user-42")
		b, _ := issuer.Issue("user-42")

		assert.NotEqual(t, a, b)
	})

	t.Run("should reject tokens signed with another secret", func(t *testing.T) {
		other, _ := NewJWTIssuer("other")
		token, _ := other.Issue("user-42")

		_, err := issuer.Verify(token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("should reject malformed tokens", func(t *testing.T) {
		_, err := issuer.Verify("not.a.token")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)

		_, err = issuer.Verify("")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("should reject unsigned tokens", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-42"})
		raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Verify(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("should reject tokens without a user id", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{})
		raw, _ := token.SignedString([]byte("s3cr3t"))

		_, err := issuer.Verify(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}

func TestNewJWTIssuer_EmptySecret(t *testing.T) {
	_, err := NewJWTIssuer("")
	assert.Error(t, err)
}
