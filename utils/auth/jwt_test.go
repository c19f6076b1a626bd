package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndValidate(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret", Issuer: "syllabus-sync", Expiry: time.Hour})

	token, err := m.Mint(42, "ada@example.com", time.Now())
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestValidateToken_Rejects(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret", Issuer: "syllabus-sync", Expiry: time.Hour})

	expired, err := m.Mint(1, "a@example.com", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = m.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other := NewJWTManager(JWTConfig{Secret: "different", Issuer: "syllabus-sync"})
	foreign, err := other.Mint(1, "a@example.com", time.Now())
	require.NoError(t, err)
	_, err = m.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewJWTManager(JWTConfig{Secret: "s3cret", Issuer: "elsewhere"}).Mint(1, "a@example.com", time.Now())
	require.NoError(t, err)
	_, err = m.ValidateToken(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_RequiresUserID(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret"})
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:            "anon@example.com",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := token.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = m.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
