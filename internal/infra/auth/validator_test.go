package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/spaceai-sentinel/internal/domain"
)

func newKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, issuer string, ttl time.Duration) string {
	t.Helper()
	claims := &domain.CustomClaims{
		UserID: "op-1",
		Scopes: map[string]bool{"sentinel.read": true},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "op-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestVerifyToken_AcceptsOwnToken(t *testing.T) {
	key := newKeyPair(t)
	v := NewBaseValidator(&key.PublicKey)

	token := signToken(t, key, domain.TokenIssuer, time.Hour)

	claims, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.UserID)
	assert.True(t, claims.Scopes["sentinel.read"])
}

func TestVerifyToken_TrimsBearerPrefix(t *testing.T) {
	key := newKeyPair(t)
	v := NewBaseValidator(&key.PublicKey)

	token := signToken(t, key, domain.TokenIssuer, time.Hour)

	_, err := v.VerifyToken("Bearer " + token)
	assert.NoError(t, err)
}

func TestVerifyToken_RejectsForeignIssuer(t *testing.T) {
	key := newKeyPair(t)
	v := NewBaseValidator(&key.PublicKey)

	// Валидная подпись чужого контура не дает доступа к sentinel
	token := signToken(t, key, "some-other-plane", time.Hour)

	_, err := v.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_RejectsExpired(t *testing.T) {
	key := newKeyPair(t)
	v := NewBaseValidator(&key.PublicKey)

	token := signToken(t, key, domain.TokenIssuer, -time.Minute)

	_, err := v.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_RejectsWrongKey(t *testing.T) {
	key := newKeyPair(t)
	other := newKeyPair(t)
	v := NewBaseValidator(&key.PublicKey)

	token := signToken(t, other, domain.TokenIssuer, time.Hour)

	_, err := v.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_RejectsSymmetricAlg(t *testing.T) {
	key := newKeyPair(t)
	v := NewBaseValidator(&key.PublicKey)

	claims := &domain.CustomClaims{
		UserID: "op-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    domain.TokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.VerifyToken(token)
	assert.Error(t, err)
}
