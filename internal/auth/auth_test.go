package auth_test

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vytor/assessment/internal/auth"
	"github.com/vytor/assessment/internal/models"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := auth.NewTokenIssuer("0123456789abcdef", time.Hour)

	tok, err := issuer.Issue(models.Participant{ID: "u3", Role: models.RoleParticipant})
	require.NoError(t, err)

	claims, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u3", claims.Subject)
	assert.Equal(t, models.RoleParticipant, claims.Role)
}

func TestTokenIssuer_Expired(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	issuer := auth.NewTokenIssuer("0123456789abcdef", time.Minute).WithClock(func() time.Time { return start })

	tok, err := issuer.Issue(models.Participant{ID: "u1", Role: models.RoleParticipant})
	require.NoError(t, err)

	later := issuer.WithClock(func() time.Time { return start.Add(2 * time.Minute) })
	_, err = later.Parse(tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	tok, err := auth.NewTokenIssuer("0123456789abcdef", time.Hour).Issue(models.Participant{ID: "u1"})
	require.NoError(t, err)

	_, err = auth.NewTokenIssuer("fedcba9876543210", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "u1", Issuer: "assessment"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("0123456789abcdef"))
	require.NoError(t, err)

	_, err = auth.NewTokenIssuer("0123456789abcdef", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestPINHasher(t *testing.T) {
	h := auth.NewPINHasher(bcrypt.MinCost)

	hash, err := h.Hash("00229900e")
	require.NoError(t, err)
	assert.NotEqual(t, "00229900e", hash)

	assert.True(t, h.Matches(hash, "00229900e"))
	assert.False(t, h.Matches(hash, "00229900f"))
	assert.False(t, h.Matches("", "00229900e"))
	assert.False(t, h.Matches("not-a-hash", "00229900e"))
}

func TestSecretEqual(t *testing.T) {
	assert.True(t, auth.SecretEqual("k3y", "k3y"))
	assert.False(t, auth.SecretEqual("k3y", "k3"))
	assert.False(t, auth.SecretEqual("k3y", ""))
	assert.False(t, auth.SecretEqual("", ""))
}
