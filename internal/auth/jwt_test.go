package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shucway/internal/core/appctx"
)

func TestValidateToken_RoundTrip(t *testing.T) {
	v := NewJWTValidator("test-secret", "shucway")

	token, err := v.GenerateToken(&appctx.Actor{
		UserID: "user-1",
		Email:  "cook@example.com",
		Roles:  []string{"manager"},
	}, time.Hour)
	require.NoError(t, err)

	actor, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", actor.UserID)
	assert.Equal(t, "cook@example.com", actor.Email)
	assert.Equal(t, []string{"manager"}, actor.Roles)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := NewJWTValidator("secret-a", "shucway")
	token, err := issuer.GenerateToken(&appctx.Actor{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)

	v := NewJWTValidator("secret-b", "shucway")
	_, err = v.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	v := NewJWTValidator("test-secret", "shucway")
	token, err := v.GenerateToken(&appctx.Actor{UserID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	other := NewJWTValidator("test-secret", "someone-else")
	token, err := other.GenerateToken(&appctx.Actor{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)

	v := NewJWTValidator("test-secret", "shucway")
	_, err = v.ValidateToken(token)
	assert.Error(t, err)
}
