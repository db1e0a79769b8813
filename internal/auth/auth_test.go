package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_GenerateAndValidateToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken(Principal{ID: "user-42", Role: "admin"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", principal.ID)
	assert.Equal(t, "admin", principal.Role)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, err := svc.GenerateToken(Principal{ID: "user-42"})
	require.NoError(t, err)

	principal, err := svc.ValidateToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, principal)
}

func TestService_ValidateToken_Invalid(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	other := NewService("other-secret", time.Hour)

	signedByOther, err := other.GenerateToken(Principal{ID: "user-42"})
	require.NoError(t, err)

	missingSubject, err := svc.GenerateToken(Principal{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.token"},
		{name: "empty", token: ""},
		{name: "wrong secret", token: signedByOther},
		{name: "missing subject", token: missingSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := svc.ValidateToken(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, principal)
		})
	}
}
