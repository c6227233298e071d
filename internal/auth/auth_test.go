package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
)

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleStaff))
	assert.True(t, RoleAdmin.AtLeast(RoleStaff))
	assert.True(t, RoleStaff.AtLeast(RoleStaff))
	assert.False(t, RoleViewer.AtLeast(RoleStaff))
	assert.False(t, RoleClient.AtLeast(RoleViewer))
	assert.False(t, RoleNone.AtLeast(RoleNone))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	assert.Equal(t, "admin", r.String())

	_, err = ParseRole("superuser")
	assert.Error(t, err)

	_, err = ParseRole("none")
	assert.Error(t, err)
}

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret", "identity")

	token, err := v.Issue("user-1", "u@example.com", time.Hour)
	require.NoError(t, err)

	uc, err := v.VerifyHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uc.UserID)
	assert.Equal(t, "u@example.com", uc.Email)
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("secret", "identity")
	other := NewVerifier("other-secret", "identity")
	wrongIssuer := NewVerifier("secret", "someone-else")

	foreign, err := other.Issue("user-1", "", time.Hour)
	require.NoError(t, err)
	expired, err := v.Issue("user-1", "", -time.Minute)
	require.NoError(t, err)
	misissued, err := wrongIssuer.Issue("user-1", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + foreign},
		{"expired", "Bearer " + expired},
		{"wrong issuer", "Bearer " + misissued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyHeader(tt.header)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthenticated))
		})
	}
}

func TestUserContext(t *testing.T) {
	_, err := GetUserContext(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthenticated))

	ctx := WithUserContext(context.Background(), &UserContext{UserID: "user-1"})
	uc, err := GetUserContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uc.UserID)
}
