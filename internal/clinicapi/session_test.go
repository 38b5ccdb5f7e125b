package clinicapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestSession_DecodesClaims(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := signToken(t, Claims{
		UserID:           7,
		Role:             appointments.RoleAdmin,
		Name:             "Grace",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	})

	s := NewSession("Bearer "+tok, nil)
	assert.Equal(t, tok, s.Token())
	assert.True(t, s.Authenticated())
	assert.Equal(t, appointments.RoleAdmin, s.Role())
	assert.Equal(t, int64(7), s.UserID())

	claims, ok := s.Claims()
	require.True(t, ok)
	assert.Equal(t, "Grace", claims.Name)

	assert.False(t, s.Expired(exp.Add(-time.Minute)))
	assert.True(t, s.Expired(exp))
}

func TestSession_OpaqueToken(t *testing.T) {
	s := NewSession("not-a-jwt", nil)
	assert.True(t, s.Authenticated())
	_, ok := s.Claims()
	assert.False(t, ok)
	assert.Equal(t, appointments.Role(""), s.Role())
	assert.False(t, s.Expired(time.Now()))
}

func TestSession_UserOverridesClaims(t *testing.T) {
	tok := signToken(t, Claims{UserID: 7, Role: appointments.RolePendingDoctor})
	s := NewSession(tok, nil)

	s.SetUser(appointments.User{ID: 7, Role: appointments.RoleDoctor})
	assert.Equal(t, appointments.RoleDoctor, s.Role())

	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, int64(7), u.ID)

	// a new token drops the cached profile
	s.SetToken(tok)
	_, ok = s.User()
	assert.False(t, ok)
	assert.Equal(t, appointments.RolePendingDoctor, s.Role())
}

func TestSession_ClearAndCallback(t *testing.T) {
	calls := 0
	s := NewSession("abc", func() { calls++ })
	s.unauthorized()
	s.unauthorized()
	assert.Equal(t, 2, calls)

	s.Clear()
	assert.False(t, s.Authenticated())
	assert.Equal(t, int64(0), s.UserID())
}
