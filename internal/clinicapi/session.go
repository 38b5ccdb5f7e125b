package clinicapi

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// Claims is the payload the backend signs into session tokens.
type Claims struct {
	UserID int64             `json:"user_id"`
	Role   appointments.Role `json:"role"`
	Name   string            `json:"name,omitempty"`
	Email  string            `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Session holds the bearer token and the identity decoded from it. It is
// passed to the Client at construction; nothing is read from globals.
type Session struct {
	mu             sync.RWMutex
	token          string
	claims         *Claims
	user           *appointments.User
	onUnauthorized func()
}

// NewSession builds a session for token. onUnauthorized, when set, runs each
// time the backend answers 401.
func NewSession(token string, onUnauthorized func()) *Session {
	s := &Session{onUnauthorized: onUnauthorized}
	s.SetToken(token)
	return s
}

// SetToken replaces the token and re-derives claims. The signature is not
// checked here; the backend remains the authority.
func (s *Session) SetToken(token string) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	claims := parseClaims(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.claims = claims
	s.user = nil
}

// Clear drops the token and identity (logout).
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.claims = nil
	s.user = nil
}

// Token returns the raw bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Claims returns the decoded claims if the token was a readable JWT.
func (s *Session) Claims() (Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return Claims{}, false
	}
	return *s.claims, true
}

// Role returns the user's role, preferring a refreshed profile over token claims.
func (s *Session) Role() appointments.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user != nil && s.user.Role != "" {
		return s.user.Role
	}
	if s.claims != nil {
		return s.claims.Role
	}
	return ""
}

// UserID returns the signed-in user's id, or 0.
func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user != nil && s.user.ID != 0 {
		return s.user.ID
	}
	if s.claims != nil {
		return s.claims.UserID
	}
	return 0
}

// User returns the profile fetched from /me, if any.
func (s *Session) User() (appointments.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return appointments.User{}, false
	}
	return *s.user, true
}

// SetUser stores a refreshed profile.
func (s *Session) SetUser(u appointments.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}

// Expired reports whether the token carries an exp claim before now.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil || s.claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(s.claims.ExpiresAt.Time)
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) unauthorized() {
	s.mu.RLock()
	cb := s.onUnauthorized
	s.mu.RUnlock()
	if cb != nil {
		cb()
	}
}

func parseClaims(token string) *Claims {
	if token == "" {
		return nil
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}
