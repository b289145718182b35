package remote

import (
	"context"
	"sync"
	"time"

	"pos-sync/pkg/utils"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (string, error)
}

// Session holds the bearer token of one sync process. It is never persisted;
// a restart logs in again.
type Session struct {
	mu        sync.Mutex
	creds     Credentials
	token     string
	expiresAt time.Time // zero when the token carries no exp claim
	now       func() time.Time
}

// tokens this close to expiry are refreshed before use
const expirySkew = 30 * time.Second

func NewSession(creds Credentials) *Session {
	return &Session{creds: creds, now: time.Now}
}

// Token returns the cached token if it is still usable.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validTokenLocked()
}

func (s *Session) validTokenLocked() (string, bool) {
	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.IsZero() && !s.now().Add(expirySkew).Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

// Ensure returns the cached token, logging in first when there is none.
func (s *Session) Ensure(ctx context.Context, auth Authenticator) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.validTokenLocked(); ok {
		return token, nil
	}
	return s.loginLocked(ctx, auth)
}

// Refresh always logs in again and replaces the cached token.
func (s *Session) Refresh(ctx context.Context, auth Authenticator) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx, auth)
}

func (s *Session) loginLocked(ctx context.Context, auth Authenticator) (string, error) {
	token, err := auth.Authenticate(ctx, s.creds)
	if err != nil {
		s.token = ""
		s.expiresAt = time.Time{}
		return "", err
	}
	s.token = token
	s.expiresAt = time.Time{}
	if exp, err := utils.TokenExpiry(token); err == nil {
		s.expiresAt = exp
	}
	return token, nil
}

// Invalidate drops the cached token, typically after a 401.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}
