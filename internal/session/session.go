// Package session holds the authenticated-user slot of a single portal client.
//
// A Session starts unauthenticated, is set by a successful Login and cleared
// by Logout. It keeps only the user id and resolves the user through the
// directory on every read, so admin edits apply to live sessions at once.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"portal/internal/models"
	"portal/internal/policy"
	"portal/internal/store"
)

type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (models.User, bool, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
}

type PasswordChecker interface {
	Verify(password string) bool
}

type Option func(*Session)

// WithLoginDelay pauses every login attempt for d, or until ctx is done.
func WithLoginDelay(d time.Duration) Option {
	return func(s *Session) {
		s.delay = d
	}
}

type Session struct {
	id     string
	dir    Directory
	secret PasswordChecker
	delay  time.Duration

	mu     sync.Mutex
	userID string
}

func New(id string, dir Directory, secret PasswordChecker, opts ...Option) *Session {
	s := &Session{id: id, dir: dir, secret: secret}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Login authenticates email against the shared secret. On failure the
// session is left as it was. The error is only set when the directory or ctx
// fails.
func (s *Session) Login(ctx context.Context, email, password string) (bool, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	user, found, err := s.dir.FindUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if !found || !s.secret.Verify(password) {
		return false, nil
	}

	s.mu.Lock()
	s.userID = user.UserID
	s.mu.Unlock()
	return true, nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID != ""
}

// Current returns the authenticated user, or nil when there is none. A user
// deleted since login clears the session.
func (s *Session) Current(ctx context.Context) (*models.User, error) {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == "" {
		return nil, nil
	}

	user, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.mu.Lock()
			if s.userID == userID {
				s.userID = ""
			}
			s.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// HasAccess applies the access policy to the current user. Lookup failures deny.
func (s *Session) HasAccess(ctx context.Context, projectID string) bool {
	user, err := s.Current(ctx)
	if err != nil {
		return false
	}
	return policy.HasAccess(user, projectID)
}
