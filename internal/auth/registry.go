package auth

import (
	"time"

	"portal/internal/session"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry holds the live sessions. Entries expire after the TTL and the
// least recently used session is dropped once capacity is reached.
type Registry struct {
	sessions *expirable.LRU[string, *session.Session]
	dir      session.Directory
	secret   session.PasswordChecker
	opts     []session.Option
}

func NewRegistry(dir session.Directory, secret session.PasswordChecker, capacity int, ttl time.Duration, opts ...session.Option) *Registry {
	return &Registry{
		sessions: expirable.NewLRU[string, *session.Session](capacity, nil, ttl),
		dir:      dir,
		secret:   secret,
		opts:     opts,
	}
}

// Open returns a fresh unauthenticated session. It is not tracked until Put.
func (r *Registry) Open() *session.Session {
	return session.New(uuid.NewString(), r.dir, r.secret, r.opts...)
}

func (r *Registry) Put(s *session.Session) {
	r.sessions.Add(s.ID(), s)
}

func (r *Registry) Get(sessionID string) (*session.Session, bool) {
	return r.sessions.Get(sessionID)
}

func (r *Registry) Remove(sessionID string) {
	r.sessions.Remove(sessionID)
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Sessions returns the live sessions, oldest first.
func (r *Registry) Sessions() []*session.Session {
	return r.sessions.Values()
}
