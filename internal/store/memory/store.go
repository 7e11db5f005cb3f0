// Package memory keeps the identity store in process memory. Nothing survives
// a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"portal/internal/models"
	"portal/internal/store"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.RWMutex
	users    []models.User
	projects []models.Project
	audit    []models.AuditLog
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

// Seed replaces the users and projects with the seed data set.
func (s *Store) Seed(ctx context.Context, seed store.Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.users = seed.ModelUsers(now)
	s.projects = seed.ModelProjects(now)
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.userIndex(userID)
	if idx < 0 {
		return models.User{}, store.ErrNotFound
	}
	return s.users[idx].Clone(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u.Clone(), true, nil
		}
	}
	return models.User{}, false, nil
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(user.Email, "") {
		return models.User{}, store.ErrEmailTaken
	}
	user.AllowedProjects = models.UniqueProjectIDs(user.AllowedProjects)
	user.UserID = s.freshID(func(id string) bool { return s.userIndex(id) >= 0 })
	user.Created = s.now()
	s.users = append(s.users, user)
	return user.Clone(), nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, patch models.UserPatch) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.userIndex(userID)
	if idx < 0 {
		return models.User{}, store.ErrNotFound
	}
	updated := patch.Apply(s.users[idx])
	if patch.Email != nil && s.emailTaken(updated.Email, userID) {
		return models.User{}, store.ErrEmailTaken
	}
	if updated.AllowedProjects == nil {
		updated.AllowedProjects = []string{}
	}
	s.users[idx] = updated
	return updated.Clone(), nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.userIndex(userID)
	if idx < 0 {
		return store.ErrNotFound
	}
	s.users = append(s.users[:idx], s.users[idx+1:]...)
	return nil
}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Project{}, s.projects...), nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.projectIndex(projectID)
	if idx < 0 {
		return models.Project{}, store.ErrNotFound
	}
	return s.projects[idx], nil
}

func (s *Store) CreateProject(ctx context.Context, project models.Project) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project.ProjectID = s.freshID(func(id string) bool { return s.projectIndex(id) >= 0 })
	project.Created = s.now()
	s.projects = append(s.projects, project)
	return project, nil
}

func (s *Store) UpdateProject(ctx context.Context, projectID string, patch models.ProjectPatch) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.projectIndex(projectID)
	if idx < 0 {
		return models.Project{}, store.ErrNotFound
	}
	s.projects[idx] = patch.Apply(s.projects[idx])
	return s.projects[idx], nil
}

func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.projectIndex(projectID)
	if idx < 0 {
		return store.ErrNotFound
	}
	s.projects = append(s.projects[:idx], s.projects[idx+1:]...)
	return nil
}

func (s *Store) InsertAudit(ctx context.Context, audit models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if audit.AuditID == "" {
		audit.AuditID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = s.now()
	}
	s.audit = append(s.audit, audit)
	return nil
}

// ListAudit returns matching entries, newest first.
func (s *Store) ListAudit(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.AuditLog{}
	for i := len(s.audit) - 1; i >= 0; i-- {
		entry := s.audit[i]
		if filter.ActionType != "" && entry.ActionType != filter.ActionType {
			continue
		}
		if filter.UserID != "" && entry.ActorUserID != filter.UserID {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) userIndex(userID string) int {
	for i, u := range s.users {
		if u.UserID == userID {
			return i
		}
	}
	return -1
}

func (s *Store) projectIndex(projectID string) int {
	for i, p := range s.projects {
		if p.ProjectID == projectID {
			return i
		}
	}
	return -1
}

func (s *Store) emailTaken(email, exceptUserID string) bool {
	for _, u := range s.users {
		if u.Email == email && u.UserID != exceptUserID {
			return true
		}
	}
	return false
}

func (s *Store) freshID(exists func(string) bool) string {
	for {
		id := uuid.NewString()
		if !exists(id) {
			return id
		}
	}
}
