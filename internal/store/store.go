package store

import (
	"context"

	"portal/internal/models"
)

type AuditFilter struct {
	ActionType string
	UserID     string
}

type Store interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, bool, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	UpdateUser(ctx context.Context, userID string, patch models.UserPatch) (models.User, error)
	DeleteUser(ctx context.Context, userID string) error

	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, projectID string) (models.Project, error)
	CreateProject(ctx context.Context, project models.Project) (models.Project, error)
	UpdateProject(ctx context.Context, projectID string, patch models.ProjectPatch) (models.Project, error)
	DeleteProject(ctx context.Context, projectID string) error

	InsertAudit(ctx context.Context, audit models.AuditLog) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error)
}

// Seeder is implemented by stores that can be loaded with an initial data set.
type Seeder interface {
	Seed(ctx context.Context, seed Seed) error
}
