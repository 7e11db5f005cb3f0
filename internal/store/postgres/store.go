package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"portal/internal/models"
	"portal/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Seed loads the seed data set only into an empty database, so restarts keep
// admin edits.
func (s *Store) Seed(ctx context.Context, seed store.Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM users`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, p := range seed.ModelProjects(now) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO projects (project_id, name, url, icon, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (project_id) DO NOTHING
		`, p.ProjectID, p.Name, p.URL, p.Icon, p.Description, p.Created); err != nil {
			return fmt.Errorf("seed project %s: %w", p.ProjectID, err)
		}
	}
	for _, u := range seed.ModelUsers(now) {
		if err := insertUser(ctx, tx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.UserID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, name, email, role, can_manage_users, can_manage_projects, created_at
		FROM users
		ORDER BY created_at, user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.UserID, &u.Name, &u.Email, &u.Role, &u.CanManageUsers, &u.CanManageProjects, &u.Created); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	access, err := s.loadAccess(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		u.AllowedProjects = access[u.UserID]
		if u.AllowedProjects == nil {
			u.AllowedProjects = []string{}
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, role, can_manage_users, can_manage_projects, created_at
		FROM users
		WHERE user_id = $1
	`, userID)
	return s.scanUser(ctx, row)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, role, can_manage_users, can_manage_projects, created_at
		FROM users
		WHERE email = $1
	`, email)
	user, err := s.scanUser(ctx, row)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, false, nil
		}
		return models.User{}, false, err
	}
	return user, true, nil
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user.UserID = uuid.NewString()
	user.Created = time.Now().UTC()
	user.AllowedProjects = models.UniqueProjectIDs(user.AllowedProjects)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback(ctx)

	if err := insertUser(ctx, tx, user); err != nil {
		return models.User{}, mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, patch models.UserPatch) (models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback(ctx)

	// Lock the row so concurrent patches merge one after the other.
	var current models.User
	err = tx.QueryRow(ctx, `
		SELECT user_id, name, email, role, can_manage_users, can_manage_projects, created_at
		FROM users
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&current.UserID, &current.Name, &current.Email, &current.Role, &current.CanManageUsers, &current.CanManageProjects, &current.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrNotFound
		}
		return models.User{}, err
	}
	current.AllowedProjects, err = accessFor(ctx, tx, userID)
	if err != nil {
		return models.User{}, err
	}
	updated := patch.Apply(current)

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET name = $1, email = $2, role = $3, can_manage_users = $4, can_manage_projects = $5
		WHERE user_id = $6
	`, updated.Name, updated.Email, updated.Role, updated.CanManageUsers, updated.CanManageProjects, userID); err != nil {
		return models.User{}, mapError(err)
	}
	if patch.AllowedProjects != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM user_project_access WHERE user_id = $1`, userID); err != nil {
			return models.User{}, err
		}
		if err := insertAccess(ctx, tx, userID, updated.AllowedProjects); err != nil {
			return models.User{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return models.User{}, err
	}
	return updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT project_id, name, url, icon, description, created_at
		FROM projects
		ORDER BY created_at, project_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ProjectID, &p.Name, &p.URL, &p.Icon, &p.Description, &p.Created); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	var p models.Project
	row := s.pool.QueryRow(ctx, `
		SELECT project_id, name, url, icon, description, created_at
		FROM projects
		WHERE project_id = $1
	`, projectID)
	if err := row.Scan(&p.ProjectID, &p.Name, &p.URL, &p.Icon, &p.Description, &p.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, store.ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

func (s *Store) CreateProject(ctx context.Context, project models.Project) (models.Project, error) {
	project.ProjectID = uuid.NewString()
	project.Created = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (project_id, name, url, icon, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, project.ProjectID, project.Name, project.URL, project.Icon, project.Description, project.Created)
	if err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (s *Store) UpdateProject(ctx context.Context, projectID string, patch models.ProjectPatch) (models.Project, error) {
	current, err := s.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	updated := patch.Apply(current)
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET name = $1, url = $2, icon = $3, description = $4
		WHERE project_id = $5
	`, updated.Name, updated.URL, updated.Icon, updated.Description, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Project{}, store.ErrNotFound
	}
	return updated, nil
}

func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE project_id = $1`, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertAudit(ctx context.Context, audit models.AuditLog) error {
	if audit.AuditID == "" {
		audit.AuditID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (audit_id, actor_user_id, action_type, target_type, target_id, created_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, audit.AuditID, audit.ActorUserID, audit.ActionType, audit.TargetType, audit.TargetID, audit.CreatedAt, audit.IP, audit.UserAgent)
	return err
}

func (s *Store) ListAudit(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT audit_id, actor_user_id, action_type, target_type, target_id, created_at, ip, user_agent
		FROM audit_logs
		WHERE ($1 = '' OR action_type = $1) AND ($2 = '' OR actor_user_id = $2)
		ORDER BY created_at DESC
		LIMIT 500
	`, filter.ActionType, filter.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var a models.AuditLog
		if err := rows.Scan(&a.AuditID, &a.ActorUserID, &a.ActionType, &a.TargetType, &a.TargetID, &a.CreatedAt, &a.IP, &a.UserAgent); err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	return logs, rows.Err()
}

func (s *Store) scanUser(ctx context.Context, row pgx.Row) (models.User, error) {
	var u models.User
	if err := row.Scan(&u.UserID, &u.Name, &u.Email, &u.Role, &u.CanManageUsers, &u.CanManageProjects, &u.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrNotFound
		}
		return models.User{}, err
	}
	access, err := accessFor(ctx, s.pool, u.UserID)
	if err != nil {
		return models.User{}, err
	}
	u.AllowedProjects = access
	return u, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func accessFor(ctx context.Context, q querier, userID string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT project_id
		FROM user_project_access
		WHERE user_id = $1
		ORDER BY position
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	access := []string{}
	for rows.Next() {
		var projectID string
		if err := rows.Scan(&projectID); err != nil {
			return nil, err
		}
		access = append(access, projectID)
	}
	return access, rows.Err()
}

func (s *Store) loadAccess(ctx context.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, project_id
		FROM user_project_access
		ORDER BY user_id, position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	access := make(map[string][]string)
	for rows.Next() {
		var userID, projectID string
		if err := rows.Scan(&userID, &projectID); err != nil {
			return nil, err
		}
		access[userID] = append(access[userID], projectID)
	}
	return access, rows.Err()
}

func insertUser(ctx context.Context, tx pgx.Tx, u models.User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (user_id, name, email, role, can_manage_users, can_manage_projects, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.UserID, u.Name, u.Email, u.Role, u.CanManageUsers, u.CanManageProjects, u.Created)
	if err != nil {
		return err
	}
	return insertAccess(ctx, tx, u.UserID, u.AllowedProjects)
}

func insertAccess(ctx context.Context, tx pgx.Tx, userID string, projectIDs []string) error {
	for i, projectID := range models.UniqueProjectIDs(projectIDs) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_project_access (user_id, project_id, position)
			VALUES ($1, $2, $3)
		`, userID, projectID, i); err != nil {
			return err
		}
	}
	return nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrEmailTaken
	}
	return err
}
