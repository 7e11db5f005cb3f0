package memory

import (
	"context"
	"testing"

	"portal/internal/models"
	"portal/internal/policy"
	"portal/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Seed(context.Background(), store.DefaultSeed()))
	return s
}

func strPtr(v string) *string { return &v }

func TestSeedLoadsDefaults(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 4)

	john, found, err := s.FindUserByEmail(ctx, "john@apollo.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"1", "2"}, john.AllowedProjects)
}

func TestFindUserByEmailIsExact(t *testing.T) {
	s := seeded(t)
	_, found, err := s.FindUserByEmail(context.Background(), "John@Apollo.com")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateProjectAssignsFreshID(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	created, err := s.CreateProject(ctx, models.Project{ProjectID: "1", Name: "Dealer Hub", URL: "https://dealers.example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, "1", created.ProjectID)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, p := range projects {
		assert.False(t, seen[p.ProjectID], "duplicate id %s", p.ProjectID)
		seen[p.ProjectID] = true
	}
	assert.True(t, seen[created.ProjectID])

	major, _, _ := s.FindUserByEmail(ctx, "major@apollo.com")
	john, _, _ := s.FindUserByEmail(ctx, "john@apollo.com")
	assert.True(t, policy.HasAccess(&major, created.ProjectID))
	assert.False(t, policy.HasAccess(&john, created.ProjectID))
}

func TestUpdateProjectIsShallowMerge(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	updated, err := s.UpdateProject(ctx, "2", models.ProjectPatch{Name: strPtr("Tyre Insights")})
	require.NoError(t, err)
	assert.Equal(t, "Tyre Insights", updated.Name)
	assert.Equal(t, "https://analytics.apollo.example.com", updated.URL)
	assert.Equal(t, "Advanced tyre performance analytics", updated.Description)

	_, err = s.UpdateProject(ctx, "missing", models.ProjectPatch{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteProject(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.DeleteProject(ctx, "3"))
	_, err := s.GetProject(ctx, "3")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, "3"), store.ErrNotFound)

	projects, _ := s.ListProjects(ctx)
	assert.Len(t, projects, 3)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, models.User{Name: "Other John", Email: "john@apollo.com", Role: models.RoleUser})
	assert.ErrorIs(t, err, store.ErrEmailTaken)

	created, err := s.CreateUser(ctx, models.User{Name: "Mei", Email: "mei@apollo.com", Role: models.RoleUser})
	require.NoError(t, err)
	assert.NotEmpty(t, created.UserID)
	assert.NotNil(t, created.AllowedProjects)
}

func TestUpdateUser(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	allowed := []string{"1", "2", "4"}
	updated, err := s.UpdateUser(ctx, "2", models.UserPatch{AllowedProjects: &allowed})
	require.NoError(t, err)
	assert.Equal(t, allowed, updated.AllowedProjects)
	assert.Equal(t, "john@apollo.com", updated.Email)

	allowed[0] = "mutated"
	stored, err := s.GetUser(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "1", stored.AllowedProjects[0])

	_, err = s.UpdateUser(ctx, "2", models.UserPatch{Email: strPtr("major@apollo.com")})
	assert.ErrorIs(t, err, store.ErrEmailTaken)

	_, err = s.UpdateUser(ctx, "2", models.UserPatch{Email: strPtr("john@apollo.com")})
	assert.NoError(t, err)
}

func TestAllowedProjectsAreDeduplicated(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, models.User{
		Name:            "Mei",
		Email:           "mei@apollo.com",
		Role:            models.RoleUser,
		AllowedProjects: []string{"2", "1", "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, created.AllowedProjects)

	allowed := []string{"4", "4", "3"}
	updated, err := s.UpdateUser(ctx, created.UserID, models.UserPatch{AllowedProjects: &allowed})
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3"}, updated.AllowedProjects)

	stored, err := s.GetUser(ctx, created.UserID)
	require.NoError(t, err)
	assert.Equal(t, updated.AllowedProjects, stored.AllowedProjects)
}

func TestDeleteUser(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.DeleteUser(ctx, "2"))
	_, err := s.GetUser(ctx, "2")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, "2"), store.ErrNotFound)
}

func TestAuditNewestFirstWithFilters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.InsertAudit(ctx, models.AuditLog{ActorUserID: "1", ActionType: "project.create", TargetID: "a"}))
	require.NoError(t, s.InsertAudit(ctx, models.AuditLog{ActorUserID: "3", ActionType: "user.update", TargetID: "b"}))
	require.NoError(t, s.InsertAudit(ctx, models.AuditLog{ActorUserID: "1", ActionType: "project.delete", TargetID: "c"}))

	all, err := s.ListAudit(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].TargetID)
	assert.NotEmpty(t, all[0].AuditID)

	byUser, err := s.ListAudit(ctx, store.AuditFilter{UserID: "1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byAction, err := s.ListAudit(ctx, store.AuditFilter{ActionType: "user.update"})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "b", byAction[0].TargetID)
}
