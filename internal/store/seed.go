package store

import (
	"fmt"
	"os"
	"time"

	"portal/internal/models"

	"github.com/BurntSushi/toml"
)

// Seed is the data set a store starts from.
type Seed struct {
	Projects []SeedProject `toml:"projects"`
	Users    []SeedUser    `toml:"users"`
}

type SeedProject struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	URL         string `toml:"url"`
	Icon        string `toml:"icon"`
	Description string `toml:"description"`
}

type SeedUser struct {
	ID                string   `toml:"id"`
	Name              string   `toml:"name"`
	Email             string   `toml:"email"`
	Role              string   `toml:"role"`
	AllowedProjects   []string `toml:"allowed_projects"`
	CanManageUsers    bool     `toml:"can_manage_users"`
	CanManageProjects bool     `toml:"can_manage_projects"`
}

// DefaultSeed is the demo data set the portal ships with.
func DefaultSeed() Seed {
	return Seed{
		Projects: []SeedProject{
			{ID: "1", Name: "Apollo Connect", URL: "https://apollo-connect.example.com", Icon: "🚗", Description: "Connected vehicle platform"},
			{ID: "2", Name: "Tyre Analytics", URL: "https://analytics.apollo.example.com", Icon: "📊", Description: "Advanced tyre performance analytics"},
			{ID: "3", Name: "Fleet Management", URL: "https://fleet.apollo.example.com", Icon: "🚛", Description: "Commercial fleet solutions"},
			{ID: "4", Name: "R&D Portal", URL: "https://research.apollo.example.com", Icon: "🔬", Description: "Research and development hub"},
		},
		Users: []SeedUser{
			{ID: "1", Name: "Major Admin", Email: "major@apollo.com", Role: models.RoleMajorAdmin, AllowedProjects: []string{"1", "2", "3", "4"}},
			{ID: "2", Name: "John Doe", Email: "john@apollo.com", Role: models.RoleUser, AllowedProjects: []string{"1", "2"}},
			{ID: "3", Name: "Priya Sharma", Email: "priya@apollo.com", Role: models.RoleSubAdmin, AllowedProjects: []string{"3"}, CanManageUsers: true},
		},
	}
}

// LoadSeedFile reads a TOML seed file. An empty path yields DefaultSeed.
func LoadSeedFile(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(string(raw))
}

func ParseSeed(data string) (Seed, error) {
	var seed Seed
	if _, err := toml.Decode(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

// Validate checks the identity invariants: unique ids, unique emails and a
// single major admin.
func (s Seed) Validate() error {
	projectIDs := make(map[string]struct{}, len(s.Projects))
	for _, p := range s.Projects {
		if p.ID == "" || p.Name == "" || p.URL == "" {
			return fmt.Errorf("seed project %q: id, name and url are required", p.ID)
		}
		if _, dup := projectIDs[p.ID]; dup {
			return fmt.Errorf("seed project %q: duplicate id", p.ID)
		}
		projectIDs[p.ID] = struct{}{}
	}

	userIDs := make(map[string]struct{}, len(s.Users))
	emails := make(map[string]struct{}, len(s.Users))
	majors := 0
	for _, u := range s.Users {
		if u.ID == "" || u.Name == "" || u.Email == "" {
			return fmt.Errorf("seed user %q: id, name and email are required", u.ID)
		}
		if _, dup := userIDs[u.ID]; dup {
			return fmt.Errorf("seed user %q: duplicate id", u.ID)
		}
		if _, dup := emails[u.Email]; dup {
			return fmt.Errorf("seed user %q: duplicate email %s", u.ID, u.Email)
		}
		switch u.Role {
		case models.RoleMajorAdmin:
			majors++
		case models.RoleSubAdmin, models.RoleUser:
		default:
			return fmt.Errorf("seed user %q: unknown role %q", u.ID, u.Role)
		}
		userIDs[u.ID] = struct{}{}
		emails[u.Email] = struct{}{}
	}
	if majors != 1 {
		return fmt.Errorf("seed must contain exactly one %s user, found %d", models.RoleMajorAdmin, majors)
	}
	return nil
}

func (s Seed) ModelProjects(now time.Time) []models.Project {
	out := make([]models.Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		out = append(out, models.Project{
			ProjectID:   p.ID,
			Name:        p.Name,
			URL:         p.URL,
			Icon:        p.Icon,
			Description: p.Description,
			Created:     now,
		})
	}
	return out
}

func (s Seed) ModelUsers(now time.Time) []models.User {
	out := make([]models.User, 0, len(s.Users))
	for _, u := range s.Users {
		out = append(out, models.User{
			UserID:            u.ID,
			Name:              u.Name,
			Email:             u.Email,
			Role:              u.Role,
			AllowedProjects:   append([]string{}, u.AllowedProjects...),
			CanManageUsers:    u.CanManageUsers,
			CanManageProjects: u.CanManageProjects,
			Created:           now,
		})
	}
	return out
}
