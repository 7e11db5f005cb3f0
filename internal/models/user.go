package models

import "time"

const (
	RoleMajorAdmin = "major-admin"
	RoleSubAdmin   = "sub-admin"
	RoleUser       = "user"
)

type User struct {
	UserID            string    `json:"user_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Role              string    `json:"role"`
	AllowedProjects   []string  `json:"allowed_projects"`
	CanManageUsers    bool      `json:"can_manage_users"`
	CanManageProjects bool      `json:"can_manage_projects"`
	Created           time.Time `json:"created_at"`
}

// UserPatch carries the fields of a shallow update. Nil fields are left as they are.
type UserPatch struct {
	Name              *string   `json:"name"`
	Email             *string   `json:"email"`
	Role              *string   `json:"role"`
	AllowedProjects   *[]string `json:"allowed_projects"`
	CanManageUsers    *bool     `json:"can_manage_users"`
	CanManageProjects *bool     `json:"can_manage_projects"`
}

// Apply merges the patch into a copy of u.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.AllowedProjects != nil {
		u.AllowedProjects = UniqueProjectIDs(*p.AllowedProjects)
	}
	if p.CanManageUsers != nil {
		u.CanManageUsers = *p.CanManageUsers
	}
	if p.CanManageProjects != nil {
		u.CanManageProjects = *p.CanManageProjects
	}
	return u
}

// Clone returns a copy that shares no slices with u.
func (u User) Clone() User {
	u.AllowedProjects = append([]string(nil), u.AllowedProjects...)
	return u
}

// UniqueProjectIDs copies ids without repeats, keeping first-seen order.
func UniqueProjectIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
