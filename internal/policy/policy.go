// Package policy decides which projects a user may open and which parts of
// the admin surface they may use.
package policy

import "portal/internal/models"

// Role is the closed set of privilege tiers. Only the types in this package
// implement it.
type Role interface {
	role()
}

// TopAdmin sees and manages everything.
type TopAdmin struct{}

// DelegatedAdmin administers the parts its capability flags grant and
// otherwise sees only its allow-set.
type DelegatedAdmin struct {
	CanManageUsers    bool
	CanManageProjects bool
	AllowedProjects   []string
}

// StandardUser sees only its allow-set.
type StandardUser struct {
	AllowedProjects []string
}

func (TopAdmin) role()       {}
func (DelegatedAdmin) role() {}
func (StandardUser) role()   {}

// Classify maps a stored user onto its role variant. Unknown role names fall
// to StandardUser, and capability flags only count for delegated admins.
func Classify(user models.User) Role {
	switch user.Role {
	case models.RoleMajorAdmin:
		return TopAdmin{}
	case models.RoleSubAdmin:
		return DelegatedAdmin{
			CanManageUsers:    user.CanManageUsers,
			CanManageProjects: user.CanManageProjects,
			AllowedProjects:   user.AllowedProjects,
		}
	default:
		return StandardUser{AllowedProjects: user.AllowedProjects}
	}
}

// HasAccess reports whether user may open the project with the given id. A nil
// user is unauthenticated and is always denied.
func HasAccess(user *models.User, projectID string) bool {
	if user == nil {
		return false
	}
	switch r := Classify(*user).(type) {
	case TopAdmin:
		return true
	case DelegatedAdmin:
		if r.CanManageProjects {
			return true
		}
		return contains(r.AllowedProjects, projectID)
	case StandardUser:
		return contains(r.AllowedProjects, projectID)
	default:
		return false
	}
}

// CanAccessAdmin reports whether user may reach the admin surface at all.
func CanAccessAdmin(user *models.User) bool {
	if user == nil {
		return false
	}
	switch Classify(*user).(type) {
	case TopAdmin, DelegatedAdmin:
		return true
	default:
		return false
	}
}

func CanManageUsers(user *models.User) bool {
	if user == nil {
		return false
	}
	switch r := Classify(*user).(type) {
	case TopAdmin:
		return true
	case DelegatedAdmin:
		return r.CanManageUsers
	default:
		return false
	}
}

func CanManageProjects(user *models.User) bool {
	if user == nil {
		return false
	}
	switch r := Classify(*user).(type) {
	case TopAdmin:
		return true
	case DelegatedAdmin:
		return r.CanManageProjects
	default:
		return false
	}
}

// IsProtected reports whether the user is the top admin, which the admin
// surface never deletes or demotes.
func IsProtected(user models.User) bool {
	_, ok := Classify(user).(TopAdmin)
	return ok
}

// Partition splits projects into the ones user may open and the rest,
// keeping their order.
func Partition(user *models.User, projects []models.Project) (accessible, restricted []models.Project) {
	accessible = []models.Project{}
	restricted = []models.Project{}
	for _, project := range projects {
		if HasAccess(user, project.ProjectID) {
			accessible = append(accessible, project)
		} else {
			restricted = append(restricted, project)
		}
	}
	return accessible, restricted
}

func contains(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
}
