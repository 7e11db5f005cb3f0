package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"portal/internal/hub"
	"portal/internal/models"
	"portal/internal/policy"
	"portal/internal/store"
)

type projectRequest struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type userRequest struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Role              string   `json:"role"`
	AllowedProjects   []string `json:"allowed_projects"`
	CanManageUsers    bool     `json:"can_manage_users"`
	CanManageProjects bool     `json:"can_manage_projects"`
}

type statsResponse struct {
	TotalProjects  int `json:"total_projects"`
	TotalUsers     int `json:"total_users"`
	SubAdmins      int `json:"sub_admins"`
	ActiveSessions int `json:"active_sessions"`
}

func (h *Handler) handleAdminProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := requireCapability(w, r, policy.CanAccessAdmin); !ok {
			return
		}
		projects, err := h.store.ListProjects(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, projects)
	case http.MethodPost:
		actor, ok := requireCapability(w, r, policy.CanManageProjects)
		if !ok {
			return
		}
		var req projectRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.URL = strings.TrimSpace(req.URL)
		if req.Name == "" || req.URL == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name and url are required")
			return
		}
		created, err := h.store.CreateProject(r.Context(), models.Project{
			Name:        req.Name,
			URL:         req.URL,
			Icon:        strings.TrimSpace(req.Icon),
			Description: strings.TrimSpace(req.Description),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		h.recordAudit(r, actor, "project.create", "project", created.ProjectID)
		h.publishProject(hub.EventProjectCreated, created.ProjectID, created)
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAdminProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCapability(w, r, policy.CanManageProjects)
	if !ok {
		return
	}
	projectID := strings.TrimPrefix(r.URL.Path, "/api/admin/projects/")
	if projectID == "" || strings.Contains(projectID, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "project_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		project, err := h.store.GetProject(r.Context(), projectID)
		if err != nil {
			writeStoreError(w, err, "project not found")
			return
		}
		writeJSON(w, http.StatusOK, project)
	case http.MethodPut, http.MethodPatch:
		var patch models.ProjectPatch
		if !decodeRequest(w, r, &patch) {
			return
		}
		if !trimRequired(patch.Name) || !trimRequired(patch.URL) {
			writeError(w, http.StatusBadRequest, "invalid_request", "name and url cannot be empty")
			return
		}
		updated, err := h.store.UpdateProject(r.Context(), projectID, patch)
		if err != nil {
			writeStoreError(w, err, "project not found")
			return
		}
		h.recordAudit(r, actor, "project.update", "project", updated.ProjectID)
		h.publishProject(hub.EventProjectUpdated, updated.ProjectID, updated)
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		project, err := h.store.GetProject(r.Context(), projectID)
		if err != nil {
			writeStoreError(w, err, "project not found")
			return
		}
		if err := h.store.DeleteProject(r.Context(), projectID); err != nil {
			writeStoreError(w, err, "project not found")
			return
		}
		h.recordAudit(r, actor, "project.delete", "project", projectID)
		h.publishProject(hub.EventProjectDeleted, projectID, project)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCapability(w, r, policy.CanManageUsers)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		users, err := h.store.ListUsers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		var req userRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.TrimSpace(req.Email)
		if req.Name == "" || req.Email == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name and email are required")
			return
		}
		if req.Role == "" {
			req.Role = models.RoleUser
		}
		if !assignableRole(req.Role) {
			writeError(w, http.StatusBadRequest, "invalid_request", "role must be user or sub-admin")
			return
		}
		if req.Role == models.RoleSubAdmin && !policy.IsProtected(actor) {
			writeError(w, http.StatusForbidden, "access_denied", "only the major admin manages sub-admins")
			return
		}
		user := models.User{
			Name:            req.Name,
			Email:           req.Email,
			Role:            req.Role,
			AllowedProjects: req.AllowedProjects,
		}
		if req.Role == models.RoleSubAdmin {
			user.CanManageUsers = req.CanManageUsers
			user.CanManageProjects = req.CanManageProjects
		}
		created, err := h.store.CreateUser(r.Context(), user)
		if err != nil {
			writeStoreError(w, err, "user not found")
			return
		}
		h.recordAudit(r, actor, "user.create", "user", created.UserID)
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCapability(w, r, policy.CanManageUsers)
	if !ok {
		return
	}
	userID := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	target, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "user not found")
		return
	}

	if r.Method != http.MethodGet && policy.IsProtected(target) && !policy.IsProtected(actor) {
		writeError(w, http.StatusForbidden, "access_denied", "only the major admin edits the major admin")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, target)
	case http.MethodPut, http.MethodPatch:
		var patch models.UserPatch
		if !decodeRequest(w, r, &patch) {
			return
		}
		if !trimRequired(patch.Name) || !trimRequired(patch.Email) {
			writeError(w, http.StatusBadRequest, "invalid_request", "name and email cannot be empty")
			return
		}
		if policy.IsProtected(target) && (patch.Role != nil || patch.CanManageUsers != nil || patch.CanManageProjects != nil) {
			if patch.Role == nil || *patch.Role != models.RoleMajorAdmin {
				writeError(w, http.StatusConflict, "protected_user", "cannot change the major admin's role")
				return
			}
			patch.Role, patch.CanManageUsers, patch.CanManageProjects = nil, nil, nil
		}
		if patch.Role != nil && !assignableRole(*patch.Role) {
			writeError(w, http.StatusBadRequest, "invalid_request", "role must be user or sub-admin")
			return
		}
		merged := patch.Apply(target)
		if !policy.IsProtected(actor) && (target.Role == models.RoleSubAdmin || merged.Role == models.RoleSubAdmin) {
			writeError(w, http.StatusForbidden, "access_denied", "only the major admin manages sub-admins")
			return
		}
		if merged.Role == models.RoleUser {
			off := false
			patch.CanManageUsers, patch.CanManageProjects = &off, &off
		}
		updated, err := h.store.UpdateUser(r.Context(), userID, patch)
		if err != nil {
			writeStoreError(w, err, "user not found")
			return
		}
		h.recordAudit(r, actor, "user.update", "user", updated.UserID)
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if policy.IsProtected(target) {
			writeError(w, http.StatusConflict, "protected_user", "cannot delete the major admin user")
			return
		}
		if !policy.IsProtected(actor) && target.Role == models.RoleSubAdmin {
			writeError(w, http.StatusForbidden, "access_denied", "only the major admin manages sub-admins")
			return
		}
		if err := h.store.DeleteUser(r.Context(), userID); err != nil {
			writeStoreError(w, err, "user not found")
			return
		}
		h.recordAudit(r, actor, "user.delete", "user", userID)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireCapability(w, r, policy.CanAccessAdmin); !ok {
		return
	}
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	resp := statsResponse{TotalProjects: len(projects), ActiveSessions: h.sessions.Len()}
	for _, u := range users {
		if policy.IsProtected(u) {
			continue
		}
		resp.TotalUsers++
		if u.Role == models.RoleSubAdmin {
			resp.SubAdmins++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireCapability(w, r, policy.CanAccessAdmin); !ok {
		return
	}
	logs, err := h.store.ListAudit(r.Context(), store.AuditFilter{
		ActionType: strings.TrimSpace(r.URL.Query().Get("action_type")),
		UserID:     strings.TrimSpace(r.URL.Query().Get("user_id")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) recordAudit(r *http.Request, actor models.User, actionType, targetType, targetID string) {
	err := h.store.InsertAudit(r.Context(), models.AuditLog{
		ActorUserID: actor.UserID,
		ActionType:  actionType,
		TargetType:  targetType,
		TargetID:    targetID,
		IP:          h.clientIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		log.Printf("audit insert error action=%s target=%s: %v", actionType, targetID, err)
	}
}

func (h *Handler) publishProject(eventType, projectID string, project models.Project) {
	payload, err := json.Marshal(project)
	if err != nil {
		return
	}
	h.hub.Publish(hub.Event{Type: eventType, ProjectID: projectID, Payload: payload})
}

func (h *Handler) clientIP(r *http.Request) string {
	if h.limiter != nil {
		return h.limiter.ClientIP(r)
	}
	return remoteIP(r)
}

func writeStoreError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", notFound)
	case errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "email already in use")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// trimRequired trims a supplied field in place and reports whether it is
// absent or non-empty.
func trimRequired(value *string) bool {
	if value == nil {
		return true
	}
	*value = strings.TrimSpace(*value)
	return *value != ""
}

func assignableRole(role string) bool {
	return role == models.RoleUser || role == models.RoleSubAdmin
}
