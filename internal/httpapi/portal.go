package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"portal/internal/models"
	"portal/internal/policy"
	"portal/internal/store"
)

type dashboardResponse struct {
	Accessible []models.Project `json:"accessible"`
	Restricted []models.Project `json:"restricted"`
	Total      int              `json:"total"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info, _ := authFromContext(r.Context())
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	accessible, restricted := policy.Partition(&info.User, projects)
	writeJSON(w, http.StatusOK, dashboardResponse{
		Accessible: accessible,
		Restricted: restricted,
		Total:      len(projects),
	})
}

// handleProjectOpen serves /api/portal/projects/{id}/open by redirecting to the
// project url when the caller may open it.
func (h *Handler) handleProjectOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/portal/projects/")
	projectID, action, found := strings.Cut(rest, "/")
	if !found || action != "open" || projectID == "" {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}

	info, _ := authFromContext(r.Context())
	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if !policy.HasAccess(&info.User, project.ProjectID) {
		writeError(w, http.StatusForbidden, "access_denied", "project access denied")
		return
	}
	http.Redirect(w, r, project.URL, http.StatusFound)
}
