package httpapi

import (
	"log"
	"net/http"
	"strings"
	"time"

	"portal/internal/models"
	"portal/internal/policy"
	"portal/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      userInfo `json:"user"`
}

type userInfo struct {
	models.User
	Capabilities capabilities `json:"capabilities"`
}

type capabilities struct {
	Admin          bool `json:"admin"`
	ManageUsers    bool `json:"manage_users"`
	ManageProjects bool `json:"manage_projects"`
}

func newUserInfo(user models.User) userInfo {
	return userInfo{
		User: user,
		Capabilities: capabilities{
			Admin:          policy.CanAccessAdmin(&user),
			ManageUsers:    policy.CanManageUsers(&user),
			ManageProjects: policy.CanManageProjects(&user),
		},
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	if h.limiter != nil && !h.limiter.AllowLogin(r, req.Email) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
		return
	}

	// A client that already holds a session logs in on it, so a failed attempt
	// leaves that session as it was.
	var sess *session.Session
	if token := sessionTokenFromRequest(r); token != "" {
		sess, _ = h.lookupSession(token)
	}
	if sess == nil {
		sess = h.sessions.Open()
	}

	ok, err := sess.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("login error request_id=%s: %v", requestIDFromRequest(r), err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if !ok {
		loginFailuresTotal.Add(1)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	user, err := sess.Current(r.Context())
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	h.sessions.Put(sess)

	token, expiresAt, err := h.tokens.Issue(sess.ID(), user.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      newUserInfo(*user),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info, _ := authFromContext(r.Context())
	info.Session.Logout()
	h.sessions.Remove(info.Session.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info, _ := authFromContext(r.Context())
	writeJSON(w, http.StatusOK, newUserInfo(info.User))
}
